// Package middleware provides the HTTP middleware chain for the image editor.
//
// It includes:
//   - Request id assignment (X-Request-ID)
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path labels
//   - Response compression (gzip) for JSON and text bodies
package middleware
