// Package handlers provides HTTP request handlers for the image editor API.
//
// It includes handlers for:
//   - The editor action endpoint (preview, save, get_original)
//   - Editor nonce issuance
//   - User authentication and sessions
//   - Asset upload, lookup and file serving
//   - Health checks, version and metrics
//
// Editor and asset responses use one JSON envelope:
// {"success": bool, "data": {...}}. Failures always carry data.message.
package handlers
