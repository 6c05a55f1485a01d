// Package main provides the entry point for the Image Editor server.
//
// Image Editor is the backend of a browser-based image adjustment tool. An
// editor page posts actions to a single endpoint: preview renders a contrast
// and unsharp-mask adjustment as a base64 JPEG, save stores a client-rendered
// image as a new asset next to the original, and get_original returns the
// source metadata.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or container limits
//  2. Configuration Loading: Struct defaults, optional YAML file, .env, environment
//  3. Database Initialization: Opens SQLite (users, sessions, assets, counters)
//  4. Component Initialization:
//     - Image backend: libvips when IMAGE_BACKEND=vips and available, else pure Go
//     - Rate limit store: memory, sqlite or redis
//     - Nonce manager and login throttle
//  5. HTTP Server Setup: Routes, middleware chain, optional metrics server
//  6. Graceful Shutdown: SIGINT/SIGTERM stop the servers, scheduler and stores
//
// # Background Tasks
//
//   - Expired session cleanup (hourly), which also publishes the active session gauge
//   - Rate limit counter sweep (every window) for the memory and sqlite stores
//   - Login throttle bucket sweep (every minute)
//
// # HTTP Servers
//
//  1. Main Server (default port 8080):
//     - POST /api/editor: preview, save and get_original actions
//     - GET /api/editor/nonce: issues the per-session editor nonce
//     - /api/assets: upload, fetch and delete assets
//     - /api/auth: login, logout, session check
//     - /uploads/: stored files, signed-in users only
//     - /health, /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Command Line
//
//	image-editor [--config FILE]
//
// The config file may also be named by CONFIG_FILE. Every setting can be
// overridden by its environment variable; see internal/startup.
package main
