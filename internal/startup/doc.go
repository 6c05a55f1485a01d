// Package startup handles configuration loading and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] layers three sources, later ones winning:
//
//  1. struct defaults (the `default` tags on [Config])
//  2. an optional YAML file, with ${VAR} references expanded
//  3. environment variables, after loading an optional .env file
//
// The environment variables are:
//
//   - UPLOADS_DIR: Directory holding image files (default: /uploads)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - PUBLIC_URL: Prefix for edit links returned after a save
//   - MAX_FILE_SIZE: Largest source or saved file, e.g. 10MiB (default: 10MiB)
//   - MAX_IMAGE_WIDTH, MAX_IMAGE_HEIGHT: Pixel ceilings (default: 4096)
//   - PREVIEW_QUALITY: JPEG quality of previews (default: 90)
//   - PROCESSING_MEMORY_LIMIT: Decode budget when GOMEMLIMIT is unset (default: 256MiB)
//   - IMAGE_BACKEND: imaging or vips (default: imaging)
//   - RATE_LIMIT_REQUESTS, SAVE_RATE_LIMIT_REQUESTS: Requests per window (default: 30)
//   - RATE_LIMIT_WINDOW: Window length as Go duration (default: 60s)
//   - RATE_LIMIT_STORE: memory, sqlite or redis (default: memory)
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: Redis counter store
//   - NONCE_SECRET: Signing key for editor nonces (default: random per process)
//   - SESSION_DURATION: Sliding session lifetime (default: 168h)
//   - LOGIN_ATTEMPTS_PER_MINUTE: Login attempts allowed per client IP (default: 5)
//   - LOG_LEVEL, LOG_FILE: Logging level and optional rotated log file
//   - LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Access log filters
//
// GOMEMLIMIT, MEMORY_LIMIT and MEMORY_RATIO are read separately by the
// memory package before configuration is loaded.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
