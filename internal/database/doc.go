// Package database provides SQLite persistence for the image editor.
//
// Tables:
//   - users: accounts with bcrypt password hashes and capability lists
//   - sessions: login sessions keyed by SHA-256 of the client token
//   - attachments: image asset records and their generated metadata
//   - rate_limits: fixed-window request counters
//   - metadata: schema bookkeeping
//
// The connection runs in WAL mode with a busy timeout. Every public operation
// records query count and duration metrics.
package database
