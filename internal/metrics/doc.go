// Package metrics provides Prometheus instrumentation for the image editor.
//
// All metrics are prefixed with "image_editor_" and registered with the
// default registry through promauto. Categories:
//
//   - HTTP: request totals, durations and in-flight requests.
//   - Database: query totals and durations per operation.
//   - Editor: actions by outcome, pipeline durations, preview sizes,
//     validation rejections by reason and orphaned-file cleanups.
//   - Rate limiting: decisions per action class and store failures.
//   - Filesystem: ESTALE retry behaviour per volume.
//   - Authentication: login attempts and active sessions.
//
// Call InitializeMetrics once at startup so that every labelled series is
// present on the first scrape.
package metrics
