package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_editor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPResponseBytes is measured before compression. Preview responses
	// dominate the upper buckets.
	HTTPResponseBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_editor_http_response_bytes",
			Help:    "HTTP response body size in bytes before compression",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B to 64MiB
		},
		[]string{"path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_editor_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_editor_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_editor_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Editor metrics
var (
	EditorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_requests_total",
			Help: "Editor actions by outcome (success or error kind)",
		},
		[]string{"action", "outcome"},
	)

	EditorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_editor_pipeline_duration_seconds",
			Help:    "Time spent in the preview and save pipelines",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"action"},
	)

	EditorPreviewBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_editor_preview_bytes",
			Help:    "Size of encoded JPEG previews before base64",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		},
	)

	EditorClampedParams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_clamped_params_total",
			Help: "Preview parameters outside their slider range, by field",
		},
		[]string{"field"},
	)

	EditorValidationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_validation_rejections_total",
			Help: "Requests rejected by the input validator, by reason",
		},
		[]string{"reason"},
	)

	EditorOrphanCleanups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_orphan_cleanups_total",
			Help: "Files removed after a failed asset record insert",
		},
		[]string{"status"},
	)
)

// Rate limiting metrics
var (
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_rate_limit_decisions_total",
			Help: "Rate limiter decisions by action class",
		},
		[]string{"action", "decision"},
	)

	RateLimitStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_rate_limit_store_errors_total",
			Help: "Counter store failures that were allowed through",
		},
		[]string{"store"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after ESTALE",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_editor_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_editor_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_editor_active_sessions",
			Help: "Number of active user sessions",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_editor_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version", "image_backend"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion, backend string) {
	AppInfo.WithLabelValues(version, commit, goVersion, backend).Set(1)
}
