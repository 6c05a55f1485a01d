package metrics

// Label values used by InitializeMetrics.
var (
	EditorActions     = []string{"preview", "save", "get_original"}
	EditorOutcomes    = []string{"success", "authorization", "security", "rate_limit", "validation", "not_found", "processing", "decode", "persistence"}
	RejectionReasons  = []string{"missing_image", "invalid_image_id", "file_too_large", "unreadable_image", "dimensions", "memory", "payload", "unsupported_type"}
	FilesystemVolumes = []string{"uploads", "database", "unknown"}
)

// InitializeMetrics pre-populates the expected label combinations so every
// series is exported from the first scrape.
func InitializeMetrics() {
	for _, action := range EditorActions {
		for _, outcome := range EditorOutcomes {
			EditorRequestsTotal.WithLabelValues(action, outcome)
		}
		EditorDuration.WithLabelValues(action)
		RateLimitDecisions.WithLabelValues(action, "allowed")
		RateLimitDecisions.WithLabelValues(action, "throttled")
		RateLimitDecisions.WithLabelValues(action, "fail_open")
	}

	for _, reason := range RejectionReasons {
		EditorValidationRejections.WithLabelValues(reason)
	}

	for _, status := range []string{"removed", "failed"} {
		EditorOrphanCleanups.WithLabelValues(status)
	}

	for _, store := range []string{"memory", "sqlite", "redis"} {
		RateLimitStoreErrors.WithLabelValues(store)
	}

	for _, op := range []string{"stat", "open", "remove"} {
		for _, vol := range FilesystemVolumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, status := range []string{"success", "failure"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}
}
