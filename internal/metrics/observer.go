package metrics

import "image-editor/internal/filesystem"

type filesystemObserver struct{}

// NewFilesystemObserver returns a filesystem.Observer backed by the
// filesystem retry metrics.
func NewFilesystemObserver() filesystem.Observer {
	return filesystemObserver{}
}

func (filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (filesystemObserver) ObserveRetryDuration(op, volume string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(seconds)
}

func (filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}
