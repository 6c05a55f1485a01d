package filesystem

// Observer receives retry metrics. The metrics package provides the
// Prometheus implementation.
type Observer interface {
	ObserveRetryAttempt(op, volume string)
	ObserveRetrySuccess(op, volume string)
	ObserveRetryFailure(op, volume string)
	ObserveRetryDuration(op, volume string, seconds float64)
	ObserveStaleError(op, volume string)
}

var defaultObserver Observer

// SetObserver installs the package-level observer. A nil observer disables
// metric recording.
func SetObserver(o Observer) {
	defaultObserver = o
}

type nopObserver struct{}

func (nopObserver) ObserveRetryAttempt(string, string)           {}
func (nopObserver) ObserveRetrySuccess(string, string)           {}
func (nopObserver) ObserveRetryFailure(string, string)           {}
func (nopObserver) ObserveRetryDuration(string, string, float64) {}
func (nopObserver) ObserveStaleError(string, string)             {}

func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}
