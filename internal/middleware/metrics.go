package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"image-editor/internal/metrics"
)

// unmatchedPath labels requests that found no route, so scanners probing
// random URLs cannot grow the label set.
const unmatchedPath = "{unmatched}"

// metricsResponseWriter captures the status code and body size
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are exact paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig skips the scrape endpoint and the probes.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			rw := newMetricsResponseWriter(w)
			start := time.Now()
			next.ServeHTTP(rw, r)
			duration := time.Since(start).Seconds()

			path := normalizePath(r.URL.Path)
			if rw.statusCode == http.StatusNotFound || rw.statusCode == http.StatusMethodNotAllowed {
				path = unmatchedPath
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
			metrics.HTTPResponseBytes.WithLabelValues(path).Observe(float64(rw.bytes))
		})
	}
}

// normalizePath collapses per-asset segments so the path label stays bounded.
// Numeric segments become {id} and everything below /uploads/ becomes {path}.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/uploads/") {
		return "/uploads/{path}"
	}

	parts := strings.Split(path, "/")
	for i, part := range parts {
		switch {
		case part == "":
		case isNumeric(part):
			parts[i] = "{id}"
		case i > 3:
			parts[i] = "{path}"
			return strings.Join(parts[:i+1], "/")
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
