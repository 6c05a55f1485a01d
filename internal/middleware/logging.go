package middleware

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"image-editor/internal/ratelimit"
)

// responseWriter records the status and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes never logged.
	SkipPaths []string
	// StaticPrefixes are path prefixes serving stored files. They are logged
	// only when LogStaticFiles is set.
	StaticPrefixes  []string
	LogStaticFiles  bool
	LogHealthChecks bool
	// LogRequestID appends the X-Request-ID value as a trailing field.
	LogRequestID bool
}

// DefaultLoggingConfig logs API traffic and probes but not file downloads.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		StaticPrefixes:  []string{"/uploads/"},
		LogHealthChecks: true,
		LogRequestID:    true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

func (c LoggingConfig) skip(path string) bool {
	if hasAnyPrefix(path, c.SkipPaths) {
		return true
	}
	if !c.LogHealthChecks && healthCheckPaths[path] {
		return true
	}
	return !c.LogStaticFiles && hasAnyPrefix(path, c.StaticPrefixes)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Logger returns HTTP access log middleware writing W3C Extended Log Format
// lines to the standard logger:
//
//	date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes
//	time-taken sc(Content-Encoding) cs(User-Agent) cs(Referer) [x-request-id]
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			log.Println(accessLine(config, r, rw, time.Since(start)))
		})
	}
}

func accessLine(config LoggingConfig, r *http.Request, rw *responseWriter, took time.Duration) string {
	now := time.Now().UTC()

	fields := []string{
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		logField(getClientIP(r)),
		logField(r.Method),
		logField(r.URL.Path),
		logField(r.URL.RawQuery),
		strconv.Itoa(rw.statusCode),
		strconv.FormatInt(rw.bytesWritten, 10),
		strconv.FormatInt(took.Milliseconds(), 10),
		logField(rw.Header().Get("Content-Encoding")),
		escapeW3CField(logField(r.Header.Get("User-Agent"))),
		logField(r.Header.Get("Referer")),
	}
	if config.LogRequestID {
		fields = append(fields, logField(RequestIDFromContext(r.Context())))
	}
	return strings.Join(fields, " ")
}

// logField sanitizes a client-controlled value, using "-" for empty ones.
func logField(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	return s
}

// sanitizeLogField turns CR and LF into spaces and drops every other control
// character except tab, so a header value cannot forge a log line or carry a
// terminal escape.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// getClientIP resolves the address the same way the rate limiter keys requests.
func getClientIP(r *http.Request) string {
	return ratelimit.ClientIP(r)
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if !strings.ContainsAny(s, " \t\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
