package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
	// SkipPrefixes are path prefixes served uncompressed, such as stored images
	SkipPrefixes []string
}

// DefaultCompressionConfig returns the defaults for the editor API. Preview
// envelopes carry base64 JPEG data, which gzip still shrinks by about a
// quarter; raw image bytes under /uploads/ are left alone.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024, // 1KB minimum
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
			"image/svg+xml",
		},
		SkipPrefixes: []string{"/uploads/"},
	}
}

// gzipWriterPool holds writers at gzip.DefaultCompression. Other levels are
// allocated per response.
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// gzipResponseWriter wraps http.ResponseWriter to provide gzip compression
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter     *gzip.Writer
	pooled         bool
	config         CompressionConfig
	buffer         []byte
	statusCode     int
	headerWritten  bool
	shouldCompress bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader captures the status code
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.headerWritten {
		return
	}
	g.statusCode = statusCode
}

// Write buffers data until we know if we should compress
func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.headerWritten {
		if g.shouldCompress {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		if err := g.finalize(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) shouldCompressContentType() bool {
	contentType := g.Header().Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, compressible := range g.config.CompressibleTypes {
		if mediaType == compressible {
			return true
		}
	}
	return false
}

// finalize decides whether to compress and writes the buffered data
func (g *gzipResponseWriter) finalize() error {
	if g.headerWritten {
		return nil
	}
	g.headerWritten = true

	// A handler that already encoded its body (promhttp does) is passed through.
	g.shouldCompress = len(g.buffer) >= g.config.MinSize &&
		g.Header().Get("Content-Encoding") == "" &&
		g.shouldCompressContentType()

	buffered := g.buffer
	g.buffer = nil

	if !g.shouldCompress {
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.ResponseWriter.Write(buffered)
		return err
	}

	g.Header().Del("Content-Length")
	g.Header().Set("Content-Encoding", "gzip")
	g.Header().Add("Vary", "Accept-Encoding")

	if g.config.Level == gzip.DefaultCompression {
		g.gzipWriter = gzipWriterPool.Get().(*gzip.Writer)
		g.gzipWriter.Reset(g.ResponseWriter)
		g.pooled = true
	} else {
		zw, err := gzip.NewWriterLevel(g.ResponseWriter, g.config.Level)
		if err != nil {
			zw = gzip.NewWriter(g.ResponseWriter)
		}
		g.gzipWriter = zw
	}

	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.gzipWriter.Write(buffered)
	return err
}

// Close finalizes the response and returns the gzip writer to the pool
func (g *gzipResponseWriter) Close() error {
	if !g.headerWritten {
		if err := g.finalize(); err != nil {
			return err
		}
	}

	if g.gzipWriter == nil {
		return nil
	}
	err := g.gzipWriter.Close()
	if g.pooled {
		gzipWriterPool.Put(g.gzipWriter)
	}
	g.gzipWriter = nil
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	if !g.headerWritten {
		_ = g.finalize()
	}
	if g.gzipWriter != nil {
		_ = g.gzipWriter.Flush()
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip. An
// explicit q=0 refuses it; "*" accepts it unless gzip is refused by name.
func acceptsGzip(header string) bool {
	wildcard := false
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		coding := strings.ToLower(strings.TrimSpace(fields[0]))
		if coding != "gzip" && coding != "*" {
			continue
		}

		allowed := true
		for _, param := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.ToLower(strings.TrimSpace(k)) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q == 0 {
				allowed = false
			}
		}

		if coding == "gzip" {
			return allowed
		}
		wildcard = allowed
	}
	return wildcard
}

func (c CompressionConfig) skip(path string) bool {
	for _, prefix := range c.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Compression returns a middleware that compresses responses using gzip
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r.Header.Get("Accept-Encoding")) ||
				r.Method == http.MethodHead ||
				r.Header.Get("Upgrade") != "" ||
				config.skip(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config)
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}
