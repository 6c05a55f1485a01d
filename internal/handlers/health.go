package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"image-editor/internal/logging"
	"image-editor/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`

	// Configuration summary
	ImageBackend   string `json:"imageBackend"`
	RateLimitStore string `json:"rateLimitStore"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalAssets int64 `json:"totalAssets"`
}

func (h *Handlers) pingDatabase(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.Ping(ctx)
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:         statusHealthy,
		Ready:          true,
		Version:        startup.Version,
		Uptime:         time.Since(h.startedAt).Round(time.Second).String(),
		Database:       "ok",
		ImageBackend:   h.imageBackend,
		RateLimitStore: h.rateLimitStore,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if err := h.pingDatabase(r.Context()); err != nil {
		logging.Warn("Health check: database unavailable: %v", err)
		response.Status = statusDegraded
		response.Ready = false
		response.Database = "unavailable"
	} else if n, err := h.db.CountAttachments(r.Context()); err == nil {
		response.TotalAssets = n
	}

	w.Header().Set("Content-Type", "application/json")
	if !response.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the database answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingDatabase(r.Context()); err != nil {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
		return
	}
	writeJSONStatus(w, http.StatusOK, "ready")
}
