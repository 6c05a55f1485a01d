package handlers

import (
	"net/http"

	"image-editor/internal/startup"
)

// versionResponse is the build information plus the runtime choices an
// operator usually wants next to it.
type versionResponse struct {
	startup.BuildInfo
	ImageBackend   string `json:"imageBackend,omitempty"`
	RateLimitStore string `json:"rateLimitStore,omitempty"`
}

// GetVersion returns the application version, build information and the
// active image and counter backends.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	resp := versionResponse{
		BuildInfo:      startup.GetBuildInfo(),
		ImageBackend:   h.imageBackend,
		RateLimitStore: h.rateLimitStore,
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}
