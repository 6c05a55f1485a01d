package handlers

import (
	"encoding/json"
	"net/http"

	"image-editor/internal/editor"
	"image-editor/internal/logging"
)

// envelope is the response body of every editor and asset endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type messageData struct {
	Message string `json:"message"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeSuccess writes {"success":true,"data":data} with the given status.
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	writeJSON(w, envelope{Success: true, Data: data})
}

// writeFailure writes {"success":false,"data":{"message":message}}.
func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	writeJSON(w, envelope{Success: false, Data: messageData{Message: message}})
}

// writeError writes err using the status for its kind and its client message.
func writeError(w http.ResponseWriter, err error) {
	writeFailure(w, statusFor(editor.KindOf(err)), editor.MessageOf(err))
}

// statusFor maps an error kind to an HTTP status. The body shape does not
// depend on it.
func statusFor(kind editor.Kind) int {
	switch kind {
	case editor.KindAuthorization, editor.KindSecurity:
		return http.StatusForbidden
	case editor.KindRateLimit:
		return http.StatusTooManyRequests
	case editor.KindValidation:
		return http.StatusBadRequest
	case editor.KindNotFound:
		return http.StatusNotFound
	case editor.KindDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"status": status})
}
