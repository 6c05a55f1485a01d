package handlers

import (
	"net/http"

	"image-editor/internal/editor"
	"image-editor/internal/logging"
)

type nonceResponse struct {
	Nonce     string `json:"nonce"`
	Action    string `json:"action"`
	ExpiresIn int    `json:"expiresIn"`
}

// EditorNonce issues the token the editor page sends with every action. It
// must be wrapped by RequireCapability.
func (h *Handlers) EditorNonce(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r.Context())
	if s == nil {
		writeFailure(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	token, err := h.nonces.Create(s.token, editor.NonceAction)
	if err != nil {
		logging.Error("Failed to issue editor nonce: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Failed to issue security token.")
		return
	}

	writeSuccess(w, http.StatusOK, nonceResponse{
		Nonce:     token,
		Action:    editor.NonceAction,
		ExpiresIn: int(h.nonces.Lifetime().Seconds()),
	})
}
