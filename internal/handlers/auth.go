package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/logging"
	"image-editor/internal/metrics"
	"image-editor/internal/ratelimit"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "image_editor_session"

	msgLoginRequired  = "Authentication required."
	msgInvalidLogin   = "Invalid username or password."
	msgTooManyLogins  = "Too many login attempts. Please wait a minute before trying again."
	msgInvalidRequest = "Invalid request body."
)

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is the data part of a successful auth response
type AuthResponse struct {
	Username     string   `json:"username,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	ExpiresIn    int      `json:"expiresIn,omitempty"` // Seconds until session expires
	Message      string   `json:"message,omitempty"`
}

type sessionKey struct{}

// session is the authenticated caller of a request.
type session struct {
	user  *database.User
	token string
}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

// authenticate resolves the session cookie. A nil session means the request
// is anonymous or the session is no longer valid.
func (h *Handlers) authenticate(w http.ResponseWriter, r *http.Request) *session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	user, err := h.db.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) && !errors.Is(err, database.ErrSessionExpired) {
			logging.Warn("Session lookup failed: %v", err)
		}
		h.clearSessionCookie(w)
		return nil
	}

	// Extend session (sliding expiration)
	if err := h.db.ExtendSession(r.Context(), cookie.Value, h.sessionDuration); err != nil {
		logging.Debug("Failed to extend session: %v", err)
	} else {
		h.setSessionCookie(w, cookie.Value, time.Now().Add(h.sessionDuration))
	}

	return &session{user: user, token: cookie.Value}
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// RequireCapability protects routes that need a signed-in user holding
// capability. The session is available to the wrapped handler.
func (h *Handlers) RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := h.authenticate(w, r)
			if s == nil {
				writeFailure(w, http.StatusUnauthorized, msgLoginRequired)
				return
			}
			if capability != "" && !s.user.Can(capability) {
				writeError(w, editor.ErrUnauthorized())
				return
			}
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
		})
	}
}

// Login authenticates with username and password
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := ratelimit.ClientIP(r)

	if h.logins != nil && !h.logins.Allow(ip) {
		logging.WarnWith(logging.Fields{"ip": ip}, "Login attempts throttled")
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		writeFailure(w, http.StatusTooManyRequests, msgTooManyLogins)
		return
	}

	var req LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)

	user, err := h.db.ValidateCredentials(ctx, req.Username, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, database.ErrInvalidCredentials) {
			logging.WarnWith(logging.Fields{"ip": ip, "user": req.Username}, "Failed login attempt")
			writeFailure(w, http.StatusUnauthorized, msgInvalidLogin)
			return
		}
		logging.Error("Failed to validate credentials: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Failed to sign in.")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	sess, err := h.db.CreateSession(ctx, user.ID, h.sessionDuration)
	if err != nil {
		logging.Error("Failed to create session: %v", err)
		writeFailure(w, http.StatusInternalServerError, "Failed to create session.")
		return
	}

	h.setSessionCookie(w, sess.Token, sess.ExpiresAt)

	logging.Info("User %s logged in, session expires in %v", user.Username, h.sessionDuration)

	writeSuccess(w, http.StatusOK, AuthResponse{
		Username:     user.Username,
		Capabilities: user.Capabilities,
		ExpiresIn:    int(h.sessionDuration.Seconds()),
	})
}

// Logout ends the current session
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err == nil && cookie.Value != "" {
		// Best-effort session cleanup - don't fail logout if this errors
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			logging.Debug("failed to delete session during logout: %v", err)
		}
	}

	h.clearSessionCookie(w)

	writeSuccess(w, http.StatusOK, AuthResponse{Message: "Logged out successfully"})
}

// CheckAuth verifies the current session
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	s := h.authenticate(w, r)
	if s == nil {
		writeFailure(w, http.StatusUnauthorized, msgLoginRequired)
		return
	}

	writeSuccess(w, http.StatusOK, AuthResponse{
		Username:     s.user.Username,
		Capabilities: s.user.Capabilities,
		ExpiresIn:    int(h.sessionDuration.Seconds()),
	})
}
