package handlers

import (
	"time"

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/nonce"
	"image-editor/internal/ratelimit"
	"image-editor/internal/storage"
)

// Deps are the collaborators a Handlers needs.
type Deps struct {
	DB        *database.Database
	Storage   *storage.Local
	Validator *editor.Validator
	Preview   *editor.PreviewPipeline
	Save      *editor.SavePipeline
	Limiter   *ratelimit.Limiter
	Nonces    *nonce.Manager
	Logins    *ratelimit.LoginGuard

	// SessionDuration is the sliding session lifetime.
	SessionDuration time.Duration
	// ImageBackend and RateLimitStore are reported by the health check.
	ImageBackend   string
	RateLimitStore string
}

type Handlers struct {
	db              *database.Database
	storage         *storage.Local
	validator       *editor.Validator
	preview         *editor.PreviewPipeline
	save            *editor.SavePipeline
	limiter         *ratelimit.Limiter
	nonces          *nonce.Manager
	logins          *ratelimit.LoginGuard
	sessionDuration time.Duration
	imageBackend    string
	rateLimitStore  string
	startedAt       time.Time
}

func New(d Deps) *Handlers {
	if d.SessionDuration <= 0 {
		d.SessionDuration = database.DefaultSessionDuration
	}
	return &Handlers{
		db:              d.DB,
		storage:         d.Storage,
		validator:       d.Validator,
		preview:         d.Preview,
		save:            d.Save,
		limiter:         d.Limiter,
		nonces:          d.Nonces,
		logins:          d.Logins,
		sessionDuration: d.SessionDuration,
		imageBackend:    d.ImageBackend,
		rateLimitStore:  d.RateLimitStore,
		startedAt:       time.Now(),
	}
}
