package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"image-editor/internal/database"
	"image-editor/internal/editor"
	"image-editor/internal/media"
	"image-editor/internal/memory"
	"image-editor/internal/nonce"
	"image-editor/internal/ratelimit"
	"image-editor/internal/storage"
)

const testPassword = "correct horse battery"

// testEnv is a fully wired Handlers backed by a temp SQLite database and
// uploads directory.
type testEnv struct {
	h       *Handlers
	db      *database.Database
	files   *storage.Local
	nonces  *nonce.Manager
	uploads string

	editorUser *database.User
	editorTok  string
	viewerUser *database.User
	viewerTok  string
}

type envOption func(*Deps, *editor.Limits)

func withLimits(fn func(*editor.Limits)) envOption {
	return func(_ *Deps, l *editor.Limits) { fn(l) }
}

func withLimiter(l *ratelimit.Limiter) envOption {
	return func(d *Deps, _ *editor.Limits) { d.Limiter = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	tmpDir := t.TempDir()
	uploads := filepath.Join(tmpDir, "uploads")

	db, err := database.New(context.Background(), filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.NewLocal(uploads, "/uploads")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	nonces, err := nonce.NewManager("test-secret", 0)
	if err != nil {
		t.Fatalf("Failed to create nonce manager: %v", err)
	}

	limits := editor.DefaultLimits()
	limits.Memory = memory.Budget{Ceiling: memory.DefaultCeiling, Source: "test"}

	deps := Deps{
		DB:              db,
		Storage:         files,
		Nonces:          nonces,
		Logins:          ratelimit.NewLoginGuard(5),
		SessionDuration: time.Hour,
		ImageBackend:    media.BackendImaging,
		RateLimitStore:  "memory",
		Limiter: ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Policy{}, map[string]ratelimit.Policy{
			editor.ActionPreview: {Limit: 30, Window: time.Minute},
			editor.ActionSave:    {Limit: 30, Window: time.Minute},
		}),
	}
	for _, opt := range opts {
		opt(&deps, &limits)
	}

	deps.Validator = editor.NewValidator(db, files, limits)
	deps.Preview = editor.NewPreviewPipeline(media.NewImagingLibrary(), editor.DefaultPreviewQuality)
	deps.Save = editor.NewSavePipeline(db, files, limits, "https://media.example.com")

	env := &testEnv{
		h:       New(deps),
		db:      db,
		files:   files,
		nonces:  nonces,
		uploads: uploads,
	}
	env.editorUser, env.editorTok = env.createUser(t, "editor", database.CapabilityUploadFiles)
	env.viewerUser, env.viewerTok = env.createUser(t, "viewer")
	return env
}

func (e *testEnv) createUser(t *testing.T, name string, caps ...string) (*database.User, string) {
	t.Helper()
	ctx := context.Background()
	u, err := e.db.CreateUser(ctx, name, testPassword, caps)
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	s, err := e.db.CreateSession(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession(%s) error = %v", name, err)
	}
	return u, s.Token
}

func (e *testEnv) nonceFor(t *testing.T, token string) string {
	t.Helper()
	n, err := e.nonces.Create(token, editor.NonceAction)
	if err != nil {
		t.Fatalf("nonce.Create() error = %v", err)
	}
	return n
}

// addImage stores a generated PNG and records it as an asset.
func (e *testEnv) addImage(t *testing.T, name string, width, height int) int64 {
	t.Helper()
	data := encodePNG(t, width, height)
	rel, err := e.files.Save(name, data)
	if err != nil {
		t.Fatalf("storage.Save() error = %v", err)
	}
	id, err := e.db.CreateAttachment(context.Background(), &database.Attachment{
		FilePath: rel,
		MimeType: "image/png",
		Title:    storage.BaseName(name),
		ByteSize: int64(len(data)),
		Width:    width,
		Height:   height,
	})
	if err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}
	return id
}

// storedFiles lists every regular file under the uploads root.
func (e *testEnv) storedFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(e.uploads, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(e.uploads, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func (e *testEnv) countAssets(t *testing.T) int64 {
	t.Helper()
	n, err := e.db.CountAttachments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func withCookie(req *http.Request, token string) *http.Request {
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
	return req
}

// postForm sends a form-encoded editor request as the holder of token.
func (e *testEnv) postForm(t *testing.T, token string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/editor", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "198.51.100.20:40000"
	w := httptest.NewRecorder()
	e.h.EditorAction(w, withCookie(req, token))
	return w
}

// postJSON sends a JSON editor request as the holder of token.
func (e *testEnv) postJSON(t *testing.T, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/editor", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.20:40000"
	w := httptest.NewRecorder()
	e.h.EditorAction(w, withCookie(req, token))
	return w
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// decodeEnvelope checks the status code and returns the envelope data.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantSuccess bool) json.RawMessage {
	t.Helper()
	if w.Code != wantStatus {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, wantStatus, w.Body.String())
	}
	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope %q: %v", w.Body.String(), err)
	}
	if env.Success != wantSuccess {
		t.Fatalf("success = %v, want %v (body %s)", env.Success, wantSuccess, w.Body.String())
	}
	return env.Data
}

// failureMessage checks a failure envelope and returns its message.
func failureMessage(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) string {
	t.Helper()
	data := decodeEnvelope(t, w, wantStatus, false)
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid failure data %s: %v", data, err)
	}
	return m.Message
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
