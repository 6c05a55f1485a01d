package editor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"image-editor/internal/database"
	"image-editor/internal/media"
	"image-editor/internal/memory"
	"image-editor/internal/storage"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 96, A: 255})
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

// fakeAssets is an in-memory attachment table.
type fakeAssets struct {
	mu        sync.Mutex
	rows      map[int64]*database.Attachment
	nextID    int64
	createErr error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{rows: make(map[int64]*database.Attachment), nextID: 100}
}

func (f *fakeAssets) GetAttachment(_ context.Context, id int64) (*database.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAssets) CreateAttachment(_ context.Context, a *database.Attachment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextID++
	cp := *a
	cp.ID = f.nextID
	f.rows[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeAssets) add(id int64, rel, mime string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[id] = &database.Attachment{ID: id, FilePath: rel, MimeType: mime, Title: filepath.Base(rel)}
}

func (f *fakeAssets) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// countingLibrary records how often the image library is asked to decode.
type countingLibrary struct {
	media.Library
	mu    sync.Mutex
	loads int
}

func (c *countingLibrary) Load(path string) (media.Handle, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.Library.Load(path)
}

func (c *countingLibrary) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// fixture wires a validator and both pipelines to a temp uploads dir.
type fixture struct {
	root    string
	files   *storage.Local
	assets  *fakeAssets
	lib     *countingLibrary
	v       *Validator
	preview *PreviewPipeline
	save    *SavePipeline
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()
	root := t.TempDir()
	files, err := storage.NewLocal(root, "/uploads")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	if limits.Memory.Ceiling == 0 {
		limits.Memory = memory.Budget{Ceiling: memory.DefaultCeiling, Source: "test"}
	}
	assets := newFakeAssets()
	lib := &countingLibrary{Library: media.NewImagingLibrary()}
	return &fixture{
		root:    root,
		files:   files,
		assets:  assets,
		lib:     lib,
		v:       NewValidator(assets, files, limits),
		preview: NewPreviewPipeline(lib, DefaultPreviewQuality),
		save:    NewSavePipeline(assets, files, limits, "https://media.example.com/"),
	}
}

// addImage writes data under the uploads root and registers it as id.
func (f *fixture) addImage(t *testing.T, id int64, rel string, data []byte) {
	t.Helper()
	abs := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		t.Fatal(err)
	}
	f.assets.add(id, rel, "image/png")
}

// storedFiles lists every regular file under the uploads root.
func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.Walk(f.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, _ := filepath.Rel(f.root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func wantKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want kind %s", kind)
	}
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error = %v (%T), want *Error", err, err)
	}
	if e.Kind != kind {
		t.Fatalf("kind = %s (%v), want %s", e.Kind, err, kind)
	}
	return e
}
