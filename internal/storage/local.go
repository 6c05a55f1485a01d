package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"image-editor/internal/filesystem"
	"image-editor/internal/logging"
)

// maxUniqueAttempts bounds the -N suffix search for a free file name.
const maxUniqueAttempts = 1000

// ErrPathEscapes is returned for a relative path that resolves outside the root.
var ErrPathEscapes = errors.New("storage: path escapes uploads root")

// Local stores files under a root directory.
type Local struct {
	root    string
	baseURL string
	retry   filesystem.RetryConfig
	now     func() time.Time
}

// NewLocal creates a Local rooted at root, creating it when missing.
// baseURL is the public prefix under which root is served, e.g. "/uploads".
func NewLocal(root, baseURL string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   filesystem.DefaultRetryConfig(),
		now:     time.Now,
	}, nil
}

// Root returns the absolute uploads directory.
func (l *Local) Root() string { return l.root }

// Abs resolves rel against the root.
func (l *Local) Abs(rel string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if rel == "" || filepath.IsAbs(cleaned) || cleaned == "." {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, rel)
	}
	abs := filepath.Join(l.root, cleaned)
	if !strings.HasPrefix(abs, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, rel)
	}
	return abs, nil
}

// Stat returns the size of a stored file. Missing files yield an error
// matching os.ErrNotExist.
func (l *Local) Stat(rel string) (int64, error) {
	abs, err := l.Abs(rel)
	if err != nil {
		return 0, err
	}
	info, err := filesystem.StatWithRetry(abs, l.retry)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("storage: %s is a directory", rel)
	}
	return info.Size(), nil
}

// Open opens a stored file for reading.
func (l *Local) Open(rel string) (*os.File, error) {
	abs, err := l.Abs(rel)
	if err != nil {
		return nil, err
	}
	return filesystem.OpenWithRetry(abs, l.retry)
}

// Save writes data to a new file named after name (sanitized) in the current
// YYYY/MM directory. An existing file is never overwritten: "-1", "-2", ...
// is appended to the base name until a free name is found. It returns the
// relative path of the new file.
func (l *Local) Save(name string, data []byte) (string, error) {
	return l.SaveFrom(name, bytes.NewReader(data))
}

// SaveFrom is Save for a stream.
func (l *Local) SaveFrom(name string, r io.Reader) (string, error) {
	name = SanitizeFileName(name)
	dir := l.now().UTC().Format("2006/01")

	absDir := filepath.Join(l.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}

	f, rel, err := l.createUnique(dir, name)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		l.abandon(f, rel)
		return "", fmt.Errorf("storage: write %s: %w", rel, err)
	}
	if err := f.Sync(); err != nil {
		l.abandon(f, rel)
		return "", fmt.Errorf("storage: sync %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		_ = l.Delete(rel)
		return "", fmt.Errorf("storage: close %s: %w", rel, err)
	}

	logging.Debug("Stored %s", rel)
	return rel, nil
}

func (l *Local) createUnique(dir, name string) (*os.File, string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 0; i < maxUniqueAttempts; i++ {
		candidate := name
		if i > 0 {
			candidate = base + "-" + strconv.Itoa(i) + ext
		}
		rel := path.Join(dir, candidate)

		f, err := os.OpenFile(filepath.Join(l.root, filepath.FromSlash(rel)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, rel, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("storage: create %s: %w", rel, err)
		}
	}
	return nil, "", fmt.Errorf("storage: no free name for %s in %s", name, dir)
}

func (l *Local) abandon(f *os.File, rel string) {
	_ = f.Close()
	if err := l.Delete(rel); err != nil {
		logging.Warn("storage: failed to remove partial file %s: %v", rel, err)
	}
}

// Delete removes a stored file. Removing a missing file is not an error.
func (l *Local) Delete(rel string) error {
	abs, err := l.Abs(rel)
	if err != nil {
		return err
	}
	return filesystem.RemoveWithRetry(abs, l.retry)
}

// URL returns the public URL of a stored file.
func (l *Local) URL(rel string) string {
	return l.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(rel), "/")
}
