package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type countingObserver struct {
	mu       sync.Mutex
	attempts int
	stale    int
	failures int
	success  int
}

func (o *countingObserver) ObserveRetryAttempt(string, string) {
	o.mu.Lock()
	o.attempts++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveRetrySuccess(string, string) {
	o.mu.Lock()
	o.success++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveRetryFailure(string, string) {
	o.mu.Lock()
	o.failures++
	o.mu.Unlock()
}

func (o *countingObserver) ObserveRetryDuration(string, string, float64) {}

func (o *countingObserver) ObserveStaleError(string, string) {
	o.mu.Lock()
	o.stale++
	o.mu.Unlock()
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"generic", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestVolumeResolverResolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"uploads":  "/data/uploads",
		"edited":   "/data/uploads/edited",
		"database": "/database",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/data/uploads/2026/10/a.jpg", "uploads"},
		{"/data/uploads/edited/b.png", "edited"},
		{"/data/uploads", "uploads"},
		{"/database/editor.db", "database"},
		{"/data/uploadsX/c.jpg", "unknown"},
		{"/tmp/other", "unknown"},
	}

	for _, tt := range tests {
		if got := vr.Resolve(tt.path); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}

	var nilResolver *VolumeResolver
	if got := nilResolver.Resolve("/data/uploads"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestStatWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry() error = %v", err)
	}
	if info.Size() != 5 {
		t.Errorf("Size() = %d, want 5", info.Size())
	}

	_, err = StatWithRetry(filepath.Join(dir, "missing"), DefaultRetryConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("StatWithRetry(missing) error = %v, want ErrNotExist", err)
	}
}

func TestOpenWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry() error = %v", err)
	}
	f.Close()

	if _, err := OpenWithRetry(filepath.Join(dir, "missing"), DefaultRetryConfig()); err == nil {
		t.Error("OpenWithRetry(missing) should fail")
	}
}

func TestRemoveWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); err != nil {
		t.Fatalf("RemoveWithRetry() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}
	if err := RemoveWithRetry(path, DefaultRetryConfig()); err != nil {
		t.Errorf("RemoveWithRetry(missing) error = %v, want nil", err)
	}
}

func TestRetryStaleErrors(t *testing.T) {
	obs := &countingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	config := RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	calls := 0
	err := retry("stat", "/x", config, func() error {
		calls++
		if calls < 3 {
			return syscall.ESTALE
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.stale != 2 || obs.attempts != 2 || obs.success != 1 {
		t.Errorf("observer = %+v, want 2 stale, 2 attempts, 1 success", obs)
	}

	calls = 0
	err = retry("stat", "/x", config, func() error {
		calls++
		return syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("retry() error = %v, want ESTALE", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if obs.failures != 1 {
		t.Errorf("failures = %d, want 1", obs.failures)
	}
}
