package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"image-editor/internal/storage"
)

type fakeAssets struct {
	paths map[string]struct{}
	err   error
}

func (f fakeAssets) AttachmentPaths(context.Context) (map[string]struct{}, error) {
	return f.paths, f.err
}

// writeFile creates rel under root with the given age.
func writeFile(t *testing.T, root, rel string, age time.Duration) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func setupReconciler(t *testing.T, known ...string) (*Reconciler, string) {
	t.Helper()
	root := t.TempDir()
	files, err := storage.NewLocal(root, "/uploads")
	if err != nil {
		t.Fatal(err)
	}

	paths := make(map[string]struct{}, len(known))
	for _, p := range known {
		paths[p] = struct{}{}
	}
	return New(fakeAssets{paths: paths}, files, time.Hour), files.Root()
}

func TestOrphans(t *testing.T) {
	r, root := setupReconciler(t, "2026/10/kept.jpg")

	writeFile(t, root, "2026/10/kept.jpg", 48*time.Hour)
	writeFile(t, root, "2026/10/orphan.jpg", 48*time.Hour)
	writeFile(t, root, "2026/09/old-orphan.png", 48*time.Hour)
	writeFile(t, root, "2026/10/in-flight.jpg", time.Minute)
	writeFile(t, root, ".cache/hidden.jpg", 48*time.Hour)
	writeFile(t, root, "2026/10/.partial", 48*time.Hour)

	got, err := r.Orphans(context.Background())
	if err != nil {
		t.Fatalf("Orphans() error = %v", err)
	}
	sort.Strings(got)

	want := []string{"2026/09/old-orphan.png", "2026/10/orphan.jpg"}
	if len(got) != len(want) {
		t.Fatalf("Orphans() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Orphans()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSweepRemovesOnlyOrphans(t *testing.T) {
	r, root := setupReconciler(t, "2026/10/kept.jpg")

	writeFile(t, root, "2026/10/kept.jpg", 48*time.Hour)
	writeFile(t, root, "2026/10/orphan.jpg", 48*time.Hour)
	writeFile(t, root, "2026/10/in-flight.jpg", time.Minute)

	removed, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}

	for rel, wantExists := range map[string]bool{
		"2026/10/kept.jpg":      true,
		"2026/10/orphan.jpg":    false,
		"2026/10/in-flight.jpg": true,
	} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		if exists := err == nil; exists != wantExists {
			t.Errorf("%s exists = %v, want %v", rel, exists, wantExists)
		}
	}

	// A second pass finds nothing.
	if removed, _ := r.Sweep(context.Background()); removed != 0 {
		t.Errorf("second Sweep() removed %d", removed)
	}
}

func TestOrphansListError(t *testing.T) {
	files, err := storage.NewLocal(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatal(err)
	}
	r := New(fakeAssets{err: errors.New("db down")}, files, 0)

	if _, err := r.Sweep(context.Background()); err == nil {
		t.Error("Expected error when asset paths cannot be listed")
	}
}

func TestOrphansCancelled(t *testing.T) {
	r, root := setupReconciler(t)
	writeFile(t, root, "2026/10/orphan.jpg", 48*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Orphans(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Orphans() error = %v, want context.Canceled", err)
	}
}

func TestNewDefaultGrace(t *testing.T) {
	r := New(fakeAssets{}, nil, 0)
	if r.grace != DefaultGracePeriod {
		t.Errorf("grace = %v, want %v", r.grace, DefaultGracePeriod)
	}
}
