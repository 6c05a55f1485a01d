package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(filepath.Join(t.TempDir(), "uploads"), "/uploads/")
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	l.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestSaveCreatesDatedUniqueFiles(t *testing.T) {
	l := newTestLocal(t)

	first, err := l.Save("photo-edited-1.jpg", []byte("one"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first != "2026/10/photo-edited-1.jpg" {
		t.Errorf("first = %q, want 2026/10/photo-edited-1.jpg", first)
	}

	second, err := l.Save("photo-edited-1.jpg", []byte("two"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if second != "2026/10/photo-edited-1-1.jpg" {
		t.Errorf("second = %q, want 2026/10/photo-edited-1-1.jpg", second)
	}

	abs, _ := l.Abs(first)
	data, err := os.ReadFile(abs)
	if err != nil || string(data) != "one" {
		t.Errorf("first file contents = %q, %v; want one", data, err)
	}
}

func TestStatAndDelete(t *testing.T) {
	l := newTestLocal(t)

	rel, err := l.Save("a.png", []byte("12345"))
	if err != nil {
		t.Fatal(err)
	}

	size, err := l.Stat(rel)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}

	if err := l.Delete(rel); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := l.Stat(rel); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(deleted) error = %v, want ErrNotExist", err)
	}
	if err := l.Delete(rel); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}

	if _, err := l.Stat("2026"); err == nil {
		t.Error("Stat(directory) should fail")
	}
}

func TestAbsRejectsEscapes(t *testing.T) {
	l := newTestLocal(t)

	for _, rel := range []string{"", ".", "../secret", "2026/../../etc/passwd", "/etc/passwd"} {
		if _, err := l.Abs(rel); !errors.Is(err, ErrPathEscapes) {
			t.Errorf("Abs(%q) error = %v, want ErrPathEscapes", rel, err)
		}
	}

	abs, err := l.Abs("2026/10/a.jpg")
	if err != nil {
		t.Fatalf("Abs() error = %v", err)
	}
	if !strings.HasPrefix(abs, l.Root()) {
		t.Errorf("Abs() = %q, want under %q", abs, l.Root())
	}
}

func TestURL(t *testing.T) {
	l := newTestLocal(t)
	if got := l.URL("2026/10/a.jpg"); got != "/uploads/2026/10/a.jpg" {
		t.Errorf("URL() = %q, want /uploads/2026/10/a.jpg", got)
	}
}

func TestOpen(t *testing.T) {
	l := newTestLocal(t)
	rel, err := l.Save("b.gif", []byte("GIF89a"))
	if err != nil {
		t.Fatal(err)
	}
	f, err := l.Open(rel)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f.Close()
}
