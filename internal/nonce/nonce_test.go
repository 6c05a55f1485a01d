package nonce

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*Manager, *time.Time) {
	t.Helper()
	m, err := NewManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestCreateVerify(t *testing.T) {
	m, _ := newTestManager(t)

	n, err := m.Create("session-a", "image_editor")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Verify(n, "session-a", "image_editor"); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestVerifyRejects(t *testing.T) {
	m, _ := newTestManager(t)
	n, err := m.Create("session-a", "image_editor")
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewManager("other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	forged, _ := other.Create("session-a", "image_editor")

	// Payload of a nonce for another action with the original signature.
	swapped, _ := m.Create("session-a", "other_action")
	sp := strings.Split(swapped, ".")
	np := strings.Split(n, ".")
	tampered := sp[0] + "." + sp[1] + "." + np[2]

	tests := []struct {
		name    string
		nonce   string
		session string
		action  string
	}{
		{"empty", "", "session-a", "image_editor"},
		{"garbage", "abc.def.ghi", "session-a", "image_editor"},
		{"other session", n, "session-b", "image_editor"},
		{"other action", n, "session-a", "delete_everything"},
		{"other secret", forged, "session-a", "image_editor"},
		{"tampered", tampered, "session-a", "other_action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Verify(tt.nonce, tt.session, tt.action); !errors.Is(err, ErrInvalid) {
				t.Errorf("Verify() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	m, now := newTestManager(t)
	n, err := m.Create("s", "image_editor")
	if err != nil {
		t.Fatal(err)
	}

	*now = now.Add(59 * time.Minute)
	if err := m.Verify(n, "s", "image_editor"); err != nil {
		t.Errorf("Verify() before expiry error = %v", err)
	}

	*now = now.Add(2 * time.Minute)
	if err := m.Verify(n, "s", "image_editor"); !errors.Is(err, ErrInvalid) {
		t.Errorf("Verify() after expiry error = %v, want ErrInvalid", err)
	}
}

func TestRandomSecret(t *testing.T) {
	a, err := NewManager("", 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewManager("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.lifetime != DefaultLifetime {
		t.Errorf("lifetime = %v, want %v", a.lifetime, DefaultLifetime)
	}

	n, _ := a.Create("s", "image_editor")
	if err := b.Verify(n, "s", "image_editor"); err == nil {
		t.Error("nonce from one random secret verified under another")
	}
}
