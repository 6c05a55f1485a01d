package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestDB(t *testing.T) (*Database, *fakeClock) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "editor.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	db.now = clock.Now
	return db, clock
}

func TestNewCreatesSchema(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for _, table := range []string{"users", "sessions", "attachments", "rate_limits", "metadata"} {
		var name string
		err := db.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	if err := db.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "editor.db")
	ctx := context.Background()

	first, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.CreateUser(ctx, "alice", "pw", nil); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	ok, err := second.HasUsers(ctx)
	if err != nil || !ok {
		t.Errorf("HasUsers() = %v, %v; want true", ok, err)
	}
}

func TestNewRejectsMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "editor.db"))
	if err == nil {
		t.Error("New() in a missing directory should fail")
	}
}

func TestUserCredentials(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, "editor", "s3cret", []string{CapabilityUploadFiles, " ", CapabilityUploadFiles})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if !u.Can(CapabilityUploadFiles) {
		t.Errorf("Capabilities = %v, want upload_files", u.Capabilities)
	}
	if len(u.Capabilities) != 1 {
		t.Errorf("Capabilities = %v, want deduplicated", u.Capabilities)
	}

	if _, err := db.CreateUser(ctx, "EDITOR", "x", nil); err == nil {
		t.Error("usernames should be unique case-insensitively")
	}

	got, err := db.ValidateCredentials(ctx, "editor", "s3cret")
	if err != nil {
		t.Fatalf("ValidateCredentials() error = %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %d, want %d", got.ID, u.ID)
	}

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "editor", "nope"},
		{"unknown user", "ghost", "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ValidateCredentials(ctx, tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestSetCapabilities(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.CreateUser(ctx, "viewer", "pw", nil); err != nil {
		t.Fatal(err)
	}
	if err := db.SetCapabilities(ctx, "viewer", []string{CapabilityUploadFiles}); err != nil {
		t.Fatalf("SetCapabilities() error = %v", err)
	}

	u, err := db.GetUser(ctx, "viewer")
	if err != nil {
		t.Fatal(err)
	}
	if !u.Can(CapabilityUploadFiles) {
		t.Errorf("Capabilities = %v, want upload_files", u.Capabilities)
	}

	if err := db.SetCapabilities(ctx, "ghost", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetCapabilities(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db, clock := setupTestDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, "editor", "pw", []string{CapabilityUploadFiles})
	if err != nil {
		t.Fatal(err)
	}

	s, err := db.CreateSession(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if len(s.Token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(s.Token))
	}

	got, err := db.ValidateSession(ctx, s.Token)
	if err != nil {
		t.Fatalf("ValidateSession() error = %v", err)
	}
	if got.Username != "editor" || !got.Can(CapabilityUploadFiles) {
		t.Errorf("ValidateSession() user = %+v", got)
	}

	clock.Advance(50 * time.Minute)
	if err := db.ExtendSession(ctx, s.Token, time.Hour); err != nil {
		t.Fatalf("ExtendSession() error = %v", err)
	}
	clock.Advance(50 * time.Minute)
	if _, err := db.ValidateSession(ctx, s.Token); err != nil {
		t.Errorf("extended session should still be valid: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := db.ValidateSession(ctx, s.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("error = %v, want ErrSessionExpired", err)
	}

	remaining, err := db.CleanExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredSessions() error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
	if _, err := db.ValidateSession(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound after cleanup", err)
	}
}

func TestValidateSessionBadTokens(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for _, token := range []string{"", "zz-not-hex", "abcd"} {
		if _, err := db.ValidateSession(ctx, token); err == nil {
			t.Errorf("ValidateSession(%q) should fail", token)
		}
	}
}

func TestDeleteSessionAndPasswordReset(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, "editor", "old", nil)
	if err != nil {
		t.Fatal(err)
	}

	s1, _ := db.CreateSession(ctx, u.ID, time.Hour)
	s2, _ := db.CreateSession(ctx, u.ID, time.Hour)

	if err := db.DeleteSession(ctx, s1.Token); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := db.ValidateSession(ctx, s1.Token); err == nil {
		t.Error("deleted session should be invalid")
	}

	if err := db.UpdatePassword(ctx, "editor", "new"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	if _, err := db.ValidateSession(ctx, s2.Token); err == nil {
		t.Error("password reset should end existing sessions")
	}
	if _, err := db.ValidateCredentials(ctx, "editor", "new"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err := db.UpdatePassword(ctx, "ghost", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePassword(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestAttachmentCRUD(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	parent := int64(9)
	id, err := db.CreateAttachment(ctx, &Attachment{
		FilePath: "2026/10/photo.jpg",
		MimeType: "image/jpeg",
		Title:    "photo",
		ParentID: &parent,
		ByteSize: 2048,
		Width:    640,
		Height:   480,
	})
	if err != nil {
		t.Fatalf("CreateAttachment() error = %v", err)
	}

	a, err := db.GetAttachment(ctx, id)
	if err != nil {
		t.Fatalf("GetAttachment() error = %v", err)
	}
	if a.FilePath != "2026/10/photo.jpg" || a.Width != 640 || a.Height != 480 || a.ByteSize != 2048 {
		t.Errorf("GetAttachment() = %+v", a)
	}
	if a.ParentID == nil || *a.ParentID != 9 {
		t.Errorf("ParentID = %v, want 9", a.ParentID)
	}

	orphanID, err := db.CreateAttachment(ctx, &Attachment{FilePath: "2026/10/photo-edited.jpg", MimeType: "image/jpeg", Title: "photo (Edited)"})
	if err != nil {
		t.Fatal(err)
	}
	orphan, err := db.GetAttachment(ctx, orphanID)
	if err != nil {
		t.Fatal(err)
	}
	if orphan.ParentID != nil {
		t.Errorf("ParentID = %v, want nil", *orphan.ParentID)
	}

	if _, err := db.CreateAttachment(ctx, &Attachment{FilePath: "2026/10/photo.jpg", MimeType: "image/jpeg", Title: "dup"}); err == nil {
		t.Error("duplicate file path should be rejected")
	}

	if n, _ := db.CountAttachments(ctx); n != 2 {
		t.Errorf("CountAttachments() = %d, want 2", n)
	}

	paths, err := db.AttachmentPaths(ctx)
	if err != nil {
		t.Fatalf("AttachmentPaths() error = %v", err)
	}
	for _, p := range []string{"2026/10/photo.jpg", "2026/10/photo-edited.jpg"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("AttachmentPaths() missing %s", p)
		}
	}

	if err := db.DeleteAttachment(ctx, id); err != nil {
		t.Fatalf("DeleteAttachment() error = %v", err)
	}
	if _, err := db.GetAttachment(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAttachment(deleted) error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteAttachment(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteAttachment(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestIncrementCounterFixedWindow(t *testing.T) {
	db, clock := setupTestDB(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := db.IncrementCounter(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter() error = %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
		clock.Advance(10 * time.Second)
	}

	if got, _ := db.IncrementCounter(ctx, "other", time.Minute); got != 1 {
		t.Errorf("independent key count = %d, want 1", got)
	}

	// The window opened at the first hit; later hits must not extend it.
	clock.Advance(30 * time.Second)
	got, err := db.IncrementCounter(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("count after window = %d, want 1", got)
	}

	clock.Advance(2 * time.Minute)
	removed, err := db.SweepCounters(ctx)
	if err != nil {
		t.Fatalf("SweepCounters() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
}

func TestIncrementCounterConcurrent(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.IncrementCounter(ctx, "shared", time.Minute); err != nil {
				t.Errorf("IncrementCounter() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := db.IncrementCounter(ctx, "shared", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != 21 {
		t.Errorf("count = %d, want 21", got)
	}
}
