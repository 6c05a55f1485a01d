package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultSessionDuration is how long a session lives without activity.
const DefaultSessionDuration = 7 * 24 * time.Hour

// ErrSessionExpired is returned for a session past its expiry.
var ErrSessionExpired = errors.New("session expired")

// Session is an authenticated login.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func hashToken(token string) (string, error) {
	raw, err := hex.DecodeString(token)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("invalid token format")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// CreateSession starts a session for userID. Only the SHA-256 of the token is
// stored; the returned Session carries the raw token for the client.
func (d *Database) CreateSession(ctx context.Context, userID int64, duration time.Duration) (*Session, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	sum := sha256.Sum256(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := d.now()
	expiresAt := now.Add(duration)

	res, err := d.db.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, hex.EncodeToString(sum[:]), expiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	id, _ := res.LastInsertId()

	return &Session{
		ID:        id,
		UserID:    userID,
		Token:     hex.EncodeToString(raw),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// ValidateSession returns the session's user when the token is live.
func (d *Database) ValidateSession(ctx context.Context, token string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_session", start, err) }()

	tokenHash, err := hashToken(token)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var expiresAt int64
	row := d.db.QueryRowContext(ctx, `
		SELECT s.expires_at, u.id, u.username, u.password_hash, u.capabilities, u.created_at, u.updated_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, tokenHash)

	var caps string
	var createdAt, updatedAt int64
	u := &User{}
	err = row.Scan(&expiresAt, &u.ID, &u.Username, &u.PasswordHash, &caps, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if d.now().Unix() > expiresAt {
		err = ErrSessionExpired
		return nil, err
	}

	u.Capabilities = splitCapabilities(caps)
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return u, nil
}

// ExtendSession pushes the expiry of a live session to now+duration.
func (d *Database) ExtendSession(ctx context.Context, token string, duration time.Duration) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("extend_session", start, err) }()

	tokenHash, err := hashToken(token)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := d.now()
	_, err = d.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ? AND expires_at >= ?",
		now.Add(duration).Unix(), tokenHash, now.Unix())
	return err
}

// DeleteSession ends a session.
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	tokenHash, err := hashToken(token)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", tokenHash)
	return err
}

// CleanExpiredSessions removes expired sessions and returns how many remain.
func (d *Database) CleanExpiredSessions(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clean_expired_sessions", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := d.now().Unix()
	if _, err = d.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", now); err != nil {
		return 0, err
	}

	var remaining int64
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&remaining)
	return remaining, err
}
