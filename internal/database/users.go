package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// CapabilityUploadFiles allows a user to upload, edit and save images.
const CapabilityUploadFiles = "upload_files"

// ErrInvalidCredentials is returned for an unknown user or wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// User is an account that can sign in.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Capabilities []string  `json:"capabilities"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Can reports whether the user holds capability.
func (u *User) Can(capability string) bool {
	if u == nil {
		return false
	}
	for _, c := range u.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func joinCapabilities(caps []string) string {
	seen := make(map[string]bool, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func splitCapabilities(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}

// HasUsers reports whether any account exists.
func (d *Database) HasUsers(ctx context.Context) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateUser creates an account with a bcrypt-hashed password.
func (d *Database) CreateUser(ctx context.Context, username, password string, capabilities []string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	username = strings.TrimSpace(username)
	if username == "" {
		err = fmt.Errorf("username is required")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	caps := joinCapabilities(capabilities)
	res, err := d.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, capabilities) VALUES (?, ?, ?)",
		username, string(hash), caps,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}

	now := d.now()
	return &User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		Capabilities: splitCapabilities(caps),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

const userColumns = "id, username, password_hash, capabilities, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var caps string
	var createdAt, updatedAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &caps, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Capabilities = splitCapabilities(caps)
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return &u, nil
}

// GetUser loads an account by username.
func (d *Database) GetUser(ctx context.Context, username string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_user", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var u *User
	u, err = scanUser(d.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", strings.TrimSpace(username)))
	return u, err
}

// ListUsers returns all accounts ordered by username.
func (d *Database) ListUsers(ctx context.Context) ([]User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_users", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u *User
		if u, err = scanUser(rows); err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	err = rows.Err()
	return users, err
}

// ValidateCredentials returns the user when password matches.
func (d *Database) ValidateCredentials(ctx context.Context, username, password string) (*User, error) {
	u, err := d.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// UpdatePassword changes a user's password and ends all of their sessions.
func (d *Database) UpdatePassword(ctx context.Context, username, newPassword string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_password", start, err) }()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE username = ?", strings.TrimSpace(username)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return err
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
		string(hash), id); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}

	err = tx.Commit()
	return err
}

// SetCapabilities replaces a user's capability list.
func (d *Database) SetCapabilities(ctx context.Context, username string, capabilities []string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_capabilities", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"UPDATE users SET capabilities = ?, updated_at = strftime('%s', 'now') WHERE username = ?",
		joinCapabilities(capabilities), strings.TrimSpace(username))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
	}
	return err
}
