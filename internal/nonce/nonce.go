// Package nonce issues and verifies short-lived, action-bound request tokens.
//
// A nonce is an HS256 JWT naming the action it authorizes and bound to the
// caller's session by a hash of the session token. It proves the request came
// from a page this server rendered for that session; it is not a credential.
package nonce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLifetime matches a two-tick validity of twelve hours each.
const DefaultLifetime = 24 * time.Hour

// ErrInvalid is returned for any nonce that fails verification.
var ErrInvalid = errors.New("invalid nonce")

type claims struct {
	Action  string `json:"act"`
	Session string `json:"sid"`
	jwt.RegisteredClaims
}

// Manager signs and checks nonces with a shared secret.
type Manager struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewManager creates a Manager. An empty secret generates a random one, which
// invalidates outstanding nonces on restart.
func NewManager(secret string, lifetime time.Duration) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate nonce secret: %w", err)
		}
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Manager{secret: key, lifetime: lifetime, now: time.Now}, nil
}

// Lifetime is how long issued nonces stay valid.
func (m *Manager) Lifetime() time.Duration { return m.lifetime }

func sessionBinding(sessionToken string) string {
	sum := sha256.Sum256([]byte(sessionToken))
	return hex.EncodeToString(sum[:16])
}

// Create issues a nonce for action, bound to sessionToken.
func (m *Manager) Create(sessionToken, action string) (string, error) {
	now := m.now()
	c := claims{
		Action:  action,
		Session: sessionBinding(sessionToken),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign nonce: %w", err)
	}
	return signed, nil
}

// Verify checks that nonce was issued for action and sessionToken and has not
// expired.
func (m *Manager) Verify(nonce, sessionToken, action string) error {
	if nonce == "" {
		return ErrInvalid
	}

	var c claims
	_, err := jwt.ParseWithClaims(nonce, &c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if c.Action != action || c.Session != sessionBinding(sessionToken) {
		return ErrInvalid
	}
	return nil
}
