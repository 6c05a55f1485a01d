package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"image-editor/internal/logging"
	"image-editor/internal/metrics"
)

// Default policy: 30 requests per identity per action every 60 seconds.
const (
	DefaultLimit  = 30
	DefaultWindow = 60 * time.Second
)

// Store atomically increments fixed-window counters.
type Store interface {
	// Increment adds one to key and returns the new count. When key does not
	// exist or has expired, the count restarts at 1 with a lifetime of window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Name() string
}

// Policy is the ceiling for one action class.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// Identity is who a request is counted against.
type Identity struct {
	IP     string
	UserID int64
}

// Key returns the counter key for this identity and action.
func (id Identity) Key(action string) string {
	sum := sha256.Sum256([]byte(id.IP + "_" + strconv.FormatInt(id.UserID, 10) + "_" + action))
	return "aie_rate_" + hex.EncodeToString(sum[:])
}

// Limiter decides whether a request should be throttled.
type Limiter struct {
	store    Store
	fallback Policy
	policies map[string]Policy
}

// New creates a Limiter. Actions without an entry in policies use fallback.
func New(store Store, fallback Policy, policies map[string]Policy) *Limiter {
	if fallback.Limit <= 0 {
		fallback.Limit = DefaultLimit
	}
	if fallback.Window <= 0 {
		fallback.Window = DefaultWindow
	}
	p := make(map[string]Policy, len(policies))
	for action, policy := range policies {
		if policy.Limit <= 0 {
			policy.Limit = fallback.Limit
		}
		if policy.Window <= 0 {
			policy.Window = fallback.Window
		}
		p[action] = policy
	}
	return &Limiter{store: store, fallback: fallback, policies: p}
}

// Policy returns the policy applied to action.
func (l *Limiter) Policy(action string) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	return l.fallback
}

// ShouldThrottle counts the request and reports whether it exceeds the limit.
// Store failures allow the request.
func (l *Limiter) ShouldThrottle(ctx context.Context, id Identity, action string) bool {
	policy := l.Policy(action)

	count, err := l.store.Increment(ctx, id.Key(action), policy.Window)
	if err != nil {
		logging.WarnWith(logging.Fields{
			"store":  l.store.Name(),
			"action": action,
			"ip":     id.IP,
			"user":   id.UserID,
		}, "rate limit store unavailable, allowing request: %v", err)
		metrics.RateLimitStoreErrors.WithLabelValues(l.store.Name()).Inc()
		metrics.RateLimitDecisions.WithLabelValues(action, "fail_open").Inc()
		return false
	}

	if count > policy.Limit {
		logging.DebugWith(logging.Fields{
			"action": action,
			"ip":     id.IP,
			"user":   id.UserID,
			"count":  count,
		}, "rate limit exceeded")
		metrics.RateLimitDecisions.WithLabelValues(action, "throttled").Inc()
		return true
	}

	metrics.RateLimitDecisions.WithLabelValues(action, "allowed").Inc()
	return false
}
