package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// loginIdleTTL is how long an idle client's bucket is kept.
const loginIdleTTL = 10 * time.Minute

type loginBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginGuard throttles password attempts per client IP with a token bucket
// that refills perMinute tokens a minute.
type LoginGuard struct {
	mu        sync.Mutex
	buckets   map[string]*loginBucket
	perMinute int
	now       func() time.Time
}

// NewLoginGuard creates a LoginGuard. perMinute below 1 is treated as 1.
func NewLoginGuard(perMinute int) *LoginGuard {
	if perMinute < 1 {
		perMinute = 1
	}
	return &LoginGuard{
		buckets:   make(map[string]*loginBucket),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow consumes one attempt for ip and reports whether it may proceed.
func (g *LoginGuard) Allow(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, ok := g.buckets[ip]
	if !ok {
		b = &loginBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(g.perMinute)), g.perMinute),
		}
		g.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than loginIdleTTL.
func (g *LoginGuard) Sweep(_ context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-loginIdleTTL)
	var removed int64
	for ip, b := range g.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(g.buckets, ip)
			removed++
		}
	}
	return removed, nil
}
