package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"

	"image-editor/internal/logging"
)

// incrScript increments a counter and sets its expiry only on creation, so
// the window is fixed from the first request.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisConfig holds connection settings for the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) logFields() logging.Fields {
	pw := "<empty>"
	if c.Password != "" {
		pw = "[REDACTED]"
	}
	return logging.Fields{"addr": c.Addr, "db": c.DB, "password": pw}
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logging.Info("Connected to Redis %s", cfg.logFields())
	return client, nil
}

// RedisStore keeps counters in Redis, shared by every replica.
type RedisStore struct {
	client redis.Scripter
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.Scripter) *RedisStore {
	return &RedisStore{client: client}
}

// Name implements Store.
func (s *RedisStore) Name() string { return "redis" }

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis increment: %w", err)
	}
	return n, nil
}
