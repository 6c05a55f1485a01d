package ratelimit

import (
	"context"
	"time"
)

// CounterDB is the part of the database used for counters.
type CounterDB interface {
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)
	SweepCounters(ctx context.Context) (int64, error)
}

// SQLiteStore keeps counters in the rate_limits table.
type SQLiteStore struct {
	db CounterDB
}

// NewSQLiteStore wraps db.
func NewSQLiteStore(db CounterDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Name implements Store.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Increment implements Store.
func (s *SQLiteStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.db.IncrementCounter(ctx, key, window)
}

// Sweep implements Sweeper.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	return s.db.SweepCounters(ctx)
}
