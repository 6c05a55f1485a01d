package database

import (
	"context"
	"time"
)

// IncrementCounter atomically bumps the fixed-window counter for key and
// returns the new count. The first hit in a window, or the first after the
// previous window expired, starts a new window of length window. Later hits
// never move the expiry.
func (d *Database) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("increment_counter", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := d.now().UnixMilli()
	expires := now + window.Milliseconds()

	var count int64
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO rate_limits (key, count, expires_at) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET
			count = CASE WHEN rate_limits.expires_at <= ? THEN 1 ELSE rate_limits.count + 1 END,
			expires_at = CASE WHEN rate_limits.expires_at <= ? THEN excluded.expires_at ELSE rate_limits.expires_at END
		RETURNING count`,
		key, expires, now, now,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SweepCounters deletes expired counters and returns how many were removed.
func (d *Database) SweepCounters(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("sweep_counters", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, "DELETE FROM rate_limits WHERE expires_at <= ?", d.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
