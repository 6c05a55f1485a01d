package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"image-editor/internal/logging"
	"image-editor/internal/metrics"
	"image-editor/internal/workers"
)

const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Database manages all database operations for the image editor.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

// New opens (creating if needed) the database file at dbPath. The parent
// directory must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(workers.ForIO(16))
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath, now: time.Now}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL UNIQUE,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_path TEXT NOT NULL UNIQUE,
		mime_type TEXT NOT NULL,
		title TEXT NOT NULL,
		excerpt TEXT NOT NULL DEFAULT '',
		parent_id INTEGER,
		byte_size INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		author_id INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_parent ON attachments(parent_id);

	CREATE TABLE IF NOT EXISTS rate_limits (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_limits_expires ON rate_limits(expires_at);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return d.runMigrations(ctx)
}

// runMigrations adds columns introduced after the first schema.
func (d *Database) runMigrations(ctx context.Context) error {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('users')
		WHERE name='capabilities'
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for capabilities column: %w", err)
	}

	if !exists {
		logging.Info("Migrating database: adding capabilities column to users table")
		if _, err := d.db.ExecContext(ctx,
			`ALTER TABLE users ADD COLUMN capabilities TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("failed to add capabilities column: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection, for readiness probes.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateDBMetrics publishes connection pool statistics.
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, info.Mode())

	probe := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(probe)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := dbPath + suffix
		fi, err := os.Stat(p)
		if err != nil {
			continue
		}
		if fi.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only (mode %v), writes will fail", p, fi.Mode())
		}
	}
	return nil
}
