package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver registration
)

const (
	dirPerm  = 0750
	filePerm = 0600

	// openTimeout bounds the connectivity probe in Open.
	openTimeout = 5 * time.Second
)

// Config mirrors the database section of config.yaml.
type Config struct {
	// Path to the SQLite file; parent directories are created on open.
	Path string

	// WALMode switches the journal to write-ahead logging so history
	// reads do not block journal writes.
	WALMode bool

	// BusyTimeout in seconds before a locked database errors out.
	BusyTimeout int
}

// DB holds the SQLite connection backing the transition journal.
// The embedded *sql.DB is handed to the journal store directly; this
// wrapper only owns open/close and the health probe.
type DB struct {
	*sql.DB
	path string
}

// Open creates the database file (and its directory) if needed,
// applies the pragmas from cfg and verifies connectivity. The pool is
// pinned to one connection: SQLite allows a single writer and the
// journal is the only user.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close() //nolint:errcheck // already on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// Lock state history is not public; keep the file owner-only. On
	// the very first open the file may not exist until the first write,
	// in which case this is a no-op.
	_ = os.Chmod(cfg.Path, filePerm) //nolint:errcheck

	return &DB{DB: conn, path: cfg.Path}, nil
}

// Close releases the connection. Safe to call on a nil-backed DB.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to confirm the database answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
