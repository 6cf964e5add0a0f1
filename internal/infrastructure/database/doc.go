// Package database provides SQLite connection management for Doorkeeper.
//
// It wraps database/sql with lifecycle management tuned for SQLite:
// WAL journaling, a single-writer connection pool, busy-timeout handling,
// and restrictive file permissions. The transition journal
// (internal/journal) builds its schema on top of this package.
package database
