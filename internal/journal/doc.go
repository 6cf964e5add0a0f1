// Package journal persists door and lock transitions to SQLite for the
// history API. Every outbound publication from the bridge lands here as
// one row of (kind, value, created_at); retention is enforced by Prune.
package journal
