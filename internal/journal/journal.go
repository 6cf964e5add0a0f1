package journal

import (
	"context"
	"time"
)

// Entry is one recorded transition: a door state change, a mode change,
// a relay level change, a lock command or an inbound lock state.
type Entry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and queries transition entries.
type Store interface {
	// RecordTransition appends an entry.
	RecordTransition(ctx context.Context, kind, value string) error

	// Recent returns the newest entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Prune deletes entries older than the given retention and returns
	// how many were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
