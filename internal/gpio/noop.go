package gpio

import (
	"time"

	"github.com/openhold/doorkeeper/internal/door"
)

// Noop is a Board that drives nothing. Used when GPIO is disabled: the
// controller still publishes relay levels on the bus for a downstream
// subscriber to act on.
type Noop struct{}

// NewNoop returns a no-op board.
func NewNoop() *Noop {
	return &Noop{}
}

// Set does nothing.
func (*Noop) Set(door.Relay, bool) error { return nil }

// Pulse does nothing.
func (*Noop) Pulse(door.Relay, time.Duration) error { return nil }

// WatchButton does nothing; there is no physical button to watch.
func (*Noop) WatchButton(func()) error { return nil }

// Close does nothing.
func (*Noop) Close() error { return nil }
