package gpio

import (
	"sync"
	"time"

	"github.com/openhold/doorkeeper/internal/door"
)

// Fake is a test double that records relay commands and lets tests
// simulate pushbutton presses.
type Fake struct {
	mu      sync.Mutex
	levels  map[door.Relay]bool
	pulses  []door.Relay
	onPress func()
	closed  bool

	// SetError, if set, is returned by Set and Pulse.
	SetError error
}

// NewFake creates a Fake board with all relays de-energized.
func NewFake() *Fake {
	return &Fake{levels: make(map[door.Relay]bool)}
}

// Set records the commanded level.
func (f *Fake) Set(r door.Relay, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.levels[r] = on
	return nil
}

// Pulse records the pulse without scheduling a release.
func (f *Fake) Pulse(r door.Relay, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.pulses = append(f.pulses, r)
	return nil
}

// WatchButton registers the press callback.
func (f *Fake) WatchButton(fn func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onPress = fn
	return nil
}

// Close marks the board closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Press simulates a debounced pushbutton press.
func (f *Fake) Press() {
	f.mu.Lock()
	fn := f.onPress
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Level reports the last commanded level for a relay.
func (f *Fake) Level(r door.Relay) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[r]
}

// Pulses returns the recorded pulse sequence.
func (f *Fake) Pulses() []door.Relay {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]door.Relay, len(f.pulses))
	copy(out, f.pulses)
	return out
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
