package gpio

import (
	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/infrastructure/config"
)

// Board drives the three relay outputs and watches the pushbutton input.
// The real implementation uses the Linux GPIO character device; a no-op
// implementation serves hosts without a relay board and a fake serves
// tests.
type Board interface {
	door.Relays

	// WatchButton registers fn to run on every debounced pushbutton
	// press. Presses are delivered on a GPIO event goroutine; fn must
	// hand off rather than block.
	WatchButton(fn func()) error

	// Close releases GPIO resources.
	Close() error
}

// debounceMillis is the pushbutton debounce period in milliseconds.
// Matches the mechanical button used in the reference installation.
const debounceMillis = 200

// Open returns the Board for the given configuration: the hardware
// board when GPIO is enabled, otherwise a no-op board.
func Open(cfg config.GPIOConfig) (Board, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}
	return newBoard(cfg)
}
