//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/infrastructure/config"
)

// board is the hardware implementation backed by the Linux GPIO
// character device.
type board struct {
	chip   *gpiocdev.Chip
	lines  map[door.Relay]*gpiocdev.Line
	button *gpiocdev.Line
	cfg    config.GPIOConfig

	mu      sync.Mutex
	onPress func()
}

func newBoard(cfg config.GPIOConfig) (Board, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer("doorkeeper"))
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", cfg.Chip, err)
	}

	b := &board{
		chip:  chip,
		lines: make(map[door.Relay]*gpiocdev.Line),
		cfg:   cfg,
	}

	// Relays start de-energized; the controller's activation sequence
	// sets the startup configuration.
	outputs := map[door.Relay]int{
		door.RelayOpenDoor:  cfg.OpenDoor,
		door.RelayOpenHold:  cfg.OpenHoldMode,
		door.RelayOpenClose: cfg.OpenCloseMode,
	}
	for relay, offset := range outputs {
		line, reqErr := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if reqErr != nil {
			b.Close() //nolint:errcheck // best effort cleanup on error path
			return nil, fmt.Errorf("requesting %s relay line %d: %w", relay, offset, reqErr)
		}
		b.lines[relay] = line
	}

	button, err := chip.RequestLine(cfg.Pushbutton,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithDebounce(debounceMillis*time.Millisecond),
		gpiocdev.WithEventHandler(b.handleEdge))
	if err != nil {
		b.Close() //nolint:errcheck // best effort cleanup on error path
		return nil, fmt.Errorf("requesting pushbutton line %d: %w", cfg.Pushbutton, err)
	}
	b.button = button

	return b, nil
}

func (b *board) handleEdge(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	b.mu.Lock()
	fn := b.onPress
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Set drives a relay coil.
func (b *board) Set(r door.Relay, on bool) error {
	line, ok := b.lines[r]
	if !ok {
		return fmt.Errorf("no line for relay %s", r)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("setting %s relay: %w", r, err)
	}
	return nil
}

// Pulse energizes a relay and schedules its release.
func (b *board) Pulse(r door.Relay, d time.Duration) error {
	if err := b.Set(r, true); err != nil {
		return err
	}
	time.AfterFunc(d, func() {
		// Release failure leaves the strike energized; nothing to do
		// here but the door controller logs its own mirrored levels.
		_ = b.Set(r, false) //nolint:errcheck
	})
	return nil
}

// WatchButton registers the press callback.
func (b *board) WatchButton(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPress = fn
	return nil
}

// Close releases all requested lines and the chip.
func (b *board) Close() error {
	var errs []error
	if b.button != nil {
		if err := b.button.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing pushbutton line: %w", err))
		}
	}
	for relay, line := range b.lines {
		// De-energize before release so a restart never leaves the
		// strike held open.
		_ = line.SetValue(0) //nolint:errcheck
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s relay line: %w", relay, err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("gpio close errors: %v", errs)
	}
	return nil
}
