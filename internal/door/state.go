package door

import (
	"fmt"
	"strconv"
	"strings"
)

// State is the controller's own authoritative door state.
type State int

// Door states.
const (
	// StateClosed means the door is closed and the strike is armed.
	StateClosed State = 0

	// StateOpened means the door is briefly open and will auto-close.
	StateOpened State = 1

	// StateOpenHold means the strike is held open until explicitly closed.
	StateOpenHold State = 2
)

// stateCount is the size of the toggle cycle.
const stateCount = 3

// String returns the door state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateOpenHold:
		return "openhold"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Next returns the state following s in the toggle cycle
// closed -> opened -> openhold -> closed.
func (s State) Next() State {
	return State((int(s) + 1) % stateCount)
}

// Mode is the door operating mode, derived from State and never stored
// independently. It selects which mode relay is energized.
type Mode int

// Door modes.
const (
	ModeOpenClose Mode = 0
	ModeOpenHold  Mode = 1
)

// String returns the door mode name.
func (m Mode) String() string {
	switch m {
	case ModeOpenClose:
		return "openclose"
	case ModeOpenHold:
		return "openhold"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ModeFor derives the operating mode from a door state.
func ModeFor(s State) Mode {
	if s == StateOpenHold {
		return ModeOpenHold
	}
	return ModeOpenClose
}

// RequestState is the remote command vocabulary received on the
// request topic.
type RequestState int

// Door request states.
const (
	RequestNone     RequestState = 0
	RequestClose    RequestState = 1
	RequestOpen     RequestState = 2
	RequestOpenHold RequestState = 3
)

// String returns the request name.
func (r RequestState) String() string {
	switch r {
	case RequestNone:
		return "none"
	case RequestClose:
		return "close"
	case RequestOpen:
		return "open"
	case RequestOpenHold:
		return "openhold"
	default:
		return fmt.Sprintf("request(%d)", int(r))
	}
}

// ParseRequestState parses a numeric door request payload.
func ParseRequestState(payload string) (RequestState, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return RequestNone, fmt.Errorf("parsing door request %q: %w", payload, err)
	}
	r := RequestState(n)
	switch r {
	case RequestNone, RequestClose, RequestOpen, RequestOpenHold:
		return r, nil
	default:
		return RequestNone, fmt.Errorf("unknown door request %d", n)
	}
}

// Relay identifies one of the three output relays.
type Relay int

// Output relays.
const (
	// RelayOpenDoor pulses the strike to open the door once.
	RelayOpenDoor Relay = iota

	// RelayOpenHold holds the strike open while energized.
	RelayOpenHold

	// RelayOpenClose selects normal open/close operation.
	RelayOpenClose
)

// String returns the relay name as used in topics and config.
func (r Relay) String() string {
	switch r {
	case RelayOpenDoor:
		return "opendoor"
	case RelayOpenHold:
		return "openhold"
	case RelayOpenClose:
		return "openclose"
	default:
		return fmt.Sprintf("relay(%d)", int(r))
	}
}

// OpenTrigger records which path confirmed an unlatch.
type OpenTrigger int

const (
	// OpenTriggerLockState is a live unlatched report from the lock.
	OpenTriggerLockState OpenTrigger = iota

	// OpenTriggerTimeout is the unlatch-confirmation watchdog assuming
	// success after the lock stayed in unlatching too long.
	OpenTriggerTimeout
)

// String returns the trigger name.
func (t OpenTrigger) String() string {
	switch t {
	case OpenTriggerLockState:
		return "lock_state"
	case OpenTriggerTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}
