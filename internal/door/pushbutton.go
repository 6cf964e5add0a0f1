package door

import "fmt"

// PressAction is the follow-up a policy asks the controller to perform
// after a pushbutton press changed the door state.
type PressAction int

const (
	// PressNone performs no follow-up.
	PressNone PressAction = iota

	// PressUnlatch asks the lock to release the strike.
	PressUnlatch

	// PressClose runs the close sequence.
	PressClose
)

// Policy maps a single pushbutton press to a state transition and a
// follow-up action, given the current door state. Policies are pure;
// they carry no memory beyond what the controller already holds.
type Policy interface {
	// Press returns the state to enter and the action to perform.
	Press(current State) (State, PressAction)

	// Name identifies the policy in logs and configuration.
	Name() string
}

// openHoldPolicy toggles between closed and openhold only.
type openHoldPolicy struct{}

func (openHoldPolicy) Name() string { return "openhold" }

func (openHoldPolicy) Press(current State) (State, PressAction) {
	if current == StateClosed {
		return StateOpenHold, PressUnlatch
	}
	return StateClosed, PressClose
}

// openPolicy opens briefly on every press; the auto-close watchdog
// returns the door to closed.
type openPolicy struct{}

func (openPolicy) Name() string { return "open" }

func (openPolicy) Press(State) (State, PressAction) {
	return StateOpened, PressUnlatch
}

// togglePolicy cycles closed -> opened -> openhold -> closed. The
// unlatch fires on landing in closed, re-arming the lock for the next
// press; landing in opened runs the close sequence and landing in
// openhold performs no action, relying on the unlatch still in flight
// from the previous lap. The asymmetry is deliberate and matches the
// installed deployments.
type togglePolicy struct{}

func (togglePolicy) Name() string { return "toggle" }

func (togglePolicy) Press(current State) (State, PressAction) {
	next := current.Next()
	switch next {
	case StateClosed:
		return next, PressUnlatch
	case StateOpened:
		return next, PressClose
	default:
		return next, PressNone
	}
}

// PolicyFromName returns the pushbutton policy selected in
// configuration: "openhold", "open" or "toggle".
func PolicyFromName(name string) (Policy, error) {
	switch name {
	case "openhold":
		return openHoldPolicy{}, nil
	case "open":
		return openPolicy{}, nil
	case "toggle":
		return togglePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown pushbutton policy %q", name)
	}
}
