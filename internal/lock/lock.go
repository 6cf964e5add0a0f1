package lock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the lock mechanism state as reported on the lock's state topic.
type State int

// Lock states as published by the smart lock.
const (
	StateUncalibrated State = 0
	StateLocked       State = 1
	StateUnlocking    State = 2
	StateUnlocked     State = 3
	StateLocking      State = 4
	StateUnlatched    State = 5
	StateUnlocked2    State = 6 // unlocked in lock-and-go mode
	StateUnlatching   State = 7
	StateBootRun      State = 253
	StateMotorBlocked State = 254
	StateUndefined    State = 255
)

// String returns the lock state name.
func (s State) String() string {
	switch s {
	case StateUncalibrated:
		return "uncalibrated"
	case StateLocked:
		return "locked"
	case StateUnlocking:
		return "unlocking"
	case StateUnlocked:
		return "unlocked"
	case StateLocking:
		return "locking"
	case StateUnlatched:
		return "unlatched"
	case StateUnlocked2:
		return "unlocked2"
	case StateUnlatching:
		return "unlatching"
	case StateBootRun:
		return "boot_run"
	case StateMotorBlocked:
		return "motor_blocked"
	case StateUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState parses a numeric lock state payload.
// Unknown numeric values map to StateUndefined so that new firmware
// states degrade gracefully instead of breaking the feed.
func ParseState(payload string) (State, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return StateUndefined, fmt.Errorf("parsing lock state %q: %w", payload, err)
	}
	s := State(n)
	switch s {
	case StateUncalibrated, StateLocked, StateUnlocking, StateUnlocked,
		StateLocking, StateUnlatched, StateUnlocked2, StateUnlatching,
		StateBootRun, StateMotorBlocked, StateUndefined:
		return s, nil
	default:
		return StateUndefined, nil
	}
}

// Action is a command published on the lock's action topic.
type Action int

// Lock actions accepted by the smart lock.
const (
	ActionUnlock   Action = 1
	ActionLock     Action = 2
	ActionUnlatch  Action = 3
	ActionLockNGo1 Action = 4 // lock-and-go
	ActionLockNGo2 Action = 5 // lock-and-go with unlatch
	ActionFullLock Action = 6
	ActionFob      Action = 80
	ActionButton   Action = 90
)

// String returns the lock action name.
func (a Action) String() string {
	switch a {
	case ActionUnlock:
		return "unlock"
	case ActionLock:
		return "lock"
	case ActionUnlatch:
		return "unlatch"
	case ActionLockNGo1:
		return "lock_n_go"
	case ActionLockNGo2:
		return "lock_n_go_unlatch"
	case ActionFullLock:
		return "full_lock"
	case ActionFob:
		return "fob"
	case ActionButton:
		return "button"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction parses a numeric lock action payload.
func ParseAction(payload string) (Action, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("parsing lock action %q: %w", payload, err)
	}
	a := Action(n)
	switch a {
	case ActionUnlock, ActionLock, ActionUnlatch, ActionLockNGo1,
		ActionLockNGo2, ActionFullLock, ActionFob, ActionButton:
		return a, nil
	default:
		return 0, fmt.Errorf("unknown lock action %d", n)
	}
}

// Trigger identifies what initiated a lock action.
type Trigger int

// Lock action triggers as reported in action events.
const (
	TriggerSystemBluetooth Trigger = 0 // app, fob or keypad via bluetooth
	TriggerReserved        Trigger = 1
	TriggerButton          Trigger = 2
	TriggerAutomatic       Trigger = 3 // time controlled
	TriggerAutoLock        Trigger = 4
	TriggerHomeKit         Trigger = 171
	TriggerMQTT            Trigger = 172
)

// String returns the trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerSystemBluetooth:
		return "system_bluetooth"
	case TriggerReserved:
		return "reserved"
	case TriggerButton:
		return "button"
	case TriggerAutomatic:
		return "automatic"
	case TriggerAutoLock:
		return "autolock"
	case TriggerHomeKit:
		return "homekit"
	case TriggerMQTT:
		return "mqtt"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// SensorState is the door sensor state as reported on the sensor topic.
type SensorState int

// Door sensor states as published by the smart lock.
const (
	SensorDeactivated  SensorState = 1
	SensorDoorClosed   SensorState = 2
	SensorDoorOpened   SensorState = 3
	SensorUnknown      SensorState = 4
	SensorCalibrating  SensorState = 5
	SensorUncalibrated SensorState = 16
	SensorTampered     SensorState = 240
	SensorUndefined    SensorState = 255
)

// String returns the door sensor state name.
func (s SensorState) String() string {
	switch s {
	case SensorDeactivated:
		return "deactivated"
	case SensorDoorClosed:
		return "door_closed"
	case SensorDoorOpened:
		return "door_opened"
	case SensorUnknown:
		return "unknown"
	case SensorCalibrating:
		return "calibrating"
	case SensorUncalibrated:
		return "uncalibrated"
	case SensorTampered:
		return "tampered"
	case SensorUndefined:
		return "undefined"
	default:
		return fmt.Sprintf("sensor(%d)", int(s))
	}
}

// ParseSensorState parses a numeric door sensor payload.
// Unknown numeric values map to SensorUndefined.
func ParseSensorState(payload string) (SensorState, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return SensorUndefined, fmt.Errorf("parsing door sensor state %q: %w", payload, err)
	}
	s := SensorState(n)
	switch s {
	case SensorDeactivated, SensorDoorClosed, SensorDoorOpened, SensorUnknown,
		SensorCalibrating, SensorUncalibrated, SensorTampered, SensorUndefined:
		return s, nil
	default:
		return SensorUndefined, nil
	}
}

// ActionEvent is a decoded lock action event; the lock publishes one for
// every action it performs, carrying the action, what triggered it and
// which credential authorized it.
type ActionEvent struct {
	Action     Action
	Trigger    Trigger
	AuthID     int
	CodeID     int
	AutoUnlock bool

	// Received is when the event arrived, not when the lock acted.
	// Stale events are ignored by the door controller.
	Received time.Time
}

// expected field count of an action event payload
const actionEventFields = 5

// ParseActionEvent decodes a comma-separated action event payload of the
// form "action,trigger,authId,codeId,autoUnlock".
func ParseActionEvent(payload string, received time.Time) (ActionEvent, error) {
	parts := strings.Split(strings.TrimSpace(payload), ",")
	if len(parts) != actionEventFields {
		return ActionEvent{}, fmt.Errorf("action event %q: expected %d fields, got %d",
			payload, actionEventFields, len(parts))
	}

	action, err := ParseAction(parts[0])
	if err != nil {
		return ActionEvent{}, fmt.Errorf("action event: %w", err)
	}

	trigger, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ActionEvent{}, fmt.Errorf("action event trigger %q: %w", parts[1], err)
	}

	authID, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return ActionEvent{}, fmt.Errorf("action event auth id %q: %w", parts[2], err)
	}

	codeID, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return ActionEvent{}, fmt.Errorf("action event code id %q: %w", parts[3], err)
	}

	autoUnlock, err := strconv.Atoi(strings.TrimSpace(parts[4]))
	if err != nil {
		return ActionEvent{}, fmt.Errorf("action event auto unlock %q: %w", parts[4], err)
	}

	return ActionEvent{
		Action:     action,
		Trigger:    Trigger(trigger),
		AuthID:     authID,
		CodeID:     codeID,
		AutoUnlock: autoUnlock != 0,
		Received:   received,
	}, nil
}

// Age returns how long ago the event was received.
func (e ActionEvent) Age(now time.Time) time.Duration {
	return now.Sub(e.Received)
}
