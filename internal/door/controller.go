package door

import (
	"context"
	"sync"
	"time"

	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/lock"
)

// Relays drives the three physical output relays.
//
// Implementations live in internal/gpio; a fake is used in tests.
type Relays interface {
	// Set energizes or de-energizes a relay coil.
	Set(r Relay, on bool) error

	// Pulse energizes a relay for the given duration, then releases it.
	// The release happens asynchronously; Pulse returns immediately.
	Pulse(r Relay, d time.Duration) error
}

// Sink receives the controller's outbound publications. The message-bus
// bridge implements it; state mutation and I/O stay observably separate
// so the state machine can be tested without a broker.
type Sink interface {
	// DoorState publishes a door state change (retained).
	DoorState(s State)

	// DoorMode publishes a door mode change (retained).
	DoorMode(m Mode)

	// Relay publishes an output relay level (retained).
	Relay(r Relay, on bool)

	// LockAction publishes a command to the lock (retained).
	LockAction(a lock.Action)
}

// Timing holds the controller's configurable durations.
// Zero fields take the deployment defaults.
type Timing struct {
	// DoorOpenTime is how long the door may stay in opened before the
	// watchdog forces it closed.
	DoorOpenTime time.Duration

	// DoorCloseTime is how long an unconfirmed openhold may linger
	// before the watchdog forces it closed.
	DoorCloseTime time.Duration

	// LockUnlatchTime is how long to wait for the lock to report
	// unlatched before the confirmation fallback fires.
	LockUnlatchTime time.Duration

	// CheckInterval is the watchdog tick period.
	CheckInterval time.Duration

	// PulseTime is the opendoor relay pulse width.
	PulseTime time.Duration

	// ActionEventMaxAge is how long a received action event stays
	// eligible for the open-door decision.
	ActionEventMaxAge time.Duration
}

// Deployment defaults for Timing.
const (
	DefaultDoorOpenTime      = 40 * time.Second
	DefaultDoorCloseTime     = 10 * time.Second
	DefaultLockUnlatchTime   = 4 * time.Second
	DefaultCheckInterval     = 3 * time.Second
	DefaultPulseTime         = time.Second
	DefaultActionEventMaxAge = 30 * time.Second
)

func (t Timing) withDefaults() Timing {
	if t.DoorOpenTime <= 0 {
		t.DoorOpenTime = DefaultDoorOpenTime
	}
	if t.DoorCloseTime <= 0 {
		t.DoorCloseTime = DefaultDoorCloseTime
	}
	if t.LockUnlatchTime <= 0 {
		t.LockUnlatchTime = DefaultLockUnlatchTime
	}
	if t.CheckInterval <= 0 {
		t.CheckInterval = DefaultCheckInterval
	}
	if t.PulseTime <= 0 {
		t.PulseTime = DefaultPulseTime
	}
	if t.ActionEventMaxAge <= 0 {
		t.ActionEventMaxAge = DefaultActionEventMaxAge
	}
	return t
}

// Snapshot is a point-in-time copy of the controller's observable state,
// consumed by the gateway's status fan-out and the HTTP API.
type Snapshot struct {
	DoorState  State            `json:"door_state"`
	DoorMode   Mode             `json:"door_mode"`
	LockState  lock.State       `json:"lock_state"`
	Sensor     lock.SensorState `json:"doorsensor_state"`
	RelayLevel map[string]bool  `json:"relays"`
	ChangedAt  time.Time        `json:"state_changed_at"`
}

// Controller is the door state machine. It reconciles the lock-state
// feed, pushbutton presses, door sensor readings and remote requests
// into relay outputs and lock commands.
//
// A single mutex serializes every entry point; handlers, watchdog wakes
// and pushbutton interrupts all funnel through it, so events from one
// source are applied in arrival order.
type Controller struct {
	log    *logging.Logger
	relays Relays
	sink   Sink
	policy Policy
	timing Timing

	// now and after are injectable for tests.
	now   func() time.Time
	after func(d time.Duration, f func())

	mu               sync.Mutex
	doorState        State
	lockState        lock.State
	sensor           lock.SensorState
	lastAction       lock.Action
	hasLastAction    bool
	actionEvent      *lock.ActionEvent
	unlatchRequested bool
	doorOpenedLatch  bool
	stateChangedAt   time.Time

	// mirrored relay levels as last commanded
	relayOpenDoor  bool
	relayOpenHold  bool
	relayOpenClose bool

	watchers []func(Snapshot)
}

// New creates a door controller. The policy decides how pushbutton
// presses map to state transitions; exactly one policy is active per
// process instance.
func New(log *logging.Logger, relays Relays, sink Sink, policy Policy, timing Timing) *Controller {
	c := &Controller{
		log:       log.With("component", "door"),
		relays:    relays,
		sink:      sink,
		policy:    policy,
		timing:    timing.withDefaults(),
		now:       time.Now,
		doorState: StateClosed,
		lockState: lock.StateUndefined,
		sensor:    lock.SensorUnknown,
	}
	c.after = func(d time.Duration, f func()) {
		time.AfterFunc(d, f)
	}
	c.stateChangedAt = c.now()
	return c
}

// AddWatcher registers fn to receive a status snapshot after every
// processed event. Register watchers before Activate; callbacks run on
// the event's goroutine and must not block or call back into the
// controller.
func (c *Controller) AddWatcher(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Activate drives the relays to their safe startup configuration,
// publishes the initial status and issues an unlock to cancel any
// unlatch request left retained by a previous run.
func (c *Controller) Activate() {
	c.dispatch(func() {
		c.log.Info("activating", "policy", c.policy.Name(), "state", c.doorState.String())
		c.setRelay(RelayOpenDoor, false)
		c.setRelay(RelayOpenHold, false)
		c.setRelay(RelayOpenClose, true)
		c.sink.DoorState(c.doorState)
		c.sink.DoorMode(ModeFor(c.doorState))
		c.requestLockAction(lock.ActionUnlock)
	})
}

// Resync re-publishes the full current status. Called after a bus
// reconnect so subscribers see fresh retained values.
func (c *Controller) Resync() {
	c.dispatch(func() {
		c.log.Info("resync", "state", c.doorState.String(), "lock", c.lockState.String())
		c.sink.DoorState(c.doorState)
		c.sink.DoorMode(ModeFor(c.doorState))
		c.sink.Relay(RelayOpenDoor, c.relayOpenDoor)
		c.sink.Relay(RelayOpenHold, c.relayOpenHold)
		c.sink.Relay(RelayOpenClose, c.relayOpenClose)
	})
}

// Start runs the auto-close watchdog until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) {
	go c.watchAutoClose(ctx)
}

// Status returns a snapshot of the controller's observable state.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// OnLockState records a lock state report. Entering unlatching arms the
// confirmation fallback; entering unlatched runs unlatch-confirmed
// handling directly.
func (c *Controller) OnLockState(s lock.State) {
	c.dispatch(func() {
		c.log.Info("lock state", "from", c.lockState.String(), "to", s.String())
		c.lockState = s

		switch s {
		case lock.StateUnlatching:
			c.after(c.timing.LockUnlatchTime, c.confirmUnlatchTimeout)
		case lock.StateUnlatched:
			c.lockUnlatched(OpenTriggerLockState)
		}
	})
}

// OnLockAction records the last action echoed on the command topic.
// Informational only; it never drives a transition.
func (c *Controller) OnLockAction(a lock.Action) {
	c.dispatch(func() {
		if c.hasLastAction && c.lastAction == a {
			return
		}
		c.log.Debug("lock action echo", "action", a.String())
		c.lastAction = a
		c.hasLastAction = true
	})
}

// OnLockActionEvent stores the latest action event for the open-door
// decision. The event is consumed at most once and then cleared.
func (c *Controller) OnLockActionEvent(ev lock.ActionEvent) {
	c.dispatch(func() {
		c.log.Info("lock action event",
			"action", ev.Action.String(),
			"trigger", ev.Trigger.String(),
			"auth_id", ev.AuthID,
			"code_id", ev.CodeID,
			"auto_unlock", ev.AutoUnlock)
		c.actionEvent = &ev
	})
}

// OnDoorSensorState records a door sensor report and corrects the door
// state when the sensor contradicts it. Sensor effects are defined only
// for closed and opened; openhold is never overridden by the sensor.
func (c *Controller) OnDoorSensorState(s lock.SensorState) {
	c.dispatch(func() {
		c.log.Info("door sensor", "from", c.sensor.String(), "to", s.String())
		c.sensor = s

		if s == lock.SensorDoorClosed && c.doorState == StateOpened {
			c.setState(StateClosed)
		}
		if s == lock.SensorDoorOpened && c.doorState == StateClosed {
			c.setState(StateOpened)
		}
	})
}

// OnDoorRequest processes a remote door request. Requests outside their
// precondition are silently ignored; repeated identical requests must
// not double-trigger hardware.
func (c *Controller) OnDoorRequest(r RequestState) {
	c.dispatch(func() {
		c.log.Info("door request",
			"request", r.String(),
			"state", c.doorState.String(),
			"lock", c.lockState.String())

		switch r {
		case RequestOpen:
			if c.doorState == StateClosed {
				c.setState(StateOpened)
				c.unlatch()
			}
		case RequestClose:
			if c.doorState == StateOpenHold {
				c.setState(StateOpened)
				c.closeDoor()
			}
		case RequestOpenHold:
			if c.doorState != StateOpenHold {
				c.setState(StateOpenHold)
				c.unlatch()
			}
		}
	})
}

// OnPushbuttonPressed applies the active pushbutton policy to the
// current door state.
func (c *Controller) OnPushbuttonPressed() {
	c.dispatch(func() {
		next, act := c.policy.Press(c.doorState)
		c.log.Info("pushbutton pressed",
			"policy", c.policy.Name(),
			"state", c.doorState.String(),
			"next", next.String(),
			"lock", c.lockState.String())
		c.setState(next)
		switch act {
		case PressUnlatch:
			c.unlatch()
		case PressClose:
			c.closeDoor()
		}
	})
}

// dispatch runs f under the state mutex, then notifies watchers with a
// fresh snapshot outside of it.
func (c *Controller) dispatch(f func()) {
	c.mu.Lock()
	f()
	snap := c.snapshotLocked()
	watchers := c.watchers
	c.mu.Unlock()

	for _, w := range watchers {
		w(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		DoorState: c.doorState,
		DoorMode:  ModeFor(c.doorState),
		LockState: c.lockState,
		Sensor:    c.sensor,
		RelayLevel: map[string]bool{
			RelayOpenDoor.String():  c.relayOpenDoor,
			RelayOpenHold.String():  c.relayOpenHold,
			RelayOpenClose.String(): c.relayOpenClose,
		},
		ChangedAt: c.stateChangedAt,
	}
}

// setState mutates the door state. Publishing the new state and derived
// mode is a side effect of the setter itself; returning to closed resets
// the open-cycle latch and cancels a still-pending unlatch command.
func (c *Controller) setState(s State) {
	if s == c.doorState {
		return
	}
	c.log.Info("door state", "from", c.doorState.String(), "to", s.String())
	c.doorState = s
	c.stateChangedAt = c.now()
	c.sink.DoorState(s)
	c.sink.DoorMode(ModeFor(s))

	if s == StateClosed {
		c.doorOpenedLatch = false
		if c.hasLastAction && c.lastAction == lock.ActionUnlatch {
			c.requestLockAction(lock.ActionUnlock)
		}
	}
}

// unlatch asks the lock to release the strike. Skipped when the lock is
// already unlatching to avoid redundant commands.
func (c *Controller) unlatch() {
	if c.lockState == lock.StateUnlatching {
		return
	}
	c.log.Info("unlatch", "state", c.doorState.String(), "lock", c.lockState.String())
	c.requestLockAction(lock.ActionUnlatch)
	c.unlatchRequested = true
}

func (c *Controller) requestLockAction(a lock.Action) {
	c.log.Info("lock command", "action", a.String())
	c.lastAction = a
	c.hasLastAction = true
	c.sink.LockAction(a)
}

// setRelay commands a relay level and mirrors it for status reporting.
func (c *Controller) setRelay(r Relay, on bool) {
	if err := c.relays.Set(r, on); err != nil {
		c.log.Error("relay set failed", "relay", r.String(), "on", on, "error", err)
	}
	switch r {
	case RelayOpenDoor:
		c.relayOpenDoor = on
	case RelayOpenHold:
		c.relayOpenHold = on
	case RelayOpenClose:
		c.relayOpenClose = on
	}
	c.sink.Relay(r, on)
}

// openPulse fires the opendoor relay once. The release is scheduled so
// the handler never sleeps holding the state mutex.
func (c *Controller) openPulse() {
	c.log.Info("open door", "pulse", c.timing.PulseTime.String())
	if err := c.relays.Pulse(RelayOpenDoor, c.timing.PulseTime); err != nil {
		c.log.Error("relay pulse failed", "relay", RelayOpenDoor.String(), "error", err)
	}
	c.relayOpenDoor = true
	c.sink.Relay(RelayOpenDoor, true)
	c.after(c.timing.PulseTime, func() {
		c.dispatch(func() {
			c.relayOpenDoor = false
			c.sink.Relay(RelayOpenDoor, false)
		})
	})
}

// engageOpenHold switches the mode relays to hold the strike open.
func (c *Controller) engageOpenHold() {
	c.log.Info("engage openhold", "lock", c.lockState.String())
	c.setRelay(RelayOpenHold, true)
	c.setRelay(RelayOpenClose, false)
	c.sink.DoorMode(ModeOpenHold)
}

// closeDoor returns the relays to normal open/close operation. A lock
// still engaged gets an unlock first so the strike is not energized
// against it.
func (c *Controller) closeDoor() {
	c.log.Info("close door", "state", c.doorState.String(), "lock", c.lockState.String())
	if c.lockState == lock.StateLocked || c.lockState == lock.StateLocking {
		c.requestLockAction(lock.ActionUnlock)
	}
	c.setRelay(RelayOpenHold, false)
	c.setRelay(RelayOpenClose, true)
	c.sink.DoorMode(ModeOpenClose)
}

// lockUnlatched is the unlatch-confirmed handler. The open-cycle latch
// makes it idempotent: a replayed unlatched report never pulses twice.
//
// The open decision consumes the pending action event exactly once.
// With an event present, only an unlatch initiated over bluetooth, or
// over the bus when this controller requested it, opens the door;
// unrelated parties (auto-lock cycles, other bus clients) are rejected.
// Without an event, a live unlatched report still opens the door when
// the unlatch was locally requested, covering locks that act before
// their event is delivered. The timeout path never reaches here without
// an event.
func (c *Controller) lockUnlatched(trigger OpenTrigger) {
	if c.doorOpenedLatch {
		c.log.Info("unlatch confirmed; already opened this cycle", "trigger", trigger.String())
		return
	}

	ev := c.actionEvent
	if ev != nil && ev.Age(c.now()) > c.timing.ActionEventMaxAge {
		c.log.Info("discarding stale action event", "age", ev.Age(c.now()).String())
		ev = nil
	}

	var open bool
	switch {
	case ev != nil:
		open = ev.Action == lock.ActionUnlatch &&
			(ev.Trigger == lock.TriggerSystemBluetooth ||
				(ev.Trigger == lock.TriggerMQTT && c.unlatchRequested))
	case trigger == OpenTriggerLockState:
		open = c.unlatchRequested
	}

	if !open && ev != nil {
		c.log.Warn("unlatch confirmed but not opening",
			"action", ev.Action.String(),
			"trigger", ev.Trigger.String(),
			"auth_id", ev.AuthID,
			"requested", c.unlatchRequested)
	}

	c.actionEvent = nil
	c.unlatchRequested = false

	if !open {
		return
	}

	c.doorOpenedLatch = true
	if c.doorState == StateOpenHold {
		c.engageOpenHold()
	} else {
		c.openPulse()
	}
}

// confirmUnlatchTimeout is the unlatch-confirmation fallback. It wakes
// once per armed unlatching transition; irrelevant wakes detect their
// staleness via state guards instead of being cancelled.
func (c *Controller) confirmUnlatchTimeout() {
	c.dispatch(func() {
		if c.lockState != lock.StateUnlatching {
			return
		}
		ev := c.actionEvent
		if ev == nil || ev.Age(c.now()) > c.timing.ActionEventMaxAge {
			c.log.Info("unlatch not confirmed; no action event within timeout",
				"waited", c.timing.LockUnlatchTime.String())
			return
		}
		c.log.Info("unlatch not reported; assuming unlatched",
			"waited", c.timing.LockUnlatchTime.String())
		c.lockUnlatched(OpenTriggerTimeout)
	})
}

func (c *Controller) watchAutoClose(ctx context.Context) {
	ticker := time.NewTicker(c.timing.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAutoClose()
		}
	}
}

// checkAutoClose is the auto-close watchdog body. It force-closes a
// stale opened state, and an openhold whose relay never energized
// (requested but never physically confirmed).
func (c *Controller) checkAutoClose() {
	c.dispatch(func() {
		elapsed := c.now().Sub(c.stateChangedAt)
		switch c.doorState {
		case StateOpened:
			if elapsed > c.timing.DoorOpenTime {
				c.log.Info("auto-close; door left opened", "elapsed", elapsed.String())
				c.setState(StateClosed)
			}
		case StateOpenHold:
			if elapsed > c.timing.DoorCloseTime && !c.relayOpenHold {
				c.log.Info("auto-close; openhold never confirmed", "elapsed", elapsed.String())
				c.setState(StateClosed)
			}
		}
	})
}
