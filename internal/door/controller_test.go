package door

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/lock"
)

// fakeRelays records commanded relay levels and pulses.
type fakeRelays struct {
	mu     sync.Mutex
	levels map[Relay]bool
	pulses []Relay
	sets   []relaySet
}

type relaySet struct {
	relay Relay
	on    bool
}

func newFakeRelays() *fakeRelays {
	return &fakeRelays{levels: make(map[Relay]bool)}
}

func (f *fakeRelays) Set(r Relay, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.levels[r] = on
	f.sets = append(f.sets, relaySet{r, on})
	return nil
}

func (f *fakeRelays) Pulse(r Relay, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulses = append(f.pulses, r)
	return nil
}

func (f *fakeRelays) pulseCount(r Relay) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pulses {
		if p == r {
			n++
		}
	}
	return n
}

func (f *fakeRelays) setCount(r Relay, on bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sets {
		if s.relay == r && s.on == on {
			n++
		}
	}
	return n
}

func (f *fakeRelays) level(r Relay) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[r]
}

// fakeSink records every outbound publication in order.
type fakeSink struct {
	mu      sync.Mutex
	states  []State
	modes   []Mode
	actions []lock.Action
	relays  []relaySet
}

func (f *fakeSink) DoorState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, s)
}

func (f *fakeSink) DoorMode(m Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modes = append(f.modes, m)
}

func (f *fakeSink) Relay(r Relay, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.relays = append(f.relays, relaySet{r, on})
}

func (f *fakeSink) LockAction(a lock.Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
}

func (f *fakeSink) lastAction() (lock.Action, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.actions) == 0 {
		return 0, false
	}
	return f.actions[len(f.actions)-1], true
}

func (f *fakeSink) lastMode() (Mode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.modes) == 0 {
		return 0, false
	}
	return f.modes[len(f.modes)-1], true
}

func (f *fakeSink) stateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

func (f *fakeSink) actionCount(a lock.Action) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, got := range f.actions {
		if got == a {
			n++
		}
	}
	return n
}

// fakeScheduler captures timers so tests fire them deterministically.
type fakeScheduler struct {
	mu    sync.Mutex
	funcs []func()
}

func (f *fakeScheduler) after(_ time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs = append(f.funcs, fn)
}

// fireAll runs and drains all captured timers.
func (f *fakeScheduler) fireAll() {
	f.mu.Lock()
	funcs := f.funcs
	f.funcs = nil
	f.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
}

func (f *fakeScheduler) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.funcs)
}

func discardLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

type testRig struct {
	ctrl   *Controller
	relays *fakeRelays
	sink   *fakeSink
	sched  *fakeScheduler
	now    time.Time
}

func newTestRig(t *testing.T, policyName string) *testRig {
	t.Helper()
	policy, err := PolicyFromName(policyName)
	if err != nil {
		t.Fatalf("PolicyFromName(%q) error = %v", policyName, err)
	}

	rig := &testRig{
		relays: newFakeRelays(),
		sink:   &fakeSink{},
		sched:  &fakeScheduler{},
		now:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
	rig.ctrl = New(discardLogger(), rig.relays, rig.sink, policy, Timing{})
	rig.ctrl.now = func() time.Time { return rig.now }
	rig.ctrl.after = rig.sched.after
	return rig
}

func (r *testRig) advance(d time.Duration) {
	r.now = r.now.Add(d)
}

// assertModeExclusive checks exactly one mode relay is energized.
func (r *testRig) assertModeExclusive(t *testing.T, context string) {
	t.Helper()
	hold := r.relays.level(RelayOpenHold)
	openclose := r.relays.level(RelayOpenClose)
	if hold == openclose {
		t.Errorf("%s: mode relays not exclusive: openhold=%v openclose=%v", context, hold, openclose)
	}
}

func TestActivate_SafeStartup(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	if got := rig.relays.level(RelayOpenDoor); got {
		t.Error("opendoor relay energized after activation")
	}
	if got := rig.relays.level(RelayOpenHold); got {
		t.Error("openhold relay energized after activation")
	}
	if got := rig.relays.level(RelayOpenClose); !got {
		t.Error("openclose relay not energized after activation")
	}
	rig.assertModeExclusive(t, "after activation")

	// A stale retained unlatch must be cancelled at startup.
	if a, ok := rig.sink.lastAction(); !ok || a != lock.ActionUnlock {
		t.Errorf("last published lock action = %v, want unlock", a)
	}
	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Errorf("door state after activation = %v, want closed", got)
	}
}

func TestOnLockState_UnlatchedIdempotent(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpenHold)
	rig.ctrl.OnLockState(lock.StateUnlatching)
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerMQTT,
		Received: rig.now,
	})

	rig.ctrl.OnLockState(lock.StateUnlatched)
	rig.ctrl.OnLockState(lock.StateUnlatched)

	if got := rig.relays.setCount(RelayOpenHold, true); got != 1 {
		t.Errorf("openhold relay energized %d times, want 1", got)
	}
}

func TestOnDoorRequest_ClosePrecondition(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	before := rig.sink.stateCount()
	rig.ctrl.OnDoorRequest(RequestClose)

	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Errorf("door state after close request while closed = %v, want closed", got)
	}
	if got := rig.sink.stateCount(); got != before {
		t.Errorf("close request while closed published %d state changes, want 0", got-before)
	}
}

func TestOnDoorRequest_Table(t *testing.T) {
	tests := []struct {
		name       string
		from       State
		request    RequestState
		want       State
		wantAction lock.Action
		noAction   bool
	}{
		{"open from closed", StateClosed, RequestOpen, StateOpened, lock.ActionUnlatch, false},
		{"open from opened ignored", StateOpened, RequestOpen, StateOpened, 0, true},
		{"open from openhold ignored", StateOpenHold, RequestOpen, StateOpenHold, 0, true},
		{"close from openhold", StateOpenHold, RequestClose, StateOpened, 0, true},
		{"close from opened ignored", StateOpened, RequestClose, StateOpened, 0, true},
		{"openhold from closed", StateClosed, RequestOpenHold, StateOpenHold, lock.ActionUnlatch, false},
		{"openhold from opened", StateOpened, RequestOpenHold, StateOpenHold, lock.ActionUnlatch, false},
		{"openhold repeated ignored", StateOpenHold, RequestOpenHold, StateOpenHold, 0, true},
		{"none is a no-op", StateClosed, RequestNone, StateClosed, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, "openhold")
			rig.ctrl.Activate()
			rig.ctrl.doorState = tt.from

			actionsBefore := rig.sink.actionCount(lock.ActionUnlatch)
			rig.ctrl.OnDoorRequest(tt.request)

			if got := rig.ctrl.Status().DoorState; got != tt.want {
				t.Errorf("door state = %v, want %v", got, tt.want)
			}
			unlatches := rig.sink.actionCount(lock.ActionUnlatch) - actionsBefore
			if tt.noAction && unlatches != 0 {
				t.Errorf("published %d unlatch commands, want 0", unlatches)
			}
			if !tt.noAction && tt.wantAction == lock.ActionUnlatch && unlatches != 1 {
				t.Errorf("published %d unlatch commands, want 1", unlatches)
			}
		})
	}
}

func TestTogglePolicy_CycleClosure(t *testing.T) {
	rig := newTestRig(t, "toggle")
	rig.ctrl.Activate()

	rig.ctrl.OnPushbuttonPressed()
	if got := rig.ctrl.Status().DoorState; got != StateOpened {
		t.Fatalf("after press 1: state = %v, want opened", got)
	}
	rig.ctrl.OnPushbuttonPressed()
	if got := rig.ctrl.Status().DoorState; got != StateOpenHold {
		t.Fatalf("after press 2: state = %v, want openhold", got)
	}
	rig.ctrl.OnPushbuttonPressed()
	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Fatalf("after press 3: state = %v, want closed", got)
	}
}

func TestAutoClose_FromOpened(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpen)
	if got := rig.ctrl.Status().DoorState; got != StateOpened {
		t.Fatalf("state after open request = %v, want opened", got)
	}

	// Exactly at the threshold: must not close yet.
	rig.advance(DefaultDoorOpenTime)
	rig.ctrl.checkAutoClose()
	if got := rig.ctrl.Status().DoorState; got != StateOpened {
		t.Errorf("state at door_open_time = %v, want still opened", got)
	}

	rig.advance(time.Second)
	rig.ctrl.checkAutoClose()
	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Errorf("state past door_open_time = %v, want closed", got)
	}
}

func TestAutoClose_UnconfirmedOpenHold(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpenHold)

	rig.advance(DefaultDoorCloseTime + time.Second)
	rig.ctrl.checkAutoClose()
	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Errorf("unconfirmed openhold not force-closed: state = %v", got)
	}
}

func TestAutoClose_ConfirmedOpenHoldKept(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpenHold)
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerMQTT,
		Received: rig.now,
	})
	rig.ctrl.OnLockState(lock.StateUnlatched)

	rig.advance(time.Hour)
	rig.ctrl.checkAutoClose()
	if got := rig.ctrl.Status().DoorState; got != StateOpenHold {
		t.Errorf("confirmed openhold force-closed: state = %v", got)
	}
}

func TestUnlatchTimeout_Fallback(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpen)
	rig.ctrl.OnLockState(lock.StateUnlatching)
	if got := rig.sched.pending(); got != 1 {
		t.Fatalf("unlatching armed %d confirmation timers, want 1", got)
	}

	rig.advance(time.Second)
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerMQTT,
		Received: rig.now,
	})

	// Lock never reports unlatched; the fallback must open anyway.
	rig.advance(DefaultLockUnlatchTime)
	rig.sched.fireAll()

	if got := rig.relays.pulseCount(RelayOpenDoor); got != 1 {
		t.Errorf("opendoor pulsed %d times, want 1", got)
	}
}

func TestUnlatchTimeout_NoActionEvent(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpen)
	rig.ctrl.OnLockState(lock.StateUnlatching)

	// No action event ever arrives: the fallback must not open.
	rig.advance(DefaultLockUnlatchTime + time.Second)
	rig.sched.fireAll()

	if got := rig.relays.pulseCount(RelayOpenDoor); got != 0 {
		t.Errorf("opendoor pulsed %d times without action event, want 0", got)
	}
}

func TestUnlatchTimeout_LockMovedOn(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpen)
	rig.ctrl.OnLockState(lock.StateUnlatching)
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerMQTT,
		Received: rig.now,
	})
	rig.ctrl.OnLockState(lock.StateUnlatched)

	pulses := rig.relays.pulseCount(RelayOpenDoor)

	// The timer wakes after the live report already opened the door;
	// the state guard must make it a no-op.
	rig.sched.fireAll()
	if got := rig.relays.pulseCount(RelayOpenDoor); got != pulses {
		t.Errorf("stale confirmation timer pulsed the relay again")
	}
}

func TestOpenHold_EndToEnd(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()
	rig.ctrl.OnLockState(lock.StateLocked)
	rig.assertModeExclusive(t, "after activation")

	rig.ctrl.OnDoorRequest(RequestOpenHold)
	if got := rig.ctrl.Status().DoorState; got != StateOpenHold {
		t.Fatalf("state after openhold request = %v, want openhold", got)
	}
	if a, ok := rig.sink.lastAction(); !ok || a != lock.ActionUnlatch {
		t.Fatalf("last published lock action = %v, want unlatch", a)
	}
	rig.assertModeExclusive(t, "after openhold request")

	rig.ctrl.OnLockState(lock.StateUnlatching)
	if rig.relays.level(RelayOpenHold) {
		t.Error("openhold relay energized before unlatch confirmed")
	}
	rig.assertModeExclusive(t, "while unlatching")

	// No action event was delivered; the locally requested unlatch is
	// still honored on a live unlatched report.
	rig.ctrl.OnLockState(lock.StateUnlatched)
	if !rig.relays.level(RelayOpenHold) {
		t.Error("openhold relay not energized after unlatched")
	}
	if rig.relays.level(RelayOpenClose) {
		t.Error("openclose relay still energized after unlatched")
	}
	if m, ok := rig.sink.lastMode(); !ok || m != ModeOpenHold {
		t.Errorf("last published mode = %v, want openhold", m)
	}
	rig.assertModeExclusive(t, "after unlatched")

	// Door sensor effects are defined only for opened, not openhold.
	rig.ctrl.OnDoorSensorState(lock.SensorDoorClosed)
	if got := rig.ctrl.Status().DoorState; got != StateOpenHold {
		t.Errorf("door_closed sensor changed openhold to %v", got)
	}
	rig.assertModeExclusive(t, "after sensor report")
}

func TestOnDoorSensorState_Corrections(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorSensorState(lock.SensorDoorOpened)
	if got := rig.ctrl.Status().DoorState; got != StateOpened {
		t.Errorf("door_opened sensor while closed: state = %v, want opened", got)
	}

	rig.ctrl.OnDoorSensorState(lock.SensorDoorClosed)
	if got := rig.ctrl.Status().DoorState; got != StateClosed {
		t.Errorf("door_closed sensor while opened: state = %v, want closed", got)
	}
}

func TestLockUnlatched_RejectsUnrelatedEvent(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	// An auto-lock cycle elsewhere unlatches the lock; nothing was
	// requested locally and the trigger is not bluetooth.
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerAutoLock,
		Received: rig.now,
	})
	rig.ctrl.OnLockState(lock.StateUnlatched)

	if got := rig.relays.pulseCount(RelayOpenDoor); got != 0 {
		t.Errorf("unrelated unlatch pulsed the relay %d times, want 0", got)
	}
}

func TestLockUnlatched_BluetoothOpensWithoutRequest(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	// A resident unlatching from the phone app must open the door even
	// though this controller never requested it.
	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerSystemBluetooth,
		Received: rig.now,
	})
	rig.ctrl.OnLockState(lock.StateUnlatched)

	if got := rig.relays.pulseCount(RelayOpenDoor); got != 1 {
		t.Errorf("bluetooth unlatch pulsed the relay %d times, want 1", got)
	}
}

func TestLockUnlatched_StaleEventDiscarded(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnLockActionEvent(lock.ActionEvent{
		Action:   lock.ActionUnlatch,
		Trigger:  lock.TriggerSystemBluetooth,
		Received: rig.now,
	})

	// The event ages out before the lock reports unlatched.
	rig.advance(DefaultActionEventMaxAge + time.Minute)
	rig.ctrl.OnLockState(lock.StateUnlatched)

	if got := rig.relays.pulseCount(RelayOpenDoor); got != 0 {
		t.Errorf("stale event pulsed the relay %d times, want 0", got)
	}
}

func TestResync_RepublishesFullStatus(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	before := rig.sink.stateCount()
	rig.ctrl.Resync()

	if got := rig.sink.stateCount(); got != before+1 {
		t.Errorf("resync published %d state messages, want 1", got-before)
	}
	rig.sink.mu.Lock()
	relayPubs := len(rig.sink.relays)
	rig.sink.mu.Unlock()
	if relayPubs < 6 { // 3 from activation + 3 from resync
		t.Errorf("resync did not republish all relay levels: %d total publications", relayPubs)
	}
}

func TestWatcher_ReceivesSnapshots(t *testing.T) {
	rig := newTestRig(t, "openhold")

	var got []Snapshot
	rig.ctrl.AddWatcher(func(s Snapshot) { got = append(got, s) })

	rig.ctrl.Activate()
	rig.ctrl.OnDoorRequest(RequestOpenHold)

	if len(got) < 2 {
		t.Fatalf("watcher received %d snapshots, want at least 2", len(got))
	}
	last := got[len(got)-1]
	if last.DoorState != StateOpenHold || last.DoorMode != ModeOpenHold {
		t.Errorf("last snapshot = %+v, want openhold state and mode", last)
	}
}

func TestCloseSequence_UnlocksEngagedLock(t *testing.T) {
	rig := newTestRig(t, "openhold")
	rig.ctrl.Activate()

	rig.ctrl.OnDoorRequest(RequestOpenHold)
	rig.ctrl.OnLockState(lock.StateLocked)

	unlocksBefore := rig.sink.actionCount(lock.ActionUnlock)
	rig.ctrl.OnDoorRequest(RequestClose)

	if got := rig.sink.actionCount(lock.ActionUnlock) - unlocksBefore; got != 1 {
		t.Errorf("close while locked published %d unlock commands, want 1", got)
	}
	if rig.relays.level(RelayOpenHold) {
		t.Error("openhold relay still energized after close")
	}
	if !rig.relays.level(RelayOpenClose) {
		t.Error("openclose relay not energized after close")
	}
}
