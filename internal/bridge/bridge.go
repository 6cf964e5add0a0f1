package bridge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/openhold/doorkeeper/internal/door"
	"github.com/openhold/doorkeeper/internal/infrastructure/logging"
	"github.com/openhold/doorkeeper/internal/infrastructure/mqtt"
	"github.com/openhold/doorkeeper/internal/lock"
)

// MQTTClient is the subset of the MQTT client the bridge needs.
// Narrow by design so tests can stub it without a broker.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetOnConnect(callback func())
}

// Controller is the door state machine as seen by the bridge.
type Controller interface {
	OnLockState(s lock.State)
	OnLockAction(a lock.Action)
	OnLockActionEvent(ev lock.ActionEvent)
	OnDoorSensorState(s lock.SensorState)
	OnDoorRequest(r door.RequestState)
	Resync()
}

// Journal records transitions for the history API. Optional.
type Journal interface {
	RecordTransition(ctx context.Context, kind, value string) error
}

// Telemetry writes time-series points. Optional; satisfied by the
// influxdb client.
type Telemetry interface {
	WriteDoorState(device string, state, mode int)
	WriteLockState(device string, state int)
	WriteRelayState(device string, relay string, active bool)
}

// journalTimeout bounds the journal write done from publish paths.
const journalTimeout = 2 * time.Second

// Bridge connects the door controller to the message bus. Inbound, it
// subscribes to the lock feed and the request topic, parses payloads
// and dispatches to the controller; malformed payloads are logged and
// discarded, never fatal. Outbound, it implements the controller's
// Sink, publishing retained status and fanning transitions out to the
// journal and telemetry.
type Bridge struct {
	log       *logging.Logger
	client    MQTTClient
	ctrl      Controller
	journal   Journal
	telemetry Telemetry
	device    string
	qos       byte
	topics    mqtt.Topics

	// now is injectable for tests; stamps received action events.
	now func() time.Time
}

// Option configures optional bridge collaborators.
type Option func(*Bridge)

// WithJournal enables transition journaling.
func WithJournal(j Journal) Option {
	return func(b *Bridge) { b.journal = j }
}

// WithTelemetry enables time-series writes.
func WithTelemetry(t Telemetry) Option {
	return func(b *Bridge) { b.telemetry = t }
}

// New creates a bridge for the given device. The controller is wired
// afterwards with Attach, since the controller itself publishes through
// the bridge. Call Start to subscribe.
func New(log *logging.Logger, client MQTTClient, device string, qos byte, opts ...Option) *Bridge {
	b := &Bridge{
		log:    log.With("component", "bridge"),
		client: client,
		device: device,
		qos:    qos,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach binds the door controller. Must be called before Start.
func (b *Bridge) Attach(ctrl Controller) {
	b.ctrl = ctrl
}

// Start subscribes to the inbound topics and arms the reconnect resync.
// On every (re)connect after the first, the controller re-publishes its
// full status so late subscribers see fresh retained values.
func (b *Bridge) Start() error {
	if b.ctrl == nil {
		return fmt.Errorf("bridge: no controller attached")
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.LockState(b.device), b.handleLockState},
		{b.topics.LockAction(b.device), b.handleLockAction},
		{b.topics.LockActionEvent(b.device), b.handleLockActionEvent},
		{b.topics.DoorSensorState(b.device), b.handleDoorSensorState},
		{b.topics.DoorRequest(b.device), b.handleDoorRequest},
	}
	for _, s := range subs {
		if err := b.client.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}

	b.client.SetOnConnect(func() {
		b.log.Info("reconnected; resyncing retained status")
		b.ctrl.Resync()
	})

	b.log.Info("bridge started", "device", b.device, "subscriptions", len(subs))
	return nil
}

func (b *Bridge) handleLockState(topic string, payload []byte) error {
	s, err := lock.ParseState(string(payload))
	if err != nil {
		return err
	}
	b.ctrl.OnLockState(s)
	if b.telemetry != nil {
		b.telemetry.WriteLockState(b.device, int(s))
	}
	b.record("lock_state", s.String())
	return nil
}

func (b *Bridge) handleLockAction(topic string, payload []byte) error {
	a, err := lock.ParseAction(string(payload))
	if err != nil {
		return err
	}
	b.ctrl.OnLockAction(a)
	return nil
}

func (b *Bridge) handleLockActionEvent(topic string, payload []byte) error {
	ev, err := lock.ParseActionEvent(string(payload), b.now())
	if err != nil {
		return err
	}
	b.ctrl.OnLockActionEvent(ev)
	return nil
}

func (b *Bridge) handleDoorSensorState(topic string, payload []byte) error {
	s, err := lock.ParseSensorState(string(payload))
	if err != nil {
		return err
	}
	b.ctrl.OnDoorSensorState(s)
	return nil
}

func (b *Bridge) handleDoorRequest(topic string, payload []byte) error {
	r, err := door.ParseRequestState(string(payload))
	if err != nil {
		return err
	}
	b.ctrl.OnDoorRequest(r)
	return nil
}

// DoorState publishes a door state change (retained).
func (b *Bridge) DoorState(s door.State) {
	b.publish(b.topics.DoorState(b.device), int(s))
	b.record("door_state", s.String())
	if b.telemetry != nil {
		b.telemetry.WriteDoorState(b.device, int(s), int(door.ModeFor(s)))
	}
}

// DoorMode publishes a door mode change (retained).
func (b *Bridge) DoorMode(m door.Mode) {
	b.publish(b.topics.DoorMode(b.device), int(m))
	b.record("door_mode", m.String())
}

// Relay publishes an output relay level (retained).
func (b *Bridge) Relay(r door.Relay, on bool) {
	level := 0
	if on {
		level = 1
	}
	b.publish(b.topics.DoorRelay(b.device, r.String()), level)
	b.record("relay_"+r.String(), strconv.Itoa(level))
	if b.telemetry != nil {
		b.telemetry.WriteRelayState(b.device, r.String(), on)
	}
}

// LockAction publishes a lock command (retained).
func (b *Bridge) LockAction(a lock.Action) {
	b.publish(b.topics.LockAction(b.device), int(a))
	b.record("lock_command", a.String())
}

func (b *Bridge) publish(topic string, value int) {
	payload := strconv.Itoa(value)
	if err := b.client.Publish(topic, []byte(payload), b.qos, true); err != nil {
		b.log.Error("publish failed", "topic", topic, "payload", payload, "error", err)
	}
}

func (b *Bridge) record(kind, value string) {
	if b.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := b.journal.RecordTransition(ctx, kind, value); err != nil {
		b.log.Warn("journal write failed", "kind", kind, "value", value, "error", err)
	}
}
