package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Telemetry measurements. One point per transition, tagged by device,
// numeric fields matching the wire encoding so dashboards and the MQTT
// feed agree on values.
const (
	measurementDoorState  = "door_state"
	measurementLockState  = "lock_state"
	measurementRelayState = "relay_state"
)

// emit queues a point on the batched write API. Points are dropped
// silently once the client is closed.
func (c *Client) emit(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// WriteDoorState records a door state transition
// (state: 0=closed, 1=opened, 2=openhold; mode: 0=openclose, 1=openhold).
func (c *Client) WriteDoorState(device string, state int, mode int) {
	c.emit(measurementDoorState,
		map[string]string{"device": device},
		map[string]interface{}{"state": state, "mode": mode})
}

// WriteLockState records the lock state reported by the message-bus
// feed (1=locked, 3=unlocked, 5=unlatched, ...).
func (c *Client) WriteLockState(device string, state int) {
	c.emit(measurementLockState,
		map[string]string{"device": device},
		map[string]interface{}{"state": state})
}

// WriteRelayState records an output relay level change. Relay is one
// of opendoor, openhold, openclose.
func (c *Client) WriteRelayState(device string, relay string, active bool) {
	level := 0
	if active {
		level = 1
	}
	c.emit(measurementRelayState,
		map[string]string{"device": device, "relay": relay},
		map[string]interface{}{"level": level})
}
