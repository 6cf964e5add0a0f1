// Package bridge connects the door controller to the MQTT bus.
//
// Inbound, it subscribes to the lock's state, action echo, action event
// and door sensor topics plus the remote request topic, parses each
// payload and dispatches to the controller. A malformed payload is a
// logged no-op; one bad message never corrupts state.
//
// Outbound, the Bridge implements the controller's effect sink: door
// state, mode, relay levels and lock commands are published retained,
// and optionally fanned out to the transition journal and telemetry.
package bridge
