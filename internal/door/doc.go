// Package door contains the door state machine: the component that
// reconciles the smart lock's state feed, the physical pushbutton, the
// door sensor and remote requests into a single authoritative door
// state, relay levels and lock commands.
//
// The Controller owns all mutable state behind one mutex; the bus
// bridge, the GPIO button handler, the gateway and the watchdogs all
// enter through its On* methods. Outbound effects flow through the
// Relays and Sink interfaces so transitions are testable without
// hardware or a broker.
//
// Two watchdogs guard against missed events: a periodic auto-close
// check that force-closes a stale open state, and a one-shot
// unlatch-confirmation fallback for a lock that performed an unlatch
// but never reported the terminal unlatched status.
package door
