// Package mqtt provides the MQTT transport layer for Doorkeeper.
//
// It wraps github.com/eclipse/paho.mqtt.golang with:
//   - Connection management and automatic reconnection with backoff
//   - Subscription tracking and restoration after reconnect
//   - Last Will and Testament for offline detection
//   - Panic recovery around message handlers
//   - Topic builders for the lock/door topic contract
//
// Topic contract (device is the smart lock's hexadecimal identifier):
//
//	lock/{device}/state            in   integer lock state
//	lock/{device}/lockAction       in/out  integer lock action (commands retained)
//	lock/{device}/lockActionEvent  in   CSV action event
//	lock/{device}/doorsensorState  in   integer door sensor state
//	door/{device}/state            out  integer door state (retained)
//	door/{device}/mode             out  integer door mode (retained)
//	door/{device}/relay/{name}     out  0/1 (retained)
//	door/{device}/request/state    in   integer door request
//
// Retained publication on the outbound state topics lets late-joining
// subscribers (a reconnecting gateway, dashboards) learn current status
// without waiting for the next transition.
//
// Thread Safety:
//   - All Client methods are safe for concurrent use.
//   - Handlers are invoked on paho goroutines; they hand off into the door
//     controller, whose entry points serialize internally.
package mqtt
