package mqtt

import "fmt"

// Topic prefixes for the door controller topic contract.
//
// Lock-side topics carry the smart lock's own status feed and the command
// channel back to it. Door-side topics carry this service's authoritative
// door state, mode, relay outputs and the inbound remote request channel.
const (
	// TopicPrefixLock is the base for smart lock topics.
	TopicPrefixLock = "lock"

	// TopicPrefixDoor is the base for door controller topics.
	TopicPrefixDoor = "door"

	// TopicPrefixSystem is the base for service lifecycle topics.
	TopicPrefixSystem = "doorkeeper/system"
)

// Relay topic names, matching the three physical relay channels.
const (
	RelayNameOpenDoor  = "opendoor"
	RelayNameOpenHold  = "openhold"
	RelayNameOpenClose = "openclose"
)

// Topics provides builders for Doorkeeper MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.LockState("3807B7EC")
//	// Returns: "lock/3807B7EC/state"
type Topics struct{}

// LockState returns the topic carrying the lock's authoritative state.
//
// Example: lock/3807B7EC/state
func (Topics) LockState(device string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixLock, device)
}

// LockAction returns the lock action topic. It is both the command channel
// (published by this service, retained) and the lock's own action echo.
//
// Example: lock/3807B7EC/lockAction
func (Topics) LockAction(device string) string {
	return fmt.Sprintf("%s/%s/lockAction", TopicPrefixLock, device)
}

// LockActionEvent returns the topic carrying lock action events
// (comma-separated action,trigger,auth_id,code_id,auto_unlock).
//
// Example: lock/3807B7EC/lockActionEvent
func (Topics) LockActionEvent(device string) string {
	return fmt.Sprintf("%s/%s/lockActionEvent", TopicPrefixLock, device)
}

// DoorSensorState returns the topic carrying the lock's door sensor state.
//
// Example: lock/3807B7EC/doorsensorState
func (Topics) DoorSensorState(device string) string {
	return fmt.Sprintf("%s/%s/doorsensorState", TopicPrefixLock, device)
}

// DoorState returns the authoritative door state topic (retained).
//
// Example: door/3807B7EC/state
func (Topics) DoorState(device string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDoor, device)
}

// DoorMode returns the derived door mode topic (retained).
//
// Example: door/3807B7EC/mode
func (Topics) DoorMode(device string) string {
	return fmt.Sprintf("%s/%s/mode", TopicPrefixDoor, device)
}

// DoorRelay returns the relay output topic for one of the three relay
// channels (opendoor, openhold, openclose). Payload is 0/1, retained.
//
// Example: door/3807B7EC/relay/opendoor
func (Topics) DoorRelay(device, relay string) string {
	return fmt.Sprintf("%s/%s/relay/%s", TopicPrefixDoor, device, relay)
}

// DoorRequest returns the inbound remote door request topic.
//
// Example: door/3807B7EC/request/state
func (Topics) DoorRequest(device string) string {
	return fmt.Sprintf("%s/%s/request/state", TopicPrefixDoor, device)
}

// SystemStatus returns the service status topic used for online/offline
// announcements and the Last Will message.
//
// Example: doorkeeper/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
