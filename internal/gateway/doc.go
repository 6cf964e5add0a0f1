// Package gateway exposes door status and remote control to stream
// peers, typically a Bluetooth RFCOMM forwarder or a phone app.
//
// The protocol is line-delimited JSON. Peers send requests shaped like
//
//	{"method":"set","params":{"door_request_state":3}}
//
// which are republished onto the door request topic; the core consumes
// them like any other remote request. In the other direction every peer
// receives a status snapshot on connect, whenever any constituent value
// changes, and periodically as a heartbeat.
package gateway
