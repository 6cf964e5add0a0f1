package mqtt

import "errors"

// Sentinel errors, matchable with errors.Is. The bridge treats all of
// them as transient: a failed status publish is retried implicitly by
// the next transition, and the reconnect resync repairs retained state.
var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: not connected")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
)
