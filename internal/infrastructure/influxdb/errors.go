package influxdb

import "errors"

// Sentinel errors, matchable with errors.Is. ErrDisabled guards
// against connecting when the influxdb config section is turned off;
// callers that honor the enabled flag never see it.
var (
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrNotConnected     = errors.New("influxdb: not connected")
)
