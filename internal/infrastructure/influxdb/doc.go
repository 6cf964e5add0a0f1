// Package influxdb provides optional time-series telemetry for Doorkeeper.
//
// Door state transitions, lock state reports, and relay level changes are
// written as InfluxDB points through the client's non-blocking write API.
// Writes are batched and flushed asynchronously; a broker outage never
// blocks the door controller.
//
// The package is entirely optional: when telemetry is disabled in config
// the client is simply not constructed and no points are written.
package influxdb
