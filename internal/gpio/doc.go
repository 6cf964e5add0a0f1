// Package gpio drives the relay board and pushbutton through the Linux
// GPIO character device.
//
// Three implementations of Board exist: the hardware board (Linux
// only), a no-op board for hosts without a relay board, and a Fake for
// tests. Failure to acquire the configured lines at startup is fatal;
// it is an unrecoverable configuration error surfaced to the operator.
package gpio
