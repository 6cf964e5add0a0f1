// Package logging provides structured logging for Doorkeeper.
//
// It wraps log/slog with configuration-driven level, format and output
// selection, plus default service/version fields on every record.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	doorLog := log.With("component", "door")
//	doorLog.Info("state changed", "from", "closed", "to", "opened")
package logging
