package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/openhold/doorkeeper/internal/infrastructure/config"
)

// Logger is a slog.Logger that stamps every record with the service
// name and build version. Components derive their own with With, so a
// log line always says which subsystem produced it.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml. Format
// is json unless "text" is asked for; output is stdout unless "stderr";
// an unrecognised level falls back to info rather than failing startup.
func New(cfg config.LoggingConfig, version string) *Logger {
	handler := newHandler(cfg, destination(cfg.Output)).
		WithAttrs([]slog.Attr{
			slog.String("service", "doorkeeper"),
			slog.String("version", version),
		})

	return &Logger{Logger: slog.New(handler)}
}

// With returns a child logger carrying extra default attributes,
// typically a component name.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used before configuration loads:
// json to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

func destination(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func newHandler(cfg config.LoggingConfig, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func level(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
