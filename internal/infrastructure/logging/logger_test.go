package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := level(tt.in); got != tt.want {
			t.Errorf("level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func bufferLogger(buf *bytes.Buffer) *Logger {
	handler := slog.NewJSONHandler(buf, nil).WithAttrs([]slog.Attr{
		slog.String("service", "doorkeeper"),
		slog.String("version", "test"),
	})
	return &Logger{Logger: slog.New(handler)}
}

func TestLogger_StampsServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	log.Info("door state changed", "from", "closed", "to", "opened")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("parsing log output: %v", err)
	}

	if record["service"] != "doorkeeper" {
		t.Errorf("service = %v, want doorkeeper", record["service"])
	}
	if record["version"] != "test" {
		t.Errorf("version = %v, want test", record["version"])
	}
	if record["msg"] != "door state changed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["to"] != "opened" {
		t.Errorf("to = %v, want opened", record["to"])
	}
}

func TestLogger_WithAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	child := log.With("component", "bridge")
	if child == log {
		t.Fatal("With() returned the parent logger")
	}

	child.Info("started")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("parsing log output: %v", err)
	}
	if record["component"] != "bridge" {
		t.Errorf("component = %v, want bridge", record["component"])
	}
}

func TestDefault_NotNil(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
