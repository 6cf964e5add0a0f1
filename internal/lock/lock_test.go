package lock

import (
	"testing"
	"time"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    State
		wantErr bool
	}{
		{"locked", "1", StateLocked, false},
		{"unlocked", "3", StateUnlocked, false},
		{"unlatched", "5", StateUnlatched, false},
		{"unlatching", "7", StateUnlatching, false},
		{"motor blocked", "254", StateMotorBlocked, false},
		{"whitespace tolerated", " 2 ", StateUnlocking, false},
		{"unknown value degrades to undefined", "42", StateUndefined, false},
		{"non-numeric", "open", StateUndefined, true},
		{"empty", "", StateUndefined, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseState(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseState(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseState(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Action
		wantErr bool
	}{
		{"unlock", "1", ActionUnlock, false},
		{"unlatch", "3", ActionUnlatch, false},
		{"fob", "80", ActionFob, false},
		{"unknown action rejected", "42", 0, true},
		{"non-numeric", "unlatch", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAction(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAction(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAction(%q) = %v, want %v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestParseSensorState(t *testing.T) {
	got, err := ParseSensorState("3")
	if err != nil {
		t.Fatalf("ParseSensorState(3) error = %v", err)
	}
	if got != SensorDoorOpened {
		t.Errorf("ParseSensorState(3) = %v, want %v", got, SensorDoorOpened)
	}

	// Unknown sensor values degrade to undefined without error.
	got, err = ParseSensorState("99")
	if err != nil {
		t.Fatalf("ParseSensorState(99) error = %v", err)
	}
	if got != SensorUndefined {
		t.Errorf("ParseSensorState(99) = %v, want %v", got, SensorUndefined)
	}
}

func TestParseActionEvent(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    ActionEvent
		wantErr bool
	}{
		{
			name:    "bluetooth unlatch",
			payload: "3,0,42,0,0",
			want: ActionEvent{
				Action:   ActionUnlatch,
				Trigger:  TriggerSystemBluetooth,
				AuthID:   42,
				Received: now,
			},
		},
		{
			name:    "mqtt unlatch with auto unlock",
			payload: "3,172,7,12,1",
			want: ActionEvent{
				Action:     ActionUnlatch,
				Trigger:    TriggerMQTT,
				AuthID:     7,
				CodeID:     12,
				AutoUnlock: true,
				Received:   now,
			},
		},
		{
			name:    "whitespace between fields",
			payload: "1, 2, 0, 0, 0",
			want: ActionEvent{
				Action:   ActionUnlock,
				Trigger:  TriggerButton,
				Received: now,
			},
		},
		{"too few fields", "3,0,42", ActionEvent{}, true},
		{"too many fields", "3,0,42,0,0,9", ActionEvent{}, true},
		{"bad action", "99,0,42,0,0", ActionEvent{}, true},
		{"non-numeric trigger", "3,bt,42,0,0", ActionEvent{}, true},
		{"empty payload", "", ActionEvent{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseActionEvent(tt.payload, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseActionEvent(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseActionEvent(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestActionEvent_Age(t *testing.T) {
	received := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	ev := ActionEvent{Received: received}

	if age := ev.Age(received.Add(12 * time.Second)); age != 12*time.Second {
		t.Errorf("Age() = %v, want 12s", age)
	}
}

func TestState_String(t *testing.T) {
	if got := StateUnlatched.String(); got != "unlatched" {
		t.Errorf("StateUnlatched.String() = %q, want %q", got, "unlatched")
	}
	if got := State(200).String(); got != "state(200)" {
		t.Errorf("State(200).String() = %q, want %q", got, "state(200)")
	}
}
