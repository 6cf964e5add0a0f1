package door

import "testing"

func TestState_Next(t *testing.T) {
	if got := StateClosed.Next(); got != StateOpened {
		t.Errorf("closed.Next() = %v, want opened", got)
	}
	if got := StateOpened.Next(); got != StateOpenHold {
		t.Errorf("opened.Next() = %v, want openhold", got)
	}
	if got := StateOpenHold.Next(); got != StateClosed {
		t.Errorf("openhold.Next() = %v, want closed", got)
	}
}

func TestModeFor(t *testing.T) {
	if got := ModeFor(StateClosed); got != ModeOpenClose {
		t.Errorf("ModeFor(closed) = %v, want openclose", got)
	}
	if got := ModeFor(StateOpened); got != ModeOpenClose {
		t.Errorf("ModeFor(opened) = %v, want openclose", got)
	}
	if got := ModeFor(StateOpenHold); got != ModeOpenHold {
		t.Errorf("ModeFor(openhold) = %v, want openhold", got)
	}
}

func TestParseRequestState(t *testing.T) {
	tests := []struct {
		payload string
		want    RequestState
		wantErr bool
	}{
		{"0", RequestNone, false},
		{"1", RequestClose, false},
		{"2", RequestOpen, false},
		{"3", RequestOpenHold, false},
		{" 2\n", RequestOpen, false},
		{"4", RequestNone, true},
		{"open", RequestNone, true},
		{"", RequestNone, true},
	}

	for _, tt := range tests {
		got, err := ParseRequestState(tt.payload)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRequestState(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRequestState(%q) = %v, want %v", tt.payload, got, tt.want)
		}
	}
}

func TestRelay_String(t *testing.T) {
	tests := []struct {
		relay Relay
		want  string
	}{
		{RelayOpenDoor, "opendoor"},
		{RelayOpenHold, "openhold"},
		{RelayOpenClose, "openclose"},
	}
	for _, tt := range tests {
		if got := tt.relay.String(); got != tt.want {
			t.Errorf("Relay(%d).String() = %q, want %q", tt.relay, got, tt.want)
		}
	}
}
