package status

import "testing"

func TestParseStateTotality(t *testing.T) {
	cases := map[string]PrinterState{
		"idle":           StateIdle,
		"STANDBY":        StateIdle,
		" ready ":        StateIdle,
		"finish":         StateIdle,
		"FINISH":         StateIdle,
		"printing":       StatePrinting,
		"RUNNING":        StatePrinting,
		"busy":           StatePrinting,
		"PREPARE":        StatePrinting,
		"paused":         StatePaused,
		"PAUSE":          StatePaused,
		"error":          StateError,
		"FAILED":         StateError,
		"fault":          StateError,
		"offline":        StateOffline,
		"disconnected":   StateOffline,
		"something-else": StateUnknown,
		"":               StateUnknown,
	}

	for raw, want := range cases {
		if got := ParseState(raw); got != want {
			t.Errorf("ParseState(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestStateStringStable(t *testing.T) {
	cases := []struct {
		state PrinterState
		want  string
	}{
		{StateOffline, "offline"},
		{StateIdle, "idle"},
		{StatePrinting, "printing"},
		{StatePaused, "paused"},
		{StateError, "error"},
		{StateUnknown, "unknown"},
	}
	for _, c := range cases {
		if got := c.state.String(); got != c.want {
			t.Errorf("State(%d).String() = %q, want %q", c.state, got, c.want)
		}
	}
}

func TestDisconnectedInvariant(t *testing.T) {
	snap := Disconnected()
	if snap.Connected {
		t.Fatal("Disconnected() snapshot must have Connected == false")
	}
	if snap.State != StateOffline {
		t.Fatalf("Disconnected() state = %v, want StateOffline", snap.State)
	}
}
