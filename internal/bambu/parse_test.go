package bambu

import (
	"testing"
	"time"

	"github.com/printfarm/hub/internal/status"
)

func fixedNow() time.Time { return time.Unix(1000, 0) }

func TestApplyDeltaNoFieldZeroing(t *testing.T) {
	snap := status.Snapshot{NozzleTemp: 200, BedTemp: 60, Filename: "keep.3mf"}

	_, err := applyDelta(&snap, []byte(`{"print":{"nozzle_temper":210}}`), fixedNow)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}

	if snap.NozzleTemp != 210 {
		t.Errorf("NozzleTemp = %v, want 210", snap.NozzleTemp)
	}
	if snap.BedTemp != 60 {
		t.Errorf("BedTemp zeroed by unrelated delta: %v", snap.BedTemp)
	}
	if snap.Filename != "keep.3mf" {
		t.Errorf("Filename zeroed by unrelated delta: %v", snap.Filename)
	}
	if !snap.Connected {
		t.Error("Connected should be set true on successful parse")
	}
	if snap.LastUpdateMs != fixedNow().UnixMilli() {
		t.Errorf("LastUpdateMs = %d, want %d", snap.LastUpdateMs, fixedNow().UnixMilli())
	}
}

func TestApplyDeltaRemainingMinutesToSeconds(t *testing.T) {
	var snap status.Snapshot
	_, err := applyDelta(&snap, []byte(`{"print":{"mc_remaining_time":5}}`), fixedNow)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if snap.RemainingSeconds != 300 {
		t.Errorf("RemainingSeconds = %d, want 300", snap.RemainingSeconds)
	}
}

func TestApplyDeltaGcodeStateMapping(t *testing.T) {
	var snap status.Snapshot
	_, err := applyDelta(&snap, []byte(`{"print":{"gcode_state":"RUNNING"}}`), fixedNow)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if snap.State != status.StatePrinting {
		t.Errorf("State = %v, want Printing", snap.State)
	}
	if snap.RawState != "RUNNING" {
		t.Errorf("RawState = %q, want RUNNING", snap.RawState)
	}
}

func TestApplyDeltaHMSCount(t *testing.T) {
	var snap status.Snapshot
	hms, err := applyDelta(&snap, []byte(`{"print":{"hms":[{"code":"1"},{"code":"2"}]}}`), fixedNow)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if hms != 2 {
		t.Errorf("hms count = %d, want 2", hms)
	}
}

func TestApplyDeltaMalformedJSON(t *testing.T) {
	var snap status.Snapshot
	if _, err := applyDelta(&snap, []byte(`not json`), fixedNow); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestApplyDeltaNoPrintObject(t *testing.T) {
	var snap status.Snapshot
	hms, err := applyDelta(&snap, []byte(`{}`), fixedNow)
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if hms != 0 {
		t.Errorf("hms = %d, want 0", hms)
	}
	if snap.Connected {
		t.Error("Connected should not be set when print object absent")
	}
}
