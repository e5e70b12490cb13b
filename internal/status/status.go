// Package status holds the vendor-neutral printer snapshot model shared
// by every adapter and by the cloud tunnel's upstream reporting.
package status

import "strings"

// PrinterState is the normalized lifecycle state of a printer, derived
// from whatever raw string a vendor's transport reports.
type PrinterState int

const (
	StateOffline PrinterState = iota
	StateIdle
	StatePrinting
	StatePaused
	StateError
	StateUnknown
)

// String returns the stable short lowercase name of the state. Upstream
// printer_status frames use the cloud tunnel's own mapping instead,
// which reports StateUnknown as "offline".
func (s PrinterState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateIdle:
		return "idle"
	case StatePrinting:
		return "printing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

var genericStateTable = map[string]PrinterState{
	"idle":     StateIdle,
	"standby":  StateIdle,
	"ready":    StateIdle,
	"finish":   StateIdle,
	"printing": StatePrinting,
	"running":  StatePrinting,
	"busy":     StatePrinting,
	"prepare":  StatePrinting,
	"paused":   StatePaused,
	"pause":    StatePaused,
	"error":    StateError,
	"failed":   StateError,
	"fault":    StateError,

	"offline":      StateOffline,
	"disconnected": StateOffline,
}

// ParseState is the total function of spec.md §4.2: every raw vendor
// string maps to a PrinterState, case-insensitively and trimmed, and any
// value outside the table maps to StateUnknown.
func ParseState(raw string) PrinterState {
	key := strings.ToLower(strings.TrimSpace(raw))
	if state, ok := genericStateTable[key]; ok {
		return state
	}
	return StateUnknown
}

// Snapshot is the unified, vendor-neutral printer status (spec.md §3).
// Fields absent from an inbound delta must not be zeroed by a parse —
// adapters update Snapshot in place, overwriting only fields present in
// the frame being applied.
type Snapshot struct {
	Connected bool
	State     PrinterState
	RawState  string

	Filename         string
	ProgressPercent  int
	RemainingSeconds int
	ElapsedSeconds   int

	NozzleTemp   float64
	NozzleTarget float64
	BedTemp      float64
	BedTarget    float64
	ChamberTemp  float64
	HasChamber   bool

	CurrentLayer int
	TotalLayers  int

	ErrorMessage string

	LastUpdateMs int64
}

// Disconnected returns a zero-value snapshot marked offline, matching
// the invariant that connected == false implies state ∈ {offline, unknown}.
func Disconnected() Snapshot {
	return Snapshot{Connected: false, State: StateOffline}
}
