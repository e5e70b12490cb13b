package bambu

import (
	"strings"

	"github.com/printfarm/hub/internal/status"
)

// bambuStateTable is used in place of the generic status table, not in
// front of it: a gcode_state value missing here maps to StateUnknown
// even where the vendor-neutral vocabulary knows it (e.g. OFFLINE).
var bambuStateTable = map[string]status.PrinterState{
	"IDLE":   status.StateIdle,
	"FINISH": status.StateIdle,

	"RUNNING": status.StatePrinting,
	"PREPARE": status.StatePrinting,

	"PAUSE": status.StatePaused,

	"FAILED": status.StateError,
}

// parseGcodeState maps a raw gcode_state string to a normalized state,
// falling back to StateUnknown for anything not in the Bambu-specific
// table (spec.md §4.4's "otherwise unknown" clause — this adapter does
// not fall through to the generic §4.2 table, since Bambu's vocabulary
// overlaps it only by coincidence).
func parseGcodeState(raw string) status.PrinterState {
	if state, ok := bambuStateTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return state
	}
	return status.StateUnknown
}
