package bambu

import (
	"encoding/json"
	"time"

	"github.com/printfarm/hub/internal/status"
)

// reportFrame mirrors the subset of the Bambu "report" payload this
// adapter understands. Every field is a pointer so encoding/json leaves
// it nil when absent from the frame, letting applyDelta distinguish
// "field omitted" from "field present and zero" (spec.md §4.4's "no
// field zeroing" rule).
type reportFrame struct {
	Print *printDelta `json:"print"`
}

type printDelta struct {
	NozzleTemp       *float64 `json:"nozzle_temper"`
	NozzleTargetTemp *float64 `json:"nozzle_target_temper"`
	BedTemp          *float64 `json:"bed_temper"`
	BedTargetTemp    *float64 `json:"bed_target_temper"`
	ChamberTemp      *float64 `json:"chamber_temper"`
	GcodeState       *string  `json:"gcode_state"`
	Percent          *int     `json:"mc_percent"`
	RemainingMinutes *int     `json:"mc_remaining_time"`
	LayerNum         *int     `json:"layer_num"`
	TotalLayerNum    *int     `json:"total_layer_num"`
	GcodeFile        *string  `json:"gcode_file"`
	HMS              []any    `json:"hms"`
}

// applyDelta parses a single inbound report frame and merges it into
// snap in place, per the field table of spec.md §4.4. It returns the
// number of HMS (error log) entries observed, for the caller to log.
func applyDelta(snap *status.Snapshot, payload []byte, now func() time.Time) (hmsCount int, err error) {
	var frame reportFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return 0, err
	}
	if frame.Print == nil {
		return 0, nil
	}
	d := frame.Print

	if d.NozzleTemp != nil {
		snap.NozzleTemp = *d.NozzleTemp
	}
	if d.NozzleTargetTemp != nil {
		snap.NozzleTarget = *d.NozzleTargetTemp
	}
	if d.BedTemp != nil {
		snap.BedTemp = *d.BedTemp
	}
	if d.BedTargetTemp != nil {
		snap.BedTarget = *d.BedTargetTemp
	}
	if d.ChamberTemp != nil {
		snap.ChamberTemp = *d.ChamberTemp
		snap.HasChamber = true
	}
	if d.GcodeState != nil {
		snap.RawState = *d.GcodeState
		snap.State = parseGcodeState(*d.GcodeState)
	}
	if d.Percent != nil {
		snap.ProgressPercent = *d.Percent
	}
	if d.RemainingMinutes != nil {
		// Printer reports minutes; the unified model is in seconds.
		snap.RemainingSeconds = *d.RemainingMinutes * 60
	}
	if d.LayerNum != nil {
		snap.CurrentLayer = *d.LayerNum
	}
	if d.TotalLayerNum != nil {
		snap.TotalLayers = *d.TotalLayerNum
	}
	if d.GcodeFile != nil {
		snap.Filename = *d.GcodeFile
	}

	snap.Connected = true
	snap.LastUpdateMs = now().UnixMilli()

	return len(d.HMS), nil
}
