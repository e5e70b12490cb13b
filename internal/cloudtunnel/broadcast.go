package cloudtunnel

import (
	"github.com/printfarm/hub/internal/metrics"
	"github.com/printfarm/hub/internal/schema"
	"github.com/printfarm/hub/internal/status"
)

// statusShortString maps a normalized PrinterState to the upstream
// printer_status short string (spec.md §4.5, §4.2).
func statusShortString(s status.PrinterState) string {
	switch s {
	case status.StateIdle:
		return schema.StatusIdle
	case status.StatePrinting:
		return schema.StatusPrinting
	case status.StatePaused:
		return schema.StatusPaused
	case status.StateError:
		return schema.StatusError
	case status.StateOffline:
		return schema.StatusOffline
	default:
		return schema.StatusOffline
	}
}

// broadcastStatus emits one printer_status frame per occupied slot
// (spec.md §4.5), omitting optional fields whose value is zero/empty,
// then resets the broadcast timer.
func (t *Tunnel) broadcastStatus() {
	t.lastStatusBcast = t.now()

	for serial, adapter := range t.fleet.Snapshots() {
		snap := adapter.Status()
		msg := printerStatusMessage{
			Type:      schema.TypePrinterStatus,
			PrinterID: serial,
			Status:    statusShortString(snap.State),
			Temperatures: temperaturePair{
				Nozzle: snap.NozzleTemp,
				Bed:    snap.BedTemp,
			},
		}
		if snap.ProgressPercent != 0 {
			msg.ProgressPercentage = snap.ProgressPercent
		}
		if snap.RemainingSeconds != 0 {
			msg.RemainingTimeSeconds = snap.RemainingSeconds
		}
		if snap.CurrentLayer != 0 {
			msg.CurrentLayer = snap.CurrentLayer
		}
		if snap.TotalLayers != 0 {
			msg.TotalLayers = snap.TotalLayers
		}
		if snap.ErrorMessage != "" {
			msg.ErrorMessage = snap.ErrorMessage
		}

		payload, err := marshal(msg)
		if err != nil {
			t.log.WithError(err).Error("cloudtunnel: marshal printer_status")
			continue
		}
		if t.writeText(payload) {
			metrics.IncStatusBroadcast()
		}
	}
}
