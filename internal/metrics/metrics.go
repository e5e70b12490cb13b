// Package metrics registers the hub's prometheus metrics, following the
// teacher's observability/metrics package shape: a package-level
// sync.Once registration, nil-guarded accessor functions so callers
// never need to check whether Init ran.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "hub_"

var (
	registerOnce sync.Once

	tunnelState       prometheus.Gauge
	tunnelReconnects  prometheus.Counter
	commandsAcked     *prometheus.CounterVec
	printersConnected prometheus.Gauge
	printersActive    prometheus.Gauge
	statusBroadcasts  prometheus.Counter
)

// Init registers the hub's metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		tunnelState = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "tunnel_state",
			Help: "Current cloud tunnel state, as an integer ordinal of cloudtunnel.State",
		})
		tunnelReconnects = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "tunnel_reconnects_total",
			Help: "Total cloud tunnel reconnect attempts",
		})
		commandsAcked = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "commands_acked_total",
			Help: "Total command_ack frames sent, by success",
		}, []string{"success"})
		printersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "printers_connected",
			Help: "Number of occupied printer slots with a live transport connection",
		})
		printersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "printers_active",
			Help: "Number of occupied printer slots",
		})
		statusBroadcasts = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "status_broadcasts_total",
			Help: "Total printer_status frames sent upstream",
		})

		prometheus.MustRegister(
			tunnelState,
			tunnelReconnects,
			commandsAcked,
			printersConnected,
			printersActive,
			statusBroadcasts,
		)
	})
}

// SetTunnelState records the tunnel's current state ordinal.
func SetTunnelState(state int) {
	if tunnelState != nil {
		tunnelState.Set(float64(state))
	}
}

// IncTunnelReconnect increments the reconnect-attempt counter.
func IncTunnelReconnect() {
	if tunnelReconnects != nil {
		tunnelReconnects.Inc()
	}
}

// IncCommandAck records a command_ack by success/failure.
func IncCommandAck(success bool) {
	if commandsAcked == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	commandsAcked.WithLabelValues(label).Inc()
}

// SetFleetCounts records the fleet manager's occupancy gauges.
func SetFleetCounts(connected, active int) {
	if printersConnected != nil {
		printersConnected.Set(float64(connected))
	}
	if printersActive != nil {
		printersActive.Set(float64(active))
	}
}

// IncStatusBroadcast increments the upstream status broadcast counter.
func IncStatusBroadcast() {
	if statusBroadcasts != nil {
		statusBroadcasts.Inc()
	}
}
