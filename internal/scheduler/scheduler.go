// Package scheduler implements the cooperative poll loop of spec.md §5:
// a single goroutine ticking at config.SchedulerTick rather than the
// spec's bare-metal busy-wait. The Cloud Tunnel runs its suspension
// points (TLS handshake, HTTP registration) on background goroutines.
// The Bambu Adapter does not: when a reconnect is due, its Poll dials
// synchronously and can hold the tick for up to the 10 s MQTT connect
// timeout.
package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/cloudtunnel"
	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/metrics"
)

// Loop drives the tunnel and fleet manager's poll steps at a fixed
// tick, until stop is closed.
type Loop struct {
	tunnel *cloudtunnel.Tunnel
	fleet  *fleet.Manager
	tick   time.Duration
	log    *logrus.Entry
}

// New constructs a Loop over a tunnel and fleet manager.
func New(tunnel *cloudtunnel.Tunnel, fleet *fleet.Manager, tick time.Duration, log *logrus.Entry) *Loop {
	return &Loop{tunnel: tunnel, fleet: fleet, tick: tick, log: log}
}

// Run blocks, ticking until stop is closed. Each tick polls the tunnel
// first so a just-arrived command_ack-worthy frame is dispatched before
// the fleet's adapters are given a chance to change state under it.
func (l *Loop) Run(stop <-chan struct{}) {
	l.log.WithField("tick", l.tick).Info("scheduler: starting")
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			l.log.Info("scheduler: stopping")
			return
		case <-ticker.C:
			l.tunnel.Poll()
			l.fleet.PollAll()
			metrics.SetFleetCounts(l.fleet.ConnectedCount(), l.fleet.ActiveCount())
		}
	}
}
