// Package coordination provides the non-owning handle the Cloud Tunnel
// uses to reach the Fleet Manager, and provisioning uses to reach both,
// without either holding an owning reference to the other (spec.md §9's
// "cyclic reference between layers" redesign note). cmd/hub constructs
// the concrete Fleet Manager and Cloud Tunnel and hands each to the
// Cloud Tunnel and provisioning service as these narrow interfaces.
package coordination

import (
	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/printer"
)

// Fleet is the subset of the Fleet Manager the Cloud Tunnel and
// provisioning dispatch against.
type Fleet interface {
	Add(cfg fleet.SlotConfig) (int, error)
	Remove(index int) error
	Get(index int) (printer.Adapter, bool)
	FindBySerial(serial string) (int, printer.Adapter, bool)
	List() []fleet.SlotSummary
	Snapshots() map[string]printer.Adapter
	ConnectedCount() int
	ActiveCount() int
}

// Tunnel is the subset of the Cloud Tunnel that provisioning acts on.
// RequestDisconnect gives callers outside the tunnel the effect of a
// hub_command disconnect; the tunnel's own hub_command handler does not
// go through this interface.
type Tunnel interface {
	SetCloudURL(url string) error
	RequestDisconnect()
}

// Context bundles the handles that reach across the Tunnel/Fleet
// boundary. Nothing in this repository constructs one: cmd/hub passes
// the Fleet, Tunnel and PinSink handles to their consumers one by one,
// and the scheduler holds the concrete Tunnel and Fleet Manager.
type Context struct {
	Fleet  Fleet
	Tunnel Tunnel
	GPIO   *PinSink
}

// PinSink is a named boolean output sink for the hub_command
// {"action":"gpio_set"} handler. This hub has no physical GPIO; the
// sink exists so the handler's contract (spec.md §4.5) is fully
// exercised and observable without inventing hardware access.
type PinSink struct {
	pins map[int]bool
}

// NewPinSink constructs an empty PinSink.
func NewPinSink() *PinSink {
	return &PinSink{pins: make(map[int]bool)}
}

// Set records the requested state of a named output pin.
func (p *PinSink) Set(pin int, state bool) {
	p.pins[pin] = state
}

// Get reports the last-set state of a pin, defaulting to false.
func (p *PinSink) Get(pin int) bool {
	return p.pins[pin]
}
