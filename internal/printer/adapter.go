// Package printer defines the capability contract every vendor adapter
// implements (spec.md §4.3): a sum of concrete session types behind one
// shared interface, stored by the fleet manager as an owning value.
package printer

import "github.com/printfarm/hub/internal/status"

// Adapter is the capability set of a single printer connection. Every
// method returns promptly: poll must never block more than a few
// milliseconds, and the control operations are fire-and-forget — they
// report whether the transport accepted the frame, not whether the
// printer executed it.
type Adapter interface {
	// Connect transitions the session from disconnected to connected.
	// Idempotent if already connected.
	Connect() bool

	// Disconnect relinquishes all transport resources. Idempotent.
	Disconnect()

	// IsConnected reports the current transport state.
	IsConnected() bool

	// Status returns a snapshot; it always returns, and Connected
	// reflects the live transport state.
	Status() status.Snapshot

	// Poll drains transport I/O and advances reconnect/backoff. Must
	// never block.
	Poll()

	Pause() bool
	Resume() bool
	Stop() bool
	SendGCode(line string) bool
	SetLight(on bool) bool

	TypeTag() string
	DisplayName() string
	StableID() string
}
