package cloudtunnel

// State is a position in the Cloud Tunnel's connection lifecycle
// (spec.md §4.5).
type State int

const (
	StateOffline State = iota
	StateRegistering
	StateConnecting
	StateAuthenticating
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateRegistering:
		return "registering"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
