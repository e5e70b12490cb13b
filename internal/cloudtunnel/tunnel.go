// Package cloudtunnel implements the Cloud Tunnel (spec.md §4.5): the
// single authenticated bidirectional WebSocket connection between this
// hub and the remote control plane, carrying registration, the
// hub_hello/hub_welcome handshake, heartbeat, command dispatch, and the
// periodic printer_status broadcast.
package cloudtunnel

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/config"
	"github.com/printfarm/hub/internal/coordination"
	"github.com/printfarm/hub/internal/metrics"
	"github.com/printfarm/hub/internal/schema"
	"github.com/printfarm/hub/internal/store"
)

// Identity is the set of process-wide identity fields the handshake
// and registration payloads need (spec.md §3, §4.5).
type Identity struct {
	HubID           string
	MACAddress      string
	FirmwareVersion string
	HardwareVersion string
	TenantID        string
	ClaimToken      string
}

type tunnelEvent struct {
	kind  string // "message", "pong", "closed"
	epoch int
	data  []byte
	err   error
}

type dialResult struct {
	conn *websocket.Conn
	err  error
}

// wireConn is the subset of *websocket.Conn the tunnel depends on,
// narrowed to an interface so tests can substitute a recorder instead
// of dialing a real socket.
type wireConn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Tunnel drives the cloud connection's state machine. All of its
// exported methods run on the scheduler goroutine; the only
// concurrency is the background dial/register goroutines and the
// WebSocket reader goroutine, all of which communicate back over
// channels that Poll drains.
type Tunnel struct {
	identity Identity
	ns       *store.Namespace
	fleet    coordination.Fleet
	gpio     *coordination.PinSink
	log      *logrus.Entry
	now      func() time.Time

	desired bool
	linkUp  bool

	wsBase   string
	httpBase string

	state         State
	registered    bool
	cloudDisabled bool
	hubName       string

	conn      wireConn
	connEpoch int

	dialCh     chan dialResult
	registerCh chan registerResult
	events     chan tunnelEvent

	reconnectAttempts int
	lastAttempt       time.Time
	failedSince       time.Time
	authDeadline      time.Time
	lastActivity      time.Time
	lastPing          time.Time
	lastStatusBcast   time.Time
	disconnectAfter   time.Time
}

// New constructs a Tunnel bound to a persistent-store namespace and a
// non-owning Fleet Manager handle.
func New(identity Identity, cloudURL string, ns *store.Namespace, fleet coordination.Fleet, gpio *coordination.PinSink, log *logrus.Entry) (*Tunnel, error) {
	wsBase, httpBase, err := normalizeCloudURL(cloudURL)
	if err != nil {
		return nil, err
	}

	registered, _ := ns.GetBool("registered", false)
	hubName, _ := ns.GetString("hub_name", "")

	return &Tunnel{
		identity:   identity,
		ns:         ns,
		fleet:      fleet,
		gpio:       gpio,
		log:        log,
		now:        time.Now,
		linkUp:     true,
		wsBase:     wsBase,
		httpBase:   httpBase,
		state:      StateOffline,
		registered: registered,
		hubName:    hubName,
		dialCh:     make(chan dialResult, 1),
		registerCh: make(chan registerResult, 1),
		events:     make(chan tunnelEvent, 64),
	}, nil
}

// Start marks the tunnel as wanting a connection. Poll drives the
// actual state machine from here.
func (t *Tunnel) Start() { t.desired = true }

// SetLinkUp reflects the underlying network link's state (spec.md
// §4.5's "any -> link goes down -> OFFLINE" transition).
func (t *Tunnel) SetLinkUp(up bool) { t.linkUp = up }

// State returns the current lifecycle state, for metrics/diagnostics.
func (t *Tunnel) State() State { return t.state }

// SetCloudURL re-points the tunnel at a new cloud root, persists it,
// and forces a reconnect on the new endpoint (part of the
// coordination.Tunnel contract provisioning uses).
func (t *Tunnel) SetCloudURL(raw string) error {
	wsBase, httpBase, err := normalizeCloudURL(raw)
	if err != nil {
		return err
	}
	t.wsBase, t.httpBase = wsBase, httpBase
	t.registered = false
	t.ns.PutBool("registered", false)
	t.closeConn()
	t.transition(StateOffline)
	return nil
}

// RequestDisconnect implements the hub_command {action:"disconnect"}
// effect from outside the dispatch path (coordination.Tunnel contract).
func (t *Tunnel) RequestDisconnect() {
	t.cloudDisabled = true
	t.closeConn()
	t.transition(StateOffline)
}

func (t *Tunnel) transition(s State) {
	if s == t.state {
		return
	}
	t.log.WithFields(logrus.Fields{"from": t.state, "to": s}).Info("cloudtunnel: state transition")
	t.state = s
	metrics.SetTunnelState(int(s))
}

// Poll advances the state machine by one scheduler tick. It never waits
// on registration, dialing or reads: those run on background goroutines
// and are observed here only through already-ready channel sends.
// Outbound frames (pings, acks, status broadcasts) are written to the
// socket synchronously from Poll.
func (t *Tunnel) Poll() {
	t.drainDial()
	t.drainRegister()
	t.drainEvents()

	switch t.state {
	case StateOffline:
		t.pollOffline()
	case StateRegistering:
		// waiting on registerCh, drained above
	case StateConnecting:
		// waiting on dialCh, drained above
	case StateAuthenticating:
		t.pollAuthenticating()
	case StateConnected:
		t.pollConnected()
	case StateReconnecting:
		t.pollReconnecting()
	case StateFailed:
		t.pollFailed()
	}
}

func (t *Tunnel) pollOffline() {
	if !t.desired || !t.linkUp || t.cloudDisabled {
		return
	}
	if t.registered {
		t.beginConnect()
	} else {
		t.beginRegister()
	}
}

func (t *Tunnel) beginRegister() {
	t.transition(StateRegistering)
	req := registerRequest{
		HubID:           t.identity.HubID,
		MACAddress:      t.identity.MACAddress,
		FirmwareVersion: t.identity.FirmwareVersion,
		TenantID:        t.identity.TenantID,
		ClaimToken:      t.identity.ClaimToken,
	}
	go func() {
		t.registerCh <- doRegister(t.httpBase, req, config.HTTPRegisterTimeout)
	}()
}

func (t *Tunnel) drainRegister() {
	select {
	case res := <-t.registerCh:
		if res.ok {
			t.registered = true
			t.ns.PutBool("registered", true)
			t.beginConnect()
		} else {
			t.log.WithError(res.err).Warn("cloudtunnel: registration failed")
			t.enterReconnecting()
		}
	default:
	}
}

func (t *Tunnel) beginConnect() {
	t.transition(StateConnecting)
	t.lastAttempt = t.now()
	url := socketURL(t.wsBase, t.identity.HubID)
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		t.dialCh <- dialResult{conn: conn, err: err}
	}()
}

func (t *Tunnel) drainDial() {
	select {
	case res := <-t.dialCh:
		if res.err != nil {
			t.log.WithError(res.err).Warn("cloudtunnel: dial failed")
			t.enterReconnecting()
			return
		}
		t.conn = res.conn
		t.lastActivity = t.now()
		t.authDeadline = t.now().Add(config.AuthTimeout)
		t.transition(StateAuthenticating)
		t.startReader()
		t.sendHello()
	default:
	}
}

func (t *Tunnel) startReader() {
	conn := t.conn
	epoch := t.connEpoch
	conn.SetPongHandler(func(string) error {
		t.events <- tunnelEvent{kind: "pong", epoch: epoch}
		return nil
	})
	go func() {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				t.events <- tunnelEvent{kind: "closed", epoch: epoch, err: err}
				return
			}
			if mt == websocket.TextMessage {
				t.events <- tunnelEvent{kind: "message", epoch: epoch, data: data}
			}
		}
	}()
}

func (t *Tunnel) drainEvents() {
	for {
		select {
		case ev := <-t.events:
			t.handleEvent(ev)
		default:
			return
		}
	}
}

func (t *Tunnel) handleEvent(ev tunnelEvent) {
	// A "closed" event from a connection we already tore down
	// ourselves (SetCloudURL, RequestDisconnect, a prior timeout) is
	// stale — the reader goroutine that produced it no longer
	// corresponds to t.conn, so it must not re-trigger reconnect logic
	// for a connection that has already moved on.
	if ev.epoch != t.connEpoch {
		return
	}
	switch ev.kind {
	case "pong":
		t.lastActivity = t.now()
	case "message":
		t.lastActivity = t.now()
		t.dispatch(ev.data)
	case "closed":
		t.log.WithError(ev.err).Info("cloudtunnel: socket closed")
		t.conn = nil
		t.enterReconnecting()
	}
}

func (t *Tunnel) sendHello() {
	payload, err := marshal(helloMessage{
		Type:            schema.TypeHubHello,
		HubID:           t.identity.HubID,
		FirmwareVersion: t.identity.FirmwareVersion,
		HardwareVersion: t.identity.HardwareVersion,
		MACAddress:      t.identity.MACAddress,
	})
	if err != nil {
		t.log.WithError(err).Error("cloudtunnel: marshal hub_hello")
		return
	}
	t.writeText(payload)
}

func (t *Tunnel) pollAuthenticating() {
	if t.now().After(t.authDeadline) {
		t.log.Warn("cloudtunnel: auth timed out waiting for hub_welcome")
		t.closeConn()
		t.enterReconnecting()
	}
}

func (t *Tunnel) pollConnected() {
	if !t.disconnectAfter.IsZero() && !t.now().Before(t.disconnectAfter) {
		t.disconnectAfter = time.Time{}
		t.closeConn()
		t.transition(StateOffline)
		return
	}
	if t.now().Sub(t.lastPing) >= config.PingInterval {
		t.lastPing = t.now()
		if t.conn != nil {
			t.conn.WriteMessage(websocket.PingMessage, nil)
		}
	}
	if t.now().Sub(t.lastActivity) >= config.PongTimeout {
		t.log.Warn("cloudtunnel: no activity within pong timeout")
		t.closeConn()
		t.enterReconnecting()
		return
	}
	if t.now().Sub(t.lastStatusBcast) >= config.StatusBroadcastPeriod {
		t.broadcastStatus()
	}
}

func (t *Tunnel) enterReconnecting() {
	t.reconnectAttempts++
	t.lastAttempt = t.now()
	if t.reconnectAttempts > config.MaxReconnectAttempts {
		t.failedSince = t.now()
		t.transition(StateFailed)
		return
	}
	metrics.IncTunnelReconnect()
	t.transition(StateReconnecting)
}

func (t *Tunnel) pollReconnecting() {
	delay := backoffDelay(t.reconnectAttempts)
	if t.now().Sub(t.lastAttempt) >= delay {
		t.beginConnect()
	}
}

func (t *Tunnel) pollFailed() {
	if t.now().Sub(t.failedSince) >= config.FailedResetAfter {
		t.reconnectAttempts = 0
		t.transition(StateOffline)
	}
}

// backoffDelay implements spec.md §4.5's delay_i = min(1000ms*2^i, 60000ms).
// attempt counts retries starting at 1 (the first retry after a
// failure), corresponding to i=0 in the spec's formula.
func backoffDelay(attempt int) time.Duration {
	delay := config.ReconnectInitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= config.ReconnectMaxDelay {
			return config.ReconnectMaxDelay
		}
	}
	return delay
}

func (t *Tunnel) closeConn() {
	t.connEpoch++
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
}

func (t *Tunnel) writeText(payload []byte) bool {
	if t.conn == nil {
		return false
	}
	return t.conn.WriteMessage(websocket.TextMessage, payload) == nil
}
