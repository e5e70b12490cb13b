package cloudtunnel

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/printer"
	"github.com/printfarm/hub/internal/status"
	"github.com/printfarm/hub/internal/store"
)

// recordingConn captures every frame written to it, for assertions,
// and never actually touches the network.
type recordingConn struct {
	written [][]byte
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}
func (c *recordingConn) ReadMessage() (int, []byte, error) { select {} }
func (c *recordingConn) SetPongHandler(func(string) error) {}
func (c *recordingConn) Close() error                      { return nil }

func (c *recordingConn) lastAck() commandAck {
	var ack commandAck
	json.Unmarshal(c.written[len(c.written)-1], &ack)
	return ack
}

// fakeAdapter is a minimal printer.Adapter double for dispatch tests.
type fakeAdapter struct {
	serial    string
	connected bool
	snap      status.Snapshot
	paused    bool
}

func (a *fakeAdapter) Connect() bool           { a.connected = true; return true }
func (a *fakeAdapter) Disconnect()             { a.connected = false }
func (a *fakeAdapter) IsConnected() bool       { return a.connected }
func (a *fakeAdapter) Status() status.Snapshot { return a.snap }
func (a *fakeAdapter) Poll()                   {}
func (a *fakeAdapter) Pause() bool             { a.paused = true; return true }
func (a *fakeAdapter) Resume() bool            { a.paused = false; return true }
func (a *fakeAdapter) Stop() bool              { return true }
func (a *fakeAdapter) SendGCode(string) bool   { return true }
func (a *fakeAdapter) SetLight(bool) bool      { return true }
func (a *fakeAdapter) TypeTag() string         { return "bambu" }
func (a *fakeAdapter) DisplayName() string     { return "Test Printer" }
func (a *fakeAdapter) StableID() string        { return a.serial }

// fakeFleet is a coordination.Fleet double.
type fakeFleet struct {
	bySerial map[string]*fakeAdapter
	order    []string
	addErr   error
}

func newFakeFleet() *fakeFleet { return &fakeFleet{bySerial: make(map[string]*fakeAdapter)} }

func (f *fakeFleet) Add(cfg fleet.SlotConfig) (int, error) {
	if f.addErr != nil {
		return -1, f.addErr
	}
	f.bySerial[cfg.Serial] = &fakeAdapter{serial: cfg.Serial}
	f.order = append(f.order, cfg.Serial)
	return len(f.order) - 1, nil
}
func (f *fakeFleet) Remove(index int) error {
	if index < 0 || index >= len(f.order) {
		return nil
	}
	delete(f.bySerial, f.order[index])
	return nil
}
func (f *fakeFleet) Get(index int) (printer.Adapter, bool) {
	for _, a := range f.bySerial {
		return a, true
	}
	return nil, false
}
func (f *fakeFleet) FindBySerial(serial string) (int, printer.Adapter, bool) {
	a, ok := f.bySerial[serial]
	if !ok {
		return -1, nil, false
	}
	return 0, a, true
}
func (f *fakeFleet) List() []fleet.SlotSummary {
	out := make([]fleet.SlotSummary, 0, len(f.bySerial))
	for s, a := range f.bySerial {
		out = append(out, fleet.SlotSummary{PrinterID: s, Connected: a.connected})
	}
	return out
}
func (f *fakeFleet) Snapshots() map[string]printer.Adapter {
	out := make(map[string]printer.Adapter, len(f.bySerial))
	for s, a := range f.bySerial {
		out[s] = a
	}
	return out
}
func (f *fakeFleet) ConnectedCount() int { return len(f.bySerial) }
func (f *fakeFleet) ActiveCount() int    { return len(f.bySerial) }

func testTunnel(t *testing.T, ff *fakeFleet) (*Tunnel, *recordingConn) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "hub.db"), 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(discardWriter{})

	tun, err := New(Identity{HubID: "HUB-TEST"}, "https://cloud.example.com", st.Namespace("tunnel"), ff, nil, log.WithField("component", "tunnel_test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	conn := &recordingConn{}
	tun.conn = conn
	tun.state = StateConnected
	return tun, conn
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDispatchConfigurePrinterAdd(t *testing.T) {
	ff := newFakeFleet()
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"configure_printer","command_id":"c1","action":"add","printer":{"id":"p1","connection_type":"bambu","serial_number":"S1","access_code":"12345678","ip_address":"10.0.0.5"}}`))

	ack := conn.lastAck()
	if ack.CommandID != "c1" || !ack.Success {
		t.Fatalf("ack = %+v, want success for c1", ack)
	}
	if _, _, ok := ff.FindBySerial("S1"); !ok {
		t.Fatal("configure_printer add did not reach the fleet")
	}
}

func TestDispatchConfigurePrinterRemove(t *testing.T) {
	ff := newFakeFleet()
	ff.bySerial["S1"] = &fakeAdapter{serial: "S1"}
	ff.order = append(ff.order, "S1")
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"configure_printer","command_id":"c2","action":"remove","printer":{"serial_number":"S1"}}`))

	ack := conn.lastAck()
	if ack.CommandID != "c2" || !ack.Success {
		t.Fatalf("ack = %+v, want success for c2", ack)
	}
	if _, _, ok := ff.FindBySerial("S1"); ok {
		t.Fatal("configure_printer remove did not reach the fleet")
	}
}

func TestDispatchPrinterCommandPause(t *testing.T) {
	ff := newFakeFleet()
	adapter := &fakeAdapter{serial: "S1", connected: true}
	ff.bySerial["S1"] = adapter
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"printer_command","command_id":"c3","printer_id":"S1","action":"pause"}`))

	ack := conn.lastAck()
	if ack.CommandID != "c3" || !ack.Success {
		t.Fatalf("ack = %+v, want success for c3", ack)
	}
	if !adapter.paused {
		t.Error("printer_command pause did not reach the adapter")
	}
}

func TestDispatchPrinterCommandDisconnected(t *testing.T) {
	ff := newFakeFleet()
	adapter := &fakeAdapter{serial: "S1", connected: false}
	ff.bySerial["S1"] = adapter
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"printer_command","command_id":"c9","printer_id":"S1","action":"pause"}`))

	ack := conn.lastAck()
	if ack.CommandID != "c9" || ack.Success || ack.Error != "Printer not connected" {
		t.Fatalf("ack = %+v, want failure with \"Printer not connected\" for c9", ack)
	}
	if adapter.paused {
		t.Error("printer_command reached a disconnected adapter")
	}
}

func TestDispatchPrinterCommandUnknownPrinter(t *testing.T) {
	ff := newFakeFleet()
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"printer_command","command_id":"c4","printer_id":"missing","action":"pause"}`))

	ack := conn.lastAck()
	if ack.Success {
		t.Fatal("expected failure ack for unknown printer")
	}
}

func TestDispatchHubCommandGPIOSet(t *testing.T) {
	ff := newFakeFleet()
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"hub_command","command_id":"c5","action":"gpio_set","gpio_pin":3,"gpio_state":true}`))

	ack := conn.lastAck()
	if ack.CommandID != "c5" || !ack.Success {
		t.Fatalf("ack = %+v, want success for c5", ack)
	}
}

func TestDispatchUnknownTypeNoAck(t *testing.T) {
	ff := newFakeFleet()
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"something_else","command_id":"c6"}`))

	if len(conn.written) != 0 {
		t.Fatalf("expected no ack for unknown type, got %d frames", len(conn.written))
	}
}

func TestDispatchErrorTypeNoAck(t *testing.T) {
	ff := newFakeFleet()
	tun, conn := testTunnel(t, ff)

	tun.dispatch([]byte(`{"type":"error","command_id":"c7","message":"boom"}`))

	if len(conn.written) != 0 {
		t.Fatalf("expected no ack for error type, got %d frames", len(conn.written))
	}
}
