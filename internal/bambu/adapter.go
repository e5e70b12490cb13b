// Package bambu implements the printer.Adapter contract for Bambu Lab
// printers (spec.md §4.4): an MQTT-over-TLS session authenticated with
// the printer's LAN access code, translating its "report"/"request"
// topics into the unified status model and command envelopes the rest
// of the hub understands.
package bambu

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/config"
	"github.com/printfarm/hub/internal/status"
)

// Config is the slot-level configuration needed to dial a single Bambu
// printer (spec.md §3's printer slot fields, narrowed to this vendor).
type Config struct {
	Serial     string
	AccessCode string
	Host       string // network address, no scheme; port 8883 is implied
	Name       string
}

// Adapter is a single Bambu printer's MQTT session.
type Adapter struct {
	cfg Config
	log *logrus.Entry

	mu        sync.Mutex
	client    mqtt.Client
	connected bool
	seq       uint32
	snap      status.Snapshot

	lastConnectAttempt time.Time
	now                func() time.Time
}

// New constructs an adapter for a single printer slot. The session is
// not dialed until Connect is called.
func New(cfg Config, log *logrus.Entry) *Adapter {
	return &Adapter{
		cfg:  cfg,
		log:  log.WithField("printer_id", cfg.Serial),
		snap: status.Disconnected(),
		now:  time.Now,
	}
}

func (a *Adapter) reportTopic() string  { return fmt.Sprintf("device/%s/report", a.cfg.Serial) }
func (a *Adapter) requestTopic() string { return fmt.Sprintf("device/%s/request", a.cfg.Serial) }

// Connect dials the printer's MQTT broker. Idempotent if already
// connected (spec.md §4.4 step 1).
func (a *Adapter) Connect() bool {
	a.mu.Lock()
	if a.connected {
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	routerRegister(a.reportTopic(), a)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tls://%s:8883", a.cfg.Host))
	opts.SetClientID(fmt.Sprintf("hub-%d", rand.Intn(1<<16)))
	opts.SetUsername("bblp")
	opts.SetPassword(a.cfg.AccessCode)
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true}) // self-signed device cert; LAN-only transport
	opts.SetKeepAlive(config.BambuKeepalive)
	opts.SetAutoReconnect(false) // this adapter owns its own 5s reconnect cadence
	opts.SetDefaultPublishHandler(routerDispatch)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		a.log.WithError(err).Warn("bambu: connection lost")
		a.mu.Lock()
		a.connected = false
		a.snap = status.Disconnected()
		a.mu.Unlock()
	})

	client := mqtt.NewClient(opts)
	a.lastConnectAttempt = a.now()

	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		a.log.Warn("bambu: connect timed out")
		routerUnregister(a.reportTopic())
		return false
	}
	if err := token.Error(); err != nil {
		a.log.WithError(err).WithField("reason", classifyConnectError(err)).Warn("bambu: connect failed")
		routerUnregister(a.reportTopic())
		return false
	}

	subToken := client.Subscribe(a.reportTopic(), 0, nil)
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		a.log.WithError(err).Warn("bambu: subscribe failed")
		client.Disconnect(250)
		routerUnregister(a.reportTopic())
		return false
	}

	a.mu.Lock()
	a.client = client
	a.connected = true
	a.snap.Connected = true
	a.mu.Unlock()

	a.publishPushAll()
	return true
}

// Disconnect relinquishes the MQTT session. Idempotent.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.connected = false
	a.snap = status.Disconnected()
	a.mu.Unlock()

	routerUnregister(a.reportTopic())
	if client != nil {
		client.Disconnect(250)
	}
}

// IsConnected reports the current transport state.
func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Status returns the current unified snapshot.
func (a *Adapter) Status() status.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Poll advances reconnect/backoff. The underlying MQTT client delivers
// messages on its own goroutine via the shared router, so there is no
// inbound I/O to drain here — only the reconnect cadence to enforce.
func (a *Adapter) Poll() {
	a.mu.Lock()
	connected := a.connected
	sinceAttempt := a.now().Sub(a.lastConnectAttempt)
	a.mu.Unlock()

	if connected {
		return
	}
	if sinceAttempt < config.BambuReconnectPeriod {
		return
	}
	a.Connect()
}

// Pause publishes a print/pause command (spec.md §4.4).
func (a *Adapter) Pause() bool { return a.publishPrint("pause", "") }

// Resume publishes a print/resume command.
func (a *Adapter) Resume() bool { return a.publishPrint("resume", "") }

// Stop publishes a print/stop command.
func (a *Adapter) Stop() bool { return a.publishPrint("stop", "") }

// SendGCode publishes a raw gcode_line command.
func (a *Adapter) SendGCode(line string) bool { return a.publishPrint("gcode_line", line) }

// SetLight publishes a ledctrl envelope for both chamber_light and
// work_light, so either hardware family picks it up (spec.md §4.4).
func (a *Adapter) SetLight(on bool) bool {
	if !a.IsConnected() {
		return false
	}
	okChamber := a.publishLed("chamber_light", on)
	okWork := a.publishLed("work_light", on)
	return okChamber || okWork
}

// TypeTag identifies this adapter's vendor.
func (a *Adapter) TypeTag() string { return "bambu" }

// DisplayName is the user-visible printer name.
func (a *Adapter) DisplayName() string { return a.cfg.Name }

// StableID is the printer serial, used as printer_id upstream.
func (a *Adapter) StableID() string { return a.cfg.Serial }

func (a *Adapter) publishPrint(command, param string) bool {
	if !a.IsConnected() {
		return false
	}
	payload, err := marshalPrint(a.nextSeq(), command, param)
	if err != nil {
		a.log.WithError(err).Error("bambu: marshal print command")
		return false
	}
	return a.publish(payload)
}

func (a *Adapter) publishPushAll() bool {
	payload, err := marshalPushAll(a.nextSeq())
	if err != nil {
		a.log.WithError(err).Error("bambu: marshal pushall")
		return false
	}
	return a.publish(payload)
}

func (a *Adapter) publishLed(node string, on bool) bool {
	payload, err := marshalLedControl(a.nextSeq(), node, on)
	if err != nil {
		a.log.WithError(err).Error("bambu: marshal ledctrl")
		return false
	}
	return a.publish(payload)
}

func (a *Adapter) publish(payload []byte) bool {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()
	if client == nil {
		return false
	}
	token := client.Publish(a.requestTopic(), 0, false, payload)
	return token.WaitTimeout(2*time.Second) && token.Error() == nil
}

func (a *Adapter) nextSeq() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return a.seq
}

// handleMessage applies an inbound report frame, invoked by the
// package-wide router.
func (a *Adapter) handleMessage(payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	hms, err := applyDelta(&a.snap, payload, a.now)
	if err != nil {
		a.log.WithError(err).Warn("bambu: malformed report frame")
		return
	}
	if hms > 0 {
		a.log.WithField("hms_count", hms).Warn("bambu: printer reported HMS errors")
	}
}

// classifyConnectError gives a best-effort human label for a connect
// failure, for logging only — paho.mqtt.golang surfaces these as plain
// errors rather than a typed reason code.
func classifyConnectError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "not authorized", "bad user name or password", "unauthorized"):
		return "bad_credentials"
	case containsAny(msg, "identifier rejected"):
		return "bad_client_id"
	case containsAny(msg, "timeout"):
		return "timeout"
	case containsAny(msg, "connection lost"):
		return "lost"
	case containsAny(msg, "not connected"):
		return "disconnected"
	case containsAny(msg, "protocol"):
		return "bad_protocol"
	case containsAny(msg, "unavailable", "server unavailable"):
		return "unavailable"
	default:
		return "unknown"
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
