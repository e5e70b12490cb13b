package cloudtunnel

import (
	"encoding/json"
	"time"

	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/metrics"
	"github.com/printfarm/hub/internal/schema"
)

// dispatch parses one inbound text frame and routes it by its type
// field (spec.md §4.5). For a command-bearing type (hub_config,
// configure_printer, printer_command, print_command, discover_printers,
// hub_command) carrying a command_id, exactly one command_ack is sent
// before dispatch returns, even if the payload body itself fails to
// parse. hub_welcome, error and unknown types are never acked, and an
// unparseable envelope or one with no type field is dropped without an
// ack.
func (t *Tunnel) dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.log.WithError(err).Warn("cloudtunnel: unparseable frame")
		return
	}
	if env.Type == "" {
		t.log.Warn("cloudtunnel: frame missing type")
		return
	}

	switch env.Type {
	case schema.TypeHubWelcome:
		t.handleWelcome(raw)
	case schema.TypeHubConfig:
		t.handleHubConfig(raw, env.CommandID)
	case schema.TypeConfigurePrinter:
		t.handleConfigurePrinter(raw, env.CommandID)
	case schema.TypePrinterCommand:
		t.handlePrinterCommand(raw, env.CommandID)
	case schema.TypePrintCommand:
		t.ackCommand(env.CommandID, false, "not implemented")
	case schema.TypeDiscoverPrinters:
		t.ackCommand(env.CommandID, false, "not implemented")
	case schema.TypeHubCommand:
		t.handleHubCommand(raw, env.CommandID)
	case schema.TypeError:
		t.log.Warn("cloudtunnel: received error frame from cloud")
	default:
		t.log.WithField("type", env.Type).Info("cloudtunnel: unknown message type, dropping")
	}
}

func (t *Tunnel) handleWelcome(raw []byte) {
	var msg welcomeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.log.WithError(err).Warn("cloudtunnel: malformed hub_welcome")
		return
	}
	if msg.HubName != "" && msg.HubName != t.hubName {
		t.hubName = msg.HubName
		t.ns.PutString("hub_name", msg.HubName)
	}
	t.reconnectAttempts = 0
	t.transition(StateConnected)
	t.lastStatusBcast = time.Time{} // force an immediate broadcast this tick
}

func (t *Tunnel) handleHubConfig(raw []byte, commandID string) {
	var msg hubConfigMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.ackCommand(commandID, false, "malformed payload")
		return
	}
	if msg.HubName != "" {
		t.hubName = msg.HubName
		t.ns.PutString("hub_name", msg.HubName)
	}
	t.ackCommand(commandID, true, "")
}

func (t *Tunnel) handleConfigurePrinter(raw []byte, commandID string) {
	var msg configurePrinterMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.ackCommand(commandID, false, "malformed payload")
		return
	}
	msg.CommandID = commandID

	switch msg.Action {
	case schema.ConfigureAdd:
		_, err := t.fleet.Add(slotConfigFromPayload(msg.Printer))
		if err != nil {
			t.ackCommand(msg.CommandID, false, err.Error())
			return
		}
		t.ackCommand(msg.CommandID, true, "")

	case schema.ConfigureRemove:
		index, _, ok := t.fleet.FindBySerial(msg.Printer.SerialNumber)
		if !ok {
			t.ackCommand(msg.CommandID, false, "printer not found")
			return
		}
		if err := t.fleet.Remove(index); err != nil {
			t.ackCommand(msg.CommandID, false, err.Error())
			return
		}
		t.ackCommand(msg.CommandID, true, "")

	case schema.ConfigureUpdate:
		index, _, ok := t.fleet.FindBySerial(msg.Printer.SerialNumber)
		if !ok {
			t.ackCommand(msg.CommandID, false, "printer not found")
			return
		}
		// update is modeled as remove+add under the same slot's vendor
		// fields; the fleet manager always reissues the lowest free
		// slot, which is the one just freed unless a lower-index slot
		// was already free.
		if err := t.fleet.Remove(index); err != nil {
			t.ackCommand(msg.CommandID, false, err.Error())
			return
		}
		if _, err := t.fleet.Add(slotConfigFromPayload(msg.Printer)); err != nil {
			t.ackCommand(msg.CommandID, false, err.Error())
			return
		}
		t.ackCommand(msg.CommandID, true, "")

	default:
		t.ackCommand(msg.CommandID, false, "unknown configure_printer action")
	}
}

// slotConfigFromPayload maps the nested configure_printer printer object
// (spec.md §8 S3) onto the Fleet Manager's slot config shape.
func slotConfigFromPayload(p printerPayload) fleet.SlotConfig {
	return fleet.SlotConfig{
		VendorTag:  valueOr(p.ConnectionType, schema.VendorBambu),
		Name:       valueOr(p.Name, p.ID),
		Address:    p.IPAddress,
		AccessCode: p.AccessCode,
		Serial:     p.SerialNumber,
		APIKey:     p.APIKey,
		Port:       p.Port,
	}
}

func (t *Tunnel) handlePrinterCommand(raw []byte, commandID string) {
	var msg printerCommandMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.ackCommand(commandID, false, "malformed payload")
		return
	}
	msg.CommandID = commandID

	_, adapter, ok := t.fleet.FindBySerial(msg.PrinterID)
	if !ok {
		t.ackCommand(msg.CommandID, false, "printer not found")
		return
	}
	if !adapter.IsConnected() {
		t.ackCommand(msg.CommandID, false, "Printer not connected")
		return
	}

	var ok2 bool
	switch msg.Action {
	case schema.PrinterActionPause:
		ok2 = adapter.Pause()
	case schema.PrinterActionResume:
		ok2 = adapter.Resume()
	case schema.PrinterActionStop:
		ok2 = adapter.Stop()
	case schema.PrinterActionClearBed:
		ok2 = true // accepted and acked without physical effect, per spec.md §4.5
	default:
		t.ackCommand(msg.CommandID, false, "unknown printer_command action")
		return
	}
	t.ackCommand(msg.CommandID, ok2, "")
}

func (t *Tunnel) handleHubCommand(raw []byte, commandID string) {
	var msg hubCommandMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.ackCommand(commandID, false, "malformed payload")
		return
	}
	msg.CommandID = commandID

	switch msg.Action {
	case schema.HubActionDisconnect:
		t.ackCommand(msg.CommandID, true, "")
		t.cloudDisabled = true
		// Grace period: let the ack frame flush before the socket is
		// torn down on the first tick at least 500 ms later, rather
		// than racing the write.
		t.disconnectAfter = t.now().Add(500 * time.Millisecond)

	case schema.HubActionGPIOSet:
		if t.gpio != nil {
			t.gpio.Set(msg.GPIOPin, msg.GPIOState)
		}
		t.log.WithField("pin", msg.GPIOPin).WithField("state", msg.GPIOState).Info("cloudtunnel: gpio_set")
		t.ackCommand(msg.CommandID, true, "")

	default:
		t.ackCommand(msg.CommandID, false, "unknown hub_command action")
	}
}

func (t *Tunnel) ackCommand(commandID string, success bool, errMsg string) {
	if commandID == "" {
		return
	}
	payload, err := marshal(commandAck{
		Type:      schema.TypeCommandAck,
		CommandID: commandID,
		Success:   success,
		Error:     errMsg,
	})
	if err != nil {
		t.log.WithError(err).Error("cloudtunnel: marshal command_ack")
		return
	}
	t.writeText(payload)
	metrics.IncCommandAck(success)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
