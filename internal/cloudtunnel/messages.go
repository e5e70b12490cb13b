package cloudtunnel

import "encoding/json"

// envelope is the minimal shape every inbound frame must satisfy: a
// type discriminator and an optional command_id that, if present on a
// command-bearing type, obligates exactly one command_ack in response
// (spec.md §4.5); see dispatch for the types that are never acked.
type envelope struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id,omitempty"`
}

type helloMessage struct {
	Type            string `json:"type"`
	HubID           string `json:"hub_id"`
	FirmwareVersion string `json:"firmware_version"`
	HardwareVersion string `json:"hardware_version"`
	MACAddress      string `json:"mac_address"`
}

type welcomeMessage struct {
	Type    string `json:"type"`
	HubName string `json:"hub_name,omitempty"`
}

type hubConfigMessage struct {
	Type    string `json:"type"`
	HubName string `json:"hub_name,omitempty"`
}

type configurePrinterMessage struct {
	Type      string         `json:"type"`
	CommandID string         `json:"command_id,omitempty"`
	Action    string         `json:"action"`
	Printer   printerPayload `json:"printer"`
}

// printerPayload is the nested printer descriptor of a configure_printer
// frame (spec.md §8 S3). id is a client-side reference the cloud may
// send for its own bookkeeping; the hub keys slots by serial_number, not id.
type printerPayload struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
	SerialNumber   string `json:"serial_number,omitempty"`
	AccessCode     string `json:"access_code,omitempty"`
	IPAddress      string `json:"ip_address,omitempty"`
	APIKey         string `json:"api_key,omitempty"`
	Port           int    `json:"port,omitempty"`
}

type printerCommandMessage struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id,omitempty"`
	PrinterID string `json:"printer_id"`
	Action    string `json:"action"`
	GCode     string `json:"gcode,omitempty"`
}

type hubCommandMessage struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id,omitempty"`
	Action    string `json:"action"`
	GPIOPin   int    `json:"gpio_pin,omitempty"`
	GPIOState bool   `json:"gpio_state,omitempty"`
}

type commandAck struct {
	Type      string `json:"type"`
	CommandID string `json:"command_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type printerStatusMessage struct {
	Type                 string          `json:"type"`
	PrinterID            string          `json:"printer_id"`
	Status               string          `json:"status"`
	ProgressPercentage   int             `json:"progress_percentage,omitempty"`
	RemainingTimeSeconds int             `json:"remaining_time_seconds,omitempty"`
	CurrentLayer         int             `json:"current_layer,omitempty"`
	TotalLayers          int             `json:"total_layers,omitempty"`
	Temperatures         temperaturePair `json:"temperatures"`
	ErrorMessage         string          `json:"error_message,omitempty"`
}

type temperaturePair struct {
	Nozzle float64 `json:"nozzle"`
	Bed    float64 `json:"bed"`
}

func marshal(v any) ([]byte, error) { return json.Marshal(v) }
