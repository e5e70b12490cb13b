// Package schema holds the wire-format string constants for the cloud
// tunnel protocol and the slot vendor/action tables (spec.md §6).
package schema

// Hub -> Cloud message types.
const (
	TypeHubHello          = "hub_hello"
	TypePrinterStatus     = "printer_status"
	TypeFileProgress      = "file_progress"
	TypeCommandAck        = "command_ack"
	TypePrinterDiscovered = "printer_discovered"
)

// Cloud -> Hub message types.
const (
	TypeHubWelcome       = "hub_welcome"
	TypeHubConfig        = "hub_config"
	TypeConfigurePrinter = "configure_printer"
	TypePrintCommand     = "print_command"
	TypePrinterCommand   = "printer_command"
	TypeDiscoverPrinters = "discover_printers"
	TypeHubCommand       = "hub_command"
	TypeError            = "error"
)

// Upstream printer_status state strings.
const (
	StatusIdle        = "idle"
	StatusPrinting    = "printing"
	StatusPaused      = "paused"
	StatusMaintenance = "maintenance"
	StatusOffline     = "offline"
	StatusError       = "error"
)

// configure_printer actions.
const (
	ConfigureAdd    = "add"
	ConfigureRemove = "remove"
	ConfigureUpdate = "update"
)

// printer_command actions.
const (
	PrinterActionPause    = "pause"
	PrinterActionResume   = "resume"
	PrinterActionStop     = "stop"
	PrinterActionClearBed = "clear_bed"
)

// hub_command actions.
const (
	HubActionDisconnect = "disconnect"
	HubActionGPIOSet    = "gpio_set"
)

// file_progress stages.
const (
	FileStageDownloading = "downloading"
	FileStageUploading   = "uploading"
	FileStageComplete    = "complete"
	FileStageFailed      = "failed"
)

// Local provisioning-transport printer actions (spec.md §6).
const (
	ProvisionPrinterAdd    = "add"
	ProvisionPrinterRemove = "remove"
	ProvisionPrinterList   = "list"
	ProvisionPrinterLight  = "light"
)

// Vendor connection-type tags (spec.md §1, supplemented from
// firmware/src/tunnel/TunnelMessages.h ConnectionTypes). Only VendorBambu
// has a working adapter in this core; the others are accepted by the
// fleet manager's vendor table so future adapters slot in without a
// schema change.
const (
	VendorBambu     = "bambu"
	VendorPrusa     = "prusa"
	VendorOctoPrint = "octoprint"
	VendorKlipper   = "klipper"
	VendorOther     = "other"
)
