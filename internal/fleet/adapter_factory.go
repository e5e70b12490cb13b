package fleet

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/bambu"
	"github.com/printfarm/hub/internal/printer"
)

// newAdapter instantiates a printer.Adapter for the given slot
// configuration. Only the bambu tag is mandatory in this core
// (spec.md §4.6); the others are accepted by the schema and vendor
// table (spec.md §1 "planned adapters") but have no working transport
// yet, so they fail closed with a clear error rather than silently
// dropping the slot.
func newAdapter(cfg SlotConfig, log *logrus.Entry) (printer.Adapter, error) {
	switch cfg.VendorTag {
	case "bambu":
		return bambu.New(bambu.Config{
			Serial:     cfg.Serial,
			AccessCode: cfg.AccessCode,
			Host:       cfg.Address,
			Name:       cfg.Name,
		}, log), nil
	case "prusa", "octoprint", "klipper", "other":
		return nil, fmt.Errorf("fleet: unknown-vendor: %s adapter not implemented in this core", cfg.VendorTag)
	default:
		return nil, fmt.Errorf("fleet: unknown-vendor: %q", cfg.VendorTag)
	}
}
