package fleet

import "fmt"

// SlotConfig is the persisted/configured shape of a single printer slot
// (spec.md §3's Printer Slot fields, vendor credentials flattened into
// one struct since only one vendor is occupied at a time).
type SlotConfig struct {
	VendorTag string
	Name      string
	Address   string

	// Bambu credentials.
	AccessCode string
	Serial     string

	// Other-vendor credentials (accepted by the schema, not yet wired
	// to a working transport — see newAdapter).
	APIKey string
	Port   int
}

// validate enforces the Printer Slot invariants of spec.md §3.
func (c SlotConfig) validate() error {
	if c.VendorTag == "" {
		return fmt.Errorf("fleet: vendor tag required")
	}
	if c.Address == "" {
		return fmt.Errorf("fleet: network address required")
	}
	if c.VendorTag == "bambu" {
		if c.AccessCode == "" || c.Serial == "" {
			return fmt.Errorf("fleet: bambu slot requires access_code and serial")
		}
	}
	return nil
}

// slotNamespace is the persistent-store namespace name for slot index i.
func slotNamespace(index int) string {
	return fmt.Sprintf("printer%d", index)
}
