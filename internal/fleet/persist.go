package fleet

import "github.com/printfarm/hub/internal/store"

// persistSlot writes a slot's configuration and active flag to its
// namespace (spec.md §4.6's "persist" step of add()).
func persistSlot(st *store.Store, index int, cfg SlotConfig, active bool) error {
	ns := st.Namespace(slotNamespace(index))
	for _, op := range []func() error{
		func() error { return ns.PutString("vendor", cfg.VendorTag) },
		func() error { return ns.PutString("name", cfg.Name) },
		func() error { return ns.PutString("address", cfg.Address) },
		func() error { return ns.PutString("access_code", cfg.AccessCode) },
		func() error { return ns.PutString("serial", cfg.Serial) },
		func() error { return ns.PutString("api_key", cfg.APIKey) },
		func() error { return ns.PutInt("port", cfg.Port) },
		func() error { return ns.PutBool("active", active) },
	} {
		if err := op(); err != nil {
			return err
		}
	}
	return nil
}

// loadSlot reads a slot's configuration back from its namespace. ok is
// false when the namespace has never been written to (empty vendor tag).
func loadSlot(st *store.Store, index int) (cfg SlotConfig, active bool, ok bool, err error) {
	ns := st.Namespace(slotNamespace(index))

	vendor, err := ns.GetString("vendor", "")
	if err != nil {
		return cfg, false, false, err
	}
	if vendor == "" {
		return cfg, false, false, nil
	}

	cfg.VendorTag = vendor
	if cfg.Name, err = ns.GetString("name", ""); err != nil {
		return cfg, false, false, err
	}
	if cfg.Address, err = ns.GetString("address", ""); err != nil {
		return cfg, false, false, err
	}
	if cfg.AccessCode, err = ns.GetString("access_code", ""); err != nil {
		return cfg, false, false, err
	}
	if cfg.Serial, err = ns.GetString("serial", ""); err != nil {
		return cfg, false, false, err
	}
	if cfg.APIKey, err = ns.GetString("api_key", ""); err != nil {
		return cfg, false, false, err
	}
	if cfg.Port, err = ns.GetInt("port", 0); err != nil {
		return cfg, false, false, err
	}
	if active, err = ns.GetBool("active", false); err != nil {
		return cfg, false, false, err
	}
	return cfg, active, true, nil
}

// eraseSlot clears a slot's persisted record (spec.md §4.6's remove()).
func eraseSlot(st *store.Store, index int) error {
	return st.Namespace(slotNamespace(index)).Clear()
}
