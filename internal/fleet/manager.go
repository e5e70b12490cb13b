// Package fleet implements the Fleet Manager (spec.md §4.6): a
// fixed-capacity slot table of printer adapters, loaded from and
// persisted to the config store, polled once per scheduler tick.
package fleet

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/printer"
	"github.com/printfarm/hub/internal/store"
)

type occupiedSlot struct {
	cfg     SlotConfig
	adapter printer.Adapter
}

// Manager owns the printer slot table. All mutation happens on the
// scheduler goroutine (spec.md §4.6 "single-threaded"); it carries no
// internal locking of its own.
type Manager struct {
	store    *store.Store
	log      *logrus.Entry
	capacity int

	slots map[int]*occupiedSlot

	lastLogSummary time.Time
	now            func() time.Time
}

// New constructs an empty Fleet Manager with the given slot capacity.
func New(st *store.Store, capacity int, log *logrus.Entry) *Manager {
	return &Manager{
		store:    st,
		log:      log,
		capacity: capacity,
		slots:    make(map[int]*occupiedSlot),
		now:      time.Now,
	}
}

// LoadAll scans the persistent store for every slot index and
// instantiates an adapter for each whose active flag is true
// (spec.md §4.6 load_all()).
func (m *Manager) LoadAll() error {
	for i := 0; i < m.capacity; i++ {
		cfg, active, ok, err := loadSlot(m.store, i)
		if err != nil {
			return fmt.Errorf("fleet: load slot %d: %w", i, err)
		}
		if !ok || !active {
			continue
		}
		adapter, err := newAdapter(cfg, m.log)
		if err != nil {
			m.log.WithError(err).WithField("slot", i).Warn("fleet: skipping slot with unsupported vendor")
			continue
		}
		m.slots[i] = &occupiedSlot{cfg: cfg, adapter: adapter}
		adapter.Connect()
	}
	return nil
}

// Add finds the lowest-index free slot, validates and persists cfg,
// instantiates the adapter, connects it, and returns the slot index
// (spec.md §4.6 add()).
func (m *Manager) Add(cfg SlotConfig) (int, error) {
	if err := cfg.validate(); err != nil {
		return -1, err
	}
	for _, occ := range m.slots {
		if occ.cfg.VendorTag == cfg.VendorTag && occ.cfg.Serial == cfg.Serial && cfg.Serial != "" {
			return -1, fmt.Errorf("fleet: slot already exists for vendor %s serial %s", cfg.VendorTag, cfg.Serial)
		}
	}

	index := -1
	for i := 0; i < m.capacity; i++ {
		if _, occupied := m.slots[i]; !occupied {
			index = i
			break
		}
	}
	if index == -1 {
		return -1, fmt.Errorf("fleet: no-slot: capacity %d exhausted", m.capacity)
	}

	if err := persistSlot(m.store, index, cfg, true); err != nil {
		return -1, fmt.Errorf("fleet: persist slot %d: %w", index, err)
	}

	adapter, err := newAdapter(cfg, m.log)
	if err != nil {
		eraseSlot(m.store, index)
		return -1, err
	}

	m.slots[index] = &occupiedSlot{cfg: cfg, adapter: adapter}
	adapter.Connect()
	return index, nil
}

// Remove disconnects, destroys, and un-persists a slot
// (spec.md §4.6 remove()).
func (m *Manager) Remove(index int) error {
	occ, ok := m.slots[index]
	if !ok {
		return fmt.Errorf("fleet: slot %d not occupied", index)
	}
	occ.adapter.Disconnect()
	delete(m.slots, index)
	return eraseSlot(m.store, index)
}

// Get returns the adapter occupying a slot, if any.
func (m *Manager) Get(index int) (printer.Adapter, bool) {
	occ, ok := m.slots[index]
	if !ok {
		return nil, false
	}
	return occ.adapter, true
}

// SlotSummary is the read-only view of one occupied slot, for the
// provisioning transport's {"action":"list"} printer query.
type SlotSummary struct {
	Slot      int
	PrinterID string
	Name      string
	Connected bool
}

// List returns a summary of every occupied slot, ordered by index.
func (m *Manager) List() []SlotSummary {
	out := make([]SlotSummary, 0, len(m.slots))
	for i, occ := range m.slots {
		out = append(out, SlotSummary{
			Slot:      i,
			PrinterID: occ.adapter.StableID(),
			Name:      occ.cfg.Name,
			Connected: occ.adapter.IsConnected(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// FindBySerial resolves a printer_id (serial) to its slot index and
// adapter, for printer_command dispatch (spec.md §4.5).
func (m *Manager) FindBySerial(serial string) (int, printer.Adapter, bool) {
	for i, occ := range m.slots {
		if occ.cfg.Serial == serial {
			return i, occ.adapter, true
		}
	}
	return -1, nil, false
}

// PollAll advances every occupied slot's adapter and, every few
// seconds, logs a human-readable temperature summary (spec.md §4.6
// poll_all()).
func (m *Manager) PollAll() {
	for _, occ := range m.slots {
		occ.adapter.Poll()
	}
	m.logSummary()
}

func (m *Manager) logSummary() {
	if m.now().Sub(m.lastLogSummary) < 5*time.Second {
		return
	}
	m.lastLogSummary = m.now()

	for i, occ := range m.slots {
		snap := occ.adapter.Status()
		m.log.WithFields(logrus.Fields{
			"slot":        i,
			"printer_id":  occ.adapter.StableID(),
			"state":       snap.State.String(),
			"nozzle_temp": snap.NozzleTemp,
			"bed_temp":    snap.BedTemp,
		}).Info("fleet: printer temperature summary")
	}
}

// ConnectedCount returns the number of occupied slots with a live
// transport connection.
func (m *Manager) ConnectedCount() int {
	n := 0
	for _, occ := range m.slots {
		if occ.adapter.IsConnected() {
			n++
		}
	}
	return n
}

// ActiveCount returns the number of occupied slots.
func (m *Manager) ActiveCount() int {
	return len(m.slots)
}

// Snapshots returns every occupied slot's adapter, keyed by serial, for
// the cloud tunnel's status broadcast to read each current status from.
func (m *Manager) Snapshots() map[string]printer.Adapter {
	out := make(map[string]printer.Adapter, len(m.slots))
	for _, occ := range m.slots {
		out[occ.adapter.StableID()] = occ.adapter
	}
	return out
}
