package fleet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/store"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "hub.db"), 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := logrus.New()
	log.SetOutput(testDiscard{})
	return New(st, 5, log.WithField("component", "fleet_test"))
}

type testDiscard struct{}

func (testDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestAddUnknownVendorRejected(t *testing.T) {
	m := testManager(t)
	_, err := m.Add(SlotConfig{VendorTag: "", Address: "10.0.0.5"})
	if err == nil {
		t.Fatal("expected error for empty vendor tag")
	}
}

func TestAddBambuRequiresCredentials(t *testing.T) {
	m := testManager(t)
	_, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5"})
	if err == nil {
		t.Fatal("expected error for missing bambu credentials")
	}
}

func TestAddLowestFreeSlot(t *testing.T) {
	m := testManager(t)
	i1, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: "S1", AccessCode: "123"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if i1 != 0 {
		t.Fatalf("first slot = %d, want 0", i1)
	}

	if err := m.Remove(i1); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	i2, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.6", Serial: "S2", AccessCode: "456"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if i2 != 0 {
		t.Fatalf("reused slot = %d, want 0", i2)
	}
}

func TestAddDuplicateSerialRejected(t *testing.T) {
	m := testManager(t)
	if _, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: "S1", AccessCode: "123"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.9", Serial: "S1", AccessCode: "999"}); err == nil {
		t.Fatal("expected error for duplicate (vendor, serial) pair")
	}
}

func TestAddCapacityExhausted(t *testing.T) {
	m := testManager(t)
	for i := 0; i < 5; i++ {
		serial := string(rune('A' + i))
		if _, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: serial, AccessCode: "123"}); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}
	if _, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: "overflow", AccessCode: "123"}); err == nil {
		t.Fatal("expected no-slot error once capacity is exhausted")
	}
}

func TestAddUnsupportedVendorErasesPersistedSlot(t *testing.T) {
	m := testManager(t)
	_, err := m.Add(SlotConfig{VendorTag: "prusa", Address: "10.0.0.5"})
	if err == nil {
		t.Fatal("expected unknown-vendor error for prusa")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0 after failed add", m.ActiveCount())
	}
	if vendor, _ := m.store.Namespace(slotNamespace(0)).GetString("vendor", ""); vendor != "" {
		t.Fatalf("persisted vendor = %q, want slot 0 erased after failed add", vendor)
	}
}

func TestFindBySerial(t *testing.T) {
	m := testManager(t)
	idx, err := m.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: "S1", AccessCode: "123"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	gotIdx, adapter, ok := m.FindBySerial("S1")
	if !ok {
		t.Fatal("FindBySerial did not find S1")
	}
	if gotIdx != idx {
		t.Errorf("FindBySerial index = %d, want %d", gotIdx, idx)
	}
	if adapter.StableID() != "S1" {
		t.Errorf("StableID = %q, want S1", adapter.StableID())
	}

	if _, _, ok := m.FindBySerial("missing"); ok {
		t.Error("FindBySerial should not find an unconfigured serial")
	}
}

func TestLoadAllRestoresActiveSlots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hub.db")

	st1, err := store.Open(path, 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	log := logrus.New()
	log.SetOutput(testDiscard{})
	m1 := New(st1, 5, log.WithField("component", "fleet_test"))
	if _, err := m1.Add(SlotConfig{VendorTag: "bambu", Address: "10.0.0.5", Serial: "S1", AccessCode: "123"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	st1.Close()

	st2, err := store.Open(path, 3, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("store.Open reopen: %v", err)
	}
	defer st2.Close()
	m2 := New(st2, 5, log.WithField("component", "fleet_test"))
	if err := m2.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if m2.ActiveCount() != 1 {
		t.Fatalf("ActiveCount after reload = %d, want 1", m2.ActiveCount())
	}
	if _, _, ok := m2.FindBySerial("S1"); !ok {
		t.Fatal("LoadAll did not restore slot S1")
	}
}
