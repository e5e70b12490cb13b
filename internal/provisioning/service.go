package provisioning

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/printfarm/hub/internal/coordination"
	"github.com/printfarm/hub/internal/fleet"
	"github.com/printfarm/hub/internal/schema"
	"github.com/printfarm/hub/internal/store"
)

// Service applies decoded provisioning payloads against the persistent
// store and the non-owning fleet/tunnel handles (spec.md §6). It holds
// no transport of its own; whatever local channel carries the
// provisioning payload (BLE, a proximity pairing flow) decodes JSON and
// calls these methods.
type Service struct {
	st    *store.Store
	fleet coordination.Fleet
	tun   coordination.Tunnel
	log   *logrus.Entry
}

// New constructs a Service bound to the store and the coordination
// handles for the fleet and cloud tunnel.
func New(st *store.Store, fleet coordination.Fleet, tun coordination.Tunnel, log *logrus.Entry) *Service {
	return &Service{st: st, fleet: fleet, tun: tun, log: log}
}

// ApplyLinkCredentials handles the wifi-provisioning payload. Clear
// takes precedence: it factory-resets the whole store, not just the
// wifi namespace, matching spec.md §3's factory-reset flow.
func (s *Service) ApplyLinkCredentials(raw []byte) error {
	var payload LinkCredentials
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("provisioning: malformed link credentials: %w", err)
	}

	if payload.Clear {
		s.log.Info("provisioning: clear requested, factory-resetting store")
		if err := s.st.FactoryReset(); err != nil {
			return fmt.Errorf("provisioning: factory reset: %w", err)
		}
		return nil
	}

	ns := s.st.Namespace("wifi")
	if err := ns.PutString("ssid", payload.SSID); err != nil {
		return fmt.Errorf("provisioning: persist ssid: %w", err)
	}
	if err := ns.PutString("password", payload.Password); err != nil {
		return fmt.Errorf("provisioning: persist password: %w", err)
	}
	s.log.WithField("ssid", payload.SSID).Info("provisioning: link credentials updated")
	return nil
}

// ApplyPrinterConfig handles the printer-configuration payload:
// add/remove/list/light against the fleet manager.
func (s *Service) ApplyPrinterConfig(raw []byte) (any, error) {
	var payload PrinterPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("provisioning: malformed printer payload: %w", err)
	}

	switch payload.Action {
	case schema.ProvisionPrinterAdd:
		index, err := s.fleet.Add(fleet.SlotConfig{
			VendorTag:  valueOr(payload.Type, schema.VendorBambu),
			Name:       payload.Name,
			Address:    payload.IP,
			AccessCode: payload.AccessCode,
			Serial:     payload.Serial,
		})
		if err != nil {
			return nil, fmt.Errorf("provisioning: add printer: %w", err)
		}
		s.log.WithFields(logrus.Fields{"slot": index, "serial": payload.Serial}).Info("provisioning: printer added")
		return index, nil

	case schema.ProvisionPrinterRemove:
		if err := s.fleet.Remove(payload.Slot); err != nil {
			return nil, fmt.Errorf("provisioning: remove printer: %w", err)
		}
		s.log.WithField("slot", payload.Slot).Info("provisioning: printer removed")
		return nil, nil

	case schema.ProvisionPrinterList:
		return s.list(), nil

	case schema.ProvisionPrinterLight:
		adapter, ok := s.fleet.Get(payload.Slot)
		if !ok {
			return nil, fmt.Errorf("provisioning: light: slot %d not occupied", payload.Slot)
		}
		if !adapter.SetLight(payload.On) {
			return nil, fmt.Errorf("provisioning: light: slot %d rejected command", payload.Slot)
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("provisioning: unknown printer action %q", payload.Action)
	}
}

func (s *Service) list() []SlotInfo {
	summaries := s.fleet.List()
	out := make([]SlotInfo, len(summaries))
	for i, sm := range summaries {
		out[i] = SlotInfo{Slot: sm.Slot, PrinterID: sm.PrinterID, Name: sm.Name, Connected: sm.Connected}
	}
	return out
}

// ApplyCloudConfig handles the cloud-configuration payload: it persists
// the tenant binding to the "tunnel" namespace and, when api_url is
// present, re-points the live tunnel at the new endpoint immediately
// rather than waiting for the next process restart.
func (s *Service) ApplyCloudConfig(raw []byte) error {
	var payload CloudPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("provisioning: malformed cloud payload: %w", err)
	}

	ns := s.st.Namespace("tunnel")
	if payload.TenantID != "" {
		if err := ns.PutString("tenant_id", payload.TenantID); err != nil {
			return fmt.Errorf("provisioning: persist tenant_id: %w", err)
		}
	}
	if payload.ClaimToken != "" {
		if err := ns.PutString("claim_token", payload.ClaimToken); err != nil {
			return fmt.Errorf("provisioning: persist claim_token: %w", err)
		}
	}
	if payload.APIURL == "" {
		return nil
	}
	if err := ns.PutString("cloud_url", payload.APIURL); err != nil {
		return fmt.Errorf("provisioning: persist cloud_url: %w", err)
	}
	if err := s.tun.SetCloudURL(payload.APIURL); err != nil {
		return fmt.Errorf("provisioning: apply cloud_url: %w", err)
	}
	s.log.WithField("api_url", payload.APIURL).Info("provisioning: cloud configuration updated")
	return nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
