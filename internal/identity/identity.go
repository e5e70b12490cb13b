// Package identity derives the hub's stable identifier (spec.md §3):
// from the device's hardware address the first time it is needed,
// overridable by explicit configuration, persisted thereafter.
package identity

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// Resolve returns the hub id to persist. override, when non-empty, wins
// unconditionally (explicit configuration beats derivation). Otherwise
// the first non-loopback interface with a hardware address yields a
// deterministic "HUB-<MAC>" id; if no such interface exists (e.g. in a
// container or test sandbox), a random id is generated so the hub can
// still boot — this is the sole use of google/uuid in this package.
func Resolve(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	mac, err := primaryHardwareAddress()
	if err == nil && mac != "" {
		return fmt.Sprintf("HUB-%s", mac), nil
	}

	return fmt.Sprintf("HUB-%s", strings.ToUpper(strings.ReplaceAll(uuid.NewString()[:12], "-", ""))), nil
}

// primaryHardwareAddress returns the MAC address (no separators, upper
// case) of the first interface that is not loopback and carries a
// hardware address, whether or not it is up.
func primaryHardwareAddress() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return strings.ToUpper(strings.ReplaceAll(iface.HardwareAddr.String(), ":", "")), nil
	}
	return "", fmt.Errorf("identity: no hardware address found")
}

// MACFromHubID extracts the MAC-like suffix from a hub id for use in
// the registration payload's mac_address field (spec.md S1 scenario:
// hub_id "HUB-AABBCC112233" -> mac_address "AABBCC112233").
func MACFromHubID(hubID string) string {
	return strings.TrimPrefix(hubID, "HUB-")
}
