// Package config loads the hub's process-wide configuration, following
// the teacher's environment-variable-driven loadConfig shape but through
// github.com/kelseyhightower/envconfig instead of hand-rolled getenv
// helpers.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// HubConfig is the full set of build-time/provisioned configuration
// inputs of spec.md §6, plus the process bootstrap knobs (store path,
// metrics port, log level) that have no spec.md home but every real
// deployment needs.
type HubConfig struct {
	// StorePath is the filesystem path of the embedded SQLite-backed
	// persistent config store (spec.md §4.1).
	StorePath string `envconfig:"STORE_PATH" default:"./hub.db"`

	// HubIDOverride, when set, takes precedence over the MAC-derived
	// hub identity (spec.md §3).
	HubIDOverride string `envconfig:"HUB_ID"`

	FirmwareVersion string `envconfig:"FIRMWARE_VERSION" default:"1.0.0"`
	HardwareVersion string `envconfig:"HARDWARE_VERSION" default:"hub-generic"`

	// DefaultCloudURL is the cloud root used when the tunnel namespace
	// holds no cloud_url; it is not written to the store.
	DefaultCloudURL string `envconfig:"CLOUD_URL"`

	SlotCapacity int `envconfig:"SLOT_CAPACITY" default:"5"`

	// MetricsAddr is the bind address for the /metrics and /healthz
	// HTTP server.
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// TenantID and ClaimToken seed the Cloud Tunnel's initial Identity
	// fields on first boot; a provisioning cloud-configuration payload
	// (spec.md §6) normally supersedes and persists over these.
	TenantID   string `envconfig:"TENANT_ID"`
	ClaimToken string `envconfig:"CLAIM_TOKEN"`
}

// Load reads HubConfig from the environment, failing fast on malformed
// values the way the teacher's loadConfig fails fast on missing
// required ones.
func Load() (*HubConfig, error) {
	var cfg HubConfig
	if err := envconfig.Process("HUB", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.SlotCapacity < MinSlotCapacity {
		return nil, fmt.Errorf("config: slot capacity %d below minimum %d", cfg.SlotCapacity, MinSlotCapacity)
	}
	return &cfg, nil
}

// MinSlotCapacity is the spec.md §3 floor on printer slot table size.
const MinSlotCapacity = 5

// Timing constants from spec.md §4.5 and §4.4. These are not
// environment-tunable: the cloud and printer protocols are defined in
// terms of them, so changing them would be a protocol change, not a
// deployment knob.
const (
	// Bambu / MQTT (spec.md §4.4)
	BambuKeepalive       = 30 * time.Second
	BambuReconnectPeriod = 5 * time.Second
	BambuInboundBuffer   = 4096

	// Cloud tunnel (spec.md §4.5)
	AuthTimeout           = 10 * time.Second
	PingInterval          = 25 * time.Second
	PongTimeout           = 60 * time.Second
	ReconnectInitialDelay = 1 * time.Second
	ReconnectMaxDelay     = 60 * time.Second
	MaxReconnectAttempts  = 10
	FailedResetAfter      = 5 * time.Minute
	StatusBroadcastPeriod = 30 * time.Second
	HTTPRegisterTimeout   = 10 * time.Second

	// Persistent store retry policy (spec.md §4.1)
	StoreOpenRetries = 3
	StoreRetryDelay  = 100 * time.Millisecond

	// Scheduler tick (spec.md §5)
	SchedulerTick    = 10 * time.Millisecond
	FleetLogInterval = 5 * time.Second
)
