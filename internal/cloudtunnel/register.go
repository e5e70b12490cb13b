package cloudtunnel

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type registerRequest struct {
	HubID           string `json:"hub_id"`
	MACAddress      string `json:"mac_address"`
	FirmwareVersion string `json:"firmware_version"`
	TenantID        string `json:"tenant_id,omitempty"`
	ClaimToken      string `json:"claim_token,omitempty"`
}

// registerResult is delivered over a channel from the background
// registration goroutine back to Poll, keeping the scheduler tick
// non-blocking even though the registration POST itself is a
// documented suspension point (spec.md §5).
type registerResult struct {
	ok  bool
	err error
}

// registerTransport skips TLS verification for the registration POST,
// matching the profile's self-signed-friendly stance (spec.md §4.5).
var registerTransport = &http.Transport{
	TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
}

// doRegister performs the one-time HTTP POST registration. HTTP 2xx
// and 409 (already registered) both count as success.
func doRegister(httpBase string, req registerRequest, timeout time.Duration) registerResult {
	body, err := json.Marshal(req)
	if err != nil {
		return registerResult{ok: false, err: err}
	}

	httpReq, err := http.NewRequest(http.MethodPost, registerURL(httpBase), bytes.NewReader(body))
	if err != nil {
		return registerResult{ok: false, err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout, Transport: registerTransport}
	resp, err := client.Do(httpReq)
	if err != nil {
		return registerResult{ok: false, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return registerResult{ok: true}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return registerResult{ok: true}
	}
	return registerResult{ok: false, err: fmt.Errorf("cloudtunnel: register status %d", resp.StatusCode)}
}
