package cloudtunnel

import (
	"fmt"
	"net/url"
)

// normalizeCloudURL applies the scheme mapping of spec.md §4.5 on
// configuration ingest (http -> ws, https -> wss, other schemes left
// unchanged) and derives the matching HTTP(S) base for the one-time
// registration POST, since that always needs a real HTTP request even
// when the configured root is already a ws/wss URL.
func normalizeCloudURL(raw string) (wsBase, httpBase string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("cloudtunnel: invalid cloud url %q: %w", raw, err)
	}

	ws := *u
	httpu := *u
	switch u.Scheme {
	case "http":
		ws.Scheme = "ws"
	case "https":
		ws.Scheme = "wss"
	case "ws":
		httpu.Scheme = "http"
	case "wss":
		httpu.Scheme = "https"
	}

	return ws.String(), httpu.String(), nil
}

// registerURL builds the one-time registration endpoint.
func registerURL(httpBase string) string {
	return httpBase + "/api/v1/hubs/register"
}

// socketURL builds the WebSocket connection URL for a given hub id.
func socketURL(wsBase, hubID string) string {
	return fmt.Sprintf("%s/ws/hub/%s", wsBase, hubID)
}
