// Package bridgeclient is a thin HTTP client for the runtime bridge's
// control surface (bridgehttp/routes), used by the agent-facing MCP tool
// layer to pull live scene state instead of relying solely on snapshots
// pushed from the Godot editor plugin. No HTTP client library appears
// anywhere in the example corpus for outbound calls, so this stays on
// net/http (see DESIGN.md).
package bridgeclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request to the runtime bridge. The bridge
// is an in-process, same-host HTTP surface, so a slow reply means the
// process is gone or wedged, not that the network is merely slow.
const DefaultTimeout = 750 * time.Millisecond

// Client talks to a single runtime bridge instance.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New builds a Client addressing the runtime bridge at host:port.
func New(host string, port int) *Client {
	return &Client{
		BaseURL:    fmt.Sprintf("http://%s:%d", host, port),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// FetchSnapshot retrieves GET /snapshot's scene tree body.
func (c *Client) FetchSnapshot(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/snapshot")
}

// FetchInfo retrieves GET /info's runtime bridge identity body.
func (c *Client) FetchInfo(ctx context.Context) (map[string]any, error) {
	return c.getJSON(ctx, "/info")
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("runtime bridge %s: unexpected status %d", path, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("runtime bridge %s: decoding response: %w", path, err)
	}
	return body, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}
