package utility

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
)

func TestFetchLiveBridgeSnapshot_Unreachable(t *testing.T) {
	ConfigureRuntimeBridge("127.0.0.1", 1)
	t.Cleanup(func() { ConfigureRuntimeBridge("localhost", 9900) })

	if _, err := fetchLiveBridgeSnapshot(); err == nil {
		t.Fatal("expected error fetching from an unreachable runtime bridge")
	}
}

func TestFetchLiveBridgeSnapshot_Live(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"scene_name": "Main",
			"nodes": []any{
				map[string]any{"path": "/Root", "name": "Root", "class": "Node2D"},
			},
		})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}

	ConfigureRuntimeBridge(u.Hostname(), port)
	t.Cleanup(func() { ConfigureRuntimeBridge("localhost", 9900) })

	snap, err := fetchLiveBridgeSnapshot()
	if err != nil {
		t.Fatalf("fetchLiveBridgeSnapshot: %v", err)
	}
	if snap.RootSummary.ActiveScene != "Main" {
		t.Fatalf("expected active scene Main, got %s", snap.RootSummary.ActiveScene)
	}
}

func TestPingRuntimeBridge_Unreachable(t *testing.T) {
	ConfigureRuntimeBridge("127.0.0.1", 1)
	t.Cleanup(func() { ConfigureRuntimeBridge("localhost", 9900) })

	if pingRuntimeBridge() {
		t.Fatal("expected ping to report the bridge as unreachable")
	}
}
