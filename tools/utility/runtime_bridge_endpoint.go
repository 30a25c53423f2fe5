package utility

import (
	"context"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/bridgeclient"
	"github.com/Godeaux/Godot-AI-Bridge/editorsync"
)

// runtimeBridgeClient is the package-level bridgeclient.Client the
// editor-runtime tools use to pull live state from the runtime bridge
// process, set once at server startup (see ConfigureRuntimeBridge), the
// same way logger.Init configures package-level logging state.
var (
	runtimeBridgeMu     sync.RWMutex
	runtimeBridgeClient = bridgeclient.New("localhost", 9900)
)

// ConfigureRuntimeBridge points the editor-runtime tools at the runtime
// bridge's configured address. Call once during startup, before serving
// requests.
func ConfigureRuntimeBridge(host string, port int) {
	runtimeBridgeMu.Lock()
	defer runtimeBridgeMu.Unlock()
	runtimeBridgeClient = bridgeclient.New(host, port)
}

func currentRuntimeBridgeClient() *bridgeclient.Client {
	runtimeBridgeMu.RLock()
	defer runtimeBridgeMu.RUnlock()
	return runtimeBridgeClient
}

// fetchLiveBridgeSnapshot pulls the runtime bridge's current GET /snapshot
// and converts it to the editor-plugin snapshot shape, for tools that would
// rather report live engine state than whatever the plugin last pushed. It
// is best-effort: no runtime bridge listening (the common case outside a
// live editor session) is a normal, silent fallback for the caller.
func fetchLiveBridgeSnapshot() (editorsync.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), bridgeclient.DefaultTimeout)
	defer cancel()

	body, err := currentRuntimeBridgeClient().FetchSnapshot(ctx)
	if err != nil {
		return editorsync.Snapshot{}, err
	}
	return editorsync.SnapshotFromBridge(body), nil
}

// pingRuntimeBridge best-effort checks that the runtime bridge is alive via
// GET /info. Its result is informational only; callers must not let it
// change pong/touch semantics when the bridge isn't running.
func pingRuntimeBridge() bool {
	ctx, cancel := context.WithTimeout(context.Background(), bridgeclient.DefaultTimeout)
	defer cancel()
	_, err := currentRuntimeBridgeClient().FetchInfo(ctx)
	return err == nil
}
