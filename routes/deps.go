// Package routes implements spec.md §4.8: thin per-endpoint adapters over
// snapshot, nodestate, inputbridge, screenshot, eventbus, and condwait.
// Grounded on tools/node/tools.go's thin-adapter-over-a-store shape,
// generalized from MCP tool calls to HTTP route handlers.
package routes

import (
	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/condwait"
	"github.com/Godeaux/Godot-AI-Bridge/config"
	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/eventbus"
	"github.com/Godeaux/Godot-AI-Bridge/inputbridge"
	"github.com/Godeaux/Godot-AI-Bridge/nodestate"
	"github.com/Godeaux/Godot-AI-Bridge/screenshot"
	"github.com/Godeaux/Godot-AI-Bridge/sequencecatalog"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

// Deps bundles every collaborator a route handler may need. One Deps is
// built per running bridge session and shared by every registered route.
type Deps struct {
	Host      *enginehost.Host
	Engine    *snapshot.Engine
	States    *nodestate.Registry
	Input     *inputbridge.Injector
	Sequences *sequencecatalog.Registry
	Screens   *screenshot.Pipeline
	Events    *eventbus.Accumulator
	Waiter    *condwait.Waiter
	Config    *config.BridgeConfig

	// Baseline holds the last snapshot GET /snapshot/diff compared against
	// (module-scoped state per spec.md §5). GET /scene_history instead reads
	// straight from Events' own scene_changed history.
	Baseline *snapshot.Snapshot
}

// SceneChange is one entry in spec.md §6's GET /scene_history response.
type SceneChange struct {
	ScenePath string  `json:"scene_path"`
	SceneName string  `json:"scene_name"`
	Time      float64 `json:"time"`
	Frame     uint64  `json:"frame"`
}

// Register installs every spec.md §6 runtime endpoint on srv.
func Register(srv *bridgehttp.Server, deps *Deps) {
	registerSnapshotRoutes(srv, deps)
	registerInputRoutes(srv, deps)
	registerStateRoutes(srv, deps)
	registerWaitRoutes(srv, deps)
	registerControlRoutes(srv, deps)
	registerDiagnosticsRoutes(srv, deps)
}
