// Command runtimebridge hosts an in-process HTTP control surface over a
// game engine session: scene-tree snapshots, input injection, screenshots,
// event accumulation, and condition waits for an external automation
// client. This binary wires enginehost/fakehost as the engine session
// (there is no real engine embedding this process), which also makes it a
// runnable demo of the bridge's whole surface.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/condwait"
	"github.com/Godeaux/Godot-AI-Bridge/config"
	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/enginehost/fakehost"
	"github.com/Godeaux/Godot-AI-Bridge/eventbus"
	"github.com/Godeaux/Godot-AI-Bridge/inputbridge"
	"github.com/Godeaux/Godot-AI-Bridge/logger"
	"github.com/Godeaux/Godot-AI-Bridge/nodestate"
	"github.com/Godeaux/Godot-AI-Bridge/routes"
	"github.com/Godeaux/Godot-AI-Bridge/screenshot"
	"github.com/Godeaux/Godot-AI-Bridge/sequencecatalog"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

func main() {
	if err := logger.Init(slog.LevelInfo, logger.FormatText, ""); err != nil {
		os.Exit(1)
	}
	log := logger.New(slog.LevelInfo, logger.FormatText, os.Stdout)

	configPath, err := config.ResolveBridgeConfigPath()
	if err != nil {
		logger.Error("failed to resolve bridge config path", "error", err)
		os.Exit(1)
	}
	if err := config.EnsureDefaultBridgeConfig(configPath); err != nil {
		logger.Error("failed to write default bridge config", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadBridgeConfig(configPath)
	if err != nil {
		logger.Error("failed to load bridge config", "error", err)
		os.Exit(1)
	}

	tree, clock, viewport, dispatch := demoWorld()
	host := &enginehost.Host{
		Tree:        tree,
		Clock:       clock,
		Viewport:    viewport,
		Dispatch:    dispatch,
		ProjectPath: mustGetwd(),
	}

	engine := &snapshot.Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: snapshot.NewRefTable()}
	events := eventbus.New(tree, clock)
	events.Start()
	defer events.Stop()

	sequences := sequencecatalog.NewRegistry(log)
	if seqDir := os.Getenv("RUNTIME_BRIDGE_SEQUENCE_DIR"); seqDir != "" {
		if err := sequences.LoadDir(seqDir); err != nil {
			logger.Warn("failed to load sequence catalog", "dir", seqDir, "error", err)
		} else if err := sequences.Watch(seqDir); err != nil {
			logger.Warn("failed to watch sequence catalog", "dir", seqDir, "error", err)
		}
	}
	defer sequences.Close()

	deps := &routes.Deps{
		Host:      host,
		Engine:    engine,
		States:    nodestate.NewRegistry(),
		Input:     &inputbridge.Injector{Dispatch: dispatch, Clock: clock, Engine: engine},
		Sequences: sequences,
		Screens:   &screenshot.Pipeline{Viewport: viewport, Clock: clock, Engine: engine},
		Events:    events,
		Waiter:    &condwait.Waiter{Engine: engine},
		Config:    cfg,
	}

	timeout := time.Duration(cfg.Connection.TimeoutSeconds) * time.Second
	srv, err := bridgehttp.NewServer(cfg.Runtime.Host, cfg.Runtime.Port, timeout, log)
	if err != nil {
		logger.Error("failed to start runtime bridge listener", "error", err)
		os.Exit(1)
	}
	defer srv.Close()
	routes.Register(srv, deps)

	logger.Info("runtime bridge listening", "addr", srv.Addr().String())
	runFrameLoop(srv, clock, events)
}

// runFrameLoop drives the bridge's non-blocking tick the way the engine's
// own per-frame callback would: advance the clock, let the accumulator
// notice signal/watch/scene changes, then give the server a chance to
// accept and service connections. It runs until interrupted.
func runFrameLoop(srv *bridgehttp.Server, clock *fakehost.Clock, events *eventbus.Accumulator) {
	const fps = 60
	ticker := time.NewTicker(time.Second / fps)
	defer ticker.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			clock.Tick()
			events.Poll()
			srv.Tick()
		case <-stop:
			logger.Info("runtime bridge shutting down")
			return
		}
	}
}

// demoWorld builds a small scene tree standing in for a real engine
// session: a root, a player with an exported health property, and a mapped
// jump action. There is no production engine embedding this binary yet, so
// this is what GET /snapshot and friends report out of the box.
func demoWorld() (*fakehost.Tree, *fakehost.Clock, *fakehost.Viewport, *fakehost.InputDispatcher) {
	root := fakehost.NewNode(1, "Node2D", "Main")
	player := fakehost.NewNode(2, "CharacterBody2D", "Player").
		SetSpatial2D(100, 100, 0, 1, 1).
		DefineProperty("health", 100.0, true)
	camera := fakehost.NewNode(3, "Camera2D", "Camera").SetSpatial2D(100, 100, 0, 1, 1)
	root.AddChild(player)
	root.AddChild(camera)

	tree := fakehost.NewTree(root, "res://main.tscn", "Main")
	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(1280, 720)
	viewport.SetFrame(make([]byte, 1280*720*4), 1280, 720)
	dispatch := fakehost.NewInputDispatcher(map[string][]string{
		"jump": {"Space"},
		"fire": {"MouseLeft"},
	})
	return tree, clock, viewport, dispatch
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
