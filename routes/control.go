package routes

import (
	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
)

func registerControlRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("POST", "/pause", func(req bridgehttp.Request) any {
		body := bodyMap(req)
		paused, ok := body["paused"].(bool)
		if !ok {
			return missingParam("paused")
		}
		deps.Host.Clock.SetPaused(paused)
		return withDescription(map[string]any{"paused": paused}, "pause toggled")
	})

	srv.Register("POST", "/timescale", func(req bridgehttp.Request) any {
		body := bodyMap(req)
		scale, ok := body["scale"].(float64)
		if !ok {
			return missingParam("scale")
		}
		applied := deps.Host.Clock.SetTimeScale(scale)
		return withDescription(map[string]any{"scale": applied}, "time scale set")
	})
}
