package routes

import (
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
)

// consoleTailLines is how many trailing lines GET /console returns.
const consoleTailLines = 200

// consoleFollowWindow is how long GET /console waits on fsnotify for a
// fresh write to the log file before answering with whatever tail it
// already has. Grounded on sequencecatalog.Registry.watchLoop's
// fsnotify.Write handling, generalized from a long-lived reload loop to
// one bounded wait per request.
const consoleFollowWindow = 150 * time.Millisecond

func registerDiagnosticsRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("GET", "/info", func(req bridgehttp.Request) any {
		vw, vh := 0, 0
		if deps.Host.Viewport != nil {
			vw, vh = deps.Host.Viewport.Size()
		}
		info := map[string]any{
			"project_path": deps.Host.ProjectPath,
			"log_file":     deps.Host.LogFilePath,
			"scene_file":   deps.Host.Tree.ScenePath(),
			"scene_name":   deps.Host.Tree.SceneName(),
			"viewport_width":  vw,
			"viewport_height": vh,
			"frame":     deps.Host.Clock.Frame(),
			"fps":       deps.Host.Clock.FPS(),
			"paused":    deps.Host.Clock.Paused(),
			"time_scale": deps.Host.Clock.TimeScale(),
		}
		if deps.Config != nil {
			info["runtime_port"] = deps.Config.Runtime.Port
			info["editor_port"] = deps.Config.Editor.Port
		}
		return withDescription(info, "project and viewport info")
	})

	srv.Register("GET", "/console", func(req bridgehttp.Request) any {
		path := deps.Host.LogFilePath
		if path == "" {
			return bridgehttp.NewError(bridgehttp.KindResourceUnavailable, "no log file configured")
		}

		waitForLogWrite(path)

		data, err := os.ReadFile(path)
		if err != nil {
			body := withDescription(map[string]any{"lines": []string{}}, "engine log tail")
			body["note"] = "log file not found: " + err.Error()
			return body
		}

		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		if len(lines) > consoleTailLines {
			lines = lines[len(lines)-consoleTailLines:]
		}
		return withDescription(map[string]any{"lines": lines}, "engine log tail")
	})
}

// waitForLogWrite blocks briefly for an fsnotify write event on path's
// directory, so a console poll that lands just before new output is
// flushed still has a chance to observe it without the caller sleeping a
// fixed interval. Failure to set up the watcher is silently ignored; the
// handler falls back to reading whatever is on disk right now.
func waitForLogWrite(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	defer watcher.Close()

	dir := path[:strings.LastIndexByte(path, '/')+1]
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return
	}

	timer := time.NewTimer(consoleFollowWindow)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name == path && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				return
			}
		case <-watcher.Errors:
			return
		case <-timer.C:
			return
		}
	}
}
