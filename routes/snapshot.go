package routes

import (
	"fmt"
	"reflect"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

func registerSnapshotRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("GET", "/snapshot", func(req bridgehttp.Request) any {
		root, _ := queryString(req, "root")
		depth := queryInt(req, "depth", 0)

		node, ok := deps.Engine.Resolve(root)
		if root != "" && !ok {
			return bridgehttp.NewError(bridgehttp.KindTargetMissing, fmt.Sprintf("no node for ref/path %q", root))
		}

		snap := deps.Engine.Take(node, depth)
		body := asMap(snap)

		if queryBool(req, "include_screenshot", false) && deps.Screens != nil {
			width := queryInt(req, "width", 0)
			height := queryInt(req, "height", 0)
			quality := queryFloat(req, "quality", 0.85)
			annotate := queryBool(req, "annotate", false)
			result, err := deps.Screens.Capture(width, height, quality, annotate, root)
			if err != nil {
				body["screenshot_note"] = err.Error()
			} else {
				body["screenshot"] = asMap(result)
			}
		}
		return withDescription(body, "scene tree snapshot")
	})

	srv.Register("GET", "/screenshot", func(req bridgehttp.Request) any {
		width := queryInt(req, "width", 0)
		height := queryInt(req, "height", 0)
		quality := queryFloat(req, "quality", 0.85)
		annotate := queryBool(req, "annotate", false)
		root, _ := queryString(req, "root")

		result, err := deps.Screens.Capture(width, height, quality, annotate, root)
		if err != nil {
			return bridgehttp.NewError(bridgehttp.KindResourceUnavailable, err.Error())
		}
		return withDescription(asMap(result), "viewport capture")
	})

	srv.Register("GET", "/screenshot/node", func(req bridgehttp.Request) any {
		ref := refOrPath(req)
		if ref == "" {
			return missingParam("ref")
		}
		width := queryInt(req, "width", 0)
		height := queryInt(req, "height", 0)
		quality := queryFloat(req, "quality", 0.85)

		result, err := deps.Screens.CaptureNode(ref, width, height, quality)
		if err != nil {
			return bridgehttp.NewError(bridgehttp.KindResourceUnavailable, err.Error())
		}
		return withDescription(asMap(result), "node-focused capture")
	})

	srv.Register("GET", "/snapshot/diff", func(req bridgehttp.Request) any {
		depth := queryInt(req, "depth", 0)
		current := deps.Engine.Take(nil, depth)

		if deps.Baseline == nil {
			baseline := current
			deps.Baseline = &baseline
			return withDescription(map[string]any{
				"added":   []string{},
				"removed": []string{},
				"changed": []string{},
				"note":    "no prior baseline; this snapshot is now the baseline",
			}, "snapshot diff")
		}

		added, removed, changed := diffSnapshots(*deps.Baseline, current)
		deps.Baseline = &current
		return withDescription(map[string]any{
			"added":   added,
			"removed": removed,
			"changed": changed,
		}, "snapshot diff")
	})

	srv.Register("GET", "/scene_history", func(req bridgehttp.Request) any {
		return withDescription(map[string]any{
			"history": sceneHistory(deps),
		}, "recent scene changes")
	})
}

// diffSnapshots compares two snapshots' flattened ref->record maps,
// reporting refs added, removed, or whose record changed (spec.md §6's
// GET /snapshot/diff). This walks a full snapshot rather than tracking a
// dirty set (see DESIGN.md's Open Question note).
func diffSnapshots(before, after snapshot.Snapshot) (added, removed, changed []string) {
	beforeRefs := flattenRefs(before)
	afterRefs := flattenRefs(after)

	for ref, rec := range afterRefs {
		prior, existed := beforeRefs[ref]
		if !existed {
			added = append(added, ref)
		} else if !reflect.DeepEqual(prior, rec) {
			changed = append(changed, ref)
		}
	}
	for ref := range beforeRefs {
		if _, ok := afterRefs[ref]; !ok {
			removed = append(removed, ref)
		}
	}
	return added, removed, changed
}

// sceneHistory derives GET /scene_history's recent-scene-change timestamps
// from the event accumulator's own scene_changed events (spec.md §4.6),
// rather than tracking a second, parallel history of its own.
func sceneHistory(deps *Deps) []SceneChange {
	if deps.Events == nil {
		return []SceneChange{}
	}
	var history []SceneChange
	for _, ev := range deps.Events.Peek() {
		if ev.Type != "scene_changed" {
			continue
		}
		name, _ := ev.Detail["scene_name"].(string)
		history = append(history, SceneChange{
			ScenePath: ev.Source,
			SceneName: name,
			Time:      ev.Time,
			Frame:     ev.Frame,
		})
	}
	if history == nil {
		history = []SceneChange{}
	}
	return history
}

func flattenRefs(snap snapshot.Snapshot) map[string]snapshot.NodeRecord {
	out := map[string]snapshot.NodeRecord{}
	var walk func(rec snapshot.NodeRecord)
	walk = func(rec snapshot.NodeRecord) {
		flat := rec
		flat.Children = nil
		out[rec.Ref] = flat
		for _, child := range rec.Children {
			walk(child)
		}
	}
	for _, rec := range snap.Nodes {
		walk(rec)
	}
	return out
}
