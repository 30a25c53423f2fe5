package routes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Godeaux/Godot-AI-Bridge/bridgehttp"
	"github.com/Godeaux/Godot-AI-Bridge/inputbridge"
)

func registerInputRoutes(srv *bridgehttp.Server, deps *Deps) {
	srv.Register("POST", "/click", func(req bridgehttp.Request) any {
		body := bodyMap(req)
		x, xok := body["x"].(float64)
		y, yok := body["y"].(float64)
		if !xok {
			return missingParam("x")
		}
		if !yok {
			return missingParam("y")
		}
		button := queryInt(req, "button", 1)
		double := queryBool(req, "double", false)

		if err := deps.Input.Click(context.Background(), x, y, button, double); err != nil {
			return bridgehttp.NewError(bridgehttp.KindCapabilityMissing, err.Error())
		}
		return withObservation(req, deps, withDescription(map[string]any{}, fmt.Sprintf("clicked (%.0f, %.0f)", x, y)))
	})

	srv.Register("POST", "/click_node", func(req bridgehttp.Request) any {
		ref := refOrPath(req)
		if ref == "" {
			return missingParam("ref")
		}
		button := queryInt(req, "button", 1)
		double := queryBool(req, "double", false)

		if err := deps.Input.ClickNode(context.Background(), ref, button, double); err != nil {
			return bridgehttp.NewError(bridgehttp.KindCapabilityMissing, err.Error())
		}
		return withObservation(req, deps, withDescription(map[string]any{}, fmt.Sprintf("clicked node %s", ref)))
	})

	srv.Register("POST", "/key", func(req bridgehttp.Request) any {
		key, ok := queryString(req, "key")
		if !ok {
			return missingParam("key")
		}
		action, _ := queryString(req, "action")
		duration := queryFloat(req, "duration", 0)

		if err := deps.Input.Key(context.Background(), key, action, duration); err != nil {
			return bridgehttp.NewError(bridgehttp.KindParameterInvalid, err.Error())
		}
		return withDescription(map[string]any{}, fmt.Sprintf("key %s (%s)", key, action))
	})

	srv.Register("POST", "/action", func(req bridgehttp.Request) any {
		name, ok := queryString(req, "action")
		if !ok {
			return missingParam("action")
		}
		pressed := queryBool(req, "pressed", true)
		strength := queryFloat(req, "strength", 1.0)

		deps.Input.TriggerAction(name, pressed, strength)
		return withDescription(map[string]any{}, fmt.Sprintf("action %s", name))
	})

	srv.Register("GET", "/actions", func(req bridgehttp.Request) any {
		return withDescription(map[string]any{
			"actions": deps.Host.Dispatch.ActionNames(),
		}, "mapped InputMap actions")
	})

	srv.Register("POST", "/mouse_move", func(req bridgehttp.Request) any {
		body := bodyMap(req)
		x, xok := body["x"].(float64)
		y, yok := body["y"].(float64)
		if !xok {
			return missingParam("x")
		}
		if !yok {
			return missingParam("y")
		}
		relX := queryFloat(req, "relative_x", 0)
		relY := queryFloat(req, "relative_y", 0)

		deps.Input.MouseMove(x, y, relX, relY)
		return withDescription(map[string]any{}, "mouse moved")
	})

	srv.Register("POST", "/sequence", func(req bridgehttp.Request) any {
		body := bodyMap(req)

		var steps []inputbridge.Step
		var label string

		if presetName, ok := body["preset"].(string); ok && presetName != "" {
			if deps.Sequences == nil {
				return bridgehttp.NewError(bridgehttp.KindResourceUnavailable, "no sequence catalog configured")
			}
			preset, ok := deps.Sequences.Get(presetName)
			if !ok {
				return bridgehttp.NewError(bridgehttp.KindTargetMissing, fmt.Sprintf("no preset named %q", presetName))
			}
			steps = preset.Steps
			label = presetName
		} else {
			rawSteps, ok := body["steps"]
			if !ok {
				return missingParam("steps")
			}
			data, err := json.Marshal(rawSteps)
			if err != nil {
				return bridgehttp.NewError(bridgehttp.KindParameterInvalid, "steps must be a JSON array")
			}
			if err := json.Unmarshal(data, &steps); err != nil {
				return bridgehttp.NewError(bridgehttp.KindParameterInvalid, "malformed step in steps: "+err.Error())
			}
			label = fmt.Sprintf("%d inline steps", len(steps))
		}

		if err := deps.Input.ExecuteSequence(context.Background(), steps); err != nil {
			return bridgehttp.NewError(bridgehttp.KindCapabilityMissing, err.Error())
		}
		return withObservation(req, deps, withDescription(map[string]any{}, "ran sequence: "+label))
	})
}

// withObservation attaches the optional trailing snapshot/screenshot
// observation mutation endpoints may request (spec.md §4.8's "fuse action
// and observation in one round-trip").
func withObservation(req bridgehttp.Request, deps *Deps, body map[string]any) map[string]any {
	if queryBool(req, "snapshot", false) || queryBool(req, "snapshot_after", false) {
		body["snapshot"] = asMap(deps.Engine.Take(nil, 0))
	}
	if (queryBool(req, "screenshot", false) || queryBool(req, "screenshot_after", false)) && deps.Screens != nil {
		if result, err := deps.Screens.Capture(0, 0, 0.85, false, ""); err == nil {
			body["screenshot"] = asMap(result)
		}
	}
	return body
}
