// Package inputbridge implements spec.md §4.4: synthesized click/key/action
// input delivered through the engine's raw input dispatch, plus scripted
// step sequences.
package inputbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

// Injector drives enginehost.InputDispatcher on behalf of route handlers.
// It is grounded on editorsync.CommandBroker's timeout/channel-select round
// trip, generalized from one server-to-plugin command into a library of
// small synchronous input operations that suspend only on enginehost.Clock.
type Injector struct {
	Dispatch enginehost.InputDispatcher
	Clock    enginehost.Clock
	Engine   *snapshot.Engine
}

// Click synthesizes a mouse click at (x, y), local and global identical
// unless the caller knows otherwise (spec.md §4.4).
func (in *Injector) Click(ctx context.Context, x, y float64, button int, double bool) error {
	if button == 0 {
		button = 1
	}
	evt := enginehost.InputEvent{Kind: enginehost.InputKindMouseButton, Button: button, X: x, Y: y, GX: x, GY: y, Double: double}
	return in.tapEvent(ctx, evt)
}

// ClickNode resolves a click target from a node's own geometry (spec.md
// §4.4's "click on node" rule): UI rect center, 2D global position, or a
// camera-projected 3D position.
func (in *Injector) ClickNode(ctx context.Context, ref string, button int, double bool) error {
	node, ok := in.Engine.Resolve(ref)
	if !ok {
		return fmt.Errorf("inputbridge: no node for ref/path %q", ref)
	}

	if rn, ok := node.(enginehost.RectNode); ok && hasRectGate(node) {
		x, y, w, h := rn.GlobalRect()
		return in.Click(ctx, x+w/2, y+h/2, button, double)
	}

	if sn, ok := node.(enginehost.SpatialNode); ok && hasSpatialGate(node) {
		x, y, z, is3D := sn.GlobalPosition()
		if !is3D {
			return in.Click(ctx, x, y, button, double)
		}
		project, ok := in.Engine.Viewport.ActiveCamera3D()
		if !ok {
			return fmt.Errorf("inputbridge: no active 3D camera to project node %q", ref)
		}
		sx, sy, behind := project(x, y, z)
		if behind {
			return fmt.Errorf("inputbridge: node %q is behind the active 3D camera", ref)
		}
		return in.Click(ctx, sx, sy, button, double)
	}

	return fmt.Errorf("inputbridge: node %q has no clickable geometry", ref)
}

// MouseMove synthesizes pointer motion to (x, y) with the given relative
// delta.
func (in *Injector) MouseMove(x, y, relX, relY float64) {
	in.Dispatch.Dispatch(enginehost.InputEvent{
		Kind: enginehost.InputKindMouseMotion,
		X:    x, Y: y, GX: x, GY: y,
		RelX: relX, RelY: relY,
	})
}

// Key resolves name and executes tap/press/release/hold semantics
// according to action and duration (spec.md §4.4's press-semantics table).
func (in *Injector) Key(ctx context.Context, name, action string, durationSeconds float64) error {
	code, ok := ResolveKey(name)
	if !ok {
		return fmt.Errorf("inputbridge: unknown key name %q", name)
	}

	switch strings.ToLower(action) {
	case "", "tap":
		return in.tapEvent(ctx, enginehost.InputEvent{Kind: enginehost.InputKindKey, KeyCode: code})
	case "press":
		in.Dispatch.Dispatch(enginehost.InputEvent{Kind: enginehost.InputKindKey, KeyCode: code, Pressed: true})
		return nil
	case "release":
		in.Dispatch.Dispatch(enginehost.InputEvent{Kind: enginehost.InputKindKey, KeyCode: code, Pressed: false})
		return nil
	case "hold":
		in.Dispatch.Dispatch(enginehost.InputEvent{Kind: enginehost.InputKindKey, KeyCode: code, Pressed: true})
		// A non-positive duration still separates press and release by
		// exactly one engine frame (spec.md §8): Clock.After(ctx, 0) would
		// return an already-closed channel, which is no separation at all.
		wait := in.Clock.NextFrame()
		if durationSeconds > 0 {
			wait = in.Clock.After(ctx, durationSeconds)
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		in.Dispatch.Dispatch(enginehost.InputEvent{Kind: enginehost.InputKindKey, KeyCode: code, Pressed: false})
		return nil
	default:
		return fmt.Errorf("inputbridge: unknown key action %q", action)
	}
}

// TriggerAction synthesizes a mapped InputMap action event.
func (in *Injector) TriggerAction(name string, pressed bool, strength float64) {
	in.Dispatch.TriggerAction(name, pressed, strength)
}

// hasRectGate, hasSpatialGate mirror snapshot's capability-gate check: a
// host Node whose concrete type implements RectNode/SpatialNode
// unconditionally (one wrapper struct backing many engine classes) also
// exposes a HasRect/HasSpatial gate telling us whether this instance
// genuinely carries that geometry.
func hasRectGate(n enginehost.Node) bool {
	if c, ok := n.(enginehost.RectCapable); ok {
		return c.HasRect()
	}
	return true
}

func hasSpatialGate(n enginehost.Node) bool {
	if c, ok := n.(enginehost.SpatialCapable); ok {
		return c.HasSpatial()
	}
	return true
}

// tapEvent dispatches a press, yields one frame, then dispatches a release
// (spec.md §4.4's "tap" ordering contract).
func (in *Injector) tapEvent(ctx context.Context, evt enginehost.InputEvent) error {
	press := evt
	press.Pressed = true
	in.Dispatch.Dispatch(press)

	select {
	case <-in.Clock.NextFrame():
	case <-ctx.Done():
		return ctx.Err()
	}

	release := evt
	release.Pressed = false
	in.Dispatch.Dispatch(release)
	return nil
}
