package inputbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost/fakehost"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
)

func newTestInjector() (*Injector, *fakehost.InputDispatcher, *fakehost.Clock) {
	dispatch := fakehost.NewInputDispatcher(map[string][]string{"jump": {"space"}})
	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(800, 600)
	root := fakehost.NewNode(1, "Node2D", "Level")
	tree := fakehost.NewTree(root, "res://level.tscn", "Level")
	eng := &snapshot.Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: snapshot.NewRefTable()}
	return &Injector{Dispatch: dispatch, Clock: clock, Engine: eng}, dispatch, clock
}

// runTicking drives clock.Tick() on a background loop until done fires, so a
// call blocked on NextFrame() eventually proceeds regardless of goroutine
// scheduling order.
func runTicking(t *testing.T, clock *fakehost.Clock, done <-chan error) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("operation failed: %v", err)
			}
			return
		case <-ticker.C:
			clock.Tick()
		case <-deadline:
			t.Fatal("timed out waiting for tap to complete")
		}
	}
}

func TestResolveKeyKnownAndUnknown(t *testing.T) {
	if _, ok := ResolveKey("space"); !ok {
		t.Fatal("expected space to resolve")
	}
	if _, ok := ResolveKey("A"); !ok {
		t.Fatal("expected single letter to resolve")
	}
	if _, ok := ResolveKey("f5"); !ok {
		t.Fatal("expected function key to resolve")
	}
	if _, ok := ResolveKey("totally_not_a_key"); ok {
		t.Fatal("expected unknown multi-char name to fail")
	}
}

func TestKeyTapEmitsPressThenRelease(t *testing.T) {
	in, dispatch, clock := newTestInjector()

	done := make(chan error, 1)
	go func() {
		done <- in.Key(context.Background(), "space", "tap", 0)
	}()
	runTicking(t, clock, done)

	events := dispatch.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d: %#v", len(events), events)
	}
	if !events[0].Pressed || events[1].Pressed {
		t.Fatalf("expected press then release, got %#v", events)
	}
}

func TestKeyPressOnlyEmitsSingleEvent(t *testing.T) {
	in, dispatch, _ := newTestInjector()

	if err := in.Key(context.Background(), "a", "press", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := dispatch.Events()
	if len(events) != 1 || !events[0].Pressed {
		t.Fatalf("expected single press event, got %#v", events)
	}
}

func TestKeyUnknownNameErrors(t *testing.T) {
	in, _, _ := newTestInjector()
	if err := in.Key(context.Background(), "not_a_real_key_name", "press", 0); err == nil {
		t.Fatal("expected error for unknown key name")
	}
}

func TestKeyHoldZeroDurationSeparatesPressAndReleaseByOneFrame(t *testing.T) {
	in, dispatch, clock := newTestInjector()

	done := make(chan error, 1)
	go func() {
		done <- in.Key(context.Background(), "space", "hold", 0)
	}()

	// Give the goroutine a chance to dispatch the press and block before
	// any frame has ticked.
	time.Sleep(10 * time.Millisecond)
	if got := len(dispatch.Events()); got != 1 {
		t.Fatalf("expected only the press dispatched before a frame ticks, got %d events", got)
	}

	clock.Tick()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for zero-duration hold to complete")
	}

	events := dispatch.Events()
	if len(events) != 2 || !events[0].Pressed || events[1].Pressed {
		t.Fatalf("expected press then release, got %#v", events)
	}
}

func TestTriggerActionDispatchesActionEvent(t *testing.T) {
	in, dispatch, _ := newTestInjector()
	in.TriggerAction("jump", true, 1.0)

	events := dispatch.Events()
	if len(events) != 1 || events[0].Action != "jump" || !events[0].Pressed {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestClickOnRectNode(t *testing.T) {
	in, dispatch, clock := newTestInjector()
	root := in.Engine.Tree.Root().(*fakehost.Node)
	button := fakehost.NewNode(2, "Button", "Confirm")
	button.SetRect(100, 200, 40, 20)
	root.AddChild(button)
	ref := in.Engine.Refs.RefFor(button)

	done := make(chan error, 1)
	go func() {
		done <- in.ClickNode(context.Background(), ref, 1, false)
	}()
	runTicking(t, clock, done)

	events := dispatch.Events()
	if len(events) != 2 {
		t.Fatalf("expected press+release click events, got %#v", events)
	}
	if events[0].X != 120 || events[0].Y != 210 {
		t.Fatalf("expected click at rect center (120,210), got %v,%v", events[0].X, events[0].Y)
	}
}

func TestClickNodeOn2DSpatial(t *testing.T) {
	in, dispatch, clock := newTestInjector()
	root := in.Engine.Tree.Root()
	sprite := fakehost.NewNode(3, "Sprite2D", "Hero")
	sprite.SetSpatial2D(150, 250, 0, 1, 1)
	rootNode := root.(*fakehost.Node)
	rootNode.AddChild(sprite)
	ref := in.Engine.Refs.RefFor(sprite)

	done := make(chan error, 1)
	go func() {
		done <- in.ClickNode(context.Background(), ref, 1, false)
	}()
	runTicking(t, clock, done)

	events := dispatch.Events()
	if len(events) != 2 {
		t.Fatalf("expected press+release click events, got %#v", events)
	}
	if events[0].X != 150 || events[0].Y != 250 {
		t.Fatalf("expected click at sprite's global position, got %v,%v", events[0].X, events[0].Y)
	}
}

func TestExecuteSequenceRunsStepsInOrder(t *testing.T) {
	in, dispatch, clock := newTestInjector()
	action := "jump"
	pressed := true
	strength := 1.0
	steps := []Step{
		{Action: &action, Pressed: &pressed, Strength: &strength},
	}

	done := make(chan error, 1)
	go func() {
		done <- in.ExecuteSequence(context.Background(), steps)
	}()
	runTicking(t, clock, done)

	events := dispatch.Events()
	if len(events) != 1 || events[0].Action != "jump" {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestExecuteSequenceRejectsEmptyStep(t *testing.T) {
	in, _, _ := newTestInjector()
	if err := in.ExecuteSequence(context.Background(), []Step{{}}); err == nil {
		t.Fatal("expected error for an empty step")
	}
}

// TestKeyStepJSONFormHonorsHoldAction exercises spec.md §8 scenario 2's wire
// form, {"key":"d","action":"hold","duration":1.0}, rather than constructing
// a Step directly: a key step's action must unmarshal into the field
// executeStep actually reads for key steps.
func TestKeyStepJSONFormHonorsHoldAction(t *testing.T) {
	var steps []Step
	raw := `[{"key":"d","action":"hold","duration":0.05}]`
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		t.Fatalf("unmarshal steps: %v", err)
	}
	if len(steps) != 1 || steps[0].Key == nil || *steps[0].Key != "d" {
		t.Fatalf("expected key step for 'd', got %#v", steps)
	}
	if steps[0].Action == nil || *steps[0].Action != "hold" {
		t.Fatalf("expected action 'hold' on the key step, got %#v", steps[0].Action)
	}

	in, dispatch, clock := newTestInjector()
	done := make(chan error, 1)
	go func() {
		done <- in.ExecuteSequence(context.Background(), steps)
	}()

	// A real "hold" needs engine-clock time to elapse, not just frames, so
	// drive both the way an engine frame loop would (see condwait's advance
	// helper); a step that silently fell back to "tap" would instead
	// complete after the very first tick, before the deadline below.
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("operation failed: %v", err)
			}
			events := dispatch.Events()
			if len(events) != 2 || !events[0].Pressed || events[1].Pressed {
				t.Fatalf("expected a held key to still emit press then release, got %#v", events)
			}
			return
		case <-ticker.C:
			clock.Advance(0.01)
			clock.Tick()
		case <-deadline:
			t.Fatal("timed out waiting for held key to complete")
		}
	}
}
