package eventbus

import (
	"testing"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/enginehost/fakehost"
)

func newTestAccumulator() (*Accumulator, *fakehost.Tree, *fakehost.Clock) {
	root := fakehost.NewNode(1, "Node2D", "Level")
	tree := fakehost.NewTree(root, "res://level.tscn", "Level")
	clock := fakehost.NewClock(60)
	return New(tree, clock), tree, clock
}

func TestStartStopIdempotent(t *testing.T) {
	a, _, _ := newTestAccumulator()
	a.Start()
	a.Start() // no-op, already running
	a.Stop()
	a.Stop() // no-op, already stopped
}

func TestAutoSubscribesMatchingNodeOnStart(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	timer := fakehost.NewNode(2, "Timer", "Respawn")
	timer.DefineProperty("time_left", 5.0, false)
	timer.DefineProperty("wait_time", 5.0, false)
	root.AddChild(timer)

	a.Start()
	defer a.Stop()

	timer.Emit("timeout", enginehost.SignalArgs{})

	events := a.Peek()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != "signal" || events[0].Source != timer.Path() {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestNodeAddedDefersSubscriptionUntilPoll(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	a.Start()
	defer a.Stop()

	button := fakehost.NewNode(3, "Button", "Confirm")
	button.DefineProperty("disabled", false, false)
	button.DefineProperty("button_pressed", false, false)
	root.AddChild(button)
	tree.FireNodeAdded(button)

	// Not yet subscribed: the signal fires before Poll drains pendingAdds.
	button.Emit("pressed", enginehost.SignalArgs{})
	if got := a.Count(); got != 0 {
		t.Fatalf("expected 0 events before Poll, got %d", got)
	}

	a.Poll()
	button.Emit("pressed", enginehost.SignalArgs{})
	if got := a.Count(); got != 1 {
		t.Fatalf("expected 1 event after Poll installs the subscription, got %d", got)
	}
}

func TestNodeAddedSkipsInternalNodes(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	a.Start()
	defer a.Stop()

	internal := fakehost.NewNode(4, "Timer", "@internal_timer")
	internal.DefineProperty("time_left", 1.0, false)
	internal.DefineProperty("wait_time", 1.0, false)
	root.AddChild(internal)
	tree.FireNodeAdded(internal)
	a.Poll()

	internal.Emit("timeout", enginehost.SignalArgs{})
	if got := a.Count(); got != 0 {
		t.Fatalf("expected internal node's signal to be ignored, got %d events", got)
	}
}

func TestNodeRemovedDisconnectsAndEmits(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	timer := fakehost.NewNode(5, "Timer", "Respawn")
	timer.DefineProperty("time_left", 5.0, false)
	timer.DefineProperty("wait_time", 5.0, false)
	root.AddChild(timer)

	a.Start()
	defer a.Stop()

	timer.Detach()
	tree.FireNodeRemoved(timer)

	events := a.Peek()
	if len(events) != 1 || events[0].Type != "node_removed" {
		t.Fatalf("expected a single node_removed event, got %+v", events)
	}

	// The subscription was disconnected: emitting after removal does nothing.
	timer.Emit("timeout", enginehost.SignalArgs{})
	if got := a.Count(); got != 1 {
		t.Fatalf("expected no further events after disconnect, got %d", got)
	}
}

func TestAddWatchAndPollEmitsPropertyChanged(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	player := fakehost.NewNode(6, "Node2D", "Player")
	player.DefineProperty("health", 100, false)
	root.AddChild(player)

	a.Start()
	defer a.Stop()

	a.AddWatch("Player", "health", "player-health")
	a.Poll() // no change yet
	if got := a.Count(); got != 0 {
		t.Fatalf("expected no events before the value changes, got %d", got)
	}

	player.SetProperty("health", 80)
	a.Poll()

	events := a.Peek()
	if len(events) != 1 || events[0].Type != "property_changed" {
		t.Fatalf("expected a single property_changed event, got %+v", events)
	}
	if events[0].Detail["new_value"] != 80 {
		t.Fatalf("expected new_value 80, got %v", events[0].Detail["new_value"])
	}
}

func TestRemoveWatchStopsFurtherEvents(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	player := fakehost.NewNode(7, "Node2D", "Player")
	player.DefineProperty("health", 100, false)
	root.AddChild(player)

	a.Start()
	defer a.Stop()

	a.AddWatch("Player", "health", "player-health")
	a.RemoveWatch("Player", "health")

	player.SetProperty("health", 10)
	a.Poll()

	if got := a.Count(); got != 0 {
		t.Fatalf("expected no events for a removed watch, got %d", got)
	}
}

func TestGetWatchesSortedByPathThenProperty(t *testing.T) {
	a, _, _ := newTestAccumulator()
	a.AddWatch("Player", "ammo", "")
	a.AddWatch("Enemy", "health", "")
	a.AddWatch("Player", "health", "")

	watches := a.GetWatches()
	if len(watches) != 3 {
		t.Fatalf("expected 3 watches, got %d", len(watches))
	}
	if watches[0].NodePath != "Enemy" {
		t.Fatalf("expected Enemy first, got %q", watches[0].NodePath)
	}
	if watches[1].NodePath != "Player" || watches[1].Property != "ammo" {
		t.Fatalf("expected Player/ammo second, got %q/%q", watches[1].NodePath, watches[1].Property)
	}
}

func TestPollDetectsSceneChangeAndRebuildsSubscriptions(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	oldTimer := fakehost.NewNode(8, "Timer", "Old")
	oldTimer.DefineProperty("time_left", 1.0, false)
	oldTimer.DefineProperty("wait_time", 1.0, false)
	root.AddChild(oldTimer)

	a.Start()
	defer a.Stop()

	newRoot := fakehost.NewNode(9, "Node2D", "Level2")
	newTimer := fakehost.NewNode(10, "Timer", "New")
	newTimer.DefineProperty("time_left", 2.0, false)
	newTimer.DefineProperty("wait_time", 2.0, false)
	newRoot.AddChild(newTimer)
	tree.SetScene(newRoot, "res://level2.tscn", "Level2")

	a.Poll()

	events := a.Peek()
	found := false
	for _, e := range events {
		if e.Type == "scene_changed" && e.Source == "res://level2.tscn" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a scene_changed event, got %+v", events)
	}

	// The old tree's timer no longer has a live subscription...
	oldTimer.Emit("timeout", enginehost.SignalArgs{})
	// ...but the new tree's timer, rebuilt by the scene change, does.
	newTimer.Emit("timeout", enginehost.SignalArgs{})

	signalEvents := 0
	for _, e := range a.Peek() {
		if e.Type == "signal" {
			signalEvents++
		}
	}
	if signalEvents != 1 {
		t.Fatalf("expected exactly 1 signal event after scene change, got %d", signalEvents)
	}
}

func TestBufferEvictsOldestPastCap(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	timer := fakehost.NewNode(11, "Timer", "Spammer")
	timer.DefineProperty("time_left", 1.0, false)
	timer.DefineProperty("wait_time", 1.0, false)
	root.AddChild(timer)

	a.Start()
	defer a.Stop()

	for i := 0; i < MaxBuffered+10; i++ {
		timer.Emit("timeout", enginehost.SignalArgs{})
	}

	events := a.Peek()
	if len(events) != MaxBuffered {
		t.Fatalf("expected buffer capped at %d, got %d", MaxBuffered, len(events))
	}
	if events[0].ID != 11 {
		t.Fatalf("expected the oldest surviving event to have ID 11 (10 evicted), got %d", events[0].ID)
	}
	if events[len(events)-1].ID != uint64(MaxBuffered+10) {
		t.Fatalf("expected the newest event to have ID %d, got %d", MaxBuffered+10, events[len(events)-1].ID)
	}
}

func TestDrainClearsBufferPeekDoesNot(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	timer := fakehost.NewNode(12, "Timer", "One")
	timer.DefineProperty("time_left", 1.0, false)
	timer.DefineProperty("wait_time", 1.0, false)
	root.AddChild(timer)

	a.Start()
	defer a.Stop()
	timer.Emit("timeout", enginehost.SignalArgs{})

	if got := a.Count(); got != 1 {
		t.Fatalf("expected 1 event, got %d", got)
	}
	peeked := a.Peek()
	if len(peeked) != 1 {
		t.Fatalf("expected Peek to return 1 event, got %d", len(peeked))
	}
	if got := a.Count(); got != 1 {
		t.Fatalf("expected Peek not to clear the buffer, got count %d", got)
	}

	drained := a.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected Drain to return 1 event, got %d", len(drained))
	}
	if got := a.Count(); got != 0 {
		t.Fatalf("expected Drain to clear the buffer, got count %d", got)
	}
}

func TestClearEmptiesBuffer(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	timer := fakehost.NewNode(13, "Timer", "One")
	timer.DefineProperty("time_left", 1.0, false)
	timer.DefineProperty("wait_time", 1.0, false)
	root.AddChild(timer)

	a.Start()
	defer a.Stop()
	timer.Emit("timeout", enginehost.SignalArgs{})

	a.Clear()
	if got := a.Count(); got != 0 {
		t.Fatalf("expected Clear to empty the buffer, got count %d", got)
	}
}

func TestPendingAddsDiscardedOnSceneChange(t *testing.T) {
	a, tree, _ := newTestAccumulator()
	root := tree.Root().(*fakehost.Node)
	a.Start()
	defer a.Stop()

	stale := fakehost.NewNode(14, "Timer", "Stale")
	stale.DefineProperty("time_left", 1.0, false)
	stale.DefineProperty("wait_time", 1.0, false)
	root.AddChild(stale)
	tree.FireNodeAdded(stale)

	newRoot := fakehost.NewNode(15, "Node2D", "Level2")
	tree.SetScene(newRoot, "res://level2.tscn", "Level2")

	a.Poll()

	// The pending add from the old scene must not be installed after the
	// scene changed out from under it.
	stale.Emit("timeout", enginehost.SignalArgs{})
	if got := a.Count(); got != 1 {
		// exactly the scene_changed event, nothing from the stale timer
		t.Fatalf("expected only the scene_changed event, got %d events", got)
	}
}
