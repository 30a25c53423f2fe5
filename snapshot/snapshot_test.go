package snapshot

import (
	"testing"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/enginehost/fakehost"
)

func newTestTree() (*fakehost.Tree, *fakehost.Node, *fakehost.Node) {
	root := fakehost.NewNode(1, "Node2D", "Level")
	root.SetSpatial2D(0, 0, 0, 1, 1)

	player := fakehost.NewNode(2, "CharacterBody2D", "Player")
	player.SetSpatial2D(10, 20, 0, 1, 1)
	root.AddChild(player)

	tree := fakehost.NewTree(root, "res://level.tscn", "Level")
	return tree, root, player
}

func TestRefForStableAcrossCalls(t *testing.T) {
	_, root, _ := newTestTree()
	refs := NewRefTable()

	first := refs.RefFor(root)
	second := refs.RefFor(root)
	if first != second {
		t.Fatalf("ref changed across calls: %q vs %q", first, second)
	}
	if first != "Nod1" {
		t.Fatalf("unexpected ref shape: %q", first)
	}
}

func TestRefForDistinctNodes(t *testing.T) {
	_, root, player := newTestTree()
	refs := NewRefTable()

	rootRef := refs.RefFor(root)
	playerRef := refs.RefFor(player)
	if rootRef == playerRef {
		t.Fatalf("expected distinct refs, got %q for both", rootRef)
	}
}

func TestResolveStaleRefFailsAndEvicts(t *testing.T) {
	_, _, player := newTestTree()
	refs := NewRefTable()
	ref := refs.RefFor(player)

	player.Detach()

	if _, ok := refs.Resolve(ref); ok {
		t.Fatal("expected stale ref to fail resolution")
	}
	// second call should still behave, using the pruned map
	if _, ok := refs.Resolve(ref); ok {
		t.Fatal("expected stale ref to remain unresolved")
	}
}

func TestTakeWalksWholeTreeByDefault(t *testing.T) {
	tree, root, _ := newTestTree()
	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(1280, 720)

	eng := &Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: NewRefTable()}
	snap := eng.Take(nil, 0)

	if snap.SceneName != "Level" {
		t.Fatalf("got scene name %q", snap.SceneName)
	}
	if len(snap.Nodes) != 1 {
		t.Fatalf("expected one root record, got %d", len(snap.Nodes))
	}
	rootRec := snap.Nodes[0]
	if rootRec.Name != "Level" {
		t.Fatalf("got root name %q", rootRec.Name)
	}
	if len(rootRec.Children) != 1 || rootRec.Children[0].Name != "Player" {
		t.Fatalf("expected Player child, got %#v", rootRec.Children)
	}
	if root.InstanceID() == 0 {
		t.Fatal("sanity: instance id should be nonzero")
	}
}

func TestTakeRespectsMaxDepth(t *testing.T) {
	tree, _, player := newTestTree()
	grandchild := fakehost.NewNode(3, "Sprite2D", "Sprite")
	player.AddChild(grandchild)

	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(640, 480)
	eng := &Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: NewRefTable()}

	snap := eng.Take(nil, 1)
	rootRec := snap.Nodes[0]
	if len(rootRec.Children) != 1 {
		t.Fatalf("expected Player at depth 1, got %#v", rootRec.Children)
	}
	if len(rootRec.Children[0].Children) != 0 {
		t.Fatalf("expected Sprite pruned past max depth, got %#v", rootRec.Children[0].Children)
	}
}

func TestTakeSkipsInternalNodes(t *testing.T) {
	tree, root, _ := newTestTree()
	internal := fakehost.NewNode(4, "Node", "@internal_overlay")
	root.AddChild(internal)

	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(640, 480)
	eng := &Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: NewRefTable()}

	snap := eng.Take(nil, 0)
	rootRec := snap.Nodes[0]
	for _, child := range rootRec.Children {
		if child.Name == "@internal_overlay" {
			t.Fatal("internal node should have been skipped")
		}
	}
}

func TestEngineResolveByRefThenPathThenRoot(t *testing.T) {
	tree, root, player := newTestTree()
	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(640, 480)
	eng := &Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: NewRefTable()}

	ref := eng.Refs.RefFor(player)
	if got, ok := eng.Resolve(ref); !ok || got.InstanceID() != player.InstanceID() {
		t.Fatalf("expected ref resolution to find player, got %#v ok=%v", got, ok)
	}

	if got, ok := eng.Resolve(""); !ok || got.InstanceID() != root.InstanceID() {
		t.Fatalf("expected empty target to resolve to scene root, got %#v ok=%v", got, ok)
	}

	if _, ok := eng.Resolve("NoSuchRefOrPath"); ok {
		t.Fatal("expected unknown ref/path to fail resolution")
	}
}

func TestTakeReportsTruncation(t *testing.T) {
	tree, root, _ := newTestTree()
	for i := 0; i < DefaultMaxNodeCount+5; i++ {
		root.AddChild(fakehost.NewNode(enginehost.InstanceID(100+i), "Node", "Extra"))
	}

	clock := fakehost.NewClock(60)
	viewport := fakehost.NewViewport(640, 480)
	eng := &Engine{Tree: tree, Clock: clock, Viewport: viewport, Refs: NewRefTable()}

	snap := eng.Take(nil, DefaultMaxDepth)
	if !snap.Truncated {
		t.Fatal("expected truncation with node count over the cap")
	}
	if snap.TruncatedAt != DefaultMaxNodeCount {
		t.Fatalf("expected truncated_at == cap, got %d", snap.TruncatedAt)
	}
}
