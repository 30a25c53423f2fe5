// Package snapshot implements spec.md §4.2: stable ref assignment and the
// bounded scene-tree walk that produces an immutable Snapshot value.
package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/valuewire"
)

// DefaultMaxDepth and DefaultMaxNodeCount are spec.md §4.2's bounds.
const (
	DefaultMaxDepth     = 12
	DefaultMaxNodeCount = 2000
)

// RefTable maintains the instance_id -> ref and instance_id -> node maps
// spec.md §4.2 and §9 describe, pruning stale entries on every snapshot.
// It is grounded on editorsync.Store's mutex-guarded map-of-live-entries
// idiom, generalized from session-keyed freshness to instance-ID-keyed ref
// stability.
type RefTable struct {
	mu    sync.Mutex
	refs  map[enginehost.InstanceID]string
	nodes map[enginehost.InstanceID]enginehost.Node
	byRef map[string]enginehost.InstanceID
}

// NewRefTable creates an empty ref table.
func NewRefTable() *RefTable {
	return &RefTable{
		refs:  map[enginehost.InstanceID]string{},
		nodes: map[enginehost.InstanceID]enginehost.Node{},
		byRef: map[string]enginehost.InstanceID{},
	}
}

// Prune removes entries whose node is no longer valid or no longer in the
// tree (spec.md §4.2 step 1).
func (t *RefTable) Prune() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
}

func (t *RefTable) pruneLocked() {
	for id, node := range t.nodes {
		if node == nil || !node.InTree() {
			delete(t.nodes, id)
			if ref, ok := t.refs[id]; ok {
				delete(t.byRef, ref)
			}
			delete(t.refs, id)
		}
	}
}

// RefFor returns the stable ref for node, assigning one if this is the
// first time the instance ID has been seen. Ref construction:
// substr(class_name, 0, 3) + instance_id_decimal (spec.md §3).
func (t *RefTable) RefFor(node enginehost.Node) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := node.InstanceID()
	if ref, ok := t.refs[id]; ok {
		return ref
	}

	class := node.ClassName()
	if len(class) > 3 {
		class = class[:3]
	}
	ref := fmt.Sprintf("%s%d", class, id)

	t.refs[id] = ref
	t.byRef[ref] = id
	t.nodes[id] = node
	return ref
}

// Resolve looks up a node by ref, validating the instance ID is still live
// and in-tree; a stale entry is evicted and resolution fails (spec.md's
// invariant: "a ref whose instance ID is invalid... resolves to null").
func (t *RefTable) Resolve(ref string) (enginehost.Node, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byRef[ref]
	if !ok {
		return nil, false
	}
	node, ok := t.nodes[id]
	if !ok || node == nil || !node.InTree() {
		delete(t.byRef, ref)
		delete(t.refs, id)
		delete(t.nodes, id)
		return nil, false
	}
	return node, true
}

// NodeRecord is spec.md §3's per-node snapshot record.
type NodeRecord struct {
	Ref            string         `json:"ref"`
	Name           string         `json:"name"`
	Class          string         `json:"class"`
	Path           string         `json:"path"`
	Visible        bool           `json:"visible"`
	Position       any            `json:"position"`
	GlobalPosition any            `json:"global_position"`
	Rotation       any            `json:"rotation"`
	Scale          any            `json:"scale"`
	Size           any            `json:"size,omitempty"`
	Text           any            `json:"text,omitempty"`
	Groups         []string       `json:"groups,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
	Children       []NodeRecord   `json:"children,omitempty"`
}

// Snapshot is spec.md §3's immutable snapshot value.
type Snapshot struct {
	SceneFile      string       `json:"scene_file"`
	SceneName      string       `json:"scene_name"`
	ViewportWidth  int          `json:"viewport_width"`
	ViewportHeight int          `json:"viewport_height"`
	MouseX         float64      `json:"mouse_x"`
	MouseY         float64      `json:"mouse_y"`
	Frame          uint64       `json:"frame"`
	FPS            float64      `json:"fps"`
	ClockTime      float64      `json:"time"`
	Paused         bool         `json:"paused"`
	Nodes          []NodeRecord `json:"nodes"`
	Truncated      bool         `json:"truncated,omitempty"`
	TruncatedAt    int          `json:"truncated_at,omitempty"`
	Note           string       `json:"note,omitempty"`
}

// invisibleReporter is implemented by nodes that can report their own
// visibility; nodes without it are treated as always visible.
type invisibleReporter interface {
	Visible() bool
}

// skippable classifies a node per spec.md §4.2's skip policy: engine-
// internal ("@"-prefixed name) and the bridge's own HTTP server node.
func skippable(n enginehost.Node) bool {
	return strings.HasPrefix(n.Name(), "@") || n.ClassName() == "RuntimeBridgeServer"
}

// Engine bundles what Take needs from one live host session.
type Engine struct {
	Tree     enginehost.Tree
	Clock    enginehost.Clock
	Viewport enginehost.Viewport
	Refs     *RefTable
}

// Resolve looks up a node by ref first, falling back to a scene-relative
// path, falling back to treating the scene root itself as the target when
// refOrPath is empty (spec.md §4.2's resolve rule: every route handler that
// accepts a node target follows this order).
func (e *Engine) Resolve(refOrPath string) (enginehost.Node, bool) {
	e.Refs.Prune()

	if refOrPath == "" {
		root := e.Tree.Root()
		if root == nil {
			return nil, false
		}
		return root, true
	}

	if node, ok := e.Refs.Resolve(refOrPath); ok {
		return node, true
	}

	return e.Tree.Resolve(e.Tree.Root(), refOrPath)
}

// Take performs one bounded depth-first pre-order walk from root (or the
// scene root if root is nil), producing a Snapshot (spec.md §4.2).
func (e *Engine) Take(root enginehost.Node, maxDepth int) Snapshot {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	e.Refs.Prune()

	if root == nil {
		root = e.Tree.Root()
	}

	vw, vh := 0, 0
	mx, my := 0.0, 0.0
	if e.Viewport != nil {
		vw, vh = e.Viewport.Size()
		mx, my = e.Viewport.MousePosition()
	}

	snap := Snapshot{
		SceneFile:      e.Tree.ScenePath(),
		SceneName:      e.Tree.SceneName(),
		ViewportWidth:  vw,
		ViewportHeight: vh,
		MouseX:         mx,
		MouseY:         my,
		Frame:          e.Clock.Frame(),
		FPS:            e.Clock.FPS(),
		ClockTime:      e.Clock.Time(),
		Paused:         e.Clock.Paused(),
	}

	count := 0
	truncated := false
	var walk func(n enginehost.Node, depth int) *NodeRecord
	walk = func(n enginehost.Node, depth int) *NodeRecord {
		if skippable(n) {
			return nil
		}
		if count >= DefaultMaxNodeCount {
			truncated = true
			return nil
		}
		count++

		rec := buildRecord(e.Refs, n)

		if depth < maxDepth {
			for _, child := range n.Children() {
				if count >= DefaultMaxNodeCount {
					truncated = true
					break
				}
				if childRec := walk(child, depth+1); childRec != nil {
					rec.Children = append(rec.Children, *childRec)
				}
			}
		}
		return &rec
	}

	if rootRec := walk(root, 0); rootRec != nil {
		snap.Nodes = []NodeRecord{*rootRec}
	}

	if truncated {
		snap.Truncated = true
		snap.TruncatedAt = count
		snap.Note = "snapshot truncated at node-count cap; use root= to focus"
	}

	return snap
}

// isSpatial, isRect, isText consult the optional capability gates a host
// Node may implement when one concrete type backs many engine classes
// (spec.md §4.3); a node that doesn't implement the gate is assumed to
// genuinely have the capability, since its static interface satisfaction
// already says so.
func isSpatial(n enginehost.Node) bool {
	if c, ok := n.(enginehost.SpatialCapable); ok {
		return c.HasSpatial()
	}
	return true
}

func isRect(n enginehost.Node) bool {
	if c, ok := n.(enginehost.RectCapable); ok {
		return c.HasRect()
	}
	return true
}

func isText(n enginehost.Node) bool {
	if c, ok := n.(enginehost.TextCapable); ok {
		return c.HasText()
	}
	return true
}

func buildRecord(refs *RefTable, n enginehost.Node) NodeRecord {
	rec := NodeRecord{
		Ref:     refs.RefFor(n),
		Name:    n.Name(),
		Class:   n.ClassName(),
		Path:    n.Path(),
		Visible: true,
		Groups:  n.Groups(),
	}

	if vr, ok := n.(invisibleReporter); ok {
		rec.Visible = vr.Visible()
	}

	if sn, ok := n.(enginehost.SpatialNode); ok && isSpatial(n) {
		x, y, z, is3D := sn.Position()
		gx, gy, gz, _ := sn.GlobalPosition()
		rx, ry, rz, _ := sn.Rotation()
		sx, sy, sz, _ := sn.Scale()
		if is3D {
			rec.Position = valuewire.Serialize(valuewire.Vector3{X: x, Y: y, Z: z})
			rec.GlobalPosition = valuewire.Serialize(valuewire.Vector3{X: gx, Y: gy, Z: gz})
			rec.Rotation = valuewire.Serialize(valuewire.Vector3{X: rx, Y: ry, Z: rz})
			rec.Scale = valuewire.Serialize(valuewire.Vector3{X: sx, Y: sy, Z: sz})
		} else {
			rec.Position = valuewire.Serialize(valuewire.Vector2{X: x, Y: y})
			rec.GlobalPosition = valuewire.Serialize(valuewire.Vector2{X: gx, Y: gy})
			rec.Rotation = rx
			rec.Scale = valuewire.Serialize(valuewire.Vector2{X: sx, Y: sy})
		}
	}

	if rn, ok := n.(enginehost.RectNode); ok && isRect(n) {
		w, h := rn.Size()
		rec.Size = valuewire.Serialize(valuewire.Vector2{X: w, Y: h})
	}

	if tn, ok := n.(enginehost.TextNode); ok && isText(n) {
		rec.Text = tn.Text()
	} else if v, ok := n.Property("text"); ok {
		if s, ok := v.(string); ok {
			rec.Text = s
		}
	}

	exported := n.ExportedProperties()
	if len(exported) > 0 {
		rec.Properties = make(map[string]any, len(exported))
		sort.Strings(exported)
		for _, name := range exported {
			if v, ok := n.Property(name); ok {
				rec.Properties[name] = valuewire.Serialize(v)
			}
		}
	}

	return rec
}
