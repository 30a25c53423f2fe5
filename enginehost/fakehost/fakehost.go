// Package fakehost is a deterministic, in-memory implementation of the
// enginehost contracts. It stands in for a real engine connection in tests
// and in the bundled demo binary, the way the teacher's editorsync.Store
// stood in for a live editor session.
package fakehost

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
)

// Node is an in-memory enginehost.Node/SpatialNode/RectNode/TextNode.
type Node struct {
	mu sync.RWMutex

	id       enginehost.InstanceID
	class    string
	name     string
	parent   *Node
	children []*Node
	groups   []string
	props    map[string]any
	exported []string
	methods  map[string]func([]any) (any, error)
	inTree   bool

	hasSpatial bool
	is3D       bool
	pos        [3]float64
	globalPos  [3]float64
	rot        [3]float64
	scale      [3]float64

	hasRect bool
	rectW   float64
	rectH   float64
	rectX   float64
	rectY   float64

	hasText bool
	text    string

	connections map[string][]*subscription
}

// NewNode creates a node with no parent that reports itself in-tree, as a
// scene root does. Attach it under another node with Node.AddChild.
func NewNode(id enginehost.InstanceID, class, name string) *Node {
	return &Node{
		id:          id,
		class:       class,
		name:        name,
		props:       map[string]any{},
		methods:     map[string]func([]any) (any, error){},
		connections: map[string][]*subscription{},
		scale:       [3]float64{1, 1, 1},
		inTree:      true,
	}
}

func (n *Node) InstanceID() enginehost.InstanceID { return n.id }
func (n *Node) ClassName() string                 { return n.class }

func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *Node) Path() string {
	n.mu.RLock()
	parent := n.parent
	name := n.name
	n.mu.RUnlock()
	if parent == nil {
		return ""
	}
	parentPath := parent.Path()
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

func (n *Node) Parent() (enginehost.Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.parent == nil {
		return nil, false
	}
	return n.parent, true
}

func (n *Node) Children() []enginehost.Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]enginehost.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// AddChild attaches a child node and parents it.
func (n *Node) AddChild(child *Node) {
	n.mu.Lock()
	child.mu.Lock()
	child.parent = n
	child.inTree = true
	n.children = append(n.children, child)
	child.mu.Unlock()
	n.mu.Unlock()
}

// Detach removes this node from its parent and marks it (and its subtree)
// out-of-tree, so stale refs resolve to null per spec.md's invariant.
func (n *Node) Detach() {
	n.mu.Lock()
	parent := n.parent
	n.parent = nil
	n.mu.Unlock()

	if parent != nil {
		parent.mu.Lock()
		kept := parent.children[:0]
		for _, c := range parent.children {
			if c != n {
				kept = append(kept, c)
			}
		}
		parent.children = kept
		parent.mu.Unlock()
	}
	n.markDetachedRecursive()
}

func (n *Node) markDetachedRecursive() {
	n.mu.Lock()
	n.inTree = false
	children := append([]*Node(nil), n.children...)
	n.mu.Unlock()
	for _, c := range children {
		c.markDetachedRecursive()
	}
}

func (n *Node) InTree() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.inTree
}

func (n *Node) Groups() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.groups))
	for _, g := range n.groups {
		if !strings.HasPrefix(g, "_") {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// SetGroups replaces group membership.
func (n *Node) SetGroups(groups ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groups = groups
}

func (n *Node) Signals() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]string, 0, len(n.connections))
	for name, subs := range n.connections {
		for _, s := range subs {
			if s.Connected() {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (n *Node) Property(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.props[name]
	return v, ok
}

func (n *Node) SetProperty(name string, value any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.props[name]; !ok {
		return fmt.Errorf("no such property %q on node %q", name, n.name)
	}
	n.props[name] = value
	return nil
}

// DefineProperty declares a property (optionally exported/storage-flagged).
func (n *Node) DefineProperty(name string, value any, exported bool) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.props[name] = value
	if exported {
		n.exported = append(n.exported, name)
	}
	return n
}

func (n *Node) ExportedProperties() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := append([]string(nil), n.exported...)
	sort.Strings(out)
	return out
}

// DefineMethod registers a callable method.
func (n *Node) DefineMethod(name string, fn func([]any) (any, error)) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods[name] = fn
	return n
}

func (n *Node) CallMethod(name string, args []any) (any, error) {
	n.mu.RLock()
	fn, ok := n.methods[name]
	n.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no such method %q on node %q", name, n.name)
	}
	return fn(args)
}

// SetSpatial2D marks this node as a 2D spatial node with the given fields.
func (n *Node) SetSpatial2D(x, y, rot, sx, sy float64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasSpatial = true
	n.is3D = false
	n.pos = [3]float64{x, y, 0}
	n.globalPos = n.pos
	n.rot = [3]float64{rot, 0, 0}
	n.scale = [3]float64{sx, sy, 0}
	return n
}

// SetSpatial3D marks this node as a 3D spatial node.
func (n *Node) SetSpatial3D(x, y, z float64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasSpatial = true
	n.is3D = true
	n.pos = [3]float64{x, y, z}
	n.globalPos = n.pos
	n.scale = [3]float64{1, 1, 1}
	return n
}

func (n *Node) Position() (x, y, z float64, is3D bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos[0], n.pos[1], n.pos[2], n.is3D
}

func (n *Node) GlobalPosition() (x, y, z float64, is3D bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.globalPos[0], n.globalPos[1], n.globalPos[2], n.is3D
}

func (n *Node) Rotation() (x, y, z float64, is3D bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rot[0], n.rot[1], n.rot[2], n.is3D
}

func (n *Node) Scale() (x, y, z float64, is3D bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.scale[0], n.scale[1], n.scale[2], n.is3D
}

// HasSpatial reports whether this node carries 2D/3D transform fields.
func (n *Node) HasSpatial() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasSpatial
}

// SetRect marks this node as a Control with a layout rect.
func (n *Node) SetRect(x, y, w, h float64) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasRect = true
	n.rectX, n.rectY, n.rectW, n.rectH = x, y, w, h
	return n
}

func (n *Node) Size() (w, h float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rectW, n.rectH
}

func (n *Node) GlobalRect() (x, y, w, h float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rectX, n.rectY, n.rectW, n.rectH
}

func (n *Node) HasRect() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasRect
}

// SetText marks this node as text-bearing.
func (n *Node) SetText(text string) *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasText = true
	n.text = text
	return n
}

func (n *Node) Text() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.text
}

func (n *Node) HasText() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasText
}

// Emit fires a signal, invoking every connected subscription's callback.
func (n *Node) Emit(signal string, args enginehost.SignalArgs) {
	n.mu.RLock()
	subs := append([]*subscription(nil), n.connections[signal]...)
	n.mu.RUnlock()
	for _, s := range subs {
		if s.Connected() {
			s.cb(args)
		}
	}
}

type subscription struct {
	mu        sync.Mutex
	connected bool
	cb        func(enginehost.SignalArgs)
	detach    func()
}

func (s *subscription) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return
	}
	s.connected = false
	if s.detach != nil {
		s.detach()
	}
}

func (s *subscription) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Tree is an in-memory enginehost.Tree.
type Tree struct {
	mu   sync.RWMutex
	root *Node

	scenePath string
	sceneName string

	addedCbs   []func(enginehost.Node)
	removedCbs []func(enginehost.Node)
}

// NewTree creates a tree rooted at root.
func NewTree(root *Node, scenePath, sceneName string) *Tree {
	return &Tree{root: root, scenePath: scenePath, sceneName: sceneName}
}

func (t *Tree) Root() enginehost.Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

func (t *Tree) Resolve(root enginehost.Node, path string) (enginehost.Node, bool) {
	path = strings.Trim(path, "/")
	if path == "" {
		return root, true
	}
	cur := root
	for _, segment := range strings.Split(path, "/") {
		found := false
		for _, c := range cur.Children() {
			if c.Name() == segment {
				cur = c
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return cur, true
}

func (t *Tree) OnNodeAdded(cb func(enginehost.Node)) enginehost.Subscription {
	t.mu.Lock()
	t.addedCbs = append(t.addedCbs, cb)
	idx := len(t.addedCbs) - 1
	t.mu.Unlock()
	return &subscription{connected: true, cb: func(enginehost.SignalArgs) {}, detach: func() {
		t.mu.Lock()
		t.addedCbs[idx] = nil
		t.mu.Unlock()
	}}
}

func (t *Tree) OnNodeRemoved(cb func(enginehost.Node)) enginehost.Subscription {
	t.mu.Lock()
	t.removedCbs = append(t.removedCbs, cb)
	idx := len(t.removedCbs) - 1
	t.mu.Unlock()
	return &subscription{connected: true, cb: func(enginehost.SignalArgs) {}, detach: func() {
		t.mu.Lock()
		t.removedCbs[idx] = nil
		t.mu.Unlock()
	}}
}

// FireNodeAdded notifies subscribers that a node entered the tree.
func (t *Tree) FireNodeAdded(n enginehost.Node) {
	t.mu.RLock()
	cbs := append([]func(enginehost.Node){}, t.addedCbs...)
	t.mu.RUnlock()
	for _, cb := range cbs {
		if cb != nil {
			cb(n)
		}
	}
}

// FireNodeRemoved notifies subscribers that a node left the tree.
func (t *Tree) FireNodeRemoved(n enginehost.Node) {
	t.mu.RLock()
	cbs := append([]func(enginehost.Node){}, t.removedCbs...)
	t.mu.RUnlock()
	for _, cb := range cbs {
		if cb != nil {
			cb(n)
		}
	}
}

func (t *Tree) Connect(node enginehost.Node, signal string, argCount int, cb func(enginehost.SignalArgs)) (enginehost.Subscription, error) {
	fn, ok := node.(*Node)
	if !ok {
		return nil, fmt.Errorf("fakehost: Connect requires a *fakehost.Node")
	}
	fn.mu.Lock()
	defer fn.mu.Unlock()
	sub := &subscription{connected: true, cb: cb}
	sub.detach = func() {
		fn.mu.Lock()
		defer fn.mu.Unlock()
		subs := fn.connections[signal]
		for i, s := range subs {
			if s == sub {
				fn.connections[signal] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	fn.connections[signal] = append(fn.connections[signal], sub)
	return sub, nil
}

func (t *Tree) ScenePath() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scenePath
}

func (t *Tree) SceneName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sceneName
}

// SetScene replaces the loaded scene path/name and root, simulating a
// scene change.
func (t *Tree) SetScene(root *Node, scenePath, sceneName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = root
	t.scenePath = scenePath
	t.sceneName = sceneName
}
