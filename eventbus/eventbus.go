// Package eventbus implements spec.md §4.6: a bounded event buffer that
// auto-subscribes to a fixed set of engine signal capabilities, tracks
// property watches, and detects scene changes between observations.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/valuewire"
)

// MaxBuffered is spec.md §4.6's event buffer cap.
const MaxBuffered = 200

// Event is spec.md §3's event record.
type Event struct {
	ID     uint64         `json:"id"`
	Type   string         `json:"type"`
	Time   float64        `json:"time"`
	Frame  uint64         `json:"frame"`
	Source string         `json:"source"`
	Detail map[string]any `json:"detail,omitempty"`
}

// Watch is spec.md §3's property watch entry.
type Watch struct {
	NodePath  string `json:"node_path"`
	Property  string `json:"property"`
	Label     string `json:"label"`
	LastValue any    `json:"last_value"`
}

type watchKey struct {
	path     string
	property string
}

// signalSpec is one auto-subscribed (capability, signal) pair (spec.md
// §4.6's taxonomy).
type signalSpec struct {
	eventType string
	signal    string
	argCount  int
	applies   func(enginehost.Node) bool
}

// Accumulator buffers engine events and polls property watches. Grounded on
// editorsync/notify.go's single swappable-callback idiom, generalized
// from one outbound notifier to N inbound signal subscriptions tracked per
// node and explicitly disconnected on teardown or scene change.
type Accumulator struct {
	mu sync.Mutex

	tree  enginehost.Tree
	clock enginehost.Clock

	running bool
	nextID  uint64
	events  []Event

	watches map[watchKey]*Watch

	sceneBaseline string
	nodeSubs      map[enginehost.InstanceID][]enginehost.Subscription
	lifecycleSubs []enginehost.Subscription
	pendingAdds   []enginehost.Node
}

// New creates a stopped accumulator over tree/clock.
func New(tree enginehost.Tree, clock enginehost.Clock) *Accumulator {
	return &Accumulator{
		tree:    tree,
		clock:   clock,
		watches: map[watchKey]*Watch{},
		nodeSubs: map[enginehost.InstanceID][]enginehost.Subscription{},
	}
}

// Start scans the current scene tree, subscribes to every matching node's
// auto-signal capabilities, and records the scene-path baseline.
func (a *Accumulator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.sceneBaseline = a.tree.ScenePath()
	a.pendingAdds = nil

	a.lifecycleSubs = append(a.lifecycleSubs,
		a.tree.OnNodeAdded(a.onNodeAdded),
		a.tree.OnNodeRemoved(a.onNodeRemoved),
	)

	root := a.tree.Root()
	if root != nil {
		a.subscribeSubtreeLocked(root)
	}
}

// Stop disconnects every installed subscription. The accumulator may be
// Start()ed again afterward.
func (a *Accumulator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.running = false

	for _, sub := range a.lifecycleSubs {
		sub.Disconnect()
	}
	a.lifecycleSubs = nil

	for id, subs := range a.nodeSubs {
		for _, sub := range subs {
			sub.Disconnect()
		}
		delete(a.nodeSubs, id)
	}
	a.pendingAdds = nil
}

func (a *Accumulator) onNodeAdded(n enginehost.Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || skippable(n) {
		return
	}
	// Queued rather than subscribed immediately: Poll, called once per
	// engine tick, drains this queue on the next tick so the node is fully
	// installed before its signal table is inspected (spec.md §4.6's
	// lifecycle rule).
	a.pendingAdds = append(a.pendingAdds, n)
}

func (a *Accumulator) onNodeRemoved(n enginehost.Node) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	id := n.InstanceID()
	for _, sub := range a.nodeSubs[id] {
		sub.Disconnect()
	}
	delete(a.nodeSubs, id)
	if !skippable(n) {
		a.emitLocked("node_removed", n.Path(), nil)
	}
}

func (a *Accumulator) subscribeSubtreeLocked(n enginehost.Node) {
	if skippable(n) {
		return
	}
	a.subscribeNodeLocked(n)
	for _, c := range n.Children() {
		a.subscribeSubtreeLocked(c)
	}
}

func (a *Accumulator) subscribeNodeLocked(n enginehost.Node) {
	id := n.InstanceID()
	if _, ok := a.nodeSubs[id]; ok {
		return
	}
	var subs []enginehost.Subscription
	for _, spec := range autoSignalSpecs {
		if !spec.applies(n) {
			continue
		}
		spec := spec
		sub, err := a.tree.Connect(n, spec.signal, spec.argCount, func(args enginehost.SignalArgs) {
			a.mu.Lock()
			defer a.mu.Unlock()
			source := n.Path()
			detail := map[string]any{"signal": spec.signal}
			if spec.argCount > 0 && args.Node != nil {
				detail["node"] = args.Node.Path()
			}
			a.emitLocked(spec.eventType, source, detail)
		})
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) > 0 {
		a.nodeSubs[id] = subs
	}
}

// skippable mirrors snapshot's internal-node skip policy so accumulator
// events never surface engine-internal or bridge-owned nodes.
func skippable(n enginehost.Node) bool {
	return strings.HasPrefix(n.Name(), "@") || n.ClassName() == "RuntimeBridgeServer"
}

func (a *Accumulator) emitLocked(eventType, source string, detail map[string]any) {
	a.nextID++
	ev := Event{
		ID:     a.nextID,
		Type:   eventType,
		Time:   a.clock.Time(),
		Frame:  a.clock.Frame(),
		Source: source,
		Detail: detail,
	}
	a.events = append(a.events, ev)
	if len(a.events) > MaxBuffered {
		a.events = a.events[len(a.events)-MaxBuffered:]
	}
}

// AddWatch registers (or replaces) a watch, unique on (path, property).
func (a *Accumulator) AddWatch(path, property, label string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := watchKey{path, property}
	node, ok := a.tree.Resolve(a.tree.Root(), path)
	var last any
	if ok {
		if v, ok := node.Property(property); ok {
			last = valuewire.Serialize(v)
		}
	}
	a.watches[key] = &Watch{NodePath: path, Property: property, Label: label, LastValue: last}
}

// RemoveWatch deletes a watch by (path, property).
func (a *Accumulator) RemoveWatch(path, property string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.watches, watchKey{path, property})
}

// GetWatches returns every registered watch, sorted for deterministic
// output.
func (a *Accumulator) GetWatches() []Watch {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Watch, 0, len(a.watches))
	for _, w := range a.watches {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NodePath != out[j].NodePath {
			return out[i].NodePath < out[j].NodePath
		}
		return out[i].Property < out[j].Property
	})
	return out
}

// Poll evaluates every watch for a changed value and checks for a scene
// change, emitting property_changed / scene_changed events as needed.
func (a *Accumulator) Poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}

	currentScene := a.tree.ScenePath()
	if currentScene != a.sceneBaseline {
		a.sceneBaseline = currentScene
		a.emitLocked("scene_changed", currentScene, map[string]any{"scene_name": a.tree.SceneName()})
		a.rebuildSubscriptionsLocked()
		a.pendingAdds = nil
	}

	if len(a.pendingAdds) > 0 {
		pending := a.pendingAdds
		a.pendingAdds = nil
		for _, n := range pending {
			if n.InTree() {
				a.subscribeNodeLocked(n)
			}
		}
	}

	for key, w := range a.watches {
		node, ok := a.tree.Resolve(a.tree.Root(), key.path)
		if !ok {
			continue
		}
		v, ok := node.Property(key.property)
		if !ok {
			continue
		}
		serialized := valuewire.Serialize(v)
		if !equalSerialized(serialized, w.LastValue) {
			old := w.LastValue
			w.LastValue = serialized
			a.emitLocked("property_changed", key.path, map[string]any{
				"label":     w.Label,
				"old_value": old,
				"new_value": serialized,
			})
		}
	}
}

func (a *Accumulator) rebuildSubscriptionsLocked() {
	for id, subs := range a.nodeSubs {
		for _, sub := range subs {
			sub.Disconnect()
		}
		delete(a.nodeSubs, id)
	}
	root := a.tree.Root()
	if root != nil {
		a.subscribeSubtreeLocked(root)
	}
}

func equalSerialized(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
	return string(ja) == string(jb)
}

// Drain returns every buffered event and clears the buffer.
func (a *Accumulator) Drain() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.events
	a.events = nil
	return out
}

// Peek returns every buffered event without clearing the buffer.
func (a *Accumulator) Peek() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}

// Count returns the number of buffered events.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// Clear empties the buffer without returning its contents.
func (a *Accumulator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = nil
}
