package fakehost

import (
	"sort"
	"sync"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
)

// InputDispatcher is an in-memory enginehost.InputDispatcher that records
// every dispatched event, so tests can assert on press/release ordering.
type InputDispatcher struct {
	mu      sync.Mutex
	events  []enginehost.InputEvent
	actions map[string][]string
}

// NewInputDispatcher creates a dispatcher with the given InputMap actions.
func NewInputDispatcher(actions map[string][]string) *InputDispatcher {
	if actions == nil {
		actions = map[string][]string{}
	}
	return &InputDispatcher{actions: actions}
}

func (d *InputDispatcher) Dispatch(evt enginehost.InputEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *InputDispatcher) ActionNames() map[string][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string][]string, len(d.actions))
	for k, v := range d.actions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (d *InputDispatcher) TriggerAction(name string, pressed bool, strength float64) {
	d.Dispatch(enginehost.InputEvent{Kind: enginehost.InputKindAction, Action: name, Pressed: pressed, Strength: strength})
}

// Events returns a copy of every event dispatched so far, in issue order.
func (d *InputDispatcher) Events() []enginehost.InputEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]enginehost.InputEvent(nil), d.events...)
}

// KnownActionNames returns the sorted list of configured action names.
func (d *InputDispatcher) KnownActionNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.actions))
	for k := range d.actions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ enginehost.InputDispatcher = (*InputDispatcher)(nil)
