// Package enginehost declares the capability surface the runtime bridge
// consumes from the game engine. The bridge never links against the engine
// directly — it is handed an implementation of these interfaces at startup
// (a real one from an embedder, or enginehost/fakehost for tests and the
// bundled demo binary).
package enginehost

import "context"

// InstanceID is the engine-assigned identifier valid for a node's lifetime.
type InstanceID uint64

// Node is the capability-bearing opaque spec.md §3 describes: the bridge
// never owns a node, it only references one through this interface.
type Node interface {
	InstanceID() InstanceID
	ClassName() string
	Name() string

	// Path returns the node's path relative to the current scene root, e.g.
	// "Level/Player/Sprite".
	Path() string

	Parent() (Node, bool)
	Children() []Node

	// Groups returns group membership, excluding internal "_"-prefixed names.
	Groups() []string

	// Signals returns the names of signals this node exposes that have at
	// least one connection.
	Signals() []string

	// Property reads a named property (script-exported or built-in). The
	// second return is false if the node has no such property.
	Property(name string) (any, bool)

	// SetProperty writes a named property. Returns an error if the property
	// does not exist or the value cannot be converted to its type.
	SetProperty(name string, value any) error

	// ExportedProperties lists script-declared, storage-flagged property
	// names (spec.md §4.2's "properties" field population rule).
	ExportedProperties() []string

	// CallMethod invokes a method by name with positional arguments.
	CallMethod(name string, args []any) (any, error)

	// InTree reports whether the node is still attached to a live scene tree.
	// A stale ref (spec.md's invariant) is one whose node returns false here.
	InTree() bool
}

// SpatialNode is implemented by 2D/3D nodes; absent on other node types.
type SpatialNode interface {
	Node
	Position() (x, y, z float64, is3D bool)
	GlobalPosition() (x, y, z float64, is3D bool)
	Rotation() (x, y, z float64, is3D bool)
	Scale() (x, y, z float64, is3D bool)
}

// RectNode is implemented by Control (UI layout) nodes.
type RectNode interface {
	Node
	Size() (w, h float64)
	GlobalRect() (x, y, w, h float64)
}

// TextNode is implemented by label/button/line-edit/text-edit/rich-text
// nodes, or any node exposing a "text" property.
type TextNode interface {
	Node
	Text() string
}

// Capability gates are implemented by host Node types whose concrete
// representation satisfies SpatialNode/RectNode/TextNode unconditionally
// (a single wrapper struct backing many Godot classes) but whose instances
// don't all genuinely carry that capability. Callers check for these first;
// their absence means the static interface satisfaction above is already
// authoritative (spec.md §4.3's capability taxonomy).
type SpatialCapable interface{ HasSpatial() bool }
type RectCapable interface{ HasRect() bool }
type TextCapable interface{ HasText() bool }

// Subscription is a handle to one installed engine-signal callback. Callers
// must Disconnect before letting the handle go out of scope (spec.md §9's
// cyclic-ownership note): the engine holds a reference back to the callback
// until explicitly disconnected.
type Subscription interface {
	Disconnect()
	Connected() bool
}

// SignalArgs is the (possibly empty) argument list an engine signal fired
// with. The accumulator only ever needs at most one Node-valued argument;
// excess arguments are dropped by the host implementation so a uniform
// callback shape works (spec.md §4.6).
type SignalArgs struct {
	Node Node // the single Node-valued argument, if the signal carries one
}

// Tree is the scene tree the bridge walks and resolves paths/refs against.
type Tree interface {
	Root() Node

	// Resolve looks up a node by path relative to root. Returns false if no
	// node exists at that path.
	Resolve(root Node, path string) (Node, bool)

	// OnNodeAdded/OnNodeRemoved subscribe to tree-structure lifecycle
	// signals used by the event accumulator (spec.md §4.6).
	OnNodeAdded(cb func(Node)) Subscription
	OnNodeRemoved(cb func(Node)) Subscription

	// Connect installs a callback for a named signal on a node. argCount is
	// how many arguments the host should attempt to marshal into
	// SignalArgs (0 or 1 supported per spec.md §4.6).
	Connect(node Node, signal string, argCount int, cb func(SignalArgs)) (Subscription, error)

	// ScenePath returns the currently loaded scene's file path, used for
	// scene-change detection (spec.md §4.6).
	ScenePath() string

	// SceneName returns the current scene's display name.
	SceneName() string
}

// Clock is the sole legal source of suspension for a cooperative handler
// (spec.md §5): a frame tick, or a timer measured in engine-clock seconds
// that respects time scale and pause.
type Clock interface {
	Frame() uint64
	FPS() float64
	Time() float64
	Paused() bool
	TimeScale() float64

	// SetPaused toggles engine pause. Per spec.md §5, handlers must keep
	// running while paused; only engine-clock timers stop advancing.
	SetPaused(paused bool)

	// SetTimeScale clamps scale to [0.01, 10] (spec.md §6) and applies it,
	// returning the clamped value actually in effect.
	SetTimeScale(scale float64) float64

	// NextFrame returns a channel that receives once the next engine frame
	// tick completes.
	NextFrame() <-chan struct{}

	// After returns a channel that receives once at least seconds of
	// engine-clock time have elapsed. It respects pause (does not advance
	// while paused) and time scale, per spec.md §5's pause-behavior note.
	After(ctx context.Context, seconds float64) <-chan struct{}
}

// Viewport is the render surface the screenshot pipeline captures from.
type Viewport interface {
	Size() (w, h int)
	MousePosition() (x, y float64)

	// CaptureRGBA returns the current frame as 8-bit RGBA pixels, row-major,
	// width*height*4 bytes. Returns false if no frame is available yet.
	CaptureRGBA() (pixels []byte, w, h int, ok bool)

	// ActiveCamera3D reports whether a 3D camera is active and, if so,
	// projects a 3D world position to 2D screen space.
	ActiveCamera3D() (project func(x, y, z float64) (sx, sy float64, behind bool), ok bool)
}

// Host bundles the four capability surfaces the runtime bridge needs from
// one engine session.
type Host struct {
	Tree     Tree
	Clock    Clock
	Viewport Viewport

	// Dispatch delivers a synthesized raw input event to the engine's input
	// system. Events carry Pressed=true/false and are indistinguishable
	// from real input once dispatched (spec.md §4.4).
	Dispatch InputDispatcher

	// ProjectPath is the absolute path to the running project, used by
	// GET /info and GET /console.
	ProjectPath string

	// LogFilePath is the engine's rolling log file, tailed by GET /console.
	LogFilePath string
}

// InputEvent is one synthesized input event.
type InputEvent struct {
	Kind      InputKind
	Pressed   bool
	KeyCode   int     // for Key events
	Button    int     // for Mouse events: 1=left, 2=right, 3=middle
	X, Y      float64 // local position
	GX, GY    float64 // global/screen position
	RelX, RelY float64 // relative motion, for MouseMotion
	Double    bool
	Action    string  // for Action events
	Strength  float64 // for Action events
}

// InputKind discriminates the InputEvent union.
type InputKind int

const (
	InputKindKey InputKind = iota
	InputKindMouseButton
	InputKindMouseMotion
	InputKindAction
)

// InputDispatcher delivers one synthesized event to the engine's raw input
// queue.
type InputDispatcher interface {
	Dispatch(InputEvent)

	// ActionNames lists InputMap actions known to the project (GET
	// /actions), mapped to their bound event descriptions.
	ActionNames() map[string][]string

	// TriggerAction feeds a mapped action event regardless of concrete key
	// bindings (spec.md §4.4).
	TriggerAction(name string, pressed bool, strength float64)
}
