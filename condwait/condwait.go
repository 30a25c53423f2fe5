// Package condwait implements spec.md §4.7: polled evaluation of a
// property/existence predicate, or a one-shot signal wait, under a
// deadline measured against the engine clock.
package condwait

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/snapshot"
	"github.com/Godeaux/Godot-AI-Bridge/valuewire"
)

// Kind discriminates the condition families spec.md §4.7 names.
type Kind string

const (
	KindNodeExists      Kind = "node_exists"
	KindNodeFreed       Kind = "node_freed"
	KindPropertyEquals  Kind = "property_equals"
	KindPropertyGreater Kind = "property_greater"
	KindPropertyLess    Kind = "property_less"
	KindSignal          Kind = "signal"
)

// Defaults per spec.md §4.7's algorithm.
const (
	DefaultPollInterval   = 0.1
	DefaultTimeout        = 10.0
	signalPollGranularity = 0.05
)

// Condition is one wait_for request.
type Condition struct {
	Kind         Kind
	Ref          string // ref or scene-relative path, resolved via snapshot.Engine.Resolve
	Property     string
	Value        any
	Signal       string
	Timeout      float64
	PollInterval float64
}

// Result is spec.md §4.7's wait_for response shape.
type Result struct {
	ConditionMet bool    `json:"condition_met"`
	Elapsed      float64 `json:"elapsed"`
}

// Waiter evaluates conditions against one live engine session.
type Waiter struct {
	Engine *snapshot.Engine
}

// Wait blocks (cooperatively, via enginehost.Clock) until the condition
// holds or its deadline elapses.
func (w *Waiter) Wait(ctx context.Context, cond Condition) (Result, error) {
	if err := validate(cond); err != nil {
		return Result{}, err
	}

	timeout := cond.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if cond.Kind == KindSignal {
		return w.waitForSignal(ctx, cond, timeout)
	}

	pollInterval := cond.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	clock := w.Engine.Clock
	start := clock.Time()
	for {
		met, err := w.evaluate(cond)
		if err != nil {
			return Result{}, err
		}
		elapsed := clock.Time() - start
		if met {
			return Result{ConditionMet: true, Elapsed: elapsed}, nil
		}
		if elapsed >= timeout {
			return Result{ConditionMet: false, Elapsed: elapsed}, nil
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-clock.After(ctx, pollInterval):
		}
	}
}

// waitForSignal installs a one-shot callback on the target node's signal,
// polling at a finer 0.05s granularity and explicitly disconnecting on
// timeout (spec.md §9's cyclic-ownership note).
func (w *Waiter) waitForSignal(ctx context.Context, cond Condition, timeout float64) (Result, error) {
	node, ok := w.Engine.Resolve(cond.Ref)
	if !ok {
		return Result{}, fmt.Errorf("condwait: no node for ref/path %q", cond.Ref)
	}

	var fired atomic.Bool
	sub, err := w.Engine.Tree.Connect(node, cond.Signal, 0, func(enginehost.SignalArgs) {
		fired.Store(true)
	})
	if err != nil {
		return Result{}, fmt.Errorf("condwait: cannot connect signal %q on %q: %w", cond.Signal, cond.Ref, err)
	}
	defer func() {
		if sub.Connected() {
			sub.Disconnect()
		}
	}()

	clock := w.Engine.Clock
	start := clock.Time()
	for {
		if fired.Load() {
			return Result{ConditionMet: true, Elapsed: clock.Time() - start}, nil
		}
		elapsed := clock.Time() - start
		if elapsed >= timeout {
			return Result{ConditionMet: false, Elapsed: elapsed}, nil
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-clock.After(ctx, signalPollGranularity):
		}
	}
}

func (w *Waiter) evaluate(cond Condition) (bool, error) {
	switch cond.Kind {
	case KindNodeExists:
		_, ok := w.Engine.Resolve(cond.Ref)
		return ok, nil

	case KindNodeFreed:
		node, ok := w.Engine.Resolve(cond.Ref)
		if !ok {
			return true, nil
		}
		return !node.InTree(), nil

	case KindPropertyEquals, KindPropertyGreater, KindPropertyLess:
		node, ok := w.Engine.Resolve(cond.Ref)
		if !ok {
			return false, fmt.Errorf("condwait: no node for ref/path %q", cond.Ref)
		}
		v, ok := node.Property(cond.Property)
		if !ok {
			return false, fmt.Errorf("condwait: node %q has no property %q", cond.Ref, cond.Property)
		}
		return compare(cond.Kind, v, cond.Value)

	default:
		return false, fmt.Errorf("condwait: unknown condition kind %q", cond.Kind)
	}
}

func compare(kind Kind, actual, want any) (bool, error) {
	switch kind {
	case KindPropertyEquals:
		return equalSerialized(valuewire.Serialize(actual), valuewire.Serialize(want)), nil
	case KindPropertyGreater, KindPropertyLess:
		af, aok := toFloat(actual)
		wf, wok := toFloat(want)
		if !aok || !wok {
			return false, fmt.Errorf("condwait: %s requires numeric values, got %T and %T", kind, actual, want)
		}
		if kind == KindPropertyGreater {
			return af > wf, nil
		}
		return af < wf, nil
	default:
		return false, fmt.Errorf("condwait: unsupported comparison kind %q", kind)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func equalSerialized(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
	return string(ja) == string(jb)
}

// validate checks the fields a condition kind needs beyond ref/path, which
// is never required on its own: an empty ref/path means "the scene root"
// (snapshot.Engine.Resolve's fallback rule), a perfectly valid target.
func validate(cond Condition) error {
	switch cond.Kind {
	case KindNodeExists, KindNodeFreed:
		return nil
	case KindPropertyEquals, KindPropertyGreater, KindPropertyLess:
		if cond.Property == "" {
			return fmt.Errorf("condwait: %s requires a property name", cond.Kind)
		}
	case KindSignal:
		if cond.Signal == "" {
			return fmt.Errorf("condwait: signal requires a signal name")
		}
	default:
		return fmt.Errorf("condwait: unknown condition kind %q", cond.Kind)
	}
	return nil
}
