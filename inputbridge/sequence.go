package inputbridge

import (
	"context"
	"fmt"
)

// Step is one tagged entry in an execute_sequence call (spec.md §4.4).
// Exactly one of the fields below should be set per step; which one
// determines the operation.
type Step struct {
	WaitSeconds *float64 `json:"wait,omitempty"`

	Key             *string  `json:"key,omitempty"`
	KeyDurationSecs *float64 `json:"duration,omitempty"`

	// Action is shared by two distinct step kinds, disambiguated by whether
	// Key is also set: a key step's press/hold/release kind ("press",
	// "hold", "release") when Key != nil, or a mapped action's name
	// otherwise.
	Action   *string  `json:"action,omitempty"`
	Pressed  *bool    `json:"pressed,omitempty"`
	Strength *float64 `json:"strength,omitempty"`

	Click     *[2]float64 `json:"click,omitempty"`
	ClickNode *string     `json:"click_node,omitempty"`
	MouseMove *[2]float64 `json:"mouse_move,omitempty"`
}

// ExecuteSequence runs steps strictly in order, awaiting each step's own
// completion before starting the next (spec.md §4.4).
func (in *Injector) ExecuteSequence(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := in.executeStep(ctx, step); err != nil {
			return fmt.Errorf("inputbridge: sequence step %d: %w", i, err)
		}
	}
	return nil
}

func (in *Injector) executeStep(ctx context.Context, step Step) error {
	switch {
	case step.WaitSeconds != nil:
		select {
		case <-in.Clock.After(ctx, *step.WaitSeconds):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case step.Key != nil:
		action := ""
		if step.Action != nil {
			action = *step.Action
		}
		duration := 0.0
		if step.KeyDurationSecs != nil {
			duration = *step.KeyDurationSecs
		}
		return in.Key(ctx, *step.Key, action, duration)

	case step.Action != nil:
		pressed := true
		if step.Pressed != nil {
			pressed = *step.Pressed
		}
		strength := 1.0
		if step.Strength != nil {
			strength = *step.Strength
		}
		in.TriggerAction(*step.Action, pressed, strength)
		return nil

	case step.Click != nil:
		return in.Click(ctx, step.Click[0], step.Click[1], 1, false)

	case step.ClickNode != nil:
		return in.ClickNode(ctx, *step.ClickNode, 1, false)

	case step.MouseMove != nil:
		in.MouseMove(step.MouseMove[0], step.MouseMove[1], 0, 0)
		return nil

	default:
		return fmt.Errorf("empty or unrecognized step")
	}
}
