// Package nodestate implements spec.md §4.3: type-dispatched deep
// introspection of a single node. A node is checked against a prioritized,
// closed set of capability readers; every reader whose predicate matches
// contributes its fields to the result map.
package nodestate

import (
	"sort"

	"github.com/Godeaux/Godot-AI-Bridge/enginehost"
	"github.com/Godeaux/Godot-AI-Bridge/valuewire"
)

// Reader is one capability family: a predicate over a node's class name and
// declared properties, and a field-extraction function run when it matches.
// Grounded on mcp.Registry's name-keyed dispatch table, generalized from
// exact-name lookup to predicate-ordered, merge-all dispatch (every
// matching reader contributes, rather than the first match winning).
type Reader struct {
	Name      string
	Predicate func(enginehost.Node) bool
	Fields    func(enginehost.Node) map[string]any
}

// Registry is the ordered, closed set of capability readers applied by
// Read. Some readers share keys (e.g. "visible", "global_position"); when
// several matching readers set the same key, the later reader's value wins.
type Registry struct {
	readers []Reader
}

// NewRegistry builds the standard capability taxonomy (spec.md §4.3's
// table).
func NewRegistry() *Registry {
	r := &Registry{}
	r.readers = []Reader{
		transformReader(),
		uiLayoutReader(),
		canvasItemReader(),
		kinematicBodyReader(),
		rigidBodyReader(),
		animationPlayerReader(),
		animatedSpriteReader(),
		areaReader(),
		timerReader(),
		audioPlayerReader(),
		particleEmitterReader(),
		camera2DReader(),
		camera3DReader(),
		navigationAgentReader(),
		raycastReader(),
		tileMapLayerReader(),
		progressWidgetReader(),
		textInputReader(),
		labelButtonReader(),
	}
	return r
}

// Read returns spec.md §4.3's flat state map: a common preamble plus every
// matching capability's fields, plus the trailing properties/groups/signals
// additions.
func (r *Registry) Read(n enginehost.Node) map[string]any {
	out := map[string]any{
		"name":  n.Name(),
		"class": n.ClassName(),
		"path":  n.Path(),
	}

	for _, reader := range r.readers {
		if reader.Predicate(n) {
			for k, v := range reader.Fields(n) {
				out[k] = v
			}
		}
	}

	exported := n.ExportedProperties()
	if len(exported) > 0 {
		props := make(map[string]any, len(exported))
		sort.Strings(exported)
		for _, name := range exported {
			if v, ok := n.Property(name); ok {
				props[name] = valuewire.Serialize(v)
			}
		}
		out["properties"] = props
	}

	out["groups"] = n.Groups()
	out["signals"] = n.Signals()

	return out
}

func prop(n enginehost.Node, name string) (any, bool) { return n.Property(name) }

func propOr(n enginehost.Node, name string, fallback any) any {
	if v, ok := prop(n, name); ok {
		return v
	}
	return fallback
}

func hasAllProps(n enginehost.Node, names ...string) bool {
	for _, name := range names {
		if _, ok := prop(n, name); !ok {
			return false
		}
	}
	return true
}

func transformReader() Reader {
	return Reader{
		Name: "transform",
		Predicate: func(n enginehost.Node) bool {
			if c, ok := n.(enginehost.SpatialCapable); ok && !c.HasSpatial() {
				return false
			}
			_, ok := n.(enginehost.SpatialNode)
			return ok
		},
		Fields: func(n enginehost.Node) map[string]any {
			sn := n.(enginehost.SpatialNode)
			x, y, z, is3D := sn.Position()
			gx, gy, gz, _ := sn.GlobalPosition()
			rx, ry, rz, _ := sn.Rotation()
			sx, sy, sz, _ := sn.Scale()
			if is3D {
				return map[string]any{
					"position":        valuewire.Serialize(valuewire.Vector3{X: x, Y: y, Z: z}),
					"global_position": valuewire.Serialize(valuewire.Vector3{X: gx, Y: gy, Z: gz}),
					"rotation":        valuewire.Serialize(valuewire.Vector3{X: rx, Y: ry, Z: rz}),
					"scale":           valuewire.Serialize(valuewire.Vector3{X: sx, Y: sy, Z: sz}),
				}
			}
			return map[string]any{
				"position":        valuewire.Serialize(valuewire.Vector2{X: x, Y: y}),
				"global_position": valuewire.Serialize(valuewire.Vector2{X: gx, Y: gy}),
				"rotation":        rx,
				"scale":           valuewire.Serialize(valuewire.Vector2{X: sx, Y: sy}),
			}
		},
	}
}

func uiLayoutReader() Reader {
	return Reader{
		Name: "ui_layout",
		Predicate: func(n enginehost.Node) bool {
			if c, ok := n.(enginehost.RectCapable); ok && !c.HasRect() {
				return false
			}
			_, ok := n.(enginehost.RectNode)
			return ok
		},
		Fields: func(n enginehost.Node) map[string]any {
			rn := n.(enginehost.RectNode)
			w, h := rn.Size()
			gx, gy, _, _ := rn.GlobalRect()
			return map[string]any{
				"size":            valuewire.Serialize(valuewire.Vector2{X: w, Y: h}),
				"global_position": valuewire.Serialize(valuewire.Vector2{X: gx, Y: gy}),
				"visible":         propOr(n, "visible", true),
			}
		},
	}
}

func canvasItemReader() Reader {
	return Reader{
		Name: "canvas_item",
		Predicate: func(n enginehost.Node) bool {
			return hasAllProps(n, "modulate") || hasAllProps(n, "z_index")
		},
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"modulate":      valuewire.Serialize(propOr(n, "modulate", nil)),
				"self_modulate": valuewire.Serialize(propOr(n, "self_modulate", nil)),
				"z_index":       propOr(n, "z_index", 0),
				"visible":       propOr(n, "visible", true),
			}
		},
	}
}

func kinematicBodyReader() Reader {
	return Reader{
		Name: "kinematic_body",
		Predicate: func(n enginehost.Node) bool {
			return hasAllProps(n, "is_on_floor") || hasAllProps(n, "is_on_wall")
		},
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"velocity":              valuewire.Serialize(propOr(n, "velocity", nil)),
				"is_on_floor":           propOr(n, "is_on_floor", false),
				"is_on_wall":            propOr(n, "is_on_wall", false),
				"is_on_ceiling":         propOr(n, "is_on_ceiling", false),
				"slide_collision_count": propOr(n, "slide_collision_count", 0),
				"slide_collisions":      propOr(n, "slide_collisions", []any{}),
			}
		},
	}
}

func rigidBodyReader() Reader {
	return Reader{
		Name:      "rigid_body",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "linear_velocity", "mass") },
		Fields: func(n enginehost.Node) map[string]any {
			fields := map[string]any{
				"linear_velocity":  valuewire.Serialize(propOr(n, "linear_velocity", nil)),
				"angular_velocity": valuewire.Serialize(propOr(n, "angular_velocity", nil)),
				"sleeping":         propOr(n, "sleeping", false),
				"mass":             propOr(n, "mass", 1.0),
				"gravity_scale":    propOr(n, "gravity_scale", 1.0),
				"contact_monitor":  propOr(n, "contact_monitor", false),
			}
			if hasAllProps(n, "friction") {
				fields["friction"] = propOr(n, "friction", 1.0)
			}
			if hasAllProps(n, "bounce") {
				fields["bounce"] = propOr(n, "bounce", 0.0)
			}
			return fields
		},
	}
}

func animationPlayerReader() Reader {
	return Reader{
		Name:      "animation_player",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "current_animation", "current_animation_position") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"current_animation": propOr(n, "current_animation", ""),
				"position":          propOr(n, "current_animation_position", 0.0),
				"is_playing":        propOr(n, "is_playing", false),
			}
		},
	}
}

func animatedSpriteReader() Reader {
	return Reader{
		Name:      "animated_sprite",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "animation", "frame") && hasAllProps(n, "sprite_frames") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"animation":  propOr(n, "animation", ""),
				"frame":      propOr(n, "frame", 0),
				"is_playing": propOr(n, "is_playing", false),
			}
		},
	}
}

func areaReader() Reader {
	return Reader{
		Name:      "area",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "overlapping_bodies") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"overlapping_bodies": propOr(n, "overlapping_bodies", []string{}),
				"overlapping_areas":  propOr(n, "overlapping_areas", []string{}),
			}
		},
	}
}

func timerReader() Reader {
	return Reader{
		Name:      "timer",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "time_left", "wait_time") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"time_left":  propOr(n, "time_left", 0.0),
				"is_stopped": propOr(n, "is_stopped", true),
				"wait_time":  propOr(n, "wait_time", 1.0),
				"one_shot":   propOr(n, "one_shot", false),
				"autostart":  propOr(n, "autostart", false),
			}
		},
	}
}

func audioPlayerReader() Reader {
	return Reader{
		Name:      "audio_player",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "stream", "volume_db") },
		Fields: func(n enginehost.Node) map[string]any {
			fields := map[string]any{
				"playing":   propOr(n, "playing", false),
				"stream":    propOr(n, "stream", ""),
				"volume_db": propOr(n, "volume_db", 0.0),
				"bus":       propOr(n, "bus", "Master"),
			}
			if hasAllProps(n, "max_distance") {
				fields["max_distance"] = propOr(n, "max_distance", 0.0)
				fields["attenuation_model"] = propOr(n, "attenuation_model", 0)
			}
			return fields
		},
	}
}

func particleEmitterReader() Reader {
	return Reader{
		Name:      "particle_emitter",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "emitting", "amount") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"emitting": propOr(n, "emitting", false),
				"amount":   propOr(n, "amount", 0),
				"lifetime": propOr(n, "lifetime", 1.0),
				"one_shot": propOr(n, "one_shot", false),
			}
		},
	}
}

func camera2DReader() Reader {
	return Reader{
		Name:      "camera_2d",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "zoom") && !hasAllProps(n, "fov") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"current":         propOr(n, "current", false),
				"zoom":            valuewire.Serialize(propOr(n, "zoom", nil)),
				"limit_left":      propOr(n, "limit_left", 0),
				"limit_right":     propOr(n, "limit_right", 0),
				"drag_horizontal": propOr(n, "drag_horizontal_enabled", false),
				"drag_vertical":   propOr(n, "drag_vertical_enabled", false),
			}
		},
	}
}

func camera3DReader() Reader {
	return Reader{
		Name:      "camera_3d",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "fov") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"current":    propOr(n, "current", false),
				"fov":        propOr(n, "fov", 75.0),
				"near":       propOr(n, "near", 0.05),
				"far":        propOr(n, "far", 4000.0),
				"projection": propOr(n, "projection", 0),
			}
		},
	}
}

func navigationAgentReader() Reader {
	return Reader{
		Name:      "navigation_agent",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "target_position", "is_navigation_finished") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"target_position":        valuewire.Serialize(propOr(n, "target_position", nil)),
				"is_navigation_finished": propOr(n, "is_navigation_finished", true),
				"distance_to_target":     propOr(n, "distance_to_target", 0.0),
				"is_target_reachable":    propOr(n, "is_target_reachable", true),
				"max_speed":              propOr(n, "max_speed", 0.0),
			}
		},
	}
}

func raycastReader() Reader {
	return Reader{
		Name:      "raycast",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "is_colliding") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"enabled":          propOr(n, "enabled", true),
				"is_colliding":     propOr(n, "is_colliding", false),
				"collider":         propOr(n, "collider_name", ""),
				"collision_point":  valuewire.Serialize(propOr(n, "collision_point", nil)),
				"collision_normal": valuewire.Serialize(propOr(n, "collision_normal", nil)),
			}
		},
	}
}

func tileMapLayerReader() Reader {
	return Reader{
		Name:      "tile_map_layer",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "tile_set", "used_cells_count") },
		Fields: func(n enginehost.Node) map[string]any {
			return map[string]any{
				"tile_set":         propOr(n, "tile_set", ""),
				"enabled":          propOr(n, "enabled", true),
				"used_cells_count": propOr(n, "used_cells_count", 0),
			}
		},
	}
}

func progressWidgetReader() Reader {
	return Reader{
		Name:      "progress_widget",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "value", "min_value", "max_value") },
		Fields: func(n enginehost.Node) map[string]any {
			value := asFloat(propOr(n, "value", 0.0))
			min := asFloat(propOr(n, "min_value", 0.0))
			max := asFloat(propOr(n, "max_value", 100.0))
			ratio := 0.0
			if max > min {
				ratio = (value - min) / (max - min)
			}
			return map[string]any{
				"value": value,
				"min":   min,
				"max":   max,
				"ratio": ratio,
			}
		},
	}
}

func textInputReader() Reader {
	return Reader{
		Name:      "text_input",
		Predicate: func(n enginehost.Node) bool { return hasAllProps(n, "placeholder_text", "editable") },
		Fields: func(n enginehost.Node) map[string]any {
			text := ""
			if tn, ok := n.(enginehost.TextNode); ok {
				text = tn.Text()
			}
			return map[string]any{
				"text":        text,
				"placeholder": propOr(n, "placeholder_text", ""),
				"editable":    propOr(n, "editable", true),
			}
		},
	}
}

func labelButtonReader() Reader {
	return Reader{
		Name: "label_button",
		Predicate: func(n enginehost.Node) bool {
			if c, ok := n.(enginehost.TextCapable); ok && !c.HasText() {
				return false
			}
			_, ok := n.(enginehost.TextNode)
			return ok && !hasAllProps(n, "placeholder_text", "editable")
		},
		Fields: func(n enginehost.Node) map[string]any {
			tn := n.(enginehost.TextNode)
			fields := map[string]any{"text": tn.Text()}
			if hasAllProps(n, "disabled") {
				fields["disabled"] = propOr(n, "disabled", false)
			}
			return fields
		},
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
