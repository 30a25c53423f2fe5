package eventbus

import "github.com/Godeaux/Godot-AI-Bridge/enginehost"

// autoSignalSpecs is the fixed auto-subscribed signal taxonomy spec.md
// §4.6 names. applies detects the capability the same way nodestate does:
// by declared-property presence, since the fake host models node "subtype"
// as property declarations rather than true Go subtypes.
var autoSignalSpecs = []signalSpec{
	{eventType: "signal", signal: "body_entered", argCount: 1, applies: isArea},
	{eventType: "signal", signal: "body_exited", argCount: 1, applies: isArea},
	{eventType: "signal", signal: "area_entered", argCount: 1, applies: isArea},
	{eventType: "signal", signal: "area_exited", argCount: 1, applies: isArea},

	{eventType: "signal", signal: "body_shape_entered", argCount: 0, applies: isCollisionObject},
	{eventType: "signal", signal: "body_shape_exited", argCount: 0, applies: isCollisionObject},

	{eventType: "signal", signal: "animation_finished", argCount: 0, applies: isAnimationPlayer},
	{eventType: "signal", signal: "animation_finished", argCount: 0, applies: isAnimatedSprite},
	{eventType: "signal", signal: "animation_finished", argCount: 0, applies: isAnimationTree},

	{eventType: "signal", signal: "screen_entered", argCount: 0, applies: isVisibilityNotifier},
	{eventType: "signal", signal: "screen_exited", argCount: 0, applies: isVisibilityNotifier},

	{eventType: "signal", signal: "timeout", argCount: 0, applies: isTimer},
	{eventType: "signal", signal: "pressed", argCount: 0, applies: isButton},
	{eventType: "signal", signal: "finished", argCount: 0, applies: isAudioPlayer},
	{eventType: "signal", signal: "sleeping_state_changed", argCount: 0, applies: isRigidBody},
	{eventType: "signal", signal: "target_reached", argCount: 0, applies: isNavigationAgent},
	{eventType: "signal", signal: "navigation_finished", argCount: 0, applies: isNavigationAgent},
}

func hasAllProps(n enginehost.Node, names ...string) bool {
	for _, name := range names {
		if _, ok := n.Property(name); !ok {
			return false
		}
	}
	return true
}

func isArea(n enginehost.Node) bool {
	return hasAllProps(n, "overlapping_bodies")
}

func isCollisionObject(n enginehost.Node) bool {
	_, isSpatial := n.(enginehost.SpatialNode)
	return isSpatial && hasAllProps(n, "collision_layer") && !hasAllProps(n, "overlapping_bodies")
}

func isAnimationPlayer(n enginehost.Node) bool {
	return hasAllProps(n, "current_animation", "current_animation_position")
}

func isAnimatedSprite(n enginehost.Node) bool {
	return hasAllProps(n, "animation", "frame", "sprite_frames")
}

func isAnimationTree(n enginehost.Node) bool {
	return hasAllProps(n, "tree_root", "active")
}

func isVisibilityNotifier(n enginehost.Node) bool {
	return hasAllProps(n, "viewport_rect")
}

func isTimer(n enginehost.Node) bool {
	return hasAllProps(n, "time_left", "wait_time")
}

func isButton(n enginehost.Node) bool {
	return hasAllProps(n, "disabled", "button_pressed") || hasAllProps(n, "disabled", "text")
}

func isAudioPlayer(n enginehost.Node) bool {
	return hasAllProps(n, "stream", "volume_db")
}

func isRigidBody(n enginehost.Node) bool {
	return hasAllProps(n, "linear_velocity", "mass")
}

func isNavigationAgent(n enginehost.Node) bool {
	return hasAllProps(n, "target_position", "is_navigation_finished")
}
