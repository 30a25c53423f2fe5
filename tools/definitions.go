package tools

import (
	"github.com/Godeaux/Godot-AI-Bridge/tools/node"
	"github.com/Godeaux/Godot-AI-Bridge/tools/project"
	"github.com/Godeaux/Godot-AI-Bridge/tools/scene"
	"github.com/Godeaux/Godot-AI-Bridge/tools/script"
	"github.com/Godeaux/Godot-AI-Bridge/tools/types"
	"github.com/Godeaux/Godot-AI-Bridge/tools/utility"
)

// GetAllTools returns all available tools from all categories
func GetAllTools() []types.Tool {
	var all []types.Tool
	all = append(all, node.GetAllTools()...)
	all = append(all, script.GetAllTools()...)
	all = append(all, scene.GetAllTools()...)
	all = append(all, project.GetAllTools()...)
	all = append(all, utility.GetAllTools()...)
	return all
}
