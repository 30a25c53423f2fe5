package editorsync

// SnapshotFromBridge converts a runtime bridge GET /snapshot response body
// (decoded as a generic JSON map, since editorsync has no reason to import
// the bridge's snapshot package across the MCP-server/runtime-bridge
// process boundary) into the Snapshot DTO shape the Godot plugin otherwise
// pushes via sync-editor-runtime. The bridge reports a flat root-level
// NodeRecord tree; this flattens it into root_summary + scene_tree +
// node_details the same way the plugin's own payload is shaped.
func SnapshotFromBridge(body map[string]any) Snapshot {
	nodes, _ := body["nodes"].([]any)
	if len(nodes) == 0 {
		return Snapshot{NodeDetails: map[string]NodeDetail{}}
	}

	root, _ := nodes[0].(map[string]any)
	details := map[string]NodeDetail{}
	tree := compactNodeFromRecord(root, details)

	sceneFile, _ := body["scene_file"].(string)
	summary := RootSummary{
		ProjectPath: sceneFile,
		ActiveScene: stringField(body, "scene_name"),
		RootPath:    tree.Path,
		RootName:    tree.Name,
		RootType:    tree.Type,
		ChildCount:  tree.ChildCount,
	}

	return Snapshot{
		RootSummary: summary,
		SceneTree:   tree,
		NodeDetails: details,
	}
}

func compactNodeFromRecord(rec map[string]any, details map[string]NodeDetail) CompactNode {
	if rec == nil {
		return CompactNode{}
	}

	path := stringField(rec, "path")
	name := stringField(rec, "name")
	class := stringField(rec, "class")

	childrenRaw, _ := rec["children"].([]any)
	children := make([]CompactNode, 0, len(childrenRaw))
	for _, childRaw := range childrenRaw {
		child, ok := childRaw.(map[string]any)
		if !ok {
			continue
		}
		children = append(children, compactNodeFromRecord(child, details))
	}

	node := CompactNode{
		Path:       path,
		Name:       name,
		Type:       class,
		ChildCount: len(children),
		Children:   children,
	}

	details[path] = NodeDetail{
		Path:       path,
		Name:       name,
		Type:       class,
		Groups:     stringSliceField(rec, "groups"),
		ChildCount: len(children),
	}

	return node
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func stringSliceField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
