package model

// FlatNode is a node with a path breadcrumb of ancestor roles.
type FlatNode struct {
	Node `yaml:",inline"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Flatten returns every node in depth-first order with its path, built from
// role names joined with " > ".
func Flatten(t *Tree) []FlatNode {
	if t.Len() == 0 {
		return nil
	}
	var result []FlatNode
	flattenRecursive(t, t.Root, "", &result, make(map[uint64]bool))
	return result
}

// PathOf returns the breadcrumb for id, or "" when id is absent.
func PathOf(t *Tree, id uint64) string {
	n, ok := t.Get(id)
	if !ok {
		return ""
	}
	path := n.Role
	for n.Parent != nil {
		p, ok := t.Get(*n.Parent)
		if !ok {
			break
		}
		path = p.Role + " > " + path
		n = p
	}
	return path
}

// Annotate attaches paths to nodes taken from t.
func Annotate(t *Tree, nodes []Node) []FlatNode {
	out := make([]FlatNode, len(nodes))
	for i, n := range nodes {
		out[i] = FlatNode{Node: n, Path: PathOf(t, n.ID)}
	}
	return out
}

func flattenRecursive(t *Tree, id uint64, parentPath string, result *[]FlatNode, seen map[uint64]bool) {
	if seen[id] {
		return
	}
	seen[id] = true
	n, ok := t.Get(id)
	if !ok {
		return
	}
	currentPath := n.Role
	if parentPath != "" {
		currentPath = parentPath + " > " + n.Role
	}
	*result = append(*result, FlatNode{Node: n, Path: currentPath})
	for _, c := range n.Children {
		flattenRecursive(t, c, currentPath, result, seen)
	}
}
