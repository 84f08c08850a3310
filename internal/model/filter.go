package model

import "strings"

// FindByLabel returns nodes whose label contains sub (case-sensitive), in
// tree order.
func FindByLabel(t *Tree, sub string) []Node {
	return collect(t, func(n Node) bool {
		return n.Label != "" && strings.Contains(n.Label, sub)
	})
}

// FindByLabelExact returns nodes whose label equals label.
func FindByLabelExact(t *Tree, label string) []Node {
	return collect(t, func(n Node) bool {
		return n.Label == label
	})
}

// FindByRole returns nodes whose role matches role, case-insensitively.
// Meta-roles such as "interactive" expand to their concrete roles.
func FindByRole(t *Tree, role string) []Node {
	roleSet := make(map[string]bool)
	for _, r := range ExpandRoles([]string{role}) {
		roleSet[r] = true
		roleSet[MapRole(r)] = true
	}
	delete(roleSet, "other")
	if strings.EqualFold(strings.TrimSpace(role), "other") {
		roleSet["other"] = true
	}
	return collect(t, func(n Node) bool {
		return roleSet[strings.ToLower(n.Role)]
	})
}

// FilterNodes narrows nodes to the given roles and, when bbox is non-nil,
// to nodes whose bounds intersect it. visibleOnly drops nodes not known to
// be visible.
func FilterNodes(nodes []Node, roles []string, bbox *Bounds, visibleOnly bool) []Node {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range ExpandRoles(roles) {
		roleSet[r] = true
	}
	var out []Node
	for _, n := range nodes {
		if len(roleSet) > 0 && !roleSet[strings.ToLower(n.Role)] {
			continue
		}
		if bbox != nil && (n.Bounds == nil || !n.Bounds.Intersects(*bbox)) {
			continue
		}
		if visibleOnly && !IsTrue(n.Visible) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func collect(t *Tree, match func(Node) bool) []Node {
	if t == nil {
		return nil
	}
	var out []Node
	for _, n := range t.Nodes {
		if match(n) {
			out = append(out, n)
		}
	}
	return out
}
