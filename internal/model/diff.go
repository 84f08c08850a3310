package model

import "strconv"

// ChangeType represents the kind of tree change detected.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// Field names reported in modified entries, in comparison order.
const (
	FieldRole        = "role"
	FieldLabel       = "label"
	FieldDescription = "description"
	FieldBounds      = "bounds"
	FieldVisible     = "visible"
	FieldEnabled     = "enabled"
	FieldFocused     = "focused"
	FieldChecked     = "checked"
)

// Change is one entry of a tree diff. Added and removed entries carry the
// node; modified entries carry one field with its old and new rendering.
type Change struct {
	Type  ChangeType `yaml:"type"            json:"type"`
	ID    uint64     `yaml:"id"              json:"id"`
	Node  *Node      `yaml:"node,omitempty"  json:"node,omitempty"`
	Field string     `yaml:"field,omitempty" json:"field,omitempty"`
	Old   string     `yaml:"old"             json:"old"`
	New   string     `yaml:"new"             json:"new"`
}

// Diff compares two trees matching nodes by id. The result lists removed
// nodes in a's order, then added nodes in b's order, then one modified entry
// per differing field in b's order. Neither tree is modified.
func Diff(a, b *Tree) []Change {
	var changes []Change
	if a != nil {
		for _, n := range a.Nodes {
			if _, ok := b.Get(n.ID); !ok {
				nc := n.Clone()
				changes = append(changes, Change{Type: ChangeRemoved, ID: n.ID, Node: &nc})
			}
		}
	}
	if b == nil {
		return changes
	}
	for _, n := range b.Nodes {
		if _, ok := a.Get(n.ID); !ok {
			nc := n.Clone()
			changes = append(changes, Change{Type: ChangeAdded, ID: n.ID, Node: &nc})
		}
	}
	for _, n := range b.Nodes {
		prev, ok := a.Get(n.ID)
		if !ok {
			continue
		}
		changes = append(changes, diffFields(prev, n, true)...)
	}
	return changes
}

// diffFields compares the observable fields of two nodes. withIdentity
// includes the fields a content match already guarantees equal.
func diffFields(prev, curr Node, withIdentity bool) []Change {
	var out []Change
	add := func(field, old, new string) {
		if old != new {
			out = append(out, Change{Type: ChangeModified, ID: curr.ID, Field: field, Old: old, New: new})
		}
	}
	if withIdentity {
		add(FieldRole, prev.Role, curr.Role)
		add(FieldLabel, prev.Label, curr.Label)
		add(FieldDescription, prev.Description, curr.Description)
	}
	add(FieldBounds, boundsString(prev.Bounds), boundsString(curr.Bounds))
	add(FieldVisible, triString(prev.Visible), triString(curr.Visible))
	add(FieldEnabled, triString(prev.Enabled), triString(curr.Enabled))
	add(FieldFocused, triString(prev.Focused), triString(curr.Focused))
	add(FieldChecked, triString(prev.Checked), triString(curr.Checked))
	return out
}

// DiffCounts tallies a change list.
func DiffCounts(changes []Change) (added, removed, modified int) {
	for _, c := range changes {
		switch c.Type {
		case ChangeAdded:
			added++
		case ChangeRemoved:
			removed++
		case ChangeModified:
			modified++
		}
	}
	return added, removed, modified
}

func boundsString(b *Bounds) string {
	if b == nil {
		return ""
	}
	return b.String()
}

func triString(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
