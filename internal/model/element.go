package model

import (
	"fmt"
	"strconv"
	"time"
)

// Bounds is a rectangle in the target application's screen coordinates.
type Bounds struct {
	X      float64 `yaml:"x"      json:"x"`
	Y      float64 `yaml:"y"      json:"y"`
	Width  float64 `yaml:"width"  json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Center returns the midpoint of b.
func (b Bounds) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Empty reports whether b has no area.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Intersects reports whether a and b overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X < o.X+o.Width && b.X+b.Width > o.X &&
		b.Y < o.Y+o.Height && b.Y+b.Height > o.Y
}

func (b Bounds) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", fmtFloat(b.X), fmtFloat(b.Y), fmtFloat(b.Width), fmtFloat(b.Height))
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Node is one UI element of a built tree. The id is only meaningful against
// the tree it came from unless the tree reports StableIDs.
type Node struct {
	ID          uint64   `yaml:"id"                    json:"id"`
	Role        string   `yaml:"role"                  json:"role"`
	Label       string   `yaml:"label,omitempty"       json:"label,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Bounds      *Bounds  `yaml:"bounds,omitempty"      json:"bounds,omitempty"`
	Visible     *bool    `yaml:"visible,omitempty"     json:"visible,omitempty"`
	Enabled     *bool    `yaml:"enabled,omitempty"     json:"enabled,omitempty"`
	Focused     *bool    `yaml:"focused,omitempty"     json:"focused,omitempty"`
	Checked     *bool    `yaml:"checked,omitempty"     json:"checked,omitempty"` // nil = not checkable
	Parent      *uint64  `yaml:"parent,omitempty"      json:"parent,omitempty"`
	Children    []uint64 `yaml:"children,omitempty"    json:"children,omitempty"`
	Handle      string   `yaml:"-"                     json:"-"` // accessibility source reference
}

// Bool returns a pointer to b, for tri-state fields.
func Bool(b bool) *bool { return &b }

// IsTrue reports whether a tri-state flag is set.
func IsTrue(b *bool) bool { return b != nil && *b }

// Clone deep-copies n.
func (n Node) Clone() Node {
	c := n
	if n.Bounds != nil {
		b := *n.Bounds
		c.Bounds = &b
	}
	c.Visible = cloneBool(n.Visible)
	c.Enabled = cloneBool(n.Enabled)
	c.Focused = cloneBool(n.Focused)
	c.Checked = cloneBool(n.Checked)
	if n.Parent != nil {
		p := *n.Parent
		c.Parent = &p
	}
	if n.Children != nil {
		c.Children = append([]uint64(nil), n.Children...)
	}
	return c
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// Tree is an immutable build of the target application's element tree.
// Nodes are stored in traversal order with the root first.
type Tree struct {
	Root      uint64    `yaml:"root"                json:"root"`
	Nodes     []Node    `yaml:"nodes"               json:"nodes"`
	StableIDs bool      `yaml:"stable_ids"          json:"stable_ids"`
	Truncated bool      `yaml:"truncated,omitempty" json:"truncated,omitempty"`
	BuiltAt   time.Time `yaml:"built_at"            json:"built_at"`

	index map[uint64]int
}

// NewTree indexes nodes. The first node is the root.
func NewTree(nodes []Node, stableIDs bool) *Tree {
	t := &Tree{Nodes: nodes, StableIDs: stableIDs, BuiltAt: time.Now()}
	if len(nodes) > 0 {
		t.Root = nodes[0].ID
	}
	t.reindex()
	return t
}

func (t *Tree) reindex() {
	t.index = make(map[uint64]int, len(t.Nodes))
	for i, n := range t.Nodes {
		t.index[n.ID] = i
	}
}

// Len returns the node count.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// Get returns the node with the given id.
func (t *Tree) Get(id uint64) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	if t.index != nil {
		i, ok := t.index[id]
		if !ok {
			return Node{}, false
		}
		return t.Nodes[i], true
	}
	for _, n := range t.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Children returns the child nodes of id in order.
func (t *Tree) Children(id uint64) []Node {
	n, ok := t.Get(id)
	if !ok {
		return nil
	}
	out := make([]Node, 0, len(n.Children))
	for _, c := range n.Children {
		if cn, ok := t.Get(c); ok {
			out = append(out, cn)
		}
	}
	return out
}

// Clone deep-copies the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{
		Root:      t.Root,
		Nodes:     make([]Node, len(t.Nodes)),
		StableIDs: t.StableIDs,
		Truncated: t.Truncated,
		BuiltAt:   t.BuiltAt,
	}
	for i, n := range t.Nodes {
		c.Nodes[i] = n.Clone()
	}
	c.reindex()
	return c
}

// Validate checks the structural invariants: unique ids, a parentless root,
// and every other node listed exactly once as a child of its parent.
func (t *Tree) Validate() error {
	if t.Len() == 0 {
		return nil
	}
	seen := make(map[uint64]bool, len(t.Nodes))
	for _, n := range t.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
	childOf := make(map[uint64]uint64, len(t.Nodes))
	for _, n := range t.Nodes {
		for _, c := range n.Children {
			if p, dup := childOf[c]; dup {
				return fmt.Errorf("node %d is a child of both %d and %d", c, p, n.ID)
			}
			if !seen[c] {
				return fmt.Errorf("node %d lists unknown child %d", n.ID, c)
			}
			childOf[c] = n.ID
		}
	}
	for _, n := range t.Nodes {
		if n.ID == t.Root {
			if n.Parent != nil {
				return fmt.Errorf("root %d has a parent", n.ID)
			}
			if _, ok := childOf[n.ID]; ok {
				return fmt.Errorf("root %d is listed as a child", n.ID)
			}
			continue
		}
		p, ok := childOf[n.ID]
		if !ok {
			return fmt.Errorf("node %d is not a child of any node", n.ID)
		}
		if n.Parent == nil || *n.Parent != p {
			return fmt.Errorf("node %d parent does not match child list of %d", n.ID, p)
		}
	}
	return nil
}
