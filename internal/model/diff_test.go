package model

import "testing"

func TestDiff_IdenticalIsEmpty(t *testing.T) {
	tree := sampleTree()
	if changes := Diff(tree, tree); len(changes) != 0 {
		t.Errorf("expected no changes, got %+v", changes)
	}
	if changes := Diff(sampleTree(), sampleTree()); len(changes) != 0 {
		t.Errorf("expected no changes across equal builds, got %+v", changes)
	}
}

func TestDiff_LabelChange(t *testing.T) {
	before := NewTree([]Node{
		{ID: 0, Role: "window", Children: []uint64{1}},
		{ID: 1, Role: "button", Label: "Go", Parent: u64(0)},
	}, false)
	after := NewTree([]Node{
		{ID: 0, Role: "window", Children: []uint64{1}},
		{ID: 1, Role: "button", Label: "Go!", Parent: u64(0)},
	}, false)

	changes := Diff(before, after)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d: %+v", len(changes), changes)
	}
	want := Change{Type: ChangeModified, ID: 1, Field: FieldLabel, Old: "Go", New: "Go!"}
	if changes[0] != want {
		t.Errorf("got %+v, want %+v", changes[0], want)
	}
}

func TestDiff_AddedRemovedModified(t *testing.T) {
	a := sampleTree()
	b := a.Clone()
	// Remove node 2, add node 5, move and disable node 3.
	b.Nodes[0].Children = []uint64{1}
	b.Nodes = append(b.Nodes[:2], b.Nodes[3:]...)
	b.Nodes[2].Bounds = &Bounds{20, 10, 80, 30}
	b.Nodes[2].Enabled = Bool(false)
	b.Nodes[1].Children = append(b.Nodes[1].Children, 5)
	b.Nodes = append(b.Nodes, Node{ID: 5, Role: "checkbox", Label: "Remember", Parent: u64(1), Checked: Bool(false)})
	b = NewTree(b.Nodes, false)

	changes := Diff(a, b)
	added, removed, modified := DiffCounts(changes)
	if added != 1 || removed != 1 || modified != 2 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/2: %+v", added, removed, modified, changes)
	}
	if changes[0].Type != ChangeRemoved || changes[0].ID != 2 || changes[0].Node.Label != "Status: ready" {
		t.Errorf("first change = %+v, want removed 2", changes[0])
	}
	if changes[1].Type != ChangeAdded || changes[1].ID != 5 {
		t.Errorf("second change = %+v, want added 5", changes[1])
	}

	fields := map[string]Change{}
	for _, c := range changes[2:] {
		fields[c.Field] = c
	}
	if c := fields[FieldBounds]; c.Old != "10,10,80,30" || c.New != "20,10,80,30" {
		t.Errorf("bounds change = %+v", c)
	}
	if c := fields[FieldEnabled]; c.Old != "true" || c.New != "false" {
		t.Errorf("enabled change = %+v", c)
	}
	if c, ok := fields["children"]; ok {
		t.Errorf("children are structural, not a field: %+v", c)
	}
}

func TestDiff_Symmetric(t *testing.T) {
	a := sampleTree()
	c := a.Clone()
	c.Nodes[0].Children = []uint64{1}
	c.Nodes[3].Label = "Stop"
	c.Nodes[4].Focused = Bool(true)
	// Drop node 2.
	b := NewTree([]Node{c.Nodes[0], c.Nodes[1], c.Nodes[3], c.Nodes[4]}, false)

	forward := Diff(a, b)
	backward := Diff(b, a)

	fa, fr, fm := DiffCounts(forward)
	ba, br, bm := DiffCounts(backward)
	if fa != br || fr != ba || fm != bm {
		t.Fatalf("counts not swapped: forward %d/%d/%d backward %d/%d/%d", fa, fr, fm, ba, br, bm)
	}

	type key struct {
		id    uint64
		field string
	}
	fwd := map[key]Change{}
	for _, c := range forward {
		if c.Type == ChangeModified {
			fwd[key{c.ID, c.Field}] = c
		}
	}
	for _, c := range backward {
		if c.Type != ChangeModified {
			continue
		}
		f, ok := fwd[key{c.ID, c.Field}]
		if !ok {
			t.Errorf("backward modified %+v has no forward twin", c)
			continue
		}
		if f.Old != c.New || f.New != c.Old {
			t.Errorf("old/new not swapped: %+v vs %+v", f, c)
		}
	}
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	a := sampleTree()
	b := a.Clone()
	b.Nodes[3].Label = "Changed"
	_ = Diff(a, b)
	if n, _ := a.Get(3); n.Label != "Go" {
		t.Errorf("a mutated: %q", n.Label)
	}
	if n, _ := b.Get(3); n.Label != "Changed" {
		t.Errorf("b mutated: %q", n.Label)
	}
}

func TestDiff_TriStateRendering(t *testing.T) {
	a := NewTree([]Node{{ID: 0, Role: "checkbox"}}, true)
	b := NewTree([]Node{{ID: 0, Role: "checkbox", Checked: Bool(true)}}, true)
	changes := Diff(a, b)
	if len(changes) != 1 || changes[0].Field != FieldChecked || changes[0].Old != "" || changes[0].New != "true" {
		t.Errorf("got %+v", changes)
	}
}

func TestDiffByContent_TolerantOfShiftedIDs(t *testing.T) {
	a := NewTree([]Node{
		{ID: 0, Role: "window", Children: []uint64{1, 2}},
		{ID: 1, Role: "button", Label: "OK", Parent: u64(0), Bounds: &Bounds{0, 0, 10, 10}},
		{ID: 2, Role: "button", Label: "Cancel", Parent: u64(0)},
	}, false)
	// A new first child shifts every traversal id.
	b := NewTree([]Node{
		{ID: 0, Role: "window", Children: []uint64{1, 2, 3}},
		{ID: 1, Role: "text", Label: "Saved", Parent: u64(0)},
		{ID: 2, Role: "button", Label: "OK", Parent: u64(0), Bounds: &Bounds{0, 20, 10, 10}},
		{ID: 3, Role: "button", Label: "Cancel", Parent: u64(0)},
	}, false)

	byID := Diff(a, b)
	if _, _, m := DiffCounts(byID); m < 2 {
		t.Errorf("id diff should over-report on shifted ids, got %+v", byID)
	}

	changes := DiffByContent(a, b)
	added, removed, modified := DiffCounts(changes)
	if added != 1 || removed != 0 || modified != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/0/1: %+v", added, removed, modified, changes)
	}
	if changes[0].Node.Label != "Saved" {
		t.Errorf("added = %+v", changes[0])
	}
	if changes[1].Field != FieldBounds || changes[1].ID != 2 {
		t.Errorf("modified = %+v", changes[1])
	}
}

func TestDiffByContent_Removed(t *testing.T) {
	a := sampleTree()
	b := NewTree([]Node{{ID: 0, Role: "window", Label: "Demo", Bounds: &Bounds{0, 0, 800, 600}, Visible: Bool(true)}}, false)
	_, removed, _ := DiffCounts(DiffByContent(a, b))
	if removed != 4 {
		t.Errorf("removed = %d, want 4", removed)
	}
}
