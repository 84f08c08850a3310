package model

import "testing"

func ids(nodes []Node) []uint64 {
	out := make([]uint64, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFindByLabel(t *testing.T) {
	tree := sampleTree()
	tests := []struct {
		sub  string
		want []uint64
	}{
		{"Go", []uint64{3}},
		{"ready", []uint64{2}},
		{"e", []uint64{0, 2, 4}},
		{"go", nil}, // case-sensitive
	}
	for _, tt := range tests {
		got := ids(FindByLabel(tree, tt.sub))
		if !equalIDs(got, tt.want) {
			t.Errorf("FindByLabel(%q) = %v, want %v", tt.sub, got, tt.want)
		}
	}
}

func TestFindByLabelExact(t *testing.T) {
	tree := sampleTree()
	if got := ids(FindByLabelExact(tree, "Go")); !equalIDs(got, []uint64{3}) {
		t.Errorf("exact Go = %v", got)
	}
	if got := FindByLabelExact(tree, "Status"); len(got) != 0 {
		t.Errorf("exact Status should not match substring, got %v", ids(got))
	}
}

func TestFindByRole(t *testing.T) {
	tree := sampleTree()
	tests := []struct {
		role string
		want []uint64
	}{
		{"button", []uint64{3}},
		{"BUTTON", []uint64{3}},
		{"push button", []uint64{3}},
		{"interactive", []uint64{3, 4}},
		{"slider", nil},
	}
	for _, tt := range tests {
		got := ids(FindByRole(tree, tt.role))
		if !equalIDs(got, tt.want) {
			t.Errorf("FindByRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestFindIsIdempotent(t *testing.T) {
	a, b := sampleTree(), sampleTree()
	if !equalIDs(ids(FindByRole(a, "button")), ids(FindByRole(b, "button"))) {
		t.Error("find_by_role differs across identical builds")
	}
	na, _ := a.Get(3)
	nb, _ := b.Get(3)
	if na.Label != nb.Label || *na.Bounds != *nb.Bounds {
		t.Error("get differs across identical builds")
	}
}

func TestFilterNodes(t *testing.T) {
	tree := sampleTree()
	got := FilterNodes(tree.Nodes, []string{"button", "textfield"}, nil, false)
	if !equalIDs(ids(got), []uint64{3, 4}) {
		t.Errorf("role filter = %v", ids(got))
	}
	got = FilterNodes(tree.Nodes, nil, &Bounds{X: 0, Y: 570, Width: 50, Height: 50}, false)
	if !equalIDs(ids(got), []uint64{0, 2}) {
		t.Errorf("bbox filter = %v", ids(got))
	}
	got = FilterNodes(tree.Nodes, nil, nil, true)
	if !equalIDs(ids(got), []uint64{0, 3}) {
		t.Errorf("visible filter = %v", ids(got))
	}
}

func TestMapRole(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"push button", "button"},
		{"Push Button", "button"},
		{"check box", "checkbox"},
		{"entry", "textfield"},
		{"label", "text"},
		{"combo box", "combobox"},
		{"frame", "window"},
		{"page tab", "tab"},
		{"button", "button"},
		{"something new", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := MapRole(tt.input); got != tt.want {
				t.Errorf("MapRole(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandRoles(t *testing.T) {
	got := ExpandRoles([]string{"input", "textfield", "Button"})
	want := []string{"textfield", "spinbutton", "slider", "combobox", "button"}
	if len(got) != len(want) {
		t.Fatalf("ExpandRoles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ExpandRoles[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
