package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"path/filepath"
	"testing"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/snapshot"
	"github.com/mj1618/uibridge/pkg/agent"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	expected := []string{
		"serve", "ping", "check", "tree", "find", "snapshot", "demo-agent", "metrics",
		"click", "focus", "set-value", "type", "wait", "screenshot",
	}
	commands := rootCmd.Commands()

	found := make(map[string]bool)
	for _, c := range commands {
		found[c.Name()] = true
	}

	for _, name := range expected {
		if !found[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	if rootCmd.Version == "" {
		t.Error("root command version should be set")
	}
}

func TestFlagBindings_FlagsExist(t *testing.T) {
	for key, name := range flagBindings {
		if rootCmd.PersistentFlags().Lookup(name) != nil {
			continue
		}
		if serveCmd.Flags().Lookup(name) != nil {
			continue
		}
		t.Errorf("binding %s -> --%s has no flag", key, name)
	}
}

func testTree(label string) *model.Tree {
	root := uint64(1)
	return model.NewTree([]model.Node{
		{ID: 1, Role: "window", Label: "Main", Children: []uint64{2}},
		{ID: 2, Role: "button", Label: label, Parent: &root, Enabled: model.Bool(true),
			Bounds: &model.Bounds{X: 10, Y: 10, Width: 80, Height: 24}},
	}, true)
}

func TestTreeFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	want := testTree("OK")
	if err := writeTreeFile(path, want); err != nil {
		t.Fatalf("writeTreeFile: %v", err)
	}
	got, err := readTreeFile(path)
	if err != nil {
		t.Fatalf("readTreeFile: %v", err)
	}
	if got.Len() != 2 || !got.StableIDs {
		t.Fatalf("got %d nodes stable=%v, want 2 stable", got.Len(), got.StableIDs)
	}
	n, ok := got.Get(2)
	if !ok || n.Label != "OK" || n.Parent == nil || *n.Parent != 1 {
		t.Errorf("got node %+v, want button OK under 1", n)
	}
	if changes := model.Diff(want, got); len(changes) != 0 {
		t.Errorf("round trip changed the tree: %+v", changes)
	}
}

func TestReadTreeFile_Missing(t *testing.T) {
	if _, err := readTreeFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSnapshotDiff_Files(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	if err := writeTreeFile(a, testTree("OK")); err != nil {
		t.Fatal(err)
	}
	if err := writeTreeFile(b, testTree("Done")); err != nil {
		t.Fatal(err)
	}
	defer func() {
		output.OutputFormat = output.FormatYAML
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	}()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"snapshot", "diff", a, b, "--format", "json", "--log-level", "error"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var res snapshot.Result
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if res.Summary.Modified != 1 || res.Summary.Added != 0 || res.Summary.Removed != 0 {
		t.Errorf("got summary %+v, want one modification", res.Summary)
	}
	if len(res.Changes) != 1 || res.Changes[0].Field != model.FieldLabel || res.Changes[0].New != "Done" {
		t.Errorf("got changes %+v, want label OK -> Done", res.Changes)
	}
	if !res.Summary.StableIDs || res.Summary.Warning != "" {
		t.Errorf("got stable=%v warning=%q, want stable ids without warning", res.Summary.StableIDs, res.Summary.Warning)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" button, ,textfield ")
	if len(got) != 2 || got[0] != "button" || got[1] != "textfield" {
		t.Errorf("got %q, want [button textfield]", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("got %q, want nil", got)
	}
}

func TestDemoHost_Apply(t *testing.T) {
	h := newDemoHost(200, 150)
	h.apply(agent.InputEvent{Kind: agent.InputClick, X: 30, Y: 30})
	h.apply(agent.InputEvent{Kind: agent.InputDoubleClick, X: 30, Y: 30})
	h.apply(agent.InputEvent{Kind: agent.InputClick, X: 190, Y: 140})
	if h.clicks != 2 {
		t.Errorf("got %d clicks, want 2", h.clicks)
	}
	for _, k := range []string{"h", "i", "!", "BackSpace"} {
		h.apply(agent.InputEvent{Kind: agent.InputKey, Key: k})
	}
	if h.text != "hi" {
		t.Errorf("got text %q, want %q", h.text, "hi")
	}
	h.apply(agent.InputEvent{Kind: agent.InputScroll, X: 5, Y: 5, DeltaY: 3})
	if h.scrollY != 3 || h.pointer != image.Pt(5, 5) {
		t.Errorf("got scroll %v pointer %v, want 3 at (5,5)", h.scrollY, h.pointer)
	}
}

func TestDemoHost_Render(t *testing.T) {
	h := newDemoHost(200, 150)
	img := h.render()
	if img.Bounds() != image.Rect(0, 0, 200, 150) {
		t.Fatalf("got bounds %v, want 200x150", img.Bounds())
	}
	if got := img.RGBAAt(190, 140); got != demoBackground {
		t.Errorf("got background %v, want %v", got, demoBackground)
	}
	if got := img.RGBAAt(150, 55); got != demoButton {
		t.Errorf("got button fill %v, want %v", got, demoButton)
	}
}
