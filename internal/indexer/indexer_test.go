package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/platform/fake"
)

func shown() platform.StateSet {
	return platform.StateSet{Visible: true, Showing: true, Enabled: true}
}

// sampleSource builds:
//
//	app
//	├── ok     (push button "OK")
//	├── cancel (push button "Cancel")
//	└── panel
//	    └── name (text "Name")
func sampleSource(stable bool) *fake.Source {
	src := fake.New("app", stable)
	src.Put("app", &fake.Element{Role: "application", Name: "demo", States: shown(),
		Children: []platform.Handle{"ok", "cancel", "panel"}})
	src.Put("ok", &fake.Element{Role: "push button", Name: "OK", States: shown(),
		Bounds: &model.Bounds{X: 10, Y: 10, Width: 80, Height: 30}})
	src.Put("cancel", &fake.Element{Role: "push button", Name: "Cancel", States: shown()})
	src.Put("panel", &fake.Element{Role: "panel", States: shown(), Children: []platform.Handle{"name"}})
	src.Put("name", &fake.Element{Role: "text", Name: "Name", States: shown()})
	return src
}

func handles(t *model.Tree) []string {
	out := make([]string, 0, t.Len())
	for _, n := range t.Nodes {
		out = append(out, n.Handle)
	}
	return out
}

func TestBuild_TraversalIDs(t *testing.T) {
	ix := New(sampleSource(false), Options{})
	tree, err := ix.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, tree.Validate())

	assert.False(t, tree.StableIDs)
	assert.Equal(t, uint64(0), tree.Root)
	assert.Equal(t, []string{"app", "ok", "cancel", "panel", "name"}, handles(tree))
	for i, n := range tree.Nodes {
		assert.Equal(t, uint64(i), n.ID)
	}

	root, _ := tree.Get(0)
	assert.Nil(t, root.Parent)
	assert.Equal(t, []uint64{1, 2, 3}, root.Children)

	ok, _ := tree.Get(1)
	assert.Equal(t, "button", ok.Role)
	assert.Equal(t, "OK", ok.Label)
	assert.True(t, model.IsTrue(ok.Visible))
	assert.Nil(t, ok.Checked)
	require.NotNil(t, ok.Bounds)
	assert.Equal(t, 80.0, ok.Bounds.Width)

	name, _ := tree.Get(4)
	require.NotNil(t, name.Parent)
	assert.Equal(t, uint64(3), *name.Parent)
}

func TestBuild_StableIDsSurviveReordering(t *testing.T) {
	src := sampleSource(true)
	ix := New(src, Options{})
	before, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.True(t, before.StableIDs)

	idOf := func(tree *model.Tree, h string) uint64 {
		for _, n := range tree.Nodes {
			if n.Handle == h {
				return n.ID
			}
		}
		t.Fatalf("handle %s not in tree", h)
		return 0
	}

	// Reorder root children and move "cancel" under the panel.
	src.Update("app", func(el *fake.Element) {
		el.Children = []platform.Handle{"panel", "ok"}
	})
	src.Update("panel", func(el *fake.Element) {
		el.Children = []platform.Handle{"cancel", "name"}
	})

	after, err := ix.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, after.Validate())

	for _, h := range []string{"app", "ok", "cancel", "panel", "name"} {
		assert.Equal(t, idOf(before, h), idOf(after, h), "id of %s", h)
	}
	cancel, _ := after.Get(idOf(after, "cancel"))
	assert.Equal(t, idOf(after, "panel"), *cancel.Parent)
	assert.Equal(t, xxhash.Sum64String("ok")&MaxStableID, idOf(after, "ok"))
}

func TestStableID_Collision(t *testing.T) {
	h := platform.Handle("x")
	first := hashID("x")
	used := map[uint64]bool{first: true}

	id := stableID(h, used)
	assert.NotEqual(t, first, id)
	assert.NotZero(t, id)
	assert.LessOrEqual(t, id, uint64(MaxStableID))
	assert.Equal(t, id, stableID(h, used), "rehash must be deterministic")
}

func TestBuild_StableIDsFitFloat64(t *testing.T) {
	tree, err := New(sampleSource(true), Options{}).Build(context.Background())
	require.NoError(t, err)
	for _, n := range tree.Nodes {
		assert.LessOrEqual(t, n.ID, uint64(MaxStableID), "id of %s", n.Handle)
		assert.Equal(t, n.ID, uint64(float64(n.ID)), "id of %s after a float64 round trip", n.Handle)
	}
}

func TestRefresh_PublishesTree(t *testing.T) {
	src := sampleSource(true)
	ix := New(src, Options{CacheTTL: time.Hour})
	_, err := ix.Current(context.Background())
	require.NoError(t, err)

	src.Put("save", &fake.Element{Role: "push button", Name: "Save", States: shown()})
	src.Update("panel", func(el *fake.Element) {
		el.Children = append(el.Children, "save")
	})
	tree, err := ix.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, tree, ix.Latest())

	found := model.FindByLabelExact(tree, "Save")
	require.Len(t, found, 1)
	h, _, err := ix.Resolve(context.Background(), found[0].ID)
	require.NoError(t, err)
	assert.Equal(t, platform.Handle("save"), h)
}

func TestResolve_StableMissRebuilds(t *testing.T) {
	src := sampleSource(true)
	ix := New(src, Options{CacheTTL: time.Hour})
	_, err := ix.Current(context.Background())
	require.NoError(t, err)

	src.Put("save", &fake.Element{Role: "push button", Name: "Save", States: shown()})
	src.Update("app", func(el *fake.Element) {
		el.Children = append(el.Children, "save")
	})
	h, n, err := ix.Resolve(context.Background(), hashID("save"))
	require.NoError(t, err)
	assert.Equal(t, platform.Handle("save"), h)
	assert.Equal(t, "Save", n.Label)

	_, _, err = ix.Resolve(context.Background(), 12345)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestResolve_TraversalMissDoesNotRebuild(t *testing.T) {
	src := sampleSource(false)
	ix := New(src, Options{CacheTTL: time.Hour})
	before, err := ix.Current(context.Background())
	require.NoError(t, err)

	_, _, err = ix.Resolve(context.Background(), uint64(before.Len()))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Same(t, before, ix.Latest())
}

func TestBuild_VanishedElementDropsSubtree(t *testing.T) {
	src := sampleSource(false)
	src.FailElement("panel", platform.ErrElementGone)

	tree, err := New(src, Options{}).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, tree.Validate())
	assert.Equal(t, []string{"app", "ok", "cancel"}, handles(tree))
	root, _ := tree.Get(tree.Root)
	assert.Len(t, root.Children, 2)
}

func TestBuild_ChildrenFailureKeepsLeaf(t *testing.T) {
	src := sampleSource(false)
	src.FailChildren("panel", errors.New("timeout"))

	tree, err := New(src, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "ok", "cancel", "panel"}, handles(tree))
	panel, _ := tree.Get(3)
	assert.Empty(t, panel.Children)
}

func TestBuild_RootFailure(t *testing.T) {
	src := sampleSource(false)
	src.FailElement("app", errors.New("bus closed"))
	_, err := New(src, Options{}).Build(context.Background())
	assert.ErrorIs(t, err, errs.ErrTargetUnavailable)

	_, err = New(fake.New("missing", false), Options{}).Build(context.Background())
	assert.ErrorIs(t, err, errs.ErrTargetUnavailable)
}

func TestBuild_CycleGuard(t *testing.T) {
	src := sampleSource(false)
	src.Update("name", func(el *fake.Element) {
		el.Children = []platform.Handle{"app", "panel"}
	})
	tree, err := New(src, Options{}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, tree.Len())
	require.NoError(t, tree.Validate())
}

func TestBuild_MaxNodesTruncates(t *testing.T) {
	tree, err := New(sampleSource(false), Options{MaxNodes: 3}).Build(context.Background())
	require.NoError(t, err)
	assert.True(t, tree.Truncated)
	assert.Equal(t, 3, tree.Len())
	require.NoError(t, tree.Validate())
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(sampleSource(false), Options{}).Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCurrent_CachesUntilInvalidated(t *testing.T) {
	src := sampleSource(false)
	ix := New(src, Options{CacheTTL: time.Hour})
	ctx := context.Background()

	first, err := ix.Current(ctx)
	require.NoError(t, err)
	calls := src.Calls

	second, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, calls, src.Calls)

	ix.Invalidate()
	assert.Same(t, first, ix.Latest(), "invalidate keeps the last tree for resolution")
	third, err := ix.Current(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Greater(t, src.Calls, calls)
}

func TestCurrent_ExpiresAfterTTL(t *testing.T) {
	ix := New(sampleSource(false), Options{CacheTTL: time.Minute})
	now := time.Now()
	ix.cache.now = func() time.Time { return now }

	first, err := ix.Current(context.Background())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	second, err := ix.Current(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestCurrent_DisabledCache(t *testing.T) {
	ix := New(sampleSource(false), Options{CacheTTL: -1})
	a, err := ix.Current(context.Background())
	require.NoError(t, err)
	b, err := ix.Current(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestResolve(t *testing.T) {
	ix := New(sampleSource(false), Options{})
	ctx := context.Background()

	h, n, err := ix.Resolve(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, platform.Handle("ok"), h)
	assert.Equal(t, "OK", n.Label)

	_, _, err = ix.Resolve(ctx, 999)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestQueries(t *testing.T) {
	ix := New(sampleSource(false), Options{})
	ctx := context.Background()

	got, err := ix.FindByLabel(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 2) // "Cancel" and "Name"

	got, err = ix.FindByLabelExact(ctx, "OK")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)

	got, err = ix.FindByRole(ctx, "BUTTON")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ix.Get(ctx, 42)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	n, err := ix.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "textfield", n.Role)
}

func TestToNode_CheckedTriState(t *testing.T) {
	n := NodeFromInfo(1, "h", platform.ElementInfo{Role: "check box", States: platform.StateSet{Checkable: true}})
	require.NotNil(t, n.Checked)
	assert.False(t, *n.Checked)

	n = NodeFromInfo(1, "h", platform.ElementInfo{Role: "push button"})
	assert.Nil(t, n.Checked)
	assert.False(t, model.IsTrue(n.Visible))
}
