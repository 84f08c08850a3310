package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/indexer"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/platform/fake"
)

func tree(stable bool, labels ...string) *model.Tree {
	root := model.Node{ID: 0, Role: "frame", Label: "App"}
	nodes := []model.Node{root}
	for i, l := range labels {
		id := uint64(i + 1)
		p := uint64(0)
		nodes[0].Children = append(nodes[0].Children, id)
		nodes = append(nodes, model.Node{ID: id, Role: "button", Label: l, Parent: &p})
	}
	return model.NewTree(nodes, stable)
}

func TestSaveLoadIsDeepCopy(t *testing.T) {
	s := NewStore()
	orig := tree(true, "Go")
	inf, err := s.Save("before", orig)
	require.NoError(t, err)
	assert.Equal(t, 2, inf.Nodes)

	orig.Nodes[1].Label = "mutated"
	snap, err := s.Load("before")
	require.NoError(t, err)
	assert.Equal(t, "Go", snap.Tree.Nodes[1].Label)

	snap.Tree.Nodes[1].Label = "also mutated"
	again, err := s.Load("before")
	require.NoError(t, err)
	assert.Equal(t, "Go", again.Tree.Nodes[1].Label)
}

func TestSaveOverwrites(t *testing.T) {
	s := NewStore()
	_, err := s.Save("x", tree(true, "a"))
	require.NoError(t, err)
	_, err = s.Save("x", tree(true, "a", "b"))
	require.NoError(t, err)
	snap, err := s.Load("x")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Tree.Len())
	assert.Len(t, s.List(), 1)
}

func TestSaveRejectsEmptyName(t *testing.T) {
	_, err := NewStore().Save("  ", tree(true))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLoadAndDeleteMissing(t *testing.T) {
	s := NewStore()
	_, err := s.Load("nope")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), errs.ErrNotFound)
}

func TestListSortedAndDelete(t *testing.T) {
	s := NewStore()
	for _, n := range []string{"charlie", "alpha", "bravo"} {
		_, err := s.Save(n, tree(false, "x"))
		require.NoError(t, err)
	}
	var names []string
	for _, inf := range s.List() {
		names = append(names, inf.Name)
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names)

	require.NoError(t, s.Delete("bravo"))
	assert.Len(t, s.List(), 2)
}

func TestDiffSnapshots(t *testing.T) {
	s := NewStore()
	_, _ = s.Save("a", tree(true, "Go", "Stop"))
	_, _ = s.Save("b", tree(true, "Go!"))

	res, err := s.Diff("a", "b")
	require.NoError(t, err)
	assert.Equal(t, Summary{Removed: 1, Modified: 1, StableIDs: true}, res.Summary)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, model.ChangeRemoved, res.Changes[0].Type)
	assert.Equal(t, uint64(2), res.Changes[0].ID)
	assert.Equal(t, model.Change{Type: model.ChangeModified, ID: 1, Field: model.FieldLabel, Old: "Go", New: "Go!"}, res.Changes[1])

	_, err = s.Diff("a", "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCompareWarnsOnTraversalIDs(t *testing.T) {
	res := Compare(tree(false, "a"), tree(true, "a"))
	assert.False(t, res.Summary.StableIDs)
	assert.Equal(t, StableIDWarning, res.Summary.Warning)
	assert.NotNil(t, res.Changes)
	assert.Empty(t, res.Changes)
}

func TestCompareWith_ContentToleratesShiftedIDs(t *testing.T) {
	before := tree(false, "Open", "Save")
	after := tree(false, "New", "Open", "Save")

	byID := CompareWith(before, after, MatchID)
	assert.Equal(t, 1, byID.Summary.Added)
	assert.Equal(t, 2, byID.Summary.Modified)
	assert.Equal(t, StableIDWarning, byID.Summary.Warning)

	byContent := CompareWith(before, after, MatchContent)
	assert.Equal(t, Summary{Added: 1}, byContent.Summary)
	require.Len(t, byContent.Changes, 1)
	assert.Equal(t, "New", byContent.Changes[0].Node.Label)
}

func TestParseMatch(t *testing.T) {
	m, err := ParseMatch("diff_snapshots", "")
	require.NoError(t, err)
	assert.Equal(t, MatchID, m)
	m, err = ParseMatch("diff_snapshots", " Content ")
	require.NoError(t, err)
	assert.Equal(t, MatchContent, m)
	_, err = ParseMatch("diff_snapshots", "hash")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestDiffCurrentAfterLabelChange(t *testing.T) {
	src := fake.New("app", true)
	src.Put("app", &fake.Element{Role: "frame", Name: "Demo", Children: []platform.Handle{"go"}})
	src.Put("go", &fake.Element{Role: "push button", Name: "Go"})
	ix := indexer.New(src, indexer.Options{CacheTTL: -1})
	ctx := context.Background()

	before, err := ix.Build(ctx)
	require.NoError(t, err)
	s := NewStore()
	_, err = s.Save("before", before)
	require.NoError(t, err)

	src.Update("go", func(el *fake.Element) { el.Name = "Go!" })
	res, err := s.DiffCurrent(ctx, "before", ix)
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, model.ChangeModified, c.Type)
	assert.Equal(t, model.FieldLabel, c.Field)
	assert.Equal(t, "Go", c.Old)
	assert.Equal(t, "Go!", c.New)
	assert.True(t, res.Summary.StableIDs)
	assert.Empty(t, res.Summary.Warning)
}

type failingBuilder struct{}

func (failingBuilder) Build(context.Context) (*model.Tree, error) {
	return nil, errs.Wrap(errs.KindTargetUnavailable, "build", errors.New("bus down"))
}

func TestDiffCurrentBuildFailure(t *testing.T) {
	s := NewStore()
	_, _ = s.Save("x", tree(true))
	_, err := s.DiffCurrent(context.Background(), "x", failingBuilder{})
	assert.ErrorIs(t, err, errs.ErrTargetUnavailable)
}

func TestCreatedAtUsesClock(t *testing.T) {
	s := NewStore()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return at }
	inf, err := s.Save("x", tree(true))
	require.NoError(t, err)
	assert.Equal(t, at, inf.CreatedAt)
}
