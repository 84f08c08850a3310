// Package snapshot keeps named copies of built trees and diffs them.
package snapshot

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
)

// StableIDWarning is attached to diffs involving a traversal-id tree.
const StableIDWarning = "tree ids are traversal-order; inserted or removed siblings shift later ids and show up as spurious changes"

// Builder produces a fresh tree for DiffCurrent.
type Builder interface {
	Build(ctx context.Context) (*model.Tree, error)
}

// Snapshot is a saved tree. Tree is a private deep copy.
type Snapshot struct {
	Name      string
	CreatedAt time.Time
	Tree      *model.Tree
}

// Info describes a snapshot for listing.
type Info struct {
	Name      string    `yaml:"name"       json:"name"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	Nodes     int       `yaml:"nodes"      json:"nodes"`
	StableIDs bool      `yaml:"stable_ids" json:"stable_ids"`
}

// Summary counts a change list.
type Summary struct {
	Added     int    `yaml:"added"             json:"added"`
	Removed   int    `yaml:"removed"           json:"removed"`
	Modified  int    `yaml:"modified"          json:"modified"`
	StableIDs bool   `yaml:"stable_ids"        json:"stable_ids"`
	Warning   string `yaml:"warning,omitempty" json:"warning,omitempty"`
}

// Result is a diff with its summary.
type Result struct {
	Summary Summary        `yaml:"summary" json:"summary"`
	Changes []model.Change `yaml:"changes" json:"changes"`
}

// Store holds snapshots by name. Snapshots are never evicted.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{snaps: make(map[string]Snapshot), now: time.Now}
}

func validName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return errs.InvalidArgument(op, "snapshot name is required")
	}
	return nil
}

// Save stores a deep copy of t under name, replacing any previous one.
func (s *Store) Save(name string, t *model.Tree) (Info, error) {
	if err := validName("save_snapshot", name); err != nil {
		return Info{}, err
	}
	if t == nil {
		return Info{}, errs.InvalidArgument("save_snapshot", "no tree to save")
	}
	snap := Snapshot{Name: name, CreatedAt: s.now(), Tree: t.Clone()}
	s.mu.Lock()
	s.snaps[name] = snap
	s.mu.Unlock()
	return info(snap), nil
}

// Load returns a deep copy of the named snapshot.
func (s *Store) Load(name string) (Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snaps[name]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, errs.NotFound("load_snapshot", "no snapshot named %q", name)
	}
	snap.Tree = snap.Tree.Clone()
	return snap, nil
}

// Delete removes the named snapshot.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[name]; !ok {
		return errs.NotFound("delete_snapshot", "no snapshot named %q", name)
	}
	delete(s.snaps, name)
	return nil
}

// List returns every snapshot sorted by name.
func (s *Store) List() []Info {
	s.mu.RLock()
	out := make([]Info, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, info(snap))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Match selects how nodes are paired across two trees.
type Match string

const (
	// MatchID pairs nodes by id. Only handle-derived ids survive UI churn.
	MatchID Match = "id"
	// MatchContent pairs nodes by role, label, description and path, which
	// tolerates shifted traversal ids but cannot see identity changes.
	MatchContent Match = "content"
)

// ParseMatch accepts "", "id" or "content".
func ParseMatch(op, s string) (Match, error) {
	switch m := Match(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MatchID, nil
	case MatchID, MatchContent:
		return m, nil
	}
	return "", errs.InvalidArgument(op, "unknown match mode %q (use id or content)", s)
}

// Diff compares two saved snapshots by id.
func (s *Store) Diff(a, b string) (Result, error) {
	return s.DiffWith(a, b, MatchID)
}

// DiffWith compares two saved snapshots.
func (s *Store) DiffWith(a, b string, m Match) (Result, error) {
	sa, err := s.Load(a)
	if err != nil {
		return Result{}, errs.Map("diff_snapshots", err)
	}
	sb, err := s.Load(b)
	if err != nil {
		return Result{}, errs.Map("diff_snapshots", err)
	}
	return CompareWith(sa.Tree, sb.Tree, m), nil
}

// DiffCurrent compares the named snapshot against a fresh build by id.
func (s *Store) DiffCurrent(ctx context.Context, name string, b Builder) (Result, error) {
	return s.DiffCurrentWith(ctx, name, b, MatchID)
}

// DiffCurrentWith compares the named snapshot against a fresh build.
func (s *Store) DiffCurrentWith(ctx context.Context, name string, b Builder, m Match) (Result, error) {
	snap, err := s.Load(name)
	if err != nil {
		return Result{}, errs.Map("diff_current", err)
	}
	cur, err := b.Build(ctx)
	if err != nil {
		return Result{}, errs.Map("diff_current", err)
	}
	return CompareWith(snap.Tree, cur, m), nil
}

// Compare diffs a against b by id and summarizes the result.
func Compare(a, b *model.Tree) Result {
	return CompareWith(a, b, MatchID)
}

// CompareWith diffs a against b. Id matching warns when either tree has
// traversal-order ids; content matching does not depend on ids.
func CompareWith(a, b *model.Tree, m Match) Result {
	var changes []model.Change
	if m == MatchContent {
		changes = model.DiffByContent(a, b)
	} else {
		changes = model.Diff(a, b)
	}
	added, removed, modified := model.DiffCounts(changes)
	sum := Summary{
		Added:     added,
		Removed:   removed,
		Modified:  modified,
		StableIDs: stable(a) && stable(b),
	}
	if !sum.StableIDs && m != MatchContent {
		sum.Warning = StableIDWarning
	}
	if changes == nil {
		changes = []model.Change{}
	}
	return Result{Summary: sum, Changes: changes}
}

func stable(t *model.Tree) bool { return t != nil && t.StableIDs }

func info(snap Snapshot) Info {
	return Info{
		Name:      snap.Name,
		CreatedAt: snap.CreatedAt,
		Nodes:     snap.Tree.Len(),
		StableIDs: snap.Tree.StableIDs,
	}
}
