// Package indexer builds id-addressed snapshots of the target application's
// accessibility tree and answers queries against them.
package indexer

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/metrics"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

const (
	DefaultCallTimeout = 2 * time.Second
	DefaultMaxNodes    = 10000
	DefaultCacheTTL    = 250 * time.Millisecond
)

// Options configures an Indexer. Zero values select the defaults, except
// CacheTTL where a negative value disables caching.
type Options struct {
	CallTimeout time.Duration
	MaxNodes    int
	CacheTTL    time.Duration
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Indexer walks a TreeReader into model.Tree values.
type Indexer struct {
	src     platform.TreeReader
	opts    Options
	log     *slog.Logger
	cache   *treeCache
	buildMu sync.Mutex
}

// New returns an Indexer over src.
func New(src platform.TreeReader, opts Options) *Indexer {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	switch {
	case opts.CacheTTL == 0:
		opts.CacheTTL = DefaultCacheTTL
	case opts.CacheTTL < 0:
		opts.CacheTTL = 0
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Indexer{
		src:   src,
		opts:  opts,
		log:   log.With("component", "indexer"),
		cache: newTreeCache(opts.CacheTTL),
	}
}

type pending struct {
	handle platform.Handle
	parent int // index into nodes, -1 for the root
}

// Build walks the tree breadth-first from the target's root. Elements whose
// query fails are dropped with their subtree. A failed children query
// leaves the node as a leaf. The result is not cached; use Current or
// Refresh for that.
func (ix *Indexer) Build(ctx context.Context) (*model.Tree, error) {
	start := time.Now()

	root, err := withTimeout(ctx, ix.opts.CallTimeout, ix.src.Root)
	if err != nil {
		return nil, ix.rootError(ctx, err)
	}

	stable := ix.src.StableHandles()
	var (
		nodes     []model.Node
		truncated bool
		used      = make(map[uint64]bool)
		seen      = map[platform.Handle]bool{root: true}
		queue     = []pending{{handle: root, parent: -1}}
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Map("build", err)
		}
		if len(nodes) >= ix.opts.MaxNodes {
			truncated = true
			break
		}
		p := queue[0]
		queue = queue[1:]

		info, err := withTimeout(ctx, ix.opts.CallTimeout, func(c context.Context) (platform.ElementInfo, error) {
			return ix.src.Element(c, p.handle)
		})
		if err != nil {
			if p.parent < 0 {
				return nil, ix.rootError(ctx, err)
			}
			if ctx.Err() != nil {
				return nil, errs.Map("build", ctx.Err())
			}
			ix.log.Debug("dropping element", "handle", p.handle, "err", err)
			continue
		}

		var id uint64
		if stable {
			id = stableID(p.handle, used)
		} else {
			id = uint64(len(nodes))
		}
		used[id] = true

		n := NodeFromInfo(id, p.handle, info)
		if p.parent >= 0 {
			pid := nodes[p.parent].ID
			n.Parent = &pid
			nodes[p.parent].Children = append(nodes[p.parent].Children, id)
		}
		nodes = append(nodes, n)
		idx := len(nodes) - 1

		kids, err := withTimeout(ctx, ix.opts.CallTimeout, func(c context.Context) ([]platform.Handle, error) {
			return ix.src.Children(c, p.handle)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, errs.Map("build", ctx.Err())
			}
			ix.log.Debug("children unavailable", "handle", p.handle, "err", err)
			continue
		}
		for _, k := range kids {
			if seen[k] {
				continue
			}
			seen[k] = true
			queue = append(queue, pending{handle: k, parent: idx})
		}
	}

	t := model.NewTree(nodes, stable)
	t.Truncated = truncated
	elapsed := time.Since(start)
	ix.opts.Metrics.ObserveTree(t.Len(), elapsed)
	ix.log.Debug("tree built", "nodes", t.Len(), "stable_ids", stable, "truncated", truncated, "elapsed", elapsed)
	return t, nil
}

func (ix *Indexer) rootError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Map("build", ctx.Err())
	}
	return errs.Wrap(errs.KindTargetUnavailable, "build", err)
}

// Current returns the cached tree when it is younger than the cache TTL and
// otherwise rebuilds. Concurrent callers share one build.
func (ix *Indexer) Current(ctx context.Context) (*model.Tree, error) {
	if t, ok := ix.cache.fresh(); ok {
		return t, nil
	}
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()
	if t, ok := ix.cache.fresh(); ok {
		return t, nil
	}
	t, err := ix.Build(ctx)
	if err != nil {
		return nil, err
	}
	ix.cache.store(t)
	return t, nil
}

// Refresh builds a fresh tree and publishes it, so ids handed out from the
// result resolve against it.
func (ix *Indexer) Refresh(ctx context.Context) (*model.Tree, error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()
	t, err := ix.Build(ctx)
	if err != nil {
		return nil, err
	}
	ix.cache.store(t)
	return t, nil
}

// Latest returns the last built tree without rebuilding, or nil.
func (ix *Indexer) Latest() *model.Tree {
	return ix.cache.latest()
}

// Invalidate marks the cached tree stale. Call it after mutating actions.
func (ix *Indexer) Invalidate() {
	ix.cache.invalidate()
}

// Resolve maps id to its source handle against the last built tree,
// building one if none exists yet. With stable ids a miss is retried once
// against a rebuilt tree, since the element may have appeared since.
// Traversal ids are never retried: a rebuild may give the id to another
// element.
func (ix *Indexer) Resolve(ctx context.Context, id uint64) (platform.Handle, model.Node, error) {
	t := ix.Latest()
	if t == nil {
		var err error
		if t, err = ix.Current(ctx); err != nil {
			return "", model.Node{}, err
		}
	}
	n, ok := t.Get(id)
	if !ok && t.StableIDs {
		ix.Invalidate()
		if nt, err := ix.Current(ctx); err == nil {
			n, ok = nt.Get(id)
		}
	}
	if !ok {
		return "", model.Node{}, errs.NotFound("resolve", "no element with id %d", id)
	}
	return platform.Handle(n.Handle), n, nil
}

// Get returns the node with id from a current tree.
func (ix *Indexer) Get(ctx context.Context, id uint64) (model.Node, error) {
	t, err := ix.Current(ctx)
	if err != nil {
		return model.Node{}, err
	}
	n, ok := t.Get(id)
	if !ok {
		return model.Node{}, errs.NotFound("get_element", "no element with id %d", id)
	}
	return n, nil
}

// FindByLabel returns nodes whose label contains sub (case-sensitive).
func (ix *Indexer) FindByLabel(ctx context.Context, sub string) ([]model.Node, error) {
	return ix.find(ctx, func(t *model.Tree) []model.Node { return model.FindByLabel(t, sub) })
}

// FindByLabelExact returns nodes whose label equals label.
func (ix *Indexer) FindByLabelExact(ctx context.Context, label string) ([]model.Node, error) {
	return ix.find(ctx, func(t *model.Tree) []model.Node { return model.FindByLabelExact(t, label) })
}

// FindByRole returns nodes whose normalized role equals role, ignoring case.
func (ix *Indexer) FindByRole(ctx context.Context, role string) ([]model.Node, error) {
	return ix.find(ctx, func(t *model.Tree) []model.Node { return model.FindByRole(t, role) })
}

func (ix *Indexer) find(ctx context.Context, fn func(*model.Tree) []model.Node) ([]model.Node, error) {
	t, err := ix.Current(ctx)
	if err != nil {
		return nil, err
	}
	return fn(t), nil
}

// MaxStableID bounds handle-derived ids to 53 bits so they survive JSON
// numbers decoded as float64.
const MaxStableID = 1<<53 - 1

// stableID hashes h, re-hashing with an attempt salt until the id is
// nonzero and unused.
func stableID(h platform.Handle, used map[uint64]bool) uint64 {
	id := hashID(string(h))
	for attempt := 1; id == 0 || used[id]; attempt++ {
		id = hashID(string(h) + "#" + strconv.Itoa(attempt))
	}
	return id
}

func hashID(s string) uint64 {
	return xxhash.Sum64String(s) & MaxStableID
}

// NodeFromInfo converts one source element into a tree node.
func NodeFromInfo(id uint64, h platform.Handle, info platform.ElementInfo) model.Node {
	st := info.States
	n := model.Node{
		ID:          id,
		Role:        model.MapRole(info.Role),
		Label:       info.Name,
		Description: info.Description,
		Visible:     model.Bool(st.Visible && st.Showing),
		Enabled:     model.Bool(st.Enabled),
		Focused:     model.Bool(st.Focused),
		Handle:      string(h),
	}
	if info.Bounds != nil {
		b := *info.Bounds
		n.Bounds = &b
	}
	switch {
	case st.Checkable:
		n.Checked = model.Bool(st.Checked || st.Pressed)
	case st.Checked:
		n.Checked = model.Bool(true)
	}
	return n
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	c, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(c)
}
