package indexer

import (
	"sync"
	"time"

	"github.com/mj1618/uibridge/internal/model"
)

// treeCache holds the most recent tree with its build time.
type treeCache struct {
	mu      sync.Mutex
	tree    *model.Tree
	builtAt time.Time
	stale   bool
	ttl     time.Duration
	now     func() time.Time
}

// newTreeCache creates a cache. A ttl of 0 disables reuse but Latest still
// returns the last tree.
func newTreeCache(ttl time.Duration) *treeCache {
	return &treeCache{ttl: ttl, now: time.Now}
}

// fresh returns the cached tree if within TTL and not invalidated.
func (c *treeCache) fresh() (*model.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tree == nil || c.stale || c.ttl == 0 {
		return nil, false
	}
	if c.now().Sub(c.builtAt) >= c.ttl {
		return nil, false
	}
	return c.tree, true
}

// latest returns the last stored tree regardless of age.
func (c *treeCache) latest() *model.Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

func (c *treeCache) store(t *model.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tree = t
	c.builtAt = c.now()
	c.stale = false
}

// invalidate forces the next fresh() to miss. The tree stays available to
// latest() so ids handed out earlier can still be resolved.
func (c *treeCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stale = true
}
