// Package dispatch turns controller operations into accessibility-source
// calls or agent requests. Every error leaving this package is classified
// by internal/errs.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/indexer"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/internal/poll"
)

// Options configures a Dispatcher.
type Options struct {
	// Wait holds the defaults for wait_for_element and wait_for_state.
	Wait   poll.Options
	Logger *slog.Logger
}

// Dispatcher executes controller operations. The source or the agent may
// be nil; operations needing the missing side fail with TargetUnavailable.
type Dispatcher struct {
	src   platform.TreeSource
	agent platform.AgentChannel
	ix    *indexer.Indexer
	opts  Options
	log   *slog.Logger
}

// New returns a Dispatcher. ix must index src.
func New(src platform.TreeSource, agent platform.AgentChannel, ix *indexer.Indexer, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		src:   src,
		agent: agent,
		ix:    ix,
		opts:  opts,
		log:   log.With("component", "dispatch"),
	}
}

// Indexer exposes the tree indexer for snapshot operations.
func (d *Dispatcher) Indexer() *indexer.Indexer { return d.ix }

func (d *Dispatcher) needSource(op string) error {
	if d.src == nil || d.ix == nil {
		return errs.New(errs.KindTargetUnavailable, op, "no accessibility source connected")
	}
	return nil
}

func (d *Dispatcher) needAgent(op string) error {
	if d.agent == nil {
		return errs.New(errs.KindTargetUnavailable, op, "no agent channel configured")
	}
	return nil
}

// resolve maps id to its handle. Unknown ids fail before any capability
// check.
func (d *Dispatcher) resolve(ctx context.Context, op string, id uint64) (platform.Handle, model.Node, error) {
	if err := d.needSource(op); err != nil {
		return "", model.Node{}, err
	}
	h, n, err := d.ix.Resolve(ctx, id)
	if err != nil {
		return "", model.Node{}, errs.WithOp(op, err)
	}
	return h, n, nil
}

// element resolves id and reads its live state.
func (d *Dispatcher) element(ctx context.Context, op string, id uint64) (platform.Handle, platform.ElementInfo, error) {
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return "", platform.ElementInfo{}, err
	}
	info, err := d.src.Element(ctx, h)
	if err != nil {
		return "", platform.ElementInfo{}, errs.WithOp(op, err)
	}
	return h, info, nil
}

// mutated drops the cached tree after an action that may change the UI.
func (d *Dispatcher) mutated(op string, id uint64) {
	if d.ix != nil {
		d.ix.Invalidate()
	}
	d.log.Debug("action performed", "op", op, "id", id)
}

// Tree returns a current build of the target's tree.
func (d *Dispatcher) Tree(ctx context.Context) (*model.Tree, error) {
	if err := d.needSource("get_ui_tree"); err != nil {
		return nil, err
	}
	t, err := d.ix.Current(ctx)
	if err != nil {
		return nil, errs.WithOp("get_ui_tree", err)
	}
	return t, nil
}

// Build returns a fresh tree and makes it the one ids resolve against.
func (d *Dispatcher) Build(ctx context.Context) (*model.Tree, error) {
	if err := d.needSource("build"); err != nil {
		return nil, err
	}
	return d.ix.Refresh(ctx)
}

// GetElement returns one node of a current tree.
func (d *Dispatcher) GetElement(ctx context.Context, id uint64) (model.Node, error) {
	if err := d.needSource("get_element"); err != nil {
		return model.Node{}, err
	}
	n, err := d.ix.Get(ctx, id)
	return n, errs.WithOp("get_element", err)
}

// FindByLabel returns nodes whose label contains sub.
func (d *Dispatcher) FindByLabel(ctx context.Context, sub string) ([]model.Node, error) {
	return d.find(ctx, "find_by_label", func() ([]model.Node, error) { return d.ix.FindByLabel(ctx, sub) })
}

// FindByLabelExact returns nodes whose label equals label.
func (d *Dispatcher) FindByLabelExact(ctx context.Context, label string) ([]model.Node, error) {
	return d.find(ctx, "find_by_label_exact", func() ([]model.Node, error) { return d.ix.FindByLabelExact(ctx, label) })
}

// FindByRole returns nodes with the given normalized role.
func (d *Dispatcher) FindByRole(ctx context.Context, role string) ([]model.Node, error) {
	return d.find(ctx, "find_by_role", func() ([]model.Node, error) { return d.ix.FindByRole(ctx, role) })
}

func (d *Dispatcher) find(_ context.Context, op string, fn func() ([]model.Node, error)) ([]model.Node, error) {
	if err := d.needSource(op); err != nil {
		return nil, err
	}
	nodes, err := fn()
	if err != nil {
		return nil, errs.WithOp(op, err)
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	return nodes, nil
}
