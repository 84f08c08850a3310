package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/poll"
)

// ElementQuery selects elements by label substring, exact label or role.
// Set fields are combined with AND.
type ElementQuery struct {
	Label string
	Exact bool
	Role  string
}

func (q ElementQuery) empty() bool {
	return q.Label == "" && strings.TrimSpace(q.Role) == ""
}

func (q ElementQuery) match(t *model.Tree) []model.Node {
	var nodes []model.Node
	switch {
	case q.Label != "" && q.Exact:
		nodes = model.FindByLabelExact(t, q.Label)
	case q.Label != "":
		nodes = model.FindByLabel(t, q.Label)
	default:
		return model.FindByRole(t, q.Role)
	}
	if strings.TrimSpace(q.Role) == "" {
		return nodes
	}
	byRole := make(map[uint64]bool)
	for _, n := range model.FindByRole(t, q.Role) {
		byRole[n.ID] = true
	}
	var out []model.Node
	for _, n := range nodes {
		if byRole[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// WaitResult reports a satisfied or expired wait.
type WaitResult struct {
	Satisfied bool         `yaml:"satisfied"          json:"satisfied"`
	Elapsed   string       `yaml:"elapsed"            json:"elapsed"`
	Count     int          `yaml:"count"              json:"count"`
	Elements  []model.Node `yaml:"elements,omitempty" json:"elements,omitempty"`
}

func (d *Dispatcher) waitOptions(o poll.Options) poll.Options {
	if o.Timeout <= 0 {
		o.Timeout = d.opts.Wait.Timeout
	}
	if o.Interval <= 0 {
		o.Interval = d.opts.Wait.Interval
	}
	return o
}

// WaitForElement polls fresh trees until an element matching q appears, or
// with appear false, until none match. Expiry returns the last observation
// with a Timeout error.
func (d *Dispatcher) WaitForElement(ctx context.Context, q ElementQuery, appear bool, opts poll.Options) (WaitResult, error) {
	const op = "wait_for_element"
	if q.empty() {
		return WaitResult{}, errs.InvalidArgument(op, "label or role is required")
	}
	if err := d.needSource(op); err != nil {
		return WaitResult{}, err
	}
	start := time.Now()
	nodes, err := poll.Until(ctx, d.waitOptions(opts), func(ctx context.Context) ([]model.Node, bool, error) {
		t, err := d.ix.Refresh(ctx)
		if err != nil {
			return nil, false, err
		}
		found := q.match(t)
		return found, (len(found) > 0) == appear, nil
	})
	res := WaitResult{Elapsed: time.Since(start).Round(time.Millisecond).String()}
	var te *poll.TimeoutError[[]model.Node]
	if errors.As(err, &te) {
		nodes = te.Last
	} else if err != nil {
		return res, errs.WithOp(op, err)
	}
	res.Count = len(nodes)
	if appear {
		res.Elements = nodes
	}
	if err != nil {
		return res, errs.Wrap(errs.KindTimeout, op, err)
	}
	res.Satisfied = true
	return res, nil
}

// StateWaitResult reports the last observed value of a state flag.
type StateWaitResult struct {
	Satisfied bool   `yaml:"satisfied" json:"satisfied"`
	ID        uint64 `yaml:"id"        json:"id"`
	State     string `yaml:"state"     json:"state"`
	Value     bool   `yaml:"value"     json:"value"`
	Elapsed   string `yaml:"elapsed"   json:"elapsed"`
}

// WaitForState polls element id until its state flag equals expected. An
// element that is temporarily gone counts as not yet matching.
func (d *Dispatcher) WaitForState(ctx context.Context, id uint64, state string, expected bool, opts poll.Options) (StateWaitResult, error) {
	const op = "wait_for_state"
	state, err := ParseState(state)
	if err != nil {
		return StateWaitResult{}, errs.InvalidArgument(op, "%v", err)
	}
	if _, _, err := d.resolve(ctx, op, id); err != nil {
		return StateWaitResult{}, err
	}
	start := time.Now()
	v, err := poll.Until(ctx, d.waitOptions(opts), func(ctx context.Context) (bool, bool, error) {
		v, err := d.stateOf(ctx, op, id, state)
		if err != nil {
			return false, false, err
		}
		return v, v == expected, nil
	})
	res := StateWaitResult{ID: id, State: state, Elapsed: time.Since(start).Round(time.Millisecond).String()}
	var te *poll.TimeoutError[bool]
	switch {
	case errors.As(err, &te):
		res.Value = te.Last
		return res, errs.Wrap(errs.KindTimeout, op, err)
	case err != nil:
		return res, errs.WithOp(op, err)
	}
	res.Value = v
	res.Satisfied = true
	return res, nil
}
