package server

import (
	"context"
	"errors"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/output"
	"github.com/mj1618/uibridge/internal/poll"
)

func done[T any](v T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

func ack(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return ok, nil
}

// Matches is the result of the find tools.
type Matches struct {
	Count    int          `yaml:"count" json:"count"`
	Elements []model.Node `yaml:"elements" json:"elements"`
}

func matches(nodes []model.Node, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []model.Node{}
	}
	return Matches{Count: len(nodes), Elements: nodes}, nil
}

// StateBody reports a single state query.
type StateBody struct {
	ID    uint64 `yaml:"id" json:"id"`
	State string `yaml:"state" json:"state"`
	Value any    `yaml:"value" json:"value"`
}

func (s *Server) getUITree(ctx context.Context, a args) (any, error) {
	var (
		t   *model.Tree
		err error
	)
	if a.Bool("fresh", false) {
		t, err = s.d.Build(ctx)
	} else {
		t, err = s.d.Tree(ctx)
	}
	if err != nil {
		return nil, err
	}
	res := output.NewTreeResult(s.app, t)
	roles, visibleOnly := a.List("roles"), a.Bool("visible_only", false)
	if len(roles) > 0 || visibleOnly {
		res.Elements = model.Annotate(t, model.FilterNodes(t.Nodes, roles, nil, visibleOnly))
		res.Count = len(res.Elements)
	}
	return res, nil
}

func (s *Server) findByLabel(ctx context.Context, a args) (any, error) {
	label, err := a.RequireString("label")
	if err != nil {
		return nil, err
	}
	return matches(s.d.FindByLabel(ctx, label))
}

func (s *Server) findByLabelExact(ctx context.Context, a args) (any, error) {
	label, err := a.RequireString("label")
	if err != nil {
		return nil, err
	}
	return matches(s.d.FindByLabelExact(ctx, label))
}

func (s *Server) findByRole(ctx context.Context, a args) (any, error) {
	role, err := a.RequireString("role")
	if err != nil {
		return nil, err
	}
	return matches(s.d.FindByRole(ctx, role))
}

// withID runs fn with the required element id.
func withID(fn func(ctx context.Context, id uint64, a args) (any, error)) toolFunc {
	return func(ctx context.Context, a args) (any, error) {
		id, err := a.ID()
		if err != nil {
			return nil, err
		}
		return fn(ctx, id, a)
	}
}

func (s *Server) getElement(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.GetElement(ctx, id))
}

func (s *Server) clickElement(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.ClickElement(ctx, id))
}

func (s *Server) getBounds(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.GetBounds(ctx, id))
}

func (s *Server) focusElement(ctx context.Context, id uint64, _ args) (any, error) {
	return ack(s.d.FocusElement(ctx, id))
}

func (s *Server) scrollToElement(ctx context.Context, id uint64, _ args) (any, error) {
	return ack(s.d.ScrollToElement(ctx, id))
}

func (s *Server) dragElement(ctx context.Context, id uint64, a args) (any, error) {
	x, err := a.RequireFloat("end_x")
	if err != nil {
		return nil, err
	}
	y, err := a.RequireFloat("end_y")
	if err != nil {
		return nil, err
	}
	return ack(s.d.DragElement(ctx, id, x, y, a.String("button", "")))
}

func (s *Server) getValue(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.GetValue(ctx, id))
}

func (s *Server) setValue(ctx context.Context, id uint64, a args) (any, error) {
	v, err := a.RequireFloat("value")
	if err != nil {
		return nil, err
	}
	return done(s.d.SetValue(ctx, id, v))
}

func (s *Server) getText(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.GetText(ctx, id))
}

func (s *Server) setText(ctx context.Context, id uint64, a args) (any, error) {
	if !a.has("text") {
		return nil, errs.InvalidArgument(a.op, "text is required")
	}
	return ack(s.d.SetText(ctx, id, a.String("text", "")))
}

func (s *Server) getTextSelection(ctx context.Context, id uint64, _ args) (any, error) {
	return done(s.d.GetTextSelection(ctx, id))
}

func (s *Server) setTextSelection(ctx context.Context, id uint64, a args) (any, error) {
	start, err := a.RequireInt("start")
	if err != nil {
		return nil, err
	}
	end, err := a.RequireInt("end")
	if err != nil {
		return nil, err
	}
	return done(s.d.SetTextSelection(ctx, id, start, end))
}

// Caret is the result of the caret tools.
type Caret struct {
	ID     uint64 `yaml:"id" json:"id"`
	Offset int    `yaml:"offset" json:"offset"`
}

func (s *Server) getCaretPosition(ctx context.Context, id uint64, _ args) (any, error) {
	off, err := s.d.GetCaretPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	return Caret{ID: id, Offset: off}, nil
}

func (s *Server) setCaretPosition(ctx context.Context, id uint64, a args) (any, error) {
	offset, err := a.RequireInt("offset")
	if err != nil {
		return nil, err
	}
	off, err := s.d.SetCaretPosition(ctx, id, offset)
	if err != nil {
		return nil, err
	}
	return Caret{ID: id, Offset: off}, nil
}

func (s *Server) selectItem(ctx context.Context, id uint64, a args) (any, error) {
	index, err := a.RequireInt("index")
	if err != nil {
		return nil, err
	}
	return ack(s.d.SelectItem(ctx, id, index))
}

func (s *Server) deselectItem(ctx context.Context, id uint64, a args) (any, error) {
	index, err := a.RequireInt("index")
	if err != nil {
		return nil, err
	}
	return ack(s.d.DeselectItem(ctx, id, index))
}

// SelectedCount is the result of get_selected_count.
type SelectedCount struct {
	ID    uint64 `yaml:"id" json:"id"`
	Count int    `yaml:"count" json:"count"`
}

func (s *Server) getSelectedCount(ctx context.Context, id uint64, _ args) (any, error) {
	n, err := s.d.SelectedCount(ctx, id)
	if err != nil {
		return nil, err
	}
	return SelectedCount{ID: id, Count: n}, nil
}

func (s *Server) selectAll(ctx context.Context, id uint64, _ args) (any, error) {
	return ack(s.d.SelectAll(ctx, id))
}

func (s *Server) clearSelection(ctx context.Context, id uint64, _ args) (any, error) {
	return ack(s.d.ClearSelection(ctx, id))
}

// stateTool wraps a boolean state query.
func (s *Server) stateTool(state string, fn func(context.Context, uint64) (bool, error)) toolFunc {
	return withID(func(ctx context.Context, id uint64, _ args) (any, error) {
		v, err := fn(ctx, id)
		if err != nil {
			return nil, err
		}
		return StateBody{ID: id, State: state, Value: v}, nil
	})
}

func (s *Server) isChecked(ctx context.Context, id uint64, _ args) (any, error) {
	v, err := s.d.IsChecked(ctx, id)
	if err != nil {
		return nil, err
	}
	return StateBody{ID: id, State: dispatch.StateChecked, Value: string(v)}, nil
}

func waitOptions(a args) (poll.Options, error) {
	timeout, err := a.Millis("timeout_ms", 0)
	if err != nil {
		return poll.Options{}, err
	}
	interval, err := a.Millis("interval_ms", 0)
	if err != nil {
		return poll.Options{}, err
	}
	return poll.Options{Timeout: timeout, Interval: interval}, nil
}

// waitForElement returns the last observation alongside a timeout error.
func (s *Server) waitForElement(ctx context.Context, a args) (any, error) {
	opts, err := waitOptions(a)
	if err != nil {
		return nil, err
	}
	q := dispatch.ElementQuery{
		Label: a.String("label", ""),
		Exact: a.Bool("exact", false),
		Role:  a.String("role", ""),
	}
	appear := !a.Bool("disappear", false)
	res, err := s.d.WaitForElement(ctx, q, appear, opts)
	if err != nil && !errors.Is(err, errs.ErrTimeout) {
		return nil, err
	}
	return res, err
}

func (s *Server) waitForState(ctx context.Context, id uint64, a args) (any, error) {
	opts, err := waitOptions(a)
	if err != nil {
		return nil, err
	}
	state, err := a.RequireString("state")
	if err != nil {
		return nil, err
	}
	res, err := s.d.WaitForState(ctx, id, state, a.Bool("expected", true), opts)
	if err != nil && !errors.Is(err, errs.ErrTimeout) {
		return nil, err
	}
	return res, err
}
