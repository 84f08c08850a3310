package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/indexer"
	"github.com/mj1618/uibridge/internal/model"
)

// CheckState is the three-valued answer of IsChecked.
type CheckState string

const (
	Checked      CheckState = "checked"
	Unchecked    CheckState = "unchecked"
	NotCheckable CheckState = "not_checkable"
)

// State names accepted by wait_for_state.
const (
	StateVisible = "visible"
	StateEnabled = "enabled"
	StateFocused = "focused"
	StateChecked = "checked"
)

// ParseState validates a state name.
func ParseState(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case StateVisible, StateEnabled, StateFocused, StateChecked:
		return v, nil
	}
	return "", fmt.Errorf("unknown state %q (expected visible, enabled, focused or checked)", s)
}

// live reads the element's current state as a node.
func (d *Dispatcher) live(ctx context.Context, op string, id uint64) (model.Node, error) {
	h, info, err := d.element(ctx, op, id)
	if err != nil {
		return model.Node{}, err
	}
	return indexer.NodeFromInfo(id, h, info), nil
}

// IsVisible reports whether the element is visible and showing.
func (d *Dispatcher) IsVisible(ctx context.Context, id uint64) (bool, error) {
	n, err := d.live(ctx, "is_visible", id)
	return model.IsTrue(n.Visible), err
}

// IsEnabled reports whether the element accepts input.
func (d *Dispatcher) IsEnabled(ctx context.Context, id uint64) (bool, error) {
	n, err := d.live(ctx, "is_enabled", id)
	return model.IsTrue(n.Enabled), err
}

// IsFocused reports whether the element holds input focus.
func (d *Dispatcher) IsFocused(ctx context.Context, id uint64) (bool, error) {
	n, err := d.live(ctx, "is_focused", id)
	return model.IsTrue(n.Focused), err
}

// IsChecked reports the element's check state.
func (d *Dispatcher) IsChecked(ctx context.Context, id uint64) (CheckState, error) {
	n, err := d.live(ctx, "is_checked", id)
	if err != nil {
		return "", err
	}
	return checkState(n), nil
}

func checkState(n model.Node) CheckState {
	switch {
	case n.Checked == nil:
		return NotCheckable
	case *n.Checked:
		return Checked
	}
	return Unchecked
}

// stateOf reads one named state flag. Not-checkable counts as false.
func (d *Dispatcher) stateOf(ctx context.Context, op string, id uint64, state string) (bool, error) {
	n, err := d.live(ctx, op, id)
	if err != nil {
		return false, err
	}
	switch state {
	case StateVisible:
		return model.IsTrue(n.Visible), nil
	case StateEnabled:
		return model.IsTrue(n.Enabled), nil
	case StateFocused:
		return model.IsTrue(n.Focused), nil
	case StateChecked:
		return model.IsTrue(n.Checked), nil
	}
	return false, errs.InvalidArgument(op, "unknown state %q", state)
}
