package dispatch

import (
	"context"
	"math"
	"strings"

	"github.com/mj1618/uibridge/internal/channel"
	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/pkg/protocol"
)

// clickActions are tried in order before falling back to action 0.
var clickActions = []string{"click", "press", "activate", "jump", "toggle"}

// ActionResult reports an invoked accessibility action.
type ActionResult struct {
	ID     uint64 `yaml:"id"     json:"id"`
	Action string `yaml:"action" json:"action"`
	Index  int    `yaml:"index"  json:"index"`
}

// ClickElement invokes the element's click-like action.
func (d *Dispatcher) ClickElement(ctx context.Context, id uint64) (ActionResult, error) {
	const op = "click_element"
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return ActionResult{}, err
	}
	actions, err := d.src.Actions(ctx, h)
	if err != nil {
		return ActionResult{}, errs.WithOp(op, err)
	}
	if len(actions) == 0 {
		return ActionResult{}, errs.New(errs.KindNoSuchAction, op, "element %d exposes no actions", id)
	}
	idx := pickAction(actions)
	if err := d.src.DoAction(ctx, h, idx); err != nil {
		return ActionResult{}, errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return ActionResult{ID: id, Action: actions[idx], Index: idx}, nil
}

func pickAction(actions []string) int {
	for _, want := range clickActions {
		for i, a := range actions {
			if strings.EqualFold(a, want) {
				return i
			}
		}
	}
	return 0
}

// GetBounds returns the element's screen rectangle.
func (d *Dispatcher) GetBounds(ctx context.Context, id uint64) (model.Bounds, error) {
	return d.bounds(ctx, "get_bounds", id)
}

func (d *Dispatcher) bounds(ctx context.Context, op string, id uint64) (model.Bounds, error) {
	_, info, err := d.element(ctx, op, id)
	if err != nil {
		return model.Bounds{}, err
	}
	if info.Bounds == nil {
		return model.Bounds{}, errs.NotSupported(op, "element %d has no screen extents", id)
	}
	return *info.Bounds, nil
}

// FocusElement moves input focus to the element.
func (d *Dispatcher) FocusElement(ctx context.Context, id uint64) error {
	const op = "focus_element"
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return err
	}
	if err := d.src.GrabFocus(ctx, h); err != nil {
		return errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return nil
}

// ScrollToElement scrolls the element into view.
func (d *Dispatcher) ScrollToElement(ctx context.Context, id uint64) error {
	const op = "scroll_to_element"
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return err
	}
	if err := d.src.ScrollTo(ctx, h); err != nil {
		return errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return nil
}

// DragElement drags from the element's centre to (endX, endY).
func (d *Dispatcher) DragElement(ctx context.Context, id uint64, endX, endY float64, button string) error {
	const op = "drag_element"
	btn, err := parseButton(op, button)
	if err != nil {
		return err
	}
	b, err := d.bounds(ctx, op, id)
	if err != nil {
		return err
	}
	if err := d.needAgent(op); err != nil {
		return err
	}
	x, y := b.Center()
	p := protocol.DragPayload{StartX: x, StartY: y, EndX: endX, EndY: endY, Button: btn}
	if err := channel.Expect(ctx, d.agent, protocol.TypeDrag, p, protocol.TypeOK, nil); err != nil {
		return errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return nil
}

// GetValue reads a range element's value.
func (d *Dispatcher) GetValue(ctx context.Context, id uint64) (platform.Value, error) {
	const op = "get_value"
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return platform.Value{}, err
	}
	v, err := d.src.Value(ctx, h)
	if err != nil {
		return platform.Value{}, errs.WithOp(op, err)
	}
	return v, nil
}

// SetValue writes a range element's value. Values outside [min, max] are
// rejected when the element reports a range.
func (d *Dispatcher) SetValue(ctx context.Context, id uint64, v float64) (platform.Value, error) {
	const op = "set_value"
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return platform.Value{}, errs.InvalidArgument(op, "value must be a finite number")
	}
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return platform.Value{}, err
	}
	cur, err := d.src.Value(ctx, h)
	if err != nil {
		return platform.Value{}, errs.WithOp(op, err)
	}
	if cur.Min < cur.Max && (v < cur.Min || v > cur.Max) {
		return platform.Value{}, errs.InvalidArgument(op, "value %v outside range [%v, %v]", v, cur.Min, cur.Max)
	}
	if err := d.src.SetValue(ctx, h, v); err != nil {
		return platform.Value{}, errs.WithOp(op, err)
	}
	d.mutated(op, id)
	cur.Current = v
	return cur, nil
}

// Selection operation names, as reported by SelectionSupport.
const (
	OpSelectItem     = "select_item"
	OpDeselectItem   = "deselect_item"
	OpSelectedCount  = "get_selected_count"
	OpSelectAll      = "select_all"
	OpClearSelection = "clear_selection"
)

const selectionFallbackHint = "use click_at on the item's coordinates instead"

// SelectionSupport lists the selection operations that cannot work for a
// role because its items are not exposed as children.
func SelectionSupport(role string) []string {
	return model.SelectionLimits[strings.ToLower(role)]
}

func (d *Dispatcher) selection(ctx context.Context, op string, id uint64) (platform.Handle, error) {
	h, n, err := d.resolve(ctx, op, id)
	if err != nil {
		return "", err
	}
	for _, unsupported := range SelectionSupport(n.Role) {
		if unsupported == op {
			return "", errs.NotSupported(op, "%s does not expose its items for selection; %s", n.Role, selectionFallbackHint)
		}
	}
	return h, nil
}

// SelectItem selects the child at index.
func (d *Dispatcher) SelectItem(ctx context.Context, id uint64, index int) error {
	return d.selectionOp(ctx, OpSelectItem, id, func(h platform.Handle) error {
		if index < 0 {
			return errs.InvalidArgument(OpSelectItem, "index must not be negative")
		}
		return d.src.SelectChild(ctx, h, index)
	})
}

// DeselectItem deselects the child at index.
func (d *Dispatcher) DeselectItem(ctx context.Context, id uint64, index int) error {
	return d.selectionOp(ctx, OpDeselectItem, id, func(h platform.Handle) error {
		if index < 0 {
			return errs.InvalidArgument(OpDeselectItem, "index must not be negative")
		}
		return d.src.DeselectChild(ctx, h, index)
	})
}

// SelectAll selects every child.
func (d *Dispatcher) SelectAll(ctx context.Context, id uint64) error {
	return d.selectionOp(ctx, OpSelectAll, id, func(h platform.Handle) error {
		return d.src.SelectAll(ctx, h)
	})
}

// ClearSelection deselects every child.
func (d *Dispatcher) ClearSelection(ctx context.Context, id uint64) error {
	return d.selectionOp(ctx, OpClearSelection, id, func(h platform.Handle) error {
		return d.src.ClearSelection(ctx, h)
	})
}

func (d *Dispatcher) selectionOp(ctx context.Context, op string, id uint64, fn func(platform.Handle) error) error {
	h, err := d.selection(ctx, op, id)
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		return errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return nil
}

// SelectedCount returns the number of selected children.
func (d *Dispatcher) SelectedCount(ctx context.Context, id uint64) (int, error) {
	h, err := d.selection(ctx, OpSelectedCount, id)
	if err != nil {
		return 0, err
	}
	n, err := d.src.SelectedCount(ctx, h)
	if err != nil {
		return 0, errs.WithOp(OpSelectedCount, err)
	}
	return n, nil
}

func parseButton(op, s string) (protocol.MouseButton, error) {
	btn, err := protocol.ParseMouseButton(s)
	if err != nil {
		return "", errs.InvalidArgument(op, "%v", err)
	}
	return btn, nil
}
