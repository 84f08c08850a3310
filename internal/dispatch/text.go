package dispatch

import (
	"context"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/platform"
)

// TextSelection is the first selected range of a text element.
type TextSelection struct {
	Start        int  `yaml:"start"         json:"start"`
	End          int  `yaml:"end"           json:"end"`
	HasSelection bool `yaml:"has_selection" json:"has_selection"`
}

func (d *Dispatcher) text(ctx context.Context, op string, id uint64) (platform.Handle, platform.TextState, error) {
	h, _, err := d.resolve(ctx, op, id)
	if err != nil {
		return "", platform.TextState{}, err
	}
	st, err := d.src.Text(ctx, h)
	if err != nil {
		return "", platform.TextState{}, errs.WithOp(op, err)
	}
	return h, st, nil
}

// GetText returns the element's text content and cursor state.
func (d *Dispatcher) GetText(ctx context.Context, id uint64) (platform.TextState, error) {
	_, st, err := d.text(ctx, "get_text", id)
	return st, err
}

// GetTextSelection returns the first selected range, or the caret as an
// empty range when nothing is selected.
func (d *Dispatcher) GetTextSelection(ctx context.Context, id uint64) (TextSelection, error) {
	_, st, err := d.text(ctx, "get_text_selection", id)
	if err != nil {
		return TextSelection{}, err
	}
	if len(st.Selections) == 0 {
		return TextSelection{Start: st.Caret, End: st.Caret}, nil
	}
	r := st.Selections[0]
	return TextSelection{Start: r.Start, End: r.End, HasSelection: r.Start != r.End}, nil
}

// GetCaretPosition returns the caret offset.
func (d *Dispatcher) GetCaretPosition(ctx context.Context, id uint64) (int, error) {
	_, st, err := d.text(ctx, "get_caret_position", id)
	return st.Caret, err
}

// SetText replaces the element's text. Elements without EditableText fail
// with NotSupported.
func (d *Dispatcher) SetText(ctx context.Context, id uint64, s string) error {
	const op = "set_text"
	h, info, err := d.element(ctx, op, id)
	if err != nil {
		return err
	}
	if len(info.Interfaces) > 0 && !info.Implements(platform.InterfaceEditableText) {
		return errs.NotSupported(op, "element %d is not editable text; focus it and use keyboard_input instead", id)
	}
	if err := d.src.SetTextContents(ctx, h, s); err != nil {
		return errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return nil
}

// SetTextSelection selects [start, end). The element must hold focus.
func (d *Dispatcher) SetTextSelection(ctx context.Context, id uint64, start, end int) (TextSelection, error) {
	const op = "set_text_selection"
	h, st, err := d.focusedText(ctx, op, id)
	if err != nil {
		return TextSelection{}, err
	}
	start, end = clampOffset(start, st.CharCount), clampOffset(end, st.CharCount)
	if start > end {
		start, end = end, start
	}
	if err := d.src.SetSelection(ctx, h, start, end); err != nil {
		return TextSelection{}, errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return TextSelection{Start: start, End: end, HasSelection: start != end}, nil
}

// SetCaretPosition moves the caret. The element must hold focus.
func (d *Dispatcher) SetCaretPosition(ctx context.Context, id uint64, offset int) (int, error) {
	const op = "set_caret_position"
	h, st, err := d.focusedText(ctx, op, id)
	if err != nil {
		return 0, err
	}
	offset = clampOffset(offset, st.CharCount)
	if err := d.src.SetCaret(ctx, h, offset); err != nil {
		return 0, errs.WithOp(op, err)
	}
	d.mutated(op, id)
	return offset, nil
}

func (d *Dispatcher) focusedText(ctx context.Context, op string, id uint64) (platform.Handle, platform.TextState, error) {
	h, info, err := d.element(ctx, op, id)
	if err != nil {
		return "", platform.TextState{}, err
	}
	if !info.States.Focused {
		return "", platform.TextState{}, errs.New(errs.KindNotFocused, op, "element %d does not hold input focus; call focus_element first", id)
	}
	st, err := d.src.Text(ctx, h)
	if err != nil {
		return "", platform.TextState{}, errs.WithOp(op, err)
	}
	return h, st, nil
}

// clampOffset limits offset to [0, count]; -1 means the end of the text.
func clampOffset(offset, count int) int {
	if offset == -1 || offset > count {
		return count
	}
	return max(offset, 0)
}
