// Package fake is an in-memory accessibility source for tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/mj1618/uibridge/internal/model"
	"github.com/mj1618/uibridge/internal/platform"
)

// Element is one mutable element of a fake tree.
type Element struct {
	Role        string
	Name        string
	Description string
	States      platform.StateSet
	Bounds      *model.Bounds
	Interfaces  []string
	Children    []platform.Handle

	Actions   []string
	Value     platform.Value
	Text      platform.TextState
	Selected  map[int]bool
	ItemCount int
}

// Source is a platform.TreeSource over a map of elements. It is safe for
// concurrent use.
type Source struct {
	mu       sync.Mutex
	root     platform.Handle
	elements map[platform.Handle]*Element
	stable   bool
	fail     map[platform.Handle]error
	failKids map[platform.Handle]error

	// Performed records DoAction calls as "handle:index".
	Performed []string
	// Calls counts every query.
	Calls int
}

// New returns a source rooted at root. stable controls StableHandles.
func New(root platform.Handle, stable bool) *Source {
	return &Source{
		root:     root,
		elements: make(map[platform.Handle]*Element),
		stable:   stable,
		fail:     make(map[platform.Handle]error),
		failKids: make(map[platform.Handle]error),
	}
}

// Put stores or replaces an element.
func (s *Source) Put(h platform.Handle, el *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[h] = el
}

// Update mutates an element under the lock.
func (s *Source) Update(h platform.Handle, fn func(el *Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[h]; ok {
		fn(el)
	}
}

// Remove deletes h and drops it from any parent's child list.
func (s *Source) Remove(h platform.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, h)
	for _, el := range s.elements {
		for i, c := range el.Children {
			if c == h {
				el.Children = append(el.Children[:i:i], el.Children[i+1:]...)
				break
			}
		}
	}
}

// FailElement makes Element(h) return err until cleared with a nil err.
func (s *Source) FailElement(h platform.Handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, h)
		return
	}
	s.fail[h] = err
}

// FailChildren makes Children(h) return err until cleared with a nil err.
func (s *Source) FailChildren(h platform.Handle, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failKids, h)
		return
	}
	s.failKids[h] = err
}

// Get returns a copy of the element at h.
func (s *Source) Get(h platform.Handle) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.elements[h]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

func (s *Source) lookup(h platform.Handle) (*Element, error) {
	s.Calls++
	el, ok := s.elements[h]
	if !ok {
		return nil, fmt.Errorf("%s: %w", h, platform.ErrElementGone)
	}
	return el, nil
}

func (s *Source) withInterface(h platform.Handle, iface string) (*Element, error) {
	el, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	for _, i := range el.Interfaces {
		if i == iface {
			return el, nil
		}
	}
	return nil, platform.MissingInterface(iface)
}

func (s *Source) Root(ctx context.Context) (platform.Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookup(s.root); err != nil {
		return "", fmt.Errorf("root: %w", platform.ErrSourceUnavailable)
	}
	return s.root, nil
}

func (s *Source) Element(ctx context.Context, h platform.Handle) (platform.ElementInfo, error) {
	if err := ctx.Err(); err != nil {
		return platform.ElementInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[h]; ok {
		return platform.ElementInfo{}, err
	}
	el, err := s.lookup(h)
	if err != nil {
		return platform.ElementInfo{}, err
	}
	info := platform.ElementInfo{
		Role:        el.Role,
		Name:        el.Name,
		Description: el.Description,
		States:      el.States,
		Interfaces:  append([]string(nil), el.Interfaces...),
	}
	if el.Bounds != nil {
		b := *el.Bounds
		info.Bounds = &b
	}
	return info, nil
}

func (s *Source) Children(ctx context.Context, h platform.Handle) ([]platform.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failKids[h]; ok {
		return nil, err
	}
	el, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]platform.Handle(nil), el.Children...), nil
}

func (s *Source) StableHandles() bool { return s.stable }

func (s *Source) Actions(_ context.Context, h platform.Handle) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), el.Actions...), nil
}

func (s *Source) DoAction(_ context.Context, h platform.Handle, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceAction)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(el.Actions) {
		return fmt.Errorf("action %d: %w", index, platform.ErrRejected)
	}
	s.Performed = append(s.Performed, fmt.Sprintf("%s:%d", h, index))
	return nil
}

func (s *Source) GrabFocus(_ context.Context, h platform.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceComponent)
	if err != nil {
		return err
	}
	if !el.States.Focusable {
		return fmt.Errorf("grab focus: %w", platform.ErrRejected)
	}
	for _, other := range s.elements {
		other.States.Focused = false
	}
	el.States.Focused = true
	return nil
}

func (s *Source) ScrollTo(_ context.Context, h platform.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.withInterface(h, platform.InterfaceComponent)
	return err
}

func (s *Source) Value(_ context.Context, h platform.Handle) (platform.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceValue)
	if err != nil {
		return platform.Value{}, err
	}
	return el.Value, nil
}

func (s *Source) SetValue(_ context.Context, h platform.Handle, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceValue)
	if err != nil {
		return err
	}
	el.Value.Current = v
	return nil
}

func (s *Source) Text(_ context.Context, h platform.Handle) (platform.TextState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceText)
	if err != nil {
		return platform.TextState{}, err
	}
	st := el.Text
	st.CharCount = len([]rune(st.Text))
	st.Selections = append([]platform.TextRange(nil), el.Text.Selections...)
	return st, nil
}

func (s *Source) SetTextContents(_ context.Context, h platform.Handle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceEditableText)
	if err != nil {
		return err
	}
	el.Text.Text = text
	el.Text.Caret = len([]rune(text))
	el.Text.Selections = nil
	return nil
}

func (s *Source) SetCaret(_ context.Context, h platform.Handle, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceText)
	if err != nil {
		return err
	}
	el.Text.Caret = offset
	return nil
}

func (s *Source) SetSelection(_ context.Context, h platform.Handle, start, end int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.withInterface(h, platform.InterfaceText)
	if err != nil {
		return err
	}
	el.Text.Selections = []platform.TextRange{{Start: start, End: end}}
	return nil
}

func (s *Source) selection(h platform.Handle) (*Element, error) {
	el, err := s.withInterface(h, platform.InterfaceSelection)
	if err != nil {
		return nil, err
	}
	if el.Selected == nil {
		el.Selected = make(map[int]bool)
	}
	return el, nil
}

func (s *Source) SelectChild(_ context.Context, h platform.Handle, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.selection(h)
	if err != nil {
		return err
	}
	if index < 0 || index >= el.ItemCount {
		return fmt.Errorf("select child %d: %w", index, platform.ErrRejected)
	}
	el.Selected[index] = true
	return nil
}

func (s *Source) DeselectChild(_ context.Context, h platform.Handle, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.selection(h)
	if err != nil {
		return err
	}
	delete(el.Selected, index)
	return nil
}

func (s *Source) SelectedCount(_ context.Context, h platform.Handle) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.selection(h)
	if err != nil {
		return 0, err
	}
	return len(el.Selected), nil
}

func (s *Source) SelectAll(_ context.Context, h platform.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.selection(h)
	if err != nil {
		return err
	}
	for i := 0; i < el.ItemCount; i++ {
		el.Selected[i] = true
	}
	return nil
}

func (s *Source) ClearSelection(_ context.Context, h platform.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, err := s.selection(h)
	if err != nil {
		return err
	}
	el.Selected = make(map[int]bool)
	return nil
}

func (s *Source) Close() error { return nil }

var _ platform.TreeSource = (*Source)(nil)
