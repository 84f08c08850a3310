package platform

import (
	"context"

	"github.com/mj1618/uibridge/pkg/protocol"
)

// TreeReader walks the accessibility tree exported by the target
// application.
type TreeReader interface {
	// Root returns the handle of the target application's root element.
	Root(ctx context.Context) (Handle, error)

	// Element returns the role, name, state and geometry of one element.
	Element(ctx context.Context, h Handle) (ElementInfo, error)

	// Children returns the direct children of h in order.
	Children(ctx context.Context, h Handle) ([]Handle, error)

	// StableHandles reports whether handles survive tree rebuilds.
	StableHandles() bool
}

// ActionPerformer invokes an element's named actions.
type ActionPerformer interface {
	Actions(ctx context.Context, h Handle) ([]string, error)
	DoAction(ctx context.Context, h Handle, index int) error
}

// ComponentController changes focus and scroll position. Geometry is read
// through ElementInfo.Bounds.
type ComponentController interface {
	GrabFocus(ctx context.Context, h Handle) error
	ScrollTo(ctx context.Context, h Handle) error
}

// ValueController reads and writes numeric range values.
type ValueController interface {
	Value(ctx context.Context, h Handle) (Value, error)
	SetValue(ctx context.Context, h Handle, v float64) error
}

// TextController reads text content and moves the caret and selection.
type TextController interface {
	Text(ctx context.Context, h Handle) (TextState, error)
	SetTextContents(ctx context.Context, h Handle, text string) error
	SetCaret(ctx context.Context, h Handle, offset int) error
	SetSelection(ctx context.Context, h Handle, start, end int) error
}

// SelectionController selects child items of container elements.
type SelectionController interface {
	SelectChild(ctx context.Context, h Handle, index int) error
	DeselectChild(ctx context.Context, h Handle, index int) error
	SelectedCount(ctx context.Context, h Handle) (int, error)
	SelectAll(ctx context.Context, h Handle) error
	ClearSelection(ctx context.Context, h Handle) error
}

// TreeSource is the full accessibility-bus capability set. Implementations
// return an error wrapping ErrInterfaceMissing when an element lacks the
// interface an operation needs, and ErrElementGone when it vanished.
type TreeSource interface {
	TreeReader
	ActionPerformer
	ComponentController
	ValueController
	TextController
	SelectionController
	Close() error
}

// AgentChannel carries requests to the in-process agent of the target
// application.
type AgentChannel interface {
	// Call sends one request and waits for its response. Agent error
	// responses are returned as *protocol.RemoteError.
	Call(ctx context.Context, msgType string, payload any) (protocol.Envelope, error)

	// SocketPath is the socket the channel connects to, for diagnostics.
	SocketPath() string
}
