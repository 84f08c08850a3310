// Package errs defines the failure taxonomy surfaced to automation
// controllers. Every accessibility-source or transport fault is mapped into
// one of these kinds before it leaves the dispatcher.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindTransport         Kind = "transport"
	KindNotFound          Kind = "not_found"
	KindNotSupported      Kind = "not_supported"
	KindNoSuchAction      Kind = "no_such_action"
	KindNotFocused        Kind = "not_focused"
	KindTimeout           Kind = "timeout"
	KindTargetUnavailable Kind = "target_unavailable"
	KindInvalidArgument   Kind = "invalid_argument"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrTransport         = &Error{Kind: KindTransport}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrNotSupported      = &Error{Kind: KindNotSupported}
	ErrNoSuchAction      = &Error{Kind: KindNoSuchAction}
	ErrNotFocused        = &Error{Kind: KindNotFocused}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrTargetUnavailable = &Error{Kind: KindTargetUnavailable}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
)

// Error is a classified failure. Op names the controller-facing operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// New returns an error of kind k.
func New(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err as kind k. A nil err yields nil.
func Wrap(k Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: k, Op: op, Err: err}
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// NotSupported is shorthand for New(KindNotSupported, ...).
func NotSupported(op, format string, args ...any) *Error {
	return New(KindNotSupported, op, format, args...)
}

// InvalidArgument is shorthand for New(KindInvalidArgument, ...).
func InvalidArgument(op, format string, args ...any) *Error {
	return New(KindInvalidArgument, op, format, args...)
}

// KindOf returns the kind carried by err, or "" when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classifier maps a foreign error to a kind. It returns false when it does
// not recognise err.
type Classifier func(err error) (Kind, bool)

var classifiers []Classifier

// RegisterClassifier adds a mapping consulted by Map. Packages that own
// sentinel errors register themselves from init.
func RegisterClassifier(c Classifier) {
	classifiers = append(classifiers, c)
}

// Map converts any error into the taxonomy. Already classified errors keep
// their kind but gain op if they had none. Unknown errors become Transport.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" {
			return &Error{Kind: e.Kind, Op: op, Message: e.Message, Err: e.Err}
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	for _, c := range classifiers {
		if k, ok := c(err); ok {
			return &Error{Kind: k, Op: op, Err: err}
		}
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// WithOp classifies err like Map and reports op as the failing operation,
// replacing any op set further down.
func WithOp(op string, err error) error {
	err = Map(op, err)
	var e *Error
	if errors.As(err, &e) && e.Op != op {
		return &Error{Kind: e.Kind, Op: op, Message: e.Message, Err: e.Err}
	}
	return err
}
