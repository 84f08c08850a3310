package platform

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/model"
)

// Handle is an accessibility source's opaque reference to one element.
type Handle string

// Accessibility interface names an element may implement.
const (
	InterfaceAction       = "Action"
	InterfaceComponent    = "Component"
	InterfaceValue        = "Value"
	InterfaceText         = "Text"
	InterfaceEditableText = "EditableText"
	InterfaceSelection    = "Selection"
)

var (
	// ErrInterfaceMissing means the element does not implement the
	// interface the operation needs.
	ErrInterfaceMissing = errors.New("accessibility interface not implemented")
	// ErrElementGone means the element no longer exists.
	ErrElementGone = errors.New("element no longer exists")
	// ErrRejected means the source refused an otherwise valid request.
	ErrRejected = errors.New("request rejected by accessibility source")
	// ErrSourceUnavailable means the accessibility bus or target could not
	// be reached.
	ErrSourceUnavailable = errors.New("accessibility source unavailable")
)

func init() {
	errs.RegisterClassifier(func(err error) (errs.Kind, bool) {
		switch {
		case errors.Is(err, ErrInterfaceMissing), errors.Is(err, ErrRejected):
			return errs.KindNotSupported, true
		case errors.Is(err, ErrElementGone):
			return errs.KindNotFound, true
		case errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrUnsupported):
			return errs.KindTargetUnavailable, true
		}
		return "", false
	})
}

// MissingInterface returns an error wrapping ErrInterfaceMissing.
func MissingInterface(iface string) error {
	return fmt.Errorf("%w: %s", ErrInterfaceMissing, iface)
}

// StateSet is the subset of accessibility states the bridge reports.
type StateSet struct {
	Visible   bool
	Showing   bool
	Enabled   bool
	Sensitive bool
	Focusable bool
	Focused   bool
	Checkable bool
	Checked   bool
	Pressed   bool
	Selected  bool
	Editable  bool
	Defunct   bool
}

// ElementInfo is the per-element snapshot returned by TreeReader.Element.
type ElementInfo struct {
	Role        string // raw role name from the source
	Name        string
	Description string
	States      StateSet
	Bounds      *model.Bounds
	Interfaces  []string
}

// Implements reports whether the element exposes iface.
func (e ElementInfo) Implements(iface string) bool {
	for _, i := range e.Interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// Value is a numeric range reading.
type Value struct {
	Current float64 `yaml:"current" json:"current"`
	Min     float64 `yaml:"min"     json:"min"`
	Max     float64 `yaml:"max"     json:"max"`
	Step    float64 `yaml:"step"    json:"step"`
}

// TextRange is a half-open character range.
type TextRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end"   json:"end"`
}

// TextState is the text content and cursor state of an element.
type TextState struct {
	Text       string      `yaml:"text"                 json:"text"`
	CharCount  int         `yaml:"char_count"           json:"char_count"`
	Caret      int         `yaml:"caret"                json:"caret"`
	Selections []TextRange `yaml:"selections,omitempty" json:"selections,omitempty"`
}

// SourceOptions selects the target application on the accessibility bus.
type SourceOptions struct {
	AppName     string        // Match the application's accessible name
	PID         int           // Match by process id (0 = unset)
	CallTimeout time.Duration // Per-call timeout applied by the source
}

// ParseBBox parses a "x,y,w,h" string into Bounds.
func ParseBBox(s string) (*model.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid bbox %q: expected x,y,w,h", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bbox %q: %w", s, err)
		}
		vals[i] = v
	}
	return &model.Bounds{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
