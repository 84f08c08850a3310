package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/mj1618/uibridge/internal/errs"
)

func TestNewSource_Unsupported(t *testing.T) {
	// Temporarily clear the source func to simulate an unsupported platform
	orig := NewSourceFunc
	NewSourceFunc = nil
	defer func() { NewSourceFunc = orig }()

	_, err := NewSource(context.Background(), SourceOptions{})
	if err == nil {
		t.Fatal("expected error on unsupported platform")
	}
	if err != ErrUnsupported {
		t.Errorf("expected ErrUnsupported, got: %v", err)
	}
	if k := errs.KindOf(errs.Map("get_ui_tree", err)); k != errs.KindTargetUnavailable {
		t.Errorf("unsupported platform maps to %q, want target_unavailable", k)
	}
}

func TestNewSource_UsesRegisteredFunc(t *testing.T) {
	orig := NewSourceFunc
	defer func() { NewSourceFunc = orig }()

	var got SourceOptions
	NewSourceFunc = func(_ context.Context, opts SourceOptions) (TreeSource, error) {
		got = opts
		return nil, errors.New("stop")
	}
	_, _ = NewSource(context.Background(), SourceOptions{AppName: "demo", PID: 42})
	if got.AppName != "demo" || got.PID != 42 {
		t.Errorf("options not forwarded: %+v", got)
	}
}

func TestProviderClose_Nil(t *testing.T) {
	var p *Provider
	if err := p.Close(); err != nil {
		t.Errorf("nil provider Close() = %v", err)
	}
}
