//go:build linux

package atspi

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mj1618/uibridge/internal/platform"
)

func TestNewSourceFailureIsUntypedNil(t *testing.T) {
	t.Setenv("AT_SPI_BUS_ADDRESS", "unix:path="+filepath.Join(t.TempDir(), "missing.sock"))

	src, err := platform.NewSource(context.Background(), platform.SourceOptions{})
	if err == nil {
		t.Fatal("expected an error for an unreachable bus")
	}
	if !errors.Is(err, platform.ErrSourceUnavailable) {
		t.Errorf("got %v, want ErrSourceUnavailable", err)
	}
	if src != nil {
		t.Errorf("got non-nil source %#v on error", src)
	}
}
