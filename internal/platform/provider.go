package platform

import (
	"context"
	"fmt"
	"runtime"
)

// Provider bundles the two transports the bridge drives.
type Provider struct {
	Source TreeSource
	Agent  AgentChannel
}

// ErrUnsupported is returned when no accessibility source is registered for
// this platform.
var ErrUnsupported = fmt.Errorf("no accessibility source for %s/%s; supported: linux (AT-SPI)", runtime.GOOS, runtime.GOARCH)

// NewSourceFunc is set by platform-specific packages via init().
// See internal/platform/atspi/init.go for the AT-SPI registration.
var NewSourceFunc func(ctx context.Context, opts SourceOptions) (TreeSource, error)

// NewSource opens the accessibility source for the current OS.
func NewSource(ctx context.Context, opts SourceOptions) (TreeSource, error) {
	if NewSourceFunc == nil {
		return nil, ErrUnsupported
	}
	return NewSourceFunc(ctx, opts)
}

// Close releases the source. The agent channel is closed by its owner.
func (p *Provider) Close() error {
	if p == nil || p.Source == nil {
		return nil
	}
	return p.Source.Close()
}
