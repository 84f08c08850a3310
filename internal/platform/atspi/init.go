//go:build linux

package atspi

import (
	"context"

	"github.com/mj1618/uibridge/internal/platform"
)

func init() {
	platform.NewSourceFunc = openSource
}

// openSource returns an untyped nil on failure so callers can compare the
// TreeSource against nil.
func openSource(ctx context.Context, opts platform.SourceOptions) (platform.TreeSource, error) {
	src, err := Open(ctx, opts)
	if err != nil {
		return nil, err
	}
	return src, nil
}
