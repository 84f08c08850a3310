package channel

import (
	"context"
	"fmt"

	"github.com/mj1618/uibridge/internal/platform"
	"github.com/mj1618/uibridge/pkg/protocol"
)

// Expect calls msgType on ch and decodes a response of type want into dst.
// dst may be nil for responses without a payload.
func Expect(ctx context.Context, ch platform.AgentChannel, msgType string, payload any, want string, dst any) error {
	resp, err := ch.Call(ctx, msgType, payload)
	if err != nil {
		return err
	}
	if resp.Type != want {
		return fmt.Errorf("%w: %s answered %q, want %q", protocol.ErrMalformedPayload, msgType, resp.Type, want)
	}
	if dst == nil {
		return nil
	}
	return resp.DecodePayload(dst)
}
