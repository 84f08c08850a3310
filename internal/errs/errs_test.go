package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsByKind(t *testing.T) {
	err := NotFound("get_element", "node %d not in tree", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrNoSuchAction))
	assert.Equal(t, "get_element: node 7 not in tree", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindTransport, "ping", cause)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, Wrap(KindTransport, "ping", nil))
}

func TestMap(t *testing.T) {
	sentinel := errors.New("custom missing")
	RegisterClassifier(func(err error) (Kind, bool) {
		if errors.Is(err, sentinel) {
			return KindNotSupported, true
		}
		return "", false
	})

	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{"classified keeps kind", NotFound("", "x"), KindNotFound},
		{"deadline becomes timeout", context.DeadlineExceeded, KindTimeout},
		{"registered classifier", fmt.Errorf("wrap: %w", sentinel), KindNotSupported},
		{"unknown becomes transport", errors.New("eof"), KindTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map("op", tt.in)
			require.Error(t, got)
			assert.Equal(t, tt.want, KindOf(got))
		})
	}

	assert.Nil(t, Map("op", nil))
	assert.ErrorIs(t, Map("op", context.Canceled), context.Canceled)
}

func TestMapAddsOp(t *testing.T) {
	err := Map("click_element", NotFound("", "node 3"))
	assert.Equal(t, "click_element: node 3", err.Error())
}

func TestWithOpReplacesOp(t *testing.T) {
	err := WithOp("click_element", NotFound("resolve", "no element with id 9"))
	assert.Equal(t, "click_element: no element with id 9", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindTransport, KindOf(WithOp("ping", errors.New("reset"))))
}
