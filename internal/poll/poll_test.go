package poll

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/errs"
)

func TestUntilSatisfiedImmediately(t *testing.T) {
	start := time.Now()
	v, err := Until(context.Background(), Options{Interval: time.Hour}, func(context.Context) (int, bool, error) {
		return 7, true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestUntilSatisfiedLater(t *testing.T) {
	var n atomic.Int32
	v, err := Until(context.Background(), Options{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func(context.Context) (int32, bool, error) {
			c := n.Add(1)
			return c, c >= 3, nil
		})
	require.NoError(t, err)
	assert.Equal(t, int32(3), v)
}

func TestUntilTimeout(t *testing.T) {
	opts := Options{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}
	start := time.Now()
	_, err := Until(context.Background(), opts, func(context.Context) (string, bool, error) {
		return "still loading", false, nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	var te *TimeoutError[string]
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "still loading", te.Last)
	assert.GreaterOrEqual(t, te.Polls, 2)
	assert.GreaterOrEqual(t, elapsed, opts.Timeout)
	assert.Less(t, elapsed, opts.Timeout+opts.Interval+100*time.Millisecond)
}

func TestUntilBoundsSlowProbe(t *testing.T) {
	opts := Options{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond}
	var n atomic.Int32
	start := time.Now()
	_, err := Until(context.Background(), opts, func(ctx context.Context) (string, bool, error) {
		if n.Add(1) == 1 {
			return "first", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(400 * time.Millisecond):
			return "late", false, nil
		}
	})
	elapsed := time.Since(start)

	var te *TimeoutError[string]
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, "first", te.Last)
	assert.Less(t, elapsed, opts.Timeout+opts.Interval+100*time.Millisecond)
}

func TestUntilNotFoundIsNotYet(t *testing.T) {
	var n atomic.Int32
	v, err := Until(context.Background(), Options{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func(context.Context) (bool, bool, error) {
			if n.Add(1) < 3 {
				return false, false, errs.NotFound("get_element", "no element with id 4")
			}
			return true, true, nil
		})
	require.NoError(t, err)
	assert.True(t, v)
}

func TestUntilOtherErrorsAbort(t *testing.T) {
	boom := errs.New(errs.KindTargetUnavailable, "get_ui_tree", "gone")
	var n atomic.Int32
	_, err := Until(context.Background(), Options{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func(context.Context) (int, bool, error) {
			n.Add(1)
			return 0, false, boom
		})
	assert.ErrorIs(t, err, errs.ErrTargetUnavailable)
	assert.Equal(t, int32(1), n.Load())
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, err := Until(ctx, Options{Timeout: 10 * time.Second, Interval: time.Second},
		func(context.Context) (int, bool, error) { return 0, false, nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultInterval, o.Interval)
}
