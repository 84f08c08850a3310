// Package poll repeats a probe until it reports a condition, the deadline
// passes or the context ends.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mj1618/uibridge/internal/errs"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// Options bounds a wait. Zero values take the defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// Probe observes the condition once. ok reports whether it holds; v is
// returned to the caller either way.
type Probe[T any] func(ctx context.Context) (v T, ok bool, err error)

// TimeoutError reports an expired wait with the last observation.
type TimeoutError[T any] struct {
	Last    T
	Elapsed time.Duration
	Polls   int
}

func (e *TimeoutError[T]) Error() string {
	return fmt.Sprintf("condition not met after %s (%d polls)", e.Elapsed.Round(time.Millisecond), e.Polls)
}

// Is matches errs.ErrTimeout so callers can test with errors.Is.
func (e *TimeoutError[T]) Is(target error) bool {
	return target == errs.ErrTimeout
}

// Until evaluates probe immediately and then every Interval until it
// reports ok. Each probe runs under a context that ends at the wait's
// deadline. It returns the satisfying observation, a *TimeoutError once
// Timeout has elapsed, or ctx.Err() on cancellation. Probe errors of kind
// NotFound count as "not yet"; any other error ends the wait.
func Until[T any](ctx context.Context, opts Options, probe Probe[T]) (T, error) {
	opts = opts.withDefaults()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	var (
		last  T
		polls int
	)
	for {
		v, ok, err := observe(ctx, deadline, probe)
		polls++
		switch {
		case err == nil:
			last = v
			if ok {
				return v, nil
			}
		case ctx.Err() == nil && !time.Now().Before(deadline):
			// The probe ran into the wait's own deadline.
			return last, &TimeoutError[T]{Last: last, Elapsed: time.Since(start), Polls: polls}
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			var zero T
			return zero, ctxErr(ctx, err)
		case !errors.Is(err, errs.ErrNotFound):
			var zero T
			return zero, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last, &TimeoutError[T]{Last: last, Elapsed: time.Since(start), Polls: polls}
		}
		if err := sleep(ctx, min(opts.Interval, remaining)); err != nil {
			var zero T
			return zero, err
		}
	}
}

// observe runs one probe bounded by the wait's deadline.
func observe[T any](ctx context.Context, deadline time.Time, probe Probe[T]) (T, bool, error) {
	pctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	return probe(pctx)
}

func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
