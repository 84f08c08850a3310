// Package channel is the bridge side of the agent connection: one
// long-lived unix socket to the agent embedded in the target application,
// with reconnect-on-demand and bounded backoff.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/metrics"
	"github.com/mj1618/uibridge/pkg/protocol"
	"github.com/mj1618/uibridge/pkg/telemetry"
)

const (
	DefaultAppName     = "uibridge"
	DefaultMinBackoff  = 100 * time.Millisecond
	DefaultMaxBackoff  = 2 * time.Second
	DefaultDialTimeout = time.Second
	DefaultCallTimeout = 10 * time.Second
)

// ErrTargetUnavailable means no agent is listening on any candidate socket.
var ErrTargetUnavailable = errors.New("agent not reachable")

func init() {
	errs.RegisterClassifier(func(err error) (errs.Kind, bool) {
		switch {
		case errors.Is(err, ErrTargetUnavailable):
			return errs.KindTargetUnavailable, true
		case errors.Is(err, telemetry.ErrNoRecordingActive):
			return errs.KindNotFound, true
		case errors.Is(err, telemetry.ErrNotYetComplete):
			return errs.KindInvalidArgument, true
		}
		switch protocol.RemoteCode(err) {
		case protocol.CodeUnsupported:
			return errs.KindNotSupported, true
		case protocol.CodeCaptureTimeout:
			return errs.KindTimeout, true
		case protocol.CodeInvalidRequest:
			return errs.KindInvalidArgument, true
		}
		return "", false
	})
}

// SocketCandidates returns the socket paths for app in preference order:
// $XDG_RUNTIME_DIR first when set, then the shared temp directory.
func SocketCandidates(app string) []string {
	if app == "" {
		app = DefaultAppName
	}
	name := app + ".sock"
	var out []string
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		out = append(out, filepath.Join(dir, name))
	}
	return append(out, filepath.Join(os.TempDir(), name))
}

// Options configures a Client.
type Options struct {
	// SocketPath pins a single socket. When empty the candidates for
	// AppName are tried in order.
	SocketPath string
	AppName    string

	DialTimeout time.Duration
	CallTimeout time.Duration // applied when the caller's context has no deadline
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	// ConnectAttempts bounds dial rounds; 0 retries until the context ends.
	ConnectAttempts int
	MaxFrame        int

	// InputLimiter throttles coordinate input requests when set.
	InputLimiter *rate.Limiter

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client is a platform.AgentChannel over a unix socket. One request is in
// flight at a time.
type Client struct {
	opts Options
	log  *slog.Logger

	mu   sync.Mutex
	conn net.Conn
	path string
}

// New returns a Client. It does not dial until the first Call or Connect.
func New(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if opts.MaxFrame <= 0 {
		opts.MaxFrame = protocol.DefaultMaxFrame
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Client{opts: opts, log: log.With("component", "channel")}
}

func (c *Client) candidates() []string {
	if c.opts.SocketPath != "" {
		return []string{c.opts.SocketPath}
	}
	return SocketCandidates(c.opts.AppName)
}

// SocketPath returns the socket of the current connection, or the first
// candidate when not connected.
func (c *Client) SocketPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		return c.path
	}
	return c.candidates()[0]
}

// Connected reports whether a connection is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the agent if not already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensureConn(ctx)
}

// Close drops the connection. A later Call reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked()
}

func (c *Client) dropLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ensureConn dials with doubling backoff. Callers hold c.mu.
func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	backoff := c.opts.MinBackoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTargetUnavailable, err)
		}
		for _, path := range c.candidates() {
			d := net.Dialer{Timeout: c.opts.DialTimeout}
			conn, err := d.DialContext(ctx, "unix", path)
			if err != nil {
				lastErr = err
				continue
			}
			c.conn = conn
			c.path = path
			c.opts.Metrics.Reconnected()
			c.log.Debug("connected to agent", "socket", path, "attempt", attempt)
			return nil
		}
		if c.opts.ConnectAttempts > 0 && attempt >= c.opts.ConnectAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrTargetUnavailable, attempt, lastErr)
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return fmt.Errorf("%w: %w", ErrTargetUnavailable, lastErr)
		}
		backoff *= 2
		if backoff > c.opts.MaxBackoff {
			backoff = c.opts.MaxBackoff
		}
	}
}

// Call sends one request and waits for the matching response. Agent error
// responses come back as errors wrapping *protocol.RemoteError.
func (c *Client) Call(ctx context.Context, msgType string, payload any) (protocol.Envelope, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
		defer cancel()
	}
	if c.opts.InputLimiter != nil && isInput(msgType) {
		if err := c.opts.InputLimiter.Wait(ctx); err != nil {
			return protocol.Envelope{}, err
		}
	}

	req, err := protocol.NewEnvelope(msgType, uuid.NewString(), payload)
	if err != nil {
		return protocol.Envelope{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	reused := c.conn != nil
	if err := c.ensureConn(ctx); err != nil {
		return protocol.Envelope{}, err
	}
	if err := c.send(ctx, req); err != nil {
		c.dropLocked()
		if !reused || ctx.Err() != nil {
			return protocol.Envelope{}, ctxOr(ctx, err)
		}
		// The agent never saw the request; one fresh connection is safe.
		c.log.Debug("stale connection, redialing", "err", err)
		if err := c.ensureConn(ctx); err != nil {
			return protocol.Envelope{}, err
		}
		if err := c.send(ctx, req); err != nil {
			c.dropLocked()
			return protocol.Envelope{}, ctxOr(ctx, err)
		}
	}

	resp, err := c.receive(ctx)
	if err != nil {
		c.dropLocked()
		return protocol.Envelope{}, ctxOr(ctx, fmt.Errorf("read response: %w", err))
	}
	if resp.RequestID != req.RequestID {
		c.dropLocked()
		return protocol.Envelope{}, fmt.Errorf("%w: response %q for request %q",
			protocol.ErrMalformedPayload, resp.RequestID, req.RequestID)
	}
	c.opts.Metrics.ObserveRoundTrip(msgType, time.Since(start))

	if resp.Type == protocol.TypeError {
		var p protocol.ErrorPayload
		if err := resp.DecodePayload(&p); err != nil {
			return protocol.Envelope{}, err
		}
		return protocol.Envelope{}, remoteError(p)
	}
	return resp, nil
}

// Expect calls msgType and decodes a response of type want into dst.
func (c *Client) Expect(ctx context.Context, msgType string, payload any, want string, dst any) error {
	return Expect(ctx, c, msgType, payload, want, dst)
}

func (c *Client) send(ctx context.Context, env protocol.Envelope) error {
	stop := c.armDeadline(ctx)
	defer stop()
	return protocol.Encode(c.conn, env, c.opts.MaxFrame)
}

func (c *Client) receive(ctx context.Context) (protocol.Envelope, error) {
	stop := c.armDeadline(ctx)
	defer stop()
	return protocol.Decode(c.conn, c.opts.MaxFrame)
}

// armDeadline mirrors ctx onto the connection so a blocked read or write
// returns when ctx ends.
func (c *Client) armDeadline(ctx context.Context) func() {
	conn := c.conn
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	} else {
		conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	return func() { stop() }
}

func remoteError(p protocol.ErrorPayload) error {
	re := &protocol.RemoteError{Code: p.Code, Message: p.Message}
	switch p.Code {
	case protocol.CodeNoRecording:
		return fmt.Errorf("%w: %w", telemetry.ErrNoRecordingActive, re)
	case protocol.CodeNotComplete:
		return fmt.Errorf("%w: %w", telemetry.ErrNotYetComplete, re)
	}
	return re
}

// ctxOr prefers the context's error. A connection deadline can fire just
// before the context's own timer does, so an i/o timeout past the context
// deadline counts as DeadlineExceeded.
func ctxOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if dl, ok := ctx.Deadline(); ok && !time.Now().Before(dl) {
			return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}
	return err
}

func isInput(msgType string) bool {
	switch msgType {
	case protocol.TypeMoveMouse, protocol.TypeClick, protocol.TypeDoubleClick,
		protocol.TypeDrag, protocol.TypeKeyboardInput, protocol.TypeScroll:
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
