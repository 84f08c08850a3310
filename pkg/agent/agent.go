// Package agent is the in-process half of the bridge. A GUI application
// embeds an Agent, feeds it frame timings and screenshots, drains queued
// input events once per frame, and draws its highlight overlay.
package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mj1618/uibridge/pkg/protocol"
	"github.com/mj1618/uibridge/pkg/telemetry"
)

const (
	DefaultAppName           = "uibridge"
	DefaultScreenshotTimeout = 5 * time.Second
	DefaultInputQueue        = 256
)

// ErrClosed is returned by Serve after Close.
var ErrClosed = errors.New("agent: closed")

// CaptureFunc captures the current frame synchronously.
type CaptureFunc func(ctx context.Context) (image.Image, error)

// Options configures an Agent.
type Options struct {
	// SocketPath pins the listening socket. When empty the first candidate
	// for AppName whose directory exists is used.
	SocketPath string
	AppName    string

	MaxFrame          int
	FrameCapacity     int
	MaxPerfSamples    int
	Logs              telemetry.LogBufferOptions
	InputQueue        int
	ScreenshotTimeout time.Duration

	// Capture, when set, serves screenshot requests directly. Otherwise
	// requests wait for the host to call SubmitScreenshot.
	Capture CaptureFunc

	Logger *slog.Logger
}

// Agent serves bridge requests on a unix socket.
type Agent struct {
	opts Options
	log  *slog.Logger

	frames  *telemetry.FrameBuffer
	perf    *telemetry.Recorder
	logs    *telemetry.LogBuffer
	overlay *Overlay

	inputMu sync.Mutex
	inputs  *telemetry.Ring[InputEvent]
	dropped int

	shotMu      sync.Mutex
	shotWaiters []chan image.Image

	mu     sync.Mutex
	ln     net.Listener
	path   string
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// New returns an Agent. Call Start, or Listen then Serve, to accept
// connections.
func New(opts Options) *Agent {
	if opts.AppName == "" {
		opts.AppName = DefaultAppName
	}
	if opts.MaxFrame <= 0 {
		opts.MaxFrame = protocol.DefaultMaxFrame
	}
	if opts.InputQueue <= 0 {
		opts.InputQueue = DefaultInputQueue
	}
	if opts.ScreenshotTimeout <= 0 {
		opts.ScreenshotTimeout = DefaultScreenshotTimeout
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Agent{
		opts:    opts,
		log:     log.With("component", "agent"),
		frames:  telemetry.NewFrameBuffer(opts.FrameCapacity),
		perf:    telemetry.NewRecorder(opts.MaxPerfSamples),
		logs:    telemetry.NewLogBuffer(opts.Logs),
		overlay: NewOverlay(),
		inputs:  telemetry.NewRing[InputEvent](opts.InputQueue),
		conns:   make(map[net.Conn]struct{}),
	}
}

// SocketPath picks where an agent for app listens: $XDG_RUNTIME_DIR when it
// exists, else the shared temp directory.
func SocketPath(app string) string {
	if app == "" {
		app = DefaultAppName
	}
	name := app + ".sock"
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return filepath.Join(dir, name)
		}
	}
	return filepath.Join(os.TempDir(), name)
}

// Listen binds the socket, removing a stale socket file first.
func (a *Agent) Listen() error {
	path := a.opts.SocketPath
	if path == "" {
		path = SocketPath(a.opts.AppName)
	}
	if err := removeStale(path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}
	a.mu.Lock()
	a.ln = ln
	a.path = path
	a.mu.Unlock()
	a.log.Info("agent listening", "socket", path)
	return nil
}

// removeStale deletes a socket file nobody is accepting on.
func removeStale(path string) error {
	st, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat socket: %w", err)
	}
	if st.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("another agent is listening on %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

// Addr returns the socket path, or "" before Listen.
func (a *Agent) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// Start listens and serves in the background until ctx ends or Close.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.Listen(); err != nil {
		return err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Serve(ctx); err != nil && !errors.Is(err, ErrClosed) {
			a.log.Warn("agent stopped", "err", err)
		}
	}()
	return nil
}

// Serve accepts connections until ctx ends or Close. One goroutine serves
// each connection; a failing connection never stops the listener.
func (a *Agent) Serve(ctx context.Context) error {
	a.mu.Lock()
	ln := a.ln
	a.mu.Unlock()
	if ln == nil {
		return errors.New("agent: Serve called before Listen")
	}
	stop := context.AfterFunc(ctx, func() { a.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if a.isClosed() {
				return ErrClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		if !a.track(conn) {
			conn.Close()
			return ErrClosed
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.untrack(conn)
			a.serveConn(ctx, conn)
		}()
	}
}

func (a *Agent) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Agent) track(c net.Conn) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conns[c] = struct{}{}
	return true
}

func (a *Agent) untrack(c net.Conn) {
	a.mu.Lock()
	delete(a.conns, c)
	a.mu.Unlock()
	c.Close()
}

// serveConn handles requests sequentially. Malformed or oversized frames
// close this connection only.
func (a *Agent) serveConn(ctx context.Context, conn net.Conn) {
	for {
		req, err := protocol.Decode(conn, a.opts.MaxFrame)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				a.log.Debug("closing connection", "err", err)
			}
			return
		}
		resp := a.handle(ctx, req)
		resp.RequestID = req.RequestID
		if err := protocol.Encode(conn, resp, a.opts.MaxFrame); err != nil {
			a.log.Debug("write response", "type", req.Type, "err", err)
			return
		}
	}
}

// Close stops the listener, closes open connections and removes the socket
// file. It waits for connection goroutines to finish.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	ln := a.ln
	path := a.path
	for c := range a.conns {
		c.Close()
	}
	a.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
		if path != "" {
			os.Remove(path)
		}
	}
	a.releaseScreenshotWaiters()
	return err
}

// Wait blocks until Serve and all connection goroutines return.
func (a *Agent) Wait() { a.wg.Wait() }

// RecordFrame feeds one frame duration to the live stats and any running
// perf recording.
func (a *Agent) RecordFrame(dt time.Duration) {
	a.frames.Push(dt)
	a.perf.Record(dt)
}

// DrawOverlay draws active highlights onto the host's frame.
func (a *Agent) DrawOverlay(dst draw.Image) {
	a.overlay.Draw(dst, time.Now())
}

// Overlay exposes the highlight overlay.
func (a *Agent) Overlay() *Overlay { return a.overlay }

// Logs exposes the captured log buffer.
func (a *Agent) Logs() *telemetry.LogBuffer { return a.logs }

// Frames exposes the live frame statistics.
func (a *Agent) Frames() *telemetry.FrameBuffer { return a.frames }

// LogHandler returns a slog.Handler that captures records for get_logs and
// forwards them to next.
func (a *Agent) LogHandler(next slog.Handler) slog.Handler {
	return telemetry.NewLogHandler(a.logs, next, telemetry.LevelTraceSlog)
}
