package agent

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/imaging"
	"github.com/mj1618/uibridge/pkg/protocol"
)

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ub")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "a.sock")
}

func startAgent(t *testing.T, opts Options) *Agent {
	t.Helper()
	if opts.SocketPath == "" {
		opts.SocketPath = socketPath(t)
	}
	a := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Start(ctx))
	t.Cleanup(func() {
		cancel()
		a.Close()
		a.Wait()
	})
	return a
}

func dial(t *testing.T, a *Agent) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", a.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	return conn
}

func call(t *testing.T, conn net.Conn, msgType string, payload any) protocol.Envelope {
	t.Helper()
	req, err := protocol.NewEnvelope(msgType, "req-"+msgType, payload)
	require.NoError(t, err)
	require.NoError(t, protocol.Encode(conn, req, 0))
	resp, err := protocol.Decode(conn, 0)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, resp.RequestID)
	return resp
}

func errorCodeOf(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	require.Equal(t, protocol.TypeError, env.Type)
	var p protocol.ErrorPayload
	require.NoError(t, env.DecodePayload(&p))
	return p.Code
}

func TestPing(t *testing.T) {
	a := startAgent(t, Options{})
	resp := call(t, dial(t, a), protocol.TypePing, nil)
	require.Equal(t, protocol.TypePong, resp.Type)
	var p protocol.PongPayload
	require.NoError(t, resp.DecodePayload(&p))
	assert.Equal(t, protocol.Version, p.Version)
}

func TestInputQueue(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	assert.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeClick, protocol.ClickPayload{X: 10, Y: 20, Button: "right"}).Type)
	assert.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeKeyboardInput, protocol.KeyboardPayload{Key: "Enter"}).Type)
	assert.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeDrag, protocol.DragPayload{StartX: 1, StartY: 2, EndX: 3, EndY: 4}).Type)

	events := a.TakeInputs()
	require.Len(t, events, 3)
	assert.Equal(t, InputEvent{Kind: InputClick, X: 10, Y: 20, Button: protocol.MouseRight}, events[0])
	assert.Equal(t, "Enter", events[1].Key)
	assert.Equal(t, protocol.MouseLeft, events[2].Button)
	assert.Equal(t, 3.0, events[2].EndX)
	assert.Empty(t, a.TakeInputs())
}

func TestInputQueueDropsOldest(t *testing.T) {
	a := New(Options{InputQueue: 2})
	for i := 0; i < 3; i++ {
		a.queueInput(InputEvent{Kind: InputMove, X: float64(i)})
	}
	events := a.TakeInputs()
	require.Len(t, events, 2)
	assert.Equal(t, 1.0, events[0].X)
	assert.Equal(t, 2.0, events[1].X)
}

func TestFailedRequestKeepsConnection(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	assert.Equal(t, protocol.CodeInvalidRequest, errorCodeOf(t, call(t, conn, protocol.TypeClick, protocol.ClickPayload{Button: "thumb"})))
	assert.Equal(t, protocol.CodeInvalidRequest, errorCodeOf(t, call(t, conn, "teleport", nil)))
	assert.Equal(t, protocol.CodeInvalidRequest, errorCodeOf(t, call(t, conn, protocol.TypeKeyboardInput, protocol.KeyboardPayload{})))
	assert.Equal(t, protocol.TypePong, call(t, conn, protocol.TypePing, nil).Type)
}

func TestMalformedFrameClosesOnlyThatConnection(t *testing.T) {
	a := startAgent(t, Options{})
	bad := dial(t, a)
	require.NoError(t, protocol.WriteFrame(bad, []byte("{not json"), 0))
	_, err := protocol.Decode(bad, 0)
	assert.Error(t, err, "agent closes the connection")

	assert.Equal(t, protocol.TypePong, call(t, dial(t, a), protocol.TypePing, nil).Type)
}

func TestScreenshotHandOff(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	go func() {
		for !a.ScreenshotRequested() {
			time.Sleep(5 * time.Millisecond)
		}
		a.SubmitScreenshot(image.NewRGBA(image.Rect(0, 0, 64, 32)))
	}()

	resp := call(t, conn, protocol.TypeTakeScreenshot, protocol.ScreenshotRequest{})
	require.Equal(t, protocol.TypeScreenshot, resp.Type)
	var p protocol.ScreenshotPayload
	require.NoError(t, resp.DecodePayload(&p))
	assert.Equal(t, 64, p.Width)
	assert.Equal(t, 32, p.Height)
	assert.Equal(t, "png", p.Format)

	img, err := imaging.DecodeBase64(p.Data)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestScreenshotCaptureScaleAndCrop(t *testing.T) {
	a := startAgent(t, Options{Capture: func(context.Context) (image.Image, error) {
		return image.NewRGBA(image.Rect(0, 0, 100, 50)), nil
	}})
	conn := dial(t, a)

	var p protocol.ScreenshotPayload
	require.NoError(t, call(t, conn, protocol.TypeTakeScreenshot, protocol.ScreenshotRequest{Scale: 0.5}).DecodePayload(&p))
	assert.Equal(t, 50, p.Width)
	assert.Equal(t, 25, p.Height)

	require.NoError(t, call(t, conn, protocol.TypeCropRegion, protocol.RegionPayload{X: 10, Y: 10, Width: 20, Height: 15}).DecodePayload(&p))
	assert.Equal(t, 20, p.Width)
	assert.Equal(t, 15, p.Height)

	resp := call(t, conn, protocol.TypeCropRegion, protocol.RegionPayload{X: 500, Y: 500, Width: 5, Height: 5})
	assert.Equal(t, protocol.CodeInvalidRequest, errorCodeOf(t, resp))
}

func TestScreenshotTimeout(t *testing.T) {
	a := startAgent(t, Options{ScreenshotTimeout: 50 * time.Millisecond})
	resp := call(t, dial(t, a), protocol.TypeTakeScreenshot, nil)
	assert.Equal(t, protocol.CodeCaptureTimeout, errorCodeOf(t, resp))
	assert.False(t, a.ScreenshotRequested())
}

func TestFrameStatsAndPerf(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	assert.Equal(t, protocol.CodeNoRecording, errorCodeOf(t, call(t, conn, protocol.TypeGetPerfReport, nil)))

	require.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeStartPerfRecording, protocol.PerfRecordingPayload{}).Type)
	for _, ms := range []int{10, 20, 30} {
		a.RecordFrame(time.Duration(ms) * time.Millisecond)
	}

	var st protocol.FrameStatsPayload
	require.NoError(t, call(t, conn, protocol.TypeGetFrameStats, nil).DecodePayload(&st))
	assert.Equal(t, 3, st.SampleCount)
	assert.InDelta(t, 20.0, st.MeanMs, 1e-9)
	assert.InDelta(t, 50.0, st.FPS, 1e-9)

	resp := call(t, conn, protocol.TypeGetPerfReport, nil)
	require.Equal(t, protocol.TypePerfReport, resp.Type)
	var rep protocol.PerfReportPayload
	require.NoError(t, resp.DecodePayload(&rep))
	assert.Equal(t, 3, rep.TotalFrames)
	assert.InDelta(t, 30.0, rep.P99FrameTimeMs, 1e-9)

	assert.Equal(t, protocol.CodeNoRecording, errorCodeOf(t, call(t, conn, protocol.TypeGetPerfReport, nil)), "report ends the capture")

	require.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeStartPerfRecording, protocol.PerfRecordingPayload{DurationMs: 60000}).Type)
	assert.Equal(t, protocol.CodeNotComplete, errorCodeOf(t, call(t, conn, protocol.TypeGetPerfReport, nil)))
}

func TestLogs(t *testing.T) {
	a := startAgent(t, Options{})
	logger := slog.New(a.LogHandler(nil))
	logger.Info("starting")
	logger.Warn("slow frame", "ms", 40)
	logger.With("target", "render").Error("lost device")

	conn := dial(t, a)
	var p protocol.LogsPayload
	require.NoError(t, call(t, conn, protocol.TypeGetLogs, protocol.LogsRequest{Level: "warn"}).DecodePayload(&p))
	require.Len(t, p.Entries, 2)
	assert.Equal(t, "slow frame ms=40", p.Entries[0].Message)
	assert.Equal(t, "render", p.Entries[1].Target)
	assert.Equal(t, "ERROR", p.Entries[1].Level)

	require.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeClearLogs, nil).Type)
	require.NoError(t, call(t, conn, protocol.TypeGetLogs, nil).DecodePayload(&p))
	assert.Empty(t, p.Entries)
}

func TestHighlightRequests(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	resp := call(t, conn, protocol.TypeHighlight, protocol.HighlightPayload{
		X: 5, Y: 5, Width: 10, Height: 10, Color: [4]uint8{255, 0, 0, 200}, DurationMs: 60000, Label: "OK",
	})
	require.Equal(t, protocol.TypeHighlighted, resp.Type)
	var p protocol.HighlightedPayload
	require.NoError(t, resp.DecodePayload(&p))
	assert.NotEmpty(t, p.Handle)
	assert.Len(t, a.Overlay().Active(time.Now()), 1)

	require.Equal(t, protocol.TypeOK, call(t, conn, protocol.TypeClearHighlights, nil).Type)
	assert.Empty(t, a.Overlay().Active(time.Now()))
}

func TestHighlightDurationIsClamped(t *testing.T) {
	a := startAgent(t, Options{})
	conn := dial(t, a)

	resp := call(t, conn, protocol.TypeHighlight, protocol.HighlightPayload{
		X: 0, Y: 0, Width: 10, Height: 10, Color: [4]uint8{0, 255, 0, 200}, DurationMs: math.MaxInt64,
	})
	require.Equal(t, protocol.TypeHighlighted, resp.Type)
	assert.Len(t, a.Overlay().Active(time.Now()), 1)
	assert.Empty(t, a.Overlay().Active(time.Now().Add(maxRequestDuration+time.Minute)))

	assert.Equal(t, maxRequestDuration, millis(math.MaxInt64))
	assert.Equal(t, 1500*time.Millisecond, millis(1500))
}

func TestOverlayExpiry(t *testing.T) {
	o := NewOverlay()
	now := time.Now()
	o.now = func() time.Time { return now }

	short := o.Add(image.Rect(0, 0, 10, 10), color.NRGBA{R: 255, A: 200}, time.Second, "")
	forever := o.Add(image.Rect(0, 0, 10, 10), color.NRGBA{G: 255, A: 200}, 0, "")
	assert.NotEqual(t, short, forever)
	assert.Len(t, o.Active(now), 2)

	active := o.Active(now.Add(2 * time.Second))
	require.Len(t, active, 1)
	assert.Equal(t, forever, active[0].Handle)

	assert.True(t, o.Remove(forever))
	assert.False(t, o.Remove(forever))
	assert.Empty(t, o.Active(now))
}

func TestOverlayDraw(t *testing.T) {
	o := NewOverlay()
	o.Add(image.Rect(10, 10, 30, 30), color.NRGBA{R: 255, A: 255}, 0, "")
	dst := image.NewRGBA(image.Rect(0, 0, 40, 40))
	o.Draw(dst, time.Now())

	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(10, 10), "outline")
	assert.Equal(t, color.RGBA{R: 255, A: 255}, dst.RGBAAt(12, 20), "outline is 3px")
	inner := dst.RGBAAt(20, 20)
	assert.NotZero(t, inner.A, "translucent fill")
	assert.Less(t, inner.A, uint8(255))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(35, 35), "outside untouched")
}

func TestListenRemovesStaleSocket(t *testing.T) {
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())
	_, err = os.Stat(path)
	require.NoError(t, err, "stale socket file left behind")

	a := New(Options{SocketPath: path})
	require.NoError(t, a.Listen())
	require.NoError(t, a.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Close removes the socket")
}

func TestListenRefusesLiveOrForeignPath(t *testing.T) {
	a := startAgent(t, Options{})
	b := New(Options{SocketPath: a.Addr()})
	assert.Error(t, b.Listen(), "another agent is listening")

	file := filepath.Join(filepath.Dir(socketPath(t)), "plain")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	c := New(Options{SocketPath: file})
	assert.Error(t, c.Listen())
}
