package agent

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/imaging"
	"github.com/mj1618/uibridge/pkg/protocol"
	"github.com/mj1618/uibridge/pkg/telemetry"
)

// requestError carries a wire error code.
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.code + ": " + e.msg }

func invalid(format string, args ...any) error {
	return &requestError{code: protocol.CodeInvalidRequest, msg: fmt.Sprintf(format, args...)}
}

// handler answers one request with a response type and payload.
type handler func(a *Agent, ctx context.Context, req protocol.Envelope) (string, any, error)

var handlers = map[string]handler{
	protocol.TypePing:               handlePing,
	protocol.TypeMoveMouse:          handleMove,
	protocol.TypeClick:              handleClick(InputClick),
	protocol.TypeDoubleClick:        handleClick(InputDoubleClick),
	protocol.TypeDrag:               handleDrag,
	protocol.TypeKeyboardInput:      handleKey,
	protocol.TypeScroll:             handleScroll,
	protocol.TypeTakeScreenshot:     handleScreenshot,
	protocol.TypeCropRegion:         handleCrop,
	protocol.TypeHighlight:          handleHighlight,
	protocol.TypeClearHighlights:    handleClearHighlights,
	protocol.TypeGetFrameStats:      handleFrameStats,
	protocol.TypeStartPerfRecording: handleStartPerf,
	protocol.TypeStopPerfRecording:  handleStopPerf,
	protocol.TypeGetPerfReport:      handlePerfReport,
	protocol.TypeGetLogs:            handleGetLogs,
	protocol.TypeClearLogs:          handleClearLogs,
}

// handle dispatches one request. Failures become error responses; they
// never close the connection.
func (a *Agent) handle(ctx context.Context, req protocol.Envelope) protocol.Envelope {
	h, ok := handlers[req.Type]
	var (
		respType string
		payload  any
		err      error
	)
	if !ok {
		err = invalid("unknown request type %q", req.Type)
	} else {
		respType, payload, err = h(a, ctx, req)
	}
	if err != nil {
		code := errorCode(err)
		a.log.Debug("request failed", "type", req.Type, "code", code, "err", err)
		respType, payload = protocol.TypeError, protocol.ErrorPayload{Code: code, Message: err.Error()}
	}
	env, err := protocol.NewEnvelope(respType, req.RequestID, payload)
	if err != nil {
		env, _ = protocol.NewEnvelope(protocol.TypeError, req.RequestID,
			protocol.ErrorPayload{Code: protocol.CodeInternal, Message: err.Error()})
	}
	return env
}

func errorCode(err error) string {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.code
	case errors.Is(err, protocol.ErrMalformedPayload):
		return protocol.CodeInvalidRequest
	case errors.Is(err, telemetry.ErrNoRecordingActive):
		return protocol.CodeNoRecording
	case errors.Is(err, telemetry.ErrNotYetComplete):
		return protocol.CodeNotComplete
	case errors.Is(err, errCaptureTimeout), errors.Is(err, context.DeadlineExceeded):
		return protocol.CodeCaptureTimeout
	}
	return protocol.CodeInternal
}

func decode[T any](req protocol.Envelope) (T, error) {
	var p T
	err := req.DecodePayload(&p)
	return p, err
}

func handlePing(_ *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	return protocol.TypePong, protocol.PongPayload{Version: protocol.Version}, nil
}

func handleMove(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.PointPayload](req)
	if err != nil {
		return "", nil, err
	}
	a.queueInput(InputEvent{Kind: InputMove, X: p.X, Y: p.Y})
	return protocol.TypeOK, nil, nil
}

func handleClick(kind InputKind) handler {
	return func(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
		p, err := decode[protocol.ClickPayload](req)
		if err != nil {
			return "", nil, err
		}
		btn, err := protocol.ParseMouseButton(string(p.Button))
		if err != nil {
			return "", nil, invalid("%v", err)
		}
		a.queueInput(InputEvent{Kind: kind, X: p.X, Y: p.Y, Button: btn})
		return protocol.TypeOK, nil, nil
	}
}

func handleDrag(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.DragPayload](req)
	if err != nil {
		return "", nil, err
	}
	btn, err := protocol.ParseMouseButton(string(p.Button))
	if err != nil {
		return "", nil, invalid("%v", err)
	}
	a.queueInput(InputEvent{Kind: InputDrag, X: p.StartX, Y: p.StartY, EndX: p.EndX, EndY: p.EndY, Button: btn})
	return protocol.TypeOK, nil, nil
}

func handleKey(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.KeyboardPayload](req)
	if err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(p.Key) == "" {
		return "", nil, invalid("key is required")
	}
	a.queueInput(InputEvent{Kind: InputKey, Key: p.Key})
	return protocol.TypeOK, nil, nil
}

func handleScroll(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.ScrollPayload](req)
	if err != nil {
		return "", nil, err
	}
	a.queueInput(InputEvent{Kind: InputScroll, X: p.X, Y: p.Y, DeltaX: p.DeltaX, DeltaY: p.DeltaY})
	return protocol.TypeOK, nil, nil
}

func handleScreenshot(a *Agent, ctx context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.ScreenshotRequest](req)
	if err != nil {
		return "", nil, err
	}
	if p.Scale < 0 || p.Scale > 4 {
		return "", nil, invalid("scale %v out of range (0, 4]", p.Scale)
	}
	img, err := a.capture(ctx)
	if err != nil {
		return "", nil, err
	}
	return screenshotPayload(imaging.Scale(img, p.Scale))
}

func handleCrop(a *Agent, ctx context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.RegionPayload](req)
	if err != nil {
		return "", nil, err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return "", nil, invalid("region must have positive width and height")
	}
	img, err := a.capture(ctx)
	if err != nil {
		return "", nil, err
	}
	cropped, err := imaging.Crop(img, imaging.Rect(img, p.X, p.Y, p.Width, p.Height))
	if err != nil {
		return "", nil, invalid("%v", err)
	}
	return screenshotPayload(cropped)
}

func screenshotPayload(img image.Image) (string, any, error) {
	data, err := imaging.EncodeBase64(img)
	if err != nil {
		return "", nil, err
	}
	b := img.Bounds()
	return protocol.TypeScreenshot, protocol.ScreenshotPayload{
		Data:   data,
		Format: "png",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

func handleHighlight(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.HighlightPayload](req)
	if err != nil {
		return "", nil, err
	}
	if p.Width <= 0 || p.Height <= 0 {
		return "", nil, invalid("highlight must have positive width and height")
	}
	r := image.Rect(int(p.X), int(p.Y), int(p.X+p.Width), int(p.Y+p.Height))
	c := color.NRGBA{R: p.Color[0], G: p.Color[1], B: p.Color[2], A: p.Color[3]}
	handle := a.overlay.Add(r, c, millis(p.DurationMs), p.Label)
	return protocol.TypeHighlighted, protocol.HighlightedPayload{Handle: handle}, nil
}

// maxRequestDuration caps durations given in milliseconds.
const maxRequestDuration = 24 * time.Hour

// millis converts ms to a duration, clamped to maxRequestDuration so huge
// values cannot overflow into a negative or unbounded duration.
func millis(ms int64) time.Duration {
	if ms > int64(maxRequestDuration/time.Millisecond) {
		return maxRequestDuration
	}
	return time.Duration(ms) * time.Millisecond
}

func handleClearHighlights(a *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	a.overlay.Clear()
	return protocol.TypeOK, nil, nil
}

func handleFrameStats(a *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	st := a.frames.Stats()
	return protocol.TypeFrameStats, protocol.FrameStatsPayload{
		FPS:         st.FPS,
		FrameTimeMs: st.LastMs,
		MinMs:       st.MinMs,
		MeanMs:      st.MeanMs,
		MaxMs:       st.MaxMs,
		SampleCount: st.SampleCount,
	}, nil
}

func handleStartPerf(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.PerfRecordingPayload](req)
	if err != nil {
		return "", nil, err
	}
	if p.DurationMs < 0 {
		return "", nil, invalid("duration_ms must not be negative")
	}
	a.perf.Start(millis(p.DurationMs))
	return protocol.TypeOK, nil, nil
}

func handleStopPerf(a *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	a.perf.Stop()
	return protocol.TypeOK, nil, nil
}

func handlePerfReport(a *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	r, err := a.perf.Report()
	if err != nil {
		return "", nil, err
	}
	return protocol.TypePerfReport, protocol.PerfReportPayload(r), nil
}

func handleGetLogs(a *Agent, _ context.Context, req protocol.Envelope) (string, any, error) {
	p, err := decode[protocol.LogsRequest](req)
	if err != nil {
		return "", nil, err
	}
	if p.Limit < 0 {
		return "", nil, invalid("limit must not be negative")
	}
	recs := a.logs.Get(p.Level, p.Limit)
	entries := make([]protocol.LogEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, protocol.LogEntry(r))
	}
	return protocol.TypeLogs, protocol.LogsPayload{Entries: entries}, nil
}

func handleClearLogs(a *Agent, _ context.Context, _ protocol.Envelope) (string, any, error) {
	a.logs.Clear()
	return protocol.TypeOK, nil, nil
}
