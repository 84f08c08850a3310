package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/channel"
	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/pkg/protocol"
)

// call sends one agent request expecting want and decodes into dst.
func (d *Dispatcher) call(ctx context.Context, op, msgType string, payload any, want string, dst any) error {
	if err := d.needAgent(op); err != nil {
		return err
	}
	if err := channel.Expect(ctx, d.agent, msgType, payload, want, dst); err != nil {
		return errs.WithOp(op, err)
	}
	return nil
}

// input sends a coordinate or keyboard event. The UI may change, so the
// tree cache is dropped.
func (d *Dispatcher) input(ctx context.Context, op, msgType string, payload any) error {
	if err := d.call(ctx, op, msgType, payload, protocol.TypeOK, nil); err != nil {
		return err
	}
	if d.ix != nil {
		d.ix.Invalidate()
	}
	return nil
}

// ClickAt clicks at window coordinates.
func (d *Dispatcher) ClickAt(ctx context.Context, x, y float64, button string) error {
	btn, err := parseButton("click_at", button)
	if err != nil {
		return err
	}
	return d.input(ctx, "click_at", protocol.TypeClick, protocol.ClickPayload{X: x, Y: y, Button: btn})
}

// DoubleClick double-clicks at window coordinates.
func (d *Dispatcher) DoubleClick(ctx context.Context, x, y float64, button string) error {
	btn, err := parseButton("double_click", button)
	if err != nil {
		return err
	}
	return d.input(ctx, "double_click", protocol.TypeDoubleClick, protocol.ClickPayload{X: x, Y: y, Button: btn})
}

// Hover moves the pointer without clicking.
func (d *Dispatcher) Hover(ctx context.Context, x, y float64) error {
	return d.input(ctx, "hover", protocol.TypeMoveMouse, protocol.PointPayload{X: x, Y: y})
}

// Drag presses at the start point and releases at the end point.
func (d *Dispatcher) Drag(ctx context.Context, startX, startY, endX, endY float64, button string) error {
	btn, err := parseButton("drag", button)
	if err != nil {
		return err
	}
	return d.input(ctx, "drag", protocol.TypeDrag, protocol.DragPayload{
		StartX: startX, StartY: startY, EndX: endX, EndY: endY, Button: btn,
	})
}

// KeyboardInput sends a key or text to the focused widget.
func (d *Dispatcher) KeyboardInput(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return errs.InvalidArgument("keyboard_input", "key is required")
	}
	return d.input(ctx, "keyboard_input", protocol.TypeKeyboardInput, protocol.KeyboardPayload{Key: key})
}

// Scroll scrolls at window coordinates.
func (d *Dispatcher) Scroll(ctx context.Context, x, y, deltaX, deltaY float64) error {
	return d.input(ctx, "scroll", protocol.TypeScroll, protocol.ScrollPayload{X: x, Y: y, DeltaX: deltaX, DeltaY: deltaY})
}

// TakeScreenshot captures the whole window. scale 0 keeps native size.
func (d *Dispatcher) TakeScreenshot(ctx context.Context, scale float64) (protocol.ScreenshotPayload, error) {
	const op = "take_screenshot"
	if scale < 0 || scale > 4 {
		return protocol.ScreenshotPayload{}, errs.InvalidArgument(op, "scale %v out of range (0, 4]", scale)
	}
	var shot protocol.ScreenshotPayload
	err := d.call(ctx, op, protocol.TypeTakeScreenshot, protocol.ScreenshotRequest{Scale: scale}, protocol.TypeScreenshot, &shot)
	return shot, err
}

// ScreenshotElement captures the element's bounds.
func (d *Dispatcher) ScreenshotElement(ctx context.Context, id uint64) (protocol.ScreenshotPayload, error) {
	const op = "screenshot_element"
	b, err := d.bounds(ctx, op, id)
	if err != nil {
		return protocol.ScreenshotPayload{}, err
	}
	if b.Empty() {
		return protocol.ScreenshotPayload{}, errs.InvalidArgument(op, "element %d has empty bounds", id)
	}
	return d.crop(ctx, op, b.X, b.Y, b.Width, b.Height)
}

// ScreenshotRegion captures a rectangle of the window.
func (d *Dispatcher) ScreenshotRegion(ctx context.Context, x, y, w, h float64) (protocol.ScreenshotPayload, error) {
	const op = "screenshot_region"
	if w <= 0 || h <= 0 {
		return protocol.ScreenshotPayload{}, errs.InvalidArgument(op, "width and height must be positive")
	}
	return d.crop(ctx, op, x, y, w, h)
}

func (d *Dispatcher) crop(ctx context.Context, op string, x, y, w, h float64) (protocol.ScreenshotPayload, error) {
	var shot protocol.ScreenshotPayload
	err := d.call(ctx, op, protocol.TypeCropRegion, protocol.RegionPayload{X: x, Y: y, Width: w, Height: h}, protocol.TypeScreenshot, &shot)
	return shot, err
}

// Highlight describes an overlay request. Color is "#RRGGBB" or
// "#RRGGBBAA"; empty fields take the defaults.
type Highlight struct {
	Color    string
	Duration time.Duration
	Label    string
}

func (h Highlight) payload(op string, x, y, w, ht float64) (protocol.HighlightPayload, error) {
	c, err := protocol.ParseColor(h.Color)
	if err != nil {
		return protocol.HighlightPayload{}, errs.InvalidArgument(op, "%v", err)
	}
	if h.Duration < 0 {
		return protocol.HighlightPayload{}, errs.InvalidArgument(op, "duration must not be negative")
	}
	ms := h.Duration.Milliseconds()
	if h.Duration == 0 {
		ms = protocol.DefaultHighlightDuration
	}
	return protocol.HighlightPayload{X: x, Y: y, Width: w, Height: ht, Color: c, DurationMs: ms, Label: h.Label}, nil
}

// HighlightElement draws an overlay over the element's bounds and returns
// the overlay handle.
func (d *Dispatcher) HighlightElement(ctx context.Context, id uint64, hl Highlight) (string, error) {
	const op = "highlight_element"
	b, err := d.bounds(ctx, op, id)
	if err != nil {
		return "", err
	}
	return d.highlight(ctx, op, hl, b.X, b.Y, b.Width, b.Height)
}

// HighlightRegion draws an overlay over a rectangle.
func (d *Dispatcher) HighlightRegion(ctx context.Context, x, y, w, h float64, hl Highlight) (string, error) {
	return d.highlight(ctx, "highlight_region", hl, x, y, w, h)
}

func (d *Dispatcher) highlight(ctx context.Context, op string, hl Highlight, x, y, w, h float64) (string, error) {
	if w <= 0 || h <= 0 {
		return "", errs.InvalidArgument(op, "highlight area must have positive width and height")
	}
	p, err := hl.payload(op, x, y, w, h)
	if err != nil {
		return "", err
	}
	var resp protocol.HighlightedPayload
	if err := d.call(ctx, op, protocol.TypeHighlight, p, protocol.TypeHighlighted, &resp); err != nil {
		return "", err
	}
	return resp.Handle, nil
}

// ClearHighlights removes every overlay.
func (d *Dispatcher) ClearHighlights(ctx context.Context) error {
	return d.call(ctx, "clear_highlights", protocol.TypeClearHighlights, nil, protocol.TypeOK, nil)
}

// FrameStats returns live frame timing statistics.
func (d *Dispatcher) FrameStats(ctx context.Context) (protocol.FrameStatsPayload, error) {
	var st protocol.FrameStatsPayload
	err := d.call(ctx, "get_frame_stats", protocol.TypeGetFrameStats, nil, protocol.TypeFrameStats, &st)
	return st, err
}

// StartPerfRecording begins a capture; 0 records until stopped.
func (d *Dispatcher) StartPerfRecording(ctx context.Context, duration time.Duration) error {
	const op = "start_perf_recording"
	if duration < 0 {
		return errs.InvalidArgument(op, "duration must not be negative")
	}
	return d.call(ctx, op, protocol.TypeStartPerfRecording,
		protocol.PerfRecordingPayload{DurationMs: duration.Milliseconds()}, protocol.TypeOK, nil)
}

// StopPerfRecording ends an open-ended capture.
func (d *Dispatcher) StopPerfRecording(ctx context.Context) error {
	return d.call(ctx, "stop_perf_recording", protocol.TypeStopPerfRecording, nil, protocol.TypeOK, nil)
}

// PerfReport returns the summary of the last capture.
func (d *Dispatcher) PerfReport(ctx context.Context) (protocol.PerfReportPayload, error) {
	var r protocol.PerfReportPayload
	err := d.call(ctx, "get_perf_report", protocol.TypeGetPerfReport, nil, protocol.TypePerfReport, &r)
	return r, err
}

// Logs returns captured log entries at or above level, oldest first.
func (d *Dispatcher) Logs(ctx context.Context, level string, limit int) ([]protocol.LogEntry, error) {
	const op = "get_logs"
	if limit < 0 {
		return nil, errs.InvalidArgument(op, "limit must not be negative")
	}
	var resp protocol.LogsPayload
	if err := d.call(ctx, op, protocol.TypeGetLogs, protocol.LogsRequest{Level: level, Limit: limit}, protocol.TypeLogs, &resp); err != nil {
		return nil, err
	}
	if resp.Entries == nil {
		resp.Entries = []protocol.LogEntry{}
	}
	return resp.Entries, nil
}

// ClearLogs empties the agent's log buffer.
func (d *Dispatcher) ClearLogs(ctx context.Context) error {
	return d.call(ctx, "clear_logs", protocol.TypeClearLogs, nil, protocol.TypeOK, nil)
}

// Ping round-trips to the agent and returns its protocol version.
func (d *Dispatcher) Ping(ctx context.Context) (string, error) {
	var p protocol.PongPayload
	err := d.call(ctx, "ping", protocol.TypePing, nil, protocol.TypePong, &p)
	return p.Version, err
}

// ConnectionStatus is the result of CheckConnection.
type ConnectionStatus struct {
	Connected    bool   `yaml:"connected"               json:"connected"`
	AgentVersion string `yaml:"agent_version,omitempty" json:"agent_version,omitempty"`
	Socket       string `yaml:"socket,omitempty"        json:"socket,omitempty"`
	Tree         bool   `yaml:"tree"                    json:"tree"`
}

// CheckConnection pings the agent and probes the accessibility source. An
// unreachable agent is returned as a TargetUnavailable error alongside the
// status, so callers can tell it apart from a healthy empty answer.
func (d *Dispatcher) CheckConnection(ctx context.Context) (ConnectionStatus, error) {
	const op = "check_connection"
	var st ConnectionStatus
	if d.agent != nil {
		st.Socket = d.agent.SocketPath()
	}
	if d.src != nil {
		_, err := d.src.Root(ctx)
		st.Tree = err == nil
	}
	v, err := d.Ping(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrTargetUnavailable) || errors.Is(err, errs.ErrTransport) {
			return st, errs.New(errs.KindTargetUnavailable, op, "agent not reachable at %s: %v", st.Socket, err)
		}
		return st, errs.WithOp(op, err)
	}
	st.Connected = true
	st.AgentVersion = v
	return st, nil
}
