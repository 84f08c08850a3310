package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Request types.
const (
	TypePing               = "ping"
	TypeMoveMouse          = "move_mouse"
	TypeClick              = "click"
	TypeDoubleClick        = "double_click"
	TypeDrag               = "drag"
	TypeKeyboardInput      = "keyboard_input"
	TypeScroll             = "scroll"
	TypeTakeScreenshot     = "take_screenshot"
	TypeCropRegion         = "crop_region"
	TypeHighlight          = "highlight"
	TypeClearHighlights    = "clear_highlights"
	TypeGetFrameStats      = "get_frame_stats"
	TypeStartPerfRecording = "start_perf_recording"
	TypeStopPerfRecording  = "stop_perf_recording"
	TypeGetPerfReport      = "get_perf_report"
	TypeGetLogs            = "get_logs"
	TypeClearLogs          = "clear_logs"
)

// Response types.
const (
	TypePong        = "pong"
	TypeOK          = "ok"
	TypeError       = "error"
	TypeScreenshot  = "screenshot"
	TypeHighlighted = "highlighted"
	TypeFrameStats  = "frame_stats"
	TypePerfReport  = "perf_report"
	TypeLogs        = "logs"
)

// Error codes carried by ErrorPayload.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNoRecording    = "no_recording"
	CodeNotComplete    = "not_complete"
	CodeUnsupported    = "unsupported"
	CodeCaptureTimeout = "capture_timeout"
	CodeInternal       = "internal"
)

// MouseButton names a pointer button on the wire.
type MouseButton string

const (
	MouseLeft   MouseButton = "left"
	MouseRight  MouseButton = "right"
	MouseMiddle MouseButton = "middle"
)

// ParseMouseButton converts a user-supplied name to a MouseButton. The empty
// string means left.
func ParseMouseButton(s string) (MouseButton, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return MouseLeft, nil
	case "right":
		return MouseRight, nil
	case "middle":
		return MouseMiddle, nil
	default:
		return MouseLeft, fmt.Errorf("unknown mouse button: %q (expected left, right, or middle)", s)
	}
}

type PongPayload struct {
	Version string `json:"version"`
}

type PointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ClickPayload struct {
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Button MouseButton `json:"button,omitempty"`
}

type DragPayload struct {
	StartX float64     `json:"start_x"`
	StartY float64     `json:"start_y"`
	EndX   float64     `json:"end_x"`
	EndY   float64     `json:"end_y"`
	Button MouseButton `json:"button,omitempty"`
}

type KeyboardPayload struct {
	Key string `json:"key"`
}

type ScrollPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	DeltaX float64 `json:"delta_x"`
	DeltaY float64 `json:"delta_y"`
}

type ScreenshotRequest struct {
	// Scale resizes the capture; 0 or 1 keeps native size.
	Scale float64 `json:"scale,omitempty"`
}

type RegionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ScreenshotPayload struct {
	Data   string `json:"data"` // base64
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type HighlightPayload struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
	Color      [4]uint8 `json:"color"`
	DurationMs int64    `json:"duration_ms"`
	Label      string   `json:"label,omitempty"`
}

type HighlightedPayload struct {
	Handle string `json:"handle"`
}

type FrameStatsPayload struct {
	FPS         float64 `json:"fps"`
	FrameTimeMs float64 `json:"frame_time_ms"`
	MinMs       float64 `json:"min_ms"`
	MeanMs      float64 `json:"mean_ms"`
	MaxMs       float64 `json:"max_ms"`
	SampleCount int     `json:"sample_count"`
}

type PerfRecordingPayload struct {
	DurationMs int64 `json:"duration_ms"`
}

type PerfReportPayload struct {
	DurationMs     int64   `json:"duration_ms"`
	TotalFrames    int     `json:"total_frames"`
	AvgFPS         float64 `json:"avg_fps"`
	AvgFrameTimeMs float64 `json:"avg_frame_time_ms"`
	MinFrameTimeMs float64 `json:"min_frame_time_ms"`
	MaxFrameTimeMs float64 `json:"max_frame_time_ms"`
	P95FrameTimeMs float64 `json:"p95_frame_time_ms"`
	P99FrameTimeMs float64 `json:"p99_frame_time_ms"`
}

type LogsRequest struct {
	Level string `json:"level,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type LogEntry struct {
	Level       string `json:"level"`
	Target      string `json:"target"`
	Message     string `json:"message"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type LogsPayload struct {
	Entries []LogEntry `json:"entries"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RemoteError is an error response returned by the agent.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agent error (%s): %s", e.Code, e.Message)
}

// RemoteCode returns the agent error code carried by err, or "".
func RemoteCode(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
