package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mj1618/uibridge/internal/dispatch"
	"github.com/mj1618/uibridge/internal/errs"
	"github.com/mj1618/uibridge/internal/imaging"
	"github.com/mj1618/uibridge/pkg/protocol"
)

func (s *Server) clickAt(ctx context.Context, a args) (any, error) {
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	return ack(s.d.ClickAt(ctx, x, y, a.String("button", "")))
}

func (s *Server) doubleClick(ctx context.Context, a args) (any, error) {
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	return ack(s.d.DoubleClick(ctx, x, y, a.String("button", "")))
}

func (s *Server) hover(ctx context.Context, a args) (any, error) {
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	return ack(s.d.Hover(ctx, x, y))
}

func (s *Server) drag(ctx context.Context, a args) (any, error) {
	sx, sy, err := point(a, "start_x", "start_y")
	if err != nil {
		return nil, err
	}
	ex, ey, err := point(a, "end_x", "end_y")
	if err != nil {
		return nil, err
	}
	return ack(s.d.Drag(ctx, sx, sy, ex, ey, a.String("button", "")))
}

func (s *Server) keyboardInput(ctx context.Context, a args) (any, error) {
	return ack(s.d.KeyboardInput(ctx, a.String("key", "")))
}

func (s *Server) scroll(ctx context.Context, a args) (any, error) {
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	dx, err := a.Float("delta_x", 0)
	if err != nil {
		return nil, err
	}
	dy, err := a.Float("delta_y", 0)
	if err != nil {
		return nil, err
	}
	return ack(s.d.Scroll(ctx, x, y, dx, dy))
}

func point(a args, xName, yName string) (float64, float64, error) {
	x, err := a.RequireFloat(xName)
	if err != nil {
		return 0, 0, err
	}
	y, err := a.RequireFloat(yName)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// SavedImage is returned instead of image content when save is set.
type SavedImage struct {
	Path   string `yaml:"path" json:"path"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// screenshot renders a captured image as MCP image content, or writes it
// to a temp file when the caller asked to save it.
func screenshot(a args, shot protocol.ScreenshotPayload, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if !a.Bool("save", false) {
		summary := fmt.Sprintf("%dx%d %s", shot.Width, shot.Height, shot.Format)
		return mcp.NewToolResultImage(summary, shot.Data, "image/"+shot.Format), nil
	}
	data, derr := base64.StdEncoding.DecodeString(shot.Data)
	if derr != nil {
		return nil, errs.Wrap(errs.KindTransport, a.op, fmt.Errorf("decode screenshot: %w", derr))
	}
	path, serr := imaging.SaveTemp(data)
	if serr != nil {
		return nil, errs.Wrap(errs.KindTransport, a.op, serr)
	}
	return SavedImage{Path: path, Width: shot.Width, Height: shot.Height}, nil
}

func (s *Server) takeScreenshot(ctx context.Context, a args) (any, error) {
	scale, err := a.Float("scale", 0)
	if err != nil {
		return nil, err
	}
	shot, err := s.d.TakeScreenshot(ctx, scale)
	return screenshot(a, shot, err)
}

func (s *Server) screenshotElement(ctx context.Context, id uint64, a args) (any, error) {
	shot, err := s.d.ScreenshotElement(ctx, id)
	return screenshot(a, shot, err)
}

func (s *Server) screenshotRegion(ctx context.Context, a args) (any, error) {
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	w, h, err := point(a, "width", "height")
	if err != nil {
		return nil, err
	}
	shot, err := s.d.ScreenshotRegion(ctx, x, y, w, h)
	return screenshot(a, shot, err)
}

// Highlighted carries the overlay handle.
type Highlighted struct {
	Handle string `yaml:"handle" json:"handle"`
}

func highlightArgs(a args) (dispatch.Highlight, error) {
	d, err := a.Millis("duration_ms", 0)
	if err != nil {
		return dispatch.Highlight{}, err
	}
	return dispatch.Highlight{Color: a.String("color", ""), Duration: d, Label: a.String("label", "")}, nil
}

func highlighted(handle string, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return Highlighted{Handle: handle}, nil
}

func (s *Server) highlightElement(ctx context.Context, id uint64, a args) (any, error) {
	hl, err := highlightArgs(a)
	if err != nil {
		return nil, err
	}
	return highlighted(s.d.HighlightElement(ctx, id, hl))
}

func (s *Server) highlightRegion(ctx context.Context, a args) (any, error) {
	hl, err := highlightArgs(a)
	if err != nil {
		return nil, err
	}
	x, y, err := point(a, "x", "y")
	if err != nil {
		return nil, err
	}
	w, h, err := point(a, "width", "height")
	if err != nil {
		return nil, err
	}
	return highlighted(s.d.HighlightRegion(ctx, x, y, w, h, hl))
}

func (s *Server) clearHighlights(ctx context.Context, _ args) (any, error) {
	return ack(s.d.ClearHighlights(ctx))
}

func (s *Server) getFrameStats(ctx context.Context, _ args) (any, error) {
	return done(s.d.FrameStats(ctx))
}

func (s *Server) startPerfRecording(ctx context.Context, a args) (any, error) {
	d, err := a.Millis("duration_ms", 0)
	if err != nil {
		return nil, err
	}
	return ack(s.d.StartPerfRecording(ctx, d))
}

func (s *Server) stopPerfRecording(ctx context.Context, _ args) (any, error) {
	return ack(s.d.StopPerfRecording(ctx))
}

func (s *Server) getPerfReport(ctx context.Context, _ args) (any, error) {
	return done(s.d.PerfReport(ctx))
}

// LogsBody is the result of get_logs.
type LogsBody struct {
	Count   int                 `yaml:"count" json:"count"`
	Entries []protocol.LogEntry `yaml:"entries" json:"entries"`
}

func (s *Server) getLogs(ctx context.Context, a args) (any, error) {
	limit, err := a.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	entries, err := s.d.Logs(ctx, a.String("level", ""), limit)
	if err != nil {
		return nil, err
	}
	return LogsBody{Count: len(entries), Entries: entries}, nil
}

func (s *Server) clearLogs(ctx context.Context, _ args) (any, error) {
	return ack(s.d.ClearLogs(ctx))
}

// Pong is the result of ping.
type Pong struct {
	Version string `yaml:"version" json:"version"`
}

func (s *Server) ping(ctx context.Context, _ args) (any, error) {
	v, err := s.d.Ping(ctx)
	if err != nil {
		return nil, err
	}
	return Pong{Version: v}, nil
}

// checkConnection keeps the status next to a TargetUnavailable error so the
// caller sees which side is down.
func (s *Server) checkConnection(ctx context.Context, _ args) (any, error) {
	st, err := s.d.CheckConnection(ctx)
	if errors.Is(err, errs.ErrTargetUnavailable) {
		return st, err
	}
	return done(st, err)
}
