package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TargetKey is the attribute that sets a record's source tag.
const TargetKey = "target"

// LevelTraceSlog is the slog level captured as TRACE.
const LevelTraceSlog = slog.LevelDebug - 4

// LevelName maps a slog level onto the buffer's level vocabulary.
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return LevelError
	case l >= slog.LevelWarn:
		return LevelWarn
	case l >= slog.LevelInfo:
		return LevelInfo
	case l >= slog.LevelDebug:
		return LevelDebug
	default:
		return LevelTrace
	}
}

// LogHandler mirrors slog records into a LogBuffer and forwards them to an
// optional next handler.
type LogHandler struct {
	buf    *LogBuffer
	next   slog.Handler
	level  slog.Leveler
	target string
	attrs  []slog.Attr
	group  string
}

// NewLogHandler captures records at or above level. next may be nil.
func NewLogHandler(buf *LogBuffer, next slog.Handler, level slog.Leveler) *LogHandler {
	if level == nil {
		level = LevelTraceSlog
	}
	return &LogHandler{buf: buf, next: next, level: level}
}

func (h *LogHandler) Enabled(ctx context.Context, l slog.Level) bool {
	if l >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, l)
}

func (h *LogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		target := h.target
		var sb strings.Builder
		sb.WriteString(r.Message)
		write := func(a slog.Attr) {
			if a.Key == TargetKey {
				target = a.Value.String()
				return
			}
			key := a.Key
			if h.group != "" {
				key = h.group + "." + key
			}
			fmt.Fprintf(&sb, " %s=%v", key, a.Value.Any())
		}
		for _, a := range h.attrs {
			write(a)
		}
		r.Attrs(func(a slog.Attr) bool {
			write(a)
			return true
		})
		rec := LogRecord{Level: LevelName(r.Level), Target: target, Message: sb.String()}
		if !r.Time.IsZero() {
			rec.TimestampMs = r.Time.UnixMilli()
		}
		h.buf.Push(rec)
	}
	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == TargetKey {
			c.target = a.Value.String()
		}
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(attrs)
	}
	return &c
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	if c.target == "" {
		c.target = name
	}
	if c.group == "" {
		c.group = name
	} else {
		c.group = c.group + "." + name
	}
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return &c
}
