package telemetry

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultLogCapacity     = 1000
	DefaultLogMaxBytes     = 1 << 20
	DefaultMaxMessageBytes = 4096
	maxFieldBytes          = 256
	truncationMarker       = "…"
)

// Level names, lowest priority first.
const (
	LevelTrace = "TRACE"
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LevelPriority orders levels; unknown names rank as TRACE.
func LevelPriority(level string) int {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelError:
		return 5
	case LevelWarn, "WARNING":
		return 4
	case LevelInfo:
		return 3
	case LevelDebug:
		return 2
	default:
		return 1
	}
}

// LogRecord is one captured log line.
type LogRecord struct {
	Level       string `json:"level" yaml:"level"`
	Target      string `json:"target" yaml:"target"`
	Message     string `json:"message" yaml:"message"`
	TimestampMs int64  `json:"timestamp_ms" yaml:"timestamp_ms"`
}

func (r LogRecord) size() int {
	return len(r.Level) + len(r.Target) + len(r.Message) + 8
}

// LogBufferOptions bounds a LogBuffer.
type LogBufferOptions struct {
	Capacity        int
	MaxBytes        int
	MaxMessageBytes int
}

// LogBuffer keeps the most recent log records under both a count and a
// total-size ceiling.
type LogBuffer struct {
	mu       sync.Mutex
	ring     *Ring[LogRecord]
	bytes    int
	maxBytes int
	maxMsg   int
	maxField int
}

func NewLogBuffer(opts LogBufferOptions) *LogBuffer {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultLogCapacity
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultLogMaxBytes
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if opts.MaxMessageBytes > opts.MaxBytes/2 {
		opts.MaxMessageBytes = opts.MaxBytes / 2
	}
	return &LogBuffer{
		ring:     NewRing[LogRecord](opts.Capacity),
		maxBytes: opts.MaxBytes,
		maxMsg:   opts.MaxMessageBytes,
		maxField: min(maxFieldBytes, opts.MaxBytes/8),
	}
}

// Push stores rec, truncating its fields and evicting the oldest records
// until both ceilings hold. A record that cannot fit even alone is dropped.
func (b *LogBuffer) Push(rec LogRecord) {
	rec.Message = truncateUTF8(rec.Message, b.maxMsg)
	rec.Target = truncateUTF8(rec.Target, b.maxField)
	rec.Level = truncateUTF8(rec.Level, b.maxField)
	if rec.size() > b.maxBytes {
		return
	}
	if rec.TimestampMs == 0 {
		rec.TimestampMs = time.Now().UnixMilli()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for b.ring.Len() > 0 && b.bytes+rec.size() > b.maxBytes {
		old, _ := b.ring.PopFront()
		b.bytes -= old.size()
	}
	if old, evicted := b.ring.Push(rec); evicted {
		b.bytes -= old.size()
	}
	b.bytes += rec.size()
}

// Get returns up to limit of the most recent records at or above minLevel,
// oldest first. An empty minLevel matches everything; limit <= 0 means all.
// The buffer is not modified.
func (b *LogBuffer) Get(minLevel string, limit int) []LogRecord {
	threshold := 0
	if minLevel != "" {
		threshold = LevelPriority(minLevel)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []LogRecord
	for i := b.ring.Len() - 1; i >= 0; i-- {
		rec := b.ring.At(i)
		if LevelPriority(rec.Level) < threshold {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of records held.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Len()
}

// Bytes returns the accounted size of the held records.
func (b *LogBuffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Clear empties the buffer.
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	b.ring.Clear()
	b.bytes = 0
	b.mu.Unlock()
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - len(truncationMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}
