package telemetry

import (
	"sync"
	"time"
)

// DefaultFrameCapacity keeps roughly two seconds of samples at 60 fps.
const DefaultFrameCapacity = 120

// FrameSample is one rendered frame.
type FrameSample struct {
	Seq        uint64
	DurationMs float64
}

// FrameStats summarizes the live contents of a FrameBuffer.
type FrameStats struct {
	FPS         float64 `json:"fps" yaml:"fps"`
	LastMs      float64 `json:"frame_time_ms" yaml:"frame_time_ms"`
	MinMs       float64 `json:"min_ms" yaml:"min_ms"`
	MeanMs      float64 `json:"mean_ms" yaml:"mean_ms"`
	MaxMs       float64 `json:"max_ms" yaml:"max_ms"`
	SampleCount int     `json:"sample_count" yaml:"sample_count"`
}

// FrameBuffer is a ring of frame durations written once per frame by the
// host and read by the agent's request handler.
type FrameBuffer struct {
	mu   sync.Mutex
	ring *Ring[FrameSample]
	seq  uint64
}

func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = DefaultFrameCapacity
	}
	return &FrameBuffer{ring: NewRing[FrameSample](capacity)}
}

// Push records one frame duration.
func (b *FrameBuffer) Push(d time.Duration) {
	b.mu.Lock()
	b.seq++
	b.ring.Push(FrameSample{Seq: b.seq, DurationMs: float64(d) / float64(time.Millisecond)})
	b.mu.Unlock()
}

// Samples copies the live samples, oldest first.
func (b *FrameBuffer) Samples() []FrameSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Snapshot()
}

// Stats computes FPS and min/mean/max over the live samples. It does not
// modify the buffer.
func (b *FrameBuffer) Stats() FrameStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.ring.Len()
	if n == 0 {
		return FrameStats{}
	}
	first := b.ring.At(0).DurationMs
	st := FrameStats{MinMs: first, MaxMs: first, SampleCount: n}
	var sum float64
	for i := 0; i < n; i++ {
		d := b.ring.At(i).DurationMs
		sum += d
		if d < st.MinMs {
			st.MinMs = d
		}
		if d > st.MaxMs {
			st.MaxMs = d
		}
	}
	st.MeanMs = sum / float64(n)
	st.LastMs = b.ring.At(n - 1).DurationMs
	if st.MeanMs > 0 {
		st.FPS = 1000 / st.MeanMs
	}
	return st
}
