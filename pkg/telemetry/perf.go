package telemetry

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultMaxPerfSamples bounds an open-ended capture to ten minutes at 60 fps.
const DefaultMaxPerfSamples = 36000

var (
	ErrNoRecordingActive = errors.New("telemetry: no perf recording active")
	ErrNotYetComplete    = errors.New("telemetry: perf recording not yet complete")
)

// PerfReport summarizes one capture.
type PerfReport struct {
	DurationMs     int64   `json:"duration_ms" yaml:"duration_ms"`
	TotalFrames    int     `json:"total_frames" yaml:"total_frames"`
	AvgFPS         float64 `json:"avg_fps" yaml:"avg_fps"`
	AvgFrameTimeMs float64 `json:"avg_frame_time_ms" yaml:"avg_frame_time_ms"`
	MinFrameTimeMs float64 `json:"min_frame_time_ms" yaml:"min_frame_time_ms"`
	MaxFrameTimeMs float64 `json:"max_frame_time_ms" yaml:"max_frame_time_ms"`
	P95FrameTimeMs float64 `json:"p95_frame_time_ms" yaml:"p95_frame_time_ms"`
	P99FrameTimeMs float64 `json:"p99_frame_time_ms" yaml:"p99_frame_time_ms"`
}

// Recorder captures frame durations for a bounded window, independent of
// the live FrameBuffer.
type Recorder struct {
	mu         sync.Mutex
	maxSamples int
	samples    []float64
	started    time.Time
	duration   time.Duration
	active     bool
	stoppedAt  time.Time
	now        func() time.Time
}

func NewRecorder(maxSamples int) *Recorder {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxPerfSamples
	}
	return &Recorder{maxSamples: maxSamples, now: time.Now}
}

// Start discards any previous capture and begins a new one. A zero
// duration records until Stop or Report.
func (r *Recorder) Start(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = r.samples[:0]
	r.started = r.now()
	r.duration = d
	r.active = true
	r.stoppedAt = time.Time{}
}

// Record adds one frame if a capture is running and its window has not
// elapsed. Samples past the cap are dropped.
func (r *Recorder) Record(dt time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active || !r.stoppedAt.IsZero() {
		return
	}
	if r.duration > 0 && r.now().Sub(r.started) >= r.duration {
		return
	}
	if len(r.samples) >= r.maxSamples {
		return
	}
	r.samples = append(r.samples, float64(dt)/float64(time.Millisecond))
}

// Stop ends the capture, keeping its samples for Report.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active && r.stoppedAt.IsZero() {
		r.stoppedAt = r.now()
	}
}

// Active reports whether a capture has been started and not yet reported.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Report summarizes and ends the capture. A bounded capture must have run
// its full duration unless it was stopped explicitly.
func (r *Recorder) Report() (PerfReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return PerfReport{}, ErrNoRecordingActive
	}
	now := r.now()
	end := r.stoppedAt
	if end.IsZero() {
		if r.duration > 0 && now.Sub(r.started) < r.duration {
			return PerfReport{}, ErrNotYetComplete
		}
		end = now
	}
	elapsed := end.Sub(r.started)
	if r.duration > 0 && elapsed > r.duration {
		elapsed = r.duration
	}
	rep := summarize(r.samples, elapsed)
	r.active = false
	r.samples = nil
	return rep, nil
}

func summarize(samples []float64, elapsed time.Duration) PerfReport {
	rep := PerfReport{DurationMs: elapsed.Milliseconds(), TotalFrames: len(samples)}
	if len(samples) == 0 {
		return rep
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	var sum float64
	for _, s := range sorted {
		sum += s
	}
	rep.AvgFrameTimeMs = sum / float64(len(sorted))
	rep.MinFrameTimeMs = sorted[0]
	rep.MaxFrameTimeMs = sorted[len(sorted)-1]
	rep.P95FrameTimeMs = percentile(sorted, 95)
	rep.P99FrameTimeMs = percentile(sorted, 99)
	if rep.AvgFrameTimeMs > 0 {
		rep.AvgFPS = 1000 / rep.AvgFrameTimeMs
	}
	return rep
}

// percentile uses the nearest-rank method over an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
