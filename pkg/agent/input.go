package agent

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/mj1618/uibridge/pkg/protocol"
)

// InputKind names a queued input event.
type InputKind string

const (
	InputMove        InputKind = "move"
	InputClick       InputKind = "click"
	InputDoubleClick InputKind = "double_click"
	InputDrag        InputKind = "drag"
	InputKey         InputKind = "key"
	InputScroll      InputKind = "scroll"
)

// InputEvent is one coordinate or keyboard event for the host to replay.
// Coordinates are in the host's logical pixels.
type InputEvent struct {
	Kind   InputKind
	X, Y   float64
	EndX   float64 // drag only
	EndY   float64
	DeltaX float64 // scroll only
	DeltaY float64
	Button protocol.MouseButton
	Key    string
}

// TakeInputs drains queued input events, oldest first. Hosts call it once
// per frame.
func (a *Agent) TakeInputs() []InputEvent {
	a.inputMu.Lock()
	defer a.inputMu.Unlock()
	out := a.inputs.Snapshot()
	a.inputs.Clear()
	if a.dropped > 0 {
		a.log.Warn("input queue overflowed", "dropped", a.dropped)
		a.dropped = 0
	}
	return out
}

// queueInput appends ev; when the queue is full the oldest event is lost.
func (a *Agent) queueInput(ev InputEvent) {
	a.inputMu.Lock()
	defer a.inputMu.Unlock()
	if _, evicted := a.inputs.Push(ev); evicted {
		a.dropped++
	}
}

// ScreenshotRequested reports whether a screenshot request is waiting for
// SubmitScreenshot.
func (a *Agent) ScreenshotRequested() bool {
	a.shotMu.Lock()
	defer a.shotMu.Unlock()
	return len(a.shotWaiters) > 0
}

// SubmitScreenshot hands a captured frame to every waiting request.
func (a *Agent) SubmitScreenshot(img image.Image) {
	a.shotMu.Lock()
	waiters := a.shotWaiters
	a.shotWaiters = nil
	a.shotMu.Unlock()
	for _, ch := range waiters {
		ch <- img
	}
}

func (a *Agent) releaseScreenshotWaiters() {
	a.shotMu.Lock()
	waiters := a.shotWaiters
	a.shotWaiters = nil
	a.shotMu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

func (a *Agent) removeWaiter(ch chan image.Image) {
	a.shotMu.Lock()
	defer a.shotMu.Unlock()
	for i, w := range a.shotWaiters {
		if w == ch {
			a.shotWaiters = append(a.shotWaiters[:i], a.shotWaiters[i+1:]...)
			return
		}
	}
}

// errCaptureTimeout is reported as capture_timeout on the wire.
var errCaptureTimeout = fmt.Errorf("no frame submitted")

// capture returns the current frame, either from Options.Capture or by
// waiting for the host to submit one.
func (a *Agent) capture(ctx context.Context) (image.Image, error) {
	if a.opts.Capture != nil {
		ctx, cancel := context.WithTimeout(ctx, a.opts.ScreenshotTimeout)
		defer cancel()
		return a.opts.Capture(ctx)
	}

	ch := make(chan image.Image, 1)
	a.shotMu.Lock()
	a.shotWaiters = append(a.shotWaiters, ch)
	a.shotMu.Unlock()

	timer := time.NewTimer(a.opts.ScreenshotTimeout)
	defer timer.Stop()
	select {
	case img, ok := <-ch:
		if !ok || img == nil {
			return nil, errCaptureTimeout
		}
		return img, nil
	case <-timer.C:
		a.removeWaiter(ch)
		return nil, fmt.Errorf("%w within %s", errCaptureTimeout, a.opts.ScreenshotTimeout)
	case <-ctx.Done():
		a.removeWaiter(ch)
		return nil, ctx.Err()
	}
}
