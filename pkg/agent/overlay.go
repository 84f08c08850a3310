package agent

import (
	"image"
	"image/color"
	"image/draw"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mj1618/uibridge/internal/imaging"
)

// Outline thickness of highlight rectangles, in pixels.
const highlightThickness = 3

// Highlight is one overlay rectangle. A zero Expires never expires.
type Highlight struct {
	Handle  string
	Rect    image.Rectangle
	Color   color.NRGBA
	Label   string
	Created time.Time
	Expires time.Time
}

// Overlay holds highlight rectangles drawn on top of the host's frame.
type Overlay struct {
	mu      sync.Mutex
	entries map[string]Highlight
	now     func() time.Time
}

func NewOverlay() *Overlay {
	return &Overlay{entries: make(map[string]Highlight), now: time.Now}
}

// Add registers a highlight and returns its handle. A non-positive
// duration keeps it until cleared.
func (o *Overlay) Add(r image.Rectangle, c color.NRGBA, d time.Duration, label string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	h := Highlight{
		Handle:  uuid.NewString(),
		Rect:    r,
		Color:   c,
		Label:   label,
		Created: now,
	}
	if d > 0 {
		h.Expires = now.Add(d)
	}
	o.entries[h.Handle] = h
	return h.Handle
}

// Remove drops one highlight. It reports whether the handle existed.
func (o *Overlay) Remove(handle string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.entries[handle]
	delete(o.entries, handle)
	return ok
}

// Clear drops every highlight.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[string]Highlight)
}

// Active prunes expired highlights and returns the rest, oldest first.
func (o *Overlay) Active(now time.Time) []Highlight {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Highlight, 0, len(o.entries))
	for k, h := range o.entries {
		if !h.Expires.IsZero() && !now.Before(h.Expires) {
			delete(o.entries, k)
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

var (
	labelText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelOutline = color.RGBA{A: 200}
)

// Draw renders the active highlights onto dst: a translucent fill, a solid
// outline, and the label above the rectangle.
func (o *Overlay) Draw(dst draw.Image, now time.Time) {
	for _, h := range o.Active(now) {
		fill := h.Color
		fill.A /= 4
		imaging.FillRect(dst, h.Rect, fill)
		imaging.DrawRect(dst, h.Rect, h.Color, highlightThickness)
		if h.Label != "" {
			cx := h.Rect.Min.X + h.Rect.Dx()/2
			imaging.DrawLabel(dst, h.Label, cx, h.Rect.Min.Y-10, labelText, labelOutline)
		}
	}
}
