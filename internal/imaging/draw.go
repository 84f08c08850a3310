package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mj1618/uibridge/internal/model"
)

// Glyph metrics of basicfont.Face7x13.
const (
	glyphWidth  = 7
	glyphHeight = 13
)

// LabelMode controls what text is drawn on each annotated node.
type LabelMode int

const (
	// LabelIDs draws "[id]" node ids.
	LabelIDs LabelMode = iota
	// LabelCenters draws "(x,y)" screen-absolute centre coordinates.
	LabelCenters
)

var (
	annotateBox     = color.NRGBA{R: 255, A: 100}
	annotateText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	annotateOutline = color.RGBA{A: 200}
)

// Annotate draws a box and label for each node with bounds. origin is the
// screen rectangle the image shows; node bounds are converted to image
// pixels by the ratio of image size to origin size.
func Annotate(img image.Image, nodes []model.Node, origin model.Bounds, mode LabelMode) *image.RGBA {
	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	ib := img.Bounds()
	scaleX, scaleY := 1.0, 1.0
	if origin.Width > 0 {
		scaleX = float64(ib.Dx()) / origin.Width
	}
	if origin.Height > 0 {
		scaleY = float64(ib.Dy()) / origin.Height
	}

	for _, n := range nodes {
		if n.Bounds == nil || n.Bounds.Empty() {
			continue
		}
		b := *n.Bounds
		x := ib.Min.X + int((b.X-origin.X)*scaleX)
		y := ib.Min.Y + int((b.Y-origin.Y)*scaleY)
		w := int(b.Width * scaleX)
		h := int(b.Height * scaleY)

		DrawRect(rgba, image.Rect(x, y, x+w, y+h), annotateBox, 1)

		var label string
		switch mode {
		case LabelCenters:
			cx, cy := b.Center()
			label = fmt.Sprintf("(%d,%d)", int(cx), int(cy))
		default:
			label = fmt.Sprintf("[%d]", n.ID)
		}
		DrawLabel(rgba, label, x+w/2, y+h/2, annotateText, annotateOutline)
	}
	return rgba
}

// DrawRect draws an outline of the given thickness inside r, clipped to
// the image.
func DrawRect(img draw.Image, r image.Rectangle, c color.Color, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	if thickness < 1 {
		thickness = 1
	}
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), // top
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), // left
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(r), src, image.Point{}, draw.Over)
	}
}

// FillRect blends c over r.
func FillRect(img draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// DrawLabel draws text centred on (x, y) with a one-pixel outline.
func DrawLabel(img draw.Image, text string, x, y int, textColor, outlineColor color.Color) {
	offsetX := x - len(text)*glyphWidth/2
	offsetY := y + glyphHeight/2

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			drawString(img, text, offsetX+dx, offsetY+dy, outlineColor)
		}
	}
	drawString(img, text, offsetX, offsetY, textColor)
}

func drawString(img draw.Image, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
