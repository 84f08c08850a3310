package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
)

// Comparison algorithms.
const (
	AlgorithmMSSIM  = "mssim"
	AlgorithmRMS    = "rms"
	AlgorithmHybrid = "hybrid"
)

// IdenticalThreshold is the score above which two images count as equal.
const IdenticalThreshold = 0.9999

// Comparison is the result of Compare.
type Comparison struct {
	Score     float64 `yaml:"score"               json:"score"`
	Identical bool    `yaml:"identical"           json:"identical"`
	Algorithm string  `yaml:"algorithm"           json:"algorithm"`
	Mismatch  string  `yaml:"mismatch,omitempty"  json:"mismatch,omitempty"`
}

// Compare scores the similarity of a and b in [0, 1] over grayscale.
// Images of different size score 0.
func Compare(a, b image.Image, algorithm string) (Comparison, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgorithmHybrid
	}
	res := Comparison{Algorithm: algorithm}
	if a.Bounds().Size() != b.Bounds().Size() {
		res.Mismatch = fmt.Sprintf("dimension mismatch: %v vs %v", a.Bounds().Size(), b.Bounds().Size())
		return res, nil
	}
	ga, gb := gray(a), gray(b)
	w, h := a.Bounds().Dx(), a.Bounds().Dy()

	switch algorithm {
	case AlgorithmMSSIM:
		res.Score = mssim(ga, gb, w, h)
	case AlgorithmRMS:
		res.Score = rmsScore(ga, gb)
	case AlgorithmHybrid:
		res.Score = (mssim(ga, gb, w, h) + rmsScore(ga, gb)) / 2
	default:
		return Comparison{}, fmt.Errorf("unknown algorithm %q (expected mssim, rms or hybrid)", algorithm)
	}
	res.Identical = res.Score > IdenticalThreshold
	return res, nil
}

// gray returns row-major luma values.
func gray(img image.Image) []float64 {
	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			out = append(out, float64(g.Y))
		}
	}
	return out
}

func rmsScore(a, b []float64) float64 {
	if len(a) == 0 {
		return 1
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1 - math.Sqrt(sum/float64(len(a)))/255
}

const ssimWindow = 8

var (
	ssimC1 = math.Pow(0.01*255, 2)
	ssimC2 = math.Pow(0.03*255, 2)
)

// mssim is the mean SSIM over non-overlapping windows; edge windows are
// clipped to the image.
func mssim(a, b []float64, w, h int) float64 {
	if w == 0 || h == 0 {
		return 1
	}
	var total float64
	var windows int
	for y0 := 0; y0 < h; y0 += ssimWindow {
		for x0 := 0; x0 < w; x0 += ssimWindow {
			x1, y1 := min(x0+ssimWindow, w), min(y0+ssimWindow, h)
			total += ssim(a, b, w, x0, y0, x1, y1)
			windows++
		}
	}
	return total / float64(windows)
}

func ssim(a, b []float64, stride, x0, y0, x1, y1 int) float64 {
	n := float64((x1 - x0) * (y1 - y0))
	var ma, mb float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			ma += a[y*stride+x]
			mb += b[y*stride+x]
		}
	}
	ma /= n
	mb /= n
	var va, vb, cov float64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			da := a[y*stride+x] - ma
			db := b[y*stride+x] - mb
			va += da * da
			vb += db * db
			cov += da * db
		}
	}
	va /= n
	vb /= n
	cov /= n
	return ((2*ma*mb + ssimC1) * (2*cov + ssimC2)) /
		((ma*ma + mb*mb + ssimC1) * (va + vb + ssimC2))
}

// DiffResult is a visual diff of two images.
type DiffResult struct {
	Image   *image.NRGBA
	Changed int
	Total   int
}

var (
	diffChanged = color.NRGBA{R: 255, A: 255}
	diffOutside = color.RGBA{A: 255}
)

// Diff paints pixels that differ red and the rest as translucent grey. The
// output covers the larger extent of both images; pixels outside one image
// compare as opaque black.
func Diff(a, b image.Image) DiffResult {
	ra, rb := ToRGBA(a), ToRGBA(b)
	sa, sb := ra.Bounds().Size(), rb.Bounds().Size()
	w, h := max(sa.X, sb.X), max(sa.Y, sb.Y)
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	res := DiffResult{Image: out, Total: w * h}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pa := pixel(ra, sa, x, y)
			pb := pixel(rb, sb, x, y)
			if pa == pb {
				g := uint8((uint32(pa.R) + uint32(pa.G) + uint32(pa.B)) / 3)
				out.SetNRGBA(x, y, color.NRGBA{R: g, G: g, B: g, A: 128})
				continue
			}
			out.SetNRGBA(x, y, diffChanged)
			res.Changed++
		}
	}
	return res
}

func pixel(img *image.RGBA, size image.Point, x, y int) color.RGBA {
	if x >= size.X || y >= size.Y {
		return diffOutside
	}
	o := img.Bounds().Min
	return img.RGBAAt(o.X+x, o.Y+y)
}
