package imaging

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/uibridge/internal/model"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	return img
}

func TestBase64RoundTrip(t *testing.T) {
	src := checker(16, 8)
	s, err := EncodeBase64(src)
	require.NoError(t, err)
	got, err := DecodeBase64(s)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), got.Bounds())

	cmp, err := Compare(src, got, AlgorithmRMS)
	require.NoError(t, err)
	assert.True(t, cmp.Identical)
}

func TestLoad(t *testing.T) {
	data, err := EncodePNG(solid(4, 4, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	path, err := SaveTemp(data)
	require.NoError(t, err)
	defer os.Remove(path)

	img, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = Load("", "")
	assert.Error(t, err)
	_, err = Load("not base64!", "")
	assert.Error(t, err)
}

func TestCrop(t *testing.T) {
	img := checker(20, 20)
	out, err := Crop(img, Rect(img, 2, 3, 5.5, 4))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 6, 4), out.Bounds())

	clipped, err := Crop(img, image.Rect(15, 15, 40, 40))
	require.NoError(t, err)
	assert.Equal(t, 5, clipped.Bounds().Dx())

	_, err = Crop(img, image.Rect(30, 30, 40, 40))
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestScale(t *testing.T) {
	img := checker(40, 20)
	assert.Same(t, img, Scale(img, 1))
	assert.Same(t, img, Scale(img, 0))
	half := Scale(img, 0.5)
	assert.Equal(t, image.Rect(0, 0, 20, 10), half.Bounds())
}

func TestCompare(t *testing.T) {
	a := checker(32, 32)
	for _, algo := range []string{"", AlgorithmMSSIM, AlgorithmRMS, AlgorithmHybrid} {
		res, err := Compare(a, a, algo)
		require.NoError(t, err)
		assert.True(t, res.Identical, algo)
		assert.InDelta(t, 1.0, res.Score, 1e-9, algo)
	}

	white := solid(32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	black := solid(32, 32, color.RGBA{A: 255})
	res, err := Compare(white, black, AlgorithmRMS)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.Score, 1e-9)
	assert.False(t, res.Identical)

	res, err = Compare(a, white, AlgorithmHybrid)
	require.NoError(t, err)
	assert.Less(t, res.Score, 1.0)
	assert.Equal(t, AlgorithmHybrid, res.Algorithm)

	_, err = Compare(a, a, "psnr")
	assert.Error(t, err)
}

func TestCompare_DimensionMismatch(t *testing.T) {
	res, err := Compare(checker(10, 10), checker(12, 10), "")
	require.NoError(t, err)
	assert.Zero(t, res.Score)
	assert.False(t, res.Identical)
	assert.NotEmpty(t, res.Mismatch)
}

func TestDiff(t *testing.T) {
	a := solid(4, 4, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	b := solid(4, 4, color.RGBA{R: 30, G: 60, B: 90, A: 255})
	b.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})

	res := Diff(a, b)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 16, res.Total)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, res.Image.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{R: 60, G: 60, B: 60, A: 128}, res.Image.NRGBAAt(0, 0))
}

func TestDiff_DifferentSizes(t *testing.T) {
	a := solid(4, 2, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	b := solid(2, 3, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	res := Diff(a, b)
	assert.Equal(t, image.Rect(0, 0, 4, 3), res.Image.Bounds())
	// 4 pixels only in a, 2 only in b; the 2 covered by neither match.
	assert.Equal(t, 6, res.Changed)
}

func TestDrawRect(t *testing.T) {
	img := solid(10, 10, color.RGBA{A: 255})
	red := color.RGBA{R: 255, A: 255}
	DrawRect(img, image.Rect(2, 2, 8, 8), red, 2)

	assert.Equal(t, red, img.RGBAAt(2, 2))
	assert.Equal(t, red, img.RGBAAt(3, 5))
	assert.Equal(t, red, img.RGBAAt(7, 7))
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(5, 5), "interior untouched")
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(0, 0))

	DrawRect(img, image.Rect(20, 20, 30, 30), red, 1) // fully outside is a no-op
}

func TestAnnotate(t *testing.T) {
	img := solid(100, 100, color.RGBA{A: 255})
	nodes := []model.Node{
		{ID: 7, Bounds: &model.Bounds{X: 110, Y: 110, Width: 40, Height: 20}},
		{ID: 8}, // no bounds: skipped
	}
	out := Annotate(img, nodes, model.Bounds{X: 100, Y: 100, Width: 100, Height: 100}, LabelIDs)
	assert.NotEqual(t, color.RGBA{A: 255}, out.RGBAAt(10, 10), "box corner drawn")
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(10, 10), "input untouched")
}
