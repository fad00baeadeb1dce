package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradientCanvas(w, h int) *Canvas {
	c := NewCanvas(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 60), B: uint8(255 - x*10), A: 200})
		}
	}
	return c
}

func TestApplyBrightnessIdentity(t *testing.T) {
	c := gradientCanvas(5, 3)
	before := c.Clone()
	require.NoError(t, c.ApplyBrightness(1.0))
	assert.Equal(t, before.Image().Pix, c.Image().Pix)
}

func TestApplyBrightnessZero(t *testing.T) {
	c := gradientCanvas(5, 3)
	require.NoError(t, c.ApplyBrightness(0))
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			p := c.At(x, y)
			assert.Equal(t, color.NRGBA{A: 200}, p)
		}
	}
}

func TestApplyBrightnessScales(t *testing.T) {
	c := NewCanvas(1, 1)
	c.Set(0, 0, color.NRGBA{R: 255, G: 100, B: 3, A: 255})
	require.NoError(t, c.ApplyBrightness(0.5))
	assert.Equal(t, color.NRGBA{R: 128, G: 50, B: 2, A: 255}, c.At(0, 0))
}

func TestApplyBrightnessRejectsOutOfRange(t *testing.T) {
	for _, f := range []float64{-0.01, 1.0001, 7, math.NaN(), math.Inf(1)} {
		c := gradientCanvas(2, 2)
		before := c.Clone()
		err := c.ApplyBrightness(f)
		assert.ErrorIs(t, err, ErrValidation, "factor %v", f)
		assert.Equal(t, before.Image().Pix, c.Image().Pix)
	}
}

func TestSubRegion(t *testing.T) {
	c := gradientCanvas(6, 4)

	bm, err := c.SubRegion(image.Rect(2, 1, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), bm.Bounds())
	assert.Equal(t, c.At(2, 1), bm.NRGBAAt(0, 0))
	assert.Equal(t, c.At(4, 2), bm.NRGBAAt(2, 1))

	// The copy is independent of the canvas.
	bm.SetNRGBA(0, 0, color.NRGBA{})
	assert.NotEqual(t, color.NRGBA{}, c.At(2, 1))

	full, err := c.SubRegion(c.Bounds())
	require.NoError(t, err)
	assert.Equal(t, c.Image().Pix, full.Pix)
}

func TestSubRegionOutOfBounds(t *testing.T) {
	c := NewCanvas(4, 4)
	for _, r := range []image.Rectangle{
		image.Rect(3, 3, 5, 4),
		image.Rect(-1, 0, 2, 2),
		image.Rect(1, 1, 1, 3),
		image.Rect(10, 10, 12, 12),
	} {
		_, err := c.SubRegion(r)
		assert.ErrorIs(t, err, ErrValidation, "%v", r)
	}
}

func TestFillRectClips(t *testing.T) {
	c := NewCanvas(3, 3)
	c.FillRect(image.Rect(2, 2, 10, 10), color.NRGBA{G: 9, A: 255})
	assert.Equal(t, color.NRGBA{G: 9, A: 255}, c.At(2, 2))
	assert.Equal(t, color.NRGBA{A: 255}, c.At(1, 1))
}

func TestAverage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 20, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 30, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 40, A: 255})

	assert.Equal(t, color.NRGBA{R: 25, A: 255}, Average(img, img.Rect))
	assert.Equal(t, color.NRGBA{R: 20, A: 255}, Average(img, image.Rect(1, 0, 5, 1)))
	assert.Equal(t, color.NRGBA{}, Average(img, image.Rect(5, 5, 6, 6)))
}

func TestMixAlpha(t *testing.T) {
	a := NewCanvas(1, 1)
	b := NewCanvas(1, 1)
	dst := NewCanvas(1, 1)
	a.Set(0, 0, color.NRGBA{R: 255, A: 255})
	b.Set(0, 0, color.NRGBA{B: 255, A: 255})

	Mix(dst, a, b, 0.5)
	p := dst.At(0, 0)
	if p.R < 126 || p.R > 129 || p.B < 126 || p.B > 129 {
		t.Fatalf("expected ~purple at alpha=0.5, got %#v", p)
	}
	Mix(dst, a, b, 1)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, dst.At(0, 0))
}

func TestPackRGB(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(1, 0, color.NRGBA{R: 1, G: 2, B: 3, A: 4})
	assert.Equal(t, []byte{0, 0, 0, 1, 2, 3}, c.RGB())
	assert.Equal(t, c.Image().Pix, FromImage(c.Image()).Image().Pix)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.SetRGBA(1, 0, color.RGBA{R: 90, G: 40, B: 7, A: 255})
	from := FromImage(rgba)
	assert.Equal(t, color.NRGBA{R: 90, G: 40, B: 7, A: 255}, from.At(1, 0))
	assert.Equal(t, 2, from.Width)
}
