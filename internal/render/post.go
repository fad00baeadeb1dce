package render

import (
	"image"
	"image/color"
	"math"
)

func scale8(v uint8, f float64) uint8 {
	return clamp255(math.Round(float64(v) * f))
}

func clamp255(x float64) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 255 {
		return 255
	}
	return uint8(x)
}

// Average returns the mean color of r within img. Pixels outside img are
// ignored; an empty overlap yields transparent black.
func Average(img *image.NRGBA, r image.Rectangle) color.NRGBA {
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return color.NRGBA{}
	}
	var sr, sg, sb, sa int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			sr += int(p.R)
			sg += int(p.G)
			sb += int(p.B)
			sa += int(p.A)
		}
	}
	n := r.Dx() * r.Dy()
	return color.NRGBA{
		R: uint8((sr + n/2) / n),
		G: uint8((sg + n/2) / n),
		B: uint8((sb + n/2) / n),
		A: uint8((sa + n/2) / n),
	}
}

// Mix blends two equally sized canvases into dst using alpha (0..1).
func Mix(dst, a, b *Canvas, alpha float64) {
	if alpha <= 0 {
		copy(dst.img.Pix, a.img.Pix)
		return
	}
	if alpha >= 1 {
		copy(dst.img.Pix, b.img.Pix)
		return
	}
	n := len(dst.img.Pix)
	if len(a.img.Pix) < n {
		n = len(a.img.Pix)
	}
	if len(b.img.Pix) < n {
		n = len(b.img.Pix)
	}
	af := 1.0 - alpha
	for i := 0; i < n; i++ {
		dst.img.Pix[i] = clamp255(math.Round(float64(a.img.Pix[i])*af + float64(b.img.Pix[i])*alpha))
	}
}
