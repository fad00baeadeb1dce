package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ErrValidation marks a rejected canvas operation.
var ErrValidation = errors.New("validation failed")

// Canvas is one composited frame. All devices read their slice of it.
type Canvas struct {
	Width  int
	Height int

	img *image.NRGBA
}

// NewCanvas allocates a black, fully opaque w x h canvas.
func NewCanvas(w, h int) *Canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c := &Canvas{Width: w, Height: h, img: image.NewNRGBA(image.Rect(0, 0, w, h))}
	c.Fill(color.NRGBA{A: 255})
	return c
}

// FromImage copies src into a new canvas anchored at the origin.
func FromImage(src image.Image) *Canvas {
	if n, ok := src.(*image.NRGBA); ok {
		img := Crop(n, n.Rect)
		return &Canvas{Width: img.Rect.Dx(), Height: img.Rect.Dy(), img: img}
	}
	b := src.Bounds()
	c := &Canvas{Width: b.Dx(), Height: b.Dy(), img: image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))}
	xdraw.Copy(c.img, image.Point{}, src, b, xdraw.Src, nil)
	return c
}

// Image exposes the backing bitmap. Writes through it are visible to the canvas.
func (c *Canvas) Image() *image.NRGBA { return c.img }

func (c *Canvas) Bounds() image.Rectangle { return c.img.Rect }

func (c *Canvas) Clone() *Canvas {
	out := &Canvas{Width: c.Width, Height: c.Height, img: image.NewNRGBA(c.img.Rect)}
	copy(out.img.Pix, c.img.Pix)
	return out
}

func (c *Canvas) At(x, y int) color.NRGBA { return c.img.NRGBAAt(x, y) }

func (c *Canvas) Set(x, y int, col color.Color) { c.img.Set(x, y, col) }

func (c *Canvas) Fill(col color.Color) {
	c.FillRect(c.img.Rect, col)
}

// FillRect paints r, clipped to the canvas.
func (c *Canvas) FillRect(r image.Rectangle, col color.Color) {
	xdraw.Draw(c.img, r.Intersect(c.img.Rect), image.NewUniform(col), image.Point{}, xdraw.Src)
}

// ApplyBrightness scales every color channel by f in place. Alpha is kept.
// f must be within [0,1]; 1 leaves pixels untouched and 0 blanks them.
func (c *Canvas) ApplyBrightness(f float64) error {
	if !(f >= 0 && f <= 1) {
		return fmt.Errorf("%w: brightness %v outside [0,1]", ErrValidation, f)
	}
	if f == 1 {
		return nil
	}
	pix := c.img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i+0] = scale8(pix[i+0], f)
		pix[i+1] = scale8(pix[i+1], f)
		pix[i+2] = scale8(pix[i+2], f)
	}
	return nil
}

// SubRegion copies r out of the canvas into a bitmap anchored at (0,0).
func (c *Canvas) SubRegion(r image.Rectangle) (*image.NRGBA, error) {
	if r.Empty() || !r.In(c.img.Rect) {
		return nil, fmt.Errorf("%w: region %v outside canvas %v", ErrValidation, r, c.img.Rect)
	}
	return Crop(c.img, r), nil
}

// Crop copies r (clipped to img) into a new bitmap anchored at (0,0). Pixels
// are copied verbatim, without a premultiplied round trip.
func Crop(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	r = r.Intersect(img.Rect)
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	n := r.Dx() * 4
	for y := 0; y < r.Dy(); y++ {
		src := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+n], img.Pix[src:src+n])
	}
	return dst
}

// RGB packs the canvas row major, three bytes per pixel.
func (c *Canvas) RGB() []byte {
	return PackRGB(c.img)
}

// PackRGB drops alpha and returns the pixels of img row major.
func PackRGB(img *image.NRGBA) []byte {
	b := img.Rect
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := img.NRGBAAt(x, y)
			out = append(out, p.R, p.G, p.B)
		}
	}
	return out
}
