package grad

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisXY
)

// Grad sweeps the hue wheel across the canvas, optionally rotating it over
// time.
type Grad struct {
	name  string
	Axis  Axis
	Speed float64 // hue turns per second
	Value float64 // HSV value, 0..1
}

func New(name string) *Grad { return &Grad{name: name, Value: 1} }

func (g *Grad) Name() string { return g.name }

func (g *Grad) Presets() []string { return []string{"X", "Y", "Diagonal", "Rainbow"} }

func (g *Grad) ApplyPreset(name string) {
	switch name {
	case "X":
		g.Axis, g.Speed = AxisX, 0
	case "Y":
		g.Axis, g.Speed = AxisY, 0
	case "Diagonal":
		g.Axis, g.Speed = AxisXY, 0
	case "Rainbow":
		g.Axis, g.Speed = AxisXY, 0.1
	}
}

func (g *Grad) Paint(c *render.Canvas, t float64) {
	w, h := c.Width, c.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			u := float64(x) / float64(max(1, w-1))
			v := float64(y) / float64(max(1, h-1))
			var p float64
			switch g.Axis {
			case AxisX:
				p = u
			case AxisY:
				p = v
			default:
				p = (u + v) / 2
			}
			hue := math.Mod(p+t*g.Speed, 1.0)
			if hue < 0 {
				hue += 1
			}
			r, gg, b := colorful.Hsv(hue*360, 1, g.Value).Clamped().RGB255()
			c.Set(x, y, color.NRGBA{R: r, G: gg, B: b, A: 255})
		}
	}
}
