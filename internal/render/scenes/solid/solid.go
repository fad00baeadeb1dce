package solid

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

var presets = map[string]string{
	"Red":   "#ff0000",
	"Green": "#00ff00",
	"Blue":  "#0000ff",
	"White": "#ffffff",
	"Black": "#000000",
}

// Solid fills the canvas with a single color. PulseHz > 0 modulates its
// brightness, handy to check that frames actually flow.
type Solid struct {
	name    string
	c       colorful.Color
	PulseHz float64
}

func New(name string, c colorful.Color) *Solid { return &Solid{name: name, c: c} }

func (s *Solid) Name() string { return s.name }

func (s *Solid) Presets() []string { return []string{"Red", "Green", "Blue", "White", "Black"} }

func (s *Solid) ApplyPreset(name string) {
	if hex, ok := presets[name]; ok {
		_ = s.SetHex(hex)
	}
}

// SetHex switches to a "#rrggbb" color.
func (s *Solid) SetHex(hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return err
	}
	s.c = c
	return nil
}

func (s *Solid) Paint(c *render.Canvas, t float64) {
	col := s.c
	if s.PulseHz > 0 {
		scale := 0.5 + 0.5*math.Sin(2*math.Pi*s.PulseHz*t)
		col = colorful.Color{R: col.R * scale, G: col.G * scale, B: col.B * scale}
	}
	r, g, b := col.Clamped().RGB255()
	c.Fill(color.NRGBA{R: r, G: g, B: b, A: 255})
}
