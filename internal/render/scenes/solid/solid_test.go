package solid

import (
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

func TestSolidPresets(t *testing.T) {
	c := render.NewCanvas(3, 2)
	s := New("solid", colorful.Color{})

	s.ApplyPreset("Blue")
	s.Paint(c, 0)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, c.At(2, 1))

	require.NoError(t, s.SetHex("#102030"))
	s.Paint(c, 0)
	assert.Equal(t, color.NRGBA{R: 0x10, G: 0x20, B: 0x30, A: 255}, c.At(0, 0))

	assert.Error(t, s.SetHex("nope"))
}

func TestSolidPulse(t *testing.T) {
	c := render.NewCanvas(1, 1)
	s := New("solid", colorful.Color{R: 1})
	s.PulseHz = 1

	s.Paint(c, 0.75) // sin(1.5 pi) = -1 → dark
	assert.Equal(t, uint8(0), c.At(0, 0).R)
	s.Paint(c, 0.25)
	assert.Equal(t, uint8(255), c.At(0, 0).R)
}
