package grad

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

func TestGradSweepsHueAlongX(t *testing.T) {
	c := render.NewCanvas(4, 1)
	g := New("grad")
	g.ApplyPreset("X")
	g.Paint(c, 0)

	first := c.At(0, 0)
	assert.Equal(t, uint8(255), first.R, "hue 0 is red")
	assert.Zero(t, first.G)
	assert.NotEqual(t, first, c.At(2, 0))
}

func TestGradRotatesOverTime(t *testing.T) {
	c := render.NewCanvas(2, 2)
	g := New("grad")
	g.ApplyPreset("Rainbow")

	g.Paint(c, 0)
	a := c.Clone()
	g.Paint(c, 2.5)
	assert.NotEqual(t, a.Image().Pix, c.Image().Pix)
}
