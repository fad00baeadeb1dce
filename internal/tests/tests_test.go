package tests

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-layout/internal/config"
	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

func registry(t *testing.T) *layout.Registry {
	t.Helper()
	s := config.Default()
	s.Devices = map[uint8][]config.Device{
		1: {{
			Name: "bar",
			Size: config.Size{Width: 3, Height: 1},
			Grid: &config.Grid{Cols: 3, Rows: 1, CellW: 1, CellH: 1},
			Leds: []config.Led{{ID: 9, Name: "badge"}},
		}},
		2: {{
			Name:     "pad",
			Location: config.Point{X: 3, Y: 0},
			Size:     config.Size{Width: 1, Height: 1},
			Leds:     []config.Led{{ID: 0, Rect: config.Rect{W: 1, H: 1}}},
		}},
	}
	r := layout.NewRegistry(config.Static{Settings: s})
	require.NoError(t, r.Initialize())
	return r
}

func TestIndexSweepVisitsEveryAddressableLed(t *testing.T) {
	reg := registry(t)
	run := NewRunner(Plan{Kind: IndexSweep})
	c := reg.NewCanvas()
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}

	var lit []int
	for run.Step(reg, c) {
		for x := 0; x < c.Width; x++ {
			if c.At(x, 0) == white {
				lit = append(lit, x)
			}
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3}, lit)
}

func TestRGBTestHoldsEachPhase(t *testing.T) {
	reg := registry(t)
	run := NewRunner(Plan{Kind: RGBTest, Hold: 2})
	c := render.NewCanvas(1, 1)

	var reds int
	steps := 0
	for run.Step(reg, c) {
		steps++
		if c.At(0, 0).R == 255 {
			reds++
		}
	}
	assert.Equal(t, 6, steps)
	assert.Equal(t, 2, reds)
}

func TestDeviceSweep(t *testing.T) {
	reg := registry(t)
	run := NewRunner(Plan{Kind: DeviceSweep})
	c := reg.NewCanvas()

	require.True(t, run.Step(reg, c))
	assert.Equal(t, uint8(255), c.At(2, 0).G)
	assert.Zero(t, c.At(3, 0).G)

	require.True(t, run.Step(reg, c))
	assert.Zero(t, c.At(2, 0).G)
	assert.Equal(t, uint8(255), c.At(3, 0).G)

	assert.False(t, run.Step(reg, c))
	assert.False(t, NewRunner(Plan{}).Step(reg, c))
}
