package tests

import (
	"image/color"

	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

type Kind string

const (
	None        Kind = ""
	IndexSweep  Kind = "index_sweep"
	RGBTest     Kind = "rgb_channels"
	DeviceSweep Kind = "device_sweep"
)

// Kinds lists every runnable test.
var Kinds = []Kind{IndexSweep, RGBTest, DeviceSweep}

// Geometry is the part of the registry a test needs.
type Geometry interface {
	AllLayouts() []*layout.DeviceLayout
	LedRegion(id layout.LedID, local bool) (layout.Rect, bool, error)
}

type Plan struct {
	Kind Kind
	Hold int // frames per step, at least 1
}

type Runner struct {
	plan  Plan
	step  int
	frame int
}

func NewRunner(plan Plan) *Runner {
	if plan.Hold < 1 {
		plan.Hold = 1
	}
	return &Runner{plan: plan}
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step paints the current step onto c; returns false when complete.
func (r *Runner) Step(g Geometry, c *render.Canvas) bool {
	c.Fill(color.NRGBA{A: 255})

	switch r.plan.Kind {
	case IndexSweep:
		leds := addressable(g)
		if r.step >= len(leds) {
			return false
		}
		rect, ok, err := g.LedRegion(leds[r.step], false)
		if err != nil || !ok {
			return false
		}
		c.FillRect(rect.Image(), color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	case RGBTest:
		if r.step >= 3 {
			return false
		}
		c.Fill([]color.NRGBA{
			{R: 255, A: 255},
			{G: 255, A: 255},
			{B: 255, A: 255},
		}[r.step])
	case DeviceSweep:
		all := g.AllLayouts()
		if r.step >= len(all) {
			return false
		}
		c.FillRect(all[r.step].Bounds().Image(), color.NRGBA{G: 255, B: 255, A: 255}) // cyan
	default:
		return false
	}

	r.frame++
	if r.frame >= r.plan.Hold {
		r.frame = 0
		r.step++
	}
	return true
}

// addressable lists every LED that samples the canvas, device by device in
// index order.
func addressable(g Geometry) []layout.LedID {
	var out []layout.LedID
	for _, d := range g.AllLayouts() {
		for _, led := range d.Group.Leds() {
			if _, ok := d.Region(led); ok {
				out = append(out, layout.NewLedID(d.Key.Type, d.Key.Index, led))
			}
		}
	}
	return out
}
