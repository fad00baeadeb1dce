package layout

import (
	"fmt"
	"sort"
)

// VirtualGroup holds the LED geometry of one device: which device-local
// rectangle each LED samples and what the LED is called.
type VirtualGroup struct {
	rects map[int16]Rect
	names map[int16]string
	leds  []int16
}

func NewVirtualGroup() *VirtualGroup {
	return &VirtualGroup{
		rects: map[int16]Rect{},
		names: map[int16]string{},
	}
}

// Add maps led to r and names it. An empty rect registers a named LED with
// no region (decorative or non-addressable lights). An empty name defaults
// to "LED <n>".
func (g *VirtualGroup) Add(led int16, name string, r Rect) {
	if _, ok := g.names[led]; !ok {
		i := sort.Search(len(g.leds), func(i int) bool { return g.leds[i] >= led })
		g.leds = append(g.leds, 0)
		copy(g.leds[i+1:], g.leds[i:])
		g.leds[i] = led
	}
	if name == "" {
		name = fmt.Sprintf("LED %d", led)
	}
	g.names[led] = name
	if r.Empty() {
		delete(g.rects, led)
		return
	}
	g.rects[led] = r
}

// RegionFor returns the device-local rectangle of led. A missing entry is
// expected for sparse maps and is reported through ok.
func (g *VirtualGroup) RegionFor(led int16) (r Rect, ok bool) {
	r, ok = g.rects[led]
	return r, ok
}

func (g *VirtualGroup) Name(led int16) (string, bool) {
	n, ok := g.names[led]
	return n, ok
}

// Leds lists every known LED index in ascending order.
func (g *VirtualGroup) Leds() []int16 {
	out := make([]int16, len(g.leds))
	copy(out, g.leds)
	return out
}

func (g *VirtualGroup) Len() int { return len(g.leds) }

// Regions counts the LEDs that sample the canvas, i.e. the pixels an output
// for this group has to drive.
func (g *VirtualGroup) Regions() int { return len(g.rects) }

// Extent returns the smallest width and height containing every region.
func (g *VirtualGroup) Extent() (w, h int) {
	for _, r := range g.rects {
		if r.X+r.W > w {
			w = r.X + r.W
		}
		if r.Y+r.H > h {
			h = r.Y + r.H
		}
	}
	return w, h
}

// Serpentine describes how a matrix device is wired.
type Serpentine struct {
	XFlipEveryRow bool
}

// GridGroup lays out a cols x rows matrix of cellW x cellH cells. LEDs are
// numbered along the wiring: row by row, flipping direction on odd rows when
// the strip snakes back.
func GridGroup(cols, rows, cellW, cellH int, order Serpentine) *VirtualGroup {
	g := NewVirtualGroup()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			xx := x
			if y%2 == 1 && order.XFlipEveryRow {
				xx = cols - 1 - x
			}
			idx := int16(y*cols + x)
			g.Add(idx, "", R(xx*cellW, y*cellH, cellW, cellH))
		}
	}
	return g
}
