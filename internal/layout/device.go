package layout

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

// Output receives a device's LED colors as packed RGB, one triple per LED
// in ascending LED index order. led.Driver satisfies it.
type Output interface {
	Write(rgb []byte) error
}

// DeviceLayout places one physical device on the canvas and owns its LED
// geometry.
type DeviceLayout struct {
	Key      DeviceKey
	Name     string
	Location image.Point
	Size     image.Point
	Group    *VirtualGroup

	out Output

	mu     sync.RWMutex
	frame  *image.NRGBA
	colors []color.NRGBA
}

func NewDeviceLayout(key DeviceKey, name string, loc, size image.Point, g *VirtualGroup, out Output) *DeviceLayout {
	if g == nil {
		g = NewVirtualGroup()
	}
	return &DeviceLayout{
		Key:      key,
		Name:     name,
		Location: loc,
		Size:     size,
		Group:    g,
		out:      out,
	}
}

// Bounds is the canvas-space region the device samples.
func (d *DeviceLayout) Bounds() Rect {
	return R(d.Location.X, d.Location.Y, d.Size.X, d.Size.Y)
}

func (d *DeviceLayout) Output() Output { return d.out }

// UpdateColors takes the device's slice of the frame, already cropped to its
// bounds, stores it as the current state and forwards per-LED colors to the
// output.
func (d *DeviceLayout) UpdateColors(bm *image.NRGBA) error {
	if bm == nil {
		return validationError("update colors", "device %s: nil bitmap", d.Key)
	}
	if got := bm.Rect.Size(); got != d.Size {
		return validationError("update colors", "device %s: bitmap %v, want %v", d.Key, got, d.Size)
	}

	frame := render.Crop(bm, bm.Rect)

	leds := d.Group.Leds()
	colors := make([]color.NRGBA, 0, len(leds))
	rgb := make([]byte, 0, len(leds)*3)
	for _, led := range leds {
		r, ok := d.Group.RegionFor(led)
		if !ok {
			continue
		}
		c := render.Average(frame, r.Image())
		colors = append(colors, c)
		rgb = append(rgb, c.R, c.G, c.B)
	}

	d.mu.Lock()
	d.frame = frame
	d.colors = colors
	d.mu.Unlock()

	if d.out != nil {
		if err := d.out.Write(rgb); err != nil {
			return fmt.Errorf("device %s: write: %w", d.Key, err)
		}
	}
	return nil
}

// LedName returns the human-readable name of led.
func (d *DeviceLayout) LedName(led int16) (string, error) {
	n, ok := d.Group.Name(led)
	if !ok {
		return "", &Error{Kind: ErrLookup, Op: "led name", Msg: fmt.Sprintf("device %s has no led %d", d.Key, led)}
	}
	return n, nil
}

// Region returns the device-local rectangle of led.
func (d *DeviceLayout) Region(led int16) (Rect, bool) {
	return d.Group.RegionFor(led)
}

// Colors returns a copy of the last colors sent, one per addressable LED.
func (d *DeviceLayout) Colors() []color.NRGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]color.NRGBA, len(d.colors))
	copy(out, d.colors)
	return out
}

// Frame returns a copy of the last bitmap received, or nil before the first
// frame.
func (d *DeviceLayout) Frame() *image.NRGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.frame == nil {
		return nil
	}
	out := image.NewNRGBA(d.frame.Rect)
	copy(out.Pix, d.frame.Pix)
	return out
}
