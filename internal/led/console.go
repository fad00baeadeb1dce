package led

import (
	"image"
	"image/color"
	"sync"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"
)

// Console prints each frame as a row of ANSI colored blocks, the fallback
// used when no SPI port is around.
type Console struct {
	mu     sync.Mutex
	drawer display.Drawer
	pixels int
	img    *image.NRGBA
}

func NewConsole(pixels int) *Console {
	return NewConsoleDrawer(screen.New(pixels), pixels)
}

// NewConsoleDrawer draws onto any periph display.
func NewConsoleDrawer(d display.Drawer, pixels int) *Console {
	return &Console{
		drawer: d,
		pixels: pixels,
		img:    image.NewNRGBA(image.Rect(0, 0, pixels, 1)),
	}
}

func (c *Console) Write(rgb []byte) error {
	if err := checkLen(rgb, c.pixels); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for x := 0; x < c.pixels; x++ {
		c.img.SetNRGBA(x, 0, color.NRGBA{R: rgb[x*3], G: rgb[x*3+1], B: rgb[x*3+2], A: 255})
	}
	return c.drawer.Draw(c.drawer.Bounds(), c.img, image.Point{})
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drawer.Halt()
}
