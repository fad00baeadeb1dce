package led

import (
	"fmt"

	"github.com/coreman2200/arcaluminis-layout/internal/config"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Open builds the driver described by c for a device with the given number
// of pixels. An empty kind means the device has no output.
func Open(c config.Driver, pixels int) (Driver, error) {
	switch c.Kind {
	case "", "none":
		return nil, nil
	case "sim":
		return NewSim(pixels), nil
	case "console":
		return NewConsole(pixels), nil
	case "spi":
		return OpenSPI(c.Dev, pixels, c.FreqKHz)
	default:
		return nil, fmt.Errorf("unknown driver kind %q", c.Kind)
	}
}

func checkLen(rgb []byte, pixels int) error {
	if len(rgb) != pixels*3 {
		return fmt.Errorf("rgb length %d does not match count %d", len(rgb), pixels)
	}
	return nil
}
