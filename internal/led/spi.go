package led

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
)

// DefaultFreq is the nrzled bit rate used when none is configured.
const DefaultFreq = 2500 * physic.KiloHertz

// SPI drives a WS281x strip through an SPI port.
type SPI struct {
	mu     sync.Mutex
	port   spi.Port
	dev    *nrzled.Dev
	pixels int
}

// OpenSPI opens the named SPI port ("" picks the first one available).
func OpenSPI(name string, pixels int, freqKHz int) (*SPI, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", name, err)
	}
	freq := DefaultFreq
	if freqKHz > 0 {
		freq = physic.Frequency(freqKHz) * physic.KiloHertz
	}
	s, err := NewSPI(p, pixels, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewSPI wraps an already opened port.
func NewSPI(p spi.Port, pixels int, freq physic.Frequency) (*SPI, error) {
	if pixels < 0 {
		return nil, fmt.Errorf("invalid LED count: %d", pixels)
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: pixels, Channels: 3, Freq: freq})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &SPI{port: p, dev: d, pixels: pixels}, nil
}

func (s *SPI) Write(rgb []byte) error {
	if err := checkLen(rgb, s.pixels); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return errors.New("spi closed")
	}
	if _, err := s.dev.Write(rgb); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

// Close blanks the strip and releases the port.
func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	s.dev = nil
	if c, ok := s.port.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *SPI) String() string {
	return fmt.Sprintf("spi(%d)", s.pixels)
}
