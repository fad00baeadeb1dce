package led

import "sync"

// Sim keeps the last frame in memory. Useful headless and in tests.
type Sim struct {
	mu     sync.Mutex
	pixels int
	last   []byte
	count  int
	closed bool
}

func NewSim(pixels int) *Sim { return &Sim{pixels: pixels} }

func (s *Sim) Write(rgb []byte) error {
	if err := checkLen(rgb, s.pixels); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.last = append(s.last[:0], rgb...)
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Last returns a copy of the most recent frame.
func (s *Sim) Last() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.last...)
}

// Count is the number of frames written so far.
func (s *Sim) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
