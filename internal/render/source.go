package render

import "sort"

// Source paints whole frames. t is seconds since the conductor started.
type Source interface {
	Name() string
	Presets() []string
	ApplyPreset(name string)
	Paint(c *Canvas, t float64)
}

// Sources is a by-name set of frame sources.
type Sources struct{ m map[string]Source }

func NewSources() *Sources { return &Sources{m: map[string]Source{}} }

func (s *Sources) Register(src Source) {
	if src == nil {
		return
	}
	s.m[src.Name()] = src
}

func (s *Sources) Get(name string) (Source, bool) { src, ok := s.m[name]; return src, ok }

// List returns the registered names, sorted.
func (s *Sources) List() []string {
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
