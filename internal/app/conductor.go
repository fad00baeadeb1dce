package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
	"github.com/coreman2200/arcaluminis-layout/internal/tests"
)

// Conductor owns the render loop: it asks the active source (or a running
// LED test) for a frame and pushes it through the registry. It is the single
// caller of Registry.PushFrame.
type Conductor struct {
	Reg     *layout.Registry
	Sources *render.Sources
	// OnError, when set, sees every failed frame push.
	OnError func(error)

	log zerolog.Logger

	// frame is held across a whole frame push and across Reload, so an
	// index rebuild never overlaps a frame.
	frame sync.Mutex

	mu        sync.Mutex
	active    render.Source
	next      render.Source
	fadeStart float64
	fadeS     float64
	runner    *tests.Runner
	t0        time.Time
	frames    uint64
}

func NewConductor(reg *layout.Registry, sources *render.Sources, log zerolog.Logger) *Conductor {
	return &Conductor{Reg: reg, Sources: sources, log: log, t0: time.Now()}
}

// Now returns seconds since the conductor was created.
func (c *Conductor) Now() float64 { return time.Since(c.t0).Seconds() }

// SetSource makes the named source active immediately.
func (c *Conductor) SetSource(name, preset string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, err := c.lookup(name, preset)
	if err != nil {
		return err
	}
	c.active = src
	c.next = nil
	return nil
}

// FadeTo crossfades from the active source to the named one over seconds.
func (c *Conductor) FadeTo(name, preset string, seconds float64) error {
	if seconds <= 0 {
		return c.SetSource(name, preset)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	src, err := c.lookup(name, preset)
	if err != nil {
		return err
	}
	if c.active == nil {
		c.active = src
		return nil
	}
	c.next = src
	c.fadeStart = -1 // anchored on the next frame
	c.fadeS = seconds
	return nil
}

// lookup runs with c.mu held: presets mutate sources that paint also reads.
func (c *Conductor) lookup(name, preset string) (render.Source, error) {
	src, ok := c.Sources.Get(name)
	if !ok {
		return nil, fmt.Errorf("source not found: %s", name)
	}
	if preset != "" {
		src.ApplyPreset(preset)
	}
	return src, nil
}

// RunTest interrupts the sources with an LED test until it completes.
func (c *Conductor) RunTest(kind tests.Kind, hold int) error {
	known := false
	for _, k := range tests.Kinds {
		known = known || k == kind
	}
	if !known {
		return fmt.Errorf("unknown test: %s", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runner = tests.NewRunner(tests.Plan{Kind: kind, Hold: hold})
	return nil
}

// Testing reports the running LED test, if any.
func (c *Conductor) Testing() tests.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runner == nil {
		return tests.None
	}
	return c.runner.Kind()
}

func (c *Conductor) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// RenderOnce renders and pushes a single frame at time t (seconds).
// If t < 0, it uses Now.
func (c *Conductor) RenderOnce(t float64) error {
	if t < 0 {
		t = c.Now()
	}
	c.frame.Lock()
	defer c.frame.Unlock()
	canvas := c.Reg.NewCanvas()

	c.mu.Lock()
	if c.runner != nil && !c.runner.Step(c.Reg, canvas) {
		c.log.Info().Str("test", string(c.runner.Kind())).Msg("test complete")
		c.runner = nil
	}
	if c.runner == nil {
		c.paint(canvas, t)
	}
	c.frames++
	c.mu.Unlock()

	if err := c.Reg.PushFrame(canvas, true); err != nil {
		if c.OnError != nil {
			c.OnError(err)
		}
		return err
	}
	return nil
}

// Reload reloads the registry between two frames.
func (c *Conductor) Reload() error {
	c.frame.Lock()
	defer c.frame.Unlock()
	return c.Reg.Reload()
}

func (c *Conductor) paint(canvas *render.Canvas, t float64) {
	if c.active != nil {
		c.active.Paint(canvas, t)
	}
	if c.next == nil {
		return
	}
	if c.fadeStart < 0 {
		c.fadeStart = t
	}
	alpha := (t - c.fadeStart) / c.fadeS
	if alpha >= 1 {
		c.active, c.next = c.next, nil
		c.active.Paint(canvas, t)
		return
	}
	b := render.NewCanvas(canvas.Width, canvas.Height)
	c.next.Paint(b, t)
	render.Mix(canvas, canvas, b, alpha)
}

// Run renders at fps until ctx is done.
func (c *Conductor) Run(ctx context.Context, fps int) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RenderOnce(-1); err != nil {
				c.log.Debug().Err(err).Msg("push frame")
			}
		}
	}
}
