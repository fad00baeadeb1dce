package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/arcaluminis-layout/internal/config"
	"github.com/coreman2200/arcaluminis-layout/internal/layout"
	"github.com/coreman2200/arcaluminis-layout/internal/led"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
	"github.com/coreman2200/arcaluminis-layout/internal/render/scenes/solid"
	"github.com/coreman2200/arcaluminis-layout/internal/tests"
)

func newConductor(t *testing.T) (*Conductor, *led.Sim) {
	t.Helper()
	s := config.Default()
	s.Devices = map[uint8][]config.Device{
		1: {{
			Name:   "pixel",
			Size:   config.Size{Width: 1, Height: 1},
			Leds:   []config.Led{{ID: 0, Rect: config.Rect{W: 1, H: 1}}},
			Driver: config.Driver{Kind: "sim"},
		}},
	}
	var sim *led.Sim
	reg := layout.NewRegistry(config.Static{Settings: s}, layout.WithOutputs(func(d *layout.DeviceLayout, def config.Device) (layout.Output, error) {
		sim = led.NewSim(d.Group.Regions())
		return sim, nil
	}))
	require.NoError(t, reg.Initialize())

	srcs := render.NewSources()
	srcs.Register(solid.New("red", colorful.Color{R: 1}))
	srcs.Register(solid.New("blue", colorful.Color{B: 1}))
	return NewConductor(reg, srcs, zerolog.Nop()), sim
}

func TestConductorCrossfade(t *testing.T) {
	c, sim := newConductor(t)
	require.NoError(t, c.SetSource("red", ""))

	require.NoError(t, c.RenderOnce(0))
	assert.Equal(t, []byte{255, 0, 0}, sim.Last())

	require.NoError(t, c.FadeTo("blue", "", 2))
	require.NoError(t, c.RenderOnce(10))
	assert.Equal(t, []byte{255, 0, 0}, sim.Last())

	require.NoError(t, c.RenderOnce(11))
	mid := sim.Last()
	if mid[0] < 126 || mid[0] > 129 || mid[2] < 126 || mid[2] > 129 {
		t.Fatalf("expected purple during fade, got %v", mid)
	}

	require.NoError(t, c.RenderOnce(12))
	assert.Equal(t, []byte{0, 0, 255}, sim.Last())
	require.NoError(t, c.RenderOnce(13))
	assert.Equal(t, []byte{0, 0, 255}, sim.Last())
	assert.Equal(t, uint64(5), c.Frames())
}

func TestConductorRunsTests(t *testing.T) {
	c, sim := newConductor(t)
	require.NoError(t, c.SetSource("blue", ""))
	require.NoError(t, c.RunTest(tests.RGBTest, 1))
	assert.Equal(t, tests.RGBTest, c.Testing())

	var got [][]byte
	for i := 0; i < 4; i++ {
		require.NoError(t, c.RenderOnce(float64(i)))
		got = append(got, sim.Last())
	}
	assert.Equal(t, [][]byte{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {0, 0, 255}}, got)
	assert.Equal(t, tests.None, c.Testing())

	assert.Error(t, c.RunTest("strobe", 1))
	assert.Error(t, c.SetSource("green", ""))
}

func TestConductorReportsPushErrors(t *testing.T) {
	c, _ := newConductor(t)
	var seen error
	c.OnError = func(err error) { seen = err }

	c.Reg.Settings().Brightness = 2
	require.NoError(t, c.Reg.Reload())

	err := c.RenderOnce(0)
	assert.ErrorIs(t, err, layout.ErrValidation)
	assert.Equal(t, err, seen)
}

func TestConductorRunStopsWithContext(t *testing.T) {
	c, sim := newConductor(t)
	require.NoError(t, c.SetSource("red", ""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 200)
		close(done)
	}()
	require.Eventually(t, func() bool { return sim.Count() > 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestConductorPresetsDoNotRaceFrames(t *testing.T) {
	c, _ := newConductor(t)
	require.NoError(t, c.SetSource("red", ""))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = c.RenderOnce(float64(i))
		}
	}()
	for i := 0; i < 200; i++ {
		require.NoError(t, c.SetSource("red", "Blue"))
		require.NoError(t, c.FadeTo("blue", "Green", 1))
	}
	wg.Wait()
}

// closeTracker fails the test run if it is written after Close.
type closeTracker struct {
	closed    atomic.Bool
	lateWrite *atomic.Int32
}

func (o *closeTracker) Write(rgb []byte) error {
	if o.closed.Load() {
		o.lateWrite.Add(1)
	}
	return nil
}

func (o *closeTracker) Close() error {
	o.closed.Store(true)
	return nil
}

func TestConductorReloadRunsBetweenFrames(t *testing.T) {
	s := config.Default()
	s.Devices = map[uint8][]config.Device{
		1: {
			{Name: "a", Size: config.Size{Width: 2, Height: 2}, Grid: &config.Grid{Cols: 2, Rows: 2, CellW: 1, CellH: 1}},
			{Name: "b", Location: config.Point{X: 2}, Size: config.Size{Width: 2, Height: 2}, Grid: &config.Grid{Cols: 2, Rows: 2, CellW: 1, CellH: 1}},
		},
	}
	var late atomic.Int32
	reg := layout.NewRegistry(config.Static{Settings: s}, layout.WithOutputs(func(*layout.DeviceLayout, config.Device) (layout.Output, error) {
		return &closeTracker{lateWrite: &late}, nil
	}))
	require.NoError(t, reg.Initialize())
	srcs := render.NewSources()
	srcs.Register(solid.New("red", colorful.Color{R: 1}))
	c := NewConductor(reg, srcs, zerolog.Nop())
	require.NoError(t, c.SetSource("red", ""))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			_ = c.RenderOnce(-1)
		}
	}()
	for i := 0; i < 100; i++ {
		require.NoError(t, c.Reload())
	}
	cancel()
	<-done

	assert.Zero(t, late.Load())
}
