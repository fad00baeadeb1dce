package layout

import (
	"errors"
	"image"
	"io"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/coreman2200/arcaluminis-layout/internal/config"
	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

// Loader is the settings persistence collaborator. config.FileLoader and
// config.Static implement it.
type Loader interface {
	Load() (*config.Settings, error)
}

// OutputFactory opens the output for d, described in the settings by def.
// A nil Output with a nil error leaves the device without hardware.
type OutputFactory func(d *DeviceLayout, def config.Device) (Output, error)

// FrameFunc observes every frame after it has been distributed.
type FrameFunc func(c *render.Canvas)

// LayoutFunc observes every successful index rebuild.
type LayoutFunc func()

type Option func(*Registry)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func WithOutputs(f OutputFactory) Option {
	return func(r *Registry) { r.outputs = f }
}

// index is never mutated once published.
type index struct {
	order  []DeviceKey
	byKey  map[DeviceKey]*DeviceLayout
	canvas image.Point
}

type subscriber[F any] struct {
	id uint64
	fn F
}

// observers is a copy-on-write callback list.
type observers[F any] struct {
	mu   sync.RWMutex
	subs []subscriber[F]
	next uint64
}

func (o *observers[F]) add(fn F) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	id := o.next
	subs := make([]subscriber[F], len(o.subs), len(o.subs)+1)
	copy(subs, o.subs)
	o.subs = append(subs, subscriber[F]{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		subs := make([]subscriber[F], 0, len(o.subs))
		for _, s := range o.subs {
			if s.id != id {
				subs = append(subs, s)
			}
		}
		o.subs = subs
	}
}

func (o *observers[F]) snapshot() []subscriber[F] {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.subs
}

// Registry is the authoritative source of device placement. It owns every
// DeviceLayout and drives frame distribution.
//
// PushFrame is meant to be called from a single render loop. The index is
// replaced wholesale on rebuild, so a frame in flight keeps a consistent
// snapshot.
type Registry struct {
	loader  Loader
	outputs OutputFactory
	log     zerolog.Logger

	mu          sync.Mutex // serializes Initialize, Reload and RebuildIndex
	settings    *config.Settings
	initialized atomic.Bool
	ready       chan struct{}

	idx        atomic.Pointer[index]
	brightness atomic.Uint64

	frames  observers[FrameFunc]
	layouts observers[LayoutFunc]
}

func NewRegistry(loader Loader, opts ...Option) *Registry {
	r := &Registry{
		loader: loader,
		log:    zerolog.Nop(),
		ready:  make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.idx.Store(&index{byKey: map[DeviceKey]*DeviceLayout{}})
	r.brightness.Store(math.Float64bits(1))
	return r
}

// Initialize loads the settings and builds the index. Calling it again after
// a success is a no-op.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	if r.initialized.Load() {
		r.mu.Unlock()
		return nil
	}
	if err := r.loadAndRebuild("initialize"); err != nil {
		r.mu.Unlock()
		return err
	}
	r.initialized.Store(true)
	close(r.ready)
	r.mu.Unlock()

	r.log.Info().Int("devices", len(r.idx.Load().order)).Msg("device layout initialized")
	r.layoutChanged()
	return nil
}

func (r *Registry) Initialized() bool { return r.initialized.Load() }

// Ready is closed once Initialize has succeeded.
func (r *Registry) Ready() <-chan struct{} { return r.ready }

// Reload re-reads the settings and rebuilds the index. The registry stays
// initialized whatever the outcome. On failure the previous index, settings
// and brightness are kept.
//
// Reload closes the outputs of the previous index, so it must not overlap
// a PushFrame; app.Conductor.Reload runs it between frames.
func (r *Registry) Reload() error {
	r.mu.Lock()
	err := r.loadAndRebuild("reload")
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.layoutChanged()
	return nil
}

// RebuildIndex replaces the index with one built from the current settings.
func (r *Registry) RebuildIndex() error {
	r.mu.Lock()
	err := r.rebuildLocked(r.settings)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.layoutChanged()
	return nil
}

// loadAndRebuild adopts freshly loaded settings, and their brightness, only
// once an index has been built from them.
func (r *Registry) loadAndRebuild(op string) error {
	s, err := r.load(op)
	if err != nil {
		return err
	}
	if err := r.rebuildLocked(s); err != nil {
		return err
	}
	r.settings = s
	r.brightness.Store(math.Float64bits(s.Brightness))
	return nil
}

func (r *Registry) load(op string) (*config.Settings, error) {
	if r.loader == nil {
		return nil, &Error{Kind: ErrConfigLoad, Op: op, Msg: "no loader"}
	}
	s, err := r.loader.Load()
	if err != nil {
		return nil, &Error{Kind: ErrConfigLoad, Op: op, Err: err}
	}
	if s == nil {
		return nil, &Error{Kind: ErrConfigLoad, Op: op, Msg: "loader returned no settings"}
	}
	return s, nil
}

// rebuildLocked builds an index from s and swaps it in. Nothing is swapped
// when the build fails.
func (r *Registry) rebuildLocked(s *config.Settings) error {
	if s == nil {
		return &Error{Kind: ErrConfigLoad, Op: "rebuild index", Msg: "settings not loaded"}
	}

	types := make([]int, 0, len(s.Devices))
	for t := range s.Devices {
		types = append(types, int(t))
	}
	sort.Ints(types)

	next := &index{byKey: map[DeviceKey]*DeviceLayout{}}
	var opened []Output
	fail := func(err error) error {
		if cerr := closeOutputs(opened); cerr != nil {
			r.log.Warn().Err(cerr).Msg("close outputs of failed rebuild")
		}
		return err
	}
	for _, t := range types {
		list := s.Devices[uint8(t)]
		if len(list) > math.MaxUint8+1 {
			return fail(validationError("rebuild index", "device type %d has %d devices, at most 256 allowed", t, len(list)))
		}
		for i, def := range list {
			key := DeviceKey{Type: uint8(t), Index: uint8(i)}
			d, err := buildDevice(key, def)
			if err != nil {
				return fail(err)
			}
			if r.outputs != nil {
				out, err := r.outputs(d, def)
				if err != nil {
					return fail(&Error{Kind: ErrValidation, Op: "rebuild index", Msg: "device " + key.String() + ": output", Err: err})
				}
				if out != nil {
					d.out = out
					opened = append(opened, out)
				}
			}
			next.order = append(next.order, key)
			next.byKey[key] = d
			r.log.Debug().Stringer("key", key).Str("name", d.Name).Int("leds", d.Group.Len()).Msg("device indexed")
		}
	}

	next.canvas = image.Pt(s.Canvas.Width, s.Canvas.Height)
	if next.canvas.X <= 0 || next.canvas.Y <= 0 {
		next.canvas = extent(next)
	}

	prev := r.idx.Swap(next)
	if err := closeOutputs(outputsOf(prev)); err != nil {
		r.log.Warn().Err(err).Msg("close previous outputs")
	}
	return nil
}

func buildDevice(key DeviceKey, def config.Device) (*DeviceLayout, error) {
	size := image.Pt(def.Size.Width, def.Size.Height)
	if size.X <= 0 || size.Y <= 0 {
		return nil, validationError("rebuild index", "device %s: size %v must be positive", key, size)
	}

	g := NewVirtualGroup()
	if gr := def.Grid; gr != nil {
		if gr.Cols < 0 || gr.Rows < 0 || gr.Cols*gr.Rows > math.MaxInt16+1 {
			return nil, validationError("rebuild index", "device %s: grid %dx%d exceeds %d leds", key, gr.Cols, gr.Rows, math.MaxInt16+1)
		}
		g = GridGroup(gr.Cols, gr.Rows, gr.CellW, gr.CellH, Serpentine{XFlipEveryRow: gr.Serpentine})
	}
	for _, l := range def.Leds {
		g.Add(l.ID, l.Name, R(l.Rect.X, l.Rect.Y, l.Rect.W, l.Rect.H))
	}
	for _, led := range g.Leds() {
		if rc, ok := g.RegionFor(led); ok && !rc.In(size.X, size.Y) {
			return nil, validationError("rebuild index", "device %s: led %d region %+v outside %v", key, led, rc, size)
		}
	}

	name := def.Name
	if name == "" {
		name = "device " + key.String()
	}
	return NewDeviceLayout(key, name, image.Pt(def.Location.X, def.Location.Y), size, g, nil), nil
}

func extent(idx *index) image.Point {
	var p image.Point
	for _, d := range idx.byKey {
		b := d.Bounds()
		if b.X+b.W > p.X {
			p.X = b.X + b.W
		}
		if b.Y+b.H > p.Y {
			p.Y = b.Y + b.H
		}
	}
	return p
}

func outputsOf(idx *index) []Output {
	if idx == nil {
		return nil
	}
	var outs []Output
	for _, k := range idx.order {
		if o := idx.byKey[k].out; o != nil {
			outs = append(outs, o)
		}
	}
	return outs
}

func closeOutputs(outs []Output) error {
	var err error
	for _, o := range outs {
		if c, ok := o.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

// Close releases every device output of the current index.
func (r *Registry) Close() error {
	return closeOutputs(outputsOf(r.idx.Load()))
}

// Settings returns the last loaded settings, or nil before the first load.
func (r *Registry) Settings() *config.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

func (r *Registry) Brightness() float64 {
	return math.Float64frombits(r.brightness.Load())
}

// SetBrightness changes the global brightness applied by PushFrame.
func (r *Registry) SetBrightness(f float64) error {
	if !(f >= 0 && f <= 1) {
		return validationError("set brightness", "brightness %v outside [0,1]", f)
	}
	r.brightness.Store(math.Float64bits(f))
	return nil
}

// PushFrame applies the global brightness (when asked to), hands every
// device its slice of the canvas in index order and then notifies the
// frame subscribers. Device failures do not stop the pass; they are
// returned together once every device has been visited.
func (r *Registry) PushFrame(c *render.Canvas, applyBrightness bool) error {
	if c == nil {
		return validationError("push frame", "nil canvas")
	}
	if applyBrightness {
		if err := c.ApplyBrightness(r.Brightness()); err != nil {
			return &Error{Kind: ErrValidation, Op: "push frame", Err: err}
		}
	}

	idx := r.idx.Load()
	var errs error
	for _, key := range idx.order {
		d := idx.byKey[key]
		bm, err := c.SubRegion(d.Bounds().Image())
		if err != nil {
			errs = multierr.Append(errs, &Error{Kind: ErrValidation, Op: "push frame", Msg: "device " + key.String(), Err: err})
			continue
		}
		if err := d.UpdateColors(bm); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	r.emit(c)
	return errs
}

// OnFrameRendered registers fn for every rendered frame. Subscribers run
// synchronously on the render loop in registration order, so they must not
// block. The returned func unregisters fn.
func (r *Registry) OnFrameRendered(fn FrameFunc) (cancel func()) {
	return r.frames.add(fn)
}

func (r *Registry) emit(c *render.Canvas) {
	for _, s := range r.frames.snapshot() {
		s.fn(c)
	}
}

// OnLayoutChanged registers fn for every successful Initialize, Reload or
// RebuildIndex. It runs on the rebuilding goroutine after the new index is
// visible.
func (r *Registry) OnLayoutChanged(fn LayoutFunc) (cancel func()) {
	return r.layouts.add(fn)
}

func (r *Registry) layoutChanged() {
	for _, s := range r.layouts.snapshot() {
		s.fn()
	}
}

// Resolve returns the layout owning id. A missing device is an addressing
// error, never a nil layout.
func (r *Registry) Resolve(id LedID) (*DeviceLayout, error) {
	d, ok := r.idx.Load().byKey[id.Key()]
	if !ok {
		return nil, lookupError("resolve", id.Key())
	}
	return d, nil
}

// LedName returns the name of the LED addressed by id.
func (r *Registry) LedName(id LedID) (string, error) {
	d, err := r.Resolve(id)
	if err != nil {
		return "", err
	}
	return d.LedName(id.Led)
}

// LedRegion returns the rectangle sampled by id, in canvas coordinates
// unless local is set. ok is false when the device exists but has no region
// for the LED; err is only set when the device itself is unknown.
func (r *Registry) LedRegion(id LedID, local bool) (rect Rect, ok bool, err error) {
	d, err := r.Resolve(id)
	if err != nil {
		return Rect{}, false, err
	}
	rect, ok = d.Region(id.Led)
	if !ok {
		return Rect{}, false, nil
	}
	if !local {
		rect = rect.Offset(d.Location)
	}
	return rect, true, nil
}

// AllLayouts returns the layouts in index order. The slice is a snapshot;
// later rebuilds do not change it.
func (r *Registry) AllLayouts() []*DeviceLayout {
	idx := r.idx.Load()
	out := make([]*DeviceLayout, 0, len(idx.order))
	for _, k := range idx.order {
		out = append(out, idx.byKey[k])
	}
	return out
}

// Keys returns the index keys in order.
func (r *Registry) Keys() []DeviceKey {
	idx := r.idx.Load()
	out := make([]DeviceKey, len(idx.order))
	copy(out, idx.order)
	return out
}

// Bounds is the canvas area frames are expected to cover.
func (r *Registry) Bounds() image.Rectangle {
	return image.Rectangle{Max: r.idx.Load().canvas}
}

// NewCanvas allocates a black canvas covering Bounds.
func (r *Registry) NewCanvas() *render.Canvas {
	p := r.idx.Load().canvas
	return render.NewCanvas(p.X, p.Y)
}

// IsLookup reports whether err is a device lookup failure.
func IsLookup(err error) bool { return errors.Is(err, ErrLookup) }
