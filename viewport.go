package mapview

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tanema/gween/ease"
)

// DefaultResizeDebounce is how long size observations must be stable before
// ObserveSize applies them.
const DefaultResizeDebounce = 500 * time.Millisecond

// Options configures a Viewport. MapSize is required; every other field has
// a usable zero value.
type Options struct {
	// MapSize is the size of the map in map pixels at zoom 0.
	MapSize Vec2
	// Origin shifts map coordinates: coordinate (0, 0) sits at map pixel
	// Origin.
	Origin Vec2
	// MaxZoom is the largest allowed zoom (log2 of scale). Default 0, i.e.
	// one map pixel per logical pixel.
	MaxZoom float64
	// DevicePixelRatio scales the backing surface. Default 1.
	DevicePixelRatio float64
	// Background clears the surface before each frame. The zero value
	// clears to transparent.
	Background Color

	// Backend allocates the backing surface on resize. When nil the
	// viewport keeps no surface and DrawFrame must be given a canvas.
	Backend Backend
	// Fetcher loads remote layer resources. Default NewHTTPFetcher(nil).
	Fetcher Fetcher
	// Cache holds decoded layer resources. Default NewResourceCache(0).
	Cache *ResourceCache
	// ResizeDebounce delays ObserveSize. Zero means
	// DefaultResizeDebounce; negative applies observations immediately.
	ResizeDebounce time.Duration
	// Debug collects per-frame stats and logs them at debug level.
	Debug bool

	// OnMove is called after every offset change, including changes that
	// clamp to the current offset.
	OnMove func(offset Vec2)
	// OnReady is called once, after the first non-degenerate resize.
	OnReady func(v *Viewport)
	// OnClick receives every dispatched click, hit or not.
	OnClick func(ClickEvent)
	// OnError receives layer initialization and surface allocation errors.
	OnError func(error)
}

// ClickEvent describes a click dispatched by the viewport. Layer and Item
// are nil when no marker was hit.
type ClickEvent struct {
	Coordinate Vec2
	Layer      Layer
	Item       *MarkerItem
}

// EntityStore is the interface for optional ECS integration. When set on a
// Viewport, every dispatched click is forwarded to it.
type EntityStore interface {
	EmitClick(event ClickEvent)
}

type pendingResize struct {
	width, height int
	at            time.Time
	ok            bool
}

type deferred struct {
	at time.Time
	fn func()
}

// Viewport is the authoritative view state of a map: scale, offset, size
// and the ordered set of layers drawn on top of each other.
//
// All methods except RequestRedraw, Post and the read-only accessors of
// immutable configuration must be called from the loop goroutine (the
// Ebitengine Update/Draw goroutine or RenderLoop.Run).
type Viewport struct {
	opts    Options
	mapSize Vec2
	origin  Vec2
	maxZoom float64
	minZoom float64
	dpr     float64

	scale       float64
	offset      Vec2
	size        Vec2
	initialized bool
	closed      bool
	dirty       atomic.Bool

	layers  []Layer
	sortBuf []Layer
	hitBuf  []Layer

	surface Surface
	anim    Animator
	store   EntityStore

	ctx    context.Context
	cancel context.CancelFunc
	inits  sync.WaitGroup

	postMu sync.Mutex
	posted []func()
	timers []deferred

	observed bool
	pending  pendingResize

	stats FrameStats
}

// New creates a viewport. The viewport stays uninitialized until the first
// Resize (or ObserveSize) with a non-zero size.
func New(opts Options) (*Viewport, error) {
	if !(opts.MapSize.X > 0) || !(opts.MapSize.Y > 0) ||
		math.IsInf(opts.MapSize.X, 0) || math.IsInf(opts.MapSize.Y, 0) {
		return nil, fmt.Errorf("%w: got %vx%v", ErrInvalidMapSize, opts.MapSize.X, opts.MapSize.Y)
	}
	if math.IsNaN(opts.MaxZoom) || math.IsInf(opts.MaxZoom, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidZoom, opts.MaxZoom)
	}
	if !(opts.DevicePixelRatio > 0) {
		opts.DevicePixelRatio = 1
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher(nil)
	}
	if opts.Cache == nil {
		opts.Cache = NewResourceCache(0)
	}
	if opts.ResizeDebounce == 0 {
		opts.ResizeDebounce = DefaultResizeDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Viewport{
		opts:    opts,
		mapSize: opts.MapSize,
		origin:  opts.Origin,
		maxZoom: opts.MaxZoom,
		dpr:     opts.DevicePixelRatio,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// --- Size ---

// Resize sets the logical view size. It reallocates the backing surface,
// recomputes the minimum zoom and, on the first non-degenerate call,
// initializes the viewport and its layers. Calls with an unchanged size do
// nothing.
func (v *Viewport) Resize(width, height int) {
	if v.closed {
		return
	}
	if float64(width) == v.size.X && float64(height) == v.size.Y {
		return
	}
	v.size = Vec2{float64(width), float64(height)}
	v.allocSurface(width, height)
	defer v.RequestRedraw()

	if width <= 0 || height <= 0 {
		return
	}

	minZoom := minZoomFor(v.size, v.mapSize)
	switch {
	case !v.initialized:
		v.minZoom = minZoom
		v.scale = clampScale(math.Exp2(minZoom), minZoom, v.maxZoom)
		v.offset = clampOffset(v.offset, v.mapSize, v.size, v.scale)
		v.initialized = true
		Logger().Info("viewport ready",
			"width", width, "height", height,
			"minZoom", v.minZoom, "scale", v.scale)
		for _, l := range v.layers {
			v.startInit(l)
		}
		if v.opts.OnReady != nil {
			v.opts.OnReady(v)
		}
	case minZoom != v.minZoom:
		v.minZoom = minZoom
		v.ScaleTo(v.scale, v.size.Mul(0.5))
	default:
		v.offset = clampOffset(v.offset, v.mapSize, v.size, v.scale)
	}
}

// ObserveSize reports a size seen by the host at time now. The first
// observation is applied immediately; later changes are applied by Update
// once no new size has been observed for Options.ResizeDebounce.
func (v *Viewport) ObserveSize(width, height int, now time.Time) {
	if !v.observed {
		v.observed = true
		v.Resize(width, height)
		return
	}
	cw, ch := int(v.size.X), int(v.size.Y)
	if v.pending.ok {
		cw, ch = v.pending.width, v.pending.height
	}
	if width == cw && height == ch {
		return
	}
	if v.opts.ResizeDebounce < 0 {
		v.pending = pendingResize{}
		v.Resize(width, height)
		return
	}
	v.pending = pendingResize{width: width, height: height, at: now, ok: true}
}

func (v *Viewport) allocSurface(width, height int) {
	if v.opts.Backend == nil {
		return
	}
	if v.surface != nil {
		v.surface.Dispose()
		v.surface = nil
	}
	if width <= 0 || height <= 0 {
		return
	}
	pw := int(math.Ceil(float64(width) * v.dpr))
	ph := int(math.Ceil(float64(height) * v.dpr))
	s, err := v.opts.Backend.NewSurface(pw, ph)
	if err != nil {
		v.reportError(fmt.Errorf("mapview: allocate %dx%d surface: %w", pw, ph, err))
		return
	}
	v.surface = s
	Logger().Debug("surface allocated", "width", pw, "height", ph)
}

// --- Transform ---

// ScaleTo changes the scale, clamped to the zoom range, keeping the
// view-space point origin fixed on screen. NaN scales are ignored.
func (v *Viewport) ScaleTo(scale float64, origin Vec2) {
	if v.scale == 0 || math.IsNaN(scale) {
		return
	}
	if scale < 0 {
		scale = 0
	}
	newScale := clampScale(scale, v.minZoom, v.maxZoom)
	off := scaleAbout(v.offset, origin, v.scale, newScale)
	v.scale = newScale
	v.SetOffset(off)
}

// SetOffset moves the view, clamping each axis into the scaled map. It
// always requests a redraw and calls OnMove, even when the clamped offset
// equals the current one. NaN components keep their current value.
func (v *Viewport) SetOffset(offset Vec2) {
	if math.IsNaN(offset.X) {
		offset.X = v.offset.X
	}
	if math.IsNaN(offset.Y) {
		offset.Y = v.offset.Y
	}
	v.offset = clampOffset(offset, v.mapSize, v.size, v.scale)
	v.RequestRedraw()
	if v.opts.OnMove != nil {
		v.opts.OnMove(v.offset)
	}
}

// CenterOn moves the view so the map coordinate (x, y) is at the center,
// as far as the offset clamp allows.
func (v *Viewport) CenterOn(x, y float64) {
	v.SetOffset(v.ToOffset(x, y).Sub(v.size.Mul(0.5)))
}

// PanTo animates the view toward centering the map coordinate (x, y) over
// d, using fn for easing (linear when nil). Other offset animations keep
// running; stop them first.
func (v *Viewport) PanTo(x, y float64, d time.Duration, fn ease.TweenFunc) *Animation {
	from := v.offset
	to := clampOffset(v.ToOffset(x, y).Sub(v.size.Mul(0.5)), v.mapSize, v.size, v.scale)
	return v.Animate(NewTween(0, 1, d, fn), func(t float64) {
		v.SetOffset(from.Add(to.Sub(from).Mul(t)))
	})
}

// ToOffset converts a map coordinate into offset space at the current
// scale.
func (v *Viewport) ToOffset(x, y float64) Vec2 {
	return toOffset(Vec2{x, y}, v.origin, v.scale)
}

// ToOffsetAt converts a map coordinate into offset space at scale.
func (v *Viewport) ToOffsetAt(x, y, scale float64) Vec2 {
	return toOffset(Vec2{x, y}, v.origin, scale)
}

// ToCoordinate converts a view-space point (logical pixels from the
// top-left of the view) into a map coordinate.
func (v *Viewport) ToCoordinate(px, py float64) Vec2 {
	return toCoordinate(Vec2{px, py}, v.offset, v.origin, v.scale)
}

// ToView converts a map coordinate into view space.
func (v *Viewport) ToView(x, y float64) Vec2 {
	return v.ToOffset(x, y).Sub(v.offset)
}

// --- Layers ---

// AddLayer registers l. Adding a layer that is already registered with v
// does nothing; a layer registered with another viewport is rejected.
// When the viewport is ready the layer's initialization starts at once.
func (v *Viewport) AddLayer(l Layer) error {
	if l == nil {
		return ErrNilLayer
	}
	if v.closed {
		return ErrClosed
	}
	b := l.layerBase()
	if b.viewport == v {
		return nil
	}
	if b.viewport != nil {
		return ErrLayerAttached
	}
	b.viewport = v
	v.layers = append(v.layers, l)
	if v.initialized {
		v.startInit(l)
	}
	v.RequestRedraw()
	return nil
}

// RemoveLayer unregisters l, cancels its pending initialization and calls
// its Dispose. It reports false, without side effects, when l is not
// registered with v.
func (v *Viewport) RemoveLayer(l Layer) bool {
	if l == nil {
		return false
	}
	i := slices.Index(v.layers, l)
	if i < 0 {
		return false
	}
	v.layers = slices.Delete(v.layers, i, i+1)
	v.detach(l)
	v.RequestRedraw()
	return true
}

func (v *Viewport) detach(l Layer) {
	b := l.layerBase()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.viewport = nil
	b.initialized = false
	b.generation++
	if d, ok := l.(Disposer); ok {
		d.Dispose()
	}
}

// HasLayer reports whether l is registered with v.
func (v *Viewport) HasLayer(l Layer) bool {
	return slices.Contains(v.layers, l)
}

// Layers returns the registered layers in registration order. The returned
// slice must not be mutated.
func (v *Viewport) Layers() []Layer { return v.layers }

// HideLayer excludes l from drawing and hit-testing.
func (v *Viewport) HideLayer(l Layer) { v.setHidden(l, true) }

// ShowLayer reverses HideLayer.
func (v *Viewport) ShowLayer(l Layer) { v.setHidden(l, false) }

func (v *Viewport) setHidden(l Layer, hidden bool) {
	if l == nil {
		return
	}
	b := l.layerBase()
	if b.hidden == hidden {
		return
	}
	b.hidden = hidden
	v.RequestRedraw()
}

func (v *Viewport) layerEnv() LayerEnv {
	return LayerEnv{
		MapSize:  v.mapSize,
		Origin:   v.origin,
		ViewSize: v.size,
		MinZoom:  v.minZoom,
		MaxZoom:  v.maxZoom,
		Fetcher:  v.opts.Fetcher,
		Cache:    v.opts.Cache,
		Redraw:   v.RequestRedraw,
		Post:     v.Post,
	}
}

// startInit begins initialization of l. Layers without Init are ready
// immediately; others become ready when Init returns nil, provided they are
// still registered.
func (v *Viewport) startInit(l Layer) {
	b := l.layerBase()
	b.generation++
	gen := b.generation

	init, ok := l.(Initializer)
	if !ok {
		b.initialized = true
		return
	}
	ctx, cancel := context.WithCancel(v.ctx)
	b.cancel = cancel
	env := v.layerEnv()

	v.inits.Add(1)
	go func() {
		defer v.inits.Done()
		err := init.Init(ctx, env)
		v.Post(func() {
			if b.viewport != v || b.generation != gen {
				return
			}
			if err != nil {
				Logger().Warn("layer init failed", "layer", fmt.Sprintf("%T", l), "err", err)
				v.reportError(&LayerError{Layer: l, Err: err})
				return
			}
			b.initialized = true
			v.RequestRedraw()
		})
	}()
}

func (v *Viewport) reportError(err error) {
	if v.opts.OnError != nil {
		v.opts.OnError(err)
	}
}

// --- Clicks ---

// clickHandler is implemented by layers with a per-item click callback.
type clickHandler interface {
	handleClick(item *MarkerItem)
}

// HitTest resolves the view-space point (px, py) against the visible,
// initialized hit-testable layers, topmost first. Before the viewport is
// ready there is no map transform and HitTest returns the zero event.
func (v *Viewport) HitTest(px, py float64) ClickEvent {
	if !v.initialized || v.scale <= 0 {
		return ClickEvent{}
	}
	coord := v.ToCoordinate(px, py)
	v.hitBuf = sortLayers(v.hitBuf, v.layers, drawable)
	// Iterate backward (reverse draw order): topmost layer first.
	for i := len(v.hitBuf) - 1; i >= 0; i-- {
		l := v.hitBuf[i]
		ht, ok := l.(HitTester)
		if !ok {
			continue
		}
		if item, hit := ht.HitTest(coord); hit {
			return ClickEvent{Coordinate: coord, Layer: l, Item: item}
		}
	}
	return ClickEvent{Coordinate: coord}
}

// Click dispatches a click at the view-space point (px, py): the hit layer's
// item callback first, then Options.OnClick, then the entity store. Clicks
// before the viewport is ready are dropped.
func (v *Viewport) Click(px, py float64) ClickEvent {
	if !v.initialized {
		return ClickEvent{}
	}
	ev := v.HitTest(px, py)
	if h, ok := ev.Layer.(clickHandler); ok {
		h.handleClick(ev.Item)
	}
	if v.opts.OnClick != nil {
		v.opts.OnClick(ev)
	}
	if v.store != nil {
		v.store.EmitClick(ev)
	}
	return ev
}

// SetEntityStore sets the optional ECS bridge.
func (v *Viewport) SetEntityStore(store EntityStore) {
	v.store = store
}

// --- Scheduling ---

// RequestRedraw marks the viewport dirty so the next frame redraws. Safe to
// call from any goroutine.
func (v *Viewport) RequestRedraw() {
	v.dirty.Store(true)
}

// Post schedules fn to run on the loop goroutine during the next Update.
// Safe to call from any goroutine.
func (v *Viewport) Post(fn func()) {
	v.postMu.Lock()
	v.posted = append(v.posted, fn)
	v.postMu.Unlock()
}

// AfterFunc runs fn during the first Update at or after at.
func (v *Viewport) AfterFunc(at time.Time, fn func()) {
	v.timers = append(v.timers, deferred{at: at, fn: fn})
}

// Animate starts an animation stepped by Update.
func (v *Viewport) Animate(d Driver, onUpdate func(float64)) *Animation {
	return v.anim.Start(d, onUpdate)
}

// Animating reports whether any animation is running.
func (v *Viewport) Animating() bool { return v.anim.Len() > 0 }

// Update advances the viewport to now: it runs posted callbacks, applies a
// settled resize observation, fires due AfterFunc callbacks and steps
// animations. Call it once per tick before drawing.
func (v *Viewport) Update(now time.Time) {
	v.postMu.Lock()
	posted := v.posted
	v.posted = nil
	v.postMu.Unlock()
	for _, fn := range posted {
		fn()
	}

	if v.pending.ok && now.Sub(v.pending.at) >= v.opts.ResizeDebounce {
		p := v.pending
		v.pending = pendingResize{}
		v.Resize(p.width, p.height)
	}

	if len(v.timers) > 0 {
		var due []deferred
		keep := v.timers[:0]
		for _, t := range v.timers {
			if !now.Before(t.at) {
				due = append(due, t)
			} else {
				keep = append(keep, t)
			}
		}
		v.timers = keep
		slices.SortStableFunc(due, func(a, b deferred) int { return a.at.Compare(b.at) })
		for _, t := range due {
			t.fn()
		}
	}

	v.anim.Step(now)
}

// Close cancels pending layer work, removes and disposes every layer and
// releases the surface. The viewport cannot be used afterwards.
func (v *Viewport) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.cancel()
	v.anim.StopAll()
	for _, l := range v.layers {
		v.detach(l)
	}
	v.layers = nil
	if v.surface != nil {
		v.surface.Dispose()
		v.surface = nil
	}
}

// --- Queries ---

// Scale returns the current scale (2^Zoom). It is 0 before initialization.
func (v *Viewport) Scale() float64 { return v.scale }

// Zoom returns log2 of the current scale.
func (v *Viewport) Zoom() float64 { return math.Log2(v.scale) }

// MinZoom returns the smallest zoom at which the map covers the view.
func (v *Viewport) MinZoom() float64 { return v.minZoom }

// MaxZoom returns the configured maximum zoom.
func (v *Viewport) MaxZoom() float64 { return v.maxZoom }

// Offset returns the top-left of the view in offset space.
func (v *Viewport) Offset() Vec2 { return v.offset }

// Size returns the logical view size.
func (v *Viewport) Size() Vec2 { return v.size }

// MapSize returns the configured map size.
func (v *Viewport) MapSize() Vec2 { return v.mapSize }

// Origin returns the configured map origin.
func (v *Viewport) Origin() Vec2 { return v.origin }

// DevicePixelRatio returns the surface scale factor.
func (v *Viewport) DevicePixelRatio() float64 { return v.dpr }

// Rect returns the visible area in offset space.
func (v *Viewport) Rect() Rect {
	return Rect{X: v.offset.X, Y: v.offset.Y, Width: v.size.X, Height: v.size.Y}
}

// Initialized reports whether the first non-degenerate resize happened.
func (v *Viewport) Initialized() bool { return v.initialized }

// Dirty reports whether a redraw is pending.
func (v *Viewport) Dirty() bool { return v.dirty.Load() }

// Surface returns the backing surface, or nil without a Backend.
func (v *Viewport) Surface() Surface { return v.surface }

// Fetcher returns the configured resource fetcher.
func (v *Viewport) Fetcher() Fetcher { return v.opts.Fetcher }

// Cache returns the shared resource cache.
func (v *Viewport) Cache() *ResourceCache { return v.opts.Cache }
