package mapview

import (
	"context"
)

// LayerOptions holds the options every layer kind shares.
type LayerOptions struct {
	// ZIndex orders layers: higher values draw on top. Layers with equal
	// ZIndex draw in registration order.
	ZIndex int
	// Hidden excludes the layer from drawing and hit-testing.
	Hidden bool
}

// LayerUpdate is a partial update of LayerOptions. Nil fields are left
// unchanged. Both fields only affect ordering and visibility, so applying
// an update marks the owning viewport dirty.
type LayerUpdate struct {
	ZIndex *int
	Hidden *bool
}

// Layer is a drawable plugin registered with a Viewport. Implementations
// embed BaseLayer, which supplies the bookkeeping the viewport needs.
//
// Draw is called on the loop goroutine with the canvas already transformed
// into offset space (see Viewport.ToOffset). Draw must not panic when its
// resources are still loading; it should simply draw nothing.
type Layer interface {
	Draw(c Canvas)
	layerBase() *BaseLayer
}

// Initializer is implemented by layers that need to load resources before
// their first draw. Init runs on its own goroutine once the viewport is
// ready (or immediately when the layer is added to a ready viewport). The
// context is cancelled when the layer is removed or the viewport closes.
// env is a snapshot taken on the loop goroutine; Init must not touch the
// viewport directly.
type Initializer interface {
	Init(ctx context.Context, env LayerEnv) error
}

// LayerEnv is the viewport state handed to Initializer.Init.
type LayerEnv struct {
	MapSize  Vec2
	Origin   Vec2
	ViewSize Vec2
	MinZoom  float64
	MaxZoom  float64
	Fetcher  Fetcher
	Cache    *ResourceCache

	// Redraw marks the viewport dirty. Safe to call from any goroutine.
	Redraw func()
	// Post runs fn on the loop goroutine before the next frame.
	Post func(fn func())
}

// Disposer is implemented by layers that hold resources. Dispose is called
// exactly once, on the loop goroutine, when the layer is removed.
type Disposer interface {
	Dispose()
}

// HitTester is implemented by layers that can resolve a click. coord is in
// map coordinates.
type HitTester interface {
	HitTest(coord Vec2) (*MarkerItem, bool)
}

// BaseLayer carries the per-layer state managed by the viewport. Embed it
// in every layer type.
type BaseLayer struct {
	zIndex      int
	hidden      bool
	initialized bool
	viewport    *Viewport
	cancel      context.CancelFunc
	generation  uint64
}

// NewBaseLayer returns a BaseLayer configured from opts.
func NewBaseLayer(opts LayerOptions) BaseLayer {
	return BaseLayer{zIndex: opts.ZIndex, hidden: opts.Hidden}
}

func (b *BaseLayer) layerBase() *BaseLayer { return b }

// ZIndex returns the layer's draw order key.
func (b *BaseLayer) ZIndex() int { return b.zIndex }

// Hidden reports whether the layer is excluded from drawing.
func (b *BaseLayer) Hidden() bool { return b.hidden }

// Initialized reports whether the layer finished initialization and will
// be drawn.
func (b *BaseLayer) Initialized() bool { return b.initialized }

// Viewport returns the viewport the layer is registered with, or nil.
func (b *BaseLayer) Viewport() *Viewport { return b.viewport }

// SetZIndex changes the draw order key and requests a redraw.
func (b *BaseLayer) SetZIndex(z int) {
	if b.zIndex == z {
		return
	}
	b.zIndex = z
	b.redraw()
}

// ApplyLayerUpdate applies the shared part of a partial options update.
func (b *BaseLayer) ApplyLayerUpdate(u LayerUpdate) {
	if u.ZIndex != nil {
		b.zIndex = *u.ZIndex
	}
	if u.Hidden != nil {
		b.hidden = *u.Hidden
	}
	b.redraw()
}

func (b *BaseLayer) redraw() {
	if b.viewport != nil {
		b.viewport.RequestRedraw()
	}
}

// sortLayers writes the layers of src that pass keep into dst, ordered by
// ZIndex with registration order preserved among equal keys.
func sortLayers(dst, src []Layer, keep func(*BaseLayer) bool) []Layer {
	dst = dst[:0]
	for _, l := range src {
		if keep == nil || keep(l.layerBase()) {
			dst = append(dst, l)
		}
	}
	// Stable insertion sort by ZIndex.
	for i := 1; i < len(dst); i++ {
		key := dst[i]
		kz := key.layerBase().zIndex
		j := i - 1
		for j >= 0 && dst[j].layerBase().zIndex > kz {
			dst[j+1] = dst[j]
			j--
		}
		dst[j+1] = key
	}
	return dst
}

// drawable reports whether a layer takes part in drawing and hit-testing.
func drawable(b *BaseLayer) bool {
	return b.initialized && !b.hidden
}
