package mapview

// OverlayLayerOptions configures an OverlayLayer.
type OverlayLayerOptions struct {
	LayerOptions
	// X and Y are the map coordinate the overlay follows.
	X, Y float64
	// Draw renders the overlay in view space with its origin at pos. May be
	// nil when the host only consumes OnPosition.
	Draw func(c Canvas, pos Vec2)
	// OnPosition is called during drawing whenever the view position of
	// the anchor changes, so host widgets can follow the map.
	OnPosition func(pos Vec2)
}

// OverlayLayerUpdate is a partial update of OverlayLayerOptions.
type OverlayLayerUpdate struct {
	LayerUpdate
	X, Y *float64
}

// OverlayLayer is a screen-space element pinned to a map point. Its content
// does not scale with the map.
type OverlayLayer struct {
	BaseLayer
	opts OverlayLayerOptions

	pos   Vec2
	moved bool
}

// NewOverlayLayer returns an overlay layer.
func NewOverlayLayer(opts OverlayLayerOptions) *OverlayLayer {
	return &OverlayLayer{BaseLayer: NewBaseLayer(opts.LayerOptions), opts: opts}
}

// Apply applies a partial update.
func (l *OverlayLayer) Apply(u OverlayLayerUpdate) {
	if u.X != nil {
		l.opts.X = *u.X
	}
	if u.Y != nil {
		l.opts.Y = *u.Y
	}
	l.ApplyLayerUpdate(u.LayerUpdate)
}

// Position returns the view-space position computed by the last draw.
func (l *OverlayLayer) Position() Vec2 { return l.pos }

// Draw implements Layer.
func (l *OverlayLayer) Draw(c Canvas) {
	vp := l.Viewport()
	if vp == nil {
		return
	}
	pos := vp.ToView(l.opts.X, l.opts.Y)
	if pos != l.pos || !l.moved {
		l.pos = pos
		l.moved = true
		if l.opts.OnPosition != nil {
			l.opts.OnPosition(pos)
		}
	}
	if l.opts.Draw == nil {
		return
	}
	off := vp.Offset()
	c.Translate(off.X, off.Y)
	l.opts.Draw(c, pos)
	c.Translate(-off.X, -off.Y)
}
