package mapview

// MarkerItem is a point on the map drawn with the layer's icon.
type MarkerItem struct {
	X, Y float64
	// Data is application payload returned with click events.
	Data any
}

// MarkerLayerOptions configures a MarkerLayer.
type MarkerLayerOptions struct {
	LayerOptions
	Items []MarkerItem
	// Icon is drawn once per item. Required.
	Icon *Texture
	// IconRegion selects a sub-rectangle of Icon, for icons packed in an
	// IconAtlas. The zero value uses the whole texture.
	IconRegion Rect
	// Scale sizes the icon in logical pixels, independent of the map
	// scale. Default 1.
	Scale float64
	// Anchor is the point of the icon placed on the item, as a fraction of
	// the icon size: (0, 0) is the top-left, (0.5, 1) the bottom center.
	Anchor Vec2
	// OnClick is called with the item hit by a click.
	OnClick func(item *MarkerItem)
}

// MarkerLayerUpdate is a partial update of MarkerLayerOptions.
type MarkerLayerUpdate struct {
	LayerUpdate
	Items      *[]MarkerItem
	Icon       *Texture
	IconRegion *Rect
	Scale      *float64
	Anchor     *Vec2
	OnClick    func(item *MarkerItem)
}

// MarkerLayer draws many copies of one icon in a single atlas draw. Icons
// keep their size on screen while the map zooms.
type MarkerLayer struct {
	BaseLayer
	opts MarkerLayerOptions

	rects  []Rect
	xforms []RSXform
	paint  Paint
}

// NewMarkerLayer returns a marker layer.
func NewMarkerLayer(opts MarkerLayerOptions) *MarkerLayer {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	return &MarkerLayer{BaseLayer: NewBaseLayer(opts.LayerOptions), opts: opts}
}

// Options returns the layer configuration.
func (l *MarkerLayer) Options() MarkerLayerOptions { return l.opts }

// Items returns the markers. The slice must not be mutated.
func (l *MarkerLayer) Items() []MarkerItem { return l.opts.Items }

// Apply applies a partial update and requests a redraw.
func (l *MarkerLayer) Apply(u MarkerLayerUpdate) {
	if u.Items != nil {
		l.opts.Items = *u.Items
	}
	if u.Icon != nil {
		l.opts.Icon = u.Icon
	}
	if u.IconRegion != nil {
		l.opts.IconRegion = *u.IconRegion
	}
	if u.Scale != nil {
		l.opts.Scale = *u.Scale
	}
	if u.Anchor != nil {
		l.opts.Anchor = *u.Anchor
	}
	if u.OnClick != nil {
		l.opts.OnClick = u.OnClick
	}
	l.ApplyLayerUpdate(u.LayerUpdate)
}

func (l *MarkerLayer) iconRect() Rect {
	if l.opts.IconRegion.Width > 0 && l.opts.IconRegion.Height > 0 {
		return l.opts.IconRegion
	}
	if l.opts.Icon == nil {
		return Rect{}
	}
	return l.opts.Icon.Bounds()
}

// Draw implements Layer.
func (l *MarkerLayer) Draw(c Canvas) {
	vp := l.Viewport()
	if vp == nil || l.opts.Icon == nil || len(l.opts.Items) == 0 {
		return
	}
	src := l.iconRect()
	scale := l.opts.Scale
	anchor := alongSize(l.opts.Anchor, src.Width, src.Height)

	// Items whose icon cannot reach the view are skipped.
	w, h := src.Width*scale, src.Height*scale
	visible := vp.Rect()
	visible = Rect{X: visible.X - w, Y: visible.Y - h, Width: visible.Width + 2*w, Height: visible.Height + 2*h}

	l.rects = l.rects[:0]
	l.xforms = l.xforms[:0]
	for i := range l.opts.Items {
		it := &l.opts.Items[i]
		off := vp.ToOffset(it.X, it.Y)
		if !visible.Contains(off.X, off.Y) {
			continue
		}
		l.rects = append(l.rects, src)
		l.xforms = append(l.xforms, MakeRSXform(0, scale, anchor, off))
	}
	if len(l.rects) > 0 {
		c.DrawAtlas(l.opts.Icon, l.rects, l.xforms, &l.paint)
	}
}

// HitTest implements HitTester. coord is a map coordinate; the icon box is
// converted to map units at the current scale. Edges do not count as hits.
func (l *MarkerLayer) HitTest(coord Vec2) (*MarkerItem, bool) {
	vp := l.Viewport()
	if vp == nil || vp.Scale() == 0 || l.opts.Icon == nil {
		return nil, false
	}
	src := l.iconRect()
	scale := l.opts.Scale / vp.Scale()
	w, h := src.Width*scale, src.Height*scale
	anchor := alongSize(l.opts.Anchor, w, h)
	for i := range l.opts.Items {
		it := &l.opts.Items[i]
		left := it.X - anchor.X
		top := it.Y - anchor.Y
		if left < coord.X && coord.X < left+w && top < coord.Y && coord.Y < top+h {
			return it, true
		}
	}
	return nil, false
}

func (l *MarkerLayer) handleClick(item *MarkerItem) {
	if item != nil && l.opts.OnClick != nil {
		l.opts.OnClick(item)
	}
}
