package mapview

import "context"

// CustomLayerOptions configures a CustomLayer. Every callback is optional.
type CustomLayerOptions struct {
	LayerOptions
	// Draw renders in offset space; use Viewport.ToOffset to place map
	// coordinates.
	Draw    func(c Canvas, v *Viewport)
	Init    func(ctx context.Context, env LayerEnv) error
	Dispose func()
}

// CustomLayer adapts plain functions to the layer contract.
type CustomLayer struct {
	BaseLayer
	opts CustomLayerOptions
}

// NewCustomLayer returns a custom layer.
func NewCustomLayer(opts CustomLayerOptions) *CustomLayer {
	return &CustomLayer{BaseLayer: NewBaseLayer(opts.LayerOptions), opts: opts}
}

// Init implements Initializer.
func (l *CustomLayer) Init(ctx context.Context, env LayerEnv) error {
	if l.opts.Init == nil {
		return nil
	}
	return l.opts.Init(ctx, env)
}

// Dispose implements Disposer.
func (l *CustomLayer) Dispose() {
	if l.opts.Dispose != nil {
		l.opts.Dispose()
	}
}

// Draw implements Layer.
func (l *CustomLayer) Draw(c Canvas) {
	if l.opts.Draw != nil && l.Viewport() != nil {
		l.opts.Draw(c, l.Viewport())
	}
}
