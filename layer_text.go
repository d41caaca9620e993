package mapview

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTextSize is the font size of a TextLayer without Size.
const DefaultTextSize = 16

// TextLayerOptions configures a TextLayer.
type TextLayerOptions struct {
	LayerOptions
	Text string
	// X and Y are the map coordinate the text block is centered on.
	X, Y float64
	// MaxWidth wraps lines in logical pixels. Default: the view width at
	// initialization.
	MaxWidth float64
	// FontURL locates a TTF/OTF font. Fonts are shared between layers
	// through the viewport cache. Empty uses Go Regular.
	FontURL string
	Size    float64
	Color   Color
}

// TextLayerUpdate is a partial update of TextLayerOptions. Changing Text or
// MaxWidth re-wraps the block.
type TextLayerUpdate struct {
	LayerUpdate
	Text     *string
	X, Y     *float64
	MaxWidth *float64
	Color    *Color
}

// TextLayer draws a wrapped block of text centered on a map point. The text
// keeps its size on screen while the map zooms.
type TextLayer struct {
	BaseLayer
	opts TextLayerOptions

	face     *FontFace
	maxWidth float64
	block    string
	w, h     float64
	paint    Paint
}

// NewTextLayer returns a text layer.
func NewTextLayer(opts TextLayerOptions) *TextLayer {
	if opts.Size <= 0 {
		opts.Size = DefaultTextSize
	}
	return &TextLayer{
		BaseLayer: NewBaseLayer(opts.LayerOptions),
		opts:      opts,
		paint:     Paint{Color: opts.Color},
	}
}

// Options returns the layer configuration.
func (l *TextLayer) Options() TextLayerOptions { return l.opts }

// Init loads the font and lays out the text.
func (l *TextLayer) Init(ctx context.Context, env LayerEnv) error {
	face, err := loadFontFace(ctx, env, l.opts.FontURL, l.opts.Size)
	if err != nil {
		return err
	}
	l.face = face
	l.maxWidth = l.opts.MaxWidth
	if l.maxWidth <= 0 {
		l.maxWidth = env.ViewSize.X
	}
	l.layout()
	return nil
}

// loadFontFace returns the face for url, consulting the shared cache first.
func loadFontFace(ctx context.Context, env LayerEnv, url string, size float64) (*FontFace, error) {
	if url == "" {
		return DefaultFontFace(size)
	}
	key := "font/" + url
	data, ok := env.Cache.Font(key)
	if !ok {
		var err error
		if data, err = env.Fetcher.FetchBytes(ctx, url); err != nil {
			return nil, fmt.Errorf("text layer: %w", err)
		}
		env.Cache.Add(key, data)
	}
	return NewFontFace(data, size)
}

func (l *TextLayer) layout() {
	if l.face == nil {
		return
	}
	l.block = strings.Join(wrapText(l.face, l.opts.Text, l.maxWidth), "\n")
	l.w, l.h = l.face.Measure(l.block)
}

// Apply applies a partial update.
func (l *TextLayer) Apply(u TextLayerUpdate) {
	relayout := false
	if u.Text != nil {
		l.opts.Text = *u.Text
		relayout = true
	}
	if u.MaxWidth != nil {
		l.opts.MaxWidth = *u.MaxWidth
		if *u.MaxWidth > 0 {
			l.maxWidth = *u.MaxWidth
		}
		relayout = true
	}
	if u.X != nil {
		l.opts.X = *u.X
	}
	if u.Y != nil {
		l.opts.Y = *u.Y
	}
	if u.Color != nil {
		l.opts.Color = *u.Color
		l.paint.Color = *u.Color
	}
	if relayout {
		l.layout()
	}
	l.ApplyLayerUpdate(u.LayerUpdate)
}

// Bounds returns the size of the laid out block in logical pixels.
func (l *TextLayer) Bounds() (width, height float64) { return l.w, l.h }

// Draw implements Layer.
func (l *TextLayer) Draw(c Canvas) {
	vp := l.Viewport()
	if vp == nil || l.face == nil || l.block == "" {
		return
	}
	p := vp.ToOffset(l.opts.X, l.opts.Y)
	c.DrawText(l.face, l.block, p.X-l.w/2, p.Y-l.h/2, &l.paint)
}
