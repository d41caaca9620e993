package mapview

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"golang.org/x/image/draw"
)

// ImageLayerOptions configures an ImageLayer. Exactly one of Image and URL
// must be set.
type ImageLayerOptions struct {
	LayerOptions
	Image image.Image
	// URL is fetched with the viewport's Fetcher during Init.
	URL string
	// Bounds is the area covered by the image, in map coordinates.
	Bounds Rect
}

// ImageLayerUpdate is a partial update of ImageLayerOptions.
type ImageLayerUpdate struct {
	LayerUpdate
	Bounds *Rect
}

// ImageLayer draws one image stretched over a map rectangle. Init builds a
// pyramid of half-size copies, one per zoom level below 0, so zoomed-out
// frames sample a small texture.
type ImageLayer struct {
	BaseLayer
	opts ImageLayerOptions

	// mu orders Init's publication against Dispose.
	mu       sync.Mutex
	disposed bool
	levels   map[int]*Texture // zoom -> texture, 0 is the source
	lowest   int
	paint    Paint
}

// NewImageLayer returns an image layer.
func NewImageLayer(opts ImageLayerOptions) (*ImageLayer, error) {
	if (opts.Image == nil) == (opts.URL == "") {
		return nil, errors.New("mapview: image layer: set exactly one of Image and URL")
	}
	return &ImageLayer{BaseLayer: NewBaseLayer(opts.LayerOptions), opts: opts}, nil
}

// Options returns the layer configuration.
func (l *ImageLayer) Options() ImageLayerOptions { return l.opts }

// Apply applies a partial update.
func (l *ImageLayer) Apply(u ImageLayerUpdate) {
	if u.Bounds != nil {
		l.opts.Bounds = *u.Bounds
	}
	l.ApplyLayerUpdate(u.LayerUpdate)
}

// Init implements Initializer. The pyramid is built off the loop goroutine
// and published only if the layer was not removed meanwhile; otherwise it is
// released.
func (l *ImageLayer) Init(ctx context.Context, env LayerEnv) error {
	l.mu.Lock()
	l.disposed = false
	l.mu.Unlock()

	img := l.opts.Image
	if img == nil {
		var err error
		if img, err = env.Fetcher.FetchImage(ctx, l.opts.URL); err != nil {
			return fmt.Errorf("image layer: %w", err)
		}
	}
	levels, lowest := buildPyramid(img, env.MinZoom)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil || l.disposed {
		disposeLevels(levels)
		return errLayerDisposed
	}
	l.levels, l.lowest = levels, lowest
	return nil
}

// buildPyramid halves img once per zoom level from -1 down to, but not
// including, minZoom.
func buildPyramid(img image.Image, minZoom float64) (map[int]*Texture, int) {
	levels := map[int]*Texture{0: NewTexture(img)}
	lowest := 0
	src := img
	for zoom := -1; float64(zoom) > minZoom; zoom-- {
		b := src.Bounds()
		w, h := max(b.Dx()/2, 1), max(b.Dy()/2, 1)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		levels[zoom] = NewTexture(dst)
		lowest = zoom
		src = dst
		if w == 1 && h == 1 {
			break
		}
	}
	return levels, lowest
}

// Dispose releases the pyramid textures. A pyramid still being built is
// released by Init.
func (l *ImageLayer) Dispose() {
	l.mu.Lock()
	levels := l.levels
	l.levels = nil
	l.disposed = true
	l.mu.Unlock()
	disposeLevels(levels)
}

func disposeLevels(levels map[int]*Texture) {
	for _, t := range levels {
		t.Dispose()
	}
}

// level returns the pyramid level drawn at zoom.
func (l *ImageLayer) level(zoom, minZoom float64) *Texture {
	z := int(math.Ceil(math.Max(math.Min(zoom+1, 0), minZoom)))
	if t, ok := l.levels[z]; ok {
		return t
	}
	return l.levels[l.lowest]
}

// Draw implements Layer.
func (l *ImageLayer) Draw(c Canvas) {
	vp := l.Viewport()
	if vp == nil || len(l.levels) == 0 {
		return
	}
	tex := l.level(vp.Zoom(), vp.MinZoom())
	if tex == nil {
		return
	}
	b := l.opts.Bounds
	off := vp.ToOffset(b.X, b.Y)
	dst := Rect{X: off.X, Y: off.Y, Width: b.Width * vp.Scale(), Height: b.Height * vp.Scale()}
	if vp.Rect().Intersects(dst) {
		c.DrawImageRect(tex, tex.Bounds(), dst, &l.paint)
	}
}
