package mapview

import (
	"image"
	"sync"

	"github.com/gogpu/gg"
	"github.com/hajimehoshi/ebiten/v2"
)

// Canvas is the drawing surface handed to Layer.Draw. Transform calls
// pre-concatenate onto the current matrix: after Scale(2, 2) and
// Translate(-10, 0) a point p lands at 2*(p - (10, 0)).
type Canvas interface {
	// ResetMatrix restores the identity transform.
	ResetMatrix()
	Scale(sx, sy float64)
	Translate(dx, dy float64)

	// Clear fills the whole surface with c, ignoring the transform.
	Clear(c Color)

	// DrawImageRect draws the src region of tex scaled into dst.
	DrawImageRect(tex *Texture, src, dst Rect, p *Paint)

	// DrawAtlas draws one sprite per entry: src[i] of tex placed by xf[i].
	// src and xf must have equal length.
	DrawAtlas(tex *Texture, src []Rect, xf []RSXform, p *Paint)

	// DrawRect fills r with p.Color.
	DrawRect(r Rect, p *Paint)

	// DrawText draws s with its top-left corner at (x, y).
	DrawText(face *FontFace, s string, x, y float64, p *Paint)
}

// Paint carries per-draw styling. A nil *Paint draws images untinted and
// shapes in opaque white.
type Paint struct {
	// Color tints images and fills shapes and text. The zero value is
	// treated as opaque white.
	Color Color
	// Nearest selects nearest-neighbor sampling instead of linear.
	Nearest bool
}

func (p *Paint) color() Color {
	if p == nil || p.Color == (Color{}) {
		return ColorWhite
	}
	return p.Color
}

func (p *Paint) nearest() bool {
	return p != nil && p.Nearest
}

// Surface is a backend render target sized in device pixels.
type Surface interface {
	Canvas() Canvas
	// Size returns the surface size in device pixels.
	Size() (width, height int)
	// Flush submits pending draw commands.
	Flush()
	// Image returns the rendered pixels. For GPU surfaces it is only valid on
	// the loop goroutine while the game is running.
	Image() image.Image
	Dispose()
}

// Backend allocates surfaces. The viewport asks for a new surface on every
// resize.
type Backend interface {
	NewSurface(width, height int) (Surface, error)
}

// Texture is a decoded image usable by every backend. Backend copies are
// created lazily on first draw and released by Dispose.
type Texture struct {
	src  image.Image
	w, h int

	mu       sync.Mutex
	gpu      *ebiten.Image
	soft     *gg.ImageBuf
	disposed bool
}

// NewTexture wraps img. img must not be modified afterwards.
func NewTexture(img image.Image) *Texture {
	b := img.Bounds()
	return &Texture{src: img, w: b.Dx(), h: b.Dy()}
}

// NewTextureFromEbiten wraps an existing GPU image. The texture is only
// drawable by the Ebitengine backend.
func NewTextureFromEbiten(img *ebiten.Image) *Texture {
	b := img.Bounds()
	return &Texture{src: img, gpu: img, w: b.Dx(), h: b.Dy()}
}

// Size returns the texture dimensions in pixels.
func (t *Texture) Size() (width, height int) { return t.w, t.h }

// Bounds returns the full texture rectangle.
func (t *Texture) Bounds() Rect { return Rect{0, 0, float64(t.w), float64(t.h)} }

// Image returns the source image.
func (t *Texture) Image() image.Image { return t.src }

// Dispose releases backend copies. A disposed texture draws nothing.
func (t *Texture) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	if t.gpu != nil {
		t.gpu.Deallocate()
		t.gpu = nil
	}
	t.soft = nil
}

// Disposed reports whether Dispose has been called.
func (t *Texture) Disposed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disposed
}

func (t *Texture) ebitenImage() *ebiten.Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return nil
	}
	if t.gpu == nil {
		t.gpu = ebiten.NewImageFromImage(t.src)
	}
	return t.gpu
}

func (t *Texture) ggImage() *gg.ImageBuf {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return nil
	}
	if t.soft == nil {
		t.soft = gg.ImageBufFromImage(t.src)
	}
	return t.soft
}
