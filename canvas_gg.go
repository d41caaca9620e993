package mapview

import (
	"image"
	"io"
	"math"
	"strings"

	"github.com/gogpu/gg"
)

// SoftwareBackend allocates CPU surfaces rendered by gogpu/gg. It needs no
// window or GPU, which makes it the backend for headless rendering,
// snapshots and tests.
type SoftwareBackend struct{}

// NewSurface implements Backend.
func (SoftwareBackend) NewSurface(width, height int) (Surface, error) {
	ctx := gg.NewContext(max(width, 1), max(height, 1))
	return &ggSurface{ctx: ctx, canvas: &GGCanvas{ctx: ctx}}, nil
}

type ggSurface struct {
	ctx    *gg.Context
	canvas *GGCanvas
}

func (s *ggSurface) Canvas() Canvas { return s.canvas }

func (s *ggSurface) Size() (int, int) { return s.ctx.Width(), s.ctx.Height() }

func (s *ggSurface) Flush() {}

func (s *ggSurface) Image() image.Image { return s.ctx.Image() }

func (s *ggSurface) Dispose() {
	if err := s.ctx.Close(); err != nil {
		Logger().Debug("close software surface", "err", err)
	}
}

// GGCanvas draws onto a gg.Context. Image placement is axis-aligned: the
// rotation part of an RSXform is ignored.
type GGCanvas struct {
	ctx *gg.Context
}

// NewGGCanvas wraps an existing context.
func NewGGCanvas(ctx *gg.Context) *GGCanvas { return &GGCanvas{ctx: ctx} }

func (c *GGCanvas) ResetMatrix() { c.ctx.Identity() }

func (c *GGCanvas) Scale(sx, sy float64) { c.ctx.Scale(sx, sy) }

func (c *GGCanvas) Translate(dx, dy float64) { c.ctx.Translate(dx, dy) }

func (c *GGCanvas) Clear(col Color) {
	if col == ColorTransparent {
		c.ctx.Clear()
		return
	}
	c.ctx.ClearWithColor(gg.RGBA{R: col.R, G: col.G, B: col.B, A: col.A})
}

func (c *GGCanvas) DrawImageRect(tex *Texture, src, dst Rect, p *Paint) {
	img := tex.ggImage()
	col := p.color()
	if img == nil || col.A <= 0 || src.Width <= 0 || src.Height <= 0 {
		return
	}
	c.drawImage(img, src, dst, col.A, p.nearest())
}

func (c *GGCanvas) drawImage(img *gg.ImageBuf, src, dst Rect, opacity float64, nearest bool) {
	sr := image.Rect(
		int(math.Floor(src.X)), int(math.Floor(src.Y)),
		int(math.Ceil(src.Right())), int(math.Ceil(src.Bottom())),
	)
	interp := gg.InterpBilinear
	if nearest {
		interp = gg.InterpNearest
	}
	c.ctx.DrawImageEx(img, gg.DrawImageOptions{
		X:             dst.X,
		Y:             dst.Y,
		DstWidth:      dst.Width,
		DstHeight:     dst.Height,
		SrcRect:       &sr,
		Interpolation: interp,
		Opacity:       opacity,
	})
}

func (c *GGCanvas) DrawAtlas(tex *Texture, src []Rect, xf []RSXform, p *Paint) {
	img := tex.ggImage()
	col := p.color()
	if img == nil || col.A <= 0 {
		return
	}
	n := min(len(src), len(xf))
	for i := 0; i < n; i++ {
		r := src[i]
		x := xf[i]
		s := math.Hypot(x.SCos, x.SSin)
		dst := Rect{X: x.TX, Y: x.TY, Width: r.Width * s, Height: r.Height * s}
		c.drawImage(img, r, dst, col.A, p.nearest())
	}
}

func (c *GGCanvas) DrawRect(r Rect, p *Paint) {
	col := p.color()
	c.ctx.DrawRectangle(r.X, r.Y, r.Width, r.Height)
	c.ctx.SetRGBA(col.R, col.G, col.B, col.A)
	if err := c.ctx.Fill(); err != nil {
		Logger().Debug("fill rect", "err", err)
	}
}

// DrawText places glyphs at the transformed anchor; glyph size does not
// follow the canvas scale.
func (c *GGCanvas) DrawText(face *FontFace, s string, x, y float64, p *Paint) {
	if face == nil || s == "" {
		return
	}
	gf := face.ggFace()
	if gf == nil {
		return
	}
	col := p.color()
	c.ctx.SetFont(gf)
	c.ctx.SetRGBA(col.R, col.G, col.B, col.A)
	ascent := face.face.Metrics().HAscent
	for i, line := range strings.Split(s, "\n") {
		dx, dy := c.ctx.TransformPoint(x, y+ascent+float64(i)*face.lh)
		c.ctx.Push()
		c.ctx.Identity()
		c.ctx.DrawString(line, dx, dy)
		c.ctx.Pop()
	}
}

// EncodePNG writes the surface pixels as PNG.
func (s *ggSurface) EncodePNG(w io.Writer) error { return s.ctx.EncodePNG(w) }
