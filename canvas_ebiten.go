package mapview

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// maxQuadsPerDraw caps a single DrawTriangles32 submission so index counts
// stay well inside Ebitengine's per-call limits.
const maxQuadsPerDraw = 16383

// EbitenBackend allocates GPU surfaces backed by offscreen ebiten.Images.
type EbitenBackend struct{}

// NewSurface implements Backend.
func (EbitenBackend) NewSurface(width, height int) (Surface, error) {
	img := ebiten.NewImageWithOptions(image.Rect(0, 0, max(width, 1), max(height, 1)), nil)
	return &ebitenSurface{img: img, canvas: NewEbitenCanvas(img)}, nil
}

type ebitenSurface struct {
	img    *ebiten.Image
	canvas *EbitenCanvas
}

func (s *ebitenSurface) Canvas() Canvas { return s.canvas }

func (s *ebitenSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Flush is a no-op: Ebitengine submits queued commands at frame end.
func (s *ebitenSurface) Flush() {}

func (s *ebitenSurface) Image() image.Image { return readPixels(s.img) }

func (s *ebitenSurface) Dispose() { s.img.Deallocate() }

// EbitenImage returns the surface's backing image so hosts can composite it
// onto the screen.
func (s *ebitenSurface) EbitenImage() *ebiten.Image { return s.img }

// EbitenCanvas draws onto an ebiten.Image. Images and atlas sprites are
// submitted as DrawTriangles32 quads with premultiplied vertex colors.
type EbitenCanvas struct {
	target *ebiten.Image
	m      ebiten.GeoM

	verts []ebiten.Vertex
	inds  []uint32
}

// NewEbitenCanvas returns a canvas that draws onto target, such as the
// screen image passed to ebiten.Game.Draw.
func NewEbitenCanvas(target *ebiten.Image) *EbitenCanvas {
	return &EbitenCanvas{target: target}
}

// SetTarget redirects drawing to another image and resets the matrix.
func (c *EbitenCanvas) SetTarget(target *ebiten.Image) {
	c.target = target
	c.m.Reset()
}

func (c *EbitenCanvas) ResetMatrix() { c.m.Reset() }

func (c *EbitenCanvas) Scale(sx, sy float64) {
	var t ebiten.GeoM
	t.Scale(sx, sy)
	t.Concat(c.m)
	c.m = t
}

func (c *EbitenCanvas) Translate(dx, dy float64) {
	var t ebiten.GeoM
	t.Translate(dx, dy)
	t.Concat(c.m)
	c.m = t
}

func (c *EbitenCanvas) Clear(col Color) {
	if col == ColorTransparent {
		c.target.Clear()
		return
	}
	c.target.Fill(col.RGBA())
}

func (c *EbitenCanvas) DrawImageRect(tex *Texture, src, dst Rect, p *Paint) {
	img := tex.ebitenImage()
	if img == nil || src.Width <= 0 || src.Height <= 0 {
		return
	}
	corners := [4]Vec2{
		{dst.X, dst.Y},
		{dst.Right(), dst.Y},
		{dst.X, dst.Bottom()},
		{dst.Right(), dst.Bottom()},
	}
	c.appendQuad(src, corners, p.color())
	c.flush(img, p)
}

func (c *EbitenCanvas) DrawAtlas(tex *Texture, src []Rect, xf []RSXform, p *Paint) {
	img := tex.ebitenImage()
	if img == nil {
		return
	}
	col := p.color()
	n := min(len(src), len(xf))
	for i := 0; i < n; i++ {
		r := src[i]
		x := xf[i]
		corners := [4]Vec2{
			x.Apply(Vec2{0, 0}),
			x.Apply(Vec2{r.Width, 0}),
			x.Apply(Vec2{0, r.Height}),
			x.Apply(Vec2{r.Width, r.Height}),
		}
		c.appendQuad(r, corners, col)
		if len(c.verts)/4 >= maxQuadsPerDraw {
			c.flush(img, p)
		}
	}
	c.flush(img, p)
}

func (c *EbitenCanvas) DrawRect(r Rect, p *Paint) {
	corners := [4]Vec2{
		{r.X, r.Y},
		{r.Right(), r.Y},
		{r.X, r.Bottom()},
		{r.Right(), r.Bottom()},
	}
	c.appendQuad(Rect{1, 1, 1, 1}, corners, p.color())
	c.flush(whitePixel(), p)
}

func (c *EbitenCanvas) DrawText(face *FontFace, s string, x, y float64, p *Paint) {
	if face == nil || s == "" {
		return
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.GeoM.Concat(c.m)
	op.LineSpacing = face.lh
	col := p.color()
	op.ColorScale.Scale(float32(col.R*col.A), float32(col.G*col.A), float32(col.B*col.A), float32(col.A))
	if !p.nearest() {
		op.Filter = ebiten.FilterLinear
	}
	text.Draw(c.target, s, face.face, op)
}

// appendQuad appends 4 vertices and 6 indices. corners are TL, TR, BL, BR
// in canvas space before the current matrix.
func (c *EbitenCanvas) appendQuad(src Rect, corners [4]Vec2, col Color) {
	sx := [4]float32{float32(src.X), float32(src.Right()), float32(src.X), float32(src.Right())}
	sy := [4]float32{float32(src.Y), float32(src.Y), float32(src.Bottom()), float32(src.Bottom())}

	ca := float32(col.A)
	cr := float32(col.R) * ca
	cg := float32(col.G) * ca
	cb := float32(col.B) * ca

	base := uint32(len(c.verts))
	for i := 0; i < 4; i++ {
		dx, dy := c.m.Apply(corners[i].X, corners[i].Y)
		c.verts = append(c.verts, ebiten.Vertex{
			DstX:   float32(dx),
			DstY:   float32(dy),
			SrcX:   sx[i],
			SrcY:   sy[i],
			ColorR: cr,
			ColorG: cg,
			ColorB: cb,
			ColorA: ca,
		})
	}
	// Two triangles: TL-TR-BL, TR-BR-BL
	c.inds = append(c.inds,
		base+0, base+1, base+2,
		base+1, base+3, base+2,
	)
}

// flush submits accumulated quads as a single DrawTriangles32 call.
func (c *EbitenCanvas) flush(img *ebiten.Image, p *Paint) {
	if len(c.verts) == 0 {
		return
	}
	var op ebiten.DrawTrianglesOptions
	op.ColorScaleMode = ebiten.ColorScaleModePremultipliedAlpha
	if !p.nearest() {
		op.Filter = ebiten.FilterLinear
	}
	c.target.DrawTriangles32(c.verts, c.inds, img, &op)
	c.verts = c.verts[:0]
	c.inds = c.inds[:0]
}

// whiteImage is a 3x3 white image. Rects sample its center texel so linear
// filtering never samples outside the image.
var whiteImage *ebiten.Image

func whitePixel() *ebiten.Image {
	if whiteImage == nil {
		whiteImage = ebiten.NewImage(3, 3)
		whiteImage.Fill(ColorWhite.RGBA())
	}
	return whiteImage
}
