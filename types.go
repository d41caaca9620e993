package mapview

import (
	"image/color"
	"math"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication occurs at draw submission time.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default paint color (no tint).
var ColorWhite = Color{1, 1, 1, 1}

// ColorTransparent clears to fully transparent pixels.
var ColorTransparent = Color{}

// RGBA converts the color to an 8-bit premultiplied color.RGBA.
func (c Color) RGBA() color.RGBA {
	a := clamp01(c.A)
	return color.RGBA{
		R: uint8(clamp01(c.R)*a*255 + 0.5),
		G: uint8(clamp01(c.G)*a*255 + 0.5),
		B: uint8(clamp01(c.B)*a*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// Vec2 is a 2D vector used for map coordinates, offsets, sizes and pointer
// positions throughout the API.
type Vec2 struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Mul returns v scaled by s.
func (v Vec2) Mul(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// RectFromLTRB builds a Rect from its edges.
func RectFromLTRB(left, top, right, bottom float64) Rect {
	return Rect{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// RSXform is a compressed rotation+scale+translate matrix used for atlas
// drawing. A source point (x, y) maps to
//
//	(SCos*x - SSin*y + TX, SSin*x + SCos*y + TY)
type RSXform struct {
	SCos, SSin, TX, TY float64
}

// MakeRSXform returns the transform that rotates by rotation radians and
// scales by scale around anchor (in source pixels), then places the anchor
// at translate.
func MakeRSXform(rotation, scale float64, anchor, translate Vec2) RSXform {
	scos := math.Cos(rotation) * scale
	ssin := math.Sin(rotation) * scale
	return RSXform{
		SCos: scos,
		SSin: ssin,
		TX:   translate.X - scos*anchor.X + ssin*anchor.Y,
		TY:   translate.Y - ssin*anchor.X - scos*anchor.Y,
	}
}

// Apply maps a source point through the transform.
func (x RSXform) Apply(p Vec2) Vec2 {
	return Vec2{
		X: x.SCos*p.X - x.SSin*p.Y + x.TX,
		Y: x.SSin*p.X + x.SCos*p.Y + x.TY,
	}
}

// alongSize scales a fractional anchor (0..1 per axis) to pixel units.
func alongSize(anchor Vec2, width, height float64) Vec2 {
	return Vec2{anchor.X * width, anchor.Y * height}
}

// safeCeil rounds n to three decimals before taking the ceiling, so values
// like 3.0000000001 produced by float division do not spill into an extra
// tile.
func safeCeil(n float64) int {
	return int(math.Ceil(math.Round(n*1000) / 1000))
}
