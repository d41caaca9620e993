package mapview

import "math"

// Coordinate spaces:
//
//   - map coordinates: the application's units, shifted by Options.Origin
//   - offset space: map pixels at the current scale, (coord+origin)*scale
//   - view space: logical pixels of the visible area, offset space minus the
//     viewport offset
//
// The functions below are pure so they can be tested without a viewport.

// toOffset converts a map coordinate into offset space at the given scale.
func toOffset(p, origin Vec2, scale float64) Vec2 {
	return Vec2{(p.X + origin.X) * scale, (p.Y + origin.Y) * scale}
}

// toCoordinate converts a view-space point into a map coordinate.
func toCoordinate(px, offset, origin Vec2, scale float64) Vec2 {
	return Vec2{
		(px.X+offset.X)/scale - origin.X,
		(px.Y+offset.Y)/scale - origin.Y,
	}
}

// clampScale limits scale so that log2(scale) lies in [minZoom, maxZoom].
// When the bounds cross, minZoom wins.
func clampScale(scale, minZoom, maxZoom float64) float64 {
	zoom := math.Log2(scale)
	zoom = math.Max(math.Min(zoom, maxZoom), minZoom)
	return math.Exp2(zoom)
}

// clampOffset keeps the view inside the scaled map. On an axis where the
// scaled map is smaller than the view the offset is pinned to 0.
func clampOffset(offset, mapSize, view Vec2, scale float64) Vec2 {
	maxX := mapSize.X*scale - view.X
	maxY := mapSize.Y*scale - view.Y
	return Vec2{
		math.Max(math.Min(offset.X, maxX), 0),
		math.Max(math.Min(offset.Y, maxY), 0),
	}
}

// minZoomFor returns the smallest zoom at which the map still covers the
// view on both axes.
func minZoomFor(view, mapSize Vec2) float64 {
	return math.Log2(math.Max(view.X/mapSize.X, view.Y/mapSize.Y))
}

// scaleAbout returns the offset that keeps the view-space point origin fixed
// when the scale changes from oldScale to newScale.
func scaleAbout(offset, origin Vec2, oldScale, newScale float64) Vec2 {
	ratio := (newScale - oldScale) / oldScale
	return Vec2{
		offset.X + (origin.X+offset.X)*ratio,
		offset.Y + (origin.Y+offset.Y)*ratio,
	}
}
