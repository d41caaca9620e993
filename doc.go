// Package mapview is an interactive tiled-map viewer for [Ebitengine].
//
// A [Viewport] holds the view state of one map: its scale (a power of two,
// see [Viewport.Zoom]), the offset of the visible area and an ordered stack
// of layers drawn on top of each other. Gestures pan and zoom the view with
// inertial animations, and clicks are resolved against marker layers.
//
// # Quick start
//
// The simplest way to get started is [Run], which creates a window and game
// loop for you:
//
//	vp, err := mapview.New(mapview.Options{MapSize: mapview.Vec2{X: 8192, Y: 8192}})
//	if err != nil {
//		log.Fatal(err)
//	}
//	tiles, _ := mapview.NewTileLayer(mapview.TileLayerOptions{
//		MinZoom: 0, MaxZoom: 5,
//		TileURL: func(x, y, z int) string {
//			return fmt.Sprintf("https://tiles.example.com/%d/%d/%d.webp", z, x, y)
//		},
//	})
//	vp.AddLayer(tiles)
//	mapview.Run(vp, mapview.RunConfig{Title: "Map", Width: 1024, Height: 768})
//
// For full control, embed [Game] in your own [ebiten.Game], or drive the
// viewport yourself: call [GestureBridge.Update] and [Viewport.Update] from
// Update, [Viewport.Frame] from Draw, and [Viewport.ObserveSize] from
// Layout.
//
// # Coordinate spaces
//
// Map coordinates are the application's units. Offset space is map pixels
// at the current scale, shifted by [Options].Origin. View space is logical
// pixels from the top-left of the visible area. [Viewport.ToOffset],
// [Viewport.ToCoordinate] and [Viewport.ToView] convert between them.
//
// # Layers
//
// Layers embed [BaseLayer] and implement Draw. Optional interfaces add
// asynchronous loading ([Initializer]), cleanup ([Disposer]) and click
// resolution ([HitTester]). Built-in kinds:
//
//   - [TileLayer]: raster tile pyramid with level-of-detail selection
//   - [MarkerLayer]: one icon per point, drawn in a single atlas batch
//   - [ImageLayer]: a single image stretched over a map rectangle
//   - [TextLayer]: a wrapped text block centered on a map point
//   - [OverlayLayer]: screen-space content pinned to a map point
//   - [CustomLayer]: arbitrary drawing
//
// Layers draw in ascending ZIndex order; equal ZIndex values keep
// registration order. Hidden and still-loading layers neither draw nor
// receive clicks.
//
// # Rendering
//
// Drawing goes through the [Canvas] interface. [EbitenBackend] renders on
// the GPU; [SoftwareBackend] renders on the CPU with gogpu/gg and needs no
// window, which makes it suitable for [RenderLoop], [Snapshot] and tests.
// Frames are only drawn after [Viewport.RequestRedraw].
//
// # Threading
//
// Viewport methods run on the loop goroutine. Background work (layer
// initialization, tile fetches) reports back through [Viewport.Post] and
// [Viewport.RequestRedraw], which are safe from any goroutine.
//
// # Automated testing
//
// [GestureBridge] accepts injected input (InjectClick, InjectDrag,
// InjectWheel, InjectPinch), and [LoadTestScript] replays a JSON script of
// such steps with labeled screenshots:
//
//	{"steps": [
//	  {"action": "wheel", "x": 400, "y": 300, "dy": 1},
//	  {"action": "wait", "frames": 30},
//	  {"action": "screenshot", "label": "zoomed"}
//	]}
//
// [Ebitengine]: https://ebitengine.org
package mapview
