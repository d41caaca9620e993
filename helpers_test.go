package mapview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"
	"time"
)

// --- Shared fixtures ---

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// newTestViewport returns a ready viewport over a 1000x1000 map in a
// 500x500 view (scale 0.5) drawing into a recording surface.
func newTestViewport(t *testing.T, opts Options) *Viewport {
	t.Helper()
	if opts.MapSize == (Vec2{}) {
		opts.MapSize = Vec2{1000, 1000}
	}
	if opts.Backend == nil {
		opts.Backend = recordingBackend{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = newFakeFetcher()
	}
	v, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(v.Close)
	return v
}

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// --- Recording canvas ---

type drawCall struct {
	op   string
	tex  *Texture
	src  Rect
	dst  Rect
	n    int
	xf   []RSXform
	text string
	x, y float64
}

type recordingCanvas struct {
	ops   []string
	calls []drawCall
}

func (c *recordingCanvas) ResetMatrix() { c.ops = append(c.ops, "reset") }
func (c *recordingCanvas) Scale(sx, sy float64) {
	c.ops = append(c.ops, fmt.Sprintf("scale(%g,%g)", sx, sy))
}
func (c *recordingCanvas) Translate(dx, dy float64) {
	c.ops = append(c.ops, fmt.Sprintf("translate(%g,%g)", dx, dy))
}
func (c *recordingCanvas) Clear(Color) { c.ops = append(c.ops, "clear") }

func (c *recordingCanvas) DrawImageRect(tex *Texture, src, dst Rect, _ *Paint) {
	c.calls = append(c.calls, drawCall{op: "image", tex: tex, src: src, dst: dst})
}

func (c *recordingCanvas) DrawAtlas(tex *Texture, src []Rect, xf []RSXform, _ *Paint) {
	c.calls = append(c.calls, drawCall{op: "atlas", tex: tex, n: len(src), xf: append([]RSXform(nil), xf...)})
}

func (c *recordingCanvas) DrawRect(r Rect, _ *Paint) {
	c.calls = append(c.calls, drawCall{op: "rect", dst: r})
}

func (c *recordingCanvas) DrawText(_ *FontFace, s string, x, y float64, _ *Paint) {
	c.calls = append(c.calls, drawCall{op: "text", text: s, x: x, y: y})
}

func (c *recordingCanvas) count(op string) int {
	n := 0
	for _, call := range c.calls {
		if call.op == op {
			n++
		}
	}
	return n
}

type recordingSurface struct {
	w, h     int
	canvas   *recordingCanvas
	flushes  int
	disposed bool
}

func (s *recordingSurface) Canvas() Canvas     { return s.canvas }
func (s *recordingSurface) Size() (int, int)   { return s.w, s.h }
func (s *recordingSurface) Flush()             { s.flushes++ }
func (s *recordingSurface) Image() image.Image { return image.NewRGBA(image.Rect(0, 0, s.w, s.h)) }
func (s *recordingSurface) Dispose()           { s.disposed = true }

type recordingBackend struct{}

func (recordingBackend) NewSurface(w, h int) (Surface, error) {
	return &recordingSurface{w: w, h: h, canvas: &recordingCanvas{}}, nil
}

func recorder(v *Viewport) *recordingCanvas {
	return v.Surface().(*recordingSurface).canvas
}

// --- Fake fetcher ---

type fakeFetcher struct {
	mu     sync.Mutex
	images map[string]image.Image
	bytes  map[string][]byte
	calls  map[string]int
	block  chan struct{} // when non-nil, fetches wait for it or ctx
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		images: make(map[string]image.Image),
		bytes:  make(map[string][]byte),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	if f.block == nil {
		return nil
	}
	select {
	case <-f.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeFetcher) FetchImage(ctx context.Context, url string) (image.Image, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	img, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: 404", ErrFetch, url)
	}
	return img, nil
}

func (f *fakeFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	b, ok := f.bytes[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: 404", ErrFetch, url)
	}
	return b, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// gatedFetcher holds every image fetch until release is closed, ignoring
// cancellation, so a fetch can complete after its layer was removed.
type gatedFetcher struct {
	*fakeFetcher
	started chan struct{}
	release chan struct{}
}

func newGatedFetcher(f *fakeFetcher) *gatedFetcher {
	return &gatedFetcher{fakeFetcher: f, started: make(chan struct{}, 64), release: make(chan struct{})}
}

func (g *gatedFetcher) FetchImage(_ context.Context, url string) (image.Image, error) {
	g.started <- struct{}{}
	<-g.release
	return g.fakeFetcher.FetchImage(context.Background(), url)
}

// --- Test layer ---

type testLayer struct {
	BaseLayer
	name     string
	drawn    *[]string
	initFn   func(ctx context.Context, env LayerEnv) error
	disposed int
}

func newTestLayer(name string, z int, drawn *[]string) *testLayer {
	return &testLayer{BaseLayer: NewBaseLayer(LayerOptions{ZIndex: z}), name: name, drawn: drawn}
}

func (l *testLayer) Draw(Canvas) {
	if l.drawn != nil {
		*l.drawn = append(*l.drawn, l.name)
	}
}

func (l *testLayer) Dispose() { l.disposed++ }

// asyncLayer is a testLayer with an Init method.
type asyncLayer struct{ *testLayer }

func (l asyncLayer) Init(ctx context.Context, env LayerEnv) error {
	if l.initFn == nil {
		return nil
	}
	return l.initFn(ctx, env)
}
