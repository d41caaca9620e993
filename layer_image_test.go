package mapview

import (
	"errors"
	"image/color"
	"testing"
)

func TestNewImageLayerRequiresOneSource(t *testing.T) {
	if _, err := NewImageLayer(ImageLayerOptions{}); err == nil {
		t.Error("no source accepted")
	}
	img := solidImage(2, 2, color.White)
	if _, err := NewImageLayer(ImageLayerOptions{Image: img, URL: "x.png"}); err == nil {
		t.Error("two sources accepted")
	}
}

func TestBuildPyramid(t *testing.T) {
	levels, lowest := buildPyramid(solidImage(64, 32, color.White), -3)
	if lowest != -2 || len(levels) != 3 {
		t.Fatalf("lowest = %d, levels = %d; want -2, 3", lowest, len(levels))
	}
	for zoom, want := range map[int][2]int{0: {64, 32}, -1: {32, 16}, -2: {16, 8}} {
		w, h := levels[zoom].Size()
		if w != want[0] || h != want[1] {
			t.Errorf("level %d = %dx%d, want %dx%d", zoom, w, h, want[0], want[1])
		}
	}

	levels, lowest = buildPyramid(solidImage(2, 2, color.White), -10)
	if lowest != -1 || len(levels) != 2 {
		t.Errorf("tiny image: lowest = %d, levels = %d; want -1, 2", lowest, len(levels))
	}
}

func TestImageLayerLevel(t *testing.T) {
	l := &ImageLayer{}
	l.levels, l.lowest = buildPyramid(solidImage(64, 64, color.White), -3)
	tests := []struct {
		zoom float64
		want int
	}{
		{1, 0},
		{0, 0},
		{-1.5, 0},
		{-2.5, -1},
		{-3, -2},
	}
	for _, tt := range tests {
		w, _ := l.level(tt.zoom, -3).Size()
		if want := 64 >> -tt.want; w != want {
			t.Errorf("level(%v) width = %d, want %d", tt.zoom, w, want)
		}
	}

	// A level below the pyramid falls back to the smallest copy.
	l.levels, l.lowest = buildPyramid(solidImage(4, 4, color.White), -6)
	if w, _ := l.level(-6, -6).Size(); w != 1 {
		t.Errorf("fallback width = %d, want 1", w)
	}
}

func TestImageLayerDraw(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	l, err := NewImageLayer(ImageLayerOptions{
		Image:  solidImage(100, 100, color.White),
		Bounds: Rect{X: 200, Y: 400, Width: 200, Height: 100},
	})
	if err != nil {
		t.Fatal(err)
	}
	initLayer(t, v, l)
	v.Frame()
	c := recorder(v)
	if c.count("image") != 1 {
		t.Fatalf("image draws = %d, want 1", c.count("image"))
	}
	if d := c.calls[0].dst; d != (Rect{100, 200, 100, 50}) {
		t.Errorf("dst = %v, want {100 200 100 50}", d)
	}

	// Moved out of view.
	b := Rect{X: 5000, Y: 5000, Width: 10, Height: 10}
	l.Apply(ImageLayerUpdate{Bounds: &b})
	c.calls = nil
	v.Frame()
	if c.count("image") != 0 {
		t.Error("offscreen image drawn")
	}
}

func TestImageLayerURL(t *testing.T) {
	var reported error
	v := newTestViewport(t, Options{OnError: func(err error) { reported = err }})
	f := v.Fetcher().(*fakeFetcher)
	f.images["map.png"] = solidImage(8, 8, color.White)
	v.Resize(500, 500)

	ok, _ := NewImageLayer(ImageLayerOptions{URL: "map.png", Bounds: Rect{Width: 1000, Height: 1000}})
	initLayer(t, v, ok)
	if !ok.Initialized() || f.count("map.png") != 1 {
		t.Error("image layer did not load its URL")
	}

	bad, _ := NewImageLayer(ImageLayerOptions{URL: "missing.png"})
	initLayer(t, v, bad)
	if !errors.Is(reported, ErrFetch) || bad.Initialized() {
		t.Errorf("reported = %v, want ErrFetch", reported)
	}

	tex := ok.levels[0]
	v.RemoveLayer(ok)
	if !tex.Disposed() {
		t.Error("Dispose kept the pyramid")
	}
}

func TestImageLayerRemovedDuringInit(t *testing.T) {
	f := newFakeFetcher()
	f.images["map.png"] = solidImage(8, 8, color.White)
	gf := newGatedFetcher(f)
	v := newTestViewport(t, Options{Fetcher: gf})
	v.Resize(500, 500)

	l, _ := NewImageLayer(ImageLayerOptions{URL: "map.png", Bounds: Rect{Width: 1000, Height: 1000}})
	if err := v.AddLayer(l); err != nil {
		t.Fatal(err)
	}
	<-gf.started
	v.RemoveLayer(l)
	close(gf.release)
	v.inits.Wait()
	v.Update(t0)

	if f.count("map.png") != 1 {
		t.Fatal("image was not fetched")
	}
	l.mu.Lock()
	n := len(l.levels)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("removed layer published %d pyramid levels", n)
	}
	if l.Initialized() {
		t.Error("removed layer became initialized")
	}
}
