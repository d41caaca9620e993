package mapview

import (
	"context"
	"slices"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func testFace(t *testing.T) *FontFace {
	t.Helper()
	f, err := DefaultFontFace(16)
	if err != nil {
		t.Fatalf("DefaultFontFace: %v", err)
	}
	return f
}

func TestWrapText(t *testing.T) {
	face := testFace(t)
	w, _ := face.Measure("hello world")

	got := wrapText(face, "hello world again", w)
	if want := []string{"hello world", "again"}; !slices.Equal(got, want) {
		t.Errorf("wrap = %q, want %q", got, want)
	}

	got = wrapText(face, "hello\nworld", 0)
	if want := []string{"hello", "world"}; !slices.Equal(got, want) {
		t.Errorf("newlines = %q, want %q", got, want)
	}

	got = wrapText(face, "extraordinarily long", 1)
	if want := []string{"extraordinarily", "long"}; !slices.Equal(got, want) {
		t.Errorf("narrow = %q, want %q", got, want)
	}

	got = wrapText(face, "a\n\nb", 100)
	if want := []string{"a", "", "b"}; !slices.Equal(got, want) {
		t.Errorf("blank line = %q, want %q", got, want)
	}
}

func TestFontFaceMeasure(t *testing.T) {
	face := testFace(t)
	w1, h1 := face.Measure("x")
	w2, h2 := face.Measure("xx\nx")
	if !(w2 > w1) || !(h2 > h1) {
		t.Errorf("Measure: one line %vx%v, two lines %vx%v", w1, h1, w2, h2)
	}
	big := face.WithSize(32)
	if bw, _ := big.Measure("x"); !(bw > w1) {
		t.Errorf("WithSize(32) width %v not larger than %v", bw, w1)
	}
	if _, err := NewFontFace([]byte("not a font"), 12); err == nil {
		t.Error("NewFontFace accepted garbage")
	}
}

func TestTextLayerDrawCentered(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	l := NewTextLayer(TextLayerOptions{Text: "Harbor", X: 100, Y: 100})
	initLayer(t, v, l)
	if !l.Initialized() {
		t.Fatal("text layer not initialized")
	}
	v.Frame()
	c := recorder(v)
	if c.count("text") != 1 {
		t.Fatalf("text draws = %d, want 1", c.count("text"))
	}
	w, h := l.Bounds()
	call := c.calls[0]
	if call.text != "Harbor" || !approx(call.x, 50-w/2, 1e-9) || !approx(call.y, 50-h/2, 1e-9) {
		t.Errorf("DrawText(%q, %v, %v), want centered on (50, 50) for a %vx%v block", call.text, call.x, call.y, w, h)
	}
}

func TestTextLayerWrapsToView(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	l := NewTextLayer(TextLayerOptions{Text: "one two three"})
	initLayer(t, v, l)
	if l.maxWidth != 500 {
		t.Errorf("maxWidth = %v, want the view width", l.maxWidth)
	}

	text, width := "one two three", 1.0
	l.Apply(TextLayerUpdate{Text: &text, MaxWidth: &width})
	if l.block != "one\ntwo\nthree" {
		t.Errorf("block = %q", l.block)
	}
}

func TestTextLayerFontCache(t *testing.T) {
	v := newTestViewport(t, Options{})
	f := v.Fetcher().(*fakeFetcher)
	f.bytes["fonts/go.ttf"] = goregular.TTF
	v.Resize(500, 500)

	a := NewTextLayer(TextLayerOptions{Text: "a", FontURL: "fonts/go.ttf"})
	initLayer(t, v, a)
	b := NewTextLayer(TextLayerOptions{Text: "b", FontURL: "fonts/go.ttf", Size: 24})
	initLayer(t, v, b)
	if !a.Initialized() || !b.Initialized() {
		t.Fatal("text layers not initialized")
	}
	if n := f.count("fonts/go.ttf"); n != 1 {
		t.Errorf("font fetched %d times, want 1", n)
	}
	if b.face.Size() != 24 {
		t.Errorf("face size = %v, want 24", b.face.Size())
	}
}

func TestLoadFontFaceError(t *testing.T) {
	env := LayerEnv{Fetcher: newFakeFetcher(), Cache: NewResourceCache(0)}
	if _, err := loadFontFace(context.Background(), env, "missing.ttf", 12); err == nil {
		t.Error("missing font loaded")
	}
}
