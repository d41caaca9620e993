package mapview

import (
	"image/color"
	"testing"
)

// newMarkerViewport returns the standard 1000x1000 map at scale 0.5 with a
// marker layer using a 10x10 bottom-anchored icon.
func newMarkerViewport(t *testing.T, items []MarkerItem, opts Options) (*Viewport, *MarkerLayer, *[]*MarkerItem) {
	t.Helper()
	v := newTestViewport(t, opts)
	v.Resize(500, 500)
	var clicked []*MarkerItem
	l := NewMarkerLayer(MarkerLayerOptions{
		Items:   items,
		Icon:    NewTexture(solidImage(10, 10, color.White)),
		Anchor:  Vec2{0.5, 1},
		OnClick: func(it *MarkerItem) { clicked = append(clicked, it) },
	})
	if err := v.AddLayer(l); err != nil {
		t.Fatal(err)
	}
	return v, l, &clicked
}

func TestMarkerHitTest(t *testing.T) {
	_, l, _ := newMarkerViewport(t, []MarkerItem{{X: 100, Y: 100, Data: "a"}}, Options{})
	// At scale 0.5 the icon covers 20x20 map units: x 90..110, y 80..100.
	tests := []struct {
		p   Vec2
		hit bool
	}{
		{Vec2{100, 90}, true},
		{Vec2{91, 81}, true},
		{Vec2{90, 90}, false},
		{Vec2{110, 90}, false},
		{Vec2{100, 80}, false},
		{Vec2{100, 100}, false},
		{Vec2{100, 105}, false},
	}
	for _, tt := range tests {
		item, hit := l.HitTest(tt.p)
		if hit != tt.hit {
			t.Errorf("HitTest(%v) = %v, want %v", tt.p, hit, tt.hit)
		}
		if hit && item.Data != "a" {
			t.Errorf("HitTest(%v) item = %+v", tt.p, item)
		}
	}
}

func TestMarkerHitTestFirstItemWins(t *testing.T) {
	_, l, _ := newMarkerViewport(t, []MarkerItem{
		{X: 100, Y: 100, Data: "first"},
		{X: 102, Y: 100, Data: "second"},
	}, Options{})
	item, ok := l.HitTest(Vec2{101, 90})
	if !ok || item.Data != "first" {
		t.Errorf("HitTest = %+v, %v; want the first item", item, ok)
	}
}

func TestMarkerClick(t *testing.T) {
	var events []ClickEvent
	v, l, clicked := newMarkerViewport(t, []MarkerItem{{X: 100, Y: 100}}, Options{
		OnClick: func(e ClickEvent) { events = append(events, e) },
	})
	ev := v.Click(50, 45)
	if ev.Layer != Layer(l) || ev.Item == nil {
		t.Fatalf("Click = %+v, want a hit on the marker layer", ev)
	}
	if ev.Coordinate != (Vec2{100, 90}) {
		t.Errorf("Coordinate = %v, want {100 90}", ev.Coordinate)
	}
	if len(*clicked) != 1 || (*clicked)[0] != &l.Items()[0] {
		t.Errorf("item callback calls = %d", len(*clicked))
	}

	miss := v.Click(400, 400)
	if miss.Layer != nil || miss.Item != nil {
		t.Errorf("miss = %+v", miss)
	}
	if len(*clicked) != 1 {
		t.Error("item callback called on a miss")
	}
	if len(events) != 2 {
		t.Errorf("OnClick calls = %d, want 2 (hit and miss)", len(events))
	}
}

func TestMarkerHitTestSkipsHiddenLayers(t *testing.T) {
	v, l, _ := newMarkerViewport(t, []MarkerItem{{X: 100, Y: 100}}, Options{})
	v.HideLayer(l)
	if ev := v.HitTest(50, 45); ev.Layer != nil {
		t.Error("hidden layer was hit")
	}
}

func TestMarkerHitTestTopmostFirst(t *testing.T) {
	v, low, _ := newMarkerViewport(t, []MarkerItem{{X: 100, Y: 100}}, Options{})
	high := NewMarkerLayer(MarkerLayerOptions{
		LayerOptions: LayerOptions{ZIndex: 1},
		Items:        []MarkerItem{{X: 100, Y: 100}},
		Icon:         low.Options().Icon,
		Anchor:       Vec2{0.5, 1},
	})
	_ = v.AddLayer(high)
	if ev := v.HitTest(50, 45); ev.Layer != Layer(high) {
		t.Errorf("hit layer = %v, want the higher ZIndex", ev.Layer)
	}
}

func TestMarkerDraw(t *testing.T) {
	v, _, _ := newMarkerViewport(t, []MarkerItem{
		{X: 100, Y: 100},
		{X: 1000, Y: 1000},
		{X: 2000, Y: 2000},
	}, Options{})
	v.Frame()
	c := recorder(v)
	if c.count("atlas") != 1 {
		t.Fatalf("atlas draws = %d, want 1", c.count("atlas"))
	}
	call := c.calls[0]
	if call.n != 2 {
		t.Errorf("instances = %d, want 2 (offscreen item culled)", call.n)
	}
	// Item (100, 100) is at offset (50, 50); the bottom center of the icon
	// sits there.
	if tl := call.xf[0].Apply(Vec2{}); tl != (Vec2{45, 40}) {
		t.Errorf("icon top-left = %v, want {45 40}", tl)
	}
}

func TestMarkerApply(t *testing.T) {
	v, l, _ := newMarkerViewport(t, nil, Options{})
	v.Frame()
	if recorder(v).count("atlas") != 0 {
		t.Error("empty marker layer drew")
	}
	items := []MarkerItem{{X: 10, Y: 10}}
	scale := 2.0
	l.Apply(MarkerLayerUpdate{Items: &items, Scale: &scale})
	if !v.Dirty() {
		t.Fatal("Apply did not request a redraw")
	}
	v.Frame()
	c := recorder(v)
	if c.count("atlas") != 1 || c.calls[0].xf[0].SCos != 2 {
		t.Errorf("updated markers not drawn at scale 2")
	}
}

func TestMarkerIconRegion(t *testing.T) {
	_, l, _ := newMarkerViewport(t, []MarkerItem{{X: 100, Y: 100}}, Options{})
	region := Rect{X: 2, Y: 2, Width: 4, Height: 4}
	l.Apply(MarkerLayerUpdate{IconRegion: &region})
	if r := l.iconRect(); r != region {
		t.Errorf("iconRect = %v", r)
	}
	// 4x4 at scale 0.5 is 8x8 map units: x 96..104, y 92..100.
	if _, ok := l.HitTest(Vec2{95, 95}); ok {
		t.Error("hit outside the smaller region")
	}
	if _, ok := l.HitTest(Vec2{97, 95}); !ok {
		t.Error("missed inside the region")
	}
}
