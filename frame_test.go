package mapview

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestDrawFrameOrder(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	var drawn []string
	for _, l := range []*testLayer{
		newTestLayer("3", 3, &drawn),
		newTestLayer("1a", 1, &drawn),
		newTestLayer("1b", 1, &drawn),
		newTestLayer("2", 2, &drawn),
	} {
		if err := v.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}
	if !v.Frame() {
		t.Fatal("Frame = false, want a drawn frame")
	}
	want := []string{"1a", "1b", "2", "3"}
	if !slices.Equal(drawn, want) {
		t.Errorf("draw order = %v, want %v", drawn, want)
	}
}

func TestDrawFrameSkipsHiddenAndLoading(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	var drawn []string
	shown := newTestLayer("shown", 0, &drawn)
	hidden := newTestLayer("hidden", 0, &drawn)
	loading := asyncLayer{newTestLayer("loading", 0, &drawn)}
	block := make(chan struct{})
	loading.initFn = func(ctx context.Context, env LayerEnv) error {
		<-block
		return nil
	}
	_ = v.AddLayer(shown)
	_ = v.AddLayer(hidden)
	_ = v.AddLayer(loading)
	v.HideLayer(hidden)

	v.Frame()
	if !slices.Equal(drawn, []string{"shown"}) {
		t.Errorf("drawn = %v, want [shown]", drawn)
	}

	close(block)
	v.inits.Wait()
	v.Update(t0)
	v.ShowLayer(hidden)
	drawn = nil
	v.Frame()
	if len(drawn) != 3 {
		t.Errorf("drawn = %v, want all three layers", drawn)
	}
}

func TestDrawFrameDirtyGating(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	s := v.Surface().(*recordingSurface)
	if !v.Frame() {
		t.Fatal("first frame not drawn")
	}
	if v.Dirty() {
		t.Error("frame left the viewport dirty")
	}
	if v.Frame() {
		t.Error("clean viewport drew a frame")
	}
	v.RequestRedraw()
	if !v.Frame() {
		t.Error("redraw request ignored")
	}
	if s.flushes != 2 {
		t.Errorf("flushes = %d, want 2", s.flushes)
	}
}

func TestDrawFrameTransform(t *testing.T) {
	v := newTestViewport(t, Options{DevicePixelRatio: 2})
	v.Resize(500, 500)
	v.SetOffset(Vec2{100, 50})
	v.Frame()
	got := recorder(v).ops
	want := []string{"reset", "clear", "scale(2,2)", "translate(-100,-50)"}
	if !slices.Equal(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestDrawFrameNilCanvas(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	if v.DrawFrame(nil) {
		t.Error("DrawFrame(nil) = true")
	}
	if !v.Dirty() {
		t.Error("nil canvas consumed the redraw request")
	}
}

func TestDrawFrameDebugStats(t *testing.T) {
	v := newTestViewport(t, Options{Debug: true})
	v.Resize(500, 500)
	_ = v.AddLayer(newTestLayer("a", 0, nil))
	hidden := newTestLayer("b", 0, nil)
	_ = v.AddLayer(hidden)
	v.HideLayer(hidden)
	v.Frame()
	st := v.Stats()
	if st.Layers != 1 || st.Registered != 2 {
		t.Errorf("stats = %+v, want 1 drawn of 2", st)
	}
	if st.Zoom != -1 {
		t.Errorf("stats.Zoom = %v, want -1", st.Zoom)
	}
}

type manualTicker struct {
	c       chan time.Time
	stopped bool
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               { m.stopped = true }

func TestRenderLoop(t *testing.T) {
	v := newTestViewport(t, Options{})
	v.Resize(500, 500)
	tick := &manualTicker{c: make(chan time.Time)}
	ctx, cancel := context.WithCancel(context.Background())

	var frames []bool
	loop := &RenderLoop{
		Viewport: v,
		Ticker:   tick,
		OnFrame: func(now time.Time, drawn bool) {
			frames = append(frames, drawn)
			if len(frames) == 2 {
				cancel()
			}
		},
	}
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()
	tick.c <- t0
	tick.c <- t0.Add(16 * time.Millisecond)

	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if !tick.stopped {
		t.Error("ticker not stopped")
	}
	if !slices.Equal(frames, []bool{true, false}) {
		t.Errorf("frames = %v, want [true false]", frames)
	}
}
