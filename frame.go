package mapview

import (
	"context"
	"time"
)

// DrawFrame redraws the map onto c when a redraw is pending and reports
// whether it drew. The canvas matrix is reset, scaled by the device pixel
// ratio and translated by the negated offset, so layers draw in offset
// space. Visible, initialized layers draw in ascending ZIndex order, ties
// in registration order.
func (v *Viewport) DrawFrame(c Canvas) bool {
	if c == nil || !v.dirty.Load() {
		return false
	}
	// Cleared first so redraw requests made while drawing are kept.
	v.dirty.Store(false)

	var t0 time.Time
	if v.opts.Debug {
		t0 = time.Now()
	}

	c.ResetMatrix()
	c.Clear(v.opts.Background)
	c.Scale(v.dpr, v.dpr)
	c.Translate(-v.offset.X, -v.offset.Y)

	v.sortBuf = sortLayers(v.sortBuf, v.layers, drawable)

	var stats FrameStats
	if v.opts.Debug {
		stats.SortTime = time.Since(t0)
		t0 = time.Now()
	}

	for _, l := range v.sortBuf {
		l.Draw(c)
	}

	if v.opts.Debug {
		stats.DrawTime = time.Since(t0)
		stats.Layers = len(v.sortBuf)
		stats.Registered = len(v.layers)
		stats.Zoom = v.Zoom()
		v.stats = stats
		v.debugLog(stats)
	}
	return true
}

// Frame draws onto the viewport's own surface and flushes it. It reports
// whether a frame was drawn; without a Backend it never draws.
func (v *Viewport) Frame() bool {
	if v.surface == nil {
		return false
	}
	if !v.DrawFrame(v.surface.Canvas()) {
		return false
	}
	v.surface.Flush()
	return true
}

// Ticker delivers frame times. *time.Ticker satisfies it through
// NewTicker; tests substitute a manual channel.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTicker returns a Ticker firing every d.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// RenderLoop drives a viewport without a window: every tick it runs Update
// and draws into the viewport's surface.
type RenderLoop struct {
	Viewport *Viewport
	// Ticker paces frames. Default: 60 ticks per second.
	Ticker Ticker
	// OnFrame, when set, runs after every tick with whether a frame was
	// drawn.
	OnFrame func(now time.Time, drawn bool)
}

// Run loops until ctx is cancelled and returns ctx.Err().
func (r *RenderLoop) Run(ctx context.Context) error {
	t := r.Ticker
	if t == nil {
		t = NewTicker(time.Second / 60)
	}
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C():
			r.Viewport.Update(now)
			drawn := r.Viewport.Frame()
			if r.OnFrame != nil {
				r.OnFrame(now, drawn)
			}
		}
	}
}
