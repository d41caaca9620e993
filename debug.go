package mapview

import "time"

// FrameStats holds per-frame timing and layer counts. Only collected when
// Options.Debug is set.
type FrameStats struct {
	SortTime   time.Duration
	DrawTime   time.Duration
	Layers     int // layers drawn
	Registered int // layers registered
	Zoom       float64
}

// Stats returns the stats of the last drawn frame.
func (v *Viewport) Stats() FrameStats { return v.stats }

// debugLog writes frame stats at debug level.
func (v *Viewport) debugLog(stats FrameStats) {
	Logger().Debug("frame",
		"sort", stats.SortTime,
		"draw", stats.DrawTime,
		"total", stats.SortTime+stats.DrawTime,
		"layers", stats.Layers,
		"registered", stats.Registered,
		"zoom", stats.Zoom)
}
