package mapview

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTileSize is the edge length of a tile image in pixels.
	DefaultTileSize = 256
	// defaultInitConcurrency bounds parallel base-level fetches in Init.
	defaultInitConcurrency = 8

	tileRetryBase = time.Second
	tileRetryMax  = 30 * time.Second
)

var tileLayerSeq atomic.Uint64

// TileLayerOptions configures a TileLayer.
type TileLayerOptions struct {
	LayerOptions
	// TileSize is the tile edge in pixels at MaxZoom. Default 256.
	TileSize int
	// MinZoom and MaxZoom are the integer zoom levels served by TileURL.
	// Tiles at MaxZoom map one tile pixel to one map pixel.
	MinZoom, MaxZoom int
	// Offset is where the tile grid starts, in map pixels from the top-left
	// of the map.
	Offset Vec2
	// TileURL returns the address of tile (x, y) at zoom z. Required.
	TileURL func(x, y, z int) string
	// InitConcurrency bounds parallel fetches while preloading the MinZoom
	// level. Default 8.
	InitConcurrency int
}

// TileLayerUpdate is a partial update of TileLayerOptions. A new TileURL
// invalidates every cached tile of the layer.
type TileLayerUpdate struct {
	LayerUpdate
	TileURL func(x, y, z int) string
}

// tileSource is the per-initialization fetch state of a TileLayer.
type tileSource struct {
	fetcher Fetcher
	cache   *ResourceCache
	tasks   *TaskStack
	redraw  func()
}

type tileFailure struct {
	attempts int
	retryAt  time.Time
}

// TileLayer draws a raster tile pyramid. The MinZoom level is loaded
// completely during Init and always drawn underneath; the level matching
// the current scale is drawn on top and fetched on demand, newest request
// first.
type TileLayer struct {
	BaseLayer
	opts TileLayerOptions

	now func() time.Time

	// mu guards everything below. Init publishes src under it, and a tile
	// enters the cache only while the layer is live, so nothing is added
	// after Dispose removed the layer's prefix.
	mu       sync.Mutex
	disposed bool
	src      *tileSource
	urlGen   uint64
	failures map[string]tileFailure

	seq   uint64
	paint Paint
}

// NewTileLayer returns a tile layer. It fails when TileURL is missing or
// the zoom range is inverted.
func NewTileLayer(opts TileLayerOptions) (*TileLayer, error) {
	if opts.TileURL == nil {
		return nil, fmt.Errorf("mapview: tile layer: TileURL is required")
	}
	if opts.MinZoom > opts.MaxZoom {
		return nil, fmt.Errorf("%w: tile zoom range %d..%d", ErrInvalidZoom, opts.MinZoom, opts.MaxZoom)
	}
	if opts.TileSize <= 0 {
		opts.TileSize = DefaultTileSize
	}
	if opts.InitConcurrency <= 0 {
		opts.InitConcurrency = defaultInitConcurrency
	}
	return &TileLayer{
		BaseLayer: NewBaseLayer(opts.LayerOptions),
		opts:      opts,
		now:       time.Now,
		failures:  make(map[string]tileFailure),
		seq:       tileLayerSeq.Add(1),
	}, nil
}

// Options returns the layer configuration.
func (l *TileLayer) Options() TileLayerOptions { return l.opts }

// Apply applies a partial update.
func (l *TileLayer) Apply(u TileLayerUpdate) {
	if u.TileURL != nil {
		l.mu.Lock()
		prefix := l.keyPrefixLocked()
		l.opts.TileURL = u.TileURL
		l.urlGen++
		clear(l.failures)
		src := l.src
		l.mu.Unlock()
		if src != nil {
			disposeAll(src.cache.RemovePrefix(prefix))
		}
	}
	l.ApplyLayerUpdate(u.LayerUpdate)
}

// Init loads every tile of the MinZoom level. It fails if any of them
// cannot be loaded.
func (l *TileLayer) Init(ctx context.Context, env LayerEnv) error {
	l.mu.Lock()
	if err := ctx.Err(); err != nil {
		l.mu.Unlock()
		return err
	}
	src := &tileSource{
		fetcher: env.Fetcher,
		cache:   env.Cache,
		tasks:   NewTaskStack(ctx, DefaultTaskStackSize),
		redraw:  env.Redraw,
	}
	l.disposed = false
	l.src = src
	l.mu.Unlock()

	o := l.opts
	tileSize := float64(o.TileSize) * math.Exp2(float64(o.MaxZoom-o.MinZoom))
	offX := int(math.Floor(o.Offset.X / tileSize))
	offY := int(math.Floor(o.Offset.Y / tileSize))
	cols := safeCeil(env.MapSize.X / tileSize)
	rows := safeCeil(env.MapSize.Y / tileSize)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.InitConcurrency)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, y := col+offX, row+offY
			g.Go(func() error {
				return l.load(gctx, src, x, y, o.MinZoom)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	Logger().Debug("tile base level loaded", "zoom", o.MinZoom, "cols", cols, "rows", rows)
	return nil
}

// Dispose stops pending fetches and drops the layer's tiles from the cache.
// Fetches still in flight discard their results.
func (l *TileLayer) Dispose() {
	l.mu.Lock()
	l.disposed = true
	src := l.src
	prefix := l.keyPrefixLocked()
	l.mu.Unlock()
	if src != nil {
		src.tasks.Close()
		disposeAll(src.cache.RemovePrefix(prefix))
	}
}

// store adds a fetched tile to the cache unless the layer was disposed or
// the fetch was cancelled. It reports whether the tile was kept.
func (l *TileLayer) store(ctx context.Context, src *tileSource, key string, img image.Image) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.disposed || l.src != src || ctx.Err() != nil {
		return false
	}
	src.cache.Add(key, NewTexture(img))
	return true
}

func disposeAll(values []any) {
	for _, v := range values {
		if t, ok := v.(*Texture); ok {
			t.Dispose()
		}
	}
}

func (l *TileLayer) keyPrefixLocked() string {
	return fmt.Sprintf("tile/%d.%d/", l.seq, l.urlGen)
}

func (l *TileLayer) tileKey(x, y, z int) (key, url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("%s%d/%d/%d", l.keyPrefixLocked(), z, x, y), l.opts.TileURL(x, y, z)
}

func (l *TileLayer) load(ctx context.Context, src *tileSource, x, y, z int) error {
	key, url := l.tileKey(x, y, z)
	if src.cache.Contains(key) {
		return nil
	}
	img, err := src.fetcher.FetchImage(ctx, url)
	if err != nil {
		return fmt.Errorf("tile %d/%d/%d: %w", z, x, y, err)
	}
	if !l.store(ctx, src, key, img) {
		return errLayerDisposed
	}
	if src.redraw != nil {
		src.redraw()
	}
	return nil
}

// Draw implements Layer.
func (l *TileLayer) Draw(c Canvas) {
	vp := l.Viewport()
	l.mu.Lock()
	src := l.src
	l.mu.Unlock()
	if vp == nil || vp.Scale() == 0 || src == nil {
		return
	}
	o := l.opts
	l.drawTiles(c, vp, src, o.MinZoom)
	if zoom := tileZoom(vp.Scale(), o.MinZoom, o.MaxZoom); zoom > o.MinZoom {
		l.drawTiles(c, vp, src, zoom)
	}
}

// tileZoom returns the tile level matching scale.
func tileZoom(scale float64, minZoom, maxZoom int) int {
	zoom := maxZoom + int(math.Ceil(math.Log2(scale)))
	return min(max(zoom, minZoom), maxZoom)
}

// tileRange is the block of tiles of one level covering the view.
type tileRange struct {
	x0, y0, x1, y1 int // x1, y1 exclusive
	scaled         float64
	tileOff        Vec2
}

func (r tileRange) dst(x, y int) Rect {
	return Rect{
		X:      r.scaled * (float64(x) - r.tileOff.X),
		Y:      r.scaled * (float64(y) - r.tileOff.Y),
		Width:  r.scaled,
		Height: r.scaled,
	}
}

// visibleTiles computes the tiles of level zoom that intersect the view.
func visibleTiles(o TileLayerOptions, zoom int, scale float64, offset, size Vec2) tileRange {
	tileSize := float64(o.TileSize) * math.Exp2(float64(o.MaxZoom-zoom))
	tileOff := Vec2{o.Offset.X / tileSize, o.Offset.Y / tileSize}
	scaled := tileSize * scale
	return tileRange{
		x0:      int(math.Floor(offset.X/scaled + tileOff.X)),
		y0:      int(math.Floor(offset.Y/scaled + tileOff.Y)),
		x1:      safeCeil((size.X+offset.X)/scaled + tileOff.X),
		y1:      safeCeil((size.Y+offset.Y)/scaled + tileOff.Y),
		scaled:  scaled,
		tileOff: tileOff,
	}
}

func (l *TileLayer) drawTiles(c Canvas, vp *Viewport, src *tileSource, zoom int) {
	r := visibleTiles(l.opts, zoom, vp.Scale(), vp.Offset(), vp.Size())
	for y := r.y0; y < r.y1; y++ {
		for x := r.x0; x < r.x1; x++ {
			key, url := l.tileKey(x, y, zoom)
			if tex, ok := src.cache.Texture(key); ok {
				c.DrawImageRect(tex, tex.Bounds(), r.dst(x, y), &l.paint)
			} else if l.Initialized() {
				l.resolve(src, key, url)
			}
		}
	}
}

// resolve queues a fetch of a missing tile unless a recent attempt failed.
func (l *TileLayer) resolve(src *tileSource, key, url string) {
	now := l.now()
	l.mu.Lock()
	f, failed := l.failures[key]
	l.mu.Unlock()
	if failed && now.Before(f.retryAt) {
		return
	}
	src.tasks.Push(func(ctx context.Context) {
		if src.cache.Contains(key) {
			return
		}
		img, err := src.fetcher.FetchImage(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.mu.Lock()
			f := l.failures[key]
			f.attempts++
			f.retryAt = l.now().Add(tileBackoff(f.attempts))
			l.failures[key] = f
			l.mu.Unlock()
			Logger().Debug("tile fetch failed", "url", url, "attempts", f.attempts, "err", err)
			return
		}
		l.mu.Lock()
		delete(l.failures, key)
		l.mu.Unlock()
		if l.store(ctx, src, key, img) && src.redraw != nil {
			src.redraw()
		}
	})
}

// tileBackoff returns the retry delay after the given number of failed
// attempts: 1s doubling up to 30s.
func tileBackoff(attempts int) time.Duration {
	d := tileRetryBase
	for i := 1; i < attempts && d < tileRetryMax; i++ {
		d *= 2
	}
	return min(d, tileRetryMax)
}
