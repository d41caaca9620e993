// Command mapview shows a tiled map in a window, or renders one frame of it
// to a PNG file when MAPVIEW_SNAPSHOT is set.
//
// Configuration comes from the environment:
//
//	MAPVIEW_MAP_WIDTH, MAPVIEW_MAP_HEIGHT  map size in pixels at zoom 0
//	MAPVIEW_TILE_URL                       template with {x}, {y} and {z}
//	MAPVIEW_TILE_ROOT                      directory served for file:// URLs
//	MAPVIEW_MIN_ZOOM, MAPVIEW_MAX_ZOOM     tile zoom range
//	MAPVIEW_SNAPSHOT                       write a PNG instead of opening a window
package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/kelseyhightower/envconfig"

	"github.com/phanxgames/mapview"
)

// Config is read from MAPVIEW_* environment variables.
type Config struct {
	MapWidth   float64       `envconfig:"MAP_WIDTH" default:"4096"`
	MapHeight  float64       `envconfig:"MAP_HEIGHT" default:"4096"`
	TileURL    string        `envconfig:"TILE_URL" default:"file:///{z}/{x}/{y}.png"`
	TileRoot   string        `envconfig:"TILE_ROOT" default:"./tiles"`
	TileSize   int           `envconfig:"TILE_SIZE" default:"256"`
	MinZoom    int           `envconfig:"MIN_ZOOM" default:"0"`
	MaxZoom    int           `envconfig:"MAX_ZOOM" default:"4"`
	Width      int           `envconfig:"WIDTH" default:"1024"`
	Height     int           `envconfig:"HEIGHT" default:"768"`
	ShowFPS    bool          `envconfig:"SHOW_FPS" default:"false"`
	Debug      bool          `envconfig:"DEBUG" default:"false"`
	Snapshot   string        `envconfig:"SNAPSHOT"`
	TestScript string        `envconfig:"TEST_SCRIPT"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"30s"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("mapview", &cfg); err != nil {
		log.Fatal(err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	mapview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg Config) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir(cfg.TileRoot)))
	fetcher := mapview.NewHTTPFetcher(&http.Client{Transport: transport, Timeout: cfg.Timeout})

	opts := mapview.Options{
		MapSize:    mapview.Vec2{X: cfg.MapWidth, Y: cfg.MapHeight},
		Background: mapview.Color{R: 0.1, G: 0.1, B: 0.12, A: 1},
		Fetcher:    fetcher,
		Debug:      cfg.Debug,
		OnError: func(err error) {
			slog.Error("map error", "err", err)
		},
		OnClick: func(e mapview.ClickEvent) {
			slog.Info("click", "x", e.Coordinate.X, "y", e.Coordinate.Y, "marker", e.Item != nil)
		},
	}
	if cfg.Snapshot != "" {
		opts.Backend = mapview.SoftwareBackend{}
	} else {
		opts.Backend = mapview.EbitenBackend{}
		opts.DevicePixelRatio = ebiten.Monitor().DeviceScaleFactor()
	}
	vp, err := mapview.New(opts)
	if err != nil {
		return err
	}

	tiles, err := mapview.NewTileLayer(mapview.TileLayerOptions{
		TileSize: cfg.TileSize,
		MinZoom:  cfg.MinZoom,
		MaxZoom:  cfg.MaxZoom,
		TileURL:  tileURL(cfg.TileURL),
	})
	if err != nil {
		return err
	}
	if err := vp.AddLayer(tiles); err != nil {
		return err
	}
	markers := mapview.NewMarkerLayer(mapview.MarkerLayerOptions{
		LayerOptions: mapview.LayerOptions{ZIndex: 1},
		Items:        gridMarkers(cfg.MapWidth, cfg.MapHeight, 8),
		Icon:         pinIcon(16),
		Anchor:       mapview.Vec2{X: 0.5, Y: 1},
		OnClick: func(item *mapview.MarkerItem) {
			slog.Info("marker", "x", item.X, "y", item.Y)
		},
	})
	if err := vp.AddLayer(markers); err != nil {
		return err
	}

	if cfg.Snapshot != "" {
		return snapshot(vp, cfg)
	}

	var script []byte
	if cfg.TestScript != "" {
		if script, err = os.ReadFile(cfg.TestScript); err != nil {
			return err
		}
	}
	return mapview.Run(vp, mapview.RunConfig{
		Title:      "mapview",
		Width:      cfg.Width,
		Height:     cfg.Height,
		ShowFPS:    cfg.ShowFPS,
		TestScript: script,
	})
}

// snapshot renders headlessly until every layer is ready, then writes the
// frame.
func snapshot(vp *mapview.Viewport, cfg Config) error {
	defer vp.Close()
	vp.Resize(cfg.Width, cfg.Height)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	loop := &mapview.RenderLoop{
		Viewport: vp,
		OnFrame: func(time.Time, bool) {
			for _, l := range vp.Layers() {
				if ready, ok := l.(interface{ Initialized() bool }); ok && !ready.Initialized() {
					return
				}
			}
			cancel()
		},
	}
	if err := loop.Run(ctx); errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("layers not ready after %s", cfg.Timeout)
	}

	f, err := os.Create(cfg.Snapshot)
	if err != nil {
		return err
	}
	vp.RequestRedraw()
	if err := mapview.Snapshot(vp, f); err != nil {
		f.Close()
		return err
	}
	slog.Info("snapshot written", "path", cfg.Snapshot)
	return f.Close()
}

func tileURL(template string) func(x, y, z int) string {
	return func(x, y, z int) string {
		return strings.NewReplacer(
			"{x}", strconv.Itoa(x),
			"{y}", strconv.Itoa(y),
			"{z}", strconv.Itoa(z),
		).Replace(template)
	}
}

func gridMarkers(w, h float64, n int) []mapview.MarkerItem {
	items := make([]mapview.MarkerItem, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			items = append(items, mapview.MarkerItem{
				X: (float64(i) + 0.5) * w / float64(n),
				Y: (float64(j) + 0.5) * h / float64(n),
			})
		}
	}
	return items
}

// pinIcon draws a filled circle marker.
func pinIcon(size int) *mapview.Texture {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	r := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-r, float64(y)+0.5-r
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, color.RGBA{R: 220, G: 60, B: 60, A: 255})
			}
		}
	}
	return mapview.NewTexture(img)
}
