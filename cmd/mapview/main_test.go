package main

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
)

func TestTileURLTemplate(t *testing.T) {
	f := tileURL("https://tiles.example.com/{z}/{x}/{y}.webp")
	if got := f(3, 4, 5); got != "https://tiles.example.com/5/3/4.webp" {
		t.Errorf("tileURL = %q", got)
	}
}

func TestGridMarkers(t *testing.T) {
	items := gridMarkers(800, 400, 4)
	if len(items) != 16 {
		t.Fatalf("len = %d, want 16", len(items))
	}
	if items[0].X != 100 || items[0].Y != 50 {
		t.Errorf("first = %+v, want cell center {100 50}", items[0])
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("MAPVIEW_MAX_ZOOM", "6")
	var cfg Config
	if err := envconfig.Process("mapview", &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MaxZoom != 6 || cfg.TileSize != 256 || cfg.Timeout != 30*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestSnapshotFromFileTiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "0", "0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	tile := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for i := range tile.Pix {
		tile.Pix[i] = 255
	}
	f, err := os.Create(filepath.Join(dir, "0.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, tile); err != nil {
		t.Fatal(err)
	}
	f.Close()

	out := filepath.Join(t.TempDir(), "map.png")
	err = run(Config{
		MapWidth:  256,
		MapHeight: 256,
		TileURL:   "file:///{z}/{x}/{y}.png",
		TileRoot:  root,
		TileSize:  256,
		Width:     128,
		Height:    128,
		Snapshot:  out,
		Timeout:   10 * time.Second,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rf, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()
	img, err := png.Decode(rf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("bounds = %v", b)
	}
	// Pins sit on a 16px grid with radius 8; (16, 8) lies between four of
	// them and shows the white tile.
	r, g, b, _ := img.At(16, 8).RGBA()
	if c := (color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}); c.R < 200 || c.G < 200 || c.B < 200 {
		t.Errorf("pixel = %v, want the white tile", c)
	}
}

func TestPinIcon(t *testing.T) {
	tex := pinIcon(16)
	if w, h := tex.Size(); w != 16 || h != 16 {
		t.Errorf("size = %dx%d", w, h)
	}
	if _, _, _, a := tex.Image().At(0, 0).RGBA(); a != 0 {
		t.Error("corner of the round pin is opaque")
	}
}
