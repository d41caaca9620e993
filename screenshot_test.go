package mapview

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"after-zoom", "after-zoom"},
		{"  padded  ", "padded"},
		{"", "unlabeled"},
		{"   ", "unlabeled"},
		{"a/b\\c", "a_b_c"},
		{"zoom 2.5", "zoom_2.5"},
		{"ñ", "_"},
	}
	for _, tt := range tests {
		if got := sanitizeLabel(tt.in); got != tt.want {
			t.Errorf("sanitizeLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScreenshotterCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	s := NewScreenshotter(dir)
	s.now = func() time.Time { return t0 }

	if paths, err := s.Capture(solidImage(2, 2, color.White)); paths != nil || err != nil {
		t.Errorf("empty queue: %v, %v", paths, err)
	}

	s.Request("first")
	s.Request("second shot")
	if s.Pending() != 2 {
		t.Fatalf("Pending = %d", s.Pending())
	}
	paths, err := s.Capture(solidImage(3, 2, color.White))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if s.Pending() != 0 {
		t.Error("queue not cleared")
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	if want := filepath.Join(dir, "20240101_120000_second_shot.png"); paths[1] != want {
		t.Errorf("path = %q, want %q", paths[1], want)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("bounds = %v", b)
	}
}

func TestScreenshotterDefaultDir(t *testing.T) {
	if s := NewScreenshotter(""); s.Dir != "screenshots" {
		t.Errorf("Dir = %q", s.Dir)
	}
}

func TestUnpremultiply(t *testing.T) {
	src := []byte{
		128, 64, 0, 128, // half alpha
		10, 20, 30, 255, // opaque
		0, 0, 0, 0, // transparent
	}
	dst := make([]byte, len(src))
	unpremultiply(dst, src)
	want := []byte{255, 127, 0, 128, 10, 20, 30, 255, 0, 0, 0, 0}
	if !bytes.Equal(dst, want) {
		t.Errorf("unpremultiply = %v, want %v", dst, want)
	}
}

func TestRGBAPixels(t *testing.T) {
	img := solidImage(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	if got := rgbaPixels(img); &got[0] != &img.Pix[0] {
		t.Error("tight RGBA image was copied")
	}
	sub := img.SubImage(image.Rect(1, 0, 2, 1))
	got := rgbaPixels(sub)
	if !bytes.Equal(got, []byte{10, 20, 30, 255}) {
		t.Errorf("sub-image pixels = %v", got)
	}
}

func TestSnapshotRequiresSurface(t *testing.T) {
	v, err := New(Options{MapSize: Vec2{10, 10}, Fetcher: newFakeFetcher()})
	if err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	v.Resize(10, 10)
	var buf bytes.Buffer
	if err := Snapshot(v, &buf); err == nil || !strings.Contains(err.Error(), "no surface") {
		t.Errorf("Snapshot = %v, want a missing surface error", err)
	}
}
