package mapview

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/draw"
)

// pngEncoder is implemented by surfaces that encode their own pixels.
type pngEncoder interface {
	EncodePNG(w io.Writer) error
}

// Snapshot draws a frame if one is pending and writes the viewport surface
// as PNG to w.
func Snapshot(v *Viewport, w io.Writer) error {
	v.Frame()
	s := v.Surface()
	if s == nil {
		return errors.New("mapview: snapshot: viewport has no surface")
	}
	if enc, ok := s.(pngEncoder); ok {
		return enc.EncodePNG(w)
	}
	return png.Encode(w, s.Image())
}

// Screenshotter writes labeled PNG captures of rendered frames. Requests are
// queued from anywhere on the loop goroutine and written on the next
// Capture.
type Screenshotter struct {
	// Dir receives the files. Default "screenshots".
	Dir string

	queue []string
	now   func() time.Time
}

// NewScreenshotter returns a screenshotter writing into dir.
func NewScreenshotter(dir string) *Screenshotter {
	if dir == "" {
		dir = "screenshots"
	}
	return &Screenshotter{Dir: dir, now: time.Now}
}

// Request queues a labeled screenshot of the next captured frame.
func (s *Screenshotter) Request(label string) {
	s.queue = append(s.queue, label)
}

// Pending reports the number of queued requests.
func (s *Screenshotter) Pending() int { return len(s.queue) }

// Capture writes img once for every queued label, named
// <timestamp>_<label>.png, and clears the queue. It returns the paths
// written.
func (s *Screenshotter) Capture(img image.Image) ([]string, error) {
	if len(s.queue) == 0 {
		return nil, nil
	}
	defer func() { s.queue = s.queue[:0] }()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("screenshot: mkdir %s: %w", s.Dir, err)
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	stamp := now().Format("20060102_150405")

	var (
		paths []string
		errs  []error
	)
	for _, label := range s.queue {
		path := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.png", stamp, sanitizeLabel(label)))
		if err := writePNG(path, img); err != nil {
			errs = append(errs, err)
			continue
		}
		Logger().Info("screenshot written", "path", path)
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// readPixels copies a GPU image into a straight-alpha NRGBA image.
func readPixels(src *ebiten.Image) *image.NRGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]byte, 4*w*h)
	src.ReadPixels(pixels)

	// Convert premultiplied RGBA to straight-alpha NRGBA.
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	unpremultiply(img.Pix, pixels)
	return img
}

func unpremultiply(dst, src []byte) {
	for i := 0; i+3 < len(src); i += 4 {
		r, g, b, a := src[i], src[i+1], src[i+2], src[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		dst[i], dst[i+1], dst[i+2], dst[i+3] = r, g, b, a
	}
}

// writePNG encodes img to a PNG file at path.
func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// rgbaPixels returns the premultiplied RGBA bytes of img.
func rgbaPixels(img image.Image) []byte {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba.Pix
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}
