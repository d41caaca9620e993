package mapview

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	ggtext "github.com/gogpu/gg/text"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontFace is a TrueType/OpenType face at a fixed size, usable by both
// backends.
type FontFace struct {
	data []byte
	size float64
	face *text.GoTextFace
	lh   float64

	softOnce sync.Once
	soft     ggtext.Face
}

// NewFontFace parses TTF/OTF data and returns a face at the given size in
// logical pixels.
func NewFontFace(data []byte, size float64) (*FontFace, error) {
	if _, err := opentype.Parse(data); err != nil {
		return nil, fmt.Errorf("mapview: parse font: %w", err)
	}
	source, err := text.NewGoTextFaceSource(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mapview: load font: %w", err)
	}
	face := &text.GoTextFace{Source: source, Size: size}
	m := face.Metrics()
	return &FontFace{
		data: data,
		size: size,
		face: face,
		lh:   m.HAscent + m.HDescent + m.HLineGap,
	}, nil
}

// DefaultFontFace returns the Go Regular face at the given size.
func DefaultFontFace(size float64) (*FontFace, error) {
	return NewFontFace(goregular.TTF, size)
}

// Size returns the face size in logical pixels.
func (f *FontFace) Size() float64 { return f.size }

// LineHeight returns the distance between baselines.
func (f *FontFace) LineHeight() float64 { return f.lh }

// Measure returns the width and height of s, honoring newlines.
func (f *FontFace) Measure(s string) (width, height float64) {
	return text.Measure(s, f.face, f.lh)
}

// WithSize returns a face sharing the same font data at another size.
func (f *FontFace) WithSize(size float64) *FontFace {
	face := &text.GoTextFace{Source: f.face.Source, Size: size}
	m := face.Metrics()
	return &FontFace{data: f.data, size: size, face: face, lh: m.HAscent + m.HDescent + m.HLineGap}
}

func (f *FontFace) ggFace() ggtext.Face {
	f.softOnce.Do(func() {
		src, err := ggtext.NewFontSource(f.data)
		if err != nil {
			Logger().Debug("software font", "err", err)
			return
		}
		f.soft = src.Face(f.size)
	})
	return f.soft
}

// wrapText breaks s into lines no wider than maxWidth, splitting on spaces.
// Existing newlines are kept. A single word wider than maxWidth gets its own
// line. maxWidth <= 0 disables wrapping.
func wrapText(face *FontFace, s string, maxWidth float64) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		if maxWidth <= 0 {
			lines = append(lines, para)
			continue
		}
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			next := cur + " " + w
			if width, _ := face.Measure(next); width > maxWidth {
				lines = append(lines, cur)
				cur = w
				continue
			}
			cur = next
		}
		lines = append(lines, cur)
	}
	return lines
}
