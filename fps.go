package mapview

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const fpsRefresh = 500 * time.Millisecond

// fpsWidget displays the current FPS and TPS in the top-left corner of the
// window. It is drawn after the map, in screen space, and refreshed every
// half second.
type fpsWidget struct {
	img  *ebiten.Image
	last time.Time
	zoom float64
}

func newFPSWidget() *fpsWidget {
	// 120x48 is enough for "FPS: 60.0\nTPS: 60.0\nZoom: -1.00"
	return &fpsWidget{img: ebiten.NewImage(120, 48)}
}

func (w *fpsWidget) update(now time.Time, zoom float64) {
	if !w.last.IsZero() && now.Sub(w.last) < fpsRefresh {
		return
	}
	w.last = now
	w.zoom = zoom

	w.img.Clear()
	// Semi-transparent background for readability
	w.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(w.img, fmt.Sprintf("FPS: %.1f\nTPS: %.1f\nZoom: %.2f",
		ebiten.ActualFPS(), ebiten.ActualTPS(), w.zoom))
}

func (w *fpsWidget) draw(screen *ebiten.Image) {
	screen.DrawImage(w.img, nil)
}
