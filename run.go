package mapview

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures Run.
type RunConfig struct {
	Title         string
	Width, Height int
	// ShowFPS overlays frame rate and zoom in the top-left corner.
	ShowFPS bool
	// FixedSize disables window resizing.
	FixedSize bool
	// ScreenshotDir receives screenshots taken by test scripts. Default
	// "screenshots".
	ScreenshotDir string
	// TestScript, when set, is a JSON script replayed through injected
	// input (see LoadTestScript). The window closes when it finishes.
	TestScript []byte
	// Gesture receives normalized input. Default NewMapGesture(vp).
	Gesture GestureHandler
}

// Game is an ebiten.Game showing a viewport. Run creates one; embed it to
// combine a map with other drawing.
type Game struct {
	vp     *Viewport
	bridge *GestureBridge
	shots  *Screenshotter
	runner *TestRunner
	fps    *fpsWidget
	blit   *ebiten.Image
}

// NewGame wires vp to Ebitengine input and drawing. When the viewport has
// no Backend it is given EbitenBackend.
func NewGame(vp *Viewport, cfg RunConfig) (*Game, error) {
	if vp == nil {
		return nil, errors.New("mapview: nil viewport")
	}
	if vp.opts.Backend == nil {
		vp.opts.Backend = EbitenBackend{}
	}
	h := cfg.Gesture
	if h == nil {
		h = NewMapGesture(vp)
	}
	g := &Game{
		vp:     vp,
		bridge: NewGestureBridge(h),
		shots:  NewScreenshotter(cfg.ScreenshotDir),
	}
	if cfg.ShowFPS {
		g.fps = newFPSWidget()
	}
	if len(cfg.TestScript) > 0 {
		r, err := LoadTestScript(cfg.TestScript)
		if err != nil {
			return nil, fmt.Errorf("mapview: %w", err)
		}
		r.SetScreenshotter(g.shots)
		g.runner = r
		g.bridge.SetTestRunner(r)
		g.bridge.SetDeviceInput(false)
	}
	return g, nil
}

// Bridge returns the input bridge, for injecting input.
func (g *Game) Bridge() *GestureBridge { return g.bridge }

// Screenshotter returns the screenshot queue captured after every Draw.
func (g *Game) Screenshotter() *Screenshotter { return g.shots }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	now := time.Now()
	g.bridge.Update()
	g.vp.Update(now)
	if g.fps != nil {
		g.fps.update(now, g.vp.Zoom())
	}
	if g.runner != nil && g.runner.Done() && g.shots.Pending() == 0 {
		return ebiten.Termination
	}
	return nil
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	g.vp.Frame()
	if s := g.vp.Surface(); s != nil {
		screen.DrawImage(g.surfaceImage(s), nil)
	}
	if g.fps != nil {
		g.fps.draw(screen)
	}
	if g.shots.Pending() > 0 {
		if _, err := g.shots.Capture(readPixels(screen)); err != nil {
			Logger().Warn("screenshot failed", "err", err)
		}
	}
}

func (g *Game) surfaceImage(s Surface) *ebiten.Image {
	if es, ok := s.(interface{ EbitenImage() *ebiten.Image }); ok {
		return es.EbitenImage()
	}
	// CPU surfaces are uploaded every frame.
	w, h := s.Size()
	if g.blit == nil || g.blit.Bounds().Dx() != w || g.blit.Bounds().Dy() != h {
		if g.blit != nil {
			g.blit.Deallocate()
		}
		g.blit = ebiten.NewImage(w, h)
	}
	g.blit.WritePixels(rgbaPixels(s.Image()))
	return g.blit
}

// Layout implements ebiten.Game. The view is sized in logical pixels; the
// screen is sized in device pixels so the surface is drawn 1:1.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.vp.ObserveSize(outsideWidth, outsideHeight, time.Now())
	dpr := g.vp.DevicePixelRatio()
	return int(math.Ceil(float64(outsideWidth) * dpr)), int(math.Ceil(float64(outsideHeight) * dpr))
}

// Run opens a window showing vp and blocks until it closes.
func Run(vp *Viewport, cfg RunConfig) error {
	g, err := NewGame(vp, cfg)
	if err != nil {
		return err
	}
	w, h := cfg.Width, cfg.Height
	if w <= 0 {
		w = 800
	}
	if h <= 0 {
		h = 600
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(w, h)
	if !cfg.FixedSize {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	}
	defer vp.Close()
	return ebiten.RunGame(g)
}
