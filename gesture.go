package mapview

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"
)

const (
	// doubleClickDelay is both the double-click window and the delay before a
	// single click is dispatched.
	doubleClickDelay = 200 * time.Millisecond
	// pinchDragGuard suppresses drags for this long after the last pinch
	// update, so lifting one finger does not fling the map.
	pinchDragGuard = 200 * time.Millisecond
	// clickDragDistance is the movement from the press above which a drag
	// swallows the click that ends it. It matches the bridge's default dead
	// zone, so any drag that panned the map also suppresses the click.
	clickDragDistance = defaultDragDeadZone
	// doubleClickZoomDuration is the length of the +1 zoom animation.
	doubleClickZoomDuration = 300 * time.Millisecond
)

// GesturePhase marks the position of an event within its gesture.
type GesturePhase uint8

const (
	PhaseStart GesturePhase = iota // first event of a gesture
	PhaseMove                      // intermediate update
	PhaseEnd                       // gesture finished
)

// WheelEvent is a normalized wheel gesture update.
type WheelEvent struct {
	Phase GesturePhase
	// Pos is the cursor in view space.
	Pos Vec2
	// Direction is -1 when scrolling up (zoom in) and 1 when scrolling down.
	Direction float64
	// Velocity is the absolute scroll speed in pixels per millisecond, one
	// wheel notch counting as 100 pixels.
	Velocity float64
	Time     time.Time
}

// PinchEvent is a normalized two-finger pinch update.
type PinchEvent struct {
	Phase GesturePhase
	// Origin is the centroid of the touches in view space.
	Origin Vec2
	// Distance is the current span between the touches; InitialDistance is
	// the span when the pinch started.
	Distance        float64
	InitialDistance float64
	Touches         int
	Time            time.Time
}

// DragEvent is a normalized single-pointer drag update.
type DragEvent struct {
	Phase GesturePhase
	Pos   Vec2
	// Delta is the movement since the previous drag event.
	Delta Vec2
	// Distance is the absolute per-axis movement since the press.
	Distance Vec2
	// Velocity is the smoothed signed velocity in pixels per millisecond.
	Velocity Vec2
	Time     time.Time
}

// TapEvent is a press and release of a pointer. A tap ending a drag carries
// the same Time as the DragEvent ending it.
type TapEvent struct {
	Pos  Vec2
	Time time.Time
}

// GestureHandler consumes normalized gestures.
type GestureHandler interface {
	Wheel(e WheelEvent)
	Pinch(e PinchEvent)
	Drag(e DragEvent)
	Tap(e TapEvent)
}

// MapGesture turns normalized gestures into viewport pan, zoom and click
// operations with inertial animations. Scale animations replace scale
// animations, offset animations replace offset animations, and drag or
// pinch starts cancel both.
type MapGesture struct {
	vp *Viewport

	initialScale  float64
	lastOrigin    Vec2
	scaleVelocity float64

	lastPinchTime time.Time
	lastWheelTime time.Time
	lastClickTime time.Time
	lastDragTime  time.Time

	pinching bool
	wheeling bool
	wheelVel velocitySampler

	scaleAnim  *Animation
	offsetAnim *Animation
}

// NewMapGesture returns a gesture integration driving vp.
func NewMapGesture(vp *Viewport) *MapGesture {
	return &MapGesture{vp: vp}
}

// Wheel zooms around the cursor. Every update restarts a short inertial
// zoom from the current zoom; the end of the gesture adds a gentle coast.
func (g *MapGesture) Wheel(e WheelEvent) {
	if e.Phase != PhaseEnd {
		if !g.lastWheelTime.IsZero() && e.Time.Equal(g.lastWheelTime) {
			return
		}
		g.lastWheelTime = e.Time
	}
	switch e.Phase {
	case PhaseStart:
		g.wheeling = true
		g.offsetAnim.Stop()
		g.wheelVel.reset()
		g.wheelTick(e)
	case PhaseMove:
		g.wheeling = true
		g.wheelTick(e)
	case PhaseEnd:
		g.wheeling = false
		g.scaleAnim.Stop()
		v := g.wheelVel.average().Y
		if e.Velocity > v {
			v = e.Velocity
		}
		initial := g.vp.Zoom()
		dir, pos := e.Direction, e.Pos
		g.scaleAnim = g.vp.Animate(&Inertia{
			Velocity:     math.Log2(v + 1.2),
			Power:        0.2,
			TimeConstant: 100 * time.Millisecond,
			RestDelta:    0.001,
		}, func(value float64) {
			g.vp.ScaleTo(math.Exp2(initial-dir*value), pos)
		})
	}
}

func (g *MapGesture) wheelTick(e WheelEvent) {
	g.scaleAnim.Stop()
	g.wheelVel.add(Vec2{0, e.Velocity})
	last := g.vp.Zoom()
	dir, pos := e.Direction, e.Pos
	g.scaleAnim = g.vp.Animate(&Inertia{
		Velocity:  g.wheelVel.average().Y + 1,
		RestDelta: 0.001,
	}, func(value float64) {
		g.vp.ScaleTo(math.Exp2(last-dir*value), pos)
	})
}

// Pinch scales by the ratio of the finger span to the span at pinch start,
// anchored at the centroid, and pans by the centroid movement.
func (g *MapGesture) Pinch(e PinchEvent) {
	switch e.Phase {
	case PhaseStart:
		g.pinching = true
		g.scaleAnim.Stop()
		g.offsetAnim.Stop()
		g.initialScale = g.vp.Scale()
		g.lastOrigin = e.Origin
		g.scaleVelocity = 0
	case PhaseMove:
		if e.Touches != 2 {
			return
		}
		g.lastPinchTime = e.Time
		ratio := 1.0
		if e.InitialDistance > 0 {
			ratio = e.Distance / e.InitialDistance
		}
		newScale := ratio * g.initialScale
		g.scaleVelocity = newScale - g.vp.Scale()
		g.vp.SetOffset(g.vp.Offset().Sub(e.Origin.Sub(g.lastOrigin)))
		g.vp.ScaleTo(newScale, e.Origin)
		g.lastOrigin = e.Origin
	case PhaseEnd:
		g.pinching = false
		dir := 1.0
		if g.scaleVelocity > 0 {
			dir = -1
		}
		velocity := math.Min(math.Log2(1+math.Abs(g.scaleVelocity)), 0.05)
		g.initialScale = g.vp.Scale()
		base := math.Log2(g.initialScale)
		origin := e.Origin
		g.scaleAnim.Stop()
		g.scaleAnim = g.vp.Animate(&Inertia{
			Velocity:     velocity,
			Power:        50,
			TimeConstant: 100 * time.Millisecond,
			RestDelta:    0.005,
		}, func(value float64) {
			g.vp.ScaleTo(math.Exp2(base-dir*value), origin)
		})
	}
}

// Drag pans by the pointer movement and flings on release.
func (g *MapGesture) Drag(e DragEvent) {
	switch e.Phase {
	case PhaseStart:
		g.offsetAnim.Stop()
		g.scaleAnim.Stop()
		g.dragMove(e)
	case PhaseMove:
		g.dragMove(e)
	case PhaseEnd:
		if e.Time.Sub(g.lastPinchTime) < pinchDragGuard {
			return
		}
		initial := g.vp.Offset()
		if v := e.Velocity.Len(); v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			unit := e.Velocity.Mul(1 / v)
			g.offsetAnim.Stop()
			g.offsetAnim = g.vp.Animate(&Inertia{
				Velocity:     v,
				Power:        200,
				TimeConstant: 200 * time.Millisecond,
			}, func(value float64) {
				g.vp.SetOffset(initial.Sub(unit.Mul(value)))
			})
		}
		if e.Distance.Len() > clickDragDistance {
			g.lastDragTime = e.Time
		}
	}
}

func (g *MapGesture) dragMove(e DragEvent) {
	if g.pinching || g.wheeling || e.Time.Sub(g.lastPinchTime) < pinchDragGuard {
		return
	}
	g.vp.SetOffset(g.vp.Offset().Sub(e.Delta))
}

// Tap dispatches single clicks after the double-click window and zooms in
// by one level, animated, on double clicks. Taps that end a drag are
// ignored.
func (g *MapGesture) Tap(e TapEvent) {
	if !g.lastDragTime.IsZero() && e.Time.Equal(g.lastDragTime) {
		return
	}
	pos := e.Pos
	if !g.lastClickTime.IsZero() && e.Time.Sub(g.lastClickTime) < doubleClickDelay {
		base := g.vp.Zoom()
		g.scaleAnim.Stop()
		g.scaleAnim = g.vp.Animate(NewTween(0, 1, doubleClickZoomDuration, ease.InOutQuad), func(value float64) {
			g.vp.ScaleTo(math.Exp2(base+value), pos)
		})
	} else {
		t := e.Time
		g.vp.AfterFunc(t.Add(doubleClickDelay), func() {
			if g.lastClickTime.Equal(t) {
				g.vp.Click(pos.X, pos.Y)
			}
		})
	}
	g.lastClickTime = e.Time
}

// velocitySamples is the number of recent samples averaged before a
// velocity seeds an animation.
const velocitySamples = 4

// velocitySampler is a fixed-size ring of recent velocity samples.
type velocitySampler struct {
	buf [velocitySamples]Vec2
	i   int
	n   int
}

func (s *velocitySampler) add(v Vec2) {
	s.buf[s.i] = v
	s.i = (s.i + 1) % velocitySamples
	if s.n < velocitySamples {
		s.n++
	}
}

func (s *velocitySampler) average() Vec2 {
	if s.n == 0 {
		return Vec2{}
	}
	var sum Vec2
	for i := 0; i < s.n; i++ {
		sum = sum.Add(s.buf[i])
	}
	return sum.Mul(1 / float64(s.n))
}

func (s *velocitySampler) reset() { *s = velocitySampler{} }
