package mapview

import (
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// --- Constants ---

const (
	maxPointers         = 10 // pointer 0 = mouse, 1-9 = touch
	defaultDragDeadZone = 2.0
	// defaultWheelIdle ends a wheel gesture after this long without ticks.
	defaultWheelIdle = 100 * time.Millisecond
	// wheelPixelsPerUnit converts Ebitengine wheel units (about one per
	// notch) to the pixel deltas browsers report for the same notch.
	wheelPixelsPerUnit = 100.0
	// flingIdle discards the drag velocity when the pointer rested this long
	// before release.
	flingIdle = 100 * time.Millisecond
)

// --- Per-pointer state ---

type pointerState struct {
	down     bool
	start    Vec2
	last     Vec2
	lastMove time.Time
	dragging bool
	pinched  bool // took part in a pinch; release does not tap
	vel      velocitySampler
}

// --- Pinch state ---

type pinchState struct {
	active      bool
	pointer0    int
	pointer1    int
	initialDist float64
	lastDist    float64
	center      Vec2
}

// --- Wheel state ---

type wheelState struct {
	active   bool
	last     time.Time
	dir      float64
	velocity float64
	pos      Vec2
}

// GestureBridge reads mouse, wheel and touch input each tick and emits
// normalized gestures to a GestureHandler (usually a MapGesture). Pointer 0
// is the mouse and pointers 1-9 are touches. Synthetic input queued with the
// Inject methods replaces device input for the ticks that consume it.
type GestureBridge struct {
	h            GestureHandler
	now          func() time.Time
	deviceInput  bool
	dragDeadZone float64
	wheelIdle    time.Duration

	pointers    [maxPointers]pointerState
	touchMap    [maxPointers]ebiten.TouchID
	touchUsed   [maxPointers]bool
	touchIDs    []ebiten.TouchID
	releasedIDs []ebiten.TouchID
	pinch       pinchState
	wheel       wheelState

	injectQueue []syntheticEvent
	testRunner  *TestRunner
}

// NewGestureBridge returns a bridge feeding h, reading device input and the
// wall clock.
func NewGestureBridge(h GestureHandler) *GestureBridge {
	return &GestureBridge{
		h:            h,
		now:          time.Now,
		deviceInput:  true,
		dragDeadZone: defaultDragDeadZone,
		wheelIdle:    defaultWheelIdle,
	}
}

// SetClock replaces the time source used to stamp events.
func (b *GestureBridge) SetClock(now func() time.Time) { b.now = now }

// SetDeviceInput enables or disables reading Ebitengine input. With device
// input disabled only injected events are processed.
func (b *GestureBridge) SetDeviceInput(enabled bool) { b.deviceInput = enabled }

// SetDragDeadZone sets the minimum movement in pixels before a drag starts.
func (b *GestureBridge) SetDragDeadZone(pixels float64) { b.dragDeadZone = pixels }

// Update processes one tick of input. Call it from ebiten.Game.Update
// before Viewport.Update.
func (b *GestureBridge) Update() {
	now := b.now()
	if b.testRunner != nil {
		b.testRunner.step(b)
	}
	if b.processInjectedInput(now) {
		return
	}
	if !b.deviceInput {
		b.processWheel(b.pointers[0].last, 0, now)
		return
	}

	mx, my := ebiten.CursorPosition()
	cursor := Vec2{float64(mx), float64(my)}
	b.processPointer(0, cursor, ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft), now)
	b.processTouchPointers(now)
	b.detectPinch(now)

	_, dy := ebiten.Wheel()
	b.processWheel(cursor, dy, now)
}

// processTouchPointers handles touch input (pointers 1-9).
func (b *GestureBridge) processTouchPointers(now time.Time) {
	b.releasedIDs = inpututil.AppendJustReleasedTouchIDs(b.releasedIDs[:0])
	for _, tid := range b.releasedIDs {
		slot := b.findTouchSlot(tid)
		if slot < 0 {
			continue
		}
		x, y := inpututil.TouchPositionInPreviousTick(tid)
		b.processPointer(slot, Vec2{float64(x), float64(y)}, false, now)
		b.touchUsed[slot] = false
		b.touchMap[slot] = 0
	}

	b.touchIDs = ebiten.AppendTouchIDs(b.touchIDs[:0])
	for _, tid := range b.touchIDs {
		slot := b.touchSlot(tid)
		if slot < 0 {
			continue
		}
		x, y := ebiten.TouchPosition(tid)
		b.processPointer(slot, Vec2{float64(x), float64(y)}, true, now)
	}
}

func (b *GestureBridge) findTouchSlot(tid ebiten.TouchID) int {
	for i := 1; i < maxPointers; i++ {
		if b.touchUsed[i] && b.touchMap[i] == tid {
			return i
		}
	}
	return -1
}

// touchSlot maps an ebiten.TouchID to a pointer slot (1-9).
// Returns the existing slot or allocates a new one. Returns -1 if full.
func (b *GestureBridge) touchSlot(tid ebiten.TouchID) int {
	if i := b.findTouchSlot(tid); i >= 0 {
		return i
	}
	for i := 1; i < maxPointers; i++ {
		if !b.touchUsed[i] {
			b.touchUsed[i] = true
			b.touchMap[i] = tid
			return i
		}
	}
	return -1
}

// processPointer runs the press/drag/release state machine for one pointer.
func (b *GestureBridge) processPointer(id int, pos Vec2, pressed bool, now time.Time) {
	ps := &b.pointers[id]

	switch {
	case pressed && !ps.down:
		*ps = pointerState{down: true, start: pos, last: pos, lastMove: now}

	case !pressed && ps.down:
		if ps.dragging {
			vel := ps.vel.average()
			if now.Sub(ps.lastMove) > flingIdle {
				vel = Vec2{}
			}
			b.h.Drag(DragEvent{
				Phase:    PhaseEnd,
				Pos:      pos,
				Delta:    pos.Sub(ps.last),
				Distance: absVec(pos.Sub(ps.start)),
				Velocity: vel,
				Time:     now,
			})
		}
		if !ps.pinched {
			b.h.Tap(TapEvent{Pos: pos, Time: now})
		}
		ps.down = false
		ps.dragging = false
		ps.last = pos

	case pressed && ps.down:
		if pos == ps.last {
			return
		}
		if dt := now.Sub(ps.lastMove); dt > 0 {
			ms := float64(dt) / float64(time.Millisecond)
			ps.vel.add(pos.Sub(ps.last).Mul(1 / ms))
		}
		if !ps.dragging && !ps.pinched {
			if pos.Sub(ps.start).Len() > b.dragDeadZone {
				ps.dragging = true
				b.h.Drag(DragEvent{
					Phase:    PhaseStart,
					Pos:      pos,
					Delta:    pos.Sub(ps.start),
					Distance: absVec(pos.Sub(ps.start)),
					Velocity: ps.vel.average(),
					Time:     now,
				})
			}
		} else if ps.dragging {
			b.h.Drag(DragEvent{
				Phase:    PhaseMove,
				Pos:      pos,
				Delta:    pos.Sub(ps.last),
				Distance: absVec(pos.Sub(ps.start)),
				Velocity: ps.vel.average(),
				Time:     now,
			})
		}
		ps.last = pos
		ps.lastMove = now

	default:
		ps.last = pos
	}
}

// --- Pinch detection ---

func (b *GestureBridge) detectPinch(now time.Time) {
	var p [2]int
	count := 0
	for i := 1; i < maxPointers; i++ {
		if b.pointers[i].down {
			if count < 2 {
				p[count] = i
			}
			count++
		}
	}

	if count != 2 {
		if b.pinch.active {
			b.pinch.active = false
			b.h.Pinch(PinchEvent{
				Phase:           PhaseEnd,
				Origin:          b.pinch.center,
				InitialDistance: b.pinch.initialDist,
				Touches:         count,
				Time:            now,
			})
		}
		return
	}

	ps0 := &b.pointers[p[0]]
	ps1 := &b.pointers[p[1]]
	center := ps0.last.Add(ps1.last).Mul(0.5)
	dist := ps1.last.Sub(ps0.last).Len()

	// Suppress drag and tap for the two pinch pointers.
	ps0.dragging, ps1.dragging = false, false
	ps0.pinched, ps1.pinched = true, true

	if !b.pinch.active || b.pinch.pointer0 != p[0] || b.pinch.pointer1 != p[1] {
		b.pinch = pinchState{
			active:      true,
			pointer0:    p[0],
			pointer1:    p[1],
			initialDist: dist,
			lastDist:    dist,
			center:      center,
		}
		b.h.Pinch(PinchEvent{
			Phase:           PhaseStart,
			Origin:          center,
			Distance:        dist,
			InitialDistance: dist,
			Touches:         2,
			Time:            now,
		})
		return
	}

	if center == b.pinch.center && dist == b.pinch.lastDist {
		return
	}
	b.pinch.center = center
	b.pinch.lastDist = dist
	b.h.Pinch(PinchEvent{
		Phase:           PhaseMove,
		Origin:          center,
		Distance:        dist,
		InitialDistance: b.pinch.initialDist,
		Touches:         2,
		Time:            now,
	})
}

// --- Wheel ---

// processWheel emits wheel start/move events for non-zero ticks and a wheel
// end once the wheel has been idle for wheelIdle. dy follows Ebitengine's
// convention: positive scrolls up.
func (b *GestureBridge) processWheel(pos Vec2, dy float64, now time.Time) {
	if dy != 0 {
		phase := PhaseMove
		velocity := 0.0
		if !b.wheel.active {
			phase = PhaseStart
			b.wheel.active = true
		} else if dt := now.Sub(b.wheel.last); dt > 0 {
			velocity = math.Abs(dy) * wheelPixelsPerUnit / (float64(dt) / float64(time.Millisecond))
		}
		b.wheel.last = now
		b.wheel.dir = -math.Copysign(1, dy)
		b.wheel.velocity = velocity
		b.wheel.pos = pos
		b.h.Wheel(WheelEvent{
			Phase:     phase,
			Pos:       pos,
			Direction: b.wheel.dir,
			Velocity:  velocity,
			Time:      now,
		})
		return
	}
	if b.wheel.active && now.Sub(b.wheel.last) >= b.wheelIdle {
		b.wheel.active = false
		b.h.Wheel(WheelEvent{
			Phase:     PhaseEnd,
			Pos:       b.wheel.pos,
			Direction: b.wheel.dir,
			Velocity:  b.wheel.velocity,
			Time:      now,
		})
	}
}

func absVec(v Vec2) Vec2 {
	return Vec2{math.Abs(v.X), math.Abs(v.Y)}
}
