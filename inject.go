package mapview

import "time"

type syntheticKind uint8

const (
	syntheticPointer syntheticKind = iota
	syntheticWheel
	syntheticPinch
)

// syntheticEvent is a single injected input event. Coordinates are view
// space, the same space device input arrives in.
type syntheticEvent struct {
	kind    syntheticKind
	pos     Vec2
	pressed bool
	wheelDY float64
	// second touch of a pinch
	pos2 Vec2
}

// InjectPress queues a pointer press at the given view coordinates. Each
// queued event is consumed by one Update.
func (b *GestureBridge) InjectPress(x, y float64) {
	b.injectQueue = append(b.injectQueue, syntheticEvent{kind: syntheticPointer, pos: Vec2{x, y}, pressed: true})
}

// InjectMove queues a pointer move with the button held down. Use it between
// InjectPress and InjectRelease to simulate a drag.
func (b *GestureBridge) InjectMove(x, y float64) {
	b.injectQueue = append(b.injectQueue, syntheticEvent{kind: syntheticPointer, pos: Vec2{x, y}, pressed: true})
}

// InjectRelease queues a pointer release at the given view coordinates.
func (b *GestureBridge) InjectRelease(x, y float64) {
	b.injectQueue = append(b.injectQueue, syntheticEvent{kind: syntheticPointer, pos: Vec2{x, y}})
}

// InjectClick queues a press followed by a release at the same point.
// Consumes two ticks.
func (b *GestureBridge) InjectClick(x, y float64) {
	b.InjectPress(x, y)
	b.InjectRelease(x, y)
}

// InjectDrag queues a full drag: press at (fromX, fromY), frames-2 linearly
// interpolated moves and a release at (toX, toY). Minimum frames is 2.
func (b *GestureBridge) InjectDrag(fromX, fromY, toX, toY float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	b.InjectPress(fromX, fromY)
	steps := frames - 2
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		b.InjectMove(fromX+(toX-fromX)*t, fromY+(toY-fromY)*t)
	}
	b.InjectRelease(toX, toY)
}

// InjectWheel queues one wheel tick at (x, y). dy follows Ebitengine's
// convention: positive scrolls up and zooms in.
func (b *GestureBridge) InjectWheel(x, y, dy float64) {
	b.injectQueue = append(b.injectQueue, syntheticEvent{kind: syntheticWheel, pos: Vec2{x, y}, wheelDY: dy})
}

// InjectPinch queues a two-finger pinch around center: the finger span goes
// from fromDist to toDist over frames ticks, then both fingers lift.
func (b *GestureBridge) InjectPinch(center Vec2, fromDist, toDist float64, frames int) {
	if frames < 2 {
		frames = 2
	}
	for i := 0; i < frames; i++ {
		t := float64(i) / float64(frames-1)
		half := (fromDist + (toDist-fromDist)*t) / 2
		b.injectQueue = append(b.injectQueue, syntheticEvent{
			kind:    syntheticPinch,
			pos:     Vec2{center.X - half, center.Y},
			pos2:    Vec2{center.X + half, center.Y},
			pressed: true,
		})
	}
	half := toDist / 2
	b.injectQueue = append(b.injectQueue, syntheticEvent{
		kind: syntheticPinch,
		pos:  Vec2{center.X - half, center.Y},
		pos2: Vec2{center.X + half, center.Y},
	})
}

// Pending returns the number of queued synthetic events.
func (b *GestureBridge) Pending() int { return len(b.injectQueue) }

// processInjectedInput pops one event from the inject queue and feeds it
// through the same state machines as device input. Returns true if an event
// was consumed (device input is skipped for that tick).
func (b *GestureBridge) processInjectedInput(now time.Time) bool {
	if len(b.injectQueue) == 0 {
		return false
	}
	evt := b.injectQueue[0]
	copy(b.injectQueue, b.injectQueue[1:])
	b.injectQueue = b.injectQueue[:len(b.injectQueue)-1]

	switch evt.kind {
	case syntheticPointer:
		b.processPointer(0, evt.pos, evt.pressed, now)
		b.processWheel(evt.pos, 0, now)
	case syntheticWheel:
		b.processWheel(evt.pos, evt.wheelDY, now)
	case syntheticPinch:
		b.processPointer(1, evt.pos, evt.pressed, now)
		b.processPointer(2, evt.pos2, evt.pressed, now)
		b.detectPinch(now)
	}
	return true
}
