package mapview

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Driver produces an animated value as a function of elapsed time.
// Sample is called with monotonically increasing elapsed values and
// reports done once the value has settled.
type Driver interface {
	Sample(elapsed time.Duration) (value float64, done bool)
}

// Inertia is a decay driver: the value approaches Power*Velocity along an
// exponential curve with time constant TimeConstant. Zero fields take the
// defaults below.
type Inertia struct {
	Velocity     float64
	Power        float64       // default 0.8
	TimeConstant time.Duration // default 350ms
	RestDelta    float64       // default 0.5
}

const (
	defaultInertiaPower     = 0.8
	defaultInertiaTimeConst = 350 * time.Millisecond
	defaultInertiaRestDelta = 0.5
)

func (in *Inertia) withDefaults() Inertia {
	out := *in
	if out.Power == 0 {
		out.Power = defaultInertiaPower
	}
	if out.TimeConstant <= 0 {
		out.TimeConstant = defaultInertiaTimeConst
	}
	if out.RestDelta == 0 {
		out.RestDelta = defaultInertiaRestDelta
	}
	return out
}

// Target returns the value the animation settles at.
func (in Inertia) Target() float64 {
	d := in.withDefaults()
	return d.Power * d.Velocity
}

// Sample implements Driver.
func (in *Inertia) Sample(elapsed time.Duration) (float64, bool) {
	d := in.withDefaults()
	amplitude := d.Power * d.Velocity
	if amplitude == 0 || math.IsNaN(amplitude) || math.IsInf(amplitude, 0) {
		return 0, true
	}
	delta := -amplitude * math.Exp(-float64(elapsed)/float64(d.TimeConstant))
	if math.Abs(delta) <= d.RestDelta {
		return amplitude, true
	}
	return amplitude + delta, false
}

// Tween interpolates From to To over Duration with an easing function
// (ease.Linear when nil).
type Tween struct {
	tw   *gween.Tween
	last time.Duration
}

// NewTween returns a tween driver.
func NewTween(from, to float64, duration time.Duration, fn ease.TweenFunc) *Tween {
	if fn == nil {
		fn = ease.Linear
	}
	return &Tween{tw: gween.New(float32(from), float32(to), float32(duration.Seconds()), fn)}
}

// Sample implements Driver.
func (t *Tween) Sample(elapsed time.Duration) (float64, bool) {
	dt := elapsed - t.last
	t.last = elapsed
	v, done := t.tw.Update(float32(dt.Seconds()))
	return float64(v), done
}

// Animation is a running driver. The zero value is not usable; obtain one
// from Animator.Start.
type Animation struct {
	driver   Driver
	onUpdate func(float64)
	start    time.Time
	started  bool
	done     bool
}

// Stop cancels the animation. onUpdate is not called again. Stop on a nil
// or finished animation is a no-op.
func (a *Animation) Stop() {
	if a != nil {
		a.done = true
	}
}

// Done reports whether the animation finished or was stopped.
func (a *Animation) Done() bool {
	return a == nil || a.done
}

// Animator steps animations on the loop goroutine. There is no global
// manager: the viewport owns one and steps it from Update.
type Animator struct {
	anims []*Animation
}

// Start registers a new animation. onUpdate receives each sampled value,
// starting with the next Step.
func (an *Animator) Start(d Driver, onUpdate func(float64)) *Animation {
	a := &Animation{driver: d, onUpdate: onUpdate}
	an.anims = append(an.anims, a)
	return a
}

// Step samples every running animation at now and drops finished ones.
// It reports whether any animation produced a value.
func (an *Animator) Step(now time.Time) bool {
	ran := false
	live := an.anims[:0]
	for i := 0; i < len(an.anims); i++ {
		a := an.anims[i]
		if a.done {
			continue
		}
		if !a.started {
			a.started = true
			a.start = now
		}
		v, done := a.driver.Sample(now.Sub(a.start))
		if a.onUpdate != nil {
			a.onUpdate(v)
			ran = true
		}
		if done {
			a.done = true
		}
		if !a.done {
			live = append(live, a)
		}
	}
	// Animations started from inside onUpdate were appended past the
	// original length and were already visited by the loop above.
	for i := len(live); i < len(an.anims); i++ {
		an.anims[i] = nil
	}
	an.anims = live
	return ran
}

// StopAll cancels every running animation.
func (an *Animator) StopAll() {
	for _, a := range an.anims {
		a.done = true
	}
	an.anims = an.anims[:0]
}

// Len returns the number of running animations.
func (an *Animator) Len() int { return len(an.anims) }
