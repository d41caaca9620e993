package mapview

import (
	"encoding/json"
	"fmt"
)

// testStep is a single action in a test script.
type testStep struct {
	Action    string  `json:"action"`
	Label     string  `json:"label,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	FromX     float64 `json:"fromX,omitempty"`
	FromY     float64 `json:"fromY,omitempty"`
	ToX       float64 `json:"toX,omitempty"`
	ToY       float64 `json:"toY,omitempty"`
	DY        float64 `json:"dy,omitempty"`
	Dist      float64 `json:"dist,omitempty"`
	StartDist float64 `json:"startDist,omitempty"`
	Frames    int     `json:"frames,omitempty"`
}

type testScript struct {
	Steps []testStep `json:"steps"`
}

// TestRunner sequences injected input and screenshots across ticks for
// automated visual checks of a map. Attach it with
// GestureBridge.SetTestRunner.
//
// Supported actions: click, drag, wheel, pinch, wait, screenshot.
type TestRunner struct {
	steps     []testStep
	cursor    int
	waitCount int
	done      bool
	shots     *Screenshotter
}

// LoadTestScript parses a JSON test script.
func LoadTestScript(jsonData []byte) (*TestRunner, error) {
	var script testScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	for i, st := range script.Steps {
		switch st.Action {
		case "click", "drag", "wheel", "pinch", "wait", "screenshot":
		default:
			return nil, fmt.Errorf("parse test script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// SetTestRunner attaches r. Its steps run at the start of every Update.
func (b *GestureBridge) SetTestRunner(r *TestRunner) {
	b.testRunner = r
}

// SetScreenshotter sets where screenshot steps are queued. Without one,
// screenshot steps are skipped.
func (r *TestRunner) SetScreenshotter(s *Screenshotter) {
	r.shots = s
}

// Done reports whether every step has been executed.
func (r *TestRunner) Done() bool {
	return r.done
}

// step advances the runner by one tick.
func (r *TestRunner) step(b *GestureBridge) {
	if r.done {
		return
	}
	// Wait for pending injections to drain before advancing.
	if len(b.injectQueue) > 0 {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	switch st.Action {
	case "screenshot":
		if r.shots != nil {
			r.shots.Request(st.Label)
		}
	case "click":
		b.InjectClick(st.X, st.Y)
	case "drag":
		b.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "wheel":
		dy := st.DY
		if dy == 0 {
			dy = 1
		}
		b.InjectWheel(st.X, st.Y, dy)
	case "pinch":
		b.InjectPinch(Vec2{st.X, st.Y}, st.StartDist, st.Dist, st.Frames)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this tick counts as one
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(b.injectQueue) == 0 {
		r.done = true
	}
}
