package prism

import (
	"sort"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

var easings = map[string]ease.TweenFunc{
	"":               ease.Linear,
	"linear":         ease.Linear,
	"in-quad":        ease.InQuad,
	"out-quad":       ease.OutQuad,
	"in-out-quad":    ease.InOutQuad,
	"in-cubic":       ease.InCubic,
	"out-cubic":      ease.OutCubic,
	"in-out-cubic":   ease.InOutCubic,
	"in-sine":        ease.InSine,
	"out-sine":       ease.OutSine,
	"in-out-sine":    ease.InOutSine,
	"in-expo":        ease.InExpo,
	"out-expo":       ease.OutExpo,
	"in-out-expo":    ease.InOutExpo,
	"out-bounce":     ease.OutBounce,
	"in-out-back":    ease.InOutBack,
	"out-elastic":    ease.OutElastic,
	"in-out-elastic": ease.InOutElastic,
}

// EasingByName returns the easing function registered under name. The empty
// name is linear.
func EasingByName(name string) (ease.TweenFunc, bool) {
	fn, ok := easings[name]
	return fn, ok
}

// EasingNames returns the registered easing names, sorted.
func EasingNames() []string {
	out := make([]string, 0, len(easings))
	for k := range easings {
		if k != "" {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Ease maps t in [0, 1] through the named easing. The endpoints are exact.
// Unknown names fall back to linear.
func Ease(name string, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	fn, ok := easings[name]
	if !ok || name == "" || name == "linear" {
		return t
	}
	return float64(fn(float32(t), 0, 1, 1))
}

// RampTarget identifies the value a Ramp drives.
type RampTarget struct {
	Layer LayerID
	// Effect and Param select an effect parameter. A zero Effect targets the
	// layer opacity.
	Effect EffectID
	Param  string
}

// Ramp animates one float value toward a target over time. Ramps are
// runtime state owned by the engine and are not part of a snapshot.
type Ramp struct {
	Target RampTarget
	tween  *gween.Tween
	Done   bool
}

// NewRamp creates a ramp from -> to over duration seconds.
func NewRamp(target RampTarget, from, to, duration float64, fn ease.TweenFunc) *Ramp {
	if fn == nil {
		fn = ease.Linear
	}
	return &Ramp{Target: target, tween: gween.New(float32(from), float32(to), float32(duration), fn)}
}

// Update advances the ramp by dt seconds and returns the current value.
func (r *Ramp) Update(dt float64) float64 {
	val, finished := r.tween.Update(float32(dt))
	r.Done = finished
	return float64(val)
}

// rampSet holds the active ramps. Starting a ramp on a target replaces any
// ramp already running on it.
type rampSet struct {
	ramps []*Ramp
}

func (s *rampSet) start(r *Ramp) {
	for i, old := range s.ramps {
		if old.Target == r.Target {
			s.ramps[i] = r
			return
		}
	}
	s.ramps = append(s.ramps, r)
}

// update advances every ramp and calls apply with its value. Finished ramps
// and ramps whose apply reports a missing target are dropped.
func (s *rampSet) update(dt float64, apply func(RampTarget, float64) bool) {
	kept := s.ramps[:0]
	for _, r := range s.ramps {
		v := r.Update(dt)
		if apply(r.Target, v) && !r.Done {
			kept = append(kept, r)
		}
	}
	clear(s.ramps[len(kept):])
	s.ramps = kept
}

func (s *rampSet) filter(drop func(RampTarget) bool) {
	kept := s.ramps[:0]
	for _, r := range s.ramps {
		if !drop(r.Target) {
			kept = append(kept, r)
		}
	}
	clear(s.ramps[len(kept):])
	s.ramps = kept
}

// dropLayer removes ramps targeting layer id.
func (s *rampSet) dropLayer(id LayerID) {
	s.filter(func(t RampTarget) bool { return t.Layer == id })
}

// dropEffect removes ramps targeting parameters of effect id.
func (s *rampSet) dropEffect(layer LayerID, id EffectID) {
	s.filter(func(t RampTarget) bool { return t.Layer == layer && t.Effect == id })
}

// cancel removes the ramp on target, if any. An explicit set wins over a
// running ramp.
func (s *rampSet) cancel(target RampTarget) {
	s.filter(func(t RampTarget) bool { return t == target })
}

func (s *rampSet) reset() { s.ramps = nil }

func (s *rampSet) len() int { return len(s.ramps) }
