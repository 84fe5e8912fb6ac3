package prism

import (
	"fmt"
	"math"
	"sync"
)

// Clock is the shared tempo and automation clock. The engine advances it once
// per tick; every automation read is a pure function of its state.
type Clock struct {
	// Time is seconds since start.
	Time float64
	// Beat is the number of beats elapsed since start.
	Beat float64
	// Tempo in beats per minute.
	Tempo float64
	// Smoothing is the audio band time constant in seconds.
	Smoothing float64

	bands []float64

	mu     sync.Mutex
	staged []float64
}

// NewClock creates a clock at tempo bpm.
func NewClock(tempo, smoothing float64) *Clock {
	return &Clock{Tempo: tempo, Smoothing: smoothing}
}

// SetAudioLevels stages raw band energies from an audio analysis goroutine.
// They are picked up by the next Advance. Safe for concurrent use.
func (c *Clock) SetAudioLevels(levels []float64) {
	c.mu.Lock()
	c.staged = append(c.staged[:0], levels...)
	c.mu.Unlock()
}

// Advance moves the clock forward by dt seconds and smooths the audio bands
// toward the staged levels.
func (c *Clock) Advance(dt float64) {
	if dt < 0 {
		dt = 0
	}
	c.Time += dt
	c.Beat += dt * c.Tempo / 60

	c.mu.Lock()
	staged := c.staged
	if len(c.bands) < len(staged) {
		c.bands = append(c.bands, make([]float64, len(staged)-len(c.bands))...)
	}
	k := 1.0
	if c.Smoothing > 0 {
		k = 1 - math.Exp(-dt/c.Smoothing)
	}
	for i, target := range staged {
		c.bands[i] += (target - c.bands[i]) * k
	}
	c.mu.Unlock()
}

// Band returns the smoothed energy of band i, or 0.
func (c *Clock) Band(i int) float64 {
	if i < 0 || i >= len(c.bands) {
		return 0
	}
	return c.bands[i]
}

// BeatPhase returns the position within the current beat in [0, 1).
func (c *Clock) BeatPhase() float64 {
	return c.Beat - math.Floor(c.Beat)
}

// SecondsPerBeat returns the beat length.
func (c *Clock) SecondsPerBeat() float64 {
	if c.Tempo <= 0 {
		return 0
	}
	return 60 / c.Tempo
}

// AutomationKind discriminates automation sources.
type AutomationKind string

const (
	AutomationLFO      AutomationKind = "lfo"
	AutomationEnvelope AutomationKind = "envelope"
	AutomationAudio    AutomationKind = "audio"
)

// Waveform selects the LFO shape.
type Waveform string

const (
	WaveSine       Waveform = "sine"
	WaveTriangle   Waveform = "triangle"
	WaveSaw        Waveform = "saw"
	WaveSquare     Waveform = "square"
	WaveSampleHold Waveform = "sample-hold"
)

// LFO is a tempo-synced oscillator with output in [-1, 1].
type LFO struct {
	Waveform Waveform `json:"waveform"`
	// Beats is the cycle length in beats.
	Beats float64 `json:"beats"`
	// Phase offsets the cycle, in cycles.
	Phase float64 `json:"phase"`
	// Seed varies the sample-and-hold sequence.
	Seed uint32 `json:"seed,omitempty"`
}

// Value evaluates the LFO at the clock's beat position.
func (l *LFO) Value(c *Clock) float64 {
	if l.Beats <= 0 {
		return 0
	}
	pos := c.Beat/l.Beats + l.Phase
	cycle := math.Floor(pos)
	ph := pos - cycle
	switch l.Waveform {
	case WaveTriangle:
		return 1 - 4*math.Abs(ph-0.5)
	case WaveSaw:
		return 2*ph - 1
	case WaveSquare:
		if ph < 0.5 {
			return 1
		}
		return -1
	case WaveSampleHold:
		return holdValue(int64(cycle), l.Seed)
	default:
		return math.Sin(2 * math.Pi * ph)
	}
}

// holdValue hashes a cycle index to a value in [-1, 1].
func holdValue(cycle int64, seed uint32) float64 {
	x := uint64(cycle)*0x9e3779b97f4a7c15 ^ uint64(seed)*0xbf58476d1ce4e5b9
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return float64(x>>11)/float64(1<<53)*2 - 1
}

// Envelope is an ADSR envelope retriggered every Every beats, output in
// [0, 1]. Attack, decay and release are seconds; Gate is the held length in
// beats before release starts.
type Envelope struct {
	Every   float64 `json:"every"`
	Attack  float64 `json:"attack"`
	Decay   float64 `json:"decay"`
	Sustain float64 `json:"sustain"`
	Release float64 `json:"release"`
	Gate    float64 `json:"gate"`
}

// Value evaluates the envelope at the clock's beat position.
func (e *Envelope) Value(c *Clock) float64 {
	if e.Every <= 0 {
		return 0
	}
	spb := c.SecondsPerBeat()
	since := (c.Beat - math.Floor(c.Beat/e.Every)*e.Every) * spb
	gate := e.Gate * spb
	if since < gate {
		return e.held(since)
	}
	if e.Release <= 0 {
		return 0
	}
	level := e.held(gate)
	return math.Max(0, level*(1-(since-gate)/e.Release))
}

// held is the attack/decay/sustain level t seconds after the trigger.
func (e *Envelope) held(t float64) float64 {
	if t < e.Attack {
		return t / e.Attack
	}
	t -= e.Attack
	if t < e.Decay {
		return 1 - (1-e.Sustain)*t/e.Decay
	}
	return e.Sustain
}

// AudioBand follows one smoothed audio band, output in [0, 1].
type AudioBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// Value reads the band from the clock.
func (a *AudioBand) Value(c *Clock) float64 {
	return clamp01(c.Band(a.Band) * a.Gain)
}

// Automation modulates a numeric parameter. The effective value is
// base + Depth*(max-min)*source, clamped to the parameter range.
type Automation struct {
	Kind     AutomationKind `json:"kind"`
	Depth    float64        `json:"depth"`
	LFO      *LFO           `json:"lfo,omitempty"`
	Envelope *Envelope      `json:"envelope,omitempty"`
	Audio    *AudioBand     `json:"audio,omitempty"`
}

// Validate checks that the variant selected by Kind is present and sane.
func (a *Automation) Validate() error {
	switch a.Kind {
	case AutomationLFO:
		if a.LFO == nil || a.LFO.Beats <= 0 {
			return fmt.Errorf("%w: lfo needs a positive cycle length", ErrInvalidConfig)
		}
		switch a.LFO.Waveform {
		case WaveSine, WaveTriangle, WaveSaw, WaveSquare, WaveSampleHold:
		default:
			return fmt.Errorf("%w: unknown waveform %q", ErrInvalidConfig, a.LFO.Waveform)
		}
	case AutomationEnvelope:
		e := a.Envelope
		if e == nil || e.Every <= 0 || e.Attack < 0 || e.Decay < 0 || e.Release < 0 || e.Gate < 0 ||
			e.Sustain < 0 || e.Sustain > 1 {
			return fmt.Errorf("%w: envelope", ErrInvalidConfig)
		}
	case AutomationAudio:
		if a.Audio == nil || a.Audio.Band < 0 {
			return fmt.Errorf("%w: audio band", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown automation kind %q", ErrInvalidConfig, a.Kind)
	}
	return nil
}

// Value returns the source output for this tick.
func (a *Automation) Value(c *Clock) float64 {
	if c == nil {
		return 0
	}
	switch a.Kind {
	case AutomationLFO:
		if a.LFO != nil {
			return a.LFO.Value(c)
		}
	case AutomationEnvelope:
		if a.Envelope != nil {
			return a.Envelope.Value(c)
		}
	case AutomationAudio:
		if a.Audio != nil {
			return a.Audio.Value(c)
		}
	}
	return 0
}

// Clone returns a deep copy.
func (a Automation) Clone() Automation {
	if a.LFO != nil {
		l := *a.LFO
		a.LFO = &l
	}
	if a.Envelope != nil {
		e := *a.Envelope
		a.Envelope = &e
	}
	if a.Audio != nil {
		b := *a.Audio
		a.Audio = &b
	}
	return a
}
