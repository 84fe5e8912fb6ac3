package prism

import (
	"errors"
	"math"
	"testing"
)

func clockAtBeat(beat float64) *Clock {
	c := NewClock(120, 0)
	c.Advance(beat * c.SecondsPerBeat())
	return c
}

func TestClockAdvance(t *testing.T) {
	c := NewClock(120, 0)
	c.Advance(1.5)
	if c.Time != 1.5 || c.Beat != 3 {
		t.Errorf("time = %v beat = %v, want 1.5, 3", c.Time, c.Beat)
	}
	c.Advance(-1)
	if c.Time != 1.5 {
		t.Error("negative dt moved the clock")
	}
	c.Advance(0.25)
	if !approxEqual(c.BeatPhase(), 0.5, 1e-12) {
		t.Errorf("phase = %v, want 0.5", c.BeatPhase())
	}
}

func TestClockAudioSmoothing(t *testing.T) {
	c := NewClock(120, 0)
	c.SetAudioLevels([]float64{0.8, 0.2})
	c.Advance(1.0 / 60)
	if c.Band(0) != 0.8 || c.Band(1) != 0.2 {
		t.Errorf("unsmoothed bands = %v, %v", c.Band(0), c.Band(1))
	}
	if c.Band(5) != 0 || c.Band(-1) != 0 {
		t.Error("out of range bands should read 0")
	}

	s := NewClock(120, 0.1)
	s.SetAudioLevels([]float64{1})
	s.Advance(0.1)
	want := 1 - math.Exp(-1)
	if !approxEqual(s.Band(0), want, 1e-12) {
		t.Errorf("smoothed band = %v, want %v", s.Band(0), want)
	}
}

func TestLFOWaveforms(t *testing.T) {
	tests := []struct {
		wave Waveform
		beat float64
		want float64
	}{
		{WaveSine, 0.25, 1},
		{WaveSine, 0.75, -1},
		{WaveTriangle, 0, -1},
		{WaveTriangle, 0.5, 1},
		{WaveSaw, 0, -1},
		{WaveSaw, 0.5, 0},
		{WaveSquare, 0.25, 1},
		{WaveSquare, 0.75, -1},
	}
	for _, tt := range tests {
		l := &LFO{Waveform: tt.wave, Beats: 1}
		if got := l.Value(clockAtBeat(tt.beat)); !approxEqual(got, tt.want, 1e-9) {
			t.Errorf("%s at beat %v = %v, want %v", tt.wave, tt.beat, got, tt.want)
		}
	}
}

func TestLFOPhaseAndLength(t *testing.T) {
	l := &LFO{Waveform: WaveSaw, Beats: 4, Phase: 0.25}
	// beat 2 of a 4-beat cycle is position 0.5, plus 0.25 phase.
	if got := l.Value(clockAtBeat(2)); !approxEqual(got, 0.5, 1e-9) {
		t.Errorf("saw = %v, want 0.5", got)
	}
}

func TestSampleHoldIsDeterministic(t *testing.T) {
	l := &LFO{Waveform: WaveSampleHold, Beats: 1, Seed: 7}
	a := l.Value(clockAtBeat(3.1))
	b := l.Value(clockAtBeat(3.9))
	if a != b {
		t.Errorf("value changed within a cycle: %v vs %v", a, b)
	}
	if a < -1 || a > 1 {
		t.Errorf("value %v out of range", a)
	}
}

func TestEnvelopeShape(t *testing.T) {
	// 120 BPM: 0.5 s per beat.
	e := &Envelope{Every: 4, Attack: 0.25, Decay: 0.25, Sustain: 0.5, Release: 0.5, Gate: 2}
	tests := []struct {
		beat, want float64
	}{
		{0, 0},
		{0.25, 0.5},  // half-way through attack
		{0.5, 1},     // attack done
		{0.75, 0.75}, // half-way through decay
		{1.5, 0.5},   // sustain
		{2.5, 0.25},  // half-way through release
		{3.5, 0},     // released
		{4.5, 1},     // retriggered
	}
	for _, tt := range tests {
		if got := e.Value(clockAtBeat(tt.beat)); !approxEqual(got, tt.want, 1e-9) {
			t.Errorf("beat %v: %v, want %v", tt.beat, got, tt.want)
		}
	}
}

func TestAudioBandAutomation(t *testing.T) {
	c := NewClock(120, 0)
	c.SetAudioLevels([]float64{0.3})
	c.Advance(0.01)
	a := &AudioBand{Band: 0, Gain: 2}
	if got := a.Value(c); !approxEqual(got, 0.6, 1e-12) {
		t.Errorf("band = %v, want 0.6", got)
	}
	a.Gain = 10
	if got := a.Value(c); got != 1 {
		t.Errorf("band = %v, want clamped 1", got)
	}
}

func TestAutomationValidate(t *testing.T) {
	valid := []Automation{
		{Kind: AutomationLFO, LFO: &LFO{Waveform: WaveSine, Beats: 1}},
		{Kind: AutomationEnvelope, Envelope: &Envelope{Every: 1, Sustain: 1}},
		{Kind: AutomationAudio, Audio: &AudioBand{Band: 2}},
	}
	for _, a := range valid {
		if err := a.Validate(); err != nil {
			t.Errorf("%s: %v", a.Kind, err)
		}
	}
	invalid := []Automation{
		{Kind: AutomationLFO},
		{Kind: AutomationLFO, LFO: &LFO{Waveform: "noise", Beats: 1}},
		{Kind: AutomationEnvelope, Envelope: &Envelope{Every: 1, Sustain: 2}},
		{Kind: AutomationAudio, Audio: &AudioBand{Band: -1}},
		{Kind: "midi"},
	}
	for _, a := range invalid {
		if err := a.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%+v: err = %v, want ErrInvalidConfig", a, err)
		}
	}
}

func TestParameterEvaluateAppliesDepthAndClamps(t *testing.T) {
	p := NewParameter(ParamSpec{Name: "amount", Kind: KindFloat, Min: 0, Max: 2, Default: FloatValue(1), Automatable: true})
	if err := p.Automate(&Automation{Kind: AutomationLFO, Depth: 0.25, LFO: &LFO{Waveform: WaveSine, Beats: 1}}); err != nil {
		t.Fatal(err)
	}
	// sine peak: 1 + 0.25*2*1
	if got := p.Evaluate(clockAtBeat(0.25)).Float; !approxEqual(got, 1.5, 1e-9) {
		t.Errorf("peak = %v, want 1.5", got)
	}
	p.Automation.Depth = 2
	if got := p.Evaluate(clockAtBeat(0.25)).Float; got != 2 {
		t.Errorf("clamped = %v, want 2", got)
	}
	if got := p.Evaluate(clockAtBeat(0.75)).Float; got != 0 {
		t.Errorf("clamped low = %v, want 0", got)
	}
}

func TestParameterIntAutomationRounds(t *testing.T) {
	p := NewParameter(intSpec("radius", 0, 10, 4))
	if err := p.Automate(&Automation{Kind: AutomationLFO, Depth: 0.13, LFO: &LFO{Waveform: WaveSine, Beats: 1}}); err != nil {
		t.Fatal(err)
	}
	// 4 + 0.13*10 = 5.3
	if got := p.Evaluate(clockAtBeat(0.25)); got.Kind != KindInt || got.Int != 5 {
		t.Errorf("value = %+v, want int 5", got)
	}
}

func TestParameterAutomateRejectsNonNumeric(t *testing.T) {
	p := NewParameter(ParamSpec{Name: "on", Kind: KindBool, Default: BoolValue(true), Automatable: true})
	err := p.Automate(&Automation{Kind: AutomationLFO, LFO: &LFO{Waveform: WaveSine, Beats: 1}})
	if !errors.Is(err, ErrNotAutomatable) {
		t.Errorf("err = %v, want ErrNotAutomatable", err)
	}
	if err := p.Automate(nil); err != nil {
		t.Errorf("detach: %v", err)
	}
}

func TestParameterSetChecksKind(t *testing.T) {
	p := NewParameter(floatSpec("amount", 0, 1, 0.5))
	if err := p.Set(IntValue(1)); !errors.Is(err, ErrKindMismatch) {
		t.Errorf("err = %v, want ErrKindMismatch", err)
	}
	if err := p.Set(FloatValue(math.NaN())); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NaN err = %v", err)
	}
	// Out of range values are stored and clamped on evaluation.
	if err := p.Set(FloatValue(3)); err != nil {
		t.Fatal(err)
	}
	if got := p.Evaluate(nil).Float; got != 1 {
		t.Errorf("evaluated = %v, want 1", got)
	}

	e := NewParameter(ParamSpec{Name: "mode", Kind: KindEnum, Options: []string{"a", "b"}, Default: EnumValue("a")})
	if err := e.Set(EnumValue("c")); err == nil {
		t.Error("expected error for unknown option")
	}
}

func TestValuesAccessors(t *testing.T) {
	v := Values{"f": FloatValue(1.6), "b": BoolValue(true), "e": EnumValue("x")}
	if v.Float("f", 0) != 1.6 || v.Int("f", 0) != 2 || !v.Bool("b", false) || v.Enum("e", "") != "x" {
		t.Error("accessor mismatch")
	}
	if v.Float("missing", 7) != 7 || v.Bool("f", true) != true {
		t.Error("defaults not applied")
	}
}
