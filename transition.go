package prism

import "fmt"

// PlaybackState is the clip transition state of a layer.
type PlaybackState uint8

const (
	// Idle: no clip playing.
	Idle PlaybackState = iota
	// Playing: the active slot is shown at full weight.
	Playing
	// Transitioning: the active slot hands over to the pending slot.
	Transitioning
)

var playbackStateNames = [...]string{"idle", "playing", "transitioning"}

func (s PlaybackState) String() string {
	if int(s) < len(playbackStateNames) {
		return playbackStateNames[s]
	}
	return fmt.Sprintf("PlaybackState(%d)", uint8(s))
}

// MarshalText encodes the state by name.
func (s PlaybackState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *PlaybackState) UnmarshalText(text []byte) error {
	for i, name := range playbackStateNames {
		if name == string(text) {
			*s = PlaybackState(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown playback state %q", ErrInvalidConfig, text)
}

// Slot is one side of a playback: the clip being shown and a token that keys
// its runtime resources.
type Slot struct {
	Token  uint64     `json:"token"`
	Cell   CellKey    `json:"cell"`
	Source ClipSource `json:"source"`
	// Held marks a slot whose content is a frozen image of the layer taken
	// when a transition was interrupted. It has no media source.
	Held bool `json:"held,omitempty"`
}

// Playback is the per-layer clip transition state machine.
//
//	Idle -> Playing(active) -> Transitioning(active, pending) -> Playing(pending)
//
// Cut skips Transitioning. Triggering during a transition freezes the
// current blend into a held active slot and starts over from it.
type Playback struct {
	State   PlaybackState  `json:"state"`
	Active  *Slot          `json:"active,omitempty"`
	Pending *Slot          `json:"pending,omitempty"`
	Kind    TransitionKind `json:"kind"`
	Easing  string         `json:"easing,omitempty"`
	// Elapsed and Duration are in seconds.
	Elapsed   float64 `json:"elapsed"`
	Duration  float64 `json:"duration"`
	NextToken uint64  `json:"next_token"`
}

func (p *Playback) newSlot(cell CellKey, src ClipSource) *Slot {
	p.NextToken++
	return &Slot{Token: p.NextToken, Cell: cell, Source: src}
}

// Trigger starts playing src from cell using policy. Slots it drops are
// released by the engine once the model no longer references their tokens.
func (p *Playback) Trigger(cell CellKey, src ClipSource, policy TransitionPolicy) {
	next := p.newSlot(cell, src)

	if policy.instant() || p.State == Idle && policy.Kind == TransitionFade {
		p.Active, p.Pending = next, nil
		p.State = Playing
		p.Elapsed, p.Duration = 0, 0
		return
	}

	switch p.State {
	case Transitioning:
		// Freeze the visible blend so the new transition starts where the
		// interrupted one left off.
		p.NextToken++
		p.Active = &Slot{Token: p.NextToken, Held: true}
	case Idle:
		p.Active = nil
	}
	p.Pending = next
	p.State = Transitioning
	p.Kind = policy.Kind
	p.Easing = policy.Easing
	p.Elapsed = 0
	p.Duration = policy.Duration
}

// Stop ends playback. A zero fadeOut goes to Idle immediately; otherwise the
// active slot fades out with an empty pending slot.
func (p *Playback) Stop(fadeOut float64) {
	if p.State == Idle {
		return
	}
	if fadeOut <= 0 {
		*p = Playback{NextToken: p.NextToken}
		return
	}
	if p.State == Transitioning {
		p.NextToken++
		p.Active = &Slot{Token: p.NextToken, Held: true}
	}
	p.Pending = nil
	p.State = Transitioning
	p.Kind = TransitionFade
	p.Easing = ""
	p.Elapsed = 0
	p.Duration = fadeOut
}

// Advance moves a transition forward by dt seconds. Reports whether the
// transition completed during this call.
func (p *Playback) Advance(dt float64) bool {
	if p.State != Transitioning {
		return false
	}
	p.Elapsed += dt
	if p.Elapsed < p.Duration {
		return false
	}
	p.Active, p.Pending = p.Pending, nil
	p.Elapsed, p.Duration = 0, 0
	if p.Active == nil {
		p.State = Idle
	} else {
		p.State = Playing
	}
	return true
}

// Progress returns the eased transition position in [0, 1].
func (p *Playback) Progress() float64 {
	if p.State != Transitioning {
		return 0
	}
	if p.Duration <= 0 {
		return 1
	}
	t := clamp01(p.Elapsed / p.Duration)
	return Ease(p.Easing, t)
}

// Weights returns the opacity of the active and pending slots.
//
//	Crossfade: (1-t, t)
//	Fade:      (1-t, 0) until completion, then the pending slot plays at 1
func (p *Playback) Weights() (active, pending float64) {
	switch p.State {
	case Playing:
		return 1, 0
	case Transitioning:
		t := p.Progress()
		if p.Kind == TransitionCrossfade {
			return 1 - t, t
		}
		return 1 - t, 0
	}
	return 0, 0
}

// Slots returns the live slots, active first.
func (p *Playback) Slots() []*Slot {
	var out []*Slot
	if p.Active != nil {
		out = append(out, p.Active)
	}
	if p.Pending != nil {
		out = append(out, p.Pending)
	}
	return out
}

// Clone returns a deep copy.
func (p *Playback) Clone() Playback {
	c := *p
	if p.Active != nil {
		a := *p.Active
		c.Active = &a
	}
	if p.Pending != nil {
		pd := *p.Pending
		c.Pending = &pd
	}
	return c
}
