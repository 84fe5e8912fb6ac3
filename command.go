package prism

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Command is one atomic edit of the model. Commands are queued by the
// control surface and applied by the engine between ticks. An apply either
// succeeds completely or leaves the model untouched.
type Command interface {
	apply(cc *commandContext) error
}

// Result is the outcome of a command. ID is set by commands that create
// something.
type Result struct {
	ID  uint32
	Err error
}

type commandContext struct {
	model    *Model
	registry *EffectRegistry
	clock    *Clock
	ramps    *rampSet
	events   []Event
	id       uint32
	// reloaded is set when the model was replaced wholesale.
	reloaded bool
}

func (cc *commandContext) emit(e Event) { cc.events = append(cc.events, e) }

// editSlice applies fn to a copy of the slice and swaps it in only if the
// result validates.
func (cc *commandContext) editSlice(sid ScreenID, id SliceID, fn func(s *Slice) error) error {
	sc, s, err := cc.model.Outputs.Slice(sid, id)
	if err != nil {
		return err
	}
	c := s.Clone()
	if err := fn(c); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	_, i := sc.Slice(id)
	sc.Slices[i] = c
	return nil
}

// --- queue ---

type queuedCommand struct {
	cmd  Command
	done chan Result
}

// CommandQueue is a bounded, goroutine-safe queue of commands drained by
// the render goroutine at tick boundaries.
type CommandQueue struct {
	mu       sync.Mutex
	pending  []queuedCommand
	capacity int
	closed   bool
}

// NewCommandQueue returns a queue holding at most capacity commands.
func NewCommandQueue(capacity int) *CommandQueue {
	return &CommandQueue{capacity: capacity}
}

// Submit enqueues cmd. The returned channel receives exactly one Result once
// the command has been applied or rejected. Submit never blocks.
func (q *CommandQueue) Submit(cmd Command) <-chan Result {
	done := make(chan Result, 1)
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case q.closed:
		done <- Result{Err: ErrEngineClosed}
	case len(q.pending) >= q.capacity:
		done <- Result{Err: ErrQueueFull}
	default:
		q.pending = append(q.pending, queuedCommand{cmd: cmd, done: done})
	}
	return done
}

// Do submits cmd and waits for its result or ctx.
func (q *CommandQueue) Do(ctx context.Context, cmd Command) (Result, error) {
	select {
	case r := <-q.Submit(cmd):
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Len returns the number of queued commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain takes every queued command.
func (q *CommandQueue) drain() []queuedCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// close rejects queued and future commands.
func (q *CommandQueue) close() {
	q.mu.Lock()
	q.closed = true
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, p := range pending {
		p.done <- Result{Err: ErrEngineClosed}
	}
}

// --- layer commands ---

// AddLayer creates a layer at Index (out of range appends in front).
type AddLayer struct {
	Name  string
	Index int
}

func (c AddLayer) apply(cc *commandContext) error {
	l := NewLayer(cc.model.newLayerID(), c.Name)
	cc.model.Environment.Insert(l, c.Index)
	cc.id = uint32(l.ID)
	return nil
}

// RemoveLayer deletes a layer. Slices sampling it render nothing.
type RemoveLayer struct{ Layer LayerID }

func (c RemoveLayer) apply(cc *commandContext) error {
	if _, err := cc.model.Environment.Remove(c.Layer); err != nil {
		return err
	}
	cc.ramps.dropLayer(c.Layer)
	return nil
}

// CloneLayer duplicates a layer in front of the original.
type CloneLayer struct{ Layer LayerID }

func (c CloneLayer) apply(cc *commandContext) error {
	l, i := cc.model.Environment.Layer(c.Layer)
	if l == nil {
		return fmt.Errorf("%w: layer %d", ErrNotFound, c.Layer)
	}
	cl := l.Clone(cc.model.newLayerID(), cc.model.newEffectID)
	cc.model.Environment.Insert(cl, i+1)
	cc.id = uint32(cl.ID)
	return nil
}

// MoveLayer changes a layer's paint index.
type MoveLayer struct {
	Layer LayerID
	Index int
}

func (c MoveLayer) apply(cc *commandContext) error {
	return cc.model.Environment.Move(c.Layer, c.Index)
}

// SetLayerProps updates transform, opacity, blend, visibility, tiling or
// name. Nil fields are left unchanged.
type SetLayerProps struct {
	Layer LayerID
	Props LayerProps
}

func (c SetLayerProps) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if err := c.Props.Validate(); err != nil {
		return err
	}
	c.Props.apply(l)
	if c.Props.Opacity != nil {
		cc.ramps.cancel(RampTarget{Layer: c.Layer})
	}
	return nil
}

// --- clip commands ---

// ResizeGrid changes a layer's clip grid dimensions.
type ResizeGrid struct {
	Layer      LayerID
	Rows, Cols int
}

func (c ResizeGrid) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	return l.Grid.Resize(c.Rows, c.Cols)
}

// SetGridPolicy sets a layer's default transition.
type SetGridPolicy struct {
	Layer  LayerID
	Policy TransitionPolicy
}

func (c SetGridPolicy) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	l.Grid.Policy = c.Policy
	return nil
}

// AssignClip stores a cell in a layer's grid.
type AssignClip struct {
	Layer    LayerID
	Row, Col int
	Cell     ClipCell
}

func (c AssignClip) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	return l.Grid.Set(c.Row, c.Col, c.Cell)
}

// ClearClip empties a grid cell. A playing clip keeps playing.
type ClearClip struct {
	Layer    LayerID
	Row, Col int
}

func (c ClearClip) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if !l.Grid.Clear(c.Row, c.Col) {
		return fmt.Errorf("%w: cell (%d,%d) on layer %d", ErrNotFound, c.Row, c.Col, c.Layer)
	}
	return nil
}

// TriggerClip starts the clip at (Row, Col). Policy overrides the cell and
// grid policies when set.
type TriggerClip struct {
	Layer    LayerID
	Row, Col int
	Policy   *TransitionPolicy
}

func (c TriggerClip) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	key := CellKey{c.Row, c.Col}
	cell, ok := l.Grid.Get(c.Row, c.Col)
	if !ok {
		return fmt.Errorf("%w: cell (%d,%d) on layer %d", ErrNotFound, c.Row, c.Col, c.Layer)
	}
	policy := l.Grid.PolicyFor(key)
	if c.Policy != nil {
		if err := c.Policy.Validate(); err != nil {
			return err
		}
		policy = *c.Policy
	}
	l.Playback.Trigger(key, cell.Source, policy)
	cc.emit(Event{Kind: EventClipStarted, Layer: l.ID, Cell: key})
	return nil
}

// StopLayer stops playback, immediately or with a fade out in seconds.
type StopLayer struct {
	Layer   LayerID
	FadeOut float64
}

func (c StopLayer) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if !(c.FadeOut >= 0) || !finite(c.FadeOut) {
		return fmt.Errorf("%w: fade out %v", ErrInvalidConfig, c.FadeOut)
	}
	l.Playback.Stop(c.FadeOut)
	if l.Playback.State == Idle {
		cc.emit(Event{Kind: EventLayerStopped, Layer: l.ID})
	}
	return nil
}

// --- effect commands ---

// AddEffect inserts an effect of Type at Index (out of range appends). An
// unregistered type is kept as a pass-through entry.
type AddEffect struct {
	Layer LayerID
	Type  string
	Index int
}

func (c AddEffect) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if c.Type == "" {
		return fmt.Errorf("%w: empty effect type", ErrInvalidConfig)
	}
	if _, ok := cc.registry.Lookup(c.Type); !ok {
		logFn("AddEffect").WithField("type", c.Type).Warn("unregistered effect type kept as pass-through")
	}
	inst := cc.registry.Instantiate(cc.model.newEffectID(), c.Type)
	l.Effects.Insert(inst, c.Index)
	cc.id = uint32(inst.ID)
	return nil
}

// RemoveEffect deletes an effect instance.
type RemoveEffect struct {
	Layer  LayerID
	Effect EffectID
}

func (c RemoveEffect) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	if err := l.Effects.Remove(c.Effect); err != nil {
		return err
	}
	cc.ramps.dropEffect(c.Layer, c.Effect)
	return nil
}

// MoveEffect reorders an effect instance.
type MoveEffect struct {
	Layer  LayerID
	Effect EffectID
	Index  int
}

func (c MoveEffect) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	return l.Effects.Move(c.Effect, c.Index)
}

// SetEffectBypass toggles bypass on an effect instance.
type SetEffectBypass struct {
	Layer    LayerID
	Effect   EffectID
	Bypassed bool
}

func (c SetEffectBypass) apply(cc *commandContext) error {
	_, inst, err := cc.model.Effect(c.Layer, c.Effect)
	if err != nil {
		return err
	}
	inst.Bypassed = c.Bypassed
	return nil
}

// SetEffectSolo toggles solo on an effect instance.
type SetEffectSolo struct {
	Layer  LayerID
	Effect EffectID
	Soloed bool
}

func (c SetEffectSolo) apply(cc *commandContext) error {
	_, inst, err := cc.model.Effect(c.Layer, c.Effect)
	if err != nil {
		return err
	}
	inst.Soloed = c.Soloed
	return nil
}

func findParam(cc *commandContext, lid LayerID, eid EffectID, name string) (*Parameter, error) {
	_, inst, err := cc.model.Effect(lid, eid)
	if err != nil {
		return nil, err
	}
	p, ok := inst.Params.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: parameter %q on effect %d", ErrNotFound, name, eid)
	}
	return p, nil
}

// SetParameter sets an effect parameter's base value.
type SetParameter struct {
	Layer  LayerID
	Effect EffectID
	Name   string
	Value  ParamValue
}

func (c SetParameter) apply(cc *commandContext) error {
	p, err := findParam(cc, c.Layer, c.Effect, c.Name)
	if err != nil {
		return err
	}
	if err := p.Set(c.Value); err != nil {
		return err
	}
	cc.ramps.cancel(RampTarget{Layer: c.Layer, Effect: c.Effect, Param: c.Name})
	return nil
}

// SetAutomation attaches automation to a parameter, or detaches it when
// Automation is nil.
type SetAutomation struct {
	Layer      LayerID
	Effect     EffectID
	Name       string
	Automation *Automation
}

func (c SetAutomation) apply(cc *commandContext) error {
	p, err := findParam(cc, c.Layer, c.Effect, c.Name)
	if err != nil {
		return err
	}
	var a *Automation
	if c.Automation != nil {
		cl := c.Automation.Clone()
		a = &cl
	}
	return p.Automate(a)
}

// RampParameter moves a float parameter to To over Duration seconds.
type RampParameter struct {
	Layer    LayerID
	Effect   EffectID
	Name     string
	To       float64
	Duration float64
	Easing   string
}

func (c RampParameter) apply(cc *commandContext) error {
	p, err := findParam(cc, c.Layer, c.Effect, c.Name)
	if err != nil {
		return err
	}
	if p.Spec.Kind != KindFloat {
		return fmt.Errorf("%w: ramp on %v parameter %q", ErrKindMismatch, p.Spec.Kind, c.Name)
	}
	fn, ok := EasingByName(c.Easing)
	if !ok || !(c.Duration > 0) || !finite(c.Duration) || !finite(c.To) {
		return fmt.Errorf("%w: ramp to %v over %v easing %q", ErrInvalidConfig, c.To, c.Duration, c.Easing)
	}
	to := p.Spec.Range().Clamp(c.To)
	cc.ramps.start(NewRamp(RampTarget{Layer: c.Layer, Effect: c.Effect, Param: c.Name}, p.Value.Float, to, c.Duration, fn))
	return nil
}

// RampLayerOpacity moves a layer's opacity to To over Duration seconds.
type RampLayerOpacity struct {
	Layer    LayerID
	To       float64
	Duration float64
	Easing   string
}

func (c RampLayerOpacity) apply(cc *commandContext) error {
	l, err := cc.model.Layer(c.Layer)
	if err != nil {
		return err
	}
	fn, ok := EasingByName(c.Easing)
	if !ok || !(c.Duration > 0) || !finite(c.Duration) || !(c.To >= 0 && c.To <= 1) {
		return fmt.Errorf("%w: opacity ramp to %v over %v easing %q", ErrInvalidConfig, c.To, c.Duration, c.Easing)
	}
	cc.ramps.start(NewRamp(RampTarget{Layer: c.Layer}, l.Opacity, c.To, c.Duration, fn))
	return nil
}

// SetTempo changes the clock tempo.
type SetTempo struct{ BPM float64 }

func (c SetTempo) apply(cc *commandContext) error {
	if !(c.BPM > 0) || c.BPM > 999 {
		return fmt.Errorf("%w: tempo %v", ErrInvalidConfig, c.BPM)
	}
	cc.clock.Tempo = c.BPM
	return nil
}

// --- screen commands ---

// AddScreen creates a screen with one full-screen slice of the canvas.
type AddScreen struct {
	Name          string
	Device        string
	Width, Height int
}

func (c AddScreen) apply(cc *commandContext) error {
	env := cc.model.Environment
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	id := cc.model.newScreenID()
	sc := NewScreen(id, c.Name, c.Width, c.Height, cc.model.newSliceID(), env.Width, env.Height)
	sc.Device = c.Device
	cc.model.Outputs.Add(sc)
	cc.id = uint32(sc.ID)
	return nil
}

// ScreenProps is a partial screen update. Nil fields are left unchanged.
type ScreenProps struct {
	Name          *string
	Device        *string
	Width, Height *int
	Enabled       *bool
	Color         *ColorCorrection
	Delay         *int
}

// UpdateScreen applies ScreenProps.
type UpdateScreen struct {
	Screen ScreenID
	Props  ScreenProps
}

func (c UpdateScreen) apply(cc *commandContext) error {
	sc, err := cc.model.Outputs.Screen(c.Screen)
	if err != nil {
		return err
	}
	n := *sc
	p := c.Props
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Device != nil {
		n.Device = *p.Device
	}
	if p.Width != nil {
		n.Width = *p.Width
	}
	if p.Height != nil {
		n.Height = *p.Height
	}
	if p.Enabled != nil {
		n.Enabled = *p.Enabled
	}
	if p.Color != nil {
		n.Color = *p.Color
	}
	if p.Delay != nil {
		n.Delay = *p.Delay
	}
	if err := n.Validate(); err != nil {
		return err
	}
	*sc = n
	return nil
}

// RemoveScreen deletes a screen and its slices.
type RemoveScreen struct{ Screen ScreenID }

func (c RemoveScreen) apply(cc *commandContext) error {
	return cc.model.Outputs.Remove(c.Screen)
}

// AddSlice appends a full-screen slice of the canvas at Index.
type AddSlice struct {
	Screen ScreenID
	Name   string
	Index  int
}

func (c AddSlice) apply(cc *commandContext) error {
	sc, err := cc.model.Outputs.Screen(c.Screen)
	if err != nil {
		return err
	}
	env := cc.model.Environment
	s := NewSlice(cc.model.newSliceID(), c.Name,
		Rect{0, 0, float64(env.Width), float64(env.Height)},
		Rect{0, 0, float64(sc.Width), float64(sc.Height)})
	sc.InsertSlice(s, c.Index)
	cc.id = uint32(s.ID)
	return nil
}

// RemoveSlice deletes a slice. The last slice of a screen is cleared
// instead.
type RemoveSlice struct {
	Screen ScreenID
	Slice  SliceID
}

func (c RemoveSlice) apply(cc *commandContext) error {
	sc, err := cc.model.Outputs.Screen(c.Screen)
	if err != nil {
		return err
	}
	err = sc.RemoveSlice(c.Slice)
	if errors.Is(err, ErrLastSlice) {
		env := cc.model.Environment
		return sc.ClearSlice(c.Slice, env.Width, env.Height)
	}
	return err
}

// MoveSlice reorders a slice within its screen.
type MoveSlice struct {
	Screen ScreenID
	Slice  SliceID
	Index  int
}

func (c MoveSlice) apply(cc *commandContext) error {
	sc, err := cc.model.Outputs.Screen(c.Screen)
	if err != nil {
		return err
	}
	return sc.MoveSlice(c.Slice, c.Index)
}

// SetSliceInput selects the slice input and, when Rect is set, its crop.
type SetSliceInput struct {
	Screen ScreenID
	Slice  SliceID
	Input  InputSource
	Rect   *Rect
}

func (c SetSliceInput) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Input = c.Input
		if c.Rect != nil {
			s.InputRect = *c.Rect
		}
		return nil
	})
}

// SetSliceOutput places the slice on its screen.
type SetSliceOutput struct {
	Screen ScreenID
	Slice  SliceID
	Output OutputRect
}

func (c SetSliceOutput) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Output = c.Output
		return nil
	})
}

// SetSliceShape makes the slice polygonal, or rectangular when Polygon is
// nil.
type SetSliceShape struct {
	Screen  ScreenID
	Slice   SliceID
	Polygon []Vec2
}

func (c SetSliceShape) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Polygon = append([]Vec2(nil), c.Polygon...)
		if len(c.Polygon) == 0 {
			s.Polygon = nil
		}
		return nil
	})
}

// SetSliceFlags updates the name and boolean flags of a slice.
type SetSliceFlags struct {
	Screen          ScreenID
	Slice           SliceID
	Name            *string
	Enabled         *bool
	IsKey           *bool
	BlackBackground *bool
}

func (c SetSliceFlags) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		if c.Name != nil {
			s.Name = *c.Name
		}
		if c.Enabled != nil {
			s.Enabled = *c.Enabled
		}
		if c.IsKey != nil {
			s.IsKey = *c.IsKey
		}
		if c.BlackBackground != nil {
			s.BlackBackground = *c.BlackBackground
		}
		return nil
	})
}

// SetPerspective sets or, with nil, removes the 4-corner warp.
type SetPerspective struct {
	Screen      ScreenID
	Slice       SliceID
	Perspective *Perspective
}

func (c SetPerspective) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Perspective = nil
		if c.Perspective != nil {
			p := *c.Perspective
			s.Perspective = &p
		}
		return nil
	})
}

// SetWarpMesh gives the slice a Columns x Rows mesh. An existing mesh is
// resampled so the warp shape is kept; zero dimensions remove the mesh.
type SetWarpMesh struct {
	Screen        ScreenID
	Slice         SliceID
	Columns, Rows int
}

func (c SetWarpMesh) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		if c.Columns == 0 && c.Rows == 0 {
			s.Mesh = nil
			return nil
		}
		var (
			m   *WarpMesh
			err error
		)
		if s.Mesh != nil {
			m, err = s.Mesh.Resample(c.Columns, c.Rows)
		} else {
			m, err = NewWarpMesh(c.Columns, c.Rows)
		}
		if err != nil {
			return err
		}
		s.Mesh = m
		return nil
	})
}

// SetWarpPoint moves one mesh point. Smooth and the tangents are changed
// only when set.
type SetWarpPoint struct {
	Screen   ScreenID
	Slice    SliceID
	Col, Row int
	Pos      Vec2
	Smooth   *bool
	TangentU *Vec2
	TangentV *Vec2
}

func (c SetWarpPoint) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		if s.Mesh == nil {
			return fmt.Errorf("%w: slice %d has no warp mesh", ErrNotFound, s.ID)
		}
		p, err := s.Mesh.Point(c.Col, c.Row)
		if err != nil {
			return err
		}
		p.Pos = c.Pos
		if c.Smooth != nil {
			p.Smooth = *c.Smooth
		}
		if c.TangentU != nil {
			p.TangentU = *c.TangentU
		}
		if c.TangentV != nil {
			p.TangentV = *c.TangentV
		}
		return nil
	})
}

// ResetWarp returns the mesh to identity and the perspective to the
// identity quad.
type ResetWarp struct {
	Screen ScreenID
	Slice  SliceID
}

func (c ResetWarp) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		if s.Mesh != nil {
			s.Mesh.Reset()
		}
		if s.Perspective != nil {
			p := IdentityPerspective
			s.Perspective = &p
		}
		return nil
	})
}

// Edge names one side of a slice.
type Edge uint8

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// SetEdgeBlend replaces the whole edge blend config.
type SetEdgeBlend struct {
	Screen    ScreenID
	Slice     SliceID
	EdgeBlend EdgeBlend
}

func (c SetEdgeBlend) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.EdgeBlend = c.EdgeBlend
		return nil
	})
}

// SetEdgeBlendRegion replaces one edge of the blend config.
type SetEdgeBlendRegion struct {
	Screen ScreenID
	Slice  SliceID
	Edge   Edge
	Region EdgeBlendRegion
}

func (c SetEdgeBlendRegion) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		switch c.Edge {
		case EdgeLeft:
			s.EdgeBlend.Left = c.Region
		case EdgeRight:
			s.EdgeBlend.Right = c.Region
		case EdgeTop:
			s.EdgeBlend.Top = c.Region
		case EdgeBottom:
			s.EdgeBlend.Bottom = c.Region
		default:
			return fmt.Errorf("%w: edge %d", ErrInvalidConfig, c.Edge)
		}
		return nil
	})
}

// SetMask sets or, with nil, removes the slice mask.
type SetMask struct {
	Screen ScreenID
	Slice  SliceID
	Mask   *SliceMask
}

func (c SetMask) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Mask = nil
		if c.Mask != nil {
			s.Mask = c.Mask.Clone()
		}
		return nil
	})
}

// SetSliceColor sets the slice color correction.
type SetSliceColor struct {
	Screen ScreenID
	Slice  SliceID
	Color  ColorCorrection
}

func (c SetSliceColor) apply(cc *commandContext) error {
	return cc.editSlice(c.Screen, c.Slice, func(s *Slice) error {
		s.Color = c.Color
		return nil
	})
}

// --- model commands ---

// LoadSnapshot replaces the whole model with a restored snapshot.
type LoadSnapshot struct{ Data []byte }

func (c LoadSnapshot) apply(cc *commandContext) error {
	m, err := Restore(c.Data)
	if err != nil {
		return err
	}
	*cc.model = *m
	cc.ramps.reset()
	cc.reloaded = true
	return nil
}
