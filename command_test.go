package prism

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness applies commands the way the engine's drain step does.
type harness struct {
	model  *Model
	reg    *EffectRegistry
	clock  *Clock
	ramps  rampSet
	events []Event
}

func newHarness() *harness {
	return &harness{model: NewModel(1920, 1080), reg: NewDefaultRegistry(), clock: NewClock(120, 0)}
}

func (h *harness) do(cmd Command) (uint32, error) {
	cc := commandContext{model: h.model, registry: h.reg, clock: h.clock, ramps: &h.ramps}
	err := cmd.apply(&cc)
	if err == nil {
		h.events = append(h.events, cc.events...)
	}
	return cc.id, err
}

func (h *harness) must(t *testing.T, cmd Command) uint32 {
	t.Helper()
	id, err := h.do(cmd)
	require.NoError(t, err, "%T", cmd)
	return id
}

func (h *harness) snapshot(t *testing.T) string {
	t.Helper()
	data, err := h.model.Snapshot()
	require.NoError(t, err)
	return string(data)
}

func TestCommandIDsAreUniqueAcrossKinds(t *testing.T) {
	h := newHarness()
	l := h.must(t, AddLayer{Name: "a"})
	e := h.must(t, AddEffect{Layer: LayerID(l), Type: "blur"})
	sc := h.must(t, AddScreen{Name: "main", Width: 640, Height: 480})
	s := h.must(t, AddSlice{Screen: ScreenID(sc), Name: "two", Index: -1})
	seen := map[uint32]bool{}
	for _, id := range []uint32{l, e, sc, s} {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	// AddScreen also created the first slice.
	screen, err := h.model.Outputs.Screen(ScreenID(sc))
	require.NoError(t, err)
	require.Len(t, screen.Slices, 2)
	assert.Equal(t, "Slice 1", screen.Slices[0].Name)
	assert.Equal(t, Rect{0, 0, 1920, 1080}, screen.Slices[0].InputRect)
}

func TestLayerCommands(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a", Index: -1}))
	b := LayerID(h.must(t, AddLayer{Name: "b", Index: -1}))
	c := LayerID(h.must(t, CloneLayer{Layer: a}))
	assert.Equal(t, []LayerID{a, c, b}, layerIDs(h.model.Environment))

	h.must(t, MoveLayer{Layer: b, Index: 0})
	assert.Equal(t, []LayerID{b, a, c}, layerIDs(h.model.Environment))

	h.must(t, RemoveLayer{Layer: c})
	_, err := h.do(RemoveLayer{Layer: c})
	assert.ErrorIs(t, err, ErrNotFound)

	op := 0.25
	h.must(t, SetLayerProps{Layer: a, Props: LayerProps{Opacity: &op}})
	l, _ := h.model.Layer(a)
	assert.Equal(t, 0.25, l.Opacity)
}

func TestRejectedCommandLeavesModelUntouched(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	sc := ScreenID(h.must(t, AddScreen{Name: "main", Width: 640, Height: 480}))
	screen, _ := h.model.Outputs.Screen(sc)
	slice := screen.Slices[0].ID
	h.must(t, SetSliceShape{Screen: sc, Slice: slice, Polygon: []Vec2{{0, 0}, {1, 0}, {0, 1}}})
	h.must(t, SetWarpMesh{Screen: sc, Slice: slice, Columns: 3, Rows: 3})
	before := h.snapshot(t)

	bad := 2.0
	name := "renamed"
	rejected := []Command{
		SetLayerProps{Layer: a, Props: LayerProps{Name: &name, Opacity: &bad}},
		SetPerspective{Screen: sc, Slice: slice, Perspective: &IdentityPerspective},
		SetWarpPoint{Screen: sc, Slice: slice, Col: 5, Row: 0, Pos: Vec2{0.5, 0.5}},
		SetWarpPoint{Screen: sc, Slice: slice, Col: 1, Row: 1, Pos: Vec2{0.5, math.NaN()}},
		SetEdgeBlendRegion{Screen: sc, Slice: slice, Edge: EdgeLeft, Region: EdgeBlendRegion{Enabled: true, Width: 0.9, Gamma: 1}},
		SetMask{Screen: sc, Slice: slice, Mask: &SliceMask{Shape: MaskShape{Kind: MaskEllipse}, Enabled: true}},
		SetSliceOutput{Screen: sc, Slice: slice, Output: OutputRect{Rect: Rect{0, 0, 0, 10}}},
		SetSliceColor{Screen: sc, Slice: slice, Color: ColorCorrection{}},
		UpdateScreen{Screen: sc, Props: ScreenProps{Name: &name, Delay: ptr(MaxOutputDelay + 1)}},
		AddScreen{Width: 0, Height: 10},
		SetTempo{BPM: 0},
		TriggerClip{Layer: a, Row: 0, Col: 0},
		ResizeGrid{Layer: a, Rows: 0, Cols: 4},
		AssignClip{Layer: a, Row: 10, Col: 0, Cell: ClipCell{Source: srcA}},
		AddEffect{Layer: a, Type: ""},
		LoadSnapshot{Data: []byte("not json")},
	}
	for _, cmd := range rejected {
		_, err := h.do(cmd)
		assert.Error(t, err, "%T should be rejected", cmd)
	}
	assert.Equal(t, before, h.snapshot(t))
}

func ptr[T any](v T) *T { return &v }

func TestClipCommands(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	h.must(t, AssignClip{Layer: a, Row: 0, Col: 1, Cell: ClipCell{Source: srcA}})
	h.must(t, SetGridPolicy{Layer: a, Policy: TransitionPolicy{Kind: TransitionCrossfade, Duration: 1}})
	h.must(t, TriggerClip{Layer: a, Row: 0, Col: 1})

	l, _ := h.model.Layer(a)
	assert.Equal(t, Transitioning, l.Playback.State, "grid policy crossfades in from idle")
	require.Len(t, h.events, 1)
	assert.Equal(t, EventClipStarted, h.events[0].Kind)
	assert.Equal(t, CellKey{0, 1}, h.events[0].Cell)

	h.must(t, TriggerClip{Layer: a, Row: 0, Col: 1, Policy: &Cut})
	assert.Equal(t, Playing, l.Playback.State)
	_, err := h.do(TriggerClip{Layer: a, Row: 0, Col: 1, Policy: &TransitionPolicy{Kind: TransitionCrossfade, Duration: math.NaN()}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// Clearing the cell keeps the clip playing.
	h.must(t, ClearClip{Layer: a, Row: 0, Col: 1})
	assert.Equal(t, Playing, l.Playback.State)
	_, err = h.do(ClearClip{Layer: a, Row: 0, Col: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	h.must(t, StopLayer{Layer: a})
	assert.Equal(t, Idle, l.Playback.State)
	assert.Equal(t, EventLayerStopped, h.events[len(h.events)-1].Kind)
}

func TestEffectCommands(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	blur := EffectID(h.must(t, AddEffect{Layer: a, Type: "blur", Index: -1}))
	inv := EffectID(h.must(t, AddEffect{Layer: a, Type: "invert", Index: -1}))
	unknown := EffectID(h.must(t, AddEffect{Layer: a, Type: "glitch", Index: 0}))

	l, _ := h.model.Layer(a)
	assert.Equal(t, []EffectID{unknown, blur, inv},
		[]EffectID{l.Effects.Instances[0].ID, l.Effects.Instances[1].ID, l.Effects.Instances[2].ID})

	h.must(t, MoveEffect{Layer: a, Effect: unknown, Index: 99})
	assert.Equal(t, unknown, l.Effects.Instances[2].ID)

	h.must(t, SetEffectBypass{Layer: a, Effect: blur, Bypassed: true})
	h.must(t, SetEffectSolo{Layer: a, Effect: inv, Soloed: true})
	inst, _ := l.Effects.Find(blur)
	assert.True(t, inst.Bypassed)

	h.must(t, SetParameter{Layer: a, Effect: blur, Name: "radius", Value: IntValue(5)})
	_, err := h.do(SetParameter{Layer: a, Effect: blur, Name: "radius", Value: FloatValue(5)})
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = h.do(SetParameter{Layer: a, Effect: blur, Name: "sigma", Value: FloatValue(5)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.do(RampParameter{Layer: a, Effect: blur, Name: "radius", To: 1, Duration: 1})
	assert.ErrorIs(t, err, ErrKindMismatch)

	h.must(t, SetAutomation{Layer: a, Effect: inv, Name: "amount",
		Automation: &Automation{Kind: AutomationLFO, Depth: 0.5, LFO: &LFO{Waveform: WaveSine, Beats: 1}}})
	inst, _ = l.Effects.Find(inv)
	assert.NotNil(t, inst.Params[0].Automation)
	h.must(t, SetAutomation{Layer: a, Effect: inv, Name: "amount"})
	assert.Nil(t, inst.Params[0].Automation)

	h.must(t, RemoveEffect{Layer: a, Effect: blur})
	_, err = h.do(SetEffectBypass{Layer: a, Effect: blur})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRampCommands(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	inv := EffectID(h.must(t, AddEffect{Layer: a, Type: "invert"}))

	h.must(t, RampParameter{Layer: a, Effect: inv, Name: "amount", To: 0, Duration: 2})
	h.must(t, RampLayerOpacity{Layer: a, To: 0, Duration: 1, Easing: "out-quad"})
	assert.Equal(t, 2, h.ramps.len())

	// An explicit set cancels the ramp on the same target.
	h.must(t, SetParameter{Layer: a, Effect: inv, Name: "amount", Value: FloatValue(0.5)})
	assert.Equal(t, 1, h.ramps.len())

	_, err := h.do(RampLayerOpacity{Layer: a, To: 0.5, Duration: 1, Easing: "wobble"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = h.do(RampLayerOpacity{Layer: a, To: 0.5, Duration: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = h.do(RampLayerOpacity{Layer: a, To: math.NaN(), Duration: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = h.do(RampParameter{Layer: a, Effect: inv, Name: "amount", To: math.NaN(), Duration: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = h.do(RampParameter{Layer: a, Effect: inv, Name: "amount", To: 1, Duration: math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = h.do(StopLayer{Layer: a, FadeOut: math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	h.must(t, RemoveLayer{Layer: a})
	assert.Equal(t, 0, h.ramps.len())
}

func TestScreenCommands(t *testing.T) {
	h := newHarness()
	sc := ScreenID(h.must(t, AddScreen{Name: "main", Device: "hdmi-1", Width: 1280, Height: 720}))
	screen, _ := h.model.Outputs.Screen(sc)
	assert.Equal(t, "hdmi-1", screen.Device)

	off := false
	delay := 12
	h.must(t, UpdateScreen{Screen: sc, Props: ScreenProps{Enabled: &off, Delay: &delay}})
	assert.False(t, screen.Enabled)
	assert.Equal(t, 12, screen.Delay)

	h.must(t, RemoveScreen{Screen: sc})
	assert.Empty(t, h.model.Outputs.Screens)
	_, err := h.do(RemoveScreen{Screen: sc})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSliceCommands(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	sc := ScreenID(h.must(t, AddScreen{Name: "main", Width: 1280, Height: 720}))
	screen, _ := h.model.Outputs.Screen(sc)
	first := screen.Slices[0].ID
	second := SliceID(h.must(t, AddSlice{Screen: sc, Name: "b", Index: 0}))
	assert.Equal(t, second, screen.Slices[0].ID)

	h.must(t, MoveSlice{Screen: sc, Slice: second, Index: 1})
	assert.Equal(t, first, screen.Slices[0].ID)

	crop := Rect{0, 0, 960, 540}
	h.must(t, SetSliceInput{Screen: sc, Slice: second, Input: LayerInput(a), Rect: &crop})
	_, s, _ := h.model.Outputs.Slice(sc, second)
	assert.Equal(t, LayerInput(a), s.Input)
	assert.Equal(t, crop, s.InputRect)

	key := true
	h.must(t, SetSliceFlags{Screen: sc, Slice: second, IsKey: &key})
	_, s, _ = h.model.Outputs.Slice(sc, second)
	assert.True(t, s.IsKey)

	h.must(t, SetPerspective{Screen: sc, Slice: second, Perspective: &Perspective{Corners: [4]Vec2{{0.1, 0}, {1, 0}, {1, 1}, {0, 1}}}})
	h.must(t, SetEdgeBlend{Screen: sc, Slice: second, EdgeBlend: EdgeBlend{
		Left: EdgeBlendRegion{Enabled: true, Width: 0.1, Gamma: 2}, Right: EdgeBlendRegion{Gamma: 1},
		Top: EdgeBlendRegion{Gamma: 1}, Bottom: EdgeBlendRegion{Gamma: 1},
	}})
	h.must(t, SetMask{Screen: sc, Slice: second, Mask: &SliceMask{
		Shape: MaskShape{Kind: MaskEllipse, Bounds: Rect{0, 0, 1, 1}}, Feather: 8, Enabled: true,
	}})
	cc := IdentityColorCorrection
	cc.Brightness = 0.1
	h.must(t, SetSliceColor{Screen: sc, Slice: second, Color: cc})
	_, s, _ = h.model.Outputs.Slice(sc, second)
	assert.NotNil(t, s.Perspective)
	assert.True(t, s.EdgeBlend.Left.Enabled)
	assert.Equal(t, 8.0, s.Mask.Feather)
	assert.Equal(t, 0.1, s.Color.Brightness)

	h.must(t, SetMask{Screen: sc, Slice: second})
	_, s, _ = h.model.Outputs.Slice(sc, second)
	assert.Nil(t, s.Mask)

	h.must(t, RemoveSlice{Screen: sc, Slice: second})
	require.Len(t, screen.Slices, 1)

	// The last slice is cleared instead of removed.
	h.must(t, SetSliceOutput{Screen: sc, Slice: first, Output: OutputRect{Rect: Rect{10, 10, 100, 100}, FlipX: true}})
	h.must(t, RemoveSlice{Screen: sc, Slice: first})
	require.Len(t, screen.Slices, 1)
	assert.Equal(t, first, screen.Slices[0].ID)
	assert.Equal(t, OutputRect{Rect: Rect{0, 0, 1280, 720}}, screen.Slices[0].Output)
}

func TestSliceCommandsRejectNonFinite(t *testing.T) {
	h := newHarness()
	sc := ScreenID(h.must(t, AddScreen{Name: "main", Width: 1280, Height: 720}))
	screen, _ := h.model.Outputs.Screen(sc)
	id := screen.Slices[0].ID
	h.must(t, SetWarpMesh{Screen: sc, Slice: id, Columns: 2, Rows: 2})
	before := h.snapshot(t)

	nan := math.NaN()
	cc := IdentityColorCorrection
	cc.Brightness = nan
	tangent := Vec2{nan, 0}
	cmds := []Command{
		SetSliceColor{Screen: sc, Slice: id, Color: cc},
		SetEdgeBlendRegion{Screen: sc, Slice: id, Edge: EdgeLeft, Region: EdgeBlendRegion{Enabled: true, Width: nan, Gamma: 1}},
		SetSliceOutput{Screen: sc, Slice: id, Output: OutputRect{Rect: Rect{0, 0, 1280, 720}, Rotation: nan}},
		SetSliceInput{Screen: sc, Slice: id, Input: Composition, Rect: &Rect{nan, 0, 10, 10}},
		SetWarpPoint{Screen: sc, Slice: id, Col: 1, Row: 1, Pos: Vec2{1, 1}, TangentU: &tangent},
	}
	for _, cmd := range cmds {
		_, err := h.do(cmd)
		assert.Error(t, err, "%T", cmd)
	}
	// The snapshot still encodes, unchanged.
	assert.Equal(t, before, h.snapshot(t))
}

func TestWarpCommands(t *testing.T) {
	h := newHarness()
	sc := ScreenID(h.must(t, AddScreen{Name: "main", Width: 1280, Height: 720}))
	screen, _ := h.model.Outputs.Screen(sc)
	id := screen.Slices[0].ID

	h.must(t, SetWarpMesh{Screen: sc, Slice: id, Columns: 2, Rows: 2})
	smooth := true
	h.must(t, SetWarpPoint{Screen: sc, Slice: id, Col: 1, Row: 0, Pos: Vec2{0.9, 0.1}, Smooth: &smooth})
	_, s, _ := h.model.Outputs.Slice(sc, id)
	p, _ := s.Mesh.Point(1, 0)
	assert.Equal(t, Vec2{0.9, 0.1}, p.Pos)
	assert.True(t, p.Smooth)

	// Resizing keeps the warped corner in place.
	h.must(t, SetWarpMesh{Screen: sc, Slice: id, Columns: 4, Rows: 3})
	_, s, _ = h.model.Outputs.Slice(sc, id)
	require.Equal(t, 4, s.Mesh.Columns)
	p, _ = s.Mesh.Point(3, 0)
	assert.InDelta(t, 0.9, p.Pos.X, 1e-9)
	assert.InDelta(t, 0.1, p.Pos.Y, 1e-9)

	_, err := h.do(SetWarpMesh{Screen: sc, Slice: id, Columns: 1, Rows: 3})
	assert.ErrorIs(t, err, ErrInvalidMesh)

	h.must(t, ResetWarp{Screen: sc, Slice: id})
	_, s, _ = h.model.Outputs.Slice(sc, id)
	assert.True(t, s.Mesh.IsIdentity())

	h.must(t, SetWarpMesh{Screen: sc, Slice: id})
	_, s, _ = h.model.Outputs.Slice(sc, id)
	assert.Nil(t, s.Mesh)

	_, err = h.do(SetWarpPoint{Screen: sc, Slice: id, Col: 0, Row: 0})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSnapshotCommand(t *testing.T) {
	h := newHarness()
	a := LayerID(h.must(t, AddLayer{Name: "a"}))
	h.must(t, RampLayerOpacity{Layer: a, To: 0, Duration: 1})

	data, err := richModel(t).Snapshot()
	require.NoError(t, err)
	h.must(t, LoadSnapshot{Data: data})
	assert.Len(t, h.model.Environment.Layers, 2)
	assert.Equal(t, "background", h.model.Environment.Layers[0].Name)
	assert.Equal(t, 0, h.ramps.len())
}

func TestSetTempo(t *testing.T) {
	h := newHarness()
	h.must(t, SetTempo{BPM: 128})
	assert.Equal(t, 128.0, h.clock.Tempo)
	_, err := h.do(SetTempo{BPM: 1000})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCommandQueue(t *testing.T) {
	q := NewCommandQueue(2)
	q.Submit(AddLayer{})
	q.Submit(AddLayer{})
	r := <-q.Submit(AddLayer{})
	assert.ErrorIs(t, r.Err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())

	assert.Len(t, q.drain(), 2)
	assert.Equal(t, 0, q.Len())

	pending := q.Submit(AddLayer{})
	q.close()
	assert.ErrorIs(t, (<-pending).Err, ErrEngineClosed)
	assert.ErrorIs(t, (<-q.Submit(AddLayer{})).Err, ErrEngineClosed)
}

func TestCommandQueueDoHonorsContext(t *testing.T) {
	q := NewCommandQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Do(ctx, AddLayer{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
