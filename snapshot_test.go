package prism

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// richModel builds a model exercising layers, effects, automation, clip
// grids, warps, masks and edge blends.
func richModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel(1920, 1080)
	reg := NewDefaultRegistry()

	bg := NewLayer(m.newLayerID(), "background")
	require.NoError(t, bg.Grid.Set(0, 0, ClipCell{Name: "bars", Source: srcB}))
	blur := reg.Instantiate(m.newEffectID(), "blur")
	bg.Effects.Insert(blur, -1)
	bg.Playback.Trigger(CellKey{0, 0}, srcB, Cut)

	fg := NewLayer(m.newLayerID(), "overlay")
	fg.Blend = BlendScreen
	fg.Opacity = 0.5
	fg.Transform.Rotation = 0.25
	fade := TransitionPolicy{Kind: TransitionCrossfade, Duration: 1.5, Easing: "in-out-quad"}
	require.NoError(t, fg.Grid.Set(1, 2, ClipCell{Source: ClipSource{Kind: SourceStill, URI: "logo.png"}, Transition: &fade}))
	adj := reg.Instantiate(m.newEffectID(), "color-adjust")
	p, _ := adj.Params.Find("brightness")
	require.NoError(t, p.Automate(&Automation{Kind: AutomationLFO, Depth: 0.5, LFO: &LFO{Waveform: WaveTriangle, Beats: 4}}))
	fg.Effects.Insert(adj, -1)
	fg.Effects.Insert(reg.Instantiate(m.newEffectID(), "mirror"), -1)
	m.Environment.Insert(bg, -1)
	m.Environment.Insert(fg, -1)

	sc := NewScreen(m.newScreenID(), "projector", 1280, 800, m.newSliceID(), 1920, 1080)
	sc.Delay = 3
	warped := sc.Slices[0]
	warped.Mesh, _ = NewWarpMesh(3, 3)
	warped.Mesh.Points[4].Pos = Vec2{0.55, 0.45}
	warped.Mesh.Points[4].Smooth = true
	warped.EdgeBlend.Right = EdgeBlendRegion{Enabled: true, Width: 0.2, Gamma: 2.2}

	masked := NewSlice(m.newSliceID(), "logo", Rect{0, 0, 960, 540}, Rect{640, 0, 640, 400})
	masked.Input = LayerInput(fg.ID)
	masked.Mask = &SliceMask{
		Shape:   MaskShape{Kind: MaskPolygon, Points: []Vec2{{0.1, 0.1}, {0.9, 0.2}, {0.5, 0.9}}},
		Feather: 4,
		Enabled: true,
	}
	masked.Output.Rotation = 0.1
	masked.Color.Gamma = 1.2
	sc.InsertSlice(masked, -1)
	m.Outputs.Add(sc)
	require.NoError(t, m.Validate())
	return m
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := richModel(t)
	data, err := m.Snapshot()
	require.NoError(t, err)

	r, err := Restore(data)
	require.NoError(t, err)

	again, err := r.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))

	assert.Equal(t, m.NextID, r.NextID)
	require.Len(t, r.Environment.Layers, 2)
	fg := r.Environment.Layers[1]
	assert.Equal(t, BlendScreen, fg.Blend)
	require.Len(t, fg.Effects.Instances, 2)
	p, ok := fg.Effects.Instances[0].Params.Find("brightness")
	require.True(t, ok)
	require.NotNil(t, p.Automation)
	assert.Equal(t, WaveTriangle, p.Automation.LFO.Waveform)

	cell, ok := fg.Grid.Get(1, 2)
	require.True(t, ok)
	require.NotNil(t, cell.Transition)
	assert.Equal(t, TransitionCrossfade, cell.Transition.Kind)

	assert.Equal(t, Playing, r.Environment.Layers[0].Playback.State)

	sc := r.Outputs.Screens[0]
	require.Len(t, sc.Slices, 2)
	assert.Equal(t, Vec2{0.55, 0.45}, sc.Slices[0].Mesh.Points[4].Pos)
	assert.Equal(t, 2.2, sc.Slices[0].EdgeBlend.Right.Gamma)
	assert.Equal(t, LayerInput(fg.ID), sc.Slices[1].Input)
	assert.Equal(t, 4.0, sc.Slices[1].Mask.Feather)
	assert.Equal(t, 3, sc.Delay)
}

func TestRestoreRejectsInvalid(t *testing.T) {
	_, err := Restore([]byte("{"))
	assert.Error(t, err)

	_, err = Restore([]byte(`{"version": 99, "model": {}}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Restore([]byte(`{"version": 1}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRestoreRejectsDuplicateIDs(t *testing.T) {
	m := richModel(t)
	m.Outputs.Screens[0].Slices[1].ID = m.Outputs.Screens[0].Slices[0].ID
	data, err := m.Snapshot()
	require.NoError(t, err)
	_, err = Restore(data)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRestoreRejectsBadSlice(t *testing.T) {
	m := richModel(t)
	data, err := m.Snapshot()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	outputs := doc["model"].(map[string]any)["outputs"].(map[string]any)
	slice := outputs["screens"].([]any)[0].(map[string]any)["slices"].([]any)[0].(map[string]any)
	slice["input_rect"] = map[string]any{"x": 0, "y": 0, "width": 0, "height": 10}
	data, err = json.Marshal(doc)
	require.NoError(t, err)

	_, err = Restore(data)
	assert.ErrorIs(t, err, ErrZeroArea)
}

func TestModelCloneIsDeep(t *testing.T) {
	m := richModel(t)
	c := m.Clone()
	c.Environment.Layers[0].Name = "changed"
	c.Outputs.Screens[0].Slices[1].Mask.Shape.Points[0] = Vec2{}
	assert.Equal(t, "background", m.Environment.Layers[0].Name)
	assert.Equal(t, Vec2{0.1, 0.1}, m.Outputs.Screens[0].Slices[1].Mask.Shape.Points[0])
	assert.Equal(t, m.NextID, c.NextID)
}
