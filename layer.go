package prism

import (
	"fmt"
	"math"
)

// Default clip grid dimensions of a new layer.
const (
	DefaultGridRows    = 4
	DefaultGridColumns = 8
)

// Tiling repeats a layer's frame X times horizontally and Y times vertically
// inside its placement. {1, 1} is no tiling.
type Tiling struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Layer is an independently transformable video slot of the Environment.
type Layer struct {
	ID        LayerID     `json:"id"`
	Name      string      `json:"name"`
	Transform Transform2D `json:"transform"`
	Opacity   float64     `json:"opacity"`
	Blend     BlendMode   `json:"blend"`
	Visible   bool        `json:"visible"`
	Tiling    Tiling      `json:"tiling"`
	Grid      *ClipGrid   `json:"grid"`
	Playback  Playback    `json:"playback"`
	Effects   EffectStack `json:"effects"`
}

// NewLayer returns a visible, fully opaque layer with an empty grid.
func NewLayer(id LayerID, name string) *Layer {
	return &Layer{
		ID:        id,
		Name:      name,
		Transform: IdentityTransform2D,
		Opacity:   1,
		Visible:   true,
		Tiling:    Tiling{1, 1},
		Grid:      NewClipGrid(DefaultGridRows, DefaultGridColumns),
	}
}

// Renders reports whether the layer takes part in the main composite.
func (l *Layer) Renders() bool {
	return l.Visible && l.Opacity > 0 && l.Playback.State != Idle
}

// Clone duplicates every field except ids: the layer gets layerID and each
// effect instance an id from effectID.
func (l *Layer) Clone(layerID LayerID, effectID func() EffectID) *Layer {
	c := *l
	c.ID = layerID
	c.Grid = l.Grid.Clone()
	c.Playback = l.Playback.Clone()
	c.Effects = l.Effects.Clone(effectID)
	return &c
}

// LayerProps is a partial update of layer properties. Nil fields are left
// unchanged.
type LayerProps struct {
	Name      *string      `json:"name,omitempty"`
	Transform *Transform2D `json:"transform,omitempty"`
	Opacity   *float64     `json:"opacity,omitempty"`
	Blend     *BlendMode   `json:"blend,omitempty"`
	Visible   *bool        `json:"visible,omitempty"`
	Tiling    *Tiling      `json:"tiling,omitempty"`
}

// Validate checks every set field.
func (p LayerProps) Validate() error {
	if p.Opacity != nil && !(*p.Opacity >= 0 && *p.Opacity <= 1) {
		return fmt.Errorf("%w: opacity %v", ErrInvalidConfig, *p.Opacity)
	}
	if p.Blend != nil && !p.Blend.Valid() {
		return fmt.Errorf("%w: blend mode %d", ErrInvalidConfig, *p.Blend)
	}
	if p.Tiling != nil && (p.Tiling.X < 1 || p.Tiling.Y < 1) {
		return fmt.Errorf("%w: tiling %dx%d", ErrInvalidConfig, p.Tiling.X, p.Tiling.Y)
	}
	if t := p.Transform; t != nil {
		for _, v := range []float64{t.Position.X, t.Position.Y, t.Scale.X, t.Scale.Y, t.Rotation, t.Anchor.X, t.Anchor.Y} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: transform %+v", ErrInvalidConfig, *t)
			}
		}
	}
	return nil
}

// apply writes the set fields into l. Call Validate first.
func (p LayerProps) apply(l *Layer) {
	if p.Name != nil {
		l.Name = *p.Name
	}
	if p.Transform != nil {
		l.Transform = *p.Transform
	}
	if p.Opacity != nil {
		l.Opacity = *p.Opacity
	}
	if p.Blend != nil {
		l.Blend = *p.Blend
	}
	if p.Visible != nil {
		l.Visible = *p.Visible
	}
	if p.Tiling != nil {
		l.Tiling = *p.Tiling
	}
}
