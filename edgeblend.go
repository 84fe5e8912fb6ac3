package prism

import (
	"fmt"
	"math"
)

// EdgeBlendRegion is the soft edge along one side of a slice. Width is a
// fraction of the slice size in [0, 0.5]; Gamma shapes the falloff.
type EdgeBlendRegion struct {
	Enabled bool    `json:"enabled"`
	Width   float64 `json:"width"`
	Gamma   float64 `json:"gamma"`
}

// factor returns the attenuation at distance d (normalized) from the edge.
func (r EdgeBlendRegion) factor(d float64) float64 {
	if !r.Enabled || r.Width <= 0 || d >= r.Width {
		return 1
	}
	if d <= 0 {
		return 0
	}
	return math.Pow(d/r.Width, r.Gamma)
}

func (r EdgeBlendRegion) contains(d float64) bool {
	return r.Enabled && r.Width > 0 && d < r.Width
}

// EdgeBlend configures the four soft edges of a slice.
type EdgeBlend struct {
	Left   EdgeBlendRegion `json:"left"`
	Right  EdgeBlendRegion `json:"right"`
	Top    EdgeBlendRegion `json:"top"`
	Bottom EdgeBlendRegion `json:"bottom"`
	// BlackLevel lifts black outside every blend region by this amount so
	// that it matches the doubled black of an overlap.
	BlackLevel float64 `json:"black_level"`
}

// DefaultEdgeBlend has every edge disabled with gamma 1.
var DefaultEdgeBlend = EdgeBlend{
	Left:   EdgeBlendRegion{Gamma: 1},
	Right:  EdgeBlendRegion{Gamma: 1},
	Top:    EdgeBlendRegion{Gamma: 1},
	Bottom: EdgeBlendRegion{Gamma: 1},
}

func (e EdgeBlend) regions() [4]EdgeBlendRegion {
	return [4]EdgeBlendRegion{e.Left, e.Right, e.Top, e.Bottom}
}

// Validate checks widths, gammas and the black level.
func (e EdgeBlend) Validate() error {
	for i, r := range e.regions() {
		if !(r.Width >= 0 && r.Width <= 0.5) {
			return fmt.Errorf("%w: edge %d blend width %v", ErrInvalidConfig, i, r.Width)
		}
		if !(r.Gamma > 0) || !finite(r.Gamma) {
			return fmt.Errorf("%w: edge %d blend gamma %v", ErrInvalidConfig, i, r.Gamma)
		}
	}
	if !(e.BlackLevel >= 0 && e.BlackLevel <= 1) {
		return fmt.Errorf("%w: black level %v", ErrInvalidConfig, e.BlackLevel)
	}
	return nil
}

// Active reports whether e changes any pixel.
func (e EdgeBlend) Active() bool {
	if e.BlackLevel > 0 {
		return true
	}
	for _, r := range e.regions() {
		if r.Enabled && r.Width > 0 {
			return true
		}
	}
	return false
}

// Factor returns the alpha multiplier at normalized slice position (u, v):
// the product of the four edge factors.
func (e EdgeBlend) Factor(u, v float64) float64 {
	return e.Left.factor(u) * e.Right.factor(1-u) * e.Top.factor(v) * e.Bottom.factor(1-v)
}

// Lift returns the black level to apply at (u, v): BlackLevel outside every
// blend region, 0 inside one.
func (e EdgeBlend) Lift(u, v float64) float64 {
	if e.BlackLevel == 0 {
		return 0
	}
	if e.Left.contains(u) || e.Right.contains(1-u) || e.Top.contains(v) || e.Bottom.contains(1-v) {
		return 0
	}
	return e.BlackLevel
}

// Apply attenuates c at (u, v).
func (e EdgeBlend) Apply(c Color, u, v float64) Color {
	if b := e.Lift(u, v); b > 0 {
		c.R = b + c.R*(1-b)
		c.G = b + c.G*(1-b)
		c.B = b + c.B*(1-b)
	}
	c.A *= e.Factor(u, v)
	return c
}
