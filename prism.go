package prism

import (
	"fmt"
	"math"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// ColorWhite is the neutral tint.
var ColorWhite = Color{1, 1, 1, 1}

// ColorBlack is opaque black, the clear color of canvases and screens.
var ColorBlack = Color{0, 0, 0, 1}

// Vec2 is a 2D vector used for positions, offsets, sizes, and normalized
// coordinates throughout the API.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v-o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v*s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Lerp interpolates between v and o.
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// Len returns the Euclidean length of v.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Rect is an axis-aligned rectangle. The coordinate system has its origin at
// the top-left, with Y increasing downward.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Empty reports whether the rectangle has zero or negative area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// Intersects reports whether r and other overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Range is a general-purpose min/max range.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Identifiers. All ids are issued by a Model and are never reused within it.
type (
	LayerID  uint32
	EffectID uint32
	ScreenID uint32
	SliceID  uint32
)

// BlendMode selects how a layer is composited onto the canvas.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // mix(c, s, a)
	BlendAdd                       // c + s*a
	BlendMultiply                  // mix(c, c*s, a)
	BlendScreen                    // mix(c, 1-(1-c)*(1-s), a)
)

var blendModeNames = [...]string{"normal", "add", "multiply", "screen"}

// String returns the lowercase name of the blend mode.
func (b BlendMode) String() string {
	if int(b) < len(blendModeNames) {
		return blendModeNames[b]
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(b))
}

// Valid reports whether b is one of the defined blend modes.
func (b BlendMode) Valid() bool { return int(b) < len(blendModeNames) }

// MarshalText encodes the blend mode by name.
func (b BlendMode) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: blend mode %d", ErrInvalidConfig, uint8(b))
	}
	return []byte(b.String()), nil
}

// UnmarshalText decodes a blend mode name.
func (b *BlendMode) UnmarshalText(text []byte) error {
	for i, name := range blendModeNames {
		if name == string(text) {
			*b = BlendMode(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown blend mode %q", ErrInvalidConfig, text)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lerp is exact at both ends: lerp(a, b, 1) == b.
func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (v Vec2) finite() bool { return finite(v.X) && finite(v.Y) }

func (r Rect) finite() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height)
}

// smoothstep is the Hermite ramp between edge0 and edge1.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge1 == edge0 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}
