package prism

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Transform2D places a layer's frame on the canvas.
//
// Composition order:
//
//	Fit(frame -> canvas) -> Translate(-anchor) -> Scale -> Rotate -> Translate(anchor + position)
type Transform2D struct {
	// Position is the offset from the fitted placement, in canvas pixels.
	Position Vec2 `json:"position"`
	// Scale multiplies the fitted size. (1, 1) is no scaling.
	Scale Vec2 `json:"scale"`
	// Rotation is in radians, clockwise in screen space.
	Rotation float64 `json:"rotation"`
	// Anchor is the pivot for scale and rotation, normalized to the canvas.
	Anchor Vec2 `json:"anchor"`
}

// IdentityTransform2D is the default placement: the frame fills the canvas.
var IdentityTransform2D = Transform2D{
	Scale:  Vec2{1, 1},
	Anchor: Vec2{0.5, 0.5},
}

// IsIdentity reports whether t leaves the fitted frame untouched.
func (t Transform2D) IsIdentity() bool {
	return t.Position == (Vec2{}) && t.Scale == (Vec2{1, 1}) && t.Rotation == 0
}

// identityAff3 is the identity affine matrix.
var identityAff3 = f64.Aff3{1, 0, 0, 0, 1, 0}

// multiplyAff3 returns p*c: applying the result equals applying c then p.
//
//	Matrix layout (row major): | m0 m1 m2 |
//	                           | m3 m4 m5 |
func multiplyAff3(p, c f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		p[0]*c[0] + p[1]*c[3],
		p[0]*c[1] + p[1]*c[4],
		p[0]*c[2] + p[1]*c[5] + p[2],
		p[3]*c[0] + p[4]*c[3],
		p[3]*c[1] + p[4]*c[4],
		p[3]*c[2] + p[4]*c[5] + p[5],
	}
}

// invertAff3 computes the inverse of an affine matrix.
// Returns ok=false if the matrix is singular.
func invertAff3(m f64.Aff3) (f64.Aff3, bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det > -1e-12 && det < 1e-12 {
		return identityAff3, false
	}
	inv := 1 / det
	a := m[4] * inv
	b := -m[1] * inv
	d := -m[3] * inv
	e := m[0] * inv
	return f64.Aff3{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, true
}

// applyAff3 applies an affine matrix to a point.
func applyAff3(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}

func translateAff3(x, y float64) f64.Aff3 { return f64.Aff3{1, 0, x, 0, 1, y} }
func scaleAff3(x, y float64) f64.Aff3     { return f64.Aff3{x, 0, 0, 0, y, 0} }

func rotateAff3(r float64) f64.Aff3 {
	sin, cos := math.Sincos(r)
	return f64.Aff3{cos, -sin, 0, sin, cos, 0}
}

func isIdentityAff3(m f64.Aff3) bool { return m == identityAff3 }

// Matrix returns the frame-to-canvas matrix for a frame of size (fw, fh)
// drawn on a canvas of size (cw, ch).
func (t Transform2D) Matrix(fw, fh, cw, ch float64) f64.Aff3 {
	m := identityAff3
	if fw != cw || fh != ch {
		m = scaleAff3(cw/fw, ch/fh)
	}
	if t.IsIdentity() {
		return m
	}
	ax, ay := t.Anchor.X*cw, t.Anchor.Y*ch
	m = multiplyAff3(translateAff3(-ax, -ay), m)
	m = multiplyAff3(scaleAff3(t.Scale.X, t.Scale.Y), m)
	if t.Rotation != 0 {
		m = multiplyAff3(rotateAff3(t.Rotation), m)
	}
	return multiplyAff3(translateAff3(ax+t.Position.X, ay+t.Position.Y), m)
}

// Combine layers an offset transform on top of t: positions add, scales
// multiply, rotations add. The anchor of t is kept. Host effects use this to
// modulate a layer's placement.
func (t Transform2D) Combine(o Transform2D) Transform2D {
	return Transform2D{
		Position: t.Position.Add(o.Position),
		Scale:    Vec2{t.Scale.X * o.Scale.X, t.Scale.Y * o.Scale.Y},
		Rotation: t.Rotation + o.Rotation,
		Anchor:   t.Anchor,
	}
}
