package prism

import (
	"fmt"
	"math"
	"slices"
)

// MaskKind discriminates mask shapes.
type MaskKind string

const (
	MaskRect    MaskKind = "rect"
	MaskEllipse MaskKind = "ellipse"
	MaskPolygon MaskKind = "polygon"
	MaskBezier  MaskKind = "bezier"
)

// BezierVertex is an outline vertex with absolute curve handles. The segment
// from vertex i to i+1 is the cubic through Pos(i), Out(i), In(i+1), Pos(i+1).
type BezierVertex struct {
	Pos Vec2 `json:"pos"`
	In  Vec2 `json:"in"`
	Out Vec2 `json:"out"`
}

// MaskShape is the geometry of a mask, normalized to the slice output rect.
// Rect and ellipse use Bounds; polygon uses Points; bezier uses Curve.
type MaskShape struct {
	Kind   MaskKind       `json:"kind"`
	Bounds Rect           `json:"bounds,omitzero"`
	Points []Vec2         `json:"points,omitempty"`
	Curve  []BezierVertex `json:"curve,omitempty"`
}

// SliceMask limits a slice to a shape with a soft edge.
type SliceMask struct {
	Shape MaskShape `json:"shape"`
	// Feather is the width in output pixels of the ramp centered on the
	// boundary.
	Feather  float64 `json:"feather"`
	Inverted bool    `json:"inverted"`
	Enabled  bool    `json:"enabled"`
}

// bezierSteps is the number of line segments per flattened bezier segment.
const bezierSteps = 16

// Validate rejects negative feather, degenerate shapes and self-intersecting
// outlines.
func (m *SliceMask) Validate() error {
	if m.Feather < 0 || !finite(m.Feather) {
		return fmt.Errorf("%w: mask feather %v", ErrInvalidConfig, m.Feather)
	}
	switch m.Shape.Kind {
	case MaskRect, MaskEllipse:
		if !m.Shape.Bounds.finite() {
			return fmt.Errorf("%w: mask bounds %+v", ErrInvalidConfig, m.Shape.Bounds)
		}
		if m.Shape.Bounds.Empty() {
			return fmt.Errorf("%w: mask bounds %+v", ErrZeroArea, m.Shape.Bounds)
		}
	case MaskPolygon:
		return validatePolygon(m.Shape.Points)
	case MaskBezier:
		if len(m.Shape.Curve) < 2 {
			return fmt.Errorf("%w: bezier mask needs at least 2 vertices", ErrInvalidConfig)
		}
		for i, v := range m.Shape.Curve {
			if !v.Pos.finite() || !v.In.finite() || !v.Out.finite() {
				return fmt.Errorf("%w: bezier vertex %d %+v", ErrInvalidConfig, i, v)
			}
		}
		return validatePolygon(flattenBezier(m.Shape.Curve, bezierSteps))
	default:
		return fmt.Errorf("%w: unknown mask kind %q", ErrInvalidConfig, m.Shape.Kind)
	}
	return nil
}

// validatePolygon checks vertex count, area and self intersection.
func validatePolygon(pts []Vec2) error {
	if len(pts) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidConfig, len(pts))
	}
	for i, p := range pts {
		if !p.finite() {
			return fmt.Errorf("%w: polygon vertex %d at %v", ErrInvalidConfig, i, p)
		}
	}
	if math.Abs(polygonArea(pts)) < 1e-12 {
		return fmt.Errorf("%w: polygon", ErrZeroArea)
	}
	if selfIntersects(pts) {
		return ErrSelfIntersecting
	}
	return nil
}

func polygonArea(pts []Vec2) float64 {
	var a float64
	for i := range pts {
		p, q := pts[i], pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

func orient(a, b, c Vec2) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Vec2) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

func segmentsIntersect(p1, p2, q1, q2 Vec2) bool {
	d1 := orient(q1, q2, p1)
	d2 := orient(q1, q2, p2)
	d3 := orient(p1, p2, q1)
	d4 := orient(p1, p2, q2)
	if (d1 > 0 && d2 < 0 || d1 < 0 && d2 > 0) && (d3 > 0 && d4 < 0 || d3 < 0 && d4 > 0) {
		return true
	}
	return d1 == 0 && onSegment(q1, q2, p1) ||
		d2 == 0 && onSegment(q1, q2, p2) ||
		d3 == 0 && onSegment(p1, p2, q1) ||
		d4 == 0 && onSegment(p1, p2, q2)
}

// selfIntersects reports whether any two non-adjacent edges of the closed
// polygon touch.
func selfIntersects(pts []Vec2) bool {
	n := len(pts)
	for i := 0; i < n; i++ {
		a1, a2 := pts[i], pts[(i+1)%n]
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(a1, a2, pts[j], pts[(j+1)%n]) {
				return true
			}
		}
	}
	return false
}

// flattenBezier converts a closed bezier outline into a polygon.
func flattenBezier(curve []BezierVertex, steps int) []Vec2 {
	out := make([]Vec2, 0, len(curve)*steps)
	for i := range curve {
		a, b := curve[i], curve[(i+1)%len(curve)]
		for s := 0; s < steps; s++ {
			t := float64(s) / float64(steps)
			u := 1 - t
			u2, t2 := u*u, t*t
			out = append(out, Vec2{
				X: u2*u*a.Pos.X + 3*u2*t*a.Out.X + 3*u*t2*b.In.X + t2*t*b.Pos.X,
				Y: u2*u*a.Pos.Y + 3*u2*t*a.Out.Y + 3*u*t2*b.In.Y + t2*t*b.Pos.Y,
			})
		}
	}
	return out
}

// pointInPolygon uses the even-odd rule.
func pointInPolygon(p Vec2, pts []Vec2) bool {
	in := false
	n := len(pts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := pts[i], pts[j]
		if (a.Y > p.Y) != (b.Y > p.Y) && p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

func segmentDistance(p, a, b Vec2) float64 {
	ab := b.Sub(a)
	l2 := ab.X*ab.X + ab.Y*ab.Y
	if l2 == 0 {
		return p.Sub(a).Len()
	}
	t := clamp01(((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / l2)
	return p.Sub(a.Add(ab.Scale(t))).Len()
}

// MaskField evaluates a mask over a slice of a given pixel size. Geometry is
// scaled to pixels once, so per-pixel evaluation does not allocate.
type MaskField struct {
	mask    SliceMask
	w, h    float64
	poly    []Vec2
	bounds  Rect
	disable bool
}

// Field prepares m for a w x h pixel slice.
func (m *SliceMask) Field(w, h int) *MaskField {
	f := &MaskField{mask: *m, w: float64(w), h: float64(h)}
	if !m.Enabled {
		f.disable = true
		return f
	}
	toPx := func(p Vec2) Vec2 { return Vec2{p.X * f.w, p.Y * f.h} }
	b := m.Shape.Bounds
	f.bounds = Rect{b.X * f.w, b.Y * f.h, b.Width * f.w, b.Height * f.h}
	var src []Vec2
	switch m.Shape.Kind {
	case MaskPolygon:
		src = m.Shape.Points
	case MaskBezier:
		src = flattenBezier(m.Shape.Curve, bezierSteps)
	}
	for _, p := range src {
		f.poly = append(f.poly, toPx(p))
	}
	return f
}

// Distance returns the signed distance in pixels from (x, y) to the shape
// boundary, negative inside.
func (f *MaskField) Distance(x, y float64) float64 {
	p := Vec2{x, y}
	switch f.mask.Shape.Kind {
	case MaskRect:
		b := f.bounds
		qx := math.Abs(x-(b.X+b.Width/2)) - b.Width/2
		qy := math.Abs(y-(b.Y+b.Height/2)) - b.Height/2
		outside := Vec2{math.Max(qx, 0), math.Max(qy, 0)}.Len()
		return outside + math.Min(math.Max(qx, qy), 0)
	case MaskEllipse:
		b := f.bounds
		rx, ry := b.Width/2, b.Height/2
		px, py := x-(b.X+rx), y-(b.Y+ry)
		k0 := math.Hypot(px/rx, py/ry)
		k1 := math.Hypot(px/(rx*rx), py/(ry*ry))
		if k1 == 0 {
			return -math.Min(rx, ry)
		}
		return k0 * (k0 - 1) / k1
	case MaskPolygon, MaskBezier:
		if len(f.poly) < 3 {
			return math.Inf(1)
		}
		d := math.Inf(1)
		for i := range f.poly {
			d = math.Min(d, segmentDistance(p, f.poly[i], f.poly[(i+1)%len(f.poly)]))
		}
		if pointInPolygon(p, f.poly) {
			return -d
		}
		return d
	}
	return math.Inf(1)
}

// Coverage returns the mask coverage at pixel-space position (x, y).
func (f *MaskField) Coverage(x, y float64) float64 {
	if f.disable {
		return 1
	}
	half := f.mask.Feather / 2
	c := 1 - smoothstep(-half, half, f.Distance(x, y))
	if f.mask.Inverted {
		return 1 - c
	}
	return c
}

// CoverageMap returns coverage at every pixel center, row major.
func (f *MaskField) CoverageMap() []float32 {
	w, h := int(f.w), int(f.h)
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float32(f.Coverage(float64(x)+0.5, float64(y)+0.5))
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *SliceMask) Clone() *SliceMask {
	c := *m
	c.Shape.Points = slices.Clone(m.Shape.Points)
	c.Shape.Curve = slices.Clone(m.Shape.Curve)
	return &c
}
