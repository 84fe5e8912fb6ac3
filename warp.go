package prism

import (
	"fmt"
	"math"
)

// Warps map an output position of a slice, normalized to [0,1]^2 over the
// output rect, to a sampling position normalized over the input rect. The
// identity warp maps every point to itself.

// WarpPoint is one control point of a warp mesh.
type WarpPoint struct {
	// UV is the point's identity grid position.
	UV Vec2 `json:"uv"`
	// Pos is the warped sampling position.
	Pos Vec2 `json:"pos"`
	// Smooth selects cubic segments through this point, shaped by the
	// tangents: derivatives of Pos along the mesh u and v axes. Linear points
	// ignore the tangents.
	Smooth   bool `json:"smooth,omitempty"`
	TangentU Vec2 `json:"tangent_u"`
	TangentV Vec2 `json:"tangent_v"`
}

// WarpMesh is a Columns x Rows grid of control points stored column major:
// point (c, r) is Points[c*Rows+r].
type WarpMesh struct {
	Columns int         `json:"columns"`
	Rows    int         `json:"rows"`
	Points  []WarpPoint `json:"points"`
}

// NewWarpMesh returns an identity mesh. Both dimensions must be at least 2.
func NewWarpMesh(cols, rows int) (*WarpMesh, error) {
	if cols < 2 || rows < 2 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidMesh, cols, rows)
	}
	m := &WarpMesh{Columns: cols, Rows: rows, Points: make([]WarpPoint, cols*rows)}
	m.Reset()
	return m, nil
}

// Validate checks dimensions and point count.
func (m *WarpMesh) Validate() error {
	if m.Columns < 2 || m.Rows < 2 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidMesh, m.Columns, m.Rows)
	}
	if len(m.Points) != m.Columns*m.Rows {
		return fmt.Errorf("%w: %d points for %dx%d", ErrInvalidMesh, len(m.Points), m.Columns, m.Rows)
	}
	for i, p := range m.Points {
		if !p.Pos.finite() || !p.UV.finite() {
			return fmt.Errorf("%w: point %d at %v", ErrInvalidMesh, i, p.Pos)
		}
		if !p.TangentU.finite() || !p.TangentV.finite() {
			return fmt.Errorf("%w: point %d tangents %v %v", ErrInvalidMesh, i, p.TangentU, p.TangentV)
		}
	}
	return nil
}

func (m *WarpMesh) index(c, r int) int { return c*m.Rows + r }

// identityUV returns the grid position of (c, r).
func (m *WarpMesh) identityUV(c, r int) Vec2 {
	return Vec2{float64(c) / float64(m.Columns-1), float64(r) / float64(m.Rows-1)}
}

// Point returns the control point at column c, row r.
func (m *WarpMesh) Point(c, r int) (*WarpPoint, error) {
	if c < 0 || r < 0 || c >= m.Columns || r >= m.Rows {
		return nil, fmt.Errorf("%w: warp point (%d,%d) of %dx%d", ErrNotFound, c, r, m.Columns, m.Rows)
	}
	return &m.Points[m.index(c, r)], nil
}

// Reset returns every point to its identity position with linear segments.
func (m *WarpMesh) Reset() {
	du := Vec2{1, 0}
	dv := Vec2{0, 1}
	for c := 0; c < m.Columns; c++ {
		for r := 0; r < m.Rows; r++ {
			uv := m.identityUV(c, r)
			m.Points[m.index(c, r)] = WarpPoint{UV: uv, Pos: uv, TangentU: du, TangentV: dv}
		}
	}
}

// IsIdentity reports whether every point sits at its grid position with
// linear segments.
func (m *WarpMesh) IsIdentity() bool {
	for _, p := range m.Points {
		if p.Pos != p.UV || p.Smooth {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (m *WarpMesh) Clone() *WarpMesh {
	c := *m
	c.Points = append([]WarpPoint(nil), m.Points...)
	return &c
}

// Resample returns a new cols x rows mesh whose points lie on the surface of
// m, so that the warp shape is preserved.
func (m *WarpMesh) Resample(cols, rows int) (*WarpMesh, error) {
	n, err := NewWarpMesh(cols, rows)
	if err != nil {
		return nil, err
	}
	if m.IsIdentity() {
		return n, nil
	}
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			p := &n.Points[n.index(c, r)]
			p.Pos = m.Eval(p.UV.X, p.UV.Y)
		}
	}
	return n, nil
}

// locate returns the cell containing coordinate t in [0,1] along an axis of
// n points and the fractional position inside it.
func locate(t float64, n int) (int, float64) {
	f := t * float64(n-1)
	i := int(math.Floor(f))
	i = clampInt(i, 0, n-2)
	return i, f - float64(i)
}

// hermite evaluates a cubic Hermite segment.
func hermite(p0, p1, m0, m1 Vec2, t float64) Vec2 {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return Vec2{
		h00*p0.X + h10*m0.X + h01*p1.X + h11*m1.X,
		h00*p0.Y + h10*m0.Y + h01*p1.Y + h11*m1.Y,
	}
}

// edge evaluates the boundary curve between a and b. Linear endpoints use
// the chord as tangent, which reduces the segment to a straight line.
func edge(a, b *WarpPoint, ta, tb Vec2, t float64) Vec2 {
	chord := b.Pos.Sub(a.Pos)
	m0, m1 := chord, chord
	if a.Smooth {
		m0 = ta
	}
	if b.Smooth {
		m1 = tb
	}
	return hermite(a.Pos, b.Pos, m0, m1, t)
}

// Eval returns the sampling position for output position (u, v).
func (m *WarpMesh) Eval(u, v float64) Vec2 {
	c, tx := locate(u, m.Columns)
	r, ty := locate(v, m.Rows)
	p00 := &m.Points[m.index(c, r)]
	p10 := &m.Points[m.index(c+1, r)]
	p01 := &m.Points[m.index(c, r+1)]
	p11 := &m.Points[m.index(c+1, r+1)]

	top := p00.Pos.Lerp(p10.Pos, tx)
	bottom := p01.Pos.Lerp(p11.Pos, tx)
	bilinear := top.Lerp(bottom, ty)
	if !(p00.Smooth || p10.Smooth || p01.Smooth || p11.Smooth) {
		return bilinear
	}

	// Coons patch over the four Hermite boundary curves. Tangents are
	// derivatives over the whole mesh; a cell spans 1/(n-1) of it.
	su := 1 / float64(m.Columns-1)
	sv := 1 / float64(m.Rows-1)
	topC := edge(p00, p10, p00.TangentU.Scale(su), p10.TangentU.Scale(su), tx)
	botC := edge(p01, p11, p01.TangentU.Scale(su), p11.TangentU.Scale(su), tx)
	leftC := edge(p00, p01, p00.TangentV.Scale(sv), p01.TangentV.Scale(sv), ty)
	rightC := edge(p10, p11, p10.TangentV.Scale(sv), p11.TangentV.Scale(sv), ty)

	ruled1 := topC.Lerp(botC, ty)
	ruled2 := leftC.Lerp(rightC, tx)
	return ruled1.Add(ruled2).Sub(bilinear)
}

// Perspective maps the unit output square onto a quad of sampling positions.
// Corners are top-left, top-right, bottom-right, bottom-left.
type Perspective struct {
	Corners [4]Vec2 `json:"corners"`
}

// IdentityPerspective samples the input rect unchanged.
var IdentityPerspective = Perspective{Corners: [4]Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}

// IsIdentity reports whether p is the identity quad.
func (p Perspective) IsIdentity() bool { return p == IdentityPerspective }

// Validate rejects quads that are degenerate or not convex.
func (p Perspective) Validate() error {
	var sign float64
	for i := 0; i < 4; i++ {
		a, b, c := p.Corners[i], p.Corners[(i+1)%4], p.Corners[(i+2)%4]
		if !finite(a.X) || !finite(a.Y) {
			return fmt.Errorf("%w: perspective corner %v", ErrInvalidConfig, a)
		}
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		if math.Abs(cross) < 1e-12 {
			return fmt.Errorf("%w: degenerate perspective quad", ErrInvalidConfig)
		}
		if sign == 0 {
			sign = math.Copysign(1, cross)
		} else if math.Copysign(1, cross) != sign {
			return fmt.Errorf("%w: perspective quad is not convex", ErrInvalidConfig)
		}
	}
	return nil
}

// Homography is a projective map of the plane, row major with h[8] = 1.
type Homography [9]float64

// Homography returns the square-to-quad projective map of p.
func (p Perspective) Homography() Homography {
	x0, y0 := p.Corners[0].X, p.Corners[0].Y
	x1, y1 := p.Corners[1].X, p.Corners[1].Y
	x2, y2 := p.Corners[2].X, p.Corners[2].Y
	x3, y3 := p.Corners[3].X, p.Corners[3].Y

	sx := x0 - x1 + x2 - x3
	sy := y0 - y1 + y2 - y3
	if sx == 0 && sy == 0 {
		return Homography{
			x1 - x0, x3 - x0, x0,
			y1 - y0, y3 - y0, y0,
			0, 0, 1,
		}
	}
	dx1, dx2 := x1-x2, x3-x2
	dy1, dy2 := y1-y2, y3-y2
	den := dx1*dy2 - dx2*dy1
	g := (sx*dy2 - dx2*sy) / den
	h := (dx1*sy - sx*dy1) / den
	return Homography{
		x1 - x0 + g*x1, x3 - x0 + h*x3, x0,
		y1 - y0 + g*y1, y3 - y0 + h*y3, y0,
		g, h, 1,
	}
}

// Apply maps (u, v).
func (h Homography) Apply(u, v float64) Vec2 {
	w := h[6]*u + h[7]*v + h[8]
	if w == 0 {
		return Vec2{math.Inf(1), math.Inf(1)}
	}
	return Vec2{(h[0]*u + h[1]*v + h[2]) / w, (h[3]*u + h[4]*v + h[5]) / w}
}

// WarpFunc maps a normalized output position to a normalized sampling
// position. A nil WarpFunc is the identity.
type WarpFunc func(u, v float64) Vec2

// warpFunc resolves the effective warp of a slice: the mesh overrides the
// perspective, and identity warps resolve to nil.
func warpFunc(persp *Perspective, mesh *WarpMesh) WarpFunc {
	if mesh != nil {
		if mesh.IsIdentity() {
			return nil
		}
		return mesh.Eval
	}
	if persp != nil && !persp.IsIdentity() {
		return persp.Homography().Apply
	}
	return nil
}
