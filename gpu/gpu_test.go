package gpu

import (
	"math"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/prism"
)

func TestEbitenBlendMapping(t *testing.T) {
	tests := []struct {
		mode prism.BlendMode
		want ebiten.Blend
	}{
		{prism.BlendNormal, ebiten.BlendSourceOver},
		{prism.BlendAdd, ebiten.BlendLighter},
		{prism.BlendMultiply, blendMultiply},
	}
	for _, tt := range tests {
		if got := ebitenBlend(tt.mode); got != tt.want {
			t.Errorf("ebitenBlend(%v) = %+v, want %+v", tt.mode, got, tt.want)
		}
	}
	scr := ebitenBlend(prism.BlendScreen)
	if scr.BlendFactorDestinationRGB != ebiten.BlendFactorOneMinusSourceColor {
		t.Errorf("screen dst factor = %v", scr.BlendFactorDestinationRGB)
	}
	if keyBlend != blendMultiply {
		t.Error("key slices should use the multiply blend")
	}
}

func TestWarpGridIndices(t *testing.T) {
	g := newWarpGrid(2)
	if len(g.verts) != 9 {
		t.Fatalf("verts = %d, want 9", len(g.verts))
	}
	want := []uint16{0, 3, 1, 1, 3, 4}
	for i, v := range want {
		if g.inds[i] != v {
			t.Errorf("inds[%d] = %d, want %d", i, g.inds[i], v)
		}
	}
	if len(g.inds) != 24 {
		t.Errorf("inds = %d, want 24", len(g.inds))
	}
}

func TestWarpGridCellCap(t *testing.T) {
	g := newWarpGrid(10000)
	if g.cells != maxGridCells {
		t.Errorf("cells = %d, want %d", g.cells, maxGridCells)
	}
	if n := len(g.verts); n > math.MaxUint16+1 {
		t.Errorf("verts = %d exceed uint16 indices", n)
	}
}

func TestWarpGridIdentityIsOneQuad(t *testing.T) {
	g := newWarpGrid(8)
	ir := prism.Rect{X: 10, Y: 20, Width: 100, Height: 50}
	verts, inds := g.update(200, 100, ir, nil)
	if len(verts) != 4 || len(inds) != 6 {
		t.Fatalf("got %d verts %d inds, want 4 and 6", len(verts), len(inds))
	}
	br := verts[3]
	if br.DstX != 200 || br.DstY != 100 || br.SrcX != 110 || br.SrcY != 70 {
		t.Errorf("bottom-right vertex = %+v", br)
	}
}

func TestWarpGridFollowsWarp(t *testing.T) {
	g := newWarpGrid(4)
	ir := prism.Rect{Width: 100, Height: 100}
	shift := func(u, v float64) prism.Vec2 { return prism.Vec2{X: u * 0.5, Y: v} }
	verts, inds := g.update(40, 40, ir, shift)
	if len(verts) != 25 || len(inds) != 96 {
		t.Fatalf("got %d verts %d inds", len(verts), len(inds))
	}
	last := verts[24]
	if last.SrcX != 50 || last.SrcY != 100 || last.DstX != 40 {
		t.Errorf("last vertex = %+v", last)
	}
}

func TestSlicePlacementRect(t *testing.T) {
	o := prism.OutputRect{Rect: prism.Rect{X: 100, Y: 50, Width: 200, Height: 100}}
	g := slicePlacement(o, 200, 100)
	x, y := g.Apply(0, 0)
	if !near(x, 100) || !near(y, 50) {
		t.Errorf("origin -> (%v, %v), want (100, 50)", x, y)
	}
	x, y = g.Apply(200, 100)
	if !near(x, 300) || !near(y, 150) {
		t.Errorf("corner -> (%v, %v), want (300, 150)", x, y)
	}
}

func TestSlicePlacementFlipAndRotate(t *testing.T) {
	o := prism.OutputRect{Rect: prism.Rect{Width: 100, Height: 100}, FlipX: true}
	g := slicePlacement(o, 100, 100)
	if x, _ := g.Apply(0, 0); !near(x, 100) {
		t.Errorf("flipped origin x = %v, want 100", x)
	}

	o = prism.OutputRect{Rect: prism.Rect{Width: 100, Height: 100}, Rotation: math.Pi}
	g = slicePlacement(o, 100, 100)
	x, y := g.Apply(0, 0)
	if !near(x, 100) || !near(y, 100) {
		t.Errorf("rotated origin -> (%v, %v), want (100, 100)", x, y)
	}
}

// Placement must agree with OutputRect.Local, which the software path uses.
func TestSlicePlacementInvertsLocal(t *testing.T) {
	o := prism.OutputRect{
		Rect:     prism.Rect{X: 40, Y: 30, Width: 120, Height: 80},
		Rotation: 0.3,
		FlipY:    true,
	}
	g := slicePlacement(o, 120, 80)
	for _, p := range [][2]float64{{0.25, 0.25}, {0.5, 0.5}, {0.9, 0.1}} {
		x, y := g.Apply(p[0]*120, p[1]*80)
		u, v, ok := o.Local(x, y)
		if !ok || !near(u, p[0]) || !near(v, p[1]) {
			t.Errorf("Local(place(%v)) = (%v, %v, %v)", p, u, v, ok)
		}
	}
}

func TestGeoMFromAff3(t *testing.T) {
	m := prism.IdentityTransform2D
	m.Position = prism.Vec2{X: 10, Y: -5}
	g := geoMFromAff3(m.Matrix(100, 100, 100, 100))
	x, y := g.Apply(1, 2)
	if !near(x, 11) || !near(y, -3) {
		t.Errorf("Apply = (%v, %v), want (11, -3)", x, y)
	}
}

func TestPremultiply(t *testing.T) {
	f := &prism.Frame{Width: 2, Height: 1, Format: prism.FormatBGRA,
		Pix: []byte{10, 20, 200, 255, 200, 100, 50, 128}}
	got := premultiply(f, nil)
	want := []byte{200, 20, 10, 255, 25, 50, 100, 128}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("premultiply = %v, want %v", got, want)
		}
	}
}

func TestPremultiplyStride(t *testing.T) {
	f := &prism.Frame{Width: 1, Height: 2, Format: prism.FormatRGBA, Stride: 8,
		Pix: []byte{1, 2, 3, 255, 9, 9, 9, 9, 4, 5, 6, 255}}
	got := premultiply(f, make([]byte, 0, 64))
	want := []byte{1, 2, 3, 255, 4, 5, 6, 255}
	if string(got) != string(want) {
		t.Errorf("premultiply = %v, want %v", got, want)
	}
}

func TestUnpremultiplyRoundTrip(t *testing.T) {
	f := &prism.Frame{Width: 1, Height: 1, Format: prism.FormatRGBA, Pix: []byte{200, 100, 50, 128}}
	pix := premultiply(f, nil)
	unpremultiply(pix)
	for i, v := range f.Pix {
		if d := int(pix[i]) - int(v); d < -2 || d > 2 {
			t.Errorf("channel %d = %d, want %d", i, pix[i], v)
		}
	}
}

func TestCoveragePixels(t *testing.T) {
	pix := coveragePixels([]float32{0, 0.5, 1, 2})
	if pix[3] != 0 || pix[7] != 128 || pix[11] != 255 || pix[15] != 255 {
		t.Errorf("alphas = %d %d %d %d", pix[3], pix[7], pix[11], pix[15])
	}
	if pix[4] != pix[7] {
		t.Error("coverage must be premultiplied white")
	}
}

func TestSlicePostUniforms(t *testing.T) {
	s := prism.NewSlice(1, "s", prism.Rect{Width: 10, Height: 10}, prism.Rect{Width: 10, Height: 10})
	s.IsKey = true
	s.EdgeBlend.Left = prism.EdgeBlendRegion{Enabled: true, Width: 0.2, Gamma: 2}
	u := slicePostUniforms(s, 10, 10, true)
	if u["Key"] != float32(1) || u["HasCoverage"] != float32(1) || u["Correct"] != float32(0) {
		t.Errorf("flags = %v %v %v", u["Key"], u["HasCoverage"], u["Correct"])
	}
	left := u["EdgeLeft"].([]float32)
	if left[0] != 1 || left[1] != 0.2 || left[2] != 2 {
		t.Errorf("EdgeLeft = %v", left)
	}
}

func TestPoolKeyDistinct(t *testing.T) {
	if poolKey(1, 2) == poolKey(2, 1) {
		t.Error("poolKey must distinguish width and height")
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGridCells(t *testing.T) {
	s := prism.NewSlice(1, "s", prism.Rect{Width: 10, Height: 10}, prism.Rect{Width: 10, Height: 10})
	if got := gridCells(s, 8); got != 1 {
		t.Errorf("unwarped cells = %d, want 1", got)
	}
	s.Perspective = &prism.IdentityPerspective
	if got := gridCells(s, 8); got != perspectiveCells {
		t.Errorf("perspective cells = %d, want %d", got, perspectiveCells)
	}
	m, err := prism.NewWarpMesh(4, 3)
	if err != nil {
		t.Fatal(err)
	}
	s.Mesh = m
	if got := gridCells(s, 8); got != 24 {
		t.Errorf("mesh cells = %d, want 24", got)
	}
	m, _ = prism.NewWarpMesh(200, 2)
	s.Mesh = m
	if got := gridCells(s, 8); got != maxGridCells {
		t.Errorf("large mesh cells = %d, want %d", got, maxGridCells)
	}
}

// fakePixels serves one premultiplied pixel and counts reads.
type fakePixels struct{ reads int }

func (p *fakePixels) ReadPixels(pix []byte) {
	p.reads++
	copy(pix, []byte{50, 25, 0, 128})
}

func TestCaptureReadOnce(t *testing.T) {
	src := &fakePixels{}
	var released int
	c := &gpuCapture{src: src, done: func() { released++ }, w: 1, h: 1}
	if src.reads != 0 {
		t.Fatal("pixels read before Read")
	}
	f, err := c.Read()
	if err != nil {
		t.Fatal(err)
	}
	if src.reads != 1 || released != 1 {
		t.Errorf("reads = %d released = %d, want 1, 1", src.reads, released)
	}
	if f.Width != 1 || f.Format != prism.FormatRGBA || f.Pix[3] != 128 {
		t.Errorf("frame = %+v", f)
	}
	if f.Pix[0] != 100 {
		t.Errorf("red = %d, want 100 after un-premultiply", f.Pix[0])
	}
	if _, err := c.Read(); err == nil {
		t.Error("second Read should fail")
	}
	if released != 1 {
		t.Errorf("released %d times", released)
	}
}

type countingPool struct{ released int }

func (p *countingPool) Release(*ebiten.Image) { p.released++ }

func TestSharedImageReturnsToPoolOnLastRelease(t *testing.T) {
	pool := &countingPool{}
	s := newSharedImage(nil, 2, pool)
	s.release()
	if pool.released != 0 {
		t.Fatal("image returned while a capture still holds it")
	}
	s.release()
	if pool.released != 1 {
		t.Errorf("released = %d, want 1", pool.released)
	}
}
