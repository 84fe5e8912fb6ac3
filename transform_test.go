package prism

import (
	"math"
	"testing"

	"golang.org/x/image/math/f64"
)

func assertPoint(t *testing.T, name string, m f64.Aff3, x, y, wantX, wantY float64) {
	t.Helper()
	gx, gy := applyAff3(m, x, y)
	if !approxEqual(gx, wantX, 1e-9) || !approxEqual(gy, wantY, 1e-9) {
		t.Errorf("%s: (%v, %v) -> (%v, %v), want (%v, %v)", name, x, y, gx, gy, wantX, wantY)
	}
}

func TestTransformIdentityFitsCanvas(t *testing.T) {
	m := IdentityTransform2D.Matrix(1920, 1080, 1920, 1080)
	if !isIdentityAff3(m) {
		t.Errorf("same-size identity = %v", m)
	}
	m = IdentityTransform2D.Matrix(640, 360, 1920, 1080)
	assertPoint(t, "fit", m, 640, 360, 1920, 1080)
	assertPoint(t, "fit", m, 320, 0, 960, 0)
}

func TestTransformPosition(t *testing.T) {
	tr := IdentityTransform2D
	tr.Position = Vec2{10, -5}
	assertPoint(t, "position", tr.Matrix(100, 100, 100, 100), 0, 0, 10, -5)
}

func TestTransformScaleAroundAnchor(t *testing.T) {
	tr := IdentityTransform2D
	tr.Scale = Vec2{0.5, 0.5}
	m := tr.Matrix(100, 100, 100, 100)
	assertPoint(t, "center fixed", m, 50, 50, 50, 50)
	assertPoint(t, "corner", m, 0, 0, 25, 25)

	tr.Anchor = Vec2{0, 0}
	assertPoint(t, "top-left anchor", tr.Matrix(100, 100, 100, 100), 100, 100, 50, 50)
}

func TestTransformRotation(t *testing.T) {
	tr := IdentityTransform2D
	tr.Rotation = math.Pi / 2
	m := tr.Matrix(100, 100, 100, 100)
	// Clockwise on screen: right of center moves below it.
	assertPoint(t, "rotate", m, 100, 50, 50, 100)
}

func TestInvertAff3(t *testing.T) {
	tr := Transform2D{Position: Vec2{3, 4}, Scale: Vec2{2, 0.5}, Rotation: 0.3, Anchor: Vec2{0.5, 0.5}}
	m := tr.Matrix(64, 32, 128, 128)
	inv, ok := invertAff3(m)
	if !ok {
		t.Fatal("matrix reported singular")
	}
	assertPoint(t, "round trip", multiplyAff3(inv, m), 17, 9, 17, 9)

	if _, ok := invertAff3(scaleAff3(0, 1)); ok {
		t.Error("singular matrix inverted")
	}
}

func TestTransformCombine(t *testing.T) {
	a := Transform2D{Position: Vec2{1, 2}, Scale: Vec2{2, 2}, Rotation: 0.5, Anchor: Vec2{0.25, 0.25}}
	b := Transform2D{Position: Vec2{3, 4}, Scale: Vec2{0.5, 3}, Rotation: 0.25, Anchor: Vec2{0.9, 0.9}}
	got := a.Combine(b)
	want := Transform2D{Position: Vec2{4, 6}, Scale: Vec2{1, 6}, Rotation: 0.75, Anchor: Vec2{0.25, 0.25}}
	if got != want {
		t.Errorf("Combine = %+v, want %+v", got, want)
	}
}
