package prism

import (
	"errors"
	"math"
	"testing"
)

func TestColorCorrectionIdentity(t *testing.T) {
	c := Color{0.3, 0.5, 0.7, 0.4}
	if got := IdentityColorCorrection.Apply(c); got != c {
		t.Errorf("identity changed %v to %v", c, got)
	}
}

func TestColorCorrectionSteps(t *testing.T) {
	tests := []struct {
		name string
		cc   ColorCorrection
		in   Color
		want Color
	}{
		{"brightness", ColorCorrection{Brightness: 0.25, Contrast: 1, Saturation: 1, Gamma: 1, RGB: [3]float64{1, 1, 1}},
			Color{0.25, 0.5, 0.9, 1}, Color{0.5, 0.75, 1, 1}},
		{"contrast", ColorCorrection{Contrast: 2, Saturation: 1, Gamma: 1, RGB: [3]float64{1, 1, 1}},
			Color{0.25, 0.5, 0.75, 1}, Color{0, 0.5, 1, 1}},
		{"desaturate", ColorCorrection{Contrast: 1, Saturation: 0, Gamma: 1, RGB: [3]float64{1, 1, 1}},
			Color{1, 1, 1, 0.5}, Color{1, 1, 1, 0.5}},
		{"gamma", ColorCorrection{Contrast: 1, Saturation: 1, Gamma: 2, RGB: [3]float64{1, 1, 1}},
			Color{0.25, 0, 1, 1}, Color{0.5, 0, 1, 1}},
		{"rgb", ColorCorrection{Contrast: 1, Saturation: 1, Gamma: 1, RGB: [3]float64{0.5, 1, 2}},
			Color{0.5, 0.5, 0.75, 1}, Color{0.25, 0.5, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cc.Apply(tt.in)
			if !approxEqual(got.R, tt.want.R, 1e-9) || !approxEqual(got.G, tt.want.G, 1e-9) ||
				!approxEqual(got.B, tt.want.B, 1e-9) || got.A != tt.want.A {
				t.Errorf("Apply(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorCorrectionSaturationUsesLuma(t *testing.T) {
	cc := IdentityColorCorrection
	cc.Saturation = 0
	got := cc.Apply(Color{1, 0, 0, 1})
	if !approxEqual(got.R, 0.2126, 1e-12) || got.R != got.G || got.G != got.B {
		t.Errorf("grey = %v", got)
	}
}

func TestColorCorrectionValidate(t *testing.T) {
	bad := make([]ColorCorrection, 10)
	for i := range bad {
		bad[i] = IdentityColorCorrection
	}
	bad[0].Gamma = 0
	bad[1].Contrast = -1
	bad[2].RGB[1] = -0.5
	bad[3].Brightness = math.NaN()
	bad[4].Brightness = math.Inf(-1)
	bad[5].Contrast = math.NaN()
	bad[6].Saturation = math.NaN()
	bad[7].RGB[2] = math.NaN()
	bad[8].RGB[0] = math.Inf(1)
	bad[9].Gamma = math.Inf(1)
	for i, cc := range bad {
		if err := cc.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
}

func TestColorCorrectionApplyPixmap(t *testing.T) {
	p := NewPixmap(2, 1)
	p.Fill(Color{0.25, 0.25, 0.25, 1})
	cc := IdentityColorCorrection
	cc.RGB = [3]float64{2, 1, 0}
	cc.ApplyPixmap(p)
	got := p.Pixel(1, 0)
	if !approxEqual(got.R, 0.5, 1e-2) || !approxEqual(got.G, 0.25, 1e-2) || got.B != 0 {
		t.Errorf("pixel = %v", got)
	}
}
