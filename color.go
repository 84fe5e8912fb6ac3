package prism

import (
	"fmt"
	"math"
)

// ColorCorrection is applied per slice and per screen, in the order
// brightness, contrast, saturation, gamma, RGB multiply, clamp.
type ColorCorrection struct {
	// Brightness is added to each channel.
	Brightness float64 `json:"brightness"`
	// Contrast scales around 0.5.
	Contrast float64 `json:"contrast"`
	// Saturation mixes between Rec.709 luma (0) and the input color (1).
	Saturation float64 `json:"saturation"`
	// Gamma > 0; channels become pow(c, 1/Gamma).
	Gamma float64 `json:"gamma"`
	// RGB multiplies each channel.
	RGB [3]float64 `json:"rgb"`
}

// IdentityColorCorrection leaves colors unchanged.
var IdentityColorCorrection = ColorCorrection{Contrast: 1, Saturation: 1, Gamma: 1, RGB: [3]float64{1, 1, 1}}

// IsIdentity reports whether Apply would be a no-op.
func (cc ColorCorrection) IsIdentity() bool { return cc == IdentityColorCorrection }

// Validate checks the gamma and multiplier ranges.
func (cc ColorCorrection) Validate() error {
	if !(cc.Gamma > 0) || !finite(cc.Gamma) {
		return fmt.Errorf("%w: gamma %v", ErrInvalidConfig, cc.Gamma)
	}
	if !finite(cc.Brightness) {
		return fmt.Errorf("%w: brightness %v", ErrInvalidConfig, cc.Brightness)
	}
	if !(cc.Contrast >= 0) || !(cc.Saturation >= 0) || !finite(cc.Contrast) || !finite(cc.Saturation) {
		return fmt.Errorf("%w: contrast %v saturation %v", ErrInvalidConfig, cc.Contrast, cc.Saturation)
	}
	for _, m := range cc.RGB {
		if !(m >= 0) || !finite(m) {
			return fmt.Errorf("%w: rgb multiplier %v", ErrInvalidConfig, cc.RGB)
		}
	}
	return nil
}

func luma(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// Apply corrects one straight-alpha color. Alpha is untouched.
func (cc ColorCorrection) Apply(c Color) Color {
	if cc.IsIdentity() {
		return c
	}
	r, g, b := c.R+cc.Brightness, c.G+cc.Brightness, c.B+cc.Brightness

	r = (r-0.5)*cc.Contrast + 0.5
	g = (g-0.5)*cc.Contrast + 0.5
	b = (b-0.5)*cc.Contrast + 0.5

	if cc.Saturation != 1 {
		l := luma(r, g, b)
		r, g, b = lerp(l, r, cc.Saturation), lerp(l, g, cc.Saturation), lerp(l, b, cc.Saturation)
	}

	if cc.Gamma != 1 && cc.Gamma > 0 {
		inv := 1 / cc.Gamma
		r, g, b = gammaChannel(r, inv), gammaChannel(g, inv), gammaChannel(b, inv)
	}

	return Color{
		R: clamp01(r * cc.RGB[0]),
		G: clamp01(g * cc.RGB[1]),
		B: clamp01(b * cc.RGB[2]),
		A: c.A,
	}
}

func gammaChannel(v, inv float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Pow(v, inv)
}

// ApplyPixmap corrects every pixel of p in place.
func (cc ColorCorrection) ApplyPixmap(p *Pixmap) {
	if cc.IsIdentity() {
		return
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			p.SetPixel(x, y, cc.Apply(p.Pixel(x, y)))
		}
	}
}
