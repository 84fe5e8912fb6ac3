package prism

// BlendChannel blends one straight-alpha source channel s onto canvas channel
// c with effective alpha a (source alpha times layer opacity).
//
//	Normal:   mix(c, s, a)
//	Add:      c + s*a
//	Multiply: mix(c, c*s, a)
//	Screen:   mix(c, 1-(1-c)*(1-s), a)
//
// With a == 0 every mode returns c unchanged. Results are not clamped; the
// canvas stores unclamped floats until output conversion.
func BlendChannel(mode BlendMode, c, s, a float64) float64 {
	if a == 0 {
		return c
	}
	switch mode {
	case BlendAdd:
		return c + s*a
	case BlendMultiply:
		return lerp(c, c*s, a)
	case BlendScreen:
		return lerp(c, 1-(1-c)*(1-s), a)
	default:
		return lerp(c, s, a)
	}
}

// BlendColor blends a straight-alpha source color onto a canvas color with
// the given layer opacity. The effective alpha is src.A*opacity; the
// resulting alpha is source-over regardless of mode.
func BlendColor(mode BlendMode, dst, src Color, opacity float64) Color {
	a := src.A * opacity
	if a == 0 {
		return dst
	}
	return Color{
		R: BlendChannel(mode, dst.R, src.R, a),
		G: BlendChannel(mode, dst.G, src.G, a),
		B: BlendChannel(mode, dst.B, src.B, a),
		A: dst.A + a*(1-dst.A),
	}
}
