package prism

import "math"

// builtinEffects returns the effects registered by NewDefaultRegistry.
func builtinEffects() []Effect {
	return []Effect{
		colorAdjustEffect{},
		invertEffect{},
		tintEffect{},
		pixelateEffect{},
		blurEffect{},
		thresholdEffect{},
		mirrorEffect{},
		transformEffect{},
	}
}

func floatSpec(name string, min, max, def float64) ParamSpec {
	return ParamSpec{Name: name, Kind: KindFloat, Min: min, Max: max, Default: FloatValue(def), Automatable: true}
}

func intSpec(name string, min, max float64, def int) ParamSpec {
	return ParamSpec{Name: name, Kind: KindInt, Min: min, Max: max, Default: IntValue(def), Automatable: true}
}

// processEach runs fn over every pixel of src into dst.
func processEach(src, dst *Pixmap, fn func(c Color) Color) {
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			dst.SetPixel(x, y, fn(src.Pixel(x, y)))
		}
	}
}

// --- color-adjust ---

const colorAdjustShaderSrc = `//kage:unit pixels
package main

var Brightness float
var Contrast float
var Saturation float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a == 0 {
		return vec4(0)
	}
	rgb := c.rgb / c.a
	rgb += Brightness
	rgb = (rgb-0.5)*Contrast + 0.5
	l := dot(rgb, vec3(0.2126, 0.7152, 0.0722))
	rgb = mix(vec3(l), rgb, Saturation)
	rgb = clamp(rgb, 0, 1)
	return vec4(rgb*c.a, c.a)
}
`

type colorAdjustEffect struct{}

func (colorAdjustEffect) Type() string { return "color-adjust" }

func (colorAdjustEffect) Params() []ParamSpec {
	return []ParamSpec{
		floatSpec("brightness", -1, 1, 0),
		floatSpec("contrast", 0, 4, 1),
		floatSpec("saturation", 0, 4, 1),
	}
}

func (colorAdjustEffect) Shader() string { return colorAdjustShaderSrc }

func (colorAdjustEffect) Uniforms(v Values, _, _ int) map[string]any {
	return map[string]any{
		"Brightness": float32(v.Float("brightness", 0)),
		"Contrast":   float32(v.Float("contrast", 1)),
		"Saturation": float32(v.Float("saturation", 1)),
	}
}

func (colorAdjustEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	cc := ColorCorrection{
		Brightness: v.Float("brightness", 0),
		Contrast:   v.Float("contrast", 1),
		Saturation: v.Float("saturation", 1),
		Gamma:      1,
		RGB:        [3]float64{1, 1, 1},
	}
	processEach(src, dst, cc.Apply)
}

// --- invert ---

const invertShaderSrc = `//kage:unit pixels
package main

var Amount float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a == 0 {
		return vec4(0)
	}
	rgb := c.rgb / c.a
	rgb = mix(rgb, 1-rgb, Amount)
	return vec4(rgb*c.a, c.a)
}
`

type invertEffect struct{}

func (invertEffect) Type() string        { return "invert" }
func (invertEffect) Params() []ParamSpec { return []ParamSpec{floatSpec("amount", 0, 1, 1)} }
func (invertEffect) Shader() string      { return invertShaderSrc }

func (invertEffect) Uniforms(v Values, _, _ int) map[string]any {
	return map[string]any{"Amount": float32(v.Float("amount", 1))}
}

func (invertEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	amt := v.Float("amount", 1)
	processEach(src, dst, func(c Color) Color {
		return Color{lerp(c.R, 1-c.R, amt), lerp(c.G, 1-c.G, amt), lerp(c.B, 1-c.B, amt), c.A}
	})
}

// --- tint ---

const tintShaderSrc = `//kage:unit pixels
package main

var Tint vec3
var Amount float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a == 0 {
		return vec4(0)
	}
	rgb := c.rgb / c.a
	rgb = mix(rgb, rgb*Tint, Amount)
	return vec4(rgb*c.a, c.a)
}
`

type tintEffect struct{}

func (tintEffect) Type() string { return "tint" }

func (tintEffect) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "color", Kind: KindColor, Default: ColorValue(ColorWhite)},
		floatSpec("amount", 0, 1, 1),
	}
}

func (tintEffect) Shader() string { return tintShaderSrc }

func (tintEffect) Uniforms(v Values, _, _ int) map[string]any {
	c := v.Color("color", ColorWhite)
	return map[string]any{
		"Tint":   []float32{float32(c.R), float32(c.G), float32(c.B)},
		"Amount": float32(v.Float("amount", 1)),
	}
}

func (tintEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	t := v.Color("color", ColorWhite)
	amt := v.Float("amount", 1)
	processEach(src, dst, func(c Color) Color {
		return Color{lerp(c.R, c.R*t.R, amt), lerp(c.G, c.G*t.G, amt), lerp(c.B, c.B*t.B, amt), c.A}
	})
}

// --- pixelate ---

const pixelateShaderSrc = `//kage:unit pixels
package main

var Size float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	o := imageSrc0Origin()
	p := floor((src-o)/Size)*Size + o + 0.5
	return imageSrc0At(p)
}
`

type pixelateEffect struct{}

func (pixelateEffect) Type() string        { return "pixelate" }
func (pixelateEffect) Params() []ParamSpec { return []ParamSpec{intSpec("size", 1, 256, 8)} }
func (pixelateEffect) Shader() string      { return pixelateShaderSrc }

func (pixelateEffect) Uniforms(v Values, _, _ int) map[string]any {
	return map[string]any{"Size": float32(max(1, v.Int("size", 8)))}
}

func (pixelateEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	size := max(1, v.Int("size", 8))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			dst.SetPixel(x, y, src.Pixel(x/size*size, y/size*size))
		}
	}
}

// --- blur ---

// blurMaxRadius bounds the Kage loop, which needs constant bounds.
const blurMaxRadius = 16

const blurShaderSrc = `//kage:unit pixels
package main

var Radius float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	sum := vec4(0)
	for j := -16; j <= 16; j++ {
		for i := -16; i <= 16; i++ {
			if abs(float(i)) <= Radius && abs(float(j)) <= Radius {
				sum += imageSrc0At(src + vec2(float(i), float(j)))
			}
		}
	}
	n := (2*Radius + 1) * (2*Radius + 1)
	return sum / n
}
`

type blurEffect struct{}

func (blurEffect) Type() string { return "blur" }

func (blurEffect) Params() []ParamSpec {
	return []ParamSpec{intSpec("radius", 0, blurMaxRadius, 2)}
}

func (blurEffect) Shader() string { return blurShaderSrc }

func (blurEffect) Uniforms(v Values, _, _ int) map[string]any {
	return map[string]any{"Radius": float32(clampInt(v.Int("radius", 2), 0, blurMaxRadius))}
}

// ProcessPixels is a box blur in premultiplied space. Taps outside the
// surface are transparent.
func (blurEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	r := clampInt(v.Int("radius", 2), 0, blurMaxRadius)
	if r == 0 {
		dst.CopyFrom(src)
		return
	}
	n := float64((2*r + 1) * (2*r + 1))
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			var pr, pg, pb, pa float64
			for j := -r; j <= r; j++ {
				for i := -r; i <= r; i++ {
					c := src.Pixel(x+i, y+j)
					pr += c.R * c.A
					pg += c.G * c.A
					pb += c.B * c.A
					pa += c.A
				}
			}
			if pa == 0 {
				dst.SetPixel(x, y, Color{})
				continue
			}
			dst.SetPixel(x, y, Color{pr / pa, pg / pa, pb / pa, pa / n})
		}
	}
}

// --- threshold ---

const thresholdShaderSrc = `//kage:unit pixels
package main

var Level float
var Softness float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a == 0 {
		return vec4(0)
	}
	rgb := c.rgb / c.a
	l := dot(rgb, vec3(0.2126, 0.7152, 0.0722))
	v := step(Level, l)
	if Softness > 0 {
		v = smoothstep(Level-Softness, Level+Softness, l)
	}
	return vec4(vec3(v)*c.a, c.a)
}
`

type thresholdEffect struct{}

func (thresholdEffect) Type() string { return "threshold" }

func (thresholdEffect) Params() []ParamSpec {
	return []ParamSpec{
		floatSpec("level", 0, 1, 0.5),
		floatSpec("softness", 0, 0.5, 0),
	}
}

func (thresholdEffect) Shader() string { return thresholdShaderSrc }

func (thresholdEffect) Uniforms(v Values, _, _ int) map[string]any {
	return map[string]any{
		"Level":    float32(v.Float("level", 0.5)),
		"Softness": float32(v.Float("softness", 0)),
	}
}

func (thresholdEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	level := v.Float("level", 0.5)
	soft := v.Float("softness", 0)
	processEach(src, dst, func(c Color) Color {
		l := luma(c.R, c.G, c.B)
		var out float64
		switch {
		case soft > 0:
			out = smoothstep(level-soft, level+soft, l)
		case l >= level:
			out = 1
		}
		return Color{out, out, out, c.A}
	})
}

// --- mirror ---

const mirrorShaderSrc = `//kage:unit pixels
package main

var Horizontal float
var Vertical float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	o := imageSrc0Origin()
	s := imageSrc0Size()
	p := src - o
	if Horizontal > 0 && p.x > s.x/2 {
		p.x = s.x - p.x
	}
	if Vertical > 0 && p.y > s.y/2 {
		p.y = s.y - p.y
	}
	return imageSrc0At(p + o)
}
`

type mirrorEffect struct{}

func (mirrorEffect) Type() string { return "mirror" }

func (mirrorEffect) Params() []ParamSpec {
	return []ParamSpec{{
		Name:    "axis",
		Kind:    KindEnum,
		Default: EnumValue("horizontal"),
		Options: []string{"horizontal", "vertical", "both"},
	}}
}

func (mirrorEffect) Shader() string { return mirrorShaderSrc }

func mirrorAxes(v Values) (h, vert bool) {
	switch v.Enum("axis", "horizontal") {
	case "vertical":
		return false, true
	case "both":
		return true, true
	}
	return true, false
}

func (mirrorEffect) Uniforms(v Values, _, _ int) map[string]any {
	h, vert := mirrorAxes(v)
	u := map[string]any{"Horizontal": float32(0), "Vertical": float32(0)}
	if h {
		u["Horizontal"] = float32(1)
	}
	if vert {
		u["Vertical"] = float32(1)
	}
	return u
}

// ProcessPixels reflects the left half onto the right half (and top onto
// bottom), matching the texel-center mapping of the shader.
func (mirrorEffect) ProcessPixels(src, dst *Pixmap, v Values) {
	h, vert := mirrorAxes(v)
	for y := 0; y < src.Height; y++ {
		sy := y
		if vert && 2*y+1 > src.Height {
			sy = src.Height - 1 - y
		}
		for x := 0; x < src.Width; x++ {
			sx := x
			if h && 2*x+1 > src.Width {
				sx = src.Width - 1 - x
			}
			dst.SetPixel(x, y, src.Pixel(sx, sy))
		}
	}
}

// --- transform (host) ---

type transformEffect struct{}

func (transformEffect) Type() string { return "transform" }

func (transformEffect) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "offset", Kind: KindVec2, Default: Vec2Value(Vec2{})},
		floatSpec("scale", 0.01, 10, 1),
		floatSpec("rotation", -2*math.Pi, 2*math.Pi, 0),
		// spin is radians per beat.
		floatSpec("spin", -2*math.Pi, 2*math.Pi, 0),
	}
}

// Transform returns the offset placement for this tick.
func (transformEffect) Transform(v Values, c *Clock) Transform2D {
	s := v.Float("scale", 1)
	rot := v.Float("rotation", 0)
	if c != nil {
		rot += v.Float("spin", 0) * c.Beat
	}
	return Transform2D{
		Position: v.Vec2("offset", Vec2{}),
		Scale:    Vec2{s, s},
		Rotation: rot,
	}
}
