package gpu

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/prism"
)

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine images hold premultiplied
// alpha; shaders un-premultiply before processing and re-premultiply output.

// slicePostShaderSrc applies slice color correction, edge blend, shape
// coverage and, for key slices, the luma matte conversion.
const slicePostShaderSrc = `//kage:unit pixels
package main

var Size vec2
var Correct float
var Brightness float
var Contrast float
var Saturation float
var Gamma float
var RGB vec3
var EdgeLeft vec3
var EdgeRight vec3
var EdgeTop vec3
var EdgeBottom vec3
var BlackLevel float
var HasCoverage float
var Key float

// edgeFactor takes (enabled, width, gamma) and a distance from the edge.
func edgeFactor(r vec3, d float) float {
	if r.x == 0 || r.y <= 0 || d >= r.y {
		return 1
	}
	if d <= 0 {
		return 0
	}
	return pow(d/r.y, r.z)
}

func inEdge(r vec3, d float) bool {
	return r.x != 0 && r.y > 0 && d < r.y
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	uv := (src - imageSrc0Origin()) / Size

	if Correct != 0 {
		rgb := c.rgb + Brightness
		rgb = (rgb-0.5)*Contrast + 0.5
		l := dot(rgb, vec3(0.2126, 0.7152, 0.0722))
		rgb = mix(vec3(l), rgb, Saturation)
		rgb = pow(max(rgb, vec3(0)), vec3(1/Gamma))
		c.rgb = clamp(rgb*RGB, 0, 1)
	}

	if BlackLevel > 0 && !inEdge(EdgeLeft, uv.x) && !inEdge(EdgeRight, 1-uv.x) && !inEdge(EdgeTop, uv.y) && !inEdge(EdgeBottom, 1-uv.y) {
		c.rgb = BlackLevel + c.rgb*(1-BlackLevel)
	}
	a := c.a
	a *= edgeFactor(EdgeLeft, uv.x) * edgeFactor(EdgeRight, 1-uv.x)
	a *= edgeFactor(EdgeTop, uv.y) * edgeFactor(EdgeBottom, 1-uv.y)
	if HasCoverage != 0 {
		a *= imageSrc1At(src).a
	}

	if Key != 0 {
		l := dot(c.rgb, vec3(0.2126, 0.7152, 0.0722))
		return vec4(vec3(l*a), a)
	}
	return vec4(c.rgb*a, a)
}
`

// screenColorShaderSrc applies screen color correction.
const screenColorShaderSrc = `//kage:unit pixels
package main

var Brightness float
var Contrast float
var Saturation float
var Gamma float
var RGB vec3

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	rgb := c.rgb + Brightness
	rgb = (rgb-0.5)*Contrast + 0.5
	l := dot(rgb, vec3(0.2126, 0.7152, 0.0722))
	rgb = mix(vec3(l), rgb, Saturation)
	rgb = pow(max(rgb, vec3(0)), vec3(1/Gamma))
	rgb = clamp(rgb*RGB, 0, 1)
	return vec4(rgb*c.a, c.a)
}
`

// --- Lazy shader compilation (render goroutine only) ---

var (
	slicePostShader   *ebiten.Shader
	screenColorShader *ebiten.Shader
)

func ensureSlicePostShader() *ebiten.Shader {
	if slicePostShader == nil {
		s, err := ebiten.NewShader([]byte(slicePostShaderSrc))
		if err != nil {
			panic("prism/gpu: failed to compile slice post shader: " + err.Error())
		}
		slicePostShader = s
	}
	return slicePostShader
}

func ensureScreenColorShader() *ebiten.Shader {
	if screenColorShader == nil {
		s, err := ebiten.NewShader([]byte(screenColorShaderSrc))
		if err != nil {
			panic("prism/gpu: failed to compile screen color shader: " + err.Error())
		}
		screenColorShader = s
	}
	return screenColorShader
}

// colorUniforms maps a color correction to shader uniforms.
func colorUniforms(u map[string]any, cc prism.ColorCorrection) {
	u["Brightness"] = float32(cc.Brightness)
	u["Contrast"] = float32(cc.Contrast)
	u["Saturation"] = float32(cc.Saturation)
	u["Gamma"] = float32(cc.Gamma)
	u["RGB"] = []float32{float32(cc.RGB[0]), float32(cc.RGB[1]), float32(cc.RGB[2])}
}

func edgeUniform(r prism.EdgeBlendRegion) []float32 {
	var on float32
	if r.Enabled {
		on = 1
	}
	return []float32{on, float32(r.Width), float32(r.Gamma)}
}

// slicePostUniforms builds the uniforms of slicePostShaderSrc for s drawn at
// w x h pixels.
func slicePostUniforms(s *prism.Slice, w, h int, hasCoverage bool) map[string]any {
	u := map[string]any{
		"Size":        []float32{float32(w), float32(h)},
		"Correct":     boolFloat(!s.Color.IsIdentity()),
		"EdgeLeft":    edgeUniform(s.EdgeBlend.Left),
		"EdgeRight":   edgeUniform(s.EdgeBlend.Right),
		"EdgeTop":     edgeUniform(s.EdgeBlend.Top),
		"EdgeBottom":  edgeUniform(s.EdgeBlend.Bottom),
		"BlackLevel":  float32(s.EdgeBlend.BlackLevel),
		"HasCoverage": boolFloat(hasCoverage),
		"Key":         boolFloat(s.IsKey),
	}
	colorUniforms(u, s.Color)
	return u
}

func boolFloat(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
