package gpu

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"

	"github.com/phanxgames/prism"
)

// shaderCache compiles effect programs once per effect type. A program that
// fails to compile is remembered as nil and its passes are skipped.
type shaderCache struct {
	shaders map[string]*ebiten.Shader
}

func (c *shaderCache) get(e prism.ShaderEffect) *ebiten.Shader {
	if c.shaders == nil {
		c.shaders = make(map[string]*ebiten.Shader)
	}
	tag := e.Type()
	if s, ok := c.shaders[tag]; ok {
		return s
	}
	s, err := ebiten.NewShader([]byte(e.Shader()))
	if err != nil {
		prism.Logger().WithFields(logrus.Fields{
			"function": "shaderCache.get",
			"effect":   tag,
		}).WithError(err).Warn("shader compile failed, effect passes through")
		s = nil
	}
	c.shaders[tag] = s
	return s
}

func (c *shaderCache) dispose() {
	for _, s := range c.shaders {
		if s != nil {
			s.Deallocate()
		}
	}
	c.shaders = nil
}

// applyPasses runs the shader passes of a layer chain, ping-ponging between
// src and a pooled scratch image. It returns the final image and the one
// left over for release; either may be src.
func applyPasses(passes []prism.EffectPass, src *ebiten.Image, pool *renderTexturePool, cache *shaderCache) (result, spare *ebiten.Image) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	current := src
	var scratch *ebiten.Image

	for _, p := range passes {
		if p.Shader == nil {
			continue
		}
		sh := cache.get(p.Shader)
		if sh == nil {
			continue
		}
		if scratch == nil {
			scratch = pool.Acquire(w, h)
		} else {
			scratch.Clear()
		}
		var op ebiten.DrawRectShaderOptions
		op.Images[0] = current
		op.Uniforms = p.Shader.Uniforms(p.Values, w, h)
		op.Blend = ebiten.BlendCopy
		scratch.DrawRectShader(w, h, sh, &op)
		current, scratch = scratch, current
	}

	return current, scratch
}
