package gpu

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/prism"
)

// blendMultiply is mix(c, c*s, a) on premultiplied input: c*s' + c*(1-a).
var blendMultiply = ebiten.Blend{
	BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
	BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
	BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
	BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
	BlendOperationRGB:           ebiten.BlendOperationAdd,
	BlendOperationAlpha:         ebiten.BlendOperationAdd,
}

// ebitenBlend returns the ebiten.Blend value corresponding to a layer blend
// mode. Premultiplied source with layer opacity folded into its color scale
// reproduces the software formulas.
func ebitenBlend(b prism.BlendMode) ebiten.Blend {
	switch b {
	case prism.BlendAdd:
		return ebiten.BlendLighter
	case prism.BlendMultiply:
		return blendMultiply
	case prism.BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	default:
		return ebiten.BlendSourceOver
	}
}

// keyBlend multiplies what is beneath a key slice by its matte. The matte
// image holds (l*a, l*a, l*a, a), so this is the same multiply blend.
var keyBlend = blendMultiply
