package blend

// Formula is a blend that needs the backdrop color in the fragment program.
//
// Separable formulas follow W3C Compositing and Blending Level 1:
//
//	result = (1 - Sa) * D + (1 - Da) * S + Sa * Da * B(Cs, Cb)
//
// where Cs and Cb are the unpremultiplied source and backdrop.
type Formula uint8

// Blend formulas. The numeric values are shared with the shader code and
// must not be reordered.
const (
	FormulaNormal Formula = iota
	FormulaMultiply
	FormulaScreen
	FormulaLighten
	FormulaDarken
	FormulaDifference
	FormulaOverlay
	FormulaHardLight
	FormulaInvert
	FormulaAdd
	FormulaSubtract
)

var formulaNames = [...]string{
	"normal", "multiply", "screen", "lighten", "darken", "difference",
	"overlay", "hardlight", "invert", "add", "subtract",
}

// String returns the formula name.
func (f Formula) String() string {
	if int(f) < len(formulaNames) {
		return formulaNames[f]
	}
	return "unknown"
}

// Apply composites src over the backdrop dst with formula f.
func (f Formula) Apply(src, dst Color) Color {
	switch f {
	case FormulaMultiply:
		return separable(src, dst, func(s, d float32) float32 { return s * d })
	case FormulaScreen:
		return separable(src, dst, func(s, d float32) float32 { return s + d - s*d })
	case FormulaLighten:
		return separable(src, dst, func(s, d float32) float32 { return max(s, d) })
	case FormulaDarken:
		return separable(src, dst, func(s, d float32) float32 { return min(s, d) })
	case FormulaDifference:
		return separable(src, dst, func(s, d float32) float32 {
			if s > d {
				return s - d
			}
			return d - s
		})
	case FormulaOverlay:
		return separable(src, dst, func(s, d float32) float32 { return hardLight(d, s) })
	case FormulaHardLight:
		return separable(src, dst, hardLight)
	case FormulaInvert:
		// The backdrop is inverted wherever the source has coverage; the
		// source color itself is ignored.
		sa := src[3]
		return Color{
			dst[0]*(1-sa) + (dst[3]-dst[0])*sa,
			dst[1]*(1-sa) + (dst[3]-dst[1])*sa,
			dst[2]*(1-sa) + (dst[3]-dst[2])*sa,
			dst[3],
		}
	case FormulaAdd:
		return clampColor(Color{src[0] + dst[0], src[1] + dst[1], src[2] + dst[2], src[3] + dst[3]})
	case FormulaSubtract:
		return clampColor(Color{dst[0] - src[0], dst[1] - src[1], dst[2] - src[2], dst[3]})
	default:
		return SourceOver.Apply(src, dst)
	}
}

// hardLight is B(Cs, Cb): multiply below half intensity, screen above.
func hardLight(s, d float32) float32 {
	if s <= 0.5 {
		return 2 * s * d
	}
	return 1 - 2*(1-s)*(1-d)
}

func separable(src, dst Color, b func(s, d float32) float32) Color {
	sa, da := src[3], dst[3]
	if sa == 0 {
		return dst
	}
	if da == 0 {
		return src
	}

	out := Color{0, 0, 0, sa + da*(1-sa)}
	for i := 0; i < 3; i++ {
		cs, cb := src[i]/sa, dst[i]/da
		out[i] = (1-sa)*dst[i] + (1-da)*src[i] + sa*da*b(cs, cb)
	}
	return clampColor(out)
}

func clampColor(c Color) Color {
	for i := range c {
		c[i] = clamp01(c[i])
	}
	return c
}
