// Package blend evaluates blending on premultiplied RGBA colors.
//
// Two families live here. Fixed-function blending (State) mirrors what a
// GPU color target does with blend factors and operations; the software
// backend runs it per sample. Formula blending (Formula) covers the modes
// a color target cannot express, such as overlay and difference; those run
// in a fragment program that reads a copy of the backdrop.
//
// All colors are premultiplied, with channels in 0..1.
package blend

// Color is a premultiplied RGBA color with channels in 0..1.
type Color [4]float32

// Factor is a blend factor.
type Factor uint8

// Blend factors.
const (
	Zero Factor = iota
	One
	Src
	OneMinusSrc
	SrcAlpha
	OneMinusSrcAlpha
	Dst
	OneMinusDst
	DstAlpha
	OneMinusDstAlpha
)

// Op combines the weighted source and destination.
type Op uint8

// Blend operations.
const (
	Add Op = iota
	Subtract
	ReverseSubtract
	Min
	Max
)

// Component describes how one part (color or alpha) is blended.
type Component struct {
	Src, Dst Factor
	Op       Op
}

// State is a complete fixed-function blend state.
type State struct {
	Color Component
	Alpha Component
}

// Common states.
var (
	// Premultiplied source-over.
	SourceOver = State{
		Color: Component{One, OneMinusSrcAlpha, Add},
		Alpha: Component{One, OneMinusSrcAlpha, Add},
	}
	// Replace writes the source unchanged.
	Replace = State{
		Color: Component{One, Zero, Add},
		Alpha: Component{One, Zero, Add},
	}
)

// Apply blends src onto dst with s. The result is clamped to 0..1, as a
// unorm color target would store it.
func (s State) Apply(src, dst Color) Color {
	var out Color
	for i := 0; i < 3; i++ {
		out[i] = s.Color.apply(i, src, dst)
	}
	out[3] = s.Alpha.apply(3, src, dst)
	for i := range out {
		out[i] = clamp01(out[i])
	}
	return out
}

func (c Component) apply(ch int, src, dst Color) float32 {
	s, d := src[ch], dst[ch]
	switch c.Op {
	case Min:
		return min(s, d)
	case Max:
		return max(s, d)
	}
	s *= factor(c.Src, ch, src, dst)
	d *= factor(c.Dst, ch, src, dst)
	switch c.Op {
	case Subtract:
		return s - d
	case ReverseSubtract:
		return d - s
	default:
		return s + d
	}
}

func factor(f Factor, ch int, src, dst Color) float32 {
	switch f {
	case One:
		return 1
	case Src:
		return src[ch]
	case OneMinusSrc:
		return 1 - src[ch]
	case SrcAlpha:
		return src[3]
	case OneMinusSrcAlpha:
		return 1 - src[3]
	case Dst:
		return dst[ch]
	case OneMinusDst:
		return 1 - dst[ch]
	case DstAlpha:
		return dst[3]
	case OneMinusDstAlpha:
		return 1 - dst[3]
	default:
		return 0
	}
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
