package displaylist

import "math"

// Filter is a group filter effect. Implementations are BlurFilter and
// ColorMatrixFilter.
type Filter interface {
	// Padding returns how far the filter spreads content outside the
	// group bounds, in pixels.
	Padding() (dx, dy float64)
	filter()
}

// BlurFilter blurs a group. BlurX and BlurY are box widths in pixels and
// Quality is the number of box passes, as in SWF content.
type BlurFilter struct {
	BlurX, BlurY float32
	Quality      int
}

// Padding returns the extent of the blur.
func (f *BlurFilter) Padding() (float64, float64) {
	q := float64(max(f.Quality, 1))
	return math.Ceil(float64(f.BlurX) / 2 * q), math.Ceil(float64(f.BlurY) / 2 * q)
}

func (*BlurFilter) filter() {}

// ColorMatrixFilter applies a 4x5 matrix to straight RGBA. The fifth
// column holds offsets in 0..255.
type ColorMatrixFilter struct {
	Matrix [20]float32
}

// Padding returns zero; a color matrix does not move content.
func (*ColorMatrixFilter) Padding() (float64, float64) { return 0, 0 }

func (*ColorMatrixFilter) filter() {}
