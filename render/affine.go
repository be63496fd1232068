// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

// Affine is a 2D affine transform in the row form used by Uniforms:
// x' = A*x + C*y + E, y' = B*x + D*y + F.
type Affine struct {
	A, B, C, D, E, F float64
}

// Rows returns the transform as two padded uniform rows.
func (m Affine) Rows() [2][4]float32 {
	return [2][4]float32{
		{float32(m.A), float32(m.C), float32(m.E), 0},
		{float32(m.B), float32(m.D), float32(m.F), 0},
	}
}

// Then returns the transform applying m first and n second.
func (m Affine) Then(n Affine) Affine {
	return Affine{
		A: n.A*m.A + n.C*m.B,
		B: n.B*m.A + n.D*m.B,
		C: n.A*m.C + n.C*m.D,
		D: n.B*m.C + n.D*m.D,
		E: n.A*m.E + n.C*m.F + n.E,
		F: n.B*m.E + n.D*m.F + n.F,
	}
}

// Apply transforms a point.
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// ClipSpace maps pixel coordinates of a width x height target, y down, to
// clip space, y up.
func ClipSpace(width, height int) Affine {
	return Affine{A: 2 / float64(width), D: -2 / float64(height), E: -1, F: 1}
}

// PixelSpace is the inverse of ClipSpace.
func PixelSpace(width, height int) Affine {
	return Affine{A: float64(width) / 2, D: -float64(height) / 2, E: float64(width) / 2, F: float64(height) / 2}
}
