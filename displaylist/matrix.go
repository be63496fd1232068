package displaylist

import "math"

// Matrix represents a 2D affine transformation matrix.
// It uses a 2x3 matrix in row-major order:
//
//	| a  b  c |
//	| d  e  f |
//
// This represents the transformation:
//
//	x' = a*x + b*y + c
//	y' = d*x + e*y + f
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transformation matrix.
func Identity() Matrix {
	return Matrix{A: 1, E: 1}
}

// OrIdentity returns m, or the identity when m is the zero value, so unset
// transforms in a display list behave.
func (m Matrix) OrIdentity() Matrix {
	if m == (Matrix{}) {
		return Identity()
	}
	return m
}

// Translate creates a translation matrix.
func Translate(x, y float64) Matrix {
	return Matrix{A: 1, C: x, E: 1, F: y}
}

// Scale creates a scaling matrix.
func Scale(x, y float64) Matrix {
	return Matrix{A: x, E: y}
}

// Rotate creates a rotation matrix (angle in radians).
func Rotate(angle float64) Matrix {
	sin, cos := math.Sincos(angle)
	return Matrix{
		A: cos, B: -sin,
		D: sin, E: cos,
	}
}

// Multiply multiplies two matrices (m * other). The result applies other
// first, then m.
func (m Matrix) Multiply(other Matrix) Matrix {
	return Matrix{
		A: m.A*other.A + m.B*other.D,
		B: m.A*other.B + m.B*other.E,
		C: m.A*other.C + m.B*other.F + m.C,
		D: m.D*other.A + m.E*other.D,
		E: m.D*other.B + m.E*other.E,
		F: m.D*other.C + m.E*other.F + m.F,
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.B*y + m.C, m.D*x + m.E*y + m.F
}

// Invert returns the inverse matrix and whether m was invertible.
func (m Matrix) Invert() (Matrix, bool) {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < 1e-12 {
		return Identity(), false
	}

	invDet := 1.0 / det
	return Matrix{
		A: m.E * invDet,
		B: -m.B * invDet,
		C: (m.B*m.F - m.C*m.E) * invDet,
		D: -m.D * invDet,
		E: m.A * invDet,
		F: (m.C*m.D - m.A*m.F) * invDet,
	}, true
}

// IsIdentity returns true if the matrix is the identity matrix.
func (m Matrix) IsIdentity() bool {
	return m == Identity()
}

// IsAxisAligned reports whether m maps axis-aligned rectangles to
// axis-aligned rectangles (scale, translation and 90 degree rotations).
func (m Matrix) IsAxisAligned() bool {
	return (m.B == 0 && m.D == 0) || (m.A == 0 && m.E == 0)
}

// ScaleFactor returns the largest axis scale of m.
func (m Matrix) ScaleFactor() float64 {
	return math.Max(math.Hypot(m.A, m.D), math.Hypot(m.B, m.E))
}

// TransformRect returns the bounding box of r transformed by m.
func (m Matrix) TransformRect(r Rect) Rect {
	if r.Empty() {
		return r
	}
	out := EmptyRect()
	for _, c := range [4][2]float64{{r.XMin, r.YMin}, {r.XMax, r.YMin}, {r.XMin, r.YMax}, {r.XMax, r.YMax}} {
		x, y := m.Apply(c[0], c[1])
		out = out.Extend(x, y)
	}
	return out
}
