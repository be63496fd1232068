package filter

// IdentityMatrix is the color matrix that leaves colors unchanged.
var IdentityMatrix = [20]float32{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// NormalizeMatrix converts a 4x5 color matrix whose offsets (column 4) are
// in 0..255 into one that operates on 0..1 channels.
//
//	[R']   [a00 a01 a02 a03 a04]   [R]
//	[G'] = [a10 a11 a12 a13 a14] * [G]
//	[B']   [a20 a21 a22 a23 a24]   [B]
//	[A']   [a30 a31 a32 a33 a34]   [A]
//	                               [1]
func NormalizeMatrix(m [20]float32) [20]float32 {
	for row := 0; row < 4; row++ {
		m[row*5+4] /= 255
	}
	return m
}

// ApplyMatrix applies a normalized color matrix to a premultiplied color.
// The matrix operates on straight alpha, so the color is unpremultiplied
// first and premultiplied again after clamping.
func ApplyMatrix(m [20]float32, c [4]float32) [4]float32 {
	var s [4]float32
	if a := c[3]; a > 0 {
		s = [4]float32{c[0] / a, c[1] / a, c[2] / a, a}
	}

	var out [4]float32
	for row := 0; row < 4; row++ {
		r := m[row*5:]
		v := r[0]*s[0] + r[1]*s[1] + r[2]*s[2] + r[3]*s[3] + r[4]
		out[row] = min(max(v, 0), 1)
	}
	a := out[3]
	return [4]float32{out[0] * a, out[1] * a, out[2] * a, a}
}
