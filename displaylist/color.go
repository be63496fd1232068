package displaylist

// Color is an 8-bit RGBA color with straight (non-premultiplied) alpha,
// as stored in SWF content.
type Color struct {
	R, G, B, A uint8
}

// Common colors.
var (
	Transparent = Color{}
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
)

// RGBA returns an opaque color when a is 255.
func RGBA(r, g, b, a uint8) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// Straight returns c as 0..1 floats with straight alpha.
func (c Color) Straight() [4]float32 {
	return [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
}

// Premultiplied returns c as 0..1 floats with premultiplied alpha.
func (c Color) Premultiplied() [4]float32 {
	return Premultiply(c.Straight())
}

// Premultiply converts a straight 0..1 color to premultiplied alpha.
func Premultiply(s [4]float32) [4]float32 {
	return [4]float32{s[0] * s[3], s[1] * s[3], s[2] * s[3], s[3]}
}

// ColorTransform is a per-channel multiply-add applied to straight colors:
//
//	c' = clamp(c*Mult + Add)
//
// Channels are in 0..1, so an SWF add term of 255 is 1.0 here.
type ColorTransform struct {
	Mult [4]float32
	Add  [4]float32
}

// IdentityColorTransform returns the transform that leaves colors unchanged.
func IdentityColorTransform() ColorTransform {
	return ColorTransform{Mult: [4]float32{1, 1, 1, 1}}
}

// AlphaTransform returns a transform that scales alpha by a.
func AlphaTransform(a float32) ColorTransform {
	return ColorTransform{Mult: [4]float32{1, 1, 1, a}}
}

// IsIdentity reports whether ct leaves colors unchanged. The zero value is
// treated as identity so unset fields behave.
func (ct ColorTransform) IsIdentity() bool {
	return ct == ColorTransform{} || ct == IdentityColorTransform()
}

// Normalized returns ct with the zero value mapped to identity.
func (ct ColorTransform) Normalized() ColorTransform {
	if ct == (ColorTransform{}) {
		return IdentityColorTransform()
	}
	return ct
}

// Concat returns the transform that applies child first, then ct.
func (ct ColorTransform) Concat(child ColorTransform) ColorTransform {
	p, c := ct.Normalized(), child.Normalized()
	var out ColorTransform
	for i := 0; i < 4; i++ {
		out.Mult[i] = p.Mult[i] * c.Mult[i]
		out.Add[i] = p.Mult[i]*c.Add[i] + p.Add[i]
	}
	return out
}

// Apply transforms a straight 0..1 color.
func (ct ColorTransform) Apply(s [4]float32) [4]float32 {
	ct = ct.Normalized()
	var out [4]float32
	for i := range out {
		out[i] = min(max(s[i]*ct.Mult[i]+ct.Add[i], 0), 1)
	}
	return out
}
