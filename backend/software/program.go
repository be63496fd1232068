package software

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/render"
)

// fragment is the interpolated input of a fragment program: the vertex
// position before the transform and the vertex color.
type fragment struct {
	x, y  float32
	color blend.Color
}

// shade runs the fragment program of the pipeline's variant.
func (ds *drawState) shade(f fragment) blend.Color {
	u := &ds.uniforms
	px, py := paint(u, f.x, f.y)

	switch ds.pipe.Variant {
	case render.VariantColor:
		return colorTransform(u, f.color)
	case render.VariantGradient:
		t := gradientT(int(u.Params[0]), u.Params[2], px, py)
		t = spread(int(u.Params[1]), t)
		c := ds.textures[0].sample((t*255+0.5)/256, 0.5)
		return colorTransform(u, mul(c, f.color))
	case render.VariantBitmap:
		c := ds.textures[0].sample(px, py)
		return colorTransform(u, mul(c, f.color))
	case render.VariantCopy:
		c := ds.textures[0].sample(px, py)
		return lift(u, colorTransform(u, mul(c, f.color)))
	case render.VariantAlphaMask:
		c := ds.textures[0].sample(px, py)
		m := ds.textures[1].sample(px, py)
		return lift(u, colorTransform(u, scale(c, m[3])))
	case render.VariantLuminanceMask:
		c := ds.textures[0].sample(px, py)
		m := ds.textures[1].sample(px, py)
		return lift(u, colorTransform(u, scale(c, luminance(m))))
	case render.VariantBlur:
		return ds.blur(px, py)
	case render.VariantColorMatrix:
		return lift(u, colorMatrix(u, ds.textures[0].sample(px, py)))
	case render.VariantBlendFormula:
		src := colorTransform(u, ds.textures[0].sample(px, py))
		dst := ds.textures[1].sample(px, py)
		return blend.Formula(u.Params[0]).Apply(src, dst)
	default:
		return blend.Color{}
	}
}

// lift pads uncovered color with white when Params[LiftParam] is set.
func lift(u *render.Uniforms, c blend.Color) blend.Color {
	if w := u.Params[render.LiftParam]; w != 0 {
		for i := range 3 {
			c[i] += (1 - c[3]) * w
		}
	}
	return c
}

func paint(u *render.Uniforms, x, y float32) (float32, float32) {
	return u.Paint[0][0]*x + u.Paint[0][1]*y + u.Paint[0][2],
		u.Paint[1][0]*x + u.Paint[1][1]*y + u.Paint[1][2]
}

// gradientT maps a point in gradient space to a ramp position.
func gradientT(kind int, focal, x, y float32) float32 {
	switch kind {
	case render.GradientRadial:
		return math32.Hypot(x, y)
	case render.GradientFocal:
		// Distance along the ray from the focal point through (x, y) to
		// the unit circle.
		dx, dy := x-focal, y
		a := dx*dx + dy*dy
		if a == 0 {
			return 0
		}
		b := 2 * focal * dx
		c := focal*focal - 1
		disc := b*b - 4*a*c
		if disc < 0 {
			return 1
		}
		s := (-b + math32.Sqrt(disc)) / (2 * a)
		if s <= 0 {
			return 1
		}
		return 1 / s
	default:
		return (x + 1) / 2
	}
}

func spread(mode int, t float32) float32 {
	switch mode {
	case render.SpreadRepeat:
		return t - math32.Floor(t)
	case render.SpreadReflect:
		t = math32.Mod(math32.Abs(t), 2)
		if t > 1 {
			t = 2 - t
		}
		return t
	default:
		return min(max(t, 0), 1)
	}
}

// colorTransform applies the uniform color transform to premultiplied c.
func colorTransform(u *render.Uniforms, c blend.Color) blend.Color {
	if u.Mult == [4]float32{1, 1, 1, 1} && u.Add == [4]float32{} {
		return c
	}
	var s [4]float32
	if c[3] > 0 {
		for i := 0; i < 3; i++ {
			s[i] = c[i] / c[3]
		}
	}
	s[3] = c[3]
	for i := range s {
		s[i] = min(max(s[i]*u.Mult[i]+u.Add[i], 0), 1)
	}
	return blend.Color{s[0] * s[3], s[1] * s[3], s[2] * s[3], s[3]}
}

func colorMatrix(u *render.Uniforms, c blend.Color) blend.Color {
	var s [4]float32
	if c[3] > 0 {
		for i := 0; i < 3; i++ {
			s[i] = c[i] / c[3]
		}
	}
	s[3] = c[3]
	var out [4]float32
	for i := 0; i < 4; i++ {
		v := u.KernelAt(i*5 + 4)
		for j := 0; j < 4; j++ {
			v += u.KernelAt(i*5+j) * s[j]
		}
		out[i] = min(max(v, 0), 1)
	}
	return blend.Color{out[0] * out[3], out[1] * out[3], out[2] * out[3], out[3]}
}

func (ds *drawState) blur(x, y float32) blend.Color {
	u := &ds.uniforms
	dx, dy := u.Params[0], u.Params[1]
	taps := int(u.Params[2])
	tex := ds.textures[0]
	acc := scale(tex.sample(x, y), u.KernelAt(0))
	for i := 1; i < taps && i < 32; i++ {
		w := u.KernelAt(i)
		fi := float32(i)
		a := tex.sample(x+dx*fi, y+dy*fi)
		b := tex.sample(x-dx*fi, y-dy*fi)
		for c := 0; c < 4; c++ {
			acc[c] += w * (a[c] + b[c])
		}
	}
	return acc
}

func luminance(c blend.Color) float32 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}

func mul(a, b blend.Color) blend.Color {
	return blend.Color{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

func scale(c blend.Color, s float32) blend.Color {
	return blend.Color{c[0] * s, c[1] * s, c[2] * s, c[3] * s}
}

// sample reads the texture at normalized coordinates.
func (b *boundTexture) sample(u, v float32) blend.Color {
	w, h := b.tex.desc.Width, b.tex.desc.Height
	x := u*float32(w) - 0.5
	y := v*float32(h) - 0.5
	if b.mode&render.SampleSmooth == 0 {
		return b.texel(int(math32.Floor(x+0.5)), int(math32.Floor(y+0.5)))
	}
	x0, y0 := math32.Floor(x), math32.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	c00 := b.texel(ix, iy)
	c10 := b.texel(ix+1, iy)
	c01 := b.texel(ix, iy+1)
	c11 := b.texel(ix+1, iy+1)
	var out blend.Color
	for i := 0; i < 4; i++ {
		top := c00[i] + (c10[i]-c00[i])*fx
		bot := c01[i] + (c11[i]-c01[i])*fx
		out[i] = top + (bot-top)*fy
	}
	return out
}

func (b *boundTexture) texel(x, y int) blend.Color {
	w, h := b.tex.desc.Width, b.tex.desc.Height
	if b.mode&render.SampleRepeat != 0 {
		x = ((x % w) + w) % w
		y = ((y % h) + h) % h
	} else {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
	}
	return pixColor(b.tex.pix, (y*w+x)*4)
}
