package mesh

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/path"
	"github.com/gogpu/stage/upload"
)

// Ramp renders the stops of g into upload.RampWidth premultiplied RGBA8
// texels. Texel i holds the color at ratio i/(RampWidth-1).
func Ramp(g *displaylist.Gradient) []byte {
	pix := make([]byte, upload.RampWidth*4)
	for i := range upload.RampWidth {
		t := float32(i) / (upload.RampWidth - 1)
		c := displaylist.Premultiply(stopColor(g, t))
		for k, v := range c {
			pix[i*4+k] = uint8(v*255 + 0.5)
		}
	}
	return pix
}

// stopColor interpolates the straight color of g at ratio t.
func stopColor(g *displaylist.Gradient, t float32) [4]float32 {
	stops := g.Stops
	if t <= stops[0].Ratio {
		return stops[0].Color.Straight()
	}
	last := stops[len(stops)-1]
	if t >= last.Ratio {
		return last.Color.Straight()
	}
	for i := 1; i < len(stops); i++ {
		b := stops[i]
		if t > b.Ratio {
			continue
		}
		a := stops[i-1]
		span := b.Ratio - a.Ratio
		if span <= 0 {
			return b.Color.Straight()
		}
		return mix(a.Color.Straight(), b.Color.Straight(), (t-a.Ratio)/span, g.Interpolation)
	}
	return last.Color.Straight()
}

func mix(a, b [4]float32, f float32, interp displaylist.Interpolation) [4]float32 {
	var out [4]float32
	for k := range 3 {
		if interp == displaylist.InterpolationLinearRGB {
			out[k] = toSRGB(lerp(toLinear(a[k]), toLinear(b[k]), f))
		} else {
			out[k] = lerp(a[k], b[k], f)
		}
	}
	out[3] = lerp(a[3], b[3], f)
	return out
}

func lerp(a, b, f float32) float32 { return a + (b-a)*f }

func toLinear(c float32) float32 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math32.Pow((c+0.055)/1.055, 2.4)
}

func toSRGB(c float32) float32 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math32.Pow(c, 1/2.4) - 0.055
}

// vertexGradient returns a per-vertex color function when g can be drawn
// exactly with interpolated vertex colors: a linear RGB gradient with two
// stops of equal alpha whose ratio span covers every vertex, so no
// clamping region exists inside a triangle.
func vertexGradient(g *displaylist.Gradient, toGradient displaylist.Matrix, verts []path.Point) (func(path.Point) [4]float32, bool) {
	if g.Kind != displaylist.GradientLinear || len(g.Stops) != 2 ||
		g.Interpolation != displaylist.InterpolationRGB {
		return nil, false
	}
	a, b := g.Stops[0], g.Stops[1]
	if a.Color.A != b.Color.A || b.Ratio <= a.Ratio {
		return nil, false
	}
	const eps = 1e-4
	ratio := func(p path.Point) float32 {
		x, _ := toGradient.Apply(float64(p.X), float64(p.Y))
		return float32(x+1) / 2
	}
	for _, p := range verts {
		if t := ratio(p); t < a.Ratio-eps || t > b.Ratio+eps {
			return nil, false
		}
	}
	ca, cb := a.Color.Premultiplied(), b.Color.Premultiplied()
	span := b.Ratio - a.Ratio
	return func(p path.Point) [4]float32 {
		f := min(max((ratio(p)-a.Ratio)/span, 0), 1)
		var out [4]float32
		for k := range out {
			out[k] = lerp(ca[k], cb[k], f)
		}
		return out
	}, true
}
