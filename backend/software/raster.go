package software

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/render"
)

// subpixel is the fixed-point scale of snapped vertex positions.
const subpixel = 256

// samplePattern holds sample offsets in 1/256 pixel units.
var samplePattern = map[int][][2]int64{
	1: {{128, 128}},
	2: {{192, 192}, {64, 64}},
	4: {{96, 32}, {224, 96}, {32, 160}, {160, 224}},
}

// target is the destination of a render pass.
type target struct {
	tex     *texture
	w, h    int
	samples int
}

func (d *Device) renderPass(p *render.Pass) error {
	tex, ok := d.textures[p.Target]
	if !ok {
		return fmt.Errorf("target: %w", render.ErrInvalidHandle)
	}
	n := max(p.Samples, 1)
	if _, ok := samplePattern[n]; !ok {
		return fmt.Errorf("%d samples: %w", n, render.ErrUnsupported)
	}
	t := &target{tex: tex, w: tex.desc.Width, h: tex.desc.Height, samples: n}
	t.begin(p.Load, blend.Color(p.Clear))

	for i := range p.Draws {
		if err := d.draw(t, &p.Draws[i]); err != nil {
			return fmt.Errorf("draw %d: %w", i, err)
		}
		d.draws.Add(1)
	}
	t.resolve()
	return nil
}

// begin prepares the sample storage for a pass.
func (t *target) begin(load render.LoadOp, clearColor blend.Color) {
	tex := t.tex
	if t.samples == 1 {
		if load == render.LoadClear {
			fillPix(tex.pix, clearColor)
		}
		return
	}
	size := t.w * t.h * t.samples * 4
	fresh := tex.samples != t.samples || len(tex.msaa) != size
	if fresh {
		tex.msaa = make([]float32, size)
		tex.samples = t.samples
	}
	switch {
	case load == render.LoadClear:
		for i := 0; i < len(tex.msaa); i += 4 {
			copy(tex.msaa[i:i+4], clearColor[:])
		}
	case fresh || tex.msaaDirt:
		// Continue from the resolved pixels.
		for px := 0; px < t.w*t.h; px++ {
			c := pixColor(tex.pix, px*4)
			for s := 0; s < t.samples; s++ {
				copy(tex.msaa[(px*t.samples+s)*4:], c[:])
			}
		}
	}
	tex.msaaDirt = false
}

// resolve averages samples into the target pixels.
func (t *target) resolve() {
	tex := t.tex
	if t.samples == 1 {
		tex.msaaDirt = true
		return
	}
	inv := 1 / float32(t.samples)
	for px := 0; px < t.w*t.h; px++ {
		var sum blend.Color
		base := px * t.samples * 4
		for s := 0; s < t.samples; s++ {
			for c := 0; c < 4; c++ {
				sum[c] += tex.msaa[base+s*4+c]
			}
		}
		for c := 0; c < 4; c++ {
			tex.pix[px*4+c] = toByte(sum[c] * inv)
		}
	}
}

func (t *target) load(px, s int) blend.Color {
	if t.samples == 1 {
		return pixColor(t.tex.pix, px*4)
	}
	var c blend.Color
	copy(c[:], t.tex.msaa[(px*t.samples+s)*4:])
	return c
}

func (t *target) store(px, s int, c blend.Color) {
	if t.samples == 1 {
		for i := 0; i < 4; i++ {
			t.tex.pix[px*4+i] = toByte(c[i])
		}
		return
	}
	copy(t.tex.msaa[(px*t.samples+s)*4:], c[:])
}

func fillPix(pix []uint8, c blend.Color) {
	b := [4]uint8{toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3])}
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], b[:])
	}
}

func pixColor(pix []uint8, i int) blend.Color {
	return blend.Color{
		float32(pix[i]) / 255,
		float32(pix[i+1]) / 255,
		float32(pix[i+2]) / 255,
		float32(pix[i+3]) / 255,
	}
}

func toByte(v float32) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// drawState is everything a draw's fragments need.
type drawState struct {
	pipe     render.PipelineDesc
	state    blend.State
	uniforms render.Uniforms
	textures [2]*boundTexture
	verts    []render.Vertex
}

type boundTexture struct {
	tex  *texture
	mode render.SamplerMode
}

func (d *Device) draw(t *target, dr *render.Draw) error {
	pipe, ok := d.pipelines[dr.Pipeline]
	if !ok {
		return fmt.Errorf("pipeline: %w", render.ErrInvalidHandle)
	}
	if pipe.Samples != t.samples {
		return fmt.Errorf("pipeline has %d samples, pass has %d", pipe.Samples, t.samples)
	}
	ds := drawState{pipe: pipe, state: pipe.Blend.Factors()}

	ub, err := d.bufferRange(dr.Uniforms, render.UniformSize)
	if err != nil {
		return fmt.Errorf("uniforms: %w", err)
	}
	if ds.uniforms, err = render.DecodeUniforms(ub); err != nil {
		return err
	}
	vb, err := d.bufferRange(dr.Vertices, 0)
	if err != nil {
		return fmt.Errorf("vertices: %w", err)
	}
	ds.verts = render.DecodeVertices(vb)
	ib, err := d.bufferRange(dr.Indices, dr.IndexCount*4)
	if err != nil {
		return fmt.Errorf("indices: %w", err)
	}
	for i := 0; i < pipe.Variant.Textures(); i++ {
		b := dr.Textures[i]
		tex, ok := d.textures[b.Texture]
		if !ok {
			return fmt.Errorf("texture slot %d: %w", i, render.ErrInvalidHandle)
		}
		ds.textures[i] = &boundTexture{tex: tex, mode: b.Sampler}
	}

	clip := image.Rect(0, 0, t.w, t.h)
	if !dr.Scissor.Empty() {
		clip = clip.Intersect(dr.Scissor)
	}
	toPixels := render.PixelSpace(t.w, t.h)
	for i := 0; i+2 < dr.IndexCount; i += 3 {
		var tri [3]int
		for k := range tri {
			idx := int(binary.LittleEndian.Uint32(ib[(i+k)*4:]))
			if idx >= len(ds.verts) {
				return fmt.Errorf("index %d out of range of %d vertices", idx, len(ds.verts))
			}
			tri[k] = idx
		}
		ds.triangle(t, clip, toPixels, tri)
	}
	return nil
}

func (d *Device) bufferRange(r render.BufferRange, need int) ([]byte, error) {
	b, ok := d.buffers[r.Buffer]
	if !ok {
		return nil, render.ErrInvalidHandle
	}
	size := r.Size
	if need > 0 {
		size = need
	}
	if r.Offset < 0 || r.Offset+size > len(b.data) {
		return nil, fmt.Errorf("range %d+%d outside buffer of %d", r.Offset, size, len(b.data))
	}
	return b.data[r.Offset : r.Offset+size], nil
}

// triangle rasterizes one triangle into t.
func (ds *drawState) triangle(t *target, clip image.Rectangle, toPixels render.Affine, tri [3]int) {
	u := &ds.uniforms
	var px, py [3]float64
	var fx, fy [3]int64
	for k, vi := range tri {
		v := ds.verts[vi]
		cx := float64(u.Transform[0][0])*float64(v.X) + float64(u.Transform[0][1])*float64(v.Y) + float64(u.Transform[0][2])
		cy := float64(u.Transform[1][0])*float64(v.X) + float64(u.Transform[1][1])*float64(v.Y) + float64(u.Transform[1][2])
		px[k], py[k] = toPixels.Apply(cx, cy)
		if math.IsNaN(px[k]) || math.IsNaN(py[k]) || math.Abs(px[k]) > 1<<20 || math.Abs(py[k]) > 1<<20 {
			return
		}
		fx[k] = int64(math.Round(px[k] * subpixel))
		fy[k] = int64(math.Round(py[k] * subpixel))
	}

	area := edge(fx[0], fy[0], fx[1], fy[1], fx[2], fy[2])
	if area == 0 {
		return
	}
	if area < 0 {
		tri[1], tri[2] = tri[2], tri[1]
		px[1], px[2] = px[2], px[1]
		py[1], py[2] = py[2], py[1]
		fx[1], fx[2] = fx[2], fx[1]
		fy[1], fy[2] = fy[2], fy[1]
		area = -area
	}

	minX := int(math.Floor(min(px[0], px[1], px[2])))
	maxX := int(math.Ceil(max(px[0], px[1], px[2])))
	minY := int(math.Floor(min(py[0], py[1], py[2])))
	maxY := int(math.Ceil(max(py[0], py[1], py[2])))
	r := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(clip)
	if r.Empty() {
		return
	}

	var topLeft [3]bool
	for k := 0; k < 3; k++ {
		a, b := (k+1)%3, (k+2)%3
		dx, dy := fx[b]-fx[a], fy[b]-fy[a]
		topLeft[k] = dy > 0 || (dy == 0 && dx < 0)
	}

	pattern := samplePattern[t.samples]
	fa := float64(area)
	va, vb, vc := ds.verts[tri[0]], ds.verts[tri[1]], ds.verts[tri[2]]
	var covered [4]bool
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			hit := false
			for s, off := range pattern {
				sx := int64(x)*subpixel + off[0]
				sy := int64(y)*subpixel + off[1]
				covered[s] = inside(fx, fy, sx, sy, topLeft)
				hit = hit || covered[s]
			}
			if !hit {
				continue
			}

			// Shade once per pixel at its center.
			cx := int64(x)*subpixel + subpixel/2
			cy := int64(y)*subpixel + subpixel/2
			w0 := float64(edge(fx[1], fy[1], fx[2], fy[2], cx, cy)) / fa
			w1 := float64(edge(fx[2], fy[2], fx[0], fy[0], cx, cy)) / fa
			w2 := 1 - w0 - w1
			frag := fragment{
				x: float32(w0*float64(va.X) + w1*float64(vb.X) + w2*float64(vc.X)),
				y: float32(w0*float64(va.Y) + w1*float64(vb.Y) + w2*float64(vc.Y)),
			}
			for c := 0; c < 4; c++ {
				frag.color[c] = float32(w0*float64(va.Color[c]) + w1*float64(vb.Color[c]) + w2*float64(vc.Color[c]))
			}
			src := ds.shade(frag)

			pxi := y*t.w + x
			for s := range pattern {
				if covered[s] {
					t.store(pxi, s, ds.state.Apply(src, t.load(pxi, s)))
				}
			}
		}
	}
}

// edge is twice the signed area of (a, b, p).
func edge(ax, ay, bx, by, px, py int64) int64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func inside(fx, fy [3]int64, sx, sy int64, topLeft [3]bool) bool {
	for k := 0; k < 3; k++ {
		a, b := (k+1)%3, (k+2)%3
		e := edge(fx[a], fy[a], fx[b], fy[b], sx, sy)
		if e < 0 || (e == 0 && !topLeft[k]) {
			return false
		}
	}
	return true
}
