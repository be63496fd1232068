package mesh

import (
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/path"
	"github.com/gogpu/stage/internal/stroke"
	"github.com/gogpu/stage/internal/tess"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/upload"
)

// PaintKind selects how a Draw is shaded.
type PaintKind uint8

// Paint kinds.
const (
	// PaintSolid draws vertex colors. Solid fills and per-vertex gradients
	// use it.
	PaintSolid PaintKind = iota
	// PaintGradient samples a gradient ramp.
	PaintGradient
	// PaintBitmap samples a bitmap.
	PaintBitmap
)

// String returns the paint name.
func (k PaintKind) String() string {
	switch k {
	case PaintGradient:
		return "gradient"
	case PaintBitmap:
		return "bitmap"
	default:
		return "solid"
	}
}

// Gradient is the paint of a ramp-sampled gradient draw.
type Gradient struct {
	// Kind and Spread use the render.Gradient* and render.Spread* values.
	Kind   int
	Spread int
	Focal  float32
	// Paint maps shape space to gradient space.
	Paint render.Affine
	// RampKey addresses Ramp in the uploader's ramp cache.
	RampKey uint64
	Ramp    []byte
}

// Bitmap is the paint of a bitmap fill draw.
type Bitmap struct {
	Bitmap *displaylist.Bitmap
	// Paint maps shape space to bitmap pixel space.
	Paint     render.Affine
	Repeat    bool
	Smoothing bool
}

// Draw is one style segment of a mesh: a contiguous index range with one
// paint.
type Draw struct {
	Paint      PaintKind
	FirstIndex int
	IndexCount int
	Gradient   *Gradient
	Bitmap     *Bitmap
}

// Mesh is a tessellated shape. It is transform independent and never
// modified after it is built.
type Mesh struct {
	ID       displaylist.ShapeID
	Vertices []render.Vertex
	Indices  []uint32
	Draws    []Draw
	Bounds   displaylist.Rect

	vertices upload.Allocation
	indices  upload.Allocation
}

// Resident reports whether the mesh has device buffers.
func (m *Mesh) Resident() bool {
	return m.vertices.Valid() && m.indices.Valid()
}

// VertexRange returns the device range of the vertices.
func (m *Mesh) VertexRange() render.BufferRange {
	return m.vertices.Range()
}

// IndexRange returns the device range of d's indices.
func (m *Mesh) IndexRange(d Draw) render.BufferRange {
	return render.BufferRange{
		Buffer: m.indices.Buffer,
		Offset: m.indices.Offset + d.FirstIndex*4,
		Size:   d.IndexCount * 4,
	}
}

// Triangles returns the number of triangles in the mesh.
func (m *Mesh) Triangles() int { return len(m.Indices) / 3 }

// Affine converts a display list matrix to the uniform row form.
func Affine(m displaylist.Matrix) render.Affine {
	return render.Affine{A: m.A, B: m.D, C: m.B, D: m.E, E: m.C, F: m.F}
}

// builder accumulates the segments of one mesh.
type builder struct {
	tolerance float32
	hairline  float32
	m         *Mesh
}

func (b *builder) build(shape *displaylist.Shape) *Mesh {
	b.m = &Mesh{ID: shape.ID, Bounds: shape.Bounds()}
	for i := range shape.Paths {
		p := &shape.Paths[i]
		contours := path.Flatten(elements(p.Commands), b.tolerance)
		if len(contours) == 0 {
			continue
		}
		if p.Fill != nil {
			rule := tess.NonZero
			if p.Rule == displaylist.EvenOdd {
				rule = tess.EvenOdd
			}
			b.segment(tess.Fill(contours, rule), p.Fill)
		}
		if p.Stroke != nil {
			outline := b.expander(p.Stroke).Expand(contours)
			b.segment(tess.Fill(outline, tess.NonZero), &p.Stroke.Fill)
		}
	}
	return b.m
}

func (b *builder) expander(s *displaylist.StrokeStyle) *stroke.Expander {
	style := stroke.Style{Width: s.Width, MiterLimit: s.MiterLimit}
	if style.Width == 0 {
		style.Width = b.hairline
	}
	switch s.Cap {
	case displaylist.CapNone:
		style.Cap = stroke.LineCapButt
	case displaylist.CapSquare:
		style.Cap = stroke.LineCapSquare
	default:
		style.Cap = stroke.LineCapRound
	}
	switch s.Join {
	case displaylist.JoinBevel:
		style.Join = stroke.LineJoinBevel
	case displaylist.JoinMiter:
		style.Join = stroke.LineJoinMiter
	default:
		style.Join = stroke.LineJoinRound
	}
	e := stroke.NewExpander(style)
	e.SetTolerance(b.tolerance)
	return e
}

// segment appends tm painted with fill. Consecutive solid segments share
// one Draw.
func (b *builder) segment(tm tess.Mesh, fill *displaylist.FillStyle) {
	if tm.Empty() {
		return
	}
	m := b.m
	base := uint32(len(m.Vertices))
	first := len(m.Indices)

	d := Draw{Paint: PaintSolid}
	color := func(path.Point) [4]float32 { return [4]float32{1, 1, 1, 1} }
	switch fill.Kind {
	case displaylist.FillSolid:
		c := fill.Color.Premultiplied()
		color = func(path.Point) [4]float32 { return c }
	case displaylist.FillGradient:
		g := fill.Gradient
		toGradient, _ := g.Matrix.OrIdentity().Invert()
		if fn, ok := vertexGradient(g, toGradient, tm.Vertices); ok {
			color = fn
		} else {
			d.Paint = PaintGradient
			ramp := Ramp(g)
			d.Gradient = &Gradient{
				Kind:    int(g.Kind),
				Spread:  int(g.Spread),
				Focal:   g.Focal,
				Paint:   Affine(toGradient),
				RampKey: upload.HashRamp(ramp),
				Ramp:    ramp,
			}
		}
	case displaylist.FillBitmap:
		bf := fill.Bitmap
		toBitmap, _ := bf.Matrix.OrIdentity().Invert()
		d.Paint = PaintBitmap
		d.Bitmap = &Bitmap{
			Bitmap:    bf.Bitmap,
			Paint:     Affine(toBitmap),
			Repeat:    bf.Repeat,
			Smoothing: bf.Smoothing,
		}
	}

	for _, p := range tm.Vertices {
		m.Vertices = append(m.Vertices, render.Vertex{X: p.X, Y: p.Y, Color: color(p)})
	}
	for _, i := range tm.Indices {
		m.Indices = append(m.Indices, base+i)
	}
	count := len(m.Indices) - first

	if n := len(m.Draws); n > 0 && d.Paint == PaintSolid && m.Draws[n-1].Paint == PaintSolid {
		m.Draws[n-1].IndexCount += count
		return
	}
	d.FirstIndex, d.IndexCount = first, count
	m.Draws = append(m.Draws, d)
}

func elements(cmds []displaylist.PathCommand) []path.Element {
	out := make([]path.Element, len(cmds))
	for i, c := range cmds {
		e := path.Element{Op: path.Op(c.Op)}
		for j := range c.P {
			e.P[j] = path.Point{X: c.P[j].X, Y: c.P[j].Y}
		}
		out[i] = e
	}
	return out
}
