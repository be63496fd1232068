package drawlist

import (
	"fmt"
	"image"

	"github.com/gogpu/stage/pipeline"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/upload"
)

// Geometry is the vertex and index data of a draw.
type Geometry struct {
	Vertices   render.BufferRange
	Indices    render.BufferRange
	IndexCount int
}

var quadIndices = []uint32{0, 1, 2, 0, 2, 3}

// Recorder turns draw requests into DrawCommand values: it resolves the
// pipeline and streams the uniform block and any per-frame geometry
// through the uploader. It is used by one goroutine.
type Recorder struct {
	up  *upload.Uploader
	reg *pipeline.Registry

	quad upload.Allocation
}

// NewRecorder creates a Recorder.
func NewRecorder(up *upload.Uploader, reg *pipeline.Registry) *Recorder {
	return &Recorder{up: up, reg: reg}
}

// Registry returns the pipeline registry.
func (r *Recorder) Registry() *pipeline.Registry { return r.reg }

// Uploader returns the uploader.
func (r *Recorder) Uploader() *upload.Uploader { return r.up }

// Record appends a draw of geo to p. It returns the key actually used,
// which differs from key when the pipeline fell back.
func (r *Recorder) Record(p *RenderPass, key pipeline.Key, geo Geometry, u *render.Uniforms,
	tex [2]render.TextureBinding, scissor image.Rectangle) (pipeline.Key, error) {
	used, h, err := r.reg.Resolve(key)
	if err != nil {
		return key, err
	}
	uni, err := r.up.UploadBuffer(render.BufferUniform, u.Bytes())
	if err != nil {
		return used, err
	}
	p.Add(DrawCommand{
		Key:        used,
		Pipeline:   h,
		Vertices:   geo.Vertices,
		Indices:    geo.Indices,
		IndexCount: geo.IndexCount,
		Uniforms:   uni.Range(),
		Textures:   tex,
		Scissor:    scissor,
	})
	return used, nil
}

// Quad streams an axis-aligned rectangle with a uniform color.
func (r *Recorder) Quad(rect Rect, color [4]float32) (Geometry, error) {
	if !r.quad.Valid() {
		a, err := r.up.UploadStatic(render.BufferIndex, render.AppendIndices(nil, quadIndices))
		if err != nil {
			return Geometry{}, fmt.Errorf("drawlist: quad indices: %w", err)
		}
		r.quad = a
	}
	vs := []render.Vertex{
		{X: rect.X0, Y: rect.Y0, Color: color},
		{X: rect.X1, Y: rect.Y0, Color: color},
		{X: rect.X1, Y: rect.Y1, Color: color},
		{X: rect.X0, Y: rect.Y1, Color: color},
	}
	v, err := r.up.UploadBuffer(render.BufferVertex, render.AppendVertices(nil, vs))
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Vertices: v.Range(), Indices: r.quad.Range(), IndexCount: len(quadIndices)}, nil
}

// Close releases the shared quad indices.
func (r *Recorder) Close() {
	r.up.Free(r.quad)
	r.quad = upload.Allocation{}
}

// Rect is a float rectangle in the space of a draw's vertices.
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// RectOf converts an integer rectangle.
func RectOf(r image.Rectangle) Rect {
	return Rect{X0: float32(r.Min.X), Y0: float32(r.Min.Y), X1: float32(r.Max.X), Y1: float32(r.Max.Y)}
}
