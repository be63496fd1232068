// Package shader holds the WGSL module the GPU backends share and the
// fixed pipeline state built around it: bind group layouts, the vertex
// layout, blend and sampler translation, and texture formats.
//
// Only gputypes values live here, so the package builds for every target.
// Backends wrap them in their own descriptor types.
package shader

import (
	_ "embed"
	"image"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/render"
)

// Source is the WGSL module with one vertex stage and a fragment entry
// point per render.ShaderVariant.
//
//go:embed stage.wgsl
var Source string

// VertexEntryPoint is the vertex stage every pipeline uses.
const VertexEntryPoint = "vs_main"

// TextureSlots is the number of texture and sampler pairs in bind group 1.
const TextureSlots = 2

// Samplers is the number of distinct sampler modes.
const Samplers = 4

// FragmentEntryPoint returns the fragment entry point of a variant.
func FragmentEntryPoint(v render.ShaderVariant) string {
	return "fs_" + v.String()
}

// UniformLayout is bind group 0: the uniform block at a dynamic offset.
func UniformLayout() []gputypes.BindGroupLayoutEntry {
	return []gputypes.BindGroupLayoutEntry{{
		Binding:    0,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer: &gputypes.BufferBindingLayout{
			Type:             gputypes.BufferBindingTypeUniform,
			HasDynamicOffset: true,
			MinBindingSize:   render.UniformSize,
		},
	}}
}

// TextureLayout is bind group 1: a texture at binding 2n and its sampler
// at 2n+1 for each slot.
func TextureLayout() []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, TextureSlots*2)
	for slot := uint32(0); slot < TextureSlots; slot++ {
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    TextureBinding(int(slot)),
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    SamplerBinding(int(slot)),
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	return entries
}

// TextureBinding is the binding index of the texture in slot.
func TextureBinding(slot int) uint32 { return uint32(slot * 2) }

// SamplerBinding is the binding index of the sampler in slot.
func SamplerBinding(slot int) uint32 { return uint32(slot*2 + 1) }

// VertexLayout describes render.Vertex.
func VertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{{
		ArrayStride: render.VertexSize,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
			{Format: gputypes.VertexFormatFloat32x4, Offset: 8, ShaderLocation: 1}, // color
		},
	}}
}

// Primitive is the primitive state of every pipeline.
func Primitive() gputypes.PrimitiveState {
	return gputypes.PrimitiveState{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		CullMode: gputypes.CullModeNone,
	}
}

// Multisample returns the multisample state for a sample count.
func Multisample(samples int) gputypes.MultisampleState {
	return gputypes.MultisampleState{Count: uint32(max(samples, 1)), Mask: 0xFFFFFFFF}
}

// ColorTarget returns the single color target of a pipeline.
func ColorTarget(desc render.PipelineDesc) gputypes.ColorTargetState {
	return gputypes.ColorTargetState{
		Format:    TextureFormat(desc.Format),
		Blend:     Blend(desc.Blend),
		WriteMask: gputypes.ColorWriteMaskAll,
	}
}

var blendFactors = [...]gputypes.BlendFactor{
	blend.Zero:             gputypes.BlendFactorZero,
	blend.One:              gputypes.BlendFactorOne,
	blend.Src:              gputypes.BlendFactorSrc,
	blend.OneMinusSrc:      gputypes.BlendFactorOneMinusSrc,
	blend.SrcAlpha:         gputypes.BlendFactorSrcAlpha,
	blend.OneMinusSrcAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
	blend.Dst:              gputypes.BlendFactorDst,
	blend.OneMinusDst:      gputypes.BlendFactorOneMinusDst,
	blend.DstAlpha:         gputypes.BlendFactorDstAlpha,
	blend.OneMinusDstAlpha: gputypes.BlendFactorOneMinusDstAlpha,
}

var blendOps = [...]gputypes.BlendOperation{
	blend.Add:             gputypes.BlendOperationAdd,
	blend.Subtract:        gputypes.BlendOperationSubtract,
	blend.ReverseSubtract: gputypes.BlendOperationReverseSubtract,
	blend.Min:             gputypes.BlendOperationMin,
	blend.Max:             gputypes.BlendOperationMax,
}

func blendComponent(c blend.Component) gputypes.BlendComponent {
	return gputypes.BlendComponent{
		SrcFactor: blendFactors[c.Src],
		DstFactor: blendFactors[c.Dst],
		Operation: blendOps[c.Op],
	}
}

// Blend converts a render blend state to a color target blend.
func Blend(b render.BlendState) *gputypes.BlendState {
	f := b.Factors()
	return &gputypes.BlendState{
		Color: blendComponent(f.Color),
		Alpha: blendComponent(f.Alpha),
	}
}

// Sampler returns the filter and address mode of a sampler mode.
func Sampler(m render.SamplerMode) (gputypes.FilterMode, gputypes.AddressMode) {
	filter, address := gputypes.FilterModeNearest, gputypes.AddressModeClampToEdge
	if m&render.SampleSmooth != 0 {
		filter = gputypes.FilterModeLinear
	}
	if m&render.SampleRepeat != 0 {
		address = gputypes.AddressModeRepeat
	}
	return filter, address
}

// TextureFormat maps a render format. Undefined maps to RGBA8.
func TextureFormat(f render.TextureFormat) gputypes.TextureFormat {
	if f == render.FormatBGRA8 {
		return gputypes.TextureFormatBGRA8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

// FromTextureFormat maps back, returning FormatUndefined for formats the
// renderer does not draw into.
func FromTextureFormat(f gputypes.TextureFormat) render.TextureFormat {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm:
		return render.FormatRGBA8
	case gputypes.TextureFormatBGRA8Unorm:
		return render.FormatBGRA8
	}
	return render.FormatUndefined
}

// BufferUsage maps a buffer kind. Every buffer is a queue write target.
func BufferUsage(kind render.BufferKind) gputypes.BufferUsage {
	switch kind {
	case render.BufferIndex:
		return gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst
	case render.BufferUniform:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst
	}
}

// TextureUsage always allows sampling and uploads: multisampled companions
// are reloaded by sampling the texture.
func TextureUsage(u render.TextureUsage) gputypes.TextureUsage {
	out := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if u&render.UsageRenderTarget != 0 {
		out |= gputypes.TextureUsageRenderAttachment
	}
	if u&render.UsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	return out
}

// ClearColor converts a pass clear color.
func ClearColor(c [4]float32) gputypes.Color {
	return gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}

// Quad is a full-target quad drawn with VariantCopy. Its paint transform
// maps clip space to texture coordinates, so it copies texture slot 0
// onto the whole target.
type Quad struct {
	Vertices []byte
	Indices  []byte
	Uniforms []byte
}

// QuadIndexCount is the number of indices in Quad.Indices.
const QuadIndexCount = 6

// CopyQuad builds the quad buffers.
func CopyQuad() Quad {
	white := [4]float32{1, 1, 1, 1}
	u := render.IdentityUniforms()
	u.Paint = render.Affine{A: 0.5, D: -0.5, E: 0.5, F: 0.5}.Rows()
	return Quad{
		Vertices: render.AppendVertices(nil, []render.Vertex{
			{X: -1, Y: 1, Color: white}, {X: 1, Y: 1, Color: white},
			{X: 1, Y: -1, Color: white}, {X: -1, Y: -1, Color: white},
		}),
		Indices:  render.AppendIndices(nil, []uint32{0, 1, 2, 0, 2, 3}),
		Uniforms: u.Bytes(),
	}
}

// ClipCopy clips a copy of src from a source of size srcSize into a target
// of size dstSize at dst. It returns the source rectangle and its
// destination origin, or ok false when nothing is copied.
func ClipCopy(src image.Rectangle, srcSize image.Point, dst image.Point, dstSize image.Point) (image.Rectangle, image.Point, bool) {
	r := src.Intersect(image.Rectangle{Max: srcSize})
	at := dst.Add(r.Min.Sub(src.Min))
	dr := image.Rectangle{Min: at, Max: at.Add(r.Size())}.Intersect(image.Rectangle{Max: dstSize})
	if dr.Empty() {
		return image.Rectangle{}, image.Point{}, false
	}
	r.Min = r.Min.Add(dr.Min.Sub(at))
	r.Max = r.Min.Add(dr.Size())
	return r, dr.Min, true
}
