package shader

import (
	"fmt"
	"image"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/render"
)

// The SPIR-V writer rejects relational builtins, so the shader spells
// vector tests out per component.
func TestShaderAvoidsRelationalBuiltins(t *testing.T) {
	for _, fn := range []string{"all(", "any(", "isnan(", "isinf("} {
		assert.NotContains(t, Source, fn)
	}
}

func TestEntryPoints(t *testing.T) {
	assert.Contains(t, Source, "fn "+VertexEntryPoint+"(")
	for v := render.ShaderVariant(0); int(v) < render.Variants; v++ {
		assert.Contains(t, Source, "fn "+FragmentEntryPoint(v)+"(", "variant %s", v)
	}
}

func TestLayoutsMatchShader(t *testing.T) {
	u := UniformLayout()
	require.Len(t, u, 1)
	assert.True(t, u[0].Buffer.HasDynamicOffset)
	assert.Equal(t, uint64(render.UniformSize), u[0].Buffer.MinBindingSize)

	tex := TextureLayout()
	require.Len(t, tex, TextureSlots*2)
	for slot := range TextureSlots {
		assert.NotNil(t, tex[TextureBinding(slot)].Texture)
		assert.NotNil(t, tex[SamplerBinding(slot)].Sampler)
		assert.Contains(t, Source, fmt.Sprintf("@binding(%d) var tex", TextureBinding(slot)))
	}
	assert.Equal(t, uint64(render.VertexSize), VertexLayout()[0].ArrayStride)
}

func TestBlendMapping(t *testing.T) {
	tests := []struct {
		blend    render.BlendState
		src, dst gputypes.BlendFactor
		op       gputypes.BlendOperation
	}{
		{render.BlendNormal, gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd},
		{render.BlendAdd, gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationAdd},
		{render.BlendSubtract, gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationReverseSubtract},
		{render.BlendMultiply, gputypes.BlendFactorDst, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd},
		{render.BlendLighten, gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationMax},
		{render.BlendDarken, gputypes.BlendFactorOne, gputypes.BlendFactorOne, gputypes.BlendOperationMin},
		{render.BlendErase, gputypes.BlendFactorZero, gputypes.BlendFactorOneMinusSrcAlpha, gputypes.BlendOperationAdd},
		{render.BlendReplace, gputypes.BlendFactorOne, gputypes.BlendFactorZero, gputypes.BlendOperationAdd},
	}
	for _, tt := range tests {
		s := Blend(tt.blend)
		assert.Equal(t, tt.src, s.Color.SrcFactor, "%s src", tt.blend)
		assert.Equal(t, tt.dst, s.Color.DstFactor, "%s dst", tt.blend)
		assert.Equal(t, tt.op, s.Color.Operation, "%s op", tt.blend)
	}
}

func TestSampler(t *testing.T) {
	f, a := Sampler(0)
	assert.Equal(t, gputypes.FilterModeNearest, f)
	assert.Equal(t, gputypes.AddressModeClampToEdge, a)

	f, a = Sampler(render.SampleSmooth | render.SampleRepeat)
	assert.Equal(t, gputypes.FilterModeLinear, f)
	assert.Equal(t, gputypes.AddressModeRepeat, a)
}

func TestFormats(t *testing.T) {
	for _, f := range []render.TextureFormat{render.FormatRGBA8, render.FormatBGRA8} {
		assert.Equal(t, f, FromTextureFormat(TextureFormat(f)))
	}
	assert.Equal(t, render.FormatUndefined, FromTextureFormat(gputypes.TextureFormatRGBA8UnormSrgb))
}

func TestTextureUsage(t *testing.T) {
	u := TextureUsage(render.UsageSampled)
	assert.NotZero(t, u&gputypes.TextureUsageTextureBinding)
	assert.Zero(t, u&gputypes.TextureUsageRenderAttachment)

	u = TextureUsage(render.UsageRenderTarget | render.UsageCopySrc)
	assert.NotZero(t, u&gputypes.TextureUsageRenderAttachment)
	assert.NotZero(t, u&gputypes.TextureUsageCopySrc)
}

func TestCopyQuad(t *testing.T) {
	q := CopyQuad()
	assert.Len(t, q.Vertices, 4*render.VertexSize)
	assert.Len(t, q.Indices, QuadIndexCount*4)
	assert.Len(t, q.Uniforms, render.UniformSize)
}

func TestClipCopy(t *testing.T) {
	tests := []struct {
		name    string
		src     image.Rectangle
		dst     image.Point
		wantSrc image.Rectangle
		wantAt  image.Point
		ok      bool
	}{
		{"inside", image.Rect(2, 2, 6, 6), image.Pt(1, 1), image.Rect(2, 2, 6, 6), image.Pt(1, 1), true},
		{"source overhang", image.Rect(-2, 0, 4, 4), image.Pt(0, 0), image.Rect(0, 0, 4, 4), image.Pt(2, 0), true},
		{"target overhang", image.Rect(0, 0, 8, 8), image.Pt(-3, 6), image.Rect(3, 0, 8, 2), image.Pt(0, 6), true},
		{"outside", image.Rect(0, 0, 4, 4), image.Pt(8, 8), image.Rectangle{}, image.Point{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, at, ok := ClipCopy(tt.src, image.Pt(8, 8), tt.dst, image.Pt(8, 8))
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantSrc, r)
			assert.Equal(t, tt.wantAt, at)
		})
	}
}

func TestClearColor(t *testing.T) {
	c := ClearColor([4]float32{1, 0.5, 0, 1})
	assert.Equal(t, gputypes.Color{R: 1, G: 0.5, B: 0, A: 1}, c)
	assert.True(t, strings.HasPrefix(FragmentEntryPoint(render.VariantColor), "fs_"))
}
