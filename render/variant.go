// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ShaderVariant selects the fragment program of a pipeline.
type ShaderVariant uint8

// Shader variants. Texture slots and uniform parameters each variant reads
// are listed with it.
const (
	// VariantColor outputs the interpolated vertex color.
	VariantColor ShaderVariant = iota
	// VariantGradient samples a 256x1 ramp in texture 0. Params holds the
	// gradient kind, spread mode and focal point.
	VariantGradient
	// VariantBitmap samples texture 0 at the paint coordinate.
	VariantBitmap
	// VariantCopy samples texture 0 at the paint coordinate. Used to
	// composite off-screen targets. It and the mask and color matrix
	// variants honor Params[LiftParam].
	VariantCopy
	// VariantAlphaMask multiplies texture 0 by the alpha of texture 1.
	VariantAlphaMask
	// VariantLuminanceMask multiplies texture 0 by the luminance of texture 1.
	VariantLuminanceMask
	// VariantBlur is one direction of a separable Gaussian blur of texture
	// 0. Params holds the texel step and the tap count, Kernel the weights.
	VariantBlur
	// VariantColorMatrix applies a 4x5 color matrix to texture 0. Kernel
	// holds the matrix rows.
	VariantColorMatrix
	// VariantBlendFormula blends texture 0 onto the backdrop copy in texture
	// 1 with the formula in Params[0]. It is drawn with BlendReplace.
	VariantBlendFormula
	variantCount
)

// Variants is the number of shader variants.
const Variants = int(variantCount)

var variantNames = [...]string{
	VariantColor:         "color",
	VariantGradient:      "gradient",
	VariantBitmap:        "bitmap",
	VariantCopy:          "copy",
	VariantAlphaMask:     "alpha_mask",
	VariantLuminanceMask: "luminance_mask",
	VariantBlur:          "blur",
	VariantColorMatrix:   "color_matrix",
	VariantBlendFormula:  "blend_formula",
}

// String returns the variant name.
func (v ShaderVariant) String() string {
	if v < variantCount {
		return variantNames[v]
	}
	return fmt.Sprintf("ShaderVariant(%d)", uint8(v))
}

// Textures returns the number of texture slots v samples.
func (v ShaderVariant) Textures() int {
	switch v {
	case VariantColor:
		return 0
	case VariantAlphaMask, VariantLuminanceMask, VariantBlendFormula:
		return 2
	default:
		return 1
	}
}

// LiftParam is the Params slot that, set to 1, makes the composite
// variants add 1-alpha to the color channels. Under min blending a
// transparent texel then leaves the destination unchanged.
const LiftParam = 3

// Gradient kinds and spread modes as stored in Uniforms.Params.
const (
	GradientLinear = 0
	GradientRadial = 1
	GradientFocal  = 2

	SpreadPad     = 0
	SpreadReflect = 1
	SpreadRepeat  = 2
)

// Vertex is the layout of every vertex buffer: a position followed by a
// premultiplied color.
type Vertex struct {
	X, Y  float32
	Color [4]float32
}

// VertexSize is the byte stride of Vertex.
const VertexSize = 24

// AppendVertices appends the little-endian encoding of vs to dst.
func AppendVertices(dst []byte, vs []Vertex) []byte {
	for i := range vs {
		v := &vs[i]
		dst = appendFloat(dst, v.X)
		dst = appendFloat(dst, v.Y)
		for _, c := range v.Color {
			dst = appendFloat(dst, c)
		}
	}
	return dst
}

// AppendIndices appends the little-endian encoding of idx to dst.
func AppendIndices(dst []byte, idx []uint32) []byte {
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint32(dst, i)
	}
	return dst
}

// Uniforms is the per-draw uniform block. Matrices are stored as two rows
// (a, c, e) and (b, d, f) of an affine transform, each padded to a vec4.
type Uniforms struct {
	// Transform maps vertex positions to clip space.
	Transform [2][4]float32
	// Mult and Add form the color transform, applied to unpremultiplied
	// color: out = clamp(c*Mult + Add).
	Mult, Add [4]float32
	// Paint maps vertex positions to the paint space of the variant:
	// texture coordinates, or gradient space for VariantGradient.
	Paint [2][4]float32
	// Params holds per-variant parameters.
	Params [4]float32
	// Kernel holds blur weights or color matrix rows.
	Kernel [8][4]float32
}

// Uniform block sizes. Blocks are placed UniformStride apart, which
// satisfies every alignment backends report.
const (
	UniformSize   = 240
	UniformStride = 256
)

// IdentityUniforms returns uniforms with identity transforms and color
// transform.
func IdentityUniforms() Uniforms {
	return Uniforms{
		Transform: [2][4]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
		Mult:      [4]float32{1, 1, 1, 1},
		Paint:     [2][4]float32{{1, 0, 0, 0}, {0, 1, 0, 0}},
	}
}

// Bytes encodes u into a UniformSize-byte little-endian block.
func (u *Uniforms) Bytes() []byte {
	b := make([]byte, 0, UniformSize)
	b = appendVec4(b, u.Transform[0])
	b = appendVec4(b, u.Transform[1])
	b = appendVec4(b, u.Mult)
	b = appendVec4(b, u.Add)
	b = appendVec4(b, u.Paint[0])
	b = appendVec4(b, u.Paint[1])
	b = appendVec4(b, u.Params)
	for _, k := range u.Kernel {
		b = appendVec4(b, k)
	}
	return b
}

// SetKernel stores up to 32 scalar weights or matrix entries.
func (u *Uniforms) SetKernel(w []float32) {
	for i, v := range w {
		if i >= 32 {
			break
		}
		u.Kernel[i/4][i%4] = v
	}
}

// KernelAt returns scalar i of the kernel.
func (u *Uniforms) KernelAt(i int) float32 {
	return u.Kernel[i/4][i%4]
}

func appendVec4(b []byte, v [4]float32) []byte {
	for _, f := range v {
		b = appendFloat(b, f)
	}
	return b
}

func appendFloat(b []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
}

// DecodeUniforms decodes a block written by Uniforms.Bytes.
func DecodeUniforms(b []byte) (Uniforms, error) {
	if len(b) < UniformSize {
		return Uniforms{}, fmt.Errorf("render: uniform block is %d bytes, want %d", len(b), UniformSize)
	}
	var u Uniforms
	off := 0
	read := func(v *[4]float32) {
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
			off += 4
		}
	}
	read(&u.Transform[0])
	read(&u.Transform[1])
	read(&u.Mult)
	read(&u.Add)
	read(&u.Paint[0])
	read(&u.Paint[1])
	read(&u.Params)
	for i := range u.Kernel {
		read(&u.Kernel[i])
	}
	return u, nil
}

// DecodeVertices decodes a vertex buffer range.
func DecodeVertices(b []byte) []Vertex {
	n := len(b) / VertexSize
	vs := make([]Vertex, n)
	for i := range vs {
		o := i * VertexSize
		f := func(k int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b[o+4*k:]))
		}
		vs[i] = Vertex{X: f(0), Y: f(1), Color: [4]float32{f(2), f(3), f(4), f(5)}}
	}
	return vs
}
