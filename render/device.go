// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"image"
)

// TextureUsage flags how a texture is used.
type TextureUsage uint8

// Texture usages. They combine with bitwise OR.
const (
	UsageSampled TextureUsage = 1 << iota
	UsageRenderTarget
	UsageCopySrc
	UsageCopyDst
)

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Format TextureFormat
	Usage  TextureUsage
}

// PipelineDesc describes a render pipeline. Every pipeline shares the
// vertex layout of Vertex and the uniform layout of Uniforms.
type PipelineDesc struct {
	Label   string
	Blend   BlendState
	Variant ShaderVariant
	Format  TextureFormat
	Samples int
}

// SamplerMode selects filtering and addressing for a texture binding.
type SamplerMode uint8

// Sampler flags.
const (
	SampleSmooth SamplerMode = 1 << iota
	SampleRepeat
)

// TextureBinding binds a texture to a slot of a draw.
type TextureBinding struct {
	Texture TextureHandle
	Sampler SamplerMode
}

// BufferRange is a byte range of a buffer.
type BufferRange struct {
	Buffer BufferHandle
	Offset int
	Size   int
}

// Draw is one indexed draw call.
type Draw struct {
	Pipeline PipelineHandle
	Vertices BufferRange
	Indices  BufferRange
	// IndexCount is the number of uint32 indices to draw from Indices.
	IndexCount int
	// Uniforms is a UniformSize range of a uniform buffer.
	Uniforms BufferRange
	Textures [2]TextureBinding
	// Scissor limits rasterization when non-empty.
	Scissor image.Rectangle
}

// LoadOp selects how a render pass initialises its target.
type LoadOp uint8

// Load operations.
const (
	LoadClear LoadOp = iota
	LoadKeep
)

// Copy snapshots Src of Source into Target at DstPoint.
type Copy struct {
	Source   TextureHandle
	Src      image.Rectangle
	DstPoint image.Point
}

// Pass is one render or copy pass.
type Pass struct {
	Label  string
	Target TextureHandle
	// Copy, when set, makes this a copy pass into Target. Load and Draws
	// are ignored.
	Copy *Copy

	Load    LoadOp
	Clear   [4]float32
	Samples int
	Draws   []Draw
}

// Device creates resources and executes passes. Implementations are safe
// for concurrent resource creation; Submit is called from one goroutine.
type Device interface {
	Capabilities() Capabilities

	CreateBuffer(kind BufferKind, size int) (BufferHandle, error)
	WriteBuffer(h BufferHandle, offset int, data []byte) error
	DestroyBuffer(h BufferHandle)

	CreateTexture(desc TextureDesc) (TextureHandle, error)
	// WriteTexture replaces the whole texture with tightly packed
	// premultiplied RGBA8 rows.
	WriteTexture(h TextureHandle, pix []byte) error
	DestroyTexture(h TextureHandle)

	CreatePipeline(desc PipelineDesc) (PipelineHandle, error)
	DestroyPipeline(h PipelineHandle)

	// Submit executes passes in order and returns the submission serial.
	// Serials start at 1 and increase by one per call.
	Submit(passes []Pass) (uint64, error)
	// Completed returns the highest serial the device has finished.
	Completed() uint64
	// Wait blocks until serial has completed or ctx is done.
	Wait(ctx context.Context, serial uint64) error

	Close()
}

// SurfaceFrame is a presentable texture acquired from a Surface.
type SurfaceFrame struct {
	Texture    TextureHandle
	Width      int
	Height     int
	Format     TextureFormat
	Suboptimal bool
}

// Surface is a presentable swapchain.
type Surface interface {
	// Formats lists the formats the surface can be configured with.
	Formats() []TextureFormat
	Configure(width, height int, format TextureFormat) error
	Acquire(ctx context.Context) (SurfaceFrame, error)
	Present(frame SurfaceFrame) error
	Discard(frame SurfaceFrame)
}
