// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
)

// Backend errors. Backends wrap their native errors so errors.Is works
// against these values.
var (
	// ErrOutOfMemory is returned when a resource cannot be allocated.
	ErrOutOfMemory = errors.New("render: out of device memory")

	// ErrDeviceLost is terminal: the device and everything created from it
	// must be rebuilt by the host.
	ErrDeviceLost = errors.New("render: device lost")

	// ErrSurfaceLost means the surface must be reconfigured before the next
	// acquire.
	ErrSurfaceLost = errors.New("render: surface lost")

	// ErrSurfaceOutdated means the surface no longer matches the window and
	// must be reconfigured.
	ErrSurfaceOutdated = errors.New("render: surface outdated")

	// ErrTimeout means no surface frame was available in time. The caller
	// skips the frame.
	ErrTimeout = errors.New("render: timeout")

	// ErrInvalidHandle is returned for unknown or destroyed handles.
	ErrInvalidHandle = errors.New("render: invalid handle")

	// ErrUnsupported is returned for formats or sample counts outside the
	// device capabilities.
	ErrUnsupported = errors.New("render: unsupported")

	// ErrNotConfigured is returned when acquiring from an unconfigured surface.
	ErrNotConfigured = errors.New("render: surface not configured")
)

// TextureFormat is a color format for targets and sampled textures.
type TextureFormat uint8

// Texture formats.
const (
	FormatUndefined TextureFormat = iota
	FormatRGBA8
	FormatBGRA8
)

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8unorm"
	case FormatBGRA8:
		return "bgra8unorm"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint8(f))
	}
}

// BufferKind selects how a buffer is bound.
type BufferKind uint8

// Buffer kinds.
const (
	BufferVertex BufferKind = iota
	BufferIndex
	BufferUniform
	bufferKindCount
)

// BufferKinds is the number of buffer kinds.
const BufferKinds = int(bufferKindCount)

// String returns the kind name.
func (k BufferKind) String() string {
	switch k {
	case BufferVertex:
		return "vertex"
	case BufferIndex:
		return "index"
	case BufferUniform:
		return "uniform"
	default:
		return fmt.Sprintf("BufferKind(%d)", uint8(k))
	}
}

// Opaque resource handles. The zero value is never a valid handle.
type (
	BufferHandle   uint64
	TextureHandle  uint64
	PipelineHandle uint64
)

// Capabilities describes a device. The core reads nothing else about the
// backend it runs on.
type Capabilities struct {
	// MaxTextureSize is the largest width or height of a 2D texture.
	MaxTextureSize int

	// MaxSampleCount is the largest supported MSAA sample count.
	MaxSampleCount int

	// BlendOps reports support for the min and max blend operations.
	BlendOps bool

	// AsyncReadiness means texture uploads become visible to sampling only
	// from the submission after the one they were issued before.
	AsyncReadiness bool

	// UniformAlignment is the required offset alignment of uniform blocks.
	UniformAlignment int

	// Formats lists the formats usable as render targets.
	Formats []TextureFormat
}

// SupportsFormat reports whether f is in c.Formats.
func (c Capabilities) SupportsFormat(f TextureFormat) bool {
	for _, g := range c.Formats {
		if g == f {
			return true
		}
	}
	return false
}

// SampleCount clamps want to what the device supports. Counts are powers of
// two.
func (c Capabilities) SampleCount(want int) int {
	n := 1
	for n*2 <= want && n*2 <= c.MaxSampleCount {
		n *= 2
	}
	return n
}
