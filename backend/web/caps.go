// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package web

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/stage/render"
)

// maxSamples is the multisample count WebGPU guarantees besides 1.
const maxSamples = 4

// capabilities describes a browser device with the given limits. WebGPU
// always has min and max blending.
func capabilities(limits gputypes.Limits) render.Capabilities {
	align := int(limits.MinUniformBufferOffsetAlignment)
	if align <= 0 {
		align = render.UniformStride
	}
	return render.Capabilities{
		MaxTextureSize:   int(limits.MaxTextureDimension2D),
		MaxSampleCount:   maxSamples,
		BlendOps:         true,
		AsyncReadiness:   true,
		UniformAlignment: align,
		Formats:          []render.TextureFormat{render.FormatBGRA8, render.FormatRGBA8},
	}
}

// guard runs f and turns a panic raised by the wgpu browser bindings into
// an error wrapping render.ErrUnsupported.
func guard(op string, f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("web: %s: %v: %w", op, r, render.ErrUnsupported)
		}
	}()
	return f()
}

// validSamples reports whether n is a sample count WebGPU accepts.
func validSamples(n int) bool {
	return n == 1 || n == maxSamples
}

// fitsLimit reports whether a w by h texture fits limit. A zero limit
// means the device did not report one.
func fitsLimit(w, h, limit int) bool {
	if w <= 0 || h <= 0 {
		return false
	}
	return limit <= 0 || (w <= limit && h <= limit)
}
