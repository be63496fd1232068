// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package web

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/render"
)

func TestCapabilities(t *testing.T) {
	caps := capabilities(gputypes.DefaultLimits())
	assert.True(t, caps.AsyncReadiness)
	assert.True(t, caps.BlendOps)
	assert.Equal(t, 4, caps.MaxSampleCount)
	assert.Equal(t, int(gputypes.DefaultLimits().MaxTextureDimension2D), caps.MaxTextureSize)
	assert.Equal(t, int(gputypes.DefaultLimits().MinUniformBufferOffsetAlignment), caps.UniformAlignment)
	assert.True(t, caps.SupportsFormat(render.FormatBGRA8))
	assert.True(t, caps.SupportsFormat(render.FormatRGBA8))
}

func TestCapabilitiesWithoutLimits(t *testing.T) {
	caps := capabilities(gputypes.Limits{})
	assert.Equal(t, render.UniformStride, caps.UniformAlignment)
	assert.Zero(t, caps.MaxTextureSize)
	assert.True(t, fitsLimit(16384, 16384, caps.MaxTextureSize))
}

func TestGuardRecoversPanic(t *testing.T) {
	err := guard("open", func() error {
		panic("wgpu: browser backend not yet implemented")
	})
	require.ErrorIs(t, err, render.ErrUnsupported)
	assert.Contains(t, err.Error(), "not yet implemented")
}

func TestGuardPassesErrors(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, guard("open", func() error { return boom }))
	assert.NoError(t, guard("open", func() error { return nil }))
}

func TestValidSamples(t *testing.T) {
	assert.True(t, validSamples(1))
	assert.True(t, validSamples(4))
	assert.False(t, validSamples(2))
	assert.False(t, validSamples(8))
}

func TestFitsLimit(t *testing.T) {
	assert.True(t, fitsLimit(8, 8, 8))
	assert.False(t, fitsLimit(9, 8, 8))
	assert.False(t, fitsLimit(0, 8, 8))
	assert.False(t, fitsLimit(8, -1, 0))
}
