// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/render"
)

func TestRegistered(t *testing.T) {
	b, err := backend.Get(backend.Web)
	require.NoError(t, err)
	assert.Equal(t, backend.Web, b.Name())
}

// Without a page exposing WebGPU, Open reports ErrUnsupported instead of
// panicking, and a device that does open is asynchronous.
func TestOpen(t *testing.T) {
	d, err := Open()
	if err != nil {
		require.ErrorIs(t, err, render.ErrUnsupported)
		return
	}
	defer d.Close()
	caps := d.Capabilities()
	assert.True(t, caps.AsyncReadiness)
	assert.True(t, caps.BlendOps)
}
