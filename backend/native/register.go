// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/render"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

func init() {
	backend.Register(backend.Native, func() backend.Backend { return nativeBackend{} })
}

type nativeBackend struct{}

func (nativeBackend) Name() string { return backend.Native }

func (nativeBackend) Open() (render.Device, error) {
	d, err := Open()
	if err != nil {
		return nil, err
	}
	return d, nil
}
