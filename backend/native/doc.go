// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements render.Device on a gogpu/wgpu HAL device.
//
// Every pipeline shares one WGSL module (internal/shader) with a vertex
// stage and a fragment entry point per render.ShaderVariant. The module is
// validated with naga once per process; on Vulkan the validated SPIR-V is
// handed to the driver directly.
//
// Bind group 0 holds the uniform block at a dynamic offset, bind group 1
// the two texture and sampler slots. Unused slots bind a 1x1 transparent
// texture so every pipeline shares one layout.
//
// Multisampled passes render into a companion texture owned by the target
// and resolve into it when the pass ends. The companion keeps its samples
// across passes, so a pass that loads the target continues where the last
// one stopped. When the single-sample texture changed in between (a copy,
// an upload or a single-sample pass), the companion is reloaded from it
// first.
//
// The package registers itself under backend.Native. Device selection
// follows the usual order: discrete, then integrated, then anything.
//
//	dev, err := native.Open()
//	if err != nil {
//		// fall back to software
//	}
//	defer dev.Close()
package native
