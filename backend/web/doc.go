// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package web implements render.Device on the browser's WebGPU device
// through the top-level gogpu/wgpu API. It builds for js/wasm only; other
// targets see the capability and guard helpers and nothing registers.
//
// Pipelines are built from the same WGSL module as the native backend
// (internal/shader), handed to the browser as source. The browser resolves
// queue completion on its own schedule, so the device reports
// AsyncReadiness and texture uploads are only sampled from a later
// submission.
//
// The canvas is never drawn into directly. A surface keeps a back buffer
// texture that frames render into, and Present copies it onto the current
// canvas texture with the copy quad. Group backdrops can then snapshot
// the frame like any other target.
//
// The package registers itself under backend.Web, ahead of software. When
// the wgpu browser bindings cannot provide a device, Open fails with
// render.ErrUnsupported and backend.Open moves on to the next backend.
package web
