// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render is the backend boundary of stage.
//
// Everything above this package talks to a GPU through the Device and
// Surface interfaces and opaque handles. Backends (backend/native over
// gogpu/wgpu/hal, backend/software in pure Go) implement them and describe
// what they can do with Capabilities; the core branches on Capabilities
// only, never on the concrete backend.
//
// # Drawing model
//
// A frame is a list of Pass records. A render pass targets one texture and
// runs its Draws in order; a copy pass snapshots a region of one texture
// into another. Every draw binds a pipeline (a blend state plus a shader
// variant), a vertex range in the layout described by Vertex, an index
// range, one 256-byte uniform block laid out as Uniforms, and up to two
// textures.
//
// All colors are premultiplied. Texture contents are premultiplied RGBA8.
//
// # Multisampling
//
// Passes with Samples > 1 render into a multisampled companion of the
// target that the backend owns and keeps for the target's lifetime, and
// resolve into the target when the pass ends. A Load pass therefore
// continues from the samples of the previous pass on the same target.
package render
