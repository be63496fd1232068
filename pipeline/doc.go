// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline caches device pipelines by a flat key.
//
// A Key combines the fixed-function blend state, the fragment program,
// the target format and the sample count. Each key is compiled at most
// once for the lifetime of a Registry; a failed compile is remembered so
// it is never retried, and Resolve substitutes a simpler key instead.
//
// BlendStateFor decides whether a display list blend mode maps onto
// fixed-function blending on a device, or must run as a shader formula
// against a copy of the backdrop.
package pipeline
