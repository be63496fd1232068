// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package upload moves frame data and bitmaps to the device.
//
// Streaming data (per-frame vertices, indices and uniform blocks) is
// suballocated from frame arenas: one per buffer kind, in as many sets as
// frames may be in flight. An arena that runs out during a frame chains
// another buffer of twice the total capacity; at the next rewind the chain
// is replaced by one buffer of the grown size, so capacity only ever grows
// and a steady-state frame performs a single allocation-free pass.
//
// Static data (tessellated meshes) lives in a separate first-fit arena.
// Freed ranges are recycled only after the submission that last used them
// has completed.
//
// Bitmaps are cached by ID and re-uploaded only when their content hash
// changes. Ramps are cached by content. On devices with asynchronous
// readiness a texture becomes sampleable one submission after the one it
// was uploaded before; until then its draws are skipped.
package upload
