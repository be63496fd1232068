// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package composite renders isolated groups through off-screen targets.
//
// A group whose blend mode, filters or mask cannot be flattened into its
// parent is drawn into a pooled texture first. Combine then runs the
// group's filters as full-target passes, applies the mask, and draws the
// result into the parent layer with fixed-function blending, or with a
// blend formula shader that reads a copy of the parent's backdrop.
//
// Targets come from a pool bucketed by power-of-two size. A target
// released by one group is reused by the next group of a similar size in
// the same frame; the pool orders the new writer after the previous user
// in the frame's pass graph.
//
// Each group moves through Pending, RenderingContent, Combining and
// Resolved in that order:
//
//	g, err := c.Begin(spec)
//	content, err := g.StartContent()
//	// record draws into content.Pass()
//	err = g.Combine()
//	err = g.Resolve()
package composite
