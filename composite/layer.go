// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/render"
)

// Layer is a render target draws are recorded into: the surface frame or
// the content of a group.
type Layer struct {
	Target drawlist.Target
	// ToTarget maps device pixels to target pixels.
	ToTarget render.Affine
	// Bounds is the region of device space the layer covers.
	Bounds image.Rectangle
	// Viewport is the region of Target the layer covers.
	Viewport image.Rectangle

	label    string
	pass     *drawlist.RenderPass
	segments int
	graph    *drawlist.Graph
	t        *target
}

// Pass returns the pass draws are currently recorded into. It changes
// every time a group is combined into the layer.
func (l *Layer) Pass() *drawlist.RenderPass { return l.pass }

// ClipTransform returns the vertex transform of a draw whose vertices map
// to device pixels through m.
func (l *Layer) ClipTransform(m render.Affine) render.Affine {
	return m.Then(l.ToTarget).Then(render.ClipSpace(l.Target.Width, l.Target.Height))
}

// Scissor maps a device rectangle to target pixels, rounded out and
// limited to the viewport.
func (l *Layer) Scissor(r image.Rectangle) image.Rectangle {
	x0, y0 := l.ToTarget.Apply(float64(r.Min.X), float64(r.Min.Y))
	x1, y1 := l.ToTarget.Apply(float64(r.Max.X), float64(r.Max.Y))
	out := image.Rect(
		int(math.Floor(min(x0, x1))), int(math.Floor(min(y0, y1))),
		int(math.Ceil(max(x0, x1))), int(math.Ceil(max(y0, y1))),
	)
	return out.Intersect(l.Viewport)
}

// split ends the current pass and continues the layer in a new pass that
// keeps its contents.
func (l *Layer) split() *drawlist.RenderPass {
	prev := l.pass
	l.segments++
	l.pass = l.graph.Pass(fmt.Sprintf("%s #%d", l.label, l.segments), l.Target, render.LoadKeep, [4]float32{})
	l.graph.After(l.pass, prev)
	if l.t != nil {
		l.t.lastUse = l.pass
	}
	return l.pass
}

// translation reports whether the layer maps device pixels to target
// pixels by an integer offset.
func (l *Layer) translation() (image.Point, bool) {
	m := l.ToTarget
	if m.A != 1 || m.D != 1 || m.B != 0 || m.C != 0 || m.E != math.Trunc(m.E) || m.F != math.Trunc(m.F) {
		return image.Point{}, false
	}
	return image.Pt(int(m.E), int(m.F)), true
}
