// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"errors"
	"image"
	"math"
	"slices"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/render"
)

// Defaults.
const (
	DefaultMaxTargetSize = 4096
	DefaultGraceFrames   = 30
	DefaultSampleCount   = 4
)

// Option configures a Compositor.
type Option func(*Compositor)

// WithMaxTargetSize caps the edge of off-screen targets. Larger groups are
// rendered scaled down. The device limit applies as well.
func WithMaxTargetSize(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithGraceFrames sets how many frames a free target survives.
func WithGraceFrames(n uint64) Option {
	return func(c *Compositor) { c.grace = n }
}

// WithSampleCount sets the sample count of group content passes.
func WithSampleCount(n int) Option {
	return func(c *Compositor) {
		if n > 0 {
			c.samples = n
		}
	}
}

// Stats reports compositor activity. Groups and FilterPasses cover the
// current frame.
type Stats struct {
	// TargetAllocations counts device texture creations.
	TargetAllocations int64
	Targets           int
	Groups            int
	FilterPasses      int
	Evictions         int64
}

// Compositor owns the off-screen targets of a renderer and turns groups
// into passes. It is used by the goroutine building frames.
type Compositor struct {
	dev     render.Device
	rec     *drawlist.Recorder
	caps    render.Capabilities
	maxSize int
	grace   uint64
	samples int

	graph  *drawlist.Graph
	frame  uint64
	pool   pool
	active []*Group

	groups       int
	filterPasses int
	evictions    int64
}

// New creates a Compositor recording through rec.
func New(dev render.Device, rec *drawlist.Recorder, opts ...Option) *Compositor {
	c := &Compositor{
		dev:     dev,
		rec:     rec,
		caps:    dev.Capabilities(),
		maxSize: DefaultMaxTargetSize,
		grace:   DefaultGraceFrames,
		samples: DefaultSampleCount,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.caps.MaxTextureSize > 0 {
		c.maxSize = min(c.maxSize, c.caps.MaxTextureSize)
	}
	c.samples = c.caps.SampleCount(c.samples)
	format := render.FormatRGBA8
	if !c.caps.SupportsFormat(format) && len(c.caps.Formats) > 0 {
		format = c.caps.Formats[0]
	}
	c.pool = pool{dev: dev, up: rec.Uploader(), limit: c.maxSize, format: format}
	return c
}

// MaxTargetSize returns the effective target size cap.
func (c *Compositor) MaxTargetSize() int { return c.maxSize }

// BeginFrame starts recording frame into g.
func (c *Compositor) BeginFrame(g *drawlist.Graph, frame uint64) {
	c.graph = g
	c.frame = frame
	c.groups = 0
	c.filterPasses = 0
	c.pool.beginFrame()
}

// Root returns the layer of the frame's final target, cleared to color.
func (c *Compositor) Root(label string, t drawlist.Target, color [4]float32) *Layer {
	return &Layer{
		Target:   t,
		ToTarget: render.Affine{A: 1, D: 1},
		Bounds:   t.Bounds(),
		Viewport: t.Bounds(),
		label:    label,
		pass:     c.graph.Pass(label, t, render.LoadClear, color),
		graph:    c.graph,
	}
}

// GroupSpec describes a group to composite into Parent.
type GroupSpec struct {
	Label  string
	Parent *Layer
	// Bounds is the device space extent of the group, filter padding
	// included.
	Bounds  displaylist.Rect
	Blend   displaylist.BlendMode
	Filters []displaylist.Filter
	// Mask requests a mask layer; see Group.StartMask.
	Mask     bool
	MaskMode displaylist.MaskMode
	// ColorTransform is applied when the result is drawn into Parent.
	ColorTransform displaylist.ColorTransform
	// Scissor limits the composite draw, in Parent target pixels, when
	// non-empty.
	Scissor image.Rectangle
}

// Begin starts a group. The group covers spec.Bounds limited to the
// parent; when that exceeds the target size cap the content is scaled
// down and Group.Scale records the factor.
func (c *Compositor) Begin(spec GroupSpec) (*Group, error) {
	if spec.Parent == nil {
		return nil, errors.New("composite: group without parent layer")
	}
	if spec.Bounds.Empty() {
		return nil, ErrEmptyBounds
	}
	b := image.Rect(
		int(math.Floor(spec.Bounds.XMin)), int(math.Floor(spec.Bounds.YMin)),
		int(math.Ceil(spec.Bounds.XMax)), int(math.Ceil(spec.Bounds.YMax)),
	).Intersect(spec.Parent.Bounds)
	if b.Empty() {
		return nil, ErrEmptyBounds
	}
	if spec.Label == "" {
		spec.Label = "group"
	}

	g := &Group{c: c, spec: spec, Bounds: b, Scale: 1}
	if edge := max(b.Dx(), b.Dy()); edge > c.maxSize {
		g.Scale = float64(c.maxSize) / float64(edge)
	}
	g.width = min(max(int(math.Ceil(float64(b.Dx())*g.Scale)), 1), c.maxSize)
	g.height = min(max(int(math.Ceil(float64(b.Dy())*g.Scale)), 1), c.maxSize)
	g.toTarget = render.Affine{
		A: g.Scale, D: g.Scale,
		E: -float64(b.Min.X) * g.Scale, F: -float64(b.Min.Y) * g.Scale,
	}

	t, err := c.acquire(g)
	if err != nil {
		return nil, err
	}
	g.content = t
	g.Target = g.layer(spec.Label+" content", t)
	c.active = append(c.active, g)
	c.groups++
	return g, nil
}

// acquire takes a target sized for g and records it for release.
func (c *Compositor) acquire(g *Group) (*target, error) {
	t, err := c.pool.acquire(g.width, g.height, c.frame)
	if err != nil {
		return nil, err
	}
	g.targets = append(g.targets, t)
	return t, nil
}

// release returns the targets of g to the pool.
func (c *Compositor) release(g *Group) {
	for _, t := range g.targets {
		c.pool.release(t, c.frame)
	}
	g.targets = nil
	if i := slices.Index(c.active, g); i >= 0 {
		c.active = slices.Delete(c.active, i, i+1)
	}
}

// EndFrame releases groups left unresolved and destroys targets unused
// for the grace period. It returns the number of destroyed targets.
func (c *Compositor) EndFrame(frame uint64) int {
	for len(c.active) > 0 {
		c.active[0].Abort()
	}
	n := c.pool.evict(frame, c.grace)
	c.evictions += int64(n)
	return n
}

// Stats returns a snapshot of the counters.
func (c *Compositor) Stats() Stats {
	return Stats{
		TargetAllocations: c.pool.allocations,
		Targets:           len(c.pool.targets),
		Groups:            c.groups,
		FilterPasses:      c.filterPasses,
		Evictions:         c.evictions,
	}
}

// Release destroys every target. The device must be idle.
func (c *Compositor) Release() {
	c.active = nil
	c.pool.destroyAll()
}
