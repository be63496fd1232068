// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"image"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/internal/blend"
	"github.com/gogpu/stage/internal/filter"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/pipeline"
	"github.com/gogpu/stage/render"
)

var white = [4]float32{1, 1, 1, 1}

// Group is an isolated subtree rendered off-screen and combined into its
// parent layer.
type Group struct {
	// Target receives the group's content.
	Target *Layer
	// Mask receives the mask content after StartMask.
	Mask *Layer
	// Bounds is the device region the group covers.
	Bounds image.Rectangle
	// Scale is the factor from device pixels to target pixels. It is
	// below one only for groups larger than the target size cap.
	Scale float64

	c             *Compositor
	spec          GroupSpec
	state         State
	width, height int
	toTarget      render.Affine

	targets []*target
	content *target
	mask    *target
}

// State returns the lifecycle state.
func (g *Group) State() State { return g.state }

func (g *Group) layer(label string, t *target) *Layer {
	c := g.c
	dst := drawlist.Target{Texture: t.handle, Width: t.width, Height: t.height, Format: t.format, Samples: c.samples}
	l := &Layer{
		Target:   dst,
		ToTarget: g.toTarget,
		Bounds:   g.Bounds,
		Viewport: image.Rect(0, 0, g.width, g.height),
		label:    label,
		graph:    c.graph,
		t:        t,
	}
	l.pass = c.graph.Pass(label, dst, render.LoadClear, [4]float32{})
	c.graph.After(l.pass, t.lastUse)
	t.lastUse = l.pass
	return l
}

// StartContent moves the group to RenderingContent. Draws for the
// content go to g.Target.
func (g *Group) StartContent() (*Layer, error) {
	if g.state != Pending {
		return nil, transitionError(g.state, RenderingContent)
	}
	g.state = RenderingContent
	return g.Target, nil
}

// StartMask returns the layer the mask is drawn into. The mask layer
// shares the content layer's mapping from device pixels.
func (g *Group) StartMask() (*Layer, error) {
	if g.state != RenderingContent {
		return nil, transitionError(g.state, RenderingContent)
	}
	if !g.spec.Mask {
		return nil, ErrNoMask
	}
	if g.Mask == nil {
		t, err := g.c.acquire(g)
		if err != nil {
			return nil, err
		}
		g.mask = t
		g.Mask = g.layer(g.spec.Label+" mask", t)
	}
	return g.Mask, nil
}

// Combine runs the group's filters and draws the result into the parent
// layer. After an error the group must be aborted.
func (g *Group) Combine() error {
	if g.state != RenderingContent {
		return transitionError(g.state, Combining)
	}
	g.state = Combining

	parent := g.spec.Parent
	state, fixed := pipeline.BlendStateFor(g.spec.Blend, g.c.caps)

	// A trailing color matrix is applied by the composite draw itself.
	filters := g.spec.Filters
	var final *displaylist.ColorMatrixFilter
	if n := len(filters); n > 0 && fixed && g.mask == nil && g.spec.ColorTransform.IsIdentity() {
		if cm, ok := filters[n-1].(*displaylist.ColorMatrixFilter); ok {
			final, filters = cm, filters[:n-1]
		}
	}

	src := g.content
	var err error
	for _, f := range filters {
		switch f := f.(type) {
		case *displaylist.BlurFilter:
			src, err = g.blur(src, f)
		case *displaylist.ColorMatrixFilter:
			src, err = g.colorMatrix(src, f)
		}
		if err != nil {
			return err
		}
	}

	if !fixed {
		formula, hasFormula := pipeline.FormulaFor(g.spec.Blend)
		_, parentPlain := parent.translation()
		if hasFormula && g.Scale == 1 && parentPlain {
			if g.mask != nil {
				if src, err = g.applyMask(src); err != nil {
					return err
				}
			}
			return g.combineFormula(src, formula)
		}
		logging.Logger().Debug("composite: blend approximated", "group", g.spec.Label, "blend", g.spec.Blend)
	}
	return g.combineFixed(src, state, final)
}

// other returns a group target that is not t, acquiring one if needed.
func (g *Group) other(t *target) (*target, error) {
	for _, o := range g.targets {
		if o != t && o != g.mask {
			return o, nil
		}
	}
	return g.c.acquire(g)
}

// filterPass draws src into dst through a quad covering the viewport.
func (g *Group) filterPass(label string, src, dst *target, variant render.ShaderVariant, u *render.Uniforms) error {
	c := g.c
	p := c.graph.Pass(label, drawlist.Target{
		Texture: dst.handle, Width: dst.width, Height: dst.height, Format: dst.format, Samples: 1,
	}, render.LoadClear, [4]float32{})
	c.graph.After(p, src.lastUse, dst.lastUse)
	src.lastUse, dst.lastUse = p, p

	geo, err := c.rec.Quad(drawlist.RectOf(image.Rect(0, 0, g.width, g.height)), white)
	if err != nil {
		return err
	}
	u.Transform = render.ClipSpace(dst.width, dst.height).Rows()
	u.Paint = render.Affine{A: 1 / float64(src.width), D: 1 / float64(src.height)}.Rows()
	key := pipeline.Key{Blend: render.BlendReplace, Variant: variant, Format: dst.format, Samples: 1}
	tex := [2]render.TextureBinding{{Texture: src.handle}}
	if variant.Textures() == 2 {
		tex[1] = render.TextureBinding{Texture: g.mask.handle}
		c.graph.After(p, g.mask.lastUse)
		g.mask.lastUse = p
	}
	if _, err := c.rec.Record(p, key, geo, u, tex, image.Rectangle{}); err != nil {
		return err
	}
	c.filterPasses++
	return nil
}

// blur runs a separable Gaussian blur, horizontal then vertical, as
// ping-pong passes between two targets.
func (g *Group) blur(src *target, f *displaylist.BlurFilter) (*target, error) {
	dst, err := g.other(src)
	if err != nil {
		return nil, err
	}
	axes := [2]struct {
		width  float32
		dx, dy float32
		name   string
	}{
		{f.BlurX, 1 / float32(src.width), 0, "blur x"},
		{f.BlurY, 0, 1 / float32(src.height), "blur y"},
	}
	for _, ax := range axes {
		sigma := filter.BlurSigma(ax.width, f.Quality) * g.Scale
		for _, s := range filter.SplitSigma(sigma) {
			k := filter.HalfKernel(s)
			u := render.IdentityUniforms()
			u.Params = [4]float32{ax.dx, ax.dy, float32(len(k)), 0}
			u.SetKernel(k)
			if err := g.filterPass(g.spec.Label+" "+ax.name, src, dst, render.VariantBlur, &u); err != nil {
				return nil, err
			}
			src, dst = dst, src
		}
	}
	return src, nil
}

func (g *Group) colorMatrix(src *target, f *displaylist.ColorMatrixFilter) (*target, error) {
	dst, err := g.other(src)
	if err != nil {
		return nil, err
	}
	m := filter.NormalizeMatrix(f.Matrix)
	u := render.IdentityUniforms()
	u.SetKernel(m[:])
	if err := g.filterPass(g.spec.Label+" color matrix", src, dst, render.VariantColorMatrix, &u); err != nil {
		return nil, err
	}
	return dst, nil
}

// applyMask bakes the mask into the content so the result can be drawn
// with a single-source program.
func (g *Group) applyMask(src *target) (*target, error) {
	dst, err := g.other(src)
	if err != nil {
		return nil, err
	}
	u := render.IdentityUniforms()
	if err := g.filterPass(g.spec.Label+" mask", src, dst, g.maskVariant(), &u); err != nil {
		return nil, err
	}
	g.mask = nil
	return dst, nil
}

func (g *Group) maskVariant() render.ShaderVariant {
	if g.spec.MaskMode == displaylist.MaskLuminance {
		return render.VariantLuminanceMask
	}
	return render.VariantAlphaMask
}

// uniforms returns the uniform block of the composite draw: vertices are
// device pixels, the paint space is the group target's UV space.
func (g *Group) uniforms(src *target) render.Uniforms {
	parent := g.spec.Parent
	u := render.IdentityUniforms()
	u.Transform = parent.ClipTransform(render.Affine{A: 1, D: 1}).Rows()
	u.Paint = g.toTarget.Then(render.Affine{A: 1 / float64(src.width), D: 1 / float64(src.height)}).Rows()
	ct := g.spec.ColorTransform.Normalized()
	u.Mult, u.Add = ct.Mult, ct.Add
	return u
}

func (g *Group) sampler() render.SamplerMode {
	if g.Scale != 1 {
		return render.SampleSmooth
	}
	return 0
}

func (g *Group) combineFixed(src *target, state render.BlendState, final *displaylist.ColorMatrixFilter) error {
	c := g.c
	parent := g.spec.Parent
	seg := parent.pass

	variant := render.VariantCopy
	tex := [2]render.TextureBinding{{Texture: src.handle, Sampler: g.sampler()}}
	c.graph.After(seg, src.lastUse)
	src.lastUse = seg
	if g.mask != nil {
		variant = g.maskVariant()
		tex[1] = render.TextureBinding{Texture: g.mask.handle, Sampler: g.sampler()}
		c.graph.After(seg, g.mask.lastUse)
		g.mask.lastUse = seg
	}

	geo, err := c.rec.Quad(drawlist.RectOf(g.Bounds), white)
	if err != nil {
		return err
	}
	u := g.uniforms(src)
	if state == render.BlendDarken {
		u.Params[render.LiftParam] = 1
	}
	if final != nil {
		variant = render.VariantColorMatrix
		m := filter.NormalizeMatrix(final.Matrix)
		u.SetKernel(m[:])
	}
	key := pipeline.Key{Blend: state, Variant: variant, Format: parent.Target.Format, Samples: parent.Target.Samples}
	if _, err := c.rec.Record(seg, key, geo, &u, tex, g.spec.Scissor); err != nil {
		return err
	}
	parent.split()
	return nil
}

// combineFormula copies the parent backdrop under the group, then draws
// the blend formula over it with replace blending.
func (g *Group) combineFormula(src *target, formula blend.Formula) error {
	c := g.c
	parent := g.spec.Parent
	off, _ := parent.translation()

	backdrop, err := g.other(src)
	if err != nil {
		return err
	}
	region := g.Bounds.Add(off)
	clipped := region.Intersect(parent.Target.Bounds())
	cp := c.graph.CopyPass(g.spec.Label+" backdrop", parent.Target.Texture, clipped, drawlist.Target{
		Texture: backdrop.handle, Width: backdrop.width, Height: backdrop.height, Format: backdrop.format, Samples: 1,
	}, clipped.Min.Sub(region.Min))
	c.graph.After(cp, parent.pass, backdrop.lastUse)
	backdrop.lastUse = cp

	seg := parent.split()
	c.graph.After(seg, cp, src.lastUse)
	src.lastUse, backdrop.lastUse = seg, seg

	geo, err := c.rec.Quad(drawlist.RectOf(g.Bounds), white)
	if err != nil {
		return err
	}
	u := g.uniforms(src)
	u.Params[0] = float32(formula)
	key := pipeline.Key{
		Blend: render.BlendReplace, Variant: render.VariantBlendFormula,
		Format: parent.Target.Format, Samples: parent.Target.Samples,
	}
	tex := [2]render.TextureBinding{{Texture: src.handle}, {Texture: backdrop.handle}}
	if _, err := c.rec.Record(seg, key, geo, &u, tex, g.spec.Scissor); err != nil {
		return err
	}
	parent.split()
	return nil
}

// Resolve moves the group to Resolved and returns its targets to the
// pool.
func (g *Group) Resolve() error {
	if g.state != Combining {
		return transitionError(g.state, Resolved)
	}
	g.state = Resolved
	g.c.release(g)
	return nil
}

// Abort releases the group's targets without combining. It is a no-op on
// a resolved group.
func (g *Group) Abort() {
	if g.state == Resolved {
		return
	}
	g.state = Resolved
	g.c.release(g)
}
