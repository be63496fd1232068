package stage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/stage/composite"
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/mesh"
	"github.com/gogpu/stage/pipeline"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/upload"
)

var white = [4]float32{1, 1, 1, 1}

// drawState is the inherited state of a subtree.
type drawState struct {
	layer *composite.Layer
	// m maps the subtree's space to device pixels.
	m  displaylist.Matrix
	ct displaylist.ColorTransform
	// clip limits the subtree in device pixels when clipped is set.
	clip    image.Rectangle
	clipped bool
}

// scissor returns the clip in layer target pixels. It returns false when
// nothing of the layer is left.
func (st *drawState) scissor() (image.Rectangle, bool) {
	if !st.clipped {
		return image.Rectangle{}, true
	}
	s := st.layer.Scissor(st.clip)
	return s, !s.Empty()
}

// builder records the draws of one frame.
type builder struct {
	ctx    context.Context
	r      *Renderer
	stats  *FrameStats
	serial uint64
	labels bool
	groups int
}

func (b *builder) nodes(st drawState, nodes []displaylist.Node) error {
	for _, n := range nodes {
		if err := b.ctx.Err(); err != nil {
			return err
		}
		if err := b.node(st, n); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) node(st drawState, n displaylist.Node) error {
	switch n := n.(type) {
	case *displaylist.ShapeNode:
		return b.shape(st, n)
	case *displaylist.BitmapNode:
		return b.bitmap(st, n)
	case *displaylist.GroupNode:
		return b.group(st, n)
	default:
		return nil
	}
}

// visible reports whether device rectangle r touches the layer inside the
// clip.
func (b *builder) visible(st drawState, r displaylist.Rect) bool {
	if r.Empty() {
		return false
	}
	rr := roundOut(r).Intersect(st.layer.Bounds)
	if st.clipped {
		rr = rr.Intersect(st.clip)
	}
	return !rr.Empty()
}

// skip logs a failed draw and drops it. Fatal errors are returned.
func (b *builder) skip(err error, args ...any) error {
	if isFatal(b.ctx, err) {
		return err
	}
	b.stats.SkippedDraws++
	Logger().Warn("stage: draw skipped", append(args, "frame", b.stats.Frame, "err", err)...)
	return nil
}

func (b *builder) shape(st drawState, n *displaylist.ShapeNode) error {
	if n.Shape == nil {
		return nil
	}
	m := st.m.Multiply(n.Transform.OrIdentity())
	if !b.visible(st, m.TransformRect(n.Shape.Bounds())) {
		b.stats.Culled++
		return nil
	}
	msh, err := b.r.meshes.GetOrBuild(n.Shape)
	if err != nil {
		return b.skip(err, "shape", n.Shape.ID)
	}
	if !msh.Resident() {
		return nil
	}
	ct := st.ct.Concat(n.ColorTransform)
	for _, d := range msh.Draws {
		if err := b.meshDraw(st, msh, d, m, ct); err != nil {
			if err := b.skip(err, "shape", n.Shape.ID, "paint", d.Paint); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) meshDraw(st drawState, msh *mesh.Mesh, d mesh.Draw, m displaylist.Matrix, ct displaylist.ColorTransform) error {
	sc, ok := st.scissor()
	if !ok {
		return nil
	}
	u := b.uniforms(st, mesh.Affine(m), ct)
	var tex [2]render.TextureBinding
	variant := render.VariantColor

	switch d.Paint {
	case mesh.PaintGradient:
		gr := d.Gradient
		t, err := b.r.up.UploadRamp(gr.RampKey, gr.Ramp)
		if err != nil {
			return err
		}
		if !b.ready(t) {
			return nil
		}
		variant = render.VariantGradient
		u.Paint = gr.Paint.Rows()
		u.Params = [4]float32{float32(gr.Kind), float32(gr.Spread), gr.Focal, 0}
		tex[0] = render.TextureBinding{Texture: t.Handle, Sampler: render.SampleSmooth}
	case mesh.PaintBitmap:
		bf := d.Bitmap
		t, err := b.r.up.UploadTexture(bf.Bitmap)
		if err != nil {
			return err
		}
		if !b.ready(t) {
			return nil
		}
		variant = render.VariantBitmap
		u.Paint = bf.Paint.Then(texelScale(t)).Rows()
		var s render.SamplerMode
		if bf.Smoothing || t.Downscaled() {
			s |= render.SampleSmooth
		}
		if bf.Repeat {
			s |= render.SampleRepeat
		}
		tex[0] = render.TextureBinding{Texture: t.Handle, Sampler: s}
	}

	geo := drawlist.Geometry{Vertices: msh.VertexRange(), Indices: msh.IndexRange(d), IndexCount: d.IndexCount}
	return b.record(st, variant, geo, &u, tex, sc)
}

func (b *builder) bitmap(st drawState, n *displaylist.BitmapNode) error {
	bmp := n.Bitmap
	if bmp == nil {
		return nil
	}
	m := st.m.Multiply(n.Transform.OrIdentity())
	if !b.visible(st, m.TransformRect(bmp.Bounds())) {
		b.stats.Culled++
		return nil
	}
	sc, ok := st.scissor()
	if !ok {
		return nil
	}
	t, err := b.r.up.UploadTexture(bmp)
	if err != nil {
		return b.skip(err, "bitmap", bmp.ID)
	}
	if !b.ready(t) {
		return nil
	}
	geo, err := b.r.rec.Quad(drawlist.Rect{X1: float32(bmp.Width), Y1: float32(bmp.Height)}, white)
	if err != nil {
		return b.skip(err, "bitmap", bmp.ID)
	}
	u := b.uniforms(st, mesh.Affine(m), st.ct.Concat(n.ColorTransform))
	u.Paint = texelScale(t).Rows()
	var s render.SamplerMode
	if n.Smoothing || t.Downscaled() {
		s = render.SampleSmooth
	}
	tex := [2]render.TextureBinding{{Texture: t.Handle, Sampler: s}}
	if err := b.record(st, render.VariantBitmap, geo, &u, tex, sc); err != nil {
		return b.skip(err, "bitmap", bmp.ID)
	}
	return nil
}

func (b *builder) group(st drawState, g *displaylist.GroupNode) error {
	m := st.m.Multiply(g.Transform.OrIdentity())
	child := st
	child.m = m

	// A rotated scroll rect cannot be a scissor. Without a mask it becomes
	// one; with a mask its bounding box is used.
	rectMask := false
	if g.ScrollRect != nil {
		if !m.IsAxisAligned() && g.Mask == nil {
			rectMask = true
		} else {
			r := roundOut(m.TransformRect(*g.ScrollRect))
			if child.clipped {
				r = r.Intersect(child.clip)
			}
			child.clip, child.clipped = r, true
		}
	}

	if !g.Isolated() && !rectMask {
		child.ct = st.ct.Concat(g.ColorTransform)
		return b.nodes(child, g.Children)
	}

	bounds := displaylist.NodeBounds(g, st.m)
	if !b.visible(st, bounds) {
		b.stats.Culled++
		return nil
	}
	spec := composite.GroupSpec{
		Label:          b.groupLabel(g),
		Parent:         st.layer,
		Bounds:         bounds,
		Blend:          g.Blend,
		Filters:        g.Filters,
		Mask:           g.Mask != nil || rectMask,
		MaskMode:       g.MaskMode,
		ColorTransform: st.ct.Concat(g.ColorTransform),
	}
	if rectMask {
		spec.MaskMode = displaylist.MaskAlpha
	}
	if st.clipped {
		sc, ok := st.scissor()
		if !ok {
			b.stats.Culled++
			return nil
		}
		spec.Scissor = sc
		spec.Bounds = spec.Bounds.Intersect(rectOf(st.clip))
	}

	grp, err := b.r.comp.Begin(spec)
	if err != nil {
		if errors.Is(err, composite.ErrEmptyBounds) {
			b.stats.Culled++
			return nil
		}
		return b.skip(err, "group", spec.Label)
	}
	if err := b.groupContent(grp, g, child, rectMask); err != nil {
		grp.Abort()
		return b.skip(err, "group", spec.Label)
	}
	return nil
}

func (b *builder) groupContent(grp *composite.Group, g *displaylist.GroupNode, child drawState, rectMask bool) error {
	content, err := grp.StartContent()
	if err != nil {
		return err
	}
	inner := child
	inner.layer = content
	inner.ct = displaylist.IdentityColorTransform()
	if err := b.nodes(inner, g.Children); err != nil {
		return err
	}

	if g.Mask != nil || rectMask {
		ml, err := grp.StartMask()
		if err != nil {
			return err
		}
		mst := drawState{layer: ml, m: child.m, ct: displaylist.IdentityColorTransform()}
		if rectMask {
			err = b.rect(mst, *g.ScrollRect)
		} else {
			err = b.node(mst, g.Mask)
		}
		if err != nil {
			return err
		}
	}

	if err := grp.Combine(); err != nil {
		return err
	}
	return grp.Resolve()
}

// rect fills r in the space of st with opaque white.
func (b *builder) rect(st drawState, r displaylist.Rect) error {
	geo, err := b.r.rec.Quad(drawlist.Rect{
		X0: float32(r.XMin), Y0: float32(r.YMin),
		X1: float32(r.XMax), Y1: float32(r.YMax),
	}, white)
	if err != nil {
		return err
	}
	u := b.uniforms(st, mesh.Affine(st.m), st.ct)
	return b.record(st, render.VariantColor, geo, &u, [2]render.TextureBinding{}, image.Rectangle{})
}

func (b *builder) uniforms(st drawState, m render.Affine, ct displaylist.ColorTransform) render.Uniforms {
	u := render.IdentityUniforms()
	u.Transform = st.layer.ClipTransform(m).Rows()
	ct = ct.Normalized()
	u.Mult, u.Add = ct.Mult, ct.Add
	return u
}

func (b *builder) record(st drawState, variant render.ShaderVariant, geo drawlist.Geometry,
	u *render.Uniforms, tex [2]render.TextureBinding, scissor image.Rectangle) error {
	key := pipeline.Key{
		Blend:   render.BlendNormal,
		Variant: variant,
		Format:  st.layer.Target.Format,
		Samples: st.layer.Target.Samples,
	}
	_, err := b.r.rec.Record(st.layer.Pass(), key, geo, u, tex, scissor)
	return err
}

// ready reports whether t may be sampled by this frame. Draws of textures
// that are not visible to the device yet are deferred to a later frame.
func (b *builder) ready(t *upload.Texture) bool {
	if t.Ready(b.serial) {
		return true
	}
	b.stats.DeferredDraws++
	return false
}

func (b *builder) groupLabel(g *displaylist.GroupNode) string {
	b.groups++
	if !b.labels {
		return "group"
	}
	return fmt.Sprintf("group %d %s filters=%d mask=%t", b.groups, g.Blend, len(g.Filters), g.Mask != nil)
}

// texelScale maps source pixels of t to texture coordinates.
func texelScale(t *upload.Texture) render.Affine {
	return render.Affine{A: 1 / float64(t.SourceWidth), D: 1 / float64(t.SourceHeight)}
}

func roundOut(r displaylist.Rect) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(r.XMin)), int(math.Floor(r.YMin)),
		int(math.Ceil(r.XMax)), int(math.Ceil(r.YMax)),
	)
}

func rectOf(r image.Rectangle) displaylist.Rect {
	return displaylist.Rect{
		XMin: float64(r.Min.X), YMin: float64(r.Min.Y),
		XMax: float64(r.Max.X), YMax: float64(r.Max.Y),
	}
}
