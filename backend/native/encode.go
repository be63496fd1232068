// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// textureKey identifies a texture bind group. Zero handles bind the empty
// texture.
type textureKey struct {
	tex [2]render.TextureHandle
	smp [2]render.SamplerMode
}

func (k textureKey) uses(h render.TextureHandle) bool {
	return k.tex[0] == h || k.tex[1] == h
}

func (d *Device) dropTextureGroups(h render.TextureHandle) {
	for k, g := range d.textureGroups {
		if k.uses(h) {
			d.device.DestroyBindGroup(g)
			delete(d.textureGroups, k)
		}
	}
}

func (d *Device) uniformGroup(s *sharedState, h render.BufferHandle, b *buffer) (hal.BindGroup, error) {
	if g, ok := d.uniformGroups[h]; ok {
		return g, nil
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "stage_uniforms",
		Layout: s.uniformLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Size: render.UniformSize},
		}},
	})
	if err != nil {
		return nil, err
	}
	d.uniformGroups[h] = g
	return g, nil
}

func (d *Device) textureGroup(s *sharedState, k textureKey) (hal.BindGroup, error) {
	if g, ok := d.textureGroups[k]; ok {
		return g, nil
	}
	var entries []gputypes.BindGroupEntry
	for slot := range shader.TextureSlots {
		view := s.emptyView
		if h := k.tex[slot]; h != 0 {
			t, ok := d.textures[h]
			if !ok {
				return nil, fmt.Errorf("texture slot %d: %w", slot, render.ErrInvalidHandle)
			}
			view = t.view
		}
		entries = append(entries,
			gputypes.BindGroupEntry{
				Binding:  shader.TextureBinding(slot),
				Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
			},
			gputypes.BindGroupEntry{
				Binding:  shader.SamplerBinding(slot),
				Resource: gputypes.SamplerBinding{Sampler: s.samplers[k.smp[slot]&3].NativeHandle()},
			},
		)
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "stage_textures",
		Layout:  s.textureLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	d.textureGroups[k] = g
	return g, nil
}

// boundDraw is a draw with every handle resolved.
type boundDraw struct {
	pipe     hal.RenderPipeline
	vertices *buffer
	vOffset  uint64
	indices  *buffer
	iOffset  uint64
	count    uint32
	uniforms hal.BindGroup
	uOffset  uint32
	textures hal.BindGroup
	scissor  image.Rectangle
}

// Submit implements render.Device.
func (d *Device) Submit(passes []render.Pass) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	d.retire()
	s, err := d.sharedObjects()
	if err != nil {
		return 0, err
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "stage_frame"})
	if err != nil {
		return 0, fmt.Errorf("native: command encoder: %w", d.fail(err))
	}
	if err := enc.BeginEncoding("stage_frame"); err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("native: begin encoding: %w", d.fail(err))
	}
	for i := range passes {
		p := &passes[i]
		if p.Copy != nil {
			err = d.encodeCopy(enc, p)
		} else {
			err = d.encodeRender(enc, s, p)
		}
		if err != nil {
			enc.DiscardEncoding()
			enc.Destroy()
			return 0, fmt.Errorf("native: pass %d %q: %w", i, p.Label, err)
		}
	}
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("native: end encoding: %w", d.fail(err))
	}
	serial, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		enc.Destroy()
		return 0, fmt.Errorf("native: submit: %w", d.fail(err))
	}
	d.pending = append(d.pending, inflight{serial: serial, encoder: enc, cmd: cmd})
	return serial, nil
}

func (d *Device) encodeCopy(enc hal.CommandEncoder, p *render.Pass) error {
	src, ok := d.textures[p.Copy.Source]
	if !ok {
		return fmt.Errorf("copy source: %w", render.ErrInvalidHandle)
	}
	dst, ok := d.textures[p.Target]
	if !ok {
		return fmt.Errorf("copy target: %w", render.ErrInvalidHandle)
	}
	r, at, ok := shader.ClipCopy(p.Copy.Src, image.Pt(src.desc.Width, src.desc.Height),
		p.Copy.DstPoint, image.Pt(dst.desc.Width, dst.desc.Height))
	if !ok {
		return nil
	}
	enc.CopyTextureToTexture(src.raw, dst.raw, []hal.TextureCopy{{
		SrcBase: hal.ImageCopyTexture{
			Texture: src.raw,
			Origin:  hal.Origin3D{X: uint32(r.Min.X), Y: uint32(r.Min.Y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		DstBase: hal.ImageCopyTexture{
			Texture: dst.raw,
			Origin:  hal.Origin3D{X: uint32(at.X), Y: uint32(at.Y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: uint32(r.Dx()), Height: uint32(r.Dy()), DepthOrArrayLayers: 1},
	}})
	dst.msaaStale = true
	return nil
}

func (d *Device) bindDraw(s *sharedState, t *texture, samples int, dr *render.Draw) (boundDraw, error) {
	var b boundDraw
	p, ok := d.pipes[dr.Pipeline]
	if !ok {
		return b, fmt.Errorf("pipeline: %w", render.ErrInvalidHandle)
	}
	if p.desc.Samples != samples {
		return b, fmt.Errorf("pipeline has %d samples, pass has %d", p.desc.Samples, samples)
	}
	if p.desc.Format != t.desc.Format {
		return b, fmt.Errorf("pipeline format %s, target format %s", p.desc.Format, t.desc.Format)
	}
	b.pipe = p.raw

	var err error
	if b.vertices, err = d.rangeOf(dr.Vertices, 0); err != nil {
		return b, fmt.Errorf("vertices: %w", err)
	}
	b.vOffset = uint64(dr.Vertices.Offset)
	if b.indices, err = d.rangeOf(dr.Indices, dr.IndexCount*4); err != nil {
		return b, fmt.Errorf("indices: %w", err)
	}
	b.iOffset = uint64(dr.Indices.Offset)
	b.count = uint32(dr.IndexCount)

	ub, err := d.rangeOf(dr.Uniforms, render.UniformSize)
	if err != nil {
		return b, fmt.Errorf("uniforms: %w", err)
	}
	if dr.Uniforms.Offset%d.caps.UniformAlignment != 0 {
		return b, fmt.Errorf("uniform offset %d is not %d-aligned", dr.Uniforms.Offset, d.caps.UniformAlignment)
	}
	if b.uniforms, err = d.uniformGroup(s, dr.Uniforms.Buffer, ub); err != nil {
		return b, fmt.Errorf("uniform group: %w", d.fail(err))
	}
	b.uOffset = uint32(dr.Uniforms.Offset)

	var k textureKey
	for i := 0; i < p.desc.Variant.Textures(); i++ {
		k.tex[i] = dr.Textures[i].Texture
		k.smp[i] = dr.Textures[i].Sampler
	}
	if b.textures, err = d.textureGroup(s, k); err != nil {
		return b, err
	}

	b.scissor = image.Rect(0, 0, t.desc.Width, t.desc.Height)
	if !dr.Scissor.Empty() {
		b.scissor = b.scissor.Intersect(dr.Scissor)
	}
	return b, nil
}

func (d *Device) rangeOf(r render.BufferRange, need int) (*buffer, error) {
	b, ok := d.buffers[r.Buffer]
	if !ok {
		return nil, render.ErrInvalidHandle
	}
	size := r.Size
	if need > 0 {
		size = need
	}
	if r.Offset < 0 || r.Offset+size > b.size {
		return nil, fmt.Errorf("range %d+%d outside buffer of %d", r.Offset, size, b.size)
	}
	return b, nil
}

func (d *Device) encodeRender(enc hal.CommandEncoder, s *sharedState, p *render.Pass) error {
	t, ok := d.textures[p.Target]
	if !ok {
		return fmt.Errorf("target: %w", render.ErrInvalidHandle)
	}
	samples := max(p.Samples, 1)

	draws := make([]boundDraw, 0, len(p.Draws))
	for i := range p.Draws {
		b, err := d.bindDraw(s, t, samples, &p.Draws[i])
		if err != nil {
			return fmt.Errorf("draw %d: %w", i, err)
		}
		if !b.scissor.Empty() && b.count > 0 {
			draws = append(draws, b)
		}
	}

	att := hal.RenderPassColorAttachment{
		View:    t.view,
		LoadOp:  gputypes.LoadOpClear,
		StoreOp: gputypes.StoreOpStore,
		ClearValue: shader.ClearColor(p.Clear),
	}
	if p.Load == render.LoadKeep {
		att.LoadOp = gputypes.LoadOpLoad
	}
	if samples > 1 {
		fresh, err := d.ensureCompanion(t, samples)
		if err != nil {
			return err
		}
		if p.Load == render.LoadKeep && (fresh || t.msaaStale) {
			if err := d.encodeReload(enc, s, p.Target, t, samples); err != nil {
				return err
			}
		}
		att.View = t.msaaView
		att.ResolveTarget = t.view
	}

	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            p.Label,
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
	for i := range draws {
		b := &draws[i]
		rp.SetPipeline(b.pipe)
		rp.SetBindGroup(0, b.uniforms, []uint32{b.uOffset})
		rp.SetBindGroup(1, b.textures, nil)
		rp.SetVertexBuffer(0, b.vertices.raw, b.vOffset)
		rp.SetIndexBuffer(b.indices.raw, gputypes.IndexFormatUint32, b.iOffset)
		rp.SetScissorRect(uint32(b.scissor.Min.X), uint32(b.scissor.Min.Y), uint32(b.scissor.Dx()), uint32(b.scissor.Dy()))
		rp.DrawIndexed(b.count, 1, 0, 0, 0)
	}
	rp.End()

	if samples > 1 {
		t.msaaStale = false
	} else if t.msaa != nil {
		t.msaaStale = true
	}
	return nil
}

// ensureCompanion creates the multisampled companion of t. It reports
// whether the companion is new.
func (d *Device) ensureCompanion(t *texture, samples int) (bool, error) {
	if t.msaa != nil && t.msaaSamples == samples {
		return false, nil
	}
	d.destroyCompanion(t)
	raw, view, err := d.createRawTexture(t.desc.Label+" msaa", t.desc.Width, t.desc.Height, t.desc.Format, samples,
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return false, fmt.Errorf("msaa companion: %w", d.fail(err))
	}
	t.msaa, t.msaaView, t.msaaSamples = raw, view, samples
	return true, nil
}

// encodeReload copies the single-sample contents of t into every sample of
// its companion.
func (d *Device) encodeReload(enc hal.CommandEncoder, s *sharedState, h render.TextureHandle, t *texture, samples int) error {
	pipe, err := d.reloadPipeline(s, t.desc.Format, samples)
	if err != nil {
		return fmt.Errorf("reload pipeline: %w", d.fail(err))
	}
	group, err := d.textureGroup(s, textureKey{tex: [2]render.TextureHandle{h}})
	if err != nil {
		return err
	}
	rp := enc.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "stage_reload",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    t.msaaView,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		}},
	})
	rp.SetPipeline(pipe)
	rp.SetBindGroup(0, s.quadGroup, []uint32{0})
	rp.SetBindGroup(1, group, nil)
	rp.SetVertexBuffer(0, s.quad, 0)
	rp.SetIndexBuffer(s.quadIndex, gputypes.IndexFormatUint32, 0)
	rp.DrawIndexed(shader.QuadIndexCount, 1, 0, 0, 0)
	rp.End()
	return nil
}
