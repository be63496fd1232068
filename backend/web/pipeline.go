// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package web

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// sharedState holds the objects every pipeline and draw shares.
type sharedState struct {
	module        *wgpu.ShaderModule
	uniformLayout *wgpu.BindGroupLayout
	textureLayout *wgpu.BindGroupLayout
	pipeLayout    *wgpu.PipelineLayout

	samplers [shader.Samplers]*wgpu.Sampler

	empty     *wgpu.Texture
	emptyView *wgpu.TextureView

	// The copy quad reloads companions and presents surface back buffers.
	quad        *wgpu.Buffer
	quadIndex   *wgpu.Buffer
	quadUniform *wgpu.Buffer
	quadGroup   *wgpu.BindGroup
	copies      map[copyKey]*wgpu.RenderPipeline
}

type copyKey struct {
	format  render.TextureFormat
	samples int
}

func (d *Device) sharedObjects() (*sharedState, error) {
	if d.shared != nil {
		return d.shared, nil
	}
	s := &sharedState{copies: make(map[copyKey]*wgpu.RenderPipeline)}
	if err := d.createShared(s); err != nil {
		s.release()
		return nil, fmt.Errorf("web: shared objects: %w", d.fail(err))
	}
	d.shared = s
	return s, nil
}

func (d *Device) createShared(s *sharedState) error {
	var err error
	// The browser compiles WGSL itself.
	if s.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{Label: "stage", WGSL: shader.Source}); err != nil {
		return fmt.Errorf("shader module: %w", err)
	}
	if s.uniformLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "stage_uniforms",
		Entries: shader.UniformLayout(),
	}); err != nil {
		return fmt.Errorf("uniform layout: %w", err)
	}
	if s.textureLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "stage_textures",
		Entries: shader.TextureLayout(),
	}); err != nil {
		return fmt.Errorf("texture layout: %w", err)
	}
	if s.pipeLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "stage",
		BindGroupLayouts: []*wgpu.BindGroupLayout{s.uniformLayout, s.textureLayout},
	}); err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}

	for mode := range s.samplers {
		filter, address := shader.Sampler(render.SamplerMode(mode))
		if s.samplers[mode], err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:        fmt.Sprintf("stage_sampler_%d", mode),
			AddressModeU: address,
			AddressModeV: address,
			AddressModeW: address,
			MagFilter:    filter,
			MinFilter:    filter,
			MipmapFilter: gputypes.FilterModeNearest,
			LodMaxClamp:  32,
			Anisotropy:   1,
		}); err != nil {
			return fmt.Errorf("sampler: %w", err)
		}
	}

	if s.empty, s.emptyView, err = d.createRawTexture("stage_empty", 1, 1, render.FormatRGBA8, 1,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst); err != nil {
		return fmt.Errorf("empty texture: %w", err)
	}
	if err := d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: s.empty, Aspect: gputypes.TextureAspectAll},
		make([]byte, 4),
		&wgpu.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	); err != nil {
		return fmt.Errorf("empty texture: %w", err)
	}
	return d.createCopyQuad(s)
}

func (d *Device) createCopyQuad(s *sharedState) error {
	q := shader.CopyQuad()
	var err error
	upload := func(label string, usage gputypes.BufferUsage, data []byte) *wgpu.Buffer {
		if err != nil {
			return nil
		}
		var b *wgpu.Buffer
		b, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: uint64(len(data)), Usage: usage | gputypes.BufferUsageCopyDst})
		if err == nil {
			err = d.queue.WriteBuffer(b, 0, data)
		}
		return b
	}
	s.quad = upload("stage_copy_vertices", gputypes.BufferUsageVertex, q.Vertices)
	s.quadIndex = upload("stage_copy_indices", gputypes.BufferUsageIndex, q.Indices)
	s.quadUniform = upload("stage_copy_uniforms", gputypes.BufferUsageUniform, q.Uniforms)
	if err != nil {
		return fmt.Errorf("copy quad: %w", err)
	}
	s.quadGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "stage_copy_uniforms",
		Layout:  s.uniformLayout,
		Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: s.quadUniform, Size: render.UniformSize}},
	})
	return err
}

func (s *sharedState) release() {
	for k, p := range s.copies {
		p.Release()
		delete(s.copies, k)
	}
	if s.quadGroup != nil {
		s.quadGroup.Release()
	}
	for _, b := range []*wgpu.Buffer{s.quad, s.quadIndex, s.quadUniform} {
		if b != nil {
			b.Release()
		}
	}
	if s.emptyView != nil {
		s.emptyView.Release()
	}
	if s.empty != nil {
		s.empty.Release()
	}
	for _, smp := range s.samplers {
		if smp != nil {
			smp.Release()
		}
	}
	if s.pipeLayout != nil {
		s.pipeLayout.Release()
	}
	if s.textureLayout != nil {
		s.textureLayout.Release()
	}
	if s.uniformLayout != nil {
		s.uniformLayout.Release()
	}
	if s.module != nil {
		s.module.Release()
	}
}

func (d *Device) createPipeline(s *sharedState, desc render.PipelineDesc) (*wgpu.RenderPipeline, error) {
	return d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: s.pipeLayout,
		Vertex: wgpu.VertexState{
			Module:     s.module,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    shader.VertexLayout(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     s.module,
			EntryPoint: shader.FragmentEntryPoint(desc.Variant),
			Targets:    []wgpu.ColorTargetState{shader.ColorTarget(desc)},
		},
		Primitive:   shader.Primitive(),
		Multisample: shader.Multisample(desc.Samples),
	})
}

// copyPipeline returns the pipeline that draws the copy quad into a
// target of the given format and sample count.
func (d *Device) copyPipeline(s *sharedState, format render.TextureFormat, samples int) (*wgpu.RenderPipeline, error) {
	k := copyKey{format: format, samples: samples}
	if p, ok := s.copies[k]; ok {
		return p, nil
	}
	p, err := d.createPipeline(s, render.PipelineDesc{
		Label:   "stage_copy",
		Blend:   render.BlendReplace,
		Variant: render.VariantCopy,
		Format:  format,
		Samples: samples,
	})
	if err != nil {
		return nil, err
	}
	s.copies[k] = p
	return p, nil
}
