// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// compiledShader validates the shader module once per process.
var compiledShader = sync.OnceValues(func() ([]uint32, error) {
	spirvBytes, err := naga.Compile(shader.Source)
	if err != nil {
		return nil, fmt.Errorf("native: compile stage shader: %w", err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
})

// sharedState holds the objects every pipeline and draw shares. It is
// created by the first CreatePipeline.
type sharedState struct {
	module        hal.ShaderModule
	uniformLayout hal.BindGroupLayout
	textureLayout hal.BindGroupLayout
	pipeLayout    hal.PipelineLayout

	// samplers is indexed by render.SamplerMode.
	samplers [shader.Samplers]hal.Sampler

	// empty is bound to texture slots a variant does not read.
	empty     hal.Texture
	emptyView hal.TextureView

	// Companion reload: a full-target quad drawn with VariantCopy.
	quad        hal.Buffer
	quadIndex   hal.Buffer
	quadUniform hal.Buffer
	quadGroup   hal.BindGroup
	reload      map[reloadKey]hal.RenderPipeline
}

type reloadKey struct {
	format  render.TextureFormat
	samples int
}

func (d *Device) sharedObjects() (*sharedState, error) {
	if d.shared != nil {
		return d.shared, nil
	}
	s := &sharedState{reload: make(map[reloadKey]hal.RenderPipeline)}
	if err := d.createShared(s); err != nil {
		s.destroy(d.device)
		return nil, fmt.Errorf("native: shared objects: %w", d.fail(err))
	}
	d.shared = s
	return s, nil
}

func (d *Device) createShared(s *sharedState) error {
	spirv, err := compiledShader()
	if err != nil {
		return err
	}
	src := hal.ShaderSource{WGSL: shader.Source}
	if d.info.Backend == gputypes.BackendVulkan {
		src = hal.ShaderSource{SPIRV: spirv}
	}
	if s.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: "stage", Source: src}); err != nil {
		return fmt.Errorf("shader module: %w", err)
	}

	s.uniformLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "stage_uniforms",
		Entries: shader.UniformLayout(),
	})
	if err != nil {
		return fmt.Errorf("uniform layout: %w", err)
	}

	if s.textureLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "stage_textures",
		Entries: shader.TextureLayout(),
	}); err != nil {
		return fmt.Errorf("texture layout: %w", err)
	}

	if s.pipeLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "stage",
		BindGroupLayouts: []hal.BindGroupLayout{s.uniformLayout, s.textureLayout},
	}); err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}

	for mode := range s.samplers {
		filter, address := shader.Sampler(render.SamplerMode(mode))
		if s.samplers[mode], err = d.device.CreateSampler(&hal.SamplerDescriptor{
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
		&hal.ImageCopyTexture{Texture: s.empty, Aspect: gputypes.TextureAspectAll},
		make([]byte, 4),
		&hal.ImageDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	); err != nil {
		return fmt.Errorf("empty texture: %w", err)
	}
	return d.createReloadQuad(s)
}

// createReloadQuad uploads the clip-space quad used to reload companions.
func (d *Device) createReloadQuad(s *sharedState) error {
	q := shader.CopyQuad()

	var err error
	upload := func(label string, usage gputypes.BufferUsage, data []byte) hal.Buffer {
		if err != nil {
			return nil
		}
		var b hal.Buffer
		b, err = d.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: uint64(len(data)), Usage: usage | gputypes.BufferUsageCopyDst})
		if err == nil {
			err = d.queue.WriteBuffer(b, 0, data)
		}
		return b
	}
	s.quad = upload("stage_reload_vertices", gputypes.BufferUsageVertex, q.Vertices)
	s.quadIndex = upload("stage_reload_indices", gputypes.BufferUsageIndex, q.Indices)
	s.quadUniform = upload("stage_reload_uniforms", gputypes.BufferUsageUniform, q.Uniforms)
	if err != nil {
		return fmt.Errorf("reload quad: %w", err)
	}
	s.quadGroup, err = d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "stage_reload_uniforms",
		Layout: s.uniformLayout,
		Entries: []gputypes.BindGroupEntry{{
			Binding:  0,
			Resource: gputypes.BufferBinding{Buffer: s.quadUniform.NativeHandle(), Size: render.UniformSize},
		}},
	})
	return err
}

func (s *sharedState) destroy(dev hal.Device) {
	for k, p := range s.reload {
		dev.DestroyRenderPipeline(p)
		delete(s.reload, k)
	}
	if s.quadGroup != nil {
		dev.DestroyBindGroup(s.quadGroup)
	}
	for _, b := range []hal.Buffer{s.quad, s.quadIndex, s.quadUniform} {
		if b != nil {
			dev.DestroyBuffer(b)
		}
	}
	if s.emptyView != nil {
		dev.DestroyTextureView(s.emptyView)
	}
	if s.empty != nil {
		dev.DestroyTexture(s.empty)
	}
	for _, smp := range s.samplers {
		if smp != nil {
			dev.DestroySampler(smp)
		}
	}
	if s.pipeLayout != nil {
		dev.DestroyPipelineLayout(s.pipeLayout)
	}
	if s.textureLayout != nil {
		dev.DestroyBindGroupLayout(s.textureLayout)
	}
	if s.uniformLayout != nil {
		dev.DestroyBindGroupLayout(s.uniformLayout)
	}
	if s.module != nil {
		dev.DestroyShaderModule(s.module)
	}
}

func (d *Device) createPipeline(s *sharedState, desc render.PipelineDesc) (hal.RenderPipeline, error) {
	return d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: s.pipeLayout,
		Vertex: hal.VertexState{
			Module:     s.module,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    shader.VertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     s.module,
			EntryPoint: shader.FragmentEntryPoint(desc.Variant),
			Targets:    []gputypes.ColorTargetState{shader.ColorTarget(desc)},
		},
		Primitive:   shader.Primitive(),
		Multisample: shader.Multisample(desc.Samples),
	})
}

// reloadPipeline returns the pipeline that copies a texture into a
// multisampled companion.
func (d *Device) reloadPipeline(s *sharedState, format render.TextureFormat, samples int) (hal.RenderPipeline, error) {
	k := reloadKey{format: format, samples: samples}
	if p, ok := s.reload[k]; ok {
		return p, nil
	}
	p, err := d.createPipeline(s, render.PipelineDesc{
		Label:   "stage_reload",
		Blend:   render.BlendReplace,
		Variant: render.VariantCopy,
		Format:  format,
		Samples: samples,
	})
	if err != nil {
		return nil, err
	}
	s.reload[k] = p
	return p, nil
}
