// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/stage/render"
)

// openNoop opens a device on the noop HAL backend.
func openNoop(t *testing.T) *Device {
	t.Helper()
	d, err := OpenBackend(noop.API{})
	if err != nil {
		t.Fatalf("OpenBackend failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

// quad uploads one rectangle and its uniforms and returns a draw for it.
func quad(t *testing.T, d *Device, pipe render.PipelineHandle, tex render.TextureHandle) render.Draw {
	t.Helper()
	vs := render.AppendVertices(nil, []render.Vertex{
		{X: -1, Y: -1, Color: [4]float32{1, 0, 0, 1}},
		{X: 1, Y: -1, Color: [4]float32{1, 0, 0, 1}},
		{X: 1, Y: 1, Color: [4]float32{1, 0, 0, 1}},
		{X: -1, Y: 1, Color: [4]float32{1, 0, 0, 1}},
	})
	is := render.AppendIndices(nil, []uint32{0, 1, 2, 0, 2, 3})
	u := render.IdentityUniforms()
	ub := u.Bytes()

	upload := func(kind render.BufferKind, data []byte) render.BufferRange {
		h, err := d.CreateBuffer(kind, len(data))
		if err != nil {
			t.Fatalf("CreateBuffer(%s) failed: %v", kind, err)
		}
		if err := d.WriteBuffer(h, 0, data); err != nil {
			t.Fatalf("WriteBuffer(%s) failed: %v", kind, err)
		}
		return render.BufferRange{Buffer: h, Size: len(data)}
	}
	return render.Draw{
		Pipeline:   pipe,
		Vertices:   upload(render.BufferVertex, vs),
		Indices:    upload(render.BufferIndex, is),
		IndexCount: 6,
		Uniforms:   upload(render.BufferUniform, ub),
		Textures:   [2]render.TextureBinding{{Texture: tex, Sampler: render.SampleSmooth}},
	}
}

func target(t *testing.T, d *Device, w, h int) render.TextureHandle {
	t.Helper()
	tex, err := d.CreateTexture(render.TextureDesc{
		Label: "target", Width: w, Height: h, Format: render.FormatRGBA8,
		Usage: render.UsageRenderTarget | render.UsageSampled | render.UsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	return tex
}

func TestStageShaderCompiles(t *testing.T) {
	words, err := compiledShader()
	if err != nil {
		t.Fatalf("stage shader: %v", err)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Errorf("expected SPIR-V magic, got %d words", len(words))
	}
}

func TestOpenNoop(t *testing.T) {
	d := openNoop(t)
	if d.Info().Backend != gputypes.BackendEmpty {
		t.Errorf("backend = %v, want empty", d.Info().Backend)
	}
	caps := d.Capabilities()
	if caps.MaxTextureSize != 8192 {
		t.Errorf("MaxTextureSize = %d, want 8192", caps.MaxTextureSize)
	}
	if caps.UniformAlignment != 256 {
		t.Errorf("UniformAlignment = %d, want 256", caps.UniformAlignment)
	}
	if caps.AsyncReadiness {
		t.Error("noop device completes synchronously, AsyncReadiness should be false")
	}
	if !caps.SupportsFormat(render.FormatBGRA8) || !caps.SupportsFormat(render.FormatRGBA8) {
		t.Errorf("formats = %v", caps.Formats)
	}
}

func TestBufferLifecycle(t *testing.T) {
	d := openNoop(t)
	h, err := d.CreateBuffer(render.BufferVertex, 10)
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	// Unaligned writes are padded.
	if err := d.WriteBuffer(h, 0, []byte{1, 2, 3, 4, 5, 6, 7}); err != nil {
		t.Errorf("WriteBuffer: %v", err)
	}
	if err := d.WriteBuffer(h, 8, []byte{1, 2, 3}); err == nil {
		t.Error("expected overflow error")
	}
	if _, err := d.CreateBuffer(render.BufferIndex, 0); err == nil {
		t.Error("expected error for empty buffer")
	}
	d.DestroyBuffer(h)
	if err := d.WriteBuffer(h, 0, []byte{1}); !errors.Is(err, render.ErrInvalidHandle) {
		t.Errorf("write after destroy: %v, want ErrInvalidHandle", err)
	}
}

func TestTextureLimits(t *testing.T) {
	d := openNoop(t)
	_, err := d.CreateTexture(render.TextureDesc{Width: 9000, Height: 4, Format: render.FormatRGBA8})
	if !errors.Is(err, render.ErrUnsupported) {
		t.Errorf("oversized texture: %v, want ErrUnsupported", err)
	}
	tex := target(t, d, 4, 4)
	if err := d.WriteTexture(tex, make([]byte, 4*4*4)); err != nil {
		t.Errorf("WriteTexture: %v", err)
	}
	if err := d.WriteTexture(tex, make([]byte, 3)); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestPipelineValidation(t *testing.T) {
	d := openNoop(t)
	tests := []struct {
		name string
		desc render.PipelineDesc
		ok   bool
	}{
		{"normal", render.PipelineDesc{Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1}, true},
		{"msaa", render.PipelineDesc{Variant: render.VariantBitmap, Format: render.FormatBGRA8, Samples: 4}, true},
		{"lighten", render.PipelineDesc{Blend: render.BlendLighten, Format: render.FormatRGBA8, Samples: 1}, true},
		{"darken", render.PipelineDesc{Blend: render.BlendDarken, Format: render.FormatRGBA8, Samples: 1}, true},
		{"three samples", render.PipelineDesc{Format: render.FormatRGBA8, Samples: 3}, false},
		{"eight samples", render.PipelineDesc{Format: render.FormatRGBA8, Samples: 8}, false},
		{"no format", render.PipelineDesc{Samples: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := d.CreatePipeline(tt.desc)
			if tt.ok {
				if err != nil {
					t.Fatalf("CreatePipeline: %v", err)
				}
				d.DestroyPipeline(h)
				return
			}
			if !errors.Is(err, render.ErrUnsupported) {
				t.Errorf("CreatePipeline: %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestSubmitSerials(t *testing.T) {
	d := openNoop(t)
	tex := target(t, d, 8, 8)
	pipe, err := d.CreatePipeline(render.PipelineDesc{Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 1})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	pass := render.Pass{Label: "main", Target: tex, Samples: 1, Draws: []render.Draw{quad(t, d, pipe, 0)}}

	for want := uint64(1); want <= 3; want++ {
		serial, err := d.Submit([]render.Pass{pass})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if serial != want {
			t.Errorf("serial = %d, want %d", serial, want)
		}
	}
	if got := d.Completed(); got != 3 {
		t.Errorf("Completed = %d, want 3", got)
	}
	if len(d.pending) != 0 {
		t.Errorf("%d submissions still pending after completion", len(d.pending))
	}
	if err := d.Wait(context.Background(), 3); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestWaitCancelled(t *testing.T) {
	d := openNoop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Wait(ctx, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
}

func TestSubmitRejectsBadDraws(t *testing.T) {
	d := openNoop(t)
	tex := target(t, d, 8, 8)
	pipe, err := d.CreatePipeline(render.PipelineDesc{Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 4})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	dr := quad(t, d, pipe, 0)

	if _, err := d.Submit([]render.Pass{{Target: tex, Samples: 1, Draws: []render.Draw{dr}}}); err == nil {
		t.Error("expected sample count mismatch error")
	}
	bad := dr
	bad.Uniforms.Offset = 16
	if _, err := d.Submit([]render.Pass{{Target: tex, Samples: 4, Draws: []render.Draw{bad}}}); err == nil {
		t.Error("expected uniform alignment error")
	}
	if len(d.pending) != 0 {
		t.Error("failed submissions must not stay pending")
	}
}

func TestMultisampleCompanion(t *testing.T) {
	d := openNoop(t)
	tex := target(t, d, 8, 8)
	pipe, err := d.CreatePipeline(render.PipelineDesc{Variant: render.VariantColor, Format: render.FormatRGBA8, Samples: 4})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	dr := quad(t, d, pipe, 0)

	if _, err := d.Submit([]render.Pass{{Target: tex, Samples: 4, Draws: []render.Draw{dr}}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tt := d.textures[tex]
	if tt.msaa == nil || tt.msaaSamples != 4 {
		t.Fatalf("expected a 4x companion, got samples=%d", tt.msaaSamples)
	}
	if tt.msaaStale {
		t.Error("companion should be current after a multisampled pass")
	}
	if len(d.shared.reload) != 0 {
		t.Error("a clearing pass needs no reload")
	}

	// An upload makes the companion stale; the next loading pass reloads it.
	if err := d.WriteTexture(tex, make([]byte, 8*8*4)); err != nil {
		t.Fatalf("WriteTexture: %v", err)
	}
	if !tt.msaaStale {
		t.Error("upload should mark the companion stale")
	}
	if _, err := d.Submit([]render.Pass{{Target: tex, Load: render.LoadKeep, Samples: 4, Draws: []render.Draw{dr}}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, ok := d.shared.reload[reloadKey{render.FormatRGBA8, 4}]; !ok {
		t.Error("expected a reload pipeline after loading a stale companion")
	}
	if tt.msaaStale {
		t.Error("companion should be current after reload")
	}

	// A copy into the target also invalidates it.
	src := target(t, d, 8, 8)
	if _, err := d.Submit([]render.Pass{{Target: tex, Copy: &render.Copy{Source: src, Src: image.Rect(0, 0, 8, 8)}}}); err != nil {
		t.Fatalf("copy Submit: %v", err)
	}
	if !tt.msaaStale {
		t.Error("copy should mark the companion stale")
	}
}

func TestBindGroupInvalidation(t *testing.T) {
	d := openNoop(t)
	dst := target(t, d, 8, 8)
	src := target(t, d, 4, 4)
	pipe, err := d.CreatePipeline(render.PipelineDesc{Variant: render.VariantBitmap, Format: render.FormatRGBA8, Samples: 1})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	dr := quad(t, d, pipe, src)
	if _, err := d.Submit([]render.Pass{{Target: dst, Samples: 1, Draws: []render.Draw{dr}}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(d.textureGroups) != 1 || len(d.uniformGroups) != 1 {
		t.Fatalf("groups = %d texture, %d uniform; want 1 and 1", len(d.textureGroups), len(d.uniformGroups))
	}

	d.DestroyTexture(src)
	if len(d.textureGroups) != 0 {
		t.Error("texture group survived its texture")
	}
	d.DestroyBuffer(dr.Uniforms.Buffer)
	if len(d.uniformGroups) != 0 {
		t.Error("uniform group survived its buffer")
	}
	if _, err := d.Submit([]render.Pass{{Target: dst, Samples: 1, Draws: []render.Draw{dr}}}); !errors.Is(err, render.ErrInvalidHandle) {
		t.Errorf("submit with destroyed resources: %v, want ErrInvalidHandle", err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{hal.ErrDeviceOutOfMemory, render.ErrOutOfMemory},
		{hal.ErrDeviceLost, render.ErrDeviceLost},
		{hal.ErrSurfaceLost, render.ErrSurfaceLost},
		{hal.ErrSurfaceOutdated, render.ErrSurfaceOutdated},
		{hal.ErrTimeout, render.ErrTimeout},
		{fmt.Errorf("acquire: %w", hal.ErrNotReady), render.ErrTimeout},
	}
	for _, tt := range tests {
		got := mapError(tt.in)
		if !errors.Is(got, tt.want) || !errors.Is(got, tt.in) {
			t.Errorf("mapError(%v) = %v, want both %v and the original", tt.in, got, tt.want)
		}
	}
	if mapError(nil) != nil {
		t.Error("mapError(nil) != nil")
	}
}

func TestSurfaceLifecycle(t *testing.T) {
	d := openNoop(t)
	s, err := d.CreateSurface(0, 0)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer s.Close()

	formats := s.Formats()
	if len(formats) != 2 {
		t.Errorf("Formats = %v", formats)
	}
	ctx := context.Background()
	if _, err := s.Acquire(ctx); !errors.Is(err, render.ErrNotConfigured) {
		t.Errorf("Acquire before Configure: %v", err)
	}
	if err := s.Configure(0, 10, render.FormatBGRA8); err == nil {
		t.Error("expected error for empty size")
	}
	if err := s.Configure(64, 32, render.FormatBGRA8); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	frame, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if frame.Width != 64 || frame.Height != 32 || frame.Format != render.FormatBGRA8 {
		t.Errorf("frame = %+v", frame)
	}
	if _, ok := d.textures[frame.Texture]; !ok {
		t.Fatal("acquired frame is not a device texture")
	}
	if _, err := s.Acquire(ctx); err == nil {
		t.Error("expected error acquiring twice")
	}
	if err := s.Present(frame); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if _, ok := d.textures[frame.Texture]; ok {
		t.Error("presented frame still registered")
	}
	if err := s.Present(frame); !errors.Is(err, render.ErrInvalidHandle) {
		t.Errorf("second Present: %v, want ErrInvalidHandle", err)
	}

	frame, err = s.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	s.Discard(frame)
	if _, ok := d.textures[frame.Texture]; ok {
		t.Error("discarded frame still registered")
	}
}

type hostProvider struct {
	dev   hal.Device
	queue hal.Queue
}

func (p hostProvider) Device() gpucontext.Device { return p.dev }
func (p hostProvider) Queue() gpucontext.Queue { return p.queue }
func (p hostProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }
func (p hostProvider) Adapter() gpucontext.Adapter { return nil }
func (p hostProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{Name: "host", Type: gpucontext.AdapterTypeIntegrated} }
func (p hostProvider) HalDevice() any { return p.dev }
func (p hostProvider) HalQueue() any { return p.queue }

type plainProvider struct{ hostProvider }

func (plainProvider) HalDevice() {}

func TestNewFromProvider(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	defer instance.Destroy()
	open, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer open.Device.Destroy()

	d, err := NewFromProvider(hostProvider{dev: open.Device, queue: open.Queue})
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	if d.Info().DeviceType != gputypes.DeviceTypeIntegratedGPU {
		t.Errorf("device type = %v", d.Info().DeviceType)
	}
	if !d.Capabilities().AsyncReadiness {
		t.Error("host devices are treated as asynchronous")
	}
	if _, err := d.CreateSurface(0, 0); err == nil {
		t.Error("host devices cannot create surfaces")
	}
	d.Close()
	if !d.external {
		t.Error("host device marked as owned")
	}

	if _, err := NewFromProvider(plainProvider{}); err == nil {
		t.Error("expected error for provider without HAL handles")
	}
	if _, err := NewFromProvider(hostProvider{}); err == nil {
		t.Error("expected error for nil HAL device")
	}
}

func TestDeviceLost(t *testing.T) {
	d := openNoop(t)
	h, err := d.CreateBuffer(render.BufferUniform, 256)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := d.fail(fmt.Errorf("submit: %w", hal.ErrDeviceLost)); !errors.Is(err, render.ErrDeviceLost) {
		t.Errorf("fail = %v", err)
	}
	if _, err := d.CreateBuffer(render.BufferVertex, 4); !errors.Is(err, render.ErrDeviceLost) {
		t.Errorf("CreateBuffer after loss: %v", err)
	}
	if err := d.WriteBuffer(h, 0, []byte{1}); !errors.Is(err, render.ErrDeviceLost) {
		t.Errorf("WriteBuffer after loss: %v", err)
	}
	if _, err := d.Submit(nil); !errors.Is(err, render.ErrDeviceLost) {
		t.Errorf("Submit after loss: %v", err)
	}
	if err := d.Wait(context.Background(), 1); !errors.Is(err, render.ErrDeviceLost) {
		t.Errorf("Wait after loss: %v", err)
	}
}
