// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package web

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// waitPoll is how often Wait polls the queue. The browser advances the
// queue between event loop turns, so a coarse tick is enough.
const waitPoll = time.Millisecond

type buffer struct {
	raw  *wgpu.Buffer
	kind render.BufferKind
	size int
}

type texture struct {
	raw  *wgpu.Texture
	view *wgpu.TextureView
	desc render.TextureDesc

	msaa        *wgpu.Texture
	msaaView    *wgpu.TextureView
	msaaSamples int
	msaaStale   bool
}

type pipeline struct {
	raw  *wgpu.RenderPipeline
	desc render.PipelineDesc
}

// Device implements render.Device on a browser WebGPU device.
type Device struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     gputypes.AdapterInfo
	caps     render.Capabilities

	shared   *sharedState
	buffers  map[render.BufferHandle]*buffer
	textures map[render.TextureHandle]*texture
	pipes    map[render.PipelineHandle]*pipeline
	next     uint64

	uniformGroups map[render.BufferHandle]*wgpu.BindGroup
	textureGroups map[textureKey]*wgpu.BindGroup

	lost   bool
	closed bool
}

// Open requests an adapter and device from the browser. It fails with
// render.ErrUnsupported when the page has no WebGPU device or the wgpu
// browser bindings cannot provide one.
func Open() (*Device, error) {
	var d *Device
	err := guard("open", func() error {
		var err error
		d, err = open()
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func open() (*Device, error) {
	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("web: create instance: %w: %w", render.ErrUnsupported, err)
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("web: request adapter: %w: %w", render.ErrUnsupported, err)
	}
	dev, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "stage"})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("web: request device: %w", mapError(err))
	}
	d := &Device{
		instance:      instance,
		adapter:       adapter,
		device:        dev,
		queue:         dev.Queue(),
		info:          adapter.Info(),
		caps:          capabilities(dev.Limits()),
		buffers:       make(map[render.BufferHandle]*buffer),
		textures:      make(map[render.TextureHandle]*texture),
		pipes:         make(map[render.PipelineHandle]*pipeline),
		uniformGroups: make(map[render.BufferHandle]*wgpu.BindGroup),
		textureGroups: make(map[textureKey]*wgpu.BindGroup),
	}
	logging.Logger().Info("web: device opened", "adapter", d.info.Name, "max_texture", d.caps.MaxTextureSize)
	return d, nil
}

// Info returns the adapter the device runs on.
func (d *Device) Info() gputypes.AdapterInfo { return d.info }

// Capabilities implements render.Device.
func (d *Device) Capabilities() render.Capabilities {
	caps := d.caps
	caps.Formats = append([]render.TextureFormat(nil), d.caps.Formats...)
	return caps
}

func (d *Device) check() error {
	switch {
	case d.lost:
		return render.ErrDeviceLost
	case d.closed:
		return fmt.Errorf("web: device closed: %w", render.ErrDeviceLost)
	}
	return nil
}

func (d *Device) fail(err error) error {
	err = mapError(err)
	if errors.Is(err, render.ErrDeviceLost) && !d.lost {
		d.lost = true
		logging.Logger().Error("web: device lost", "adapter", d.info.Name)
	}
	return err
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// mapError translates wgpu errors into render errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, wgpu.ErrOutOfMemory):
		return fmt.Errorf("%w: %w", render.ErrOutOfMemory, err)
	case errors.Is(err, wgpu.ErrDeviceLost), errors.Is(err, wgpu.ErrReleased):
		return fmt.Errorf("%w: %w", render.ErrDeviceLost, err)
	case errors.Is(err, wgpu.ErrSurfaceLost):
		return fmt.Errorf("%w: %w", render.ErrSurfaceLost, err)
	case errors.Is(err, wgpu.ErrSurfaceOutdated):
		return fmt.Errorf("%w: %w", render.ErrSurfaceOutdated, err)
	case errors.Is(err, wgpu.ErrTimeout):
		return fmt.Errorf("%w: %w", render.ErrTimeout, err)
	}
	return err
}

// CreateBuffer implements render.Device.
func (d *Device) CreateBuffer(kind render.BufferKind, size int) (render.BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("web: buffer size %d", size)
	}
	raw, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: kind.String(),
		Size:  uint64((size + 3) &^ 3),
		Usage: shader.BufferUsage(kind),
	})
	if err != nil {
		return 0, fmt.Errorf("web: create %s buffer: %w", kind, d.fail(err))
	}
	h := render.BufferHandle(d.handle())
	d.buffers[h] = &buffer{raw: raw, kind: kind, size: size}
	return h, nil
}

// WriteBuffer implements render.Device.
func (d *Device) WriteBuffer(h render.BufferHandle, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	b, ok := d.buffers[h]
	if !ok {
		return render.ErrInvalidHandle
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("web: write of %d bytes at %d overflows %s buffer of %d",
			len(data), offset, b.kind, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if pad := len(data) & 3; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	if err := d.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
		return fmt.Errorf("web: write buffer: %w", d.fail(err))
	}
	return nil
}

// DestroyBuffer implements render.Device.
func (d *Device) DestroyBuffer(h render.BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[h]
	if !ok {
		return
	}
	if g, ok := d.uniformGroups[h]; ok {
		g.Release()
		delete(d.uniformGroups, h)
	}
	b.raw.Release()
	delete(d.buffers, h)
}

func (d *Device) createRawTexture(label string, w, h int, format render.TextureFormat, samples int, usage gputypes.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
	raw, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        shader.TextureFormat(format),
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := d.device.CreateTextureView(raw, &wgpu.TextureViewDescriptor{
		Label:           label,
		Format:          shader.TextureFormat(format),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		raw.Release()
		return nil, nil, err
	}
	return raw, view, nil
}

// CreateTexture implements render.Device.
func (d *Device) CreateTexture(desc render.TextureDesc) (render.TextureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	if !fitsLimit(desc.Width, desc.Height, d.caps.MaxTextureSize) {
		return 0, fmt.Errorf("web: texture %dx%d: %w", desc.Width, desc.Height, render.ErrUnsupported)
	}
	raw, view, err := d.createRawTexture(desc.Label, desc.Width, desc.Height, desc.Format, 1, shader.TextureUsage(desc.Usage))
	if err != nil {
		return 0, fmt.Errorf("web: texture %q: %w", desc.Label, d.fail(err))
	}
	h := render.TextureHandle(d.handle())
	d.textures[h] = &texture{raw: raw, view: view, desc: desc}
	return h, nil
}

// WriteTexture implements render.Device.
func (d *Device) WriteTexture(h render.TextureHandle, pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	t, ok := d.textures[h]
	if !ok {
		return render.ErrInvalidHandle
	}
	w, ht := t.desc.Width, t.desc.Height
	if len(pix) != w*ht*4 {
		return fmt.Errorf("web: texture write of %d bytes, want %d", len(pix), w*ht*4)
	}
	err := d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		pix,
		&wgpu.ImageDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(ht)},
		&wgpu.Extent3D{Width: uint32(w), Height: uint32(ht), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("web: write texture %q: %w", t.desc.Label, d.fail(err))
	}
	t.msaaStale = true
	return nil
}

// DestroyTexture implements render.Device.
func (d *Device) DestroyTexture(h render.TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return
	}
	d.dropTextureGroups(h)
	d.destroyTexture(t)
	delete(d.textures, h)
}

func (d *Device) destroyTexture(t *texture) {
	d.destroyCompanion(t)
	t.view.Release()
	t.raw.Release()
}

func (d *Device) destroyCompanion(t *texture) {
	if t.msaaView != nil {
		t.msaaView.Release()
		t.msaaView = nil
	}
	if t.msaa != nil {
		t.msaa.Release()
		t.msaa = nil
	}
	t.msaaSamples = 0
}

// CreatePipeline implements render.Device.
func (d *Device) CreatePipeline(desc render.PipelineDesc) (render.PipelineHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	if !validSamples(desc.Samples) || desc.Samples > d.caps.MaxSampleCount {
		return 0, fmt.Errorf("web: %d samples: %w", desc.Samples, render.ErrUnsupported)
	}
	if !d.caps.SupportsFormat(desc.Format) {
		return 0, fmt.Errorf("web: format %s: %w", desc.Format, render.ErrUnsupported)
	}
	s, err := d.sharedObjects()
	if err != nil {
		return 0, err
	}
	raw, err := d.createPipeline(s, desc)
	if err != nil {
		return 0, fmt.Errorf("web: pipeline %q: %w", desc.Label, d.fail(err))
	}
	h := render.PipelineHandle(d.handle())
	d.pipes[h] = &pipeline{raw: raw, desc: desc}
	logging.Logger().Debug("web: pipeline created",
		"blend", desc.Blend, "variant", desc.Variant, "samples", desc.Samples, "format", desc.Format)
	return h, nil
}

// DestroyPipeline implements render.Device.
func (d *Device) DestroyPipeline(h render.PipelineHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipes[h]; ok {
		p.raw.Release()
		delete(d.pipes, h)
	}
}

// Completed implements render.Device.
func (d *Device) Completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return d.queue.Poll()
}

// Wait implements render.Device.
func (d *Device) Wait(ctx context.Context, serial uint64) error {
	t := time.NewTicker(waitPoll)
	defer t.Stop()
	for {
		d.mu.Lock()
		err := d.check()
		done := uint64(0)
		if err == nil {
			done = d.queue.Poll()
		}
		d.mu.Unlock()
		if err != nil {
			return err
		}
		if done >= serial {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("web: wait for serial %d: %w", serial, ctx.Err())
		case <-t.C:
		}
	}
}

// Close releases every resource. Later calls fail.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if !d.lost {
		if err := d.device.WaitIdle(); err != nil {
			logging.Logger().Warn("web: wait idle on close", "err", err)
		}
	}
	for h, g := range d.uniformGroups {
		g.Release()
		delete(d.uniformGroups, h)
	}
	for k, g := range d.textureGroups {
		g.Release()
		delete(d.textureGroups, k)
	}
	for h, p := range d.pipes {
		p.raw.Release()
		delete(d.pipes, h)
	}
	for h, t := range d.textures {
		d.destroyTexture(t)
		delete(d.textures, h)
	}
	for h, b := range d.buffers {
		b.raw.Release()
		delete(d.buffers, h)
	}
	if d.shared != nil {
		d.shared.release()
		d.shared = nil
	}
	d.closed = true
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

var _ render.Device = (*Device)(nil)
