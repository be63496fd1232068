// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// ErrNoAdapter is returned by Open when no HAL backend exposes an adapter.
var ErrNoAdapter = errors.New("native: no GPU adapter available")

// backendOrder is the order Open tries registered HAL backends in.
var backendOrder = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

// waitPoll is how often Wait polls the queue.
const waitPoll = 200 * time.Microsecond

type buffer struct {
	raw  hal.Buffer
	kind render.BufferKind
	size int
}

type texture struct {
	raw  hal.Texture
	view hal.TextureView
	desc render.TextureDesc

	// Multisampled companion, created by the first multisampled pass.
	msaa        hal.Texture
	msaaView    hal.TextureView
	msaaSamples int
	// msaaStale is set when the single-sample contents changed after the
	// companion was last resolved.
	msaaStale bool

	// surface textures belong to the swapchain.
	surface bool
}

type pipeline struct {
	raw  hal.RenderPipeline
	desc render.PipelineDesc
}

type inflight struct {
	serial  uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

// Device implements render.Device on a HAL device.
type Device struct {
	mu sync.Mutex

	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo
	caps     render.Capabilities

	// external devices belong to a host application and are not destroyed
	// by Close.
	external bool

	shared   *sharedState
	buffers  map[render.BufferHandle]*buffer
	textures map[render.TextureHandle]*texture
	pipes    map[render.PipelineHandle]*pipeline
	next     uint64

	uniformGroups map[render.BufferHandle]hal.BindGroup
	textureGroups map[textureKey]hal.BindGroup

	pending []inflight
	lost    bool
	closed  bool
}

// Open creates a device on the first registered HAL backend that exposes
// an adapter.
func Open() (*Device, error) {
	var errs []error
	for _, variant := range backendOrder {
		b, ok := hal.GetBackend(variant)
		if !ok {
			continue
		}
		d, err := OpenBackend(b)
		if err == nil {
			return d, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", variant, err))
	}
	if len(errs) == 0 {
		return nil, ErrNoAdapter
	}
	return nil, errors.Join(errs...)
}

// OpenBackend creates a device on a specific HAL backend.
func OpenBackend(b hal.Backend) (*Device, error) {
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	exposed := pickAdapter(adapters)

	open, err := exposed.Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open %s: %w", exposed.Info.Name, mapError(err))
	}
	d := newDevice(open.Device, open.Queue, exposed.Info, exposed.Capabilities.Limits)
	d.instance = instance
	d.adapter = exposed.Adapter
	logging.Logger().Info("native: device opened",
		"adapter", exposed.Info.Name, "backend", exposed.Info.Backend, "type", exposed.Info.DeviceType)
	return d, nil
}

// pickAdapter prefers a discrete GPU, then an integrated one.
func pickAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// NewFromProvider wraps the HAL device of a host application. The device
// stays owned by the host: Close releases only what this package created.
func NewFromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := p.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, errors.New("native: provider does not expose HAL handles")
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, errors.New("native: provider HAL device has wrong type")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, errors.New("native: provider HAL queue has wrong type")
	}
	ai := p.AdapterInfo()
	info := gputypes.AdapterInfo{Name: ai.Name, DeviceType: deviceType(ai.Type)}
	d := newDevice(dev, queue, info, gputypes.DefaultLimits())
	d.caps.AsyncReadiness = true
	d.external = true
	return d, nil
}

func deviceType(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	}
	return gputypes.DeviceTypeOther
}

func newDevice(dev hal.Device, queue hal.Queue, info gputypes.AdapterInfo, limits gputypes.Limits) *Device {
	align := int(limits.MinUniformBufferOffsetAlignment)
	if align <= 0 {
		align = render.UniformStride
	}
	return &Device{
		device: dev,
		queue:  queue,
		info:   info,
		caps: render.Capabilities{
			MaxTextureSize:   int(limits.MaxTextureDimension2D),
			MaxSampleCount:   4,
			BlendOps:         true,
			AsyncReadiness:   info.Backend != gputypes.BackendEmpty,
			UniformAlignment: align,
			Formats:          []render.TextureFormat{render.FormatRGBA8, render.FormatBGRA8},
		},
		buffers:       make(map[render.BufferHandle]*buffer),
		textures:      make(map[render.TextureHandle]*texture),
		pipes:         make(map[render.PipelineHandle]*pipeline),
		uniformGroups: make(map[render.BufferHandle]hal.BindGroup),
		textureGroups: make(map[textureKey]hal.BindGroup),
	}
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
		return fmt.Errorf("native: device closed: %w", render.ErrDeviceLost)
	}
	return nil
}

// fail records a device loss reported by any HAL call.
func (d *Device) fail(err error) error {
	err = mapError(err)
	if errors.Is(err, render.ErrDeviceLost) && !d.lost {
		d.lost = true
		logging.Logger().Error("native: device lost", "adapter", d.info.Name)
	}
	return err
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// mapError translates HAL errors into render errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceOutOfMemory):
		return fmt.Errorf("%w: %w", render.ErrOutOfMemory, err)
	case errors.Is(err, hal.ErrDeviceLost):
		return fmt.Errorf("%w: %w", render.ErrDeviceLost, err)
	case errors.Is(err, hal.ErrSurfaceLost):
		return fmt.Errorf("%w: %w", render.ErrSurfaceLost, err)
	case errors.Is(err, hal.ErrSurfaceOutdated):
		return fmt.Errorf("%w: %w", render.ErrSurfaceOutdated, err)
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
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
		return 0, fmt.Errorf("native: buffer size %d", size)
	}
	// Buffer sizes must be 4-byte aligned for queue writes.
	alloc := (size + 3) &^ 3
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: kind.String(),
		Size:  uint64(alloc),
		Usage: shader.BufferUsage(kind),
	})
	if err != nil {
		return 0, fmt.Errorf("native: create %s buffer: %w", kind, d.fail(err))
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
		return fmt.Errorf("native: write of %d bytes at %d overflows %s buffer of %d",
			len(data), offset, b.kind, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	if pad := len(data) & 3; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	if err := d.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
		return fmt.Errorf("native: write buffer: %w", d.fail(err))
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
		d.device.DestroyBindGroup(g)
		delete(d.uniformGroups, h)
	}
	d.device.DestroyBuffer(b.raw)
	delete(d.buffers, h)
}

func (d *Device) createRawTexture(label string, w, h int, format render.TextureFormat, samples int, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   uint32(samples),
		Dimension:     gputypes.TextureDimension2D,
		Format:        shader.TextureFormat(format),
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := d.device.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           label,
		Format:          shader.TextureFormat(format),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(raw)
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
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.caps.MaxTextureSize || desc.Height > d.caps.MaxTextureSize {
		return 0, fmt.Errorf("native: texture %dx%d: %w", desc.Width, desc.Height, render.ErrUnsupported)
	}
	raw, view, err := d.createRawTexture(desc.Label, desc.Width, desc.Height, desc.Format, 1, shader.TextureUsage(desc.Usage))
	if err != nil {
		return 0, fmt.Errorf("native: texture %q: %w", desc.Label, d.fail(err))
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
		return fmt.Errorf("native: texture write of %d bytes, want %d", len(pix), w*ht*4)
	}
	err := d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, Aspect: gputypes.TextureAspectAll},
		pix,
		&hal.ImageDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(ht)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(ht), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture %q: %w", t.desc.Label, d.fail(err))
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
	if t.view != nil {
		d.device.DestroyTextureView(t.view)
	}
	if t.raw != nil && !t.surface {
		d.device.DestroyTexture(t.raw)
	}
}

func (d *Device) destroyCompanion(t *texture) {
	if t.msaaView != nil {
		d.device.DestroyTextureView(t.msaaView)
		t.msaaView = nil
	}
	if t.msaa != nil {
		d.device.DestroyTexture(t.msaa)
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
	if desc.Samples < 1 || desc.Samples > d.caps.MaxSampleCount || desc.Samples&(desc.Samples-1) != 0 {
		return 0, fmt.Errorf("native: %d samples: %w", desc.Samples, render.ErrUnsupported)
	}
	if !d.caps.SupportsFormat(desc.Format) {
		return 0, fmt.Errorf("native: format %s: %w", desc.Format, render.ErrUnsupported)
	}
	if desc.Blend.NeedsBlendOps() && !d.caps.BlendOps {
		return 0, fmt.Errorf("native: blend %s: %w", desc.Blend, render.ErrUnsupported)
	}
	s, err := d.sharedObjects()
	if err != nil {
		return 0, err
	}
	raw, err := d.createPipeline(s, desc)
	if err != nil {
		return 0, fmt.Errorf("native: pipeline %q: %w", desc.Label, d.fail(err))
	}
	h := render.PipelineHandle(d.handle())
	d.pipes[h] = &pipeline{raw: raw, desc: desc}
	logging.Logger().Debug("native: pipeline created",
		"blend", desc.Blend, "variant", desc.Variant, "samples", desc.Samples, "format", desc.Format)
	return h, nil
}

// DestroyPipeline implements render.Device.
func (d *Device) DestroyPipeline(h render.PipelineHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pipes[h]; ok {
		d.device.DestroyRenderPipeline(p.raw)
		delete(d.pipes, h)
	}
}

// Completed implements render.Device.
func (d *Device) Completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.retire()
}

// retire frees command buffers of completed submissions and returns the
// completed serial.
func (d *Device) retire() uint64 {
	if d.closed {
		return 0
	}
	done := d.queue.PollCompleted()
	n := 0
	for _, f := range d.pending {
		if f.serial > done {
			d.pending[n] = f
			n++
			continue
		}
		d.device.FreeCommandBuffer(f.cmd)
		f.encoder.Destroy()
	}
	clear(d.pending[n:])
	d.pending = d.pending[:n]
	return done
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
			done = d.retire()
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
			return fmt.Errorf("native: wait for serial %d: %w", serial, ctx.Err())
		case <-t.C:
		}
	}
}

// Close waits for the GPU and releases every resource. Later calls fail.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if !d.lost {
		if err := d.device.WaitIdle(); err != nil {
			logging.Logger().Warn("native: wait idle on close", "err", err)
		}
	}
	for _, f := range d.pending {
		d.device.FreeCommandBuffer(f.cmd)
		f.encoder.Destroy()
	}
	d.pending = nil
	for h, g := range d.uniformGroups {
		d.device.DestroyBindGroup(g)
		delete(d.uniformGroups, h)
	}
	for k, g := range d.textureGroups {
		d.device.DestroyBindGroup(g)
		delete(d.textureGroups, k)
	}
	for h, p := range d.pipes {
		d.device.DestroyRenderPipeline(p.raw)
		delete(d.pipes, h)
	}
	for h, t := range d.textures {
		d.destroyTexture(t)
		delete(d.textures, h)
	}
	for h, b := range d.buffers {
		d.device.DestroyBuffer(b.raw)
		delete(d.buffers, h)
	}
	if d.shared != nil {
		d.shared.destroy(d.device)
		d.shared = nil
	}
	d.closed = true
	if d.external {
		return
	}
	d.device.Destroy()
	if d.adapter != nil {
		d.adapter.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
	}
}

var _ render.Device = (*Device)(nil)
