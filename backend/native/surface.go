// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu && !js

package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// Surface implements render.Surface on a HAL surface.
type Surface struct {
	mu  sync.Mutex
	dev *Device
	raw hal.Surface

	width, height int
	format        render.TextureFormat
	configured    bool

	acquired *hal.AcquiredSurfaceTexture
	handle   render.TextureHandle
}

// CreateSurface creates a surface for a native window. It needs a device
// created by Open or OpenBackend.
func (d *Device) CreateSurface(display, window uintptr) (*Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	if d.instance == nil {
		return nil, errors.New("native: surfaces need a device opened by this package")
	}
	raw, err := d.instance.CreateSurface(display, window)
	if err != nil {
		return nil, fmt.Errorf("native: create surface: %w", mapError(err))
	}
	return &Surface{dev: d, raw: raw}, nil
}

// Formats implements render.Surface.
func (s *Surface) Formats() []render.TextureFormat {
	if s.dev.adapter == nil {
		return []render.TextureFormat{render.FormatBGRA8, render.FormatRGBA8}
	}
	caps := s.dev.adapter.SurfaceCapabilities(s.raw)
	if caps == nil {
		return nil
	}
	var out []render.TextureFormat
	for _, f := range caps.Formats {
		if rf := shader.FromTextureFormat(f); rf != render.FormatUndefined {
			out = append(out, rf)
		}
	}
	return out
}

// Configure implements render.Surface.
func (s *Surface) Configure(width, height int, format render.TextureFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("native: surface size %dx%d", width, height)
	}
	if format == render.FormatUndefined {
		return fmt.Errorf("native: surface format %s: %w", format, render.ErrUnsupported)
	}
	s.release()
	err := s.raw.Configure(s.dev.device, &hal.SurfaceConfiguration{
		Width:       uint32(width),
		Height:      uint32(height),
		Format:      shader.TextureFormat(format),
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
		PresentMode: hal.PresentModeFifo,
		AlphaMode:   hal.CompositeAlphaModePremultiplied,
	})
	if err != nil {
		s.configured = false
		return fmt.Errorf("native: configure surface: %w", mapError(err))
	}
	s.width, s.height, s.format = width, height, format
	s.configured = true
	return nil
}

// Acquire implements render.Surface. The frame texture is registered with
// the device until it is presented or discarded.
func (s *Surface) Acquire(ctx context.Context) (render.SurfaceFrame, error) {
	if err := ctx.Err(); err != nil {
		return render.SurfaceFrame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return render.SurfaceFrame{}, render.ErrNotConfigured
	}
	if s.acquired != nil {
		return render.SurfaceFrame{}, errors.New("native: surface frame still acquired")
	}
	acq, err := s.raw.AcquireTexture(nil)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, render.ErrSurfaceLost) || errors.Is(err, render.ErrSurfaceOutdated) {
			s.configured = false
		}
		return render.SurfaceFrame{}, err
	}

	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		s.raw.DiscardTexture(acq.Texture)
		return render.SurfaceFrame{}, err
	}
	view, err := d.device.CreateTextureView(acq.Texture, &hal.TextureViewDescriptor{
		Label:           "surface",
		Format:          shader.TextureFormat(s.format),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		s.raw.DiscardTexture(acq.Texture)
		return render.SurfaceFrame{}, fmt.Errorf("native: surface view: %w", d.fail(err))
	}
	h := render.TextureHandle(d.handle())
	d.textures[h] = &texture{
		raw:  acq.Texture,
		view: view,
		desc: render.TextureDesc{
			Label:  "surface",
			Width:  s.width,
			Height: s.height,
			Format: s.format,
			Usage:  render.UsageRenderTarget | render.UsageCopySrc,
		},
		surface: true,
	}
	s.acquired, s.handle = acq, h
	return render.SurfaceFrame{
		Texture:    h,
		Width:      s.width,
		Height:     s.height,
		Format:     s.format,
		Suboptimal: acq.Suboptimal,
	}, nil
}

// Present implements render.Surface.
func (s *Surface) Present(frame render.SurfaceFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired == nil || frame.Texture != s.handle {
		return fmt.Errorf("native: present of unacquired frame: %w", render.ErrInvalidHandle)
	}
	acq := s.acquired
	s.unregister()
	if err := s.dev.queue.Present(s.raw, acq.Texture, nil); err != nil {
		err = mapError(err)
		if errors.Is(err, render.ErrSurfaceLost) || errors.Is(err, render.ErrSurfaceOutdated) {
			s.configured = false
		}
		return fmt.Errorf("native: present: %w", err)
	}
	return nil
}

// Discard implements render.Surface.
func (s *Surface) Discard(frame render.SurfaceFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquired == nil || frame.Texture != s.handle {
		return
	}
	acq := s.acquired
	s.unregister()
	s.raw.DiscardTexture(acq.Texture)
}

// unregister removes the acquired frame texture from the device.
func (s *Surface) unregister() {
	d := s.dev
	d.mu.Lock()
	if t, ok := d.textures[s.handle]; ok {
		d.dropTextureGroups(s.handle)
		d.destroyTexture(t)
		delete(d.textures, s.handle)
	}
	d.mu.Unlock()
	s.acquired, s.handle = nil, 0
}

// release discards an outstanding frame before reconfiguration.
func (s *Surface) release() {
	if s.acquired != nil {
		acq := s.acquired
		s.unregister()
		s.raw.DiscardTexture(acq.Texture)
	}
	if s.configured {
		s.raw.Unconfigure(s.dev.device)
	}
}

// Close unconfigures and destroys the surface.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	s.configured = false
	s.raw.Destroy()
}

var _ render.Surface = (*Surface)(nil)
