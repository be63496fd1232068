// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build js && wasm

package web

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/internal/shader"
	"github.com/gogpu/stage/render"
)

// Surface implements render.Surface on a canvas context.
type Surface struct {
	mu  sync.Mutex
	dev *Device
	raw *wgpu.Surface

	width, height int
	format        render.TextureFormat
	configured    bool

	// back is the texture frames render into.
	back render.TextureHandle
	// current is the canvas texture acquired for the outstanding frame.
	current *wgpu.SurfaceTexture
}

// CreateSurface creates a surface for a canvas. The handles are passed to
// wgpu unchanged.
func (d *Device) CreateSurface(display, canvas uintptr) (*Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return nil, err
	}
	var raw *wgpu.Surface
	err := guard("create surface", func() error {
		var err error
		raw, err = d.instance.CreateSurface(display, canvas)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("web: create surface: %w", mapError(err))
	}
	return &Surface{dev: d, raw: raw}, nil
}

// Formats implements render.Surface.
func (s *Surface) Formats() []render.TextureFormat {
	caps := s.dev.adapter.GetSurfaceCapabilities(s.raw)
	if caps == nil {
		return []render.TextureFormat{render.FormatBGRA8, render.FormatRGBA8}
	}
	var out []render.TextureFormat
	for _, f := range caps.Formats {
		if rf := shader.FromTextureFormat(f); rf != render.FormatUndefined {
			out = append(out, rf)
		}
	}
	return out
}

// Configure implements render.Surface. It also recreates the back buffer.
func (s *Surface) Configure(width, height int, format render.TextureFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fitsLimit(width, height, s.dev.caps.MaxTextureSize) {
		return fmt.Errorf("web: surface size %dx%d: %w", width, height, render.ErrUnsupported)
	}
	if format == render.FormatUndefined {
		return fmt.Errorf("web: surface format %s: %w", format, render.ErrUnsupported)
	}
	s.release()
	err := s.raw.Configure(s.dev.device, &wgpu.SurfaceConfiguration{
		Width:       uint32(width),
		Height:      uint32(height),
		Format:      shader.TextureFormat(format),
		Usage:       gputypes.TextureUsageRenderAttachment,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   gputypes.CompositeAlphaModePremultiplied,
	})
	if err != nil {
		return fmt.Errorf("web: configure surface: %w", mapError(err))
	}
	back, err := s.dev.CreateTexture(render.TextureDesc{
		Label:  "surface back buffer",
		Width:  width,
		Height: height,
		Format: format,
		Usage:  render.UsageSampled | render.UsageRenderTarget | render.UsageCopySrc | render.UsageCopyDst,
	})
	if err != nil {
		s.raw.Unconfigure()
		return fmt.Errorf("web: back buffer: %w", err)
	}
	s.width, s.height, s.format, s.back = width, height, format, back
	s.configured = true
	logging.Logger().Debug("web: surface configured", "width", width, "height", height, "format", format)
	return nil
}

// Acquire implements render.Surface. The frame renders into the back
// buffer; the canvas texture is held until Present or Discard.
func (s *Surface) Acquire(ctx context.Context) (render.SurfaceFrame, error) {
	if err := ctx.Err(); err != nil {
		return render.SurfaceFrame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured {
		return render.SurfaceFrame{}, render.ErrNotConfigured
	}
	if s.current != nil {
		return render.SurfaceFrame{}, errors.New("web: surface frame still acquired")
	}
	st, suboptimal, err := s.raw.GetCurrentTexture()
	if err != nil {
		err = mapError(err)
		if errors.Is(err, render.ErrSurfaceLost) || errors.Is(err, render.ErrSurfaceOutdated) {
			s.configured = false
		}
		return render.SurfaceFrame{}, err
	}
	s.current = st
	return render.SurfaceFrame{
		Texture:    s.back,
		Width:      s.width,
		Height:     s.height,
		Format:     s.format,
		Suboptimal: suboptimal,
	}, nil
}

// Present implements render.Surface. The back buffer is drawn onto the
// canvas texture in its own submission.
func (s *Surface) Present(frame render.SurfaceFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || frame.Texture != s.back {
		return fmt.Errorf("web: present of unacquired frame: %w", render.ErrInvalidHandle)
	}
	st := s.current
	s.current = nil
	if err := s.blit(st); err != nil {
		s.raw.DiscardTexture()
		return fmt.Errorf("web: present: %w", err)
	}
	if err := s.raw.Present(st); err != nil {
		err = mapError(err)
		if errors.Is(err, render.ErrSurfaceLost) || errors.Is(err, render.ErrSurfaceOutdated) {
			s.configured = false
		}
		return fmt.Errorf("web: present: %w", err)
	}
	return nil
}

func (s *Surface) blit(st *wgpu.SurfaceTexture) error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	view, err := st.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "surface",
		Format:          shader.TextureFormat(s.format),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return d.fail(err)
	}
	defer view.Release()
	shared, err := d.sharedObjects()
	if err != nil {
		return err
	}
	enc, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "stage_present"})
	if err != nil {
		return d.fail(err)
	}
	if err := d.encodeQuad(enc, shared, s.back, view, s.format, 1); err != nil {
		enc.DiscardEncoding()
		return err
	}
	_, err = d.finish(enc)
	return err
}

// Discard implements render.Surface.
func (s *Surface) Discard(frame render.SurfaceFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || frame.Texture != s.back {
		return
	}
	s.current = nil
	s.raw.DiscardTexture()
}

// release drops an outstanding frame and the back buffer before
// reconfiguration.
func (s *Surface) release() {
	if s.current != nil {
		s.current = nil
		s.raw.DiscardTexture()
	}
	if s.back != 0 {
		s.dev.DestroyTexture(s.back)
		s.back = 0
	}
	if s.configured {
		s.raw.Unconfigure()
		s.configured = false
	}
}

// Close unconfigures and releases the surface.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	s.raw.Release()
}

var _ render.Surface = (*Surface)(nil)
