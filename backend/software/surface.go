package software

import (
	"context"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/gogpu/stage/render"
)

// Surface is an off-screen swapchain. Presented frames are kept and can be
// read back with LastFrame.
type Surface struct {
	dev *Device

	mu         sync.Mutex
	formats    []render.TextureFormat
	width      int
	height     int
	format     render.TextureFormat
	configured bool
	acquired   render.TextureHandle

	loseNext    bool
	outdateNext bool
	timeouts    int

	last     *image.RGBA
	presents int
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithSurfaceFormats restricts the formats the surface accepts.
func WithSurfaceFormats(formats ...render.TextureFormat) SurfaceOption {
	return func(s *Surface) { s.formats = formats }
}

// NewSurface creates a surface whose frames are textures of d.
func (d *Device) NewSurface(opts ...SurfaceOption) *Surface {
	s := &Surface{dev: d, formats: []render.TextureFormat{render.FormatRGBA8, render.FormatBGRA8}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Formats implements render.Surface.
func (s *Surface) Formats() []render.TextureFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.formats)
}

// Configure implements render.Surface.
func (s *Surface) Configure(width, height int, format render.TextureFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("software: surface size %dx%d", width, height)
	}
	if !slices.Contains(s.formats, format) {
		return fmt.Errorf("software: surface format %s: %w", format, render.ErrUnsupported)
	}
	s.width, s.height, s.format = width, height, format
	s.configured = true
	s.loseNext, s.outdateNext = false, false
	return nil
}

// Lose makes the next Acquire fail with render.ErrSurfaceLost.
func (s *Surface) Lose() {
	s.mu.Lock()
	s.loseNext = true
	s.mu.Unlock()
}

// Outdate makes the next Acquire fail with render.ErrSurfaceOutdated.
func (s *Surface) Outdate() {
	s.mu.Lock()
	s.outdateNext = true
	s.mu.Unlock()
}

// Timeout makes the next n Acquire calls fail with render.ErrTimeout.
func (s *Surface) Timeout(n int) {
	s.mu.Lock()
	s.timeouts = n
	s.mu.Unlock()
}

// Acquire implements render.Surface.
func (s *Surface) Acquire(ctx context.Context) (render.SurfaceFrame, error) {
	if err := ctx.Err(); err != nil {
		return render.SurfaceFrame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case !s.configured:
		return render.SurfaceFrame{}, render.ErrNotConfigured
	case s.loseNext:
		s.configured = false
		return render.SurfaceFrame{}, render.ErrSurfaceLost
	case s.outdateNext:
		s.configured = false
		return render.SurfaceFrame{}, render.ErrSurfaceOutdated
	case s.timeouts > 0:
		s.timeouts--
		return render.SurfaceFrame{}, render.ErrTimeout
	case s.acquired != 0:
		return render.SurfaceFrame{}, fmt.Errorf("software: frame %d still acquired", s.acquired)
	}
	h, err := s.dev.CreateTexture(render.TextureDesc{
		Label:  "surface",
		Width:  s.width,
		Height: s.height,
		Format: s.format,
		Usage:  render.UsageRenderTarget | render.UsageCopySrc,
	})
	if err != nil {
		return render.SurfaceFrame{}, err
	}
	s.acquired = h
	return render.SurfaceFrame{Texture: h, Width: s.width, Height: s.height, Format: s.format}, nil
}

// Present implements render.Surface.
func (s *Surface) Present(frame render.SurfaceFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame.Texture == 0 || frame.Texture != s.acquired {
		return fmt.Errorf("software: present of unacquired frame: %w", render.ErrInvalidHandle)
	}
	img, err := s.dev.ReadTexture(frame.Texture)
	if err != nil {
		return err
	}
	s.dev.DestroyTexture(frame.Texture)
	s.acquired = 0
	s.last = img
	s.presents++
	return nil
}

// Discard implements render.Surface.
func (s *Surface) Discard(frame render.SurfaceFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame.Texture != 0 && frame.Texture == s.acquired {
		s.dev.DestroyTexture(frame.Texture)
		s.acquired = 0
	}
}

// LastFrame returns the most recently presented frame with premultiplied
// RGBA pixels, or nil.
func (s *Surface) LastFrame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Presents returns the number of presented frames.
func (s *Surface) Presents() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presents
}
