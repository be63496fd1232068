// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// DefaultMaxAcquireRetries is how many times AcquireFrame reconfigures a
// lost or outdated surface before giving up.
const DefaultMaxAcquireRetries = 2

// Option configures a Context.
type Option func(*Context)

// WithMaxAcquireRetries sets the reconfiguration attempts of AcquireFrame.
// Negative values are treated as zero.
func WithMaxAcquireRetries(n int) Option {
	return func(c *Context) { c.maxRetries = max(n, 0) }
}

// Context pairs a device with the surface it presents to.
//
// Context is safe for concurrent use, but a frame loop drives it from one
// goroutine.
type Context struct {
	dev  render.Device
	surf render.Surface

	maxRetries int

	mu         sync.Mutex
	width      int
	height     int
	format     render.TextureFormat
	configured bool
	// stale is set when presentation reported a lost or outdated surface.
	stale bool
	lost  bool

	// submitted is the serial of the last submission; inFlight the one of
	// the frame before it.
	submitted uint64
	inFlight  uint64

	reconfigures int
}

// New creates a Context. The surface must have been created for dev.
func New(dev render.Device, surf render.Surface, opts ...Option) *Context {
	c := &Context{dev: dev, surf: surf, maxRetries: DefaultMaxAcquireRetries}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Device returns the device of c.
func (c *Context) Device() render.Device { return c.dev }

// Size returns the configured size.
func (c *Context) Size() (w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Format returns the configured format.
func (c *Context) Format() render.TextureFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Reconfigurations returns how many times AcquireFrame reconfigured the
// surface.
func (c *Context) Reconfigurations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconfigures
}

// SupportedFormats returns the formats both the surface and the device
// accept, in surface order.
func (c *Context) SupportedFormats() []render.TextureFormat {
	caps := c.dev.Capabilities()
	var out []render.TextureFormat
	for _, f := range c.surf.Formats() {
		if caps.SupportsFormat(f) {
			out = append(out, f)
		}
	}
	return out
}

// Configure sets the surface size and format. An unsupported combination
// returns a *ConfigurationError; the previous configuration stays active.
func (c *Context) Configure(width, height int, format render.TextureFormat) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lost {
		return render.ErrDeviceLost
	}
	supported := c.SupportedFormats()
	maxSize := c.dev.Capabilities().MaxTextureSize
	cfgErr := &ConfigurationError{Width: width, Height: height, Format: format, Supported: supported}

	if width <= 0 || height <= 0 {
		cfgErr.Err = fmt.Errorf("size %dx%d", width, height)
		return cfgErr
	}
	// A zero limit means the device reports none.
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		cfgErr.Err = fmt.Errorf("size outside 1..%d", maxSize)
		return cfgErr
	}
	if !slices.Contains(supported, format) {
		return cfgErr
	}
	if err := c.surf.Configure(width, height, format); err != nil {
		if errors.Is(err, render.ErrUnsupported) {
			cfgErr.Err = err
			return cfgErr
		}
		return c.check(fmt.Errorf("surface: configure: %w", err))
	}
	c.width, c.height, c.format = width, height, format
	c.configured, c.stale = true, false
	logging.Logger().Info("surface: configured", "width", width, "height", height, "format", format)
	return nil
}

// ConfigureBest configures the first of preferred that the surface
// accepts, or the first supported format when none of them is. It returns
// the chosen format.
func (c *Context) ConfigureBest(width, height int, preferred ...render.TextureFormat) (render.TextureFormat, error) {
	supported := c.SupportedFormats()
	if len(supported) == 0 {
		return render.FormatUndefined, &ConfigurationError{Width: width, Height: height}
	}
	format := supported[0]
	for _, f := range preferred {
		if slices.Contains(supported, f) {
			format = f
			break
		}
	}
	if err := c.Configure(width, height, format); err != nil {
		return render.FormatUndefined, err
	}
	return format, nil
}

// AcquireFrame returns the next surface frame.
//
// A lost or outdated surface is reconfigured with the last configuration
// and acquisition retried. render.ErrTimeout is returned unchanged for
// errors.Is and means the frame should be skipped. render.ErrDeviceLost is
// terminal: every later call fails with it.
func (c *Context) AcquireFrame(ctx context.Context) (render.SurfaceFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lost {
		return render.SurfaceFrame{}, render.ErrDeviceLost
	}
	if !c.configured {
		return render.SurfaceFrame{}, ErrNotConfigured
	}
	if c.stale {
		if err := c.reconfigure(); err != nil {
			return render.SurfaceFrame{}, err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		frame, err := c.surf.Acquire(ctx)
		if err == nil {
			return frame, nil
		}
		lastErr = err
		switch {
		case errors.Is(err, render.ErrSurfaceLost),
			errors.Is(err, render.ErrSurfaceOutdated),
			errors.Is(err, render.ErrNotConfigured):
			if attempt == c.maxRetries {
				break
			}
			logging.Logger().Warn("surface: reconfiguring", "attempt", attempt+1, "err", err)
			if err := c.reconfigure(); err != nil {
				return render.SurfaceFrame{}, err
			}
		default:
			return render.SurfaceFrame{}, c.check(fmt.Errorf("surface: acquire: %w", err))
		}
	}
	return render.SurfaceFrame{}, fmt.Errorf("surface: acquire failed after %d reconfigurations: %w",
		c.maxRetries, lastErr)
}

// reconfigure reapplies the last configuration. c.mu is held.
func (c *Context) reconfigure() error {
	if err := c.surf.Configure(c.width, c.height, c.format); err != nil {
		return c.check(fmt.Errorf("surface: reconfigure: %w", err))
	}
	c.reconfigures++
	c.stale = false
	return nil
}

// check records device loss. c.mu is held.
func (c *Context) check(err error) error {
	if errors.Is(err, render.ErrDeviceLost) && !c.lost {
		c.lost = true
		logging.Logger().Error("surface: device lost", "err", err)
	}
	return err
}

// Submit submits passes to the device and remembers the serial for
// Present.
func (c *Context) Submit(passes []render.Pass) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lost {
		return 0, render.ErrDeviceLost
	}
	serial, err := c.dev.Submit(passes)
	if err != nil {
		return 0, c.check(err)
	}
	c.submitted = serial
	return serial, nil
}

// Present presents frame, then waits until the submission of the previous
// frame has completed. A lost or outdated surface is reconfigured by the
// next AcquireFrame; the error is still returned so the caller can count
// the dropped frame.
func (c *Context) Present(ctx context.Context, frame render.SurfaceFrame) error {
	c.mu.Lock()
	if c.lost {
		c.mu.Unlock()
		return render.ErrDeviceLost
	}
	err := c.surf.Present(frame)
	if errors.Is(err, render.ErrSurfaceLost) || errors.Is(err, render.ErrSurfaceOutdated) {
		c.stale = true
	}
	wait := c.inFlight
	c.inFlight = c.submitted
	c.mu.Unlock()

	if err != nil {
		c.mu.Lock()
		err = c.check(fmt.Errorf("surface: present: %w", err))
		c.mu.Unlock()
		return err
	}
	if wait == 0 {
		return nil
	}
	if err := c.dev.Wait(ctx, wait); err != nil {
		c.mu.Lock()
		err = c.check(fmt.Errorf("surface: wait for frame: %w", err))
		c.mu.Unlock()
		return err
	}
	return nil
}

// Discard returns an acquired frame without presenting it.
func (c *Context) Discard(frame render.SurfaceFrame) {
	c.surf.Discard(frame)
}

// Lost reports whether the device was lost.
func (c *Context) Lost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lost
}
