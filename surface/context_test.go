// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/backend/software"
	"github.com/gogpu/stage/render"
)

func newContext(t *testing.T, opts ...software.SurfaceOption) (*Context, *software.Device, *software.Surface) {
	t.Helper()
	dev := software.New()
	t.Cleanup(dev.Close)
	surf := dev.NewSurface(opts...)
	return New(dev, surf), dev, surf
}

func TestConfigureUnsupportedFormat(t *testing.T) {
	c, _, _ := newContext(t, software.WithSurfaceFormats(render.FormatRGBA8))

	err := c.Configure(32, 16, render.FormatBGRA8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []render.TextureFormat{render.FormatRGBA8}, cfgErr.Supported)
	assert.Equal(t, render.FormatBGRA8, cfgErr.Format)

	// Renegotiating with a supported format succeeds.
	require.NoError(t, c.Configure(32, 16, cfgErr.Supported[0]))
	w, h := c.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 16, h)
	assert.Equal(t, render.FormatRGBA8, c.Format())
}

func TestConfigureInvalidSize(t *testing.T) {
	c, _, _ := newContext(t)
	for _, size := range [][2]int{{0, 10}, {10, -1}, {software.DefaultMaxTextureSize + 1, 10}} {
		err := c.Configure(size[0], size[1], render.FormatRGBA8)
		assert.ErrorIs(t, err, ErrConfiguration, "size %v", size)
	}
}

func TestConfigureWithoutSizeLimit(t *testing.T) {
	dev := software.New(software.WithMaxTextureSize(0))
	t.Cleanup(dev.Close)
	c := New(dev, dev.NewSurface())

	require.NoError(t, c.Configure(software.DefaultMaxTextureSize+1, 10, render.FormatRGBA8))
	w, h := c.Size()
	assert.Equal(t, software.DefaultMaxTextureSize+1, w)
	assert.Equal(t, 10, h)
	assert.ErrorIs(t, c.Configure(0, 10, render.FormatRGBA8), ErrConfiguration)
}

func TestConfigureBest(t *testing.T) {
	c, _, _ := newContext(t, software.WithSurfaceFormats(render.FormatRGBA8, render.FormatBGRA8))

	f, err := c.ConfigureBest(8, 8, render.FormatBGRA8)
	require.NoError(t, err)
	assert.Equal(t, render.FormatBGRA8, f)

	f, err = c.ConfigureBest(8, 8, render.FormatUndefined)
	require.NoError(t, err)
	assert.Equal(t, render.FormatRGBA8, f, "falls back to the first supported format")

	none, _, _ := newContext(t, software.WithSurfaceFormats())
	_, err = none.ConfigureBest(8, 8, render.FormatRGBA8)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAcquireBeforeConfigure(t *testing.T) {
	c, _, _ := newContext(t)
	_, err := c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestAcquireReconfiguresLostSurface(t *testing.T) {
	for _, tt := range []struct {
		name string
		fail func(*software.Surface)
	}{
		{"lost", (*software.Surface).Lose},
		{"outdated", (*software.Surface).Outdate},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c, _, surf := newContext(t)
			require.NoError(t, c.Configure(16, 8, render.FormatRGBA8))

			tt.fail(surf)
			frame, err := c.AcquireFrame(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 16, frame.Width)
			assert.Equal(t, 8, frame.Height)
			assert.Equal(t, 1, c.Reconfigurations())
			c.Discard(frame)
		})
	}
}

func TestAcquireTimeoutSkipsFrame(t *testing.T) {
	c, _, surf := newContext(t)
	require.NoError(t, c.Configure(4, 4, render.FormatRGBA8))

	surf.Timeout(1)
	_, err := c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, render.ErrTimeout)
	assert.Zero(t, c.Reconfigurations())

	frame, err := c.AcquireFrame(context.Background())
	require.NoError(t, err)
	c.Discard(frame)
}

// brokenSurface fails every acquire with ErrSurfaceLost.
type brokenSurface struct {
	render.Surface
	acquires   int
	configures int
}

func (s *brokenSurface) Formats() []render.TextureFormat {
	return []render.TextureFormat{render.FormatRGBA8}
}

func (s *brokenSurface) Configure(int, int, render.TextureFormat) error {
	s.configures++
	return nil
}

func (s *brokenSurface) Acquire(context.Context) (render.SurfaceFrame, error) {
	s.acquires++
	return render.SurfaceFrame{}, render.ErrSurfaceLost
}

func TestAcquireRetryLimit(t *testing.T) {
	dev := software.New()
	defer dev.Close()
	surf := &brokenSurface{}
	c := New(dev, surf, WithMaxAcquireRetries(3))
	require.NoError(t, c.Configure(4, 4, render.FormatRGBA8))

	_, err := c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, render.ErrSurfaceLost)
	assert.Equal(t, 4, surf.acquires)
	assert.Equal(t, 4, surf.configures, "one configure plus three reconfigurations")
	assert.Equal(t, 3, c.Reconfigurations())
}

func TestDeviceLostIsTerminal(t *testing.T) {
	c, dev, _ := newContext(t)
	require.NoError(t, c.Configure(4, 4, render.FormatRGBA8))

	dev.Lose()
	_, err := c.AcquireFrame(context.Background())
	require.ErrorIs(t, err, render.ErrDeviceLost)
	assert.True(t, c.Lost())

	_, err = c.AcquireFrame(context.Background())
	assert.ErrorIs(t, err, render.ErrDeviceLost)
	assert.ErrorIs(t, c.Configure(4, 4, render.FormatRGBA8), render.ErrDeviceLost)
	_, err = c.Submit(nil)
	assert.ErrorIs(t, err, render.ErrDeviceLost)
}

func TestSubmitAndPresent(t *testing.T) {
	c, dev, surf := newContext(t)
	require.NoError(t, c.Configure(4, 2, render.FormatRGBA8))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		frame, err := c.AcquireFrame(ctx)
		require.NoError(t, err)
		serial, err := c.Submit([]render.Pass{{
			Label:   "clear",
			Target:  frame.Texture,
			Samples: 1,
			Clear:   [4]float32{0, 0, 1, 1},
		}})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), serial)
		require.NoError(t, c.Present(ctx, frame))
	}
	assert.Equal(t, 3, surf.Presents())
	img := surf.LastFrame()
	require.NotNil(t, img)
	assert.Equal(t, []uint8{0, 0, 255, 255}, img.Pix[:4])
	assert.Zero(t, dev.LiveTextures())
}

func TestPresentUnacquired(t *testing.T) {
	c, _, _ := newContext(t)
	require.NoError(t, c.Configure(4, 4, render.FormatRGBA8))
	err := c.Present(context.Background(), render.SurfaceFrame{Texture: 42})
	assert.True(t, errors.Is(err, render.ErrInvalidHandle), "got %v", err)
}
