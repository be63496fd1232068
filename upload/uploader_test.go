// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/stage/backend/software"
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/render"
)

func newUploader(t *testing.T, dopts []software.Option, opts ...Option) (*software.Device, *Uploader) {
	t.Helper()
	dev := software.New(dopts...)
	u := New(dev, opts...)
	t.Cleanup(func() {
		u.Close()
		dev.Close()
	})
	require.NoError(t, u.BeginFrame(context.Background(), 0))
	return dev, u
}

// submit runs an empty submission and records it.
func submit(t *testing.T, dev *software.Device, u *Uploader) uint64 {
	t.Helper()
	require.NoError(t, u.Flush())
	serial, err := dev.Submit(nil)
	require.NoError(t, err)
	u.Submitted(serial)
	return serial
}

func TestArenaSuballocates(t *testing.T) {
	_, u := newUploader(t, nil, WithMinArenaSize(1024))

	a, err := u.UploadBuffer(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)
	b, err := u.UploadBuffer(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)

	assert.Equal(t, a.Buffer, b.Buffer)
	assert.Equal(t, 0, a.Offset)
	assert.Equal(t, 100, b.Offset)
	assert.Equal(t, 2, u.Stats().Allocations)
	assert.Equal(t, 1024, u.Stats().ArenaCapacity)
}

func TestArenaUniformAlignment(t *testing.T) {
	_, u := newUploader(t, nil)

	var offs []int
	for range 3 {
		a, err := u.UploadBuffer(render.BufferUniform, make([]byte, render.UniformSize))
		require.NoError(t, err)
		offs = append(offs, a.Offset)
	}
	assert.Equal(t, []int{0, render.UniformStride, 2 * render.UniformStride}, offs)
}

func TestArenaGrowsAndCollapses(t *testing.T) {
	dev, u := newUploader(t, nil, WithMinArenaSize(256))

	first, err := u.UploadBuffer(render.BufferIndex, make([]byte, 200))
	require.NoError(t, err)
	second, err := u.UploadBuffer(render.BufferIndex, make([]byte, 200))
	require.NoError(t, err)
	assert.NotEqual(t, first.Buffer, second.Buffer, "overflow chains a new buffer")
	assert.Equal(t, 256+512, u.Stats().ArenaCapacity)
	submit(t, dev, u)

	// The set is reused two frames later; the chain becomes one buffer.
	require.NoError(t, u.BeginFrame(context.Background(), 1))
	require.NoError(t, u.BeginFrame(context.Background(), 2))
	a, err := u.UploadBuffer(render.BufferIndex, make([]byte, 200))
	require.NoError(t, err)
	b, err := u.UploadBuffer(render.BufferIndex, make([]byte, 200))
	require.NoError(t, err)
	assert.Equal(t, a.Buffer, b.Buffer, "collapsed arena holds both")
	assert.Equal(t, 200, b.Offset)
}

func TestArenaLargeUpload(t *testing.T) {
	_, u := newUploader(t, nil, WithMinArenaSize(64))

	a, err := u.UploadBuffer(render.BufferVertex, make([]byte, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1000, a.Size)
	assert.GreaterOrEqual(t, u.Stats().ArenaCapacity, 1000)
}

func TestFlushWritesData(t *testing.T) {
	dev, u := newUploader(t, nil)

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	_, err := u.UploadBuffer(render.BufferVertex, make([]byte, 16))
	require.NoError(t, err)
	a, err := u.UploadBuffer(render.BufferVertex, data)
	require.NoError(t, err)

	got, err := dev.ReadBuffer(a.Buffer)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(got[a.Offset:a.Offset+a.Size], data), "staged until flush")

	require.NoError(t, u.Flush())
	got, err = dev.ReadBuffer(a.Buffer)
	require.NoError(t, err)
	assert.Equal(t, data, got[a.Offset:a.Offset+a.Size])
}

func TestUploadEmpty(t *testing.T) {
	_, u := newUploader(t, nil)
	_, err := u.UploadBuffer(render.BufferVertex, nil)
	assert.Error(t, err)
	_, err = u.UploadStatic(render.BufferVertex, nil)
	assert.Error(t, err)
}

// laggingDevice completes a submission only when it is waited on.
type laggingDevice struct {
	*software.Device
	completed uint64
	waits     []uint64
}

func (d *laggingDevice) Completed() uint64 { return d.completed }

func (d *laggingDevice) Wait(ctx context.Context, serial uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.waits = append(d.waits, serial)
	d.completed = max(d.completed, serial)
	return nil
}

func TestBeginFrameWaitsForArenaSet(t *testing.T) {
	dev := &laggingDevice{Device: software.New()}
	u := New(dev)
	defer u.Close()
	ctx := context.Background()

	for frame := range uint64(4) {
		require.NoError(t, u.BeginFrame(ctx, frame))
		_, err := u.UploadBuffer(render.BufferVertex, make([]byte, 16))
		require.NoError(t, err)
		require.NoError(t, u.Flush())
		serial, err := dev.Submit(nil)
		require.NoError(t, err)
		u.Submitted(serial)
	}
	// Frames 2 and 3 reuse the sets of frames 0 and 1.
	assert.Equal(t, []uint64{1, 2}, dev.waits)
}

func TestBeginFrameCancelled(t *testing.T) {
	dev := &laggingDevice{Device: software.New()}
	u := New(dev)
	defer u.Close()

	require.NoError(t, u.BeginFrame(context.Background(), 0))
	serial, err := dev.Submit(nil)
	require.NoError(t, err)
	u.Submitted(serial)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = u.BeginFrame(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticFirstFit(t *testing.T) {
	dev, u := newUploader(t, nil, WithStaticBlockSize(1024))

	a, err := u.UploadStatic(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)
	b, err := u.UploadStatic(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, a.Buffer, b.Buffer)
	assert.Equal(t, 100, b.Offset)

	u.Free(a)
	// Not recycled until the submission that may read it completes.
	c, err := u.UploadStatic(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 200, c.Offset)

	submit(t, dev, u)
	u.Retire(dev.Completed())
	d, err := u.UploadStatic(render.BufferVertex, make([]byte, 100))
	require.NoError(t, err)
	assert.Equal(t, 0, d.Offset, "freed range reused")
	assert.Equal(t, 300, u.Stats().StaticBytes)
	assert.Equal(t, 1024, u.Stats().StaticCapacity)
}

func TestStaticCoalesces(t *testing.T) {
	b := &staticBlock{size: 300, free: []span{{0, 300}}}
	x, _ := b.take(100)
	y, _ := b.take(100)
	z, _ := b.take(100)
	assert.Empty(t, b.free)

	b.give(span{x, 100})
	b.give(span{z, 100})
	assert.Len(t, b.free, 2)
	b.give(span{y, 100})
	assert.Equal(t, []span{{0, 300}}, b.free)
	assert.Equal(t, 0, b.live)
}

func TestStaticOversize(t *testing.T) {
	_, u := newUploader(t, nil, WithStaticBlockSize(64))
	a, err := u.UploadStatic(render.BufferIndex, make([]byte, 200))
	require.NoError(t, err)
	assert.Equal(t, 200, a.Size)
	assert.Equal(t, 200, u.Stats().StaticCapacity)
}

func bitmap(id displaylist.BitmapID, w, h int, fill byte) *displaylist.Bitmap {
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = fill
	}
	return &displaylist.Bitmap{ID: id, Width: w, Height: h, Format: displaylist.PremultipliedRGBA8, Pix: pix}
}

func TestTextureDedupe(t *testing.T) {
	dev, u := newUploader(t, nil)

	bmp := bitmap(1, 4, 4, 128)
	first, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	again, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	assert.Same(t, first, again, "unchanged content is not re-uploaded")
	assert.Equal(t, 1, u.Stats().TextureUploads)

	bmp.Pix[0] = 0
	changed, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, 2, u.Stats().TextureUploads)
	assert.Equal(t, 1, u.Stats().Textures)

	// The replaced texture is destroyed after the pending submission.
	submit(t, dev, u)
	u.Retire(dev.Completed())
	assert.Equal(t, 1, dev.LiveTextures())
}

func TestTextureRevisionSkipsHash(t *testing.T) {
	_, u := newUploader(t, nil)

	bmp := bitmap(1, 2, 2, 255)
	bmp.Revision = 7
	first, err := u.UploadTexture(bmp)
	require.NoError(t, err)

	// Same revision: pixels are trusted to be unchanged.
	bmp.Pix[0] = 1
	same, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	assert.Same(t, first, same)

	bmp.Revision = 8
	next, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	assert.NotSame(t, first, next)
}

func TestTexturePremultiplies(t *testing.T) {
	dev, u := newUploader(t, nil)

	bmp := &displaylist.Bitmap{
		ID: 3, Width: 1, Height: 1, Format: displaylist.StraightRGBA8,
		Pix: []byte{255, 0, 0, 128},
	}
	tex, err := u.UploadTexture(bmp)
	require.NoError(t, err)
	img, err := dev.ReadTexture(tex.Handle)
	require.NoError(t, err)
	assert.InDelta(t, 128, int(img.Pix[0]), 1)
	assert.Equal(t, uint8(128), img.Pix[3])
}

func TestTextureDownscale(t *testing.T) {
	_, u := newUploader(t, []software.Option{software.WithMaxTextureSize(64)})

	tex, err := u.UploadTexture(bitmap(1, 256, 128, 200))
	require.NoError(t, err)
	assert.Equal(t, 64, tex.Width)
	assert.Equal(t, 32, tex.Height)
	assert.Equal(t, 256, tex.SourceWidth)
	assert.True(t, tex.Downscaled())
}

func TestTextureInvalidBitmap(t *testing.T) {
	_, u := newUploader(t, nil)
	_, err := u.UploadTexture(&displaylist.Bitmap{ID: 1, Width: 2, Height: 2, Pix: make([]byte, 3)})
	assert.ErrorIs(t, err, displaylist.ErrInvalidBitmap)
}

func TestTextureOutOfMemory(t *testing.T) {
	_, u := newUploader(t, []software.Option{software.WithTextureFailure(func(d render.TextureDesc) bool {
		return d.Label == "bitmap 9"
	})})

	_, err := u.UploadTexture(bitmap(9, 2, 2, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfDeviceMemory)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.ErrorIs(t, err, render.ErrOutOfMemory)

	_, err = u.UploadTexture(bitmap(10, 2, 2, 1))
	assert.NoError(t, err, "other bitmaps still upload")
}

func TestTextureAsyncReadiness(t *testing.T) {
	dev, u := newUploader(t, []software.Option{software.WithAsyncReadiness()})

	tex, err := u.UploadTexture(bitmap(1, 2, 2, 9))
	require.NoError(t, err)
	assert.False(t, tex.Ready(u.NextSerial()), "not sampleable by the first submission")
	submit(t, dev, u)
	assert.True(t, tex.Ready(u.NextSerial()))
}

func TestTextureSyncReadiness(t *testing.T) {
	_, u := newUploader(t, nil)
	tex, err := u.UploadTexture(bitmap(1, 2, 2, 9))
	require.NoError(t, err)
	assert.True(t, tex.Ready(u.NextSerial()))
}

func TestRampCache(t *testing.T) {
	_, u := newUploader(t, nil)

	pix := make([]byte, RampWidth*4)
	key := HashRamp(pix)
	a, err := u.UploadRamp(key, pix)
	require.NoError(t, err)
	b, err := u.UploadRamp(key, pix)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, u.Stats().TextureUploads)

	_, err = u.UploadRamp(key, pix[:4])
	assert.Error(t, err)
}

func TestSweepEvictsUnused(t *testing.T) {
	dev, u := newUploader(t, nil)

	_, err := u.UploadTexture(bitmap(1, 2, 2, 1))
	require.NoError(t, err)
	_, err = u.UploadRamp(5, make([]byte, RampWidth*4))
	require.NoError(t, err)
	submit(t, dev, u)

	assert.Equal(t, 0, u.Sweep(2, 3))
	assert.Equal(t, 2, u.Sweep(10, 3))
	assert.Equal(t, 0, u.Textures())
	assert.Equal(t, 2, u.Stats().Evictions)

	u.Retire(dev.Completed())
	assert.Equal(t, 2, dev.LiveTextures(), "the next submission may still sample them")
	submit(t, dev, u)
	u.Retire(dev.Completed())
	assert.Equal(t, 0, dev.LiveTextures())
}

func TestClose(t *testing.T) {
	dev := software.New()
	u := New(dev)
	require.NoError(t, u.BeginFrame(context.Background(), 0))
	_, err := u.UploadBuffer(render.BufferVertex, make([]byte, 8))
	require.NoError(t, err)
	_, err = u.UploadStatic(render.BufferIndex, make([]byte, 8))
	require.NoError(t, err)
	_, err = u.UploadTexture(bitmap(1, 1, 1, 1))
	require.NoError(t, err)

	u.Close()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, 0, dev.LiveTextures())
	_, err = u.UploadBuffer(render.BufferVertex, make([]byte, 8))
	assert.True(t, errors.Is(err, ErrClosed))
	u.Close()
}
