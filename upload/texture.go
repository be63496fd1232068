// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// RampWidth is the width of a gradient ramp texture.
const RampWidth = 256

// Texture is a device texture holding a bitmap or a gradient ramp.
type Texture struct {
	Handle render.TextureHandle
	// Width and Height are the texture size. They are smaller than the
	// source size when the bitmap was downscaled to fit the device.
	Width, Height int
	// SourceWidth and SourceHeight are the bitmap size. Texture
	// coordinates are computed against them.
	SourceWidth, SourceHeight int

	hash     uint64
	revision uint64
	readyAt  uint64
}

// Ready reports whether draws of the submission with the given serial may
// sample the texture.
func (t *Texture) Ready(serial uint64) bool {
	return t != nil && serial >= t.readyAt
}

// Downscaled reports whether the texture is smaller than its source.
func (t *Texture) Downscaled() bool {
	return t.Width != t.SourceWidth || t.Height != t.SourceHeight
}

// UploadTexture returns the texture of bmp, uploading it when the cached
// one is missing or stale. Bitmaps wider or taller than the device limit
// are downscaled. Straight alpha is premultiplied on upload.
func (u *Uploader) UploadTexture(bmp *displaylist.Bitmap) (*Texture, error) {
	if err := bmp.Validate(); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, ErrClosed
	}

	old, ok := u.textures.Get(bmp.ID)
	if ok && bmp.Revision != 0 && old.revision == bmp.Revision {
		return old, nil
	}
	sum := hashBitmap(bmp)
	if ok && old.hash == sum && old.SourceWidth == bmp.Width && old.SourceHeight == bmp.Height {
		old.revision = bmp.Revision
		return old, nil
	}

	pix, w, h := u.preparePixels(bmp)
	t, err := u.newTexture(fmt.Sprintf("bitmap %d", bmp.ID), pix, w, h)
	if err != nil {
		return nil, err
	}
	t.SourceWidth, t.SourceHeight = bmp.Width, bmp.Height
	t.hash, t.revision = sum, bmp.Revision
	if prev, replaced := u.textures.Replace(bmp.ID, t); replaced {
		u.bury(prev)
	}
	if w != bmp.Width || h != bmp.Height {
		logging.Logger().Debug("upload: bitmap downscaled",
			"id", bmp.ID, "from", image.Pt(bmp.Width, bmp.Height), "to", image.Pt(w, h))
	}
	return t, nil
}

// UploadRamp returns the ramp texture for key, creating it from pixels
// (RampWidth premultiplied RGBA8 texels) when missing. Ramps are content
// addressed: equal keys must mean equal pixels.
func (u *Uploader) UploadRamp(key uint64, pixels []byte) (*Texture, error) {
	if len(pixels) != RampWidth*4 {
		return nil, fmt.Errorf("upload: ramp has %d bytes, want %d", len(pixels), RampWidth*4)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return nil, ErrClosed
	}
	if t, ok := u.ramps.Get(key); ok {
		return t, nil
	}
	t, err := u.newTexture(fmt.Sprintf("ramp %016x", key), pixels, RampWidth, 1)
	if err != nil {
		return nil, err
	}
	t.SourceWidth, t.SourceHeight = RampWidth, 1
	t.hash = key
	u.ramps.Set(key, t)
	return t, nil
}

// Textures returns the number of cached bitmap and ramp textures.
func (u *Uploader) Textures() int {
	return u.textures.Len() + u.ramps.Len()
}

// newTexture creates and fills a sampled texture. u.mu is held.
func (u *Uploader) newTexture(label string, pix []byte, w, h int) (*Texture, error) {
	handle, err := u.dev.CreateTexture(render.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Format: render.FormatRGBA8,
		Usage:  render.UsageSampled | render.UsageCopyDst,
	})
	if err != nil {
		return nil, wrapDeviceError(label, err)
	}
	if err := u.dev.WriteTexture(handle, pix); err != nil {
		u.dev.DestroyTexture(handle)
		return nil, wrapDeviceError("write "+label, err)
	}
	t := &Texture{Handle: handle, Width: w, Height: h}
	if u.caps.AsyncReadiness {
		t.readyAt = u.submitted + 2
	}
	u.stats.TextureUploads++
	u.stats.Textures++
	return t, nil
}

// preparePixels returns premultiplied pixels that fit the device limit.
func (u *Uploader) preparePixels(bmp *displaylist.Bitmap) ([]byte, int, int) {
	w, h := bmp.Width, bmp.Height
	limit := u.caps.MaxTextureSize
	if limit > 0 && (w > limit || h > limit) {
		scale := float64(limit) / float64(max(w, h))
		dw := max(1, min(limit, int(float64(w)*scale+0.5)))
		dh := max(1, min(limit, int(float64(h)*scale+0.5)))
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.BiLinear.Scale(dst, dst.Bounds(), bmp.Image(), image.Rect(0, 0, w, h), draw.Src, nil)
		return dst.Pix, dw, dh
	}
	if bmp.Format == displaylist.PremultipliedRGBA8 {
		return bmp.Pix, w, h
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), bmp.Image(), image.Point{}, draw.Src)
	return dst.Pix, w, h
}

// hashBitmap is the content hash of a bitmap's pixels and layout.
func hashBitmap(bmp *displaylist.Bitmap) uint64 {
	h := fnv.New64a()
	var hdr [17]byte
	binary.LittleEndian.PutUint64(hdr[0:], uint64(bmp.Width))
	binary.LittleEndian.PutUint64(hdr[8:], uint64(bmp.Height))
	hdr[16] = byte(bmp.Format)
	h.Write(hdr[:])
	h.Write(bmp.Pix)
	return h.Sum64()
}

// HashRamp returns a content key for ramp pixels.
func HashRamp(pixels []byte) uint64 {
	h := fnv.New64a()
	h.Write(pixels)
	return h.Sum64()
}
