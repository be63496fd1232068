package displaylist

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// BitmapID identifies a bitmap. Together with Revision it keys the
// renderer's texture cache.
type BitmapID uint64

// PixelFormat is the layout of Bitmap.Pix.
type PixelFormat uint8

// Pixel formats. Both are 8-bit RGBA in row-major order.
const (
	// StraightRGBA8 stores straight (non-premultiplied) alpha.
	StraightRGBA8 PixelFormat = iota
	// PremultipliedRGBA8 stores premultiplied alpha.
	PremultipliedRGBA8
)

// Bitmap is decoded pixel data.
type Bitmap struct {
	ID     BitmapID
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
	// Revision, when nonzero, changes whenever Pix changes. It lets the
	// uploader skip hashing unchanged pixels.
	Revision uint64
}

// Validate checks that Pix matches the bitmap size.
func (b *Bitmap) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("%w: bitmap %d size %dx%d", ErrInvalidBitmap, b.ID, b.Width, b.Height)
	}
	if want := b.Width * b.Height * 4; len(b.Pix) != want {
		return fmt.Errorf("%w: bitmap %d has %d bytes, want %d", ErrInvalidBitmap, b.ID, len(b.Pix), want)
	}
	return nil
}

// Bounds returns the bitmap rectangle in its own pixel space.
func (b *Bitmap) Bounds() Rect {
	return RectXYWH(0, 0, float64(b.Width), float64(b.Height))
}

// Image returns the pixels as an image without copying.
func (b *Bitmap) Image() image.Image {
	r := image.Rect(0, 0, b.Width, b.Height)
	if b.Format == PremultipliedRGBA8 {
		return &image.RGBA{Pix: b.Pix, Stride: b.Width * 4, Rect: r}
	}
	return &image.NRGBA{Pix: b.Pix, Stride: b.Width * 4, Rect: r}
}

// BitmapFromImage converts any image into a straight alpha Bitmap.
func BitmapFromImage(id BitmapID, img image.Image) *Bitmap {
	r := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return &Bitmap{
		ID:     id,
		Width:  r.Dx(),
		Height: r.Dy(),
		Format: StraightRGBA8,
		Pix:    dst.Pix,
	}
}
