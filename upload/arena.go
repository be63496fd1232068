// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// Allocation is a byte range of a device buffer.
type Allocation struct {
	Kind   render.BufferKind
	Buffer render.BufferHandle
	Offset int
	Size   int

	static *staticBlock
}

// Range returns the allocation as a render.BufferRange.
func (a Allocation) Range() render.BufferRange {
	return render.BufferRange{Buffer: a.Buffer, Offset: a.Offset, Size: a.Size}
}

// Valid reports whether a refers to a buffer.
func (a Allocation) Valid() bool { return a.Buffer != 0 }

// chunk is one device buffer of a frame arena with its CPU shadow. Data is
// staged in the shadow and written to the device by flush.
type chunk struct {
	buf     render.BufferHandle
	shadow  []byte
	used    int
	flushed int
}

// arena streams one buffer kind for one frame slot.
type arena struct {
	kind   render.BufferKind
	align  int
	chunks []*chunk
}

func (a *arena) capacity() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c.shadow)
	}
	return n
}

// alloc copies data into the arena and returns its range.
func (a *arena) alloc(u *Uploader, data []byte) (Allocation, error) {
	size := len(data)
	var c *chunk
	off := 0
	if n := len(a.chunks); n > 0 {
		c = a.chunks[n-1]
		off = alignUp(c.used, a.align)
		if off+size > len(c.shadow) {
			c = nil
		}
	}
	if c == nil {
		grown := max(2*a.capacity(), u.minArena, alignUp(size, a.align))
		buf, err := u.dev.CreateBuffer(a.kind, grown)
		if err != nil {
			return Allocation{}, wrapDeviceError(fmt.Sprintf("%s arena of %d bytes", a.kind, grown), err)
		}
		c = &chunk{buf: buf, shadow: make([]byte, grown)}
		a.chunks = append(a.chunks, c)
		off = 0
		logging.Logger().Debug("upload: arena grown", "kind", a.kind, "bytes", grown, "chunks", len(a.chunks))
	}
	copy(c.shadow[off:], data)
	c.used = off + size
	return Allocation{Kind: a.kind, Buffer: c.buf, Offset: off, Size: size}, nil
}

// flush writes staged bytes to the device.
func (a *arena) flush(dev render.Device) error {
	for _, c := range a.chunks {
		if c.used <= c.flushed {
			continue
		}
		start := c.flushed &^ 3
		if err := dev.WriteBuffer(c.buf, start, c.shadow[start:c.used]); err != nil {
			return fmt.Errorf("upload: flush %s arena: %w", a.kind, err)
		}
		c.flushed = c.used
	}
	return nil
}

// rewind makes the whole arena reusable. A chained arena is collapsed into
// one buffer of its total capacity. The caller guarantees that no pending
// submission reads the arena.
func (a *arena) rewind(dev render.Device) error {
	if len(a.chunks) > 1 {
		total := a.capacity()
		for _, c := range a.chunks {
			dev.DestroyBuffer(c.buf)
		}
		a.chunks = a.chunks[:0]
		buf, err := dev.CreateBuffer(a.kind, total)
		if err != nil {
			return wrapDeviceError(fmt.Sprintf("%s arena of %d bytes", a.kind, total), err)
		}
		a.chunks = append(a.chunks, &chunk{buf: buf, shadow: make([]byte, total)})
		return nil
	}
	for _, c := range a.chunks {
		c.used, c.flushed = 0, 0
	}
	return nil
}

func (a *arena) destroy(dev render.Device) {
	for _, c := range a.chunks {
		dev.DestroyBuffer(c.buf)
	}
	a.chunks = nil
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
