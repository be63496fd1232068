// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"
	"slices"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// span is a free byte range of a static block.
type span struct {
	off, size int
}

// staticBlock is one device buffer of the static arena.
type staticBlock struct {
	kind render.BufferKind
	buf  render.BufferHandle
	size int
	free []span // sorted by offset, coalesced
	live int
}

// pendingFree is a range released while a submission may still read it.
type pendingFree struct {
	block  *staticBlock
	span   span
	serial uint64
}

// take finds the first free span that fits size.
func (b *staticBlock) take(size int) (int, bool) {
	for i, s := range b.free {
		if s.size < size {
			continue
		}
		off := s.off
		if s.size == size {
			b.free = slices.Delete(b.free, i, i+1)
		} else {
			b.free[i] = span{off: s.off + size, size: s.size - size}
		}
		b.live += size
		return off, true
	}
	return 0, false
}

// give returns a span to the free list and merges it with its neighbors.
func (b *staticBlock) give(s span) {
	i, _ := slices.BinarySearchFunc(b.free, s.off, func(f span, off int) int { return f.off - off })
	b.free = slices.Insert(b.free, i, s)
	if i+1 < len(b.free) && b.free[i].off+b.free[i].size == b.free[i+1].off {
		b.free[i].size += b.free[i+1].size
		b.free = slices.Delete(b.free, i+1, i+2)
	}
	if i > 0 && b.free[i-1].off+b.free[i-1].size == b.free[i].off {
		b.free[i-1].size += b.free[i].size
		b.free = slices.Delete(b.free, i, i+1)
	}
	b.live -= s.size
}

// UploadStatic stores data in the persistent arena. The allocation stays
// valid until Free.
func (u *Uploader) UploadStatic(kind render.BufferKind, data []byte) (Allocation, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return Allocation{}, ErrClosed
	}
	if len(data) == 0 {
		return Allocation{}, fmt.Errorf("upload: empty %s upload", kind)
	}
	size := alignUp(len(data), 4)

	var (
		block *staticBlock
		off   int
	)
	for _, b := range u.static[kind] {
		if o, ok := b.take(size); ok {
			block, off = b, o
			break
		}
	}
	if block == nil {
		n := max(u.staticBlock, size)
		buf, err := u.dev.CreateBuffer(kind, n)
		if err != nil {
			return Allocation{}, wrapDeviceError(fmt.Sprintf("static %s block of %d bytes", kind, n), err)
		}
		block = &staticBlock{kind: kind, buf: buf, size: n, free: []span{{0, n}}}
		u.static[kind] = append(u.static[kind], block)
		u.stats.StaticCapacity += n
		off, _ = block.take(size)
		logging.Logger().Debug("upload: static block", "kind", kind, "bytes", n)
	}
	if err := u.dev.WriteBuffer(block.buf, off, data); err != nil {
		block.give(span{off, size})
		return Allocation{}, fmt.Errorf("upload: write static %s: %w", kind, err)
	}
	u.stats.StaticBytes += size
	return Allocation{Kind: kind, Buffer: block.buf, Offset: off, Size: len(data), static: block}, nil
}

// Free releases a static allocation. The range is reused once the next
// submission, which may still read it, has completed.
func (u *Uploader) Free(a Allocation) {
	if a.static == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.pending = append(u.pending, pendingFree{
		block:  a.static,
		span:   span{a.Offset, alignUp(a.Size, 4)},
		serial: u.submitted + 1,
	})
}

// Retire recycles static ranges and destroys textures whose last reader
// has completed.
func (u *Uploader) Retire(completed uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.retire(completed)
}

func (u *Uploader) retire(completed uint64) {
	n := 0
	for _, p := range u.pending {
		if p.serial > completed {
			u.pending[n] = p
			n++
			continue
		}
		p.block.give(p.span)
		u.stats.StaticBytes -= p.span.size
	}
	clear(u.pending[n:])
	u.pending = u.pending[:n]

	n = 0
	for _, g := range u.graveyard {
		if g.serial > completed {
			u.graveyard[n] = g
			n++
			continue
		}
		u.dev.DestroyTexture(g.handle)
	}
	clear(u.graveyard[n:])
	u.graveyard = u.graveyard[:n]
}
