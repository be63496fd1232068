// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/cache"
	"github.com/gogpu/stage/render"
)

// Defaults.
const (
	// DefaultMinArenaSize is the smallest frame arena buffer.
	DefaultMinArenaSize = 64 << 10

	// DefaultStaticBlockSize is the size of a static arena buffer.
	DefaultStaticBlockSize = 1 << 20

	// FramesInFlight is the number of frame arena sets. A set is rewound
	// only after the last submission that used it has completed.
	FramesInFlight = 2
)

// Option configures an Uploader.
type Option func(*Uploader)

// WithMinArenaSize sets the initial frame arena size.
func WithMinArenaSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.minArena = alignUp(n, 4)
		}
	}
}

// WithStaticBlockSize sets the size of static arena buffers.
func WithStaticBlockSize(n int) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.staticBlock = alignUp(n, 4)
		}
	}
}

// Stats reports uploader activity.
type Stats struct {
	// Allocations and BytesStreamed count frame arena uploads.
	Allocations   int
	BytesStreamed int
	// ArenaCapacity is the total size of all frame arenas.
	ArenaCapacity int
	// StaticCapacity and StaticBytes describe the static arena.
	StaticCapacity int
	StaticBytes    int
	// TextureUploads counts bitmap and ramp texture writes.
	TextureUploads int
	Textures       int
	Evictions      int
}

type grave struct {
	handle render.TextureHandle
	serial uint64
}

// Uploader owns the device memory of a renderer.
//
// Uploader is safe for concurrent use. Frame scoping (BeginFrame, Flush,
// Submitted, AbandonFrame) is driven by one goroutine.
type Uploader struct {
	dev         render.Device
	caps        render.Capabilities
	minArena    int
	staticBlock int

	mu        sync.Mutex
	sets      [FramesInFlight][render.BufferKinds]*arena
	setSerial [FramesInFlight]uint64
	cur       int
	submitted uint64

	static    [render.BufferKinds][]*staticBlock
	pending   []pendingFree
	graveyard []grave

	textures *cache.Cache[displaylist.BitmapID, *Texture]
	ramps    *cache.Cache[uint64, *Texture]

	stats  Stats
	closed bool
}

// New creates an Uploader for dev.
func New(dev render.Device, opts ...Option) *Uploader {
	u := &Uploader{
		dev:         dev,
		caps:        dev.Capabilities(),
		minArena:    DefaultMinArenaSize,
		staticBlock: DefaultStaticBlockSize,
		textures:    cache.New[displaylist.BitmapID, *Texture](),
		ramps:       cache.New[uint64, *Texture](),
	}
	for _, opt := range opts {
		opt(u)
	}
	align := max(u.caps.UniformAlignment, 4)
	for i := range u.sets {
		for k := range u.sets[i] {
			a := &arena{kind: render.BufferKind(k), align: 4}
			if a.kind == render.BufferUniform {
				a.align = align
			}
			u.sets[i][k] = a
		}
	}
	return u
}

// BeginFrame starts frame number frame. It waits until the submission
// that last used this frame's arena set has completed, then rewinds the
// set and retires released resources.
func (u *Uploader) BeginFrame(ctx context.Context, frame uint64) error {
	u.mu.Lock()
	if u.closed {
		u.mu.Unlock()
		return ErrClosed
	}
	cur := int(frame % FramesInFlight)
	wait := u.setSerial[cur]
	u.mu.Unlock()

	if wait > u.dev.Completed() {
		if err := u.dev.Wait(ctx, wait); err != nil {
			return fmt.Errorf("upload: wait for frame arena: %w", err)
		}
	}
	completed := u.dev.Completed()

	u.mu.Lock()
	defer u.mu.Unlock()
	u.cur = cur
	u.textures.SetGeneration(frame)
	u.ramps.SetGeneration(frame)
	u.retire(completed)
	for _, a := range u.sets[cur] {
		if err := a.rewind(u.dev); err != nil {
			return err
		}
	}
	return nil
}

// AbandonFrame rewinds the current frame's arenas without submitting.
func (u *Uploader) AbandonFrame() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, a := range u.sets[u.cur] {
		// A collapse failure leaves the arena empty; the next upload
		// allocates again.
		_ = a.rewind(u.dev)
	}
}

// UploadBuffer stages frame-scoped data and returns its range. Uniform
// blocks are aligned to the device's uniform alignment. The data reaches
// the device on Flush.
func (u *Uploader) UploadBuffer(kind render.BufferKind, data []byte) (Allocation, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return Allocation{}, ErrClosed
	}
	if len(data) == 0 {
		return Allocation{}, fmt.Errorf("upload: empty %s upload", kind)
	}
	a := u.sets[u.cur][kind]
	before := a.capacity()
	alloc, err := a.alloc(u, data)
	if err != nil {
		return Allocation{}, err
	}
	u.stats.ArenaCapacity += a.capacity() - before
	u.stats.Allocations++
	u.stats.BytesStreamed += len(data)
	return alloc, nil
}

// Flush writes the staged frame data to the device. Call it before
// submitting the frame.
func (u *Uploader) Flush() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, a := range u.sets[u.cur] {
		if err := a.flush(u.dev); err != nil {
			return err
		}
	}
	return nil
}

// Submitted records the serial of the submission that read the current
// frame's uploads.
func (u *Uploader) Submitted(serial uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.submitted = serial
	u.setSerial[u.cur] = serial
}

// NextSerial returns the serial the next submission will get.
func (u *Uploader) NextSerial() uint64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.submitted + 1
}

// Sweep destroys textures and ramps not used during the last grace frames.
// Destruction is deferred until pending submissions complete.
func (u *Uploader) Sweep(frame, grace uint64) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.textures.SetGeneration(frame)
	u.ramps.SetGeneration(frame)
	n := u.textures.Sweep(grace, func(_ displaylist.BitmapID, t *Texture) { u.bury(t) })
	n += u.ramps.Sweep(grace, func(_ uint64, t *Texture) { u.bury(t) })
	u.stats.Evictions += n
	return n
}

// bury schedules t for destruction after the next submission, which may
// still sample it. u.mu is held.
func (u *Uploader) bury(t *Texture) {
	u.graveyard = append(u.graveyard, grave{handle: t.Handle, serial: u.submitted + 1})
	u.stats.Textures--
}

// DestroyTexture destroys a texture created outside the uploader once
// the next submission, which may still use it, has completed.
func (u *Uploader) DestroyTexture(h render.TextureHandle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		u.dev.DestroyTexture(h)
		return
	}
	u.graveyard = append(u.graveyard, grave{handle: h, serial: u.submitted + 1})
}

// Stats returns a snapshot of the counters.
func (u *Uploader) Stats() Stats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}

// Close destroys every resource. The device must be idle.
func (u *Uploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return
	}
	u.closed = true
	for i := range u.sets {
		for _, a := range u.sets[i] {
			a.destroy(u.dev)
		}
	}
	for k := range u.static {
		for _, b := range u.static[k] {
			u.dev.DestroyBuffer(b.buf)
		}
		u.static[k] = nil
	}
	u.pending = nil
	destroy := func(t *Texture) { u.dev.DestroyTexture(t.Handle) }
	u.textures.Clear(func(_ displaylist.BitmapID, t *Texture) { destroy(t) })
	u.ramps.Clear(func(_ uint64, t *Texture) { destroy(t) })
	for _, g := range u.graveyard {
		u.dev.DestroyTexture(g.handle)
	}
	u.graveyard = nil
}
