// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package composite

import (
	"fmt"

	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/upload"
)

// MinBucket is the smallest pooled target edge.
const MinBucket = 64

// target is a pooled off-screen texture.
type target struct {
	handle        render.TextureHandle
	width, height int
	format        render.TextureFormat

	// lastUse is the latest pass of the current frame that read or wrote
	// the texture. The next writer is ordered after it.
	lastUse  *drawlist.RenderPass
	lastUsed uint64
	inUse    bool
}

// bucket rounds n up to a power of two of at least MinBucket, capped at
// limit.
func bucket(n, limit int) int {
	b := MinBucket
	for b < n {
		b <<= 1
	}
	return min(b, limit)
}

type pool struct {
	dev    render.Device
	up     *upload.Uploader
	limit  int
	format render.TextureFormat

	targets     []*target
	allocations int64
}

// acquire returns a free target of the bucket covering w x h, creating one
// if none is free.
func (p *pool) acquire(w, h int, frame uint64) (*target, error) {
	bw, bh := bucket(w, p.limit), bucket(h, p.limit)
	for _, t := range p.targets {
		if !t.inUse && t.width == bw && t.height == bh && t.format == p.format {
			t.inUse = true
			t.lastUsed = frame
			return t, nil
		}
	}
	handle, err := p.dev.CreateTexture(render.TextureDesc{
		Label:  fmt.Sprintf("target %dx%d", bw, bh),
		Width:  bw,
		Height: bh,
		Format: p.format,
		Usage:  render.UsageSampled | render.UsageRenderTarget | render.UsageCopySrc | render.UsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("composite: create %dx%d target: %w", bw, bh, err)
	}
	p.allocations++
	t := &target{handle: handle, width: bw, height: bh, format: p.format, lastUsed: frame, inUse: true}
	p.targets = append(p.targets, t)
	logging.Logger().Debug("composite: target allocated", "width", bw, "height", bh, "live", len(p.targets))
	return t, nil
}

func (p *pool) release(t *target, frame uint64) {
	t.inUse = false
	t.lastUsed = frame
}

// beginFrame forgets the pass references of the previous frame.
func (p *pool) beginFrame() {
	for _, t := range p.targets {
		t.lastUse = nil
	}
}

// evict destroys free targets unused for more than grace frames. The
// textures are destroyed once pending submissions complete.
func (p *pool) evict(frame, grace uint64) int {
	n := 0
	kept := p.targets[:0]
	for _, t := range p.targets {
		if !t.inUse && frame > t.lastUsed+grace {
			p.destroy(t)
			n++
			continue
		}
		kept = append(kept, t)
	}
	clear(p.targets[len(kept):])
	p.targets = kept
	if n > 0 {
		logging.Logger().Debug("composite: targets evicted", "count", n, "live", len(p.targets))
	}
	return n
}

func (p *pool) destroy(t *target) {
	if p.up != nil {
		p.up.DestroyTexture(t.handle)
		return
	}
	p.dev.DestroyTexture(t.handle)
}

// destroyAll destroys every target immediately. The device must be idle.
func (p *pool) destroyAll() {
	for _, t := range p.targets {
		p.dev.DestroyTexture(t.handle)
	}
	clear(p.targets)
	p.targets = p.targets[:0]
}
