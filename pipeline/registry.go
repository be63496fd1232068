// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// ErrCompilationFailed wraps every pipeline creation failure.
var ErrCompilationFailed = errors.New("pipeline: compilation failed")

// Key identifies a pipeline.
type Key struct {
	Blend   render.BlendState
	Variant render.ShaderVariant
	Format  render.TextureFormat
	Samples int
}

// String returns a compact description used as the pipeline label.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/x%d", k.Variant, k.Blend, k.Format, k.Samples)
}

// Fallback returns the key to use when k cannot be compiled. A blend
// formula collapses to a plain copy and any other blend state collapses
// to normal. It returns false when no simpler key exists.
func (k Key) Fallback() (Key, bool) {
	switch {
	case k.Variant == render.VariantBlendFormula:
		k.Variant = render.VariantCopy
		k.Blend = render.BlendNormal
		return k, true
	case k.Blend != render.BlendNormal && k.Blend != render.BlendReplace:
		k.Blend = render.BlendNormal
		return k, true
	default:
		return k, false
	}
}

// Stats reports registry activity.
type Stats struct {
	Compiles int64
	Hits     int64
	Failures int64
	Live     int
}

// Registry compiles and owns pipelines. It is safe for concurrent use.
type Registry struct {
	dev  render.Device
	caps render.Capabilities

	mu      sync.RWMutex
	handles map[Key]render.PipelineHandle
	failed  map[Key]error
	closed  bool

	compiles atomic.Int64
	hits     atomic.Int64
	failures atomic.Int64
}

// New creates a Registry for dev.
func New(dev render.Device) *Registry {
	return &Registry{
		dev:     dev,
		caps:    dev.Capabilities(),
		handles: make(map[Key]render.PipelineHandle),
		failed:  make(map[Key]error),
	}
}

// GetOrCompile returns the pipeline for key, compiling it on first use.
// Failures are cached: a key that failed once keeps failing without
// reaching the device again.
func (r *Registry) GetOrCompile(key Key) (render.PipelineHandle, error) {
	r.mu.RLock()
	h, ok := r.handles[key]
	err := r.failed[key]
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return h, nil
	}
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		r.hits.Add(1)
		return h, nil
	}
	if err := r.failed[key]; err != nil {
		return 0, err
	}
	if r.closed {
		return 0, fmt.Errorf("%w: %s: registry closed", ErrCompilationFailed, key)
	}

	h, err = r.compile(key)
	if err != nil {
		r.failures.Add(1)
		err = fmt.Errorf("%w: %s: %w", ErrCompilationFailed, key, err)
		r.failed[key] = err
		logging.Logger().Debug("pipeline: compile failed", "key", key, "err", err)
		return 0, err
	}
	r.handles[key] = h
	logging.Logger().Debug("pipeline: compiled", "key", key)
	return h, nil
}

func (r *Registry) compile(key Key) (render.PipelineHandle, error) {
	if key.Blend.NeedsBlendOps() && !r.caps.BlendOps {
		return 0, fmt.Errorf("blend %s needs min/max blending: %w", key.Blend, render.ErrUnsupported)
	}
	r.compiles.Add(1)
	return r.dev.CreatePipeline(render.PipelineDesc{
		Label:   key.String(),
		Blend:   key.Blend,
		Variant: key.Variant,
		Format:  key.Format,
		Samples: key.Samples,
	})
}

// Resolve returns a usable pipeline for key. When key fails to compile it
// walks the fallback chain and returns the key actually used.
func (r *Registry) Resolve(key Key) (Key, render.PipelineHandle, error) {
	h, err := r.GetOrCompile(key)
	if err == nil {
		return key, h, nil
	}
	if errors.Is(err, render.ErrDeviceLost) {
		return key, 0, err
	}
	first := err
	for k, ok := key.Fallback(); ok; k, ok = k.Fallback() {
		if h, err = r.GetOrCompile(k); err == nil {
			logging.Logger().Warn("pipeline: using fallback", "key", key, "fallback", k, "err", first)
			return k, h, nil
		}
	}
	return key, 0, first
}

// Stats returns a snapshot of the counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	live := len(r.handles)
	r.mu.RUnlock()
	return Stats{
		Compiles: r.compiles.Load(),
		Hits:     r.hits.Load(),
		Failures: r.failures.Load(),
		Live:     live,
	}
}

// Close destroys every pipeline.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, h := range r.handles {
		r.dev.DestroyPipeline(h)
		delete(r.handles, k)
	}
	clear(r.failed)
	r.closed = true
}
