package mesh

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/internal/cache"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/internal/path"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/upload"
)

// Defaults.
const (
	DefaultTolerance     = path.DefaultTolerance
	DefaultHairlineWidth = 1
	DefaultGraceFrames   = 30
)

// Option configures a Cache.
type Option func(*Cache)

// WithTolerance sets the flattening tolerance in shape units.
func WithTolerance(tol float32) Option {
	return func(c *Cache) {
		if tol > 0 {
			c.tolerance = tol
		}
	}
}

// WithHairlineWidth sets the width, in shape units, used for zero width
// strokes.
func WithHairlineWidth(w float32) Option {
	return func(c *Cache) {
		if w > 0 {
			c.hairline = w
		}
	}
}

// WithGraceFrames sets how many frames an unused mesh survives.
func WithGraceFrames(n uint64) Option {
	return func(c *Cache) { c.grace = n }
}

// WithWorkers limits the goroutines Prepare uses.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Stats reports cache activity.
type Stats struct {
	Builds    int64
	Hits      int64
	Failures  int64
	Evictions int64
	Live      int
}

// Cache owns tessellated meshes keyed by shape ID.
//
// Meshes are built once per ID and reused until they go unused for the
// grace period. The transform a shape is drawn with never affects its
// mesh. Cache is safe for concurrent use.
type Cache struct {
	up        *upload.Uploader
	tolerance float32
	hairline  float32
	grace     uint64
	workers   int

	entries *cache.Cache[displaylist.ShapeID, *Mesh]
	group   singleflight.Group

	// failed holds build errors of the current generation only.
	mu     sync.Mutex
	failed map[displaylist.ShapeID]failure

	builds    atomic.Int64
	hits      atomic.Int64
	failures  atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache. Meshes are made resident through up; with a nil
// uploader they stay CPU only.
func New(up *upload.Uploader, opts ...Option) *Cache {
	c := &Cache{
		up:        up,
		tolerance: DefaultTolerance,
		hairline:  DefaultHairlineWidth,
		grace:     DefaultGraceFrames,
		workers:   runtime.GOMAXPROCS(0),
		entries:   cache.New[displaylist.ShapeID, *Mesh](),
		failed:    make(map[displaylist.ShapeID]failure),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tolerance returns the flattening tolerance.
func (c *Cache) Tolerance() float32 { return c.tolerance }

// GetOrBuild returns the mesh of shape, building it on first use.
// Concurrent calls for one ID share a single build. Malformed shapes fail
// with displaylist.ErrMalformedShape. A failed build is not retried within
// the same generation; the next frame tries again.
func (c *Cache) GetOrBuild(shape *displaylist.Shape) (*Mesh, error) {
	if shape == nil {
		return nil, fmt.Errorf("%w: nil shape", displaylist.ErrMalformedShape)
	}
	if m, ok := c.entries.Get(shape.ID); ok {
		c.hits.Add(1)
		return m, nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(uint64(shape.ID), 10), func() (any, error) {
		if m, ok := c.entries.Get(shape.ID); ok {
			return m, nil
		}
		if err := c.failure(shape.ID); err != nil {
			return nil, err
		}
		m, err := c.build(shape)
		if err != nil {
			c.failures.Add(1)
			c.mu.Lock()
			c.failed[shape.ID] = failure{gen: c.entries.Generation(), err: err}
			c.mu.Unlock()
			return nil, err
		}
		return c.entries.Set(shape.ID, m), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Mesh), nil
}

type failure struct {
	gen uint64
	err error
}

// failure returns the error id failed with in the current generation.
func (c *Cache) failure(id displaylist.ShapeID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.failed[id]
	if !ok || f.gen != c.entries.Generation() {
		return nil
	}
	return f.err
}

func (c *Cache) build(shape *displaylist.Shape) (*Mesh, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	b := builder{tolerance: c.tolerance, hairline: c.hairline}
	m := b.build(shape)
	c.builds.Add(1)
	logging.Logger().Debug("mesh: built", "shape", shape.ID,
		"vertices", len(m.Vertices), "triangles", m.Triangles(), "draws", len(m.Draws))

	if c.up == nil || len(m.Indices) == 0 {
		return m, nil
	}
	var err error
	if m.vertices, err = c.up.UploadStatic(render.BufferVertex, render.AppendVertices(nil, m.Vertices)); err != nil {
		return nil, fmt.Errorf("mesh: shape %d vertices: %w", shape.ID, err)
	}
	if m.indices, err = c.up.UploadStatic(render.BufferIndex, render.AppendIndices(nil, m.Indices)); err != nil {
		c.up.Free(m.vertices)
		return nil, fmt.Errorf("mesh: shape %d indices: %w", shape.ID, err)
	}
	return m, nil
}

// Prepare builds the meshes of shapes that are not cached yet, in
// parallel. Per-shape failures are left for GetOrBuild to report; only
// cancellation fails Prepare.
func (c *Cache) Prepare(ctx context.Context, shapes []*displaylist.Shape) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, s := range shapes {
		if s == nil {
			continue
		}
		if _, ok := c.entries.Peek(s.ID); ok {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := c.GetOrBuild(s); err != nil && !errors.Is(err, displaylist.ErrMalformedShape) {
				logging.Logger().Debug("mesh: prepare failed", "shape", s.ID, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// BeginFrame sets the generation entries are marked used in.
func (c *Cache) BeginFrame(frame uint64) {
	c.entries.SetGeneration(frame)
	c.mu.Lock()
	clear(c.failed)
	c.mu.Unlock()
}

// Sweep evicts meshes unused for the grace period and frees their device
// buffers.
func (c *Cache) Sweep() int {
	n := c.entries.Sweep(c.grace, func(id displaylist.ShapeID, m *Mesh) {
		c.release(m)
		logging.Logger().Debug("mesh: evicted", "shape", id)
	})
	c.evictions.Add(int64(n))
	return n
}

func (c *Cache) release(m *Mesh) {
	if c.up == nil {
		return
	}
	c.up.Free(m.vertices)
	c.up.Free(m.indices)
}

// Len returns the number of cached meshes.
func (c *Cache) Len() int { return c.entries.Len() }

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Builds:    c.builds.Load(),
		Hits:      c.hits.Load(),
		Failures:  c.failures.Load(),
		Evictions: c.evictions.Load(),
		Live:      c.entries.Len(),
	}
}

// Clear drops every mesh.
func (c *Cache) Clear() {
	c.entries.Clear(func(_ displaylist.ShapeID, m *Mesh) { c.release(m) })
	c.mu.Lock()
	clear(c.failed)
	c.mu.Unlock()
}
