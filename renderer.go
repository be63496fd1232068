package stage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/stage/composite"
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/mesh"
	"github.com/gogpu/stage/pipeline"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/surface"
	"github.com/gogpu/stage/upload"
)

// Renderer renders display lists to one surface.
//
// A Renderer runs one frame at a time and is driven by one goroutine.
// Tessellation inside a frame runs in parallel.
type Renderer struct {
	cfg  Config
	dev  render.Device
	caps render.Capabilities
	surf *surface.Context

	up     *upload.Uploader
	meshes *mesh.Cache
	pipes  *pipeline.Registry
	rec    *drawlist.Recorder
	comp   *composite.Compositor

	mu     sync.Mutex
	graph  drawlist.Graph
	frame  uint64
	active *Frame
	lost   bool
	closed bool
}

// New creates a Renderer presenting to surf, which must belong to dev.
func New(dev render.Device, surf render.Surface, opts ...Option) (*Renderer, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewFromConfig(dev, surf, cfg)
}

// NewFromConfig creates a Renderer from cfg. If cfg sets a size the
// surface is configured with the best supported format.
func NewFromConfig(dev render.Device, surf render.Surface, cfg Config) (*Renderer, error) {
	if dev == nil || surf == nil {
		return nil, fmt.Errorf("stage: %w: nil device or surface", ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	caps := dev.Capabilities()
	r := &Renderer{
		cfg:  cfg,
		dev:  dev,
		caps: caps,
		surf: surface.New(dev, surf, surface.WithMaxAcquireRetries(cfg.MaxAcquireRetries)),
	}
	grace := uint64(cfg.GraceFrames)
	r.up = upload.New(dev)
	r.meshes = mesh.New(r.up,
		mesh.WithTolerance(cfg.Tolerance),
		mesh.WithHairlineWidth(cfg.HairlineWidth),
		mesh.WithGraceFrames(grace),
		mesh.WithWorkers(cfg.Workers),
	)
	r.pipes = pipeline.New(dev)
	r.rec = drawlist.NewRecorder(r.up, r.pipes)
	r.comp = composite.New(dev, r.rec,
		composite.WithMaxTargetSize(cfg.MaxTargetSize),
		composite.WithGraceFrames(grace),
		composite.WithSampleCount(cfg.SampleCount),
	)

	if cfg.Width > 0 {
		if _, err := r.surf.ConfigureBest(cfg.Width, cfg.Height, render.FormatBGRA8, render.FormatRGBA8); err != nil {
			r.release()
			return nil, err
		}
	}
	Logger().Info("stage: renderer created",
		"samples", caps.SampleCount(cfg.SampleCount),
		"max_texture", caps.MaxTextureSize,
		"blend_ops", caps.BlendOps)
	return r, nil
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config { return r.cfg }

// Device returns the device.
func (r *Renderer) Device() render.Device { return r.dev }

// Configure sets the surface size and format. Cached meshes, textures and
// pipelines stay valid. An unsupported combination returns a
// *surface.ConfigurationError matching ErrConfiguration.
func (r *Renderer) Configure(width, height int, format render.TextureFormat) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.fail(r.surf.Configure(width, height, format))
}

// Size returns the configured surface size.
func (r *Renderer) Size() (w, h int) { return r.surf.Size() }

// Format returns the configured surface format.
func (r *Renderer) Format() render.TextureFormat { return r.surf.Format() }

// SupportedFormats lists the formats Configure accepts.
func (r *Renderer) SupportedFormats() []render.TextureFormat { return r.surf.SupportedFormats() }

// RenderFrame renders and presents list.
func (r *Renderer) RenderFrame(ctx context.Context, list *displaylist.List) (FrameStats, error) {
	f, err := r.BeginFrame(ctx, list)
	if err != nil {
		return FrameStats{}, err
	}
	if err := f.Build(ctx); err != nil {
		return f.stats, err
	}
	return f.Submit(ctx)
}

// BeginFrame acquires the next surface texture and opens a frame for list.
// It waits until the GPU has finished with the upload arenas the frame
// reuses.
func (r *Renderer) BeginFrame(ctx context.Context, list *displaylist.List) (*Frame, error) {
	if list == nil {
		return nil, errors.New("stage: nil display list")
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrFrameInProgress
	}
	number := r.frame + 1
	r.mu.Unlock()

	sf, err := r.surf.AcquireFrame(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	if err := r.up.BeginFrame(ctx, number); err != nil {
		r.surf.Discard(sf)
		return nil, r.fail(err)
	}
	r.meshes.BeginFrame(number)
	r.graph.Reset()
	r.comp.BeginFrame(&r.graph, number)

	f := &Frame{r: r, list: list, surface: sf, number: number}
	f.stats.Frame = number
	f.base = r.counters()

	r.mu.Lock()
	r.frame = number
	r.active = f
	r.mu.Unlock()
	return f, nil
}

// Lost reports whether the device was lost.
func (r *Renderer) Lost() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost
}

// MeshStats returns the tessellation cache counters.
func (r *Renderer) MeshStats() mesh.Stats { return r.meshes.Stats() }

// PipelineStats returns the pipeline registry counters.
func (r *Renderer) PipelineStats() pipeline.Stats { return r.pipes.Stats() }

// UploadStats returns the uploader counters.
func (r *Renderer) UploadStats() upload.Stats { return r.up.Stats() }

// CompositeStats returns the compositor counters.
func (r *Renderer) CompositeStats() composite.Stats { return r.comp.Stats() }

// Close abandons an open frame, waits for the device to go idle and
// releases every resource. The device and surface stay open.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	f := r.active
	r.mu.Unlock()
	if f != nil {
		f.Abandon()
	}

	r.mu.Lock()
	r.closed = true
	lost := r.lost
	r.mu.Unlock()
	if !lost {
		if serial := r.up.NextSerial() - 1; serial > 0 {
			// A failed wait leaves nothing to do but release.
			_ = r.dev.Wait(context.Background(), serial)
		}
	}
	r.release()
}

func (r *Renderer) release() {
	r.comp.Release()
	r.meshes.Clear()
	r.rec.Close()
	r.pipes.Close()
	r.up.Close()
}

// check returns the terminal error of r, if any.
func (r *Renderer) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return ErrClosed
	case r.lost:
		return ErrDeviceLost
	}
	return nil
}

// fail records device loss and returns err.
func (r *Renderer) fail(err error) error {
	if errors.Is(err, render.ErrDeviceLost) {
		r.mu.Lock()
		if !r.lost {
			r.lost = true
			Logger().Error("stage: device lost", "frame", r.frame, "err", err)
		}
		r.mu.Unlock()
	}
	return err
}

// counters snapshots the cumulative counters a frame reports deltas of.
func (r *Renderer) counters() counters {
	us := r.up.Stats()
	return counters{
		textureUploads: us.TextureUploads,
		bytesStreamed:  us.BytesStreamed,
		meshBuilds:     r.meshes.Stats().Builds,
		compiles:       r.pipes.Stats().Compiles,
	}
}
