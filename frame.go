package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/stage/composite"
	"github.com/gogpu/stage/displaylist"
	"github.com/gogpu/stage/drawlist"
	"github.com/gogpu/stage/render"
)

// Frame is one frame being recorded. It is created by
// Renderer.BeginFrame and ends with Submit or Abandon.
type Frame struct {
	r       *Renderer
	list    *displaylist.List
	surface render.SurfaceFrame
	number  uint64

	stats FrameStats
	base  counters
	root  *composite.Layer
	built bool
	done  bool
}

// Number returns the frame number. Frames are numbered from 1.
func (f *Frame) Number() uint64 { return f.number }

// Size returns the size of the frame's surface texture.
func (f *Frame) Size() (w, h int) { return f.surface.Width, f.surface.Height }

// Build tessellates missing shapes and records the draws of the display
// list. Draws that fail are skipped and logged; device loss and
// cancellation abandon the frame.
func (f *Frame) Build(ctx context.Context) error {
	if f.done {
		return ErrFrameDone
	}
	if f.built {
		return nil
	}
	r := f.r
	start := time.Now()

	if err := r.meshes.Prepare(ctx, f.list.Shapes()); err != nil {
		f.Abandon()
		return err
	}

	t := drawlist.Target{
		Texture: f.surface.Texture,
		Width:   f.surface.Width,
		Height:  f.surface.Height,
		Format:  f.surface.Format,
		Samples: r.caps.SampleCount(r.cfg.SampleCount),
	}
	f.root = r.comp.Root(fmt.Sprintf("frame %d", f.number), t, f.list.Background.Premultiplied())

	b := &builder{
		ctx:    ctx,
		r:      r,
		stats:  &f.stats,
		serial: r.up.NextSerial(),
		labels: r.cfg.DebugLabels,
	}
	st := drawState{
		layer: f.root,
		m:     displaylist.Identity(),
		ct:    displaylist.IdentityColorTransform(),
	}
	if err := b.nodes(st, f.list.Nodes); err != nil {
		f.Abandon()
		return r.fail(err)
	}
	f.built = true
	f.stats.BuildTime = time.Since(start)
	return nil
}

// Submit encodes the recorded passes, submits them and presents the
// frame. It calls Build first if needed. Unused meshes, textures and
// targets past their grace period are released afterwards.
func (f *Frame) Submit(ctx context.Context) (FrameStats, error) {
	if f.done {
		return FrameStats{}, ErrFrameDone
	}
	if err := f.Build(ctx); err != nil {
		return f.stats, err
	}
	r := f.r
	start := time.Now()

	if err := r.up.Flush(); err != nil {
		f.Abandon()
		return f.stats, r.fail(err)
	}
	passes, err := r.graph.Encode()
	if err != nil {
		f.Abandon()
		return f.stats, err
	}
	f.stats.Draws = r.graph.Draws()
	f.stats.Passes = len(passes)

	serial, err := r.surf.Submit(passes)
	if err != nil {
		f.Abandon()
		return f.stats, r.fail(err)
	}
	r.up.Submitted(serial)
	f.finish()

	cs := r.comp.Stats()
	f.stats.Groups = cs.Groups
	f.stats.FilterPasses = cs.FilterPasses
	grace := uint64(r.cfg.GraceFrames)
	r.comp.EndFrame(f.number)
	r.meshes.Sweep()
	r.up.Sweep(f.number, grace)
	f.stats.addDelta(f.base, r.counters())

	err = r.surf.Present(ctx, f.surface)
	f.stats.SubmitTime = time.Since(start)
	if r.cfg.Trace {
		f.trace(passes)
	}
	if err != nil {
		return f.stats, r.fail(err)
	}
	return f.stats, nil
}

// Abandon discards the frame without presenting it. Nothing recorded is
// submitted. Abandon is a no-op after Submit.
func (f *Frame) Abandon() {
	if f.done {
		return
	}
	r := f.r
	r.surf.Discard(f.surface)
	r.up.AbandonFrame()
	r.comp.EndFrame(f.number)
	r.graph.Reset()
	f.finish()
}

func (f *Frame) finish() {
	f.done = true
	f.r.mu.Lock()
	if f.r.active == f {
		f.r.active = nil
	}
	f.r.mu.Unlock()
}

func (f *Frame) trace(passes []render.Pass) {
	log := Logger()
	for i, p := range passes {
		kind := "render"
		if p.Copy != nil {
			kind = "copy"
		}
		log.Debug("stage: pass", "frame", f.number, "index", i, "label", p.Label,
			"kind", kind, "draws", len(p.Draws), "samples", p.Samples)
	}
	log.Info("stage: frame", "stats", f.stats)
}

// isFatal reports whether err ends the frame instead of one draw.
func isFatal(ctx context.Context, err error) bool {
	return errors.Is(err, render.ErrDeviceLost) || ctx.Err() != nil
}
