// Package stage renders display lists of a vector content player with a
// GPU.
//
// # Overview
//
// A display list is a frame's worth of resolved content: shapes with
// fills, strokes and gradients, bitmaps, and nested groups carrying
// transforms, color transforms, blend modes, filters, masks and scroll
// rects. A Renderer turns each list into render passes for a
// render.Device and presents them on a render.Surface.
//
// # Quick Start
//
//	dev := software.New()
//	surf := dev.NewSurface()
//	r, err := stage.New(dev, surf, stage.WithSize(550, 400))
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	stats, err := r.RenderFrame(ctx, list)
//
// # Frames
//
// RenderFrame is BeginFrame, Frame.Build and Frame.Submit in one call.
// BeginFrame acquires the surface texture and rewinds the per-frame upload
// arenas once the GPU has finished with them. Build tessellates new shapes
// in parallel, then walks the list in painter's order. Groups that need
// isolation are rendered off-screen by the composite package and combined
// into their parent. Submit orders the pass graph, submits it and presents.
//
// A draw that cannot be recorded (a malformed shape, a texture the device
// could not allocate, a pipeline that failed to compile without fallback)
// is skipped and counted in FrameStats; the rest of the frame renders.
// Device loss is terminal: every later call returns ErrDeviceLost.
//
// # Architecture
//
// The library is organized into:
//   - displaylist: the input model
//   - render: the device interface; backend/native and backend/software implement it
//   - surface: configuration, acquisition and presentation
//   - upload: buffer arenas and the texture cache
//   - mesh: the shape tessellation cache
//   - pipeline: the pipeline registry
//   - composite: off-screen groups, filters, masks and blend formulas
//   - drawlist: draw commands and the pass graph
//
// # Coordinate System
//
// Display list coordinates are pixels with the origin at the top-left and
// y increasing downward.
package stage

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
