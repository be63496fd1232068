package stage

import (
	"log/slog"
	"time"
)

// FrameStats describes one frame.
type FrameStats struct {
	Frame uint64

	// Draws is the number of draw calls submitted.
	Draws int
	// SkippedDraws counts draws dropped because of a per-draw error. Each
	// one is logged at warn level.
	SkippedDraws int
	// DeferredDraws counts draws of textures the device has not made
	// visible yet. They are drawn by a later frame.
	DeferredDraws int
	// Culled counts nodes outside the frame or their clip.
	Culled int

	Passes       int
	Groups       int
	FilterPasses int

	TextureUploads   int
	BytesStreamed    int
	MeshBuilds       int64
	PipelineCompiles int64

	BuildTime  time.Duration
	SubmitTime time.Duration
}

// LogValue implements slog.LogValuer.
func (s FrameStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frame", s.Frame),
		slog.Int("draws", s.Draws),
		slog.Int("skipped", s.SkippedDraws),
		slog.Int("deferred", s.DeferredDraws),
		slog.Int("culled", s.Culled),
		slog.Int("passes", s.Passes),
		slog.Int("groups", s.Groups),
		slog.Int("filter_passes", s.FilterPasses),
		slog.Int("texture_uploads", s.TextureUploads),
		slog.Int("bytes_streamed", s.BytesStreamed),
		slog.Int64("mesh_builds", s.MeshBuilds),
		slog.Int64("pipeline_compiles", s.PipelineCompiles),
		slog.Duration("build", s.BuildTime),
		slog.Duration("submit", s.SubmitTime),
	)
}

// counters are cumulative component counters. Frames report the
// difference between two snapshots.
type counters struct {
	textureUploads int
	bytesStreamed  int
	meshBuilds     int64
	compiles       int64
}

func (s *FrameStats) addDelta(from, to counters) {
	s.TextureUploads = to.textureUploads - from.textureUploads
	s.BytesStreamed = to.bytesStreamed - from.bytesStreamed
	s.MeshBuilds = to.meshBuilds - from.meshBuilds
	s.PipelineCompiles = to.compiles - from.compiles
}
