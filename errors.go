package stage

import (
	"errors"

	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/surface"
)

var (
	// ErrConfiguration is returned for an unusable configuration: an
	// invalid Config, or a size or format the surface rejects. Surface
	// errors are *surface.ConfigurationError values listing the supported
	// formats.
	ErrConfiguration = surface.ErrConfiguration

	// ErrDeviceLost is terminal. Every call on a Renderer that saw it
	// returns it again; build a new Renderer on a new device.
	ErrDeviceLost = render.ErrDeviceLost

	// ErrTimeout means no surface texture was available in time. Skip the
	// frame and try again.
	ErrTimeout = render.ErrTimeout

	// ErrFrameInProgress is returned by BeginFrame while another frame is
	// open.
	ErrFrameInProgress = errors.New("stage: frame in progress")

	// ErrFrameDone is returned when a frame is used after Submit or
	// Abandon.
	ErrFrameDone = errors.New("stage: frame already submitted or abandoned")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stage: renderer closed")
)
