package stage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/composite"
	"github.com/gogpu/stage/mesh"
	"github.com/gogpu/stage/render"
	"github.com/gogpu/stage/surface"
)

// Defaults.
const (
	// DefaultSampleCount is the MSAA sample count of frame passes. Devices
	// that support fewer samples use their maximum.
	DefaultSampleCount = 4

	// DefaultMaxTargetSize caps the edge of off-screen group targets.
	DefaultMaxTargetSize = composite.DefaultMaxTargetSize

	// DefaultTolerance is the curve flattening tolerance in shape units.
	DefaultTolerance = mesh.DefaultTolerance

	// DefaultGraceFrames is how many frames unused meshes, textures and
	// targets survive.
	DefaultGraceFrames = 30

	// DefaultHairlineWidth is the width, in shape units, of zero width
	// strokes.
	DefaultHairlineWidth = mesh.DefaultHairlineWidth

	// DefaultMaxAcquireRetries is how many times a lost surface is
	// reconfigured during one acquisition.
	DefaultMaxAcquireRetries = surface.DefaultMaxAcquireRetries
)

// Config holds renderer settings. Zero fields take their defaults.
type Config struct {
	// Width and Height configure the surface at creation. When zero the
	// host calls Renderer.Configure before the first frame.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Backend names the backend OpenDevice uses: "native", "software" or
	// empty for the best available.
	Backend string `toml:"backend"`

	SampleCount   int     `toml:"sample_count"`
	MaxTargetSize int     `toml:"max_target_size"`
	Tolerance     float32 `toml:"tolerance"`
	GraceFrames   int     `toml:"grace_frames"`
	// Workers bounds parallel tessellation. Zero means GOMAXPROCS.
	Workers       int     `toml:"workers"`
	HairlineWidth float32 `toml:"hairline_width"`

	// MaxAcquireRetries is the number of surface reconfigurations per
	// acquisition. Negative disables retries.
	MaxAcquireRetries int `toml:"max_acquire_retries"`

	// DebugLabels names passes after the groups that produce them.
	DebugLabels bool `toml:"debug_labels"`
	// Trace logs the pass order and statistics of every frame.
	Trace bool `toml:"trace"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{}.withDefaults()
}

// withDefaults returns c with zero fields set to their defaults.
func (c Config) withDefaults() Config {
	if c.SampleCount == 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.MaxTargetSize == 0 {
		c.MaxTargetSize = DefaultMaxTargetSize
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.GraceFrames == 0 {
		c.GraceFrames = DefaultGraceFrames
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.HairlineWidth == 0 {
		c.HairlineWidth = DefaultHairlineWidth
	}
	if c.MaxAcquireRetries == 0 {
		c.MaxAcquireRetries = DefaultMaxAcquireRetries
	}
	return c
}

// Validate reports every invalid field of c, wrapped in ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("negative size %dx%d", c.Width, c.Height))
	}
	if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, fmt.Errorf("size %dx%d sets only one dimension", c.Width, c.Height))
	}
	switch c.SampleCount {
	case 0, 1, 2, 4, 8:
	default:
		errs = append(errs, fmt.Errorf("sample count %d is not 1, 2, 4 or 8", c.SampleCount))
	}
	if c.MaxTargetSize < 0 || (c.MaxTargetSize > 0 && c.MaxTargetSize < composite.MinBucket) {
		errs = append(errs, fmt.Errorf("max target size %d is below %d", c.MaxTargetSize, composite.MinBucket))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("negative tolerance %g", c.Tolerance))
	}
	if c.GraceFrames < 0 {
		errs = append(errs, fmt.Errorf("negative grace frames %d", c.GraceFrames))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("negative workers %d", c.Workers))
	}
	if c.HairlineWidth < 0 {
		errs = append(errs, fmt.Errorf("negative hairline width %g", c.HairlineWidth))
	}
	switch c.Backend {
	case "", backend.Native, backend.Software:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("stage: invalid config: %w: %w", ErrConfiguration, errors.Join(errs...))
}

// ParseConfig decodes a TOML document into a Config. Unknown keys are
// errors.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var missing *toml.StrictMissingError
		if errors.As(err, &missing) {
			return Config{}, fmt.Errorf("stage: parse config: %w: %s", ErrConfiguration, missing.String())
		}
		return Config{}, fmt.Errorf("stage: parse config: %w: %w", ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("stage: load config: %w", err)
	}
	return ParseConfig(data)
}

// OpenDevice opens the device of the backend named by c.Backend.
func (c Config) OpenDevice() (render.Device, error) {
	return backend.Open(c.Backend)
}
