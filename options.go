package stage

// Option configures a Renderer during creation.
// Use functional options to customize Renderer behavior.
//
// Example:
//
//	// Default settings, surface configured later
//	r, err := stage.New(dev, surf)
//
//	// 2x MSAA at 800x600
//	r, err := stage.New(dev, surf, stage.WithSize(800, 600), stage.WithSampleCount(2))
type Option func(*Config)

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(c Config) Option {
	return func(dst *Config) { *dst = c }
}

// WithSize configures the surface at creation.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width, c.Height = width, height
	}
}

// WithBackend names the backend Config.OpenDevice uses.
func WithBackend(name string) Option {
	return func(c *Config) { c.Backend = name }
}

// WithSampleCount sets the MSAA sample count.
func WithSampleCount(n int) Option {
	return func(c *Config) { c.SampleCount = n }
}

// WithMaxTargetSize caps the edge of off-screen group targets. Larger
// groups are rendered at reduced resolution.
func WithMaxTargetSize(n int) Option {
	return func(c *Config) { c.MaxTargetSize = n }
}

// WithTolerance sets the curve flattening tolerance in shape units.
func WithTolerance(tol float32) Option {
	return func(c *Config) { c.Tolerance = tol }
}

// WithGraceFrames sets how many frames unused resources survive.
func WithGraceFrames(n int) Option {
	return func(c *Config) { c.GraceFrames = n }
}

// WithWorkers bounds parallel tessellation.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithHairlineWidth sets the width of zero width strokes.
func WithHairlineWidth(w float32) Option {
	return func(c *Config) { c.HairlineWidth = w }
}

// WithMaxAcquireRetries sets the surface reconfiguration attempts per
// acquisition.
func WithMaxAcquireRetries(n int) Option {
	return func(c *Config) { c.MaxAcquireRetries = n }
}

// WithDebugLabels names passes after the groups that produce them.
func WithDebugLabels() Option {
	return func(c *Config) { c.DebugLabels = true }
}

// WithTrace logs the pass order and statistics of every frame.
func WithTrace() Option {
	return func(c *Config) { c.Trace = true }
}
