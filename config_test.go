package stage

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, DefaultSampleCount, c.SampleCount)
	assert.Equal(t, DefaultMaxTargetSize, c.MaxTargetSize)
	assert.Equal(t, float32(DefaultTolerance), c.Tolerance)
	assert.Equal(t, DefaultGraceFrames, c.GraceFrames)
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers)
	assert.Equal(t, float32(DefaultHairlineWidth), c.HairlineWidth)
	assert.NoError(t, c.Validate())
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
width = 800
height = 600
backend = "software"
sample_count = 2
tolerance = 0.25
grace_frames = 10
debug_labels = true
`))
	require.NoError(t, err)
	assert.Equal(t, 800, c.Width)
	assert.Equal(t, 600, c.Height)
	assert.Equal(t, "software", c.Backend)
	assert.Equal(t, 2, c.SampleCount)
	assert.Equal(t, float32(0.25), c.Tolerance)
	assert.Equal(t, 10, c.GraceFrames)
	assert.True(t, c.DebugLabels)
	assert.False(t, c.Trace)

	// Unset fields stay zero until the renderer applies defaults.
	assert.Zero(t, c.MaxTargetSize)
}

func TestParseConfigUnknownKey(t *testing.T) {
	_, err := ParseConfig([]byte("widht = 800\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "widht")
}

func TestParseConfigSyntax(t *testing.T) {
	_, err := ParseConfig([]byte("width = \n"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Config
		want string
	}{
		{"negative size", Config{Width: -1, Height: 10}, "negative size"},
		{"one dimension", Config{Width: 10}, "only one dimension"},
		{"sample count", Config{SampleCount: 3}, "sample count 3"},
		{"small target", Config{MaxTargetSize: 16}, "max target size 16"},
		{"tolerance", Config{Tolerance: -0.1}, "negative tolerance"},
		{"grace", Config{GraceFrames: -1}, "negative grace frames"},
		{"workers", Config{Workers: -2}, "negative workers"},
		{"hairline", Config{HairlineWidth: -1}, "negative hairline width"},
		{"backend", Config{Backend: "vulkan"}, `unknown backend "vulkan"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	err := Config{SampleCount: 3, Tolerance: -1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample count")
	assert.Contains(t, err.Error(), "negative tolerance")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.toml")
	require.NoError(t, os.WriteFile(path, []byte("sample_count = 1\ntrace = true\n"), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.SampleCount)
	assert.True(t, c.Trace)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptions(t *testing.T) {
	var c Config
	for _, opt := range []Option{
		WithSize(320, 240),
		WithBackend("software"),
		WithSampleCount(1),
		WithMaxTargetSize(512),
		WithTolerance(0.5),
		WithGraceFrames(3),
		WithWorkers(2),
		WithHairlineWidth(2),
		WithMaxAcquireRetries(-1),
		WithDebugLabels(),
		WithTrace(),
	} {
		opt(&c)
	}
	assert.Equal(t, Config{
		Width: 320, Height: 240, Backend: "software", SampleCount: 1,
		MaxTargetSize: 512, Tolerance: 0.5, GraceFrames: 3, Workers: 2,
		HairlineWidth: 2, MaxAcquireRetries: -1, DebugLabels: true, Trace: true,
	}, c)

	WithConfig(Config{SampleCount: 8})(&c)
	assert.Equal(t, Config{SampleCount: 8}, c)
}
