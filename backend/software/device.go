package software

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/internal/logging"
	"github.com/gogpu/stage/render"
)

// Defaults reported through render.Capabilities.
const (
	DefaultMaxTextureSize = 8192
	DefaultMaxSampleCount = 4
)

func init() {
	backend.Register(backend.Software, func() backend.Backend { return softwareBackend{} })
}

type softwareBackend struct{}

func (softwareBackend) Name() string { return backend.Software }

func (softwareBackend) Open() (render.Device, error) { return New(), nil }

// Option configures a Device.
type Option func(*Device)

// WithMaxTextureSize overrides the reported maximum texture size.
func WithMaxTextureSize(n int) Option {
	return func(d *Device) { d.caps.MaxTextureSize = n }
}

// WithMaxSampleCount overrides the reported maximum sample count. Values
// above 4 are clamped.
func WithMaxSampleCount(n int) Option {
	return func(d *Device) { d.caps.MaxSampleCount = min(max(n, 1), 4) }
}

// WithoutBlendOps reports no min/max blend support, which makes pipelines
// using them fail to compile.
func WithoutBlendOps() Option {
	return func(d *Device) { d.caps.BlendOps = false }
}

// WithAsyncReadiness reports deferred texture readiness.
func WithAsyncReadiness() Option {
	return func(d *Device) { d.caps.AsyncReadiness = true }
}

// WithTextureFailure makes CreateTexture fail with render.ErrOutOfMemory
// whenever fail returns true.
func WithTextureFailure(fail func(render.TextureDesc) bool) Option {
	return func(d *Device) { d.failTexture = fail }
}

// WithPipelineFailure makes CreatePipeline fail whenever fail returns true.
func WithPipelineFailure(fail func(render.PipelineDesc) bool) Option {
	return func(d *Device) { d.failPipeline = fail }
}

type buffer struct {
	kind render.BufferKind
	data []byte
}

type texture struct {
	desc render.TextureDesc
	pix  []uint8 // premultiplied RGBA

	// Multisampled companion, samples*4 floats per pixel.
	msaa     []float32
	samples  int
	msaaDirt bool // pix changed outside a multisampled pass
}

// Device is a CPU render.Device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	caps         render.Capabilities
	failTexture  func(render.TextureDesc) bool
	failPipeline func(render.PipelineDesc) bool

	next      uint64
	buffers   map[render.BufferHandle]*buffer
	textures  map[render.TextureHandle]*texture
	pipelines map[render.PipelineHandle]render.PipelineDesc

	serial uint64
	lost   bool
	closed bool

	compiles atomic.Int64
	draws    atomic.Int64
}

// New creates a software device.
func New(opts ...Option) *Device {
	d := &Device{
		caps: render.Capabilities{
			MaxTextureSize:   DefaultMaxTextureSize,
			MaxSampleCount:   DefaultMaxSampleCount,
			BlendOps:         true,
			UniformAlignment: render.UniformStride,
			Formats:          []render.TextureFormat{render.FormatRGBA8, render.FormatBGRA8},
		},
		buffers:   make(map[render.BufferHandle]*buffer),
		textures:  make(map[render.TextureHandle]*texture),
		pipelines: make(map[render.PipelineHandle]render.PipelineDesc),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities implements render.Device.
func (d *Device) Capabilities() render.Capabilities {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.caps
	c.Formats = append([]render.TextureFormat(nil), d.caps.Formats...)
	return c
}

// Lose simulates device loss. Every later call fails with
// render.ErrDeviceLost.
func (d *Device) Lose() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

// PipelineCompiles returns how many pipelines were created.
func (d *Device) PipelineCompiles() int { return int(d.compiles.Load()) }

// DrawCalls returns how many draws were executed.
func (d *Device) DrawCalls() int { return int(d.draws.Load()) }

// LiveTextures returns the number of textures not yet destroyed.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

func (d *Device) check() error {
	if d.lost {
		return render.ErrDeviceLost
	}
	if d.closed {
		return fmt.Errorf("software: device closed: %w", render.ErrDeviceLost)
	}
	return nil
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

// CreateBuffer implements render.Device.
func (d *Device) CreateBuffer(kind render.BufferKind, size int) (render.BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("software: buffer size %d", size)
	}
	h := render.BufferHandle(d.handle())
	d.buffers[h] = &buffer{kind: kind, data: make([]byte, size)}
	return h, nil
}

// WriteBuffer implements render.Device.
func (d *Device) WriteBuffer(h render.BufferHandle, offset int, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	b, ok := d.buffers[h]
	if !ok {
		return render.ErrInvalidHandle
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("software: write of %d bytes at %d overflows %s buffer of %d",
			len(data), offset, b.kind, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer implements render.Device.
func (d *Device) DestroyBuffer(h render.BufferHandle) {
	d.mu.Lock()
	delete(d.buffers, h)
	d.mu.Unlock()
}

// CreateTexture implements render.Device.
func (d *Device) CreateTexture(desc render.TextureDesc) (render.TextureHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	limit := d.caps.MaxTextureSize
	if desc.Width <= 0 || desc.Height <= 0 ||
		limit > 0 && (desc.Width > limit || desc.Height > limit) {
		return 0, fmt.Errorf("software: texture %dx%d: %w", desc.Width, desc.Height, render.ErrUnsupported)
	}
	if d.failTexture != nil && d.failTexture(desc) {
		return 0, fmt.Errorf("software: texture %q: %w", desc.Label, render.ErrOutOfMemory)
	}
	h := render.TextureHandle(d.handle())
	d.textures[h] = &texture{desc: desc, pix: make([]uint8, desc.Width*desc.Height*4)}
	return h, nil
}

// WriteTexture implements render.Device.
func (d *Device) WriteTexture(h render.TextureHandle, pix []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	t, ok := d.textures[h]
	if !ok {
		return render.ErrInvalidHandle
	}
	if len(pix) != len(t.pix) {
		return fmt.Errorf("software: texture write of %d bytes, want %d", len(pix), len(t.pix))
	}
	copy(t.pix, pix)
	t.msaaDirt = true
	return nil
}

// DestroyTexture implements render.Device.
func (d *Device) DestroyTexture(h render.TextureHandle) {
	d.mu.Lock()
	delete(d.textures, h)
	d.mu.Unlock()
}

// CreatePipeline implements render.Device.
func (d *Device) CreatePipeline(desc render.PipelineDesc) (render.PipelineHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	d.compiles.Add(1)
	if desc.Blend.NeedsBlendOps() && !d.caps.BlendOps {
		return 0, fmt.Errorf("software: blend %s needs min/max: %w", desc.Blend, render.ErrUnsupported)
	}
	if desc.Samples < 1 || desc.Samples > d.caps.MaxSampleCount {
		return 0, fmt.Errorf("software: %d samples: %w", desc.Samples, render.ErrUnsupported)
	}
	if !d.caps.SupportsFormat(desc.Format) {
		return 0, fmt.Errorf("software: format %s: %w", desc.Format, render.ErrUnsupported)
	}
	if d.failPipeline != nil && d.failPipeline(desc) {
		return 0, fmt.Errorf("software: pipeline %q rejected", desc.Label)
	}
	h := render.PipelineHandle(d.handle())
	d.pipelines[h] = desc
	logging.Logger().Debug("software: pipeline created", "blend", desc.Blend, "variant", desc.Variant, "samples", desc.Samples)
	return h, nil
}

// DestroyPipeline implements render.Device.
func (d *Device) DestroyPipeline(h render.PipelineHandle) {
	d.mu.Lock()
	delete(d.pipelines, h)
	d.mu.Unlock()
}

// Submit implements render.Device. Passes execute synchronously, so the
// returned serial has completed when Submit returns.
func (d *Device) Submit(passes []render.Pass) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return 0, err
	}
	for i := range passes {
		p := &passes[i]
		var err error
		if p.Copy != nil {
			err = d.copyPass(p)
		} else {
			err = d.renderPass(p)
		}
		if err != nil {
			return 0, fmt.Errorf("software: pass %d %q: %w", i, p.Label, err)
		}
	}
	d.serial++
	return d.serial, nil
}

// Completed implements render.Device.
func (d *Device) Completed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serial
}

// Wait implements render.Device.
func (d *Device) Wait(ctx context.Context, serial uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(); err != nil {
		return err
	}
	if serial > d.serial {
		return fmt.Errorf("software: wait for unsubmitted serial %d", serial)
	}
	return nil
}

// Close releases every resource. Later calls fail.
func (d *Device) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.pipelines)
}

// ReadTexture returns a copy of a texture's pixels.
func (d *Device) ReadTexture(h render.TextureHandle) (*image.RGBA, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[h]
	if !ok {
		return nil, render.ErrInvalidHandle
	}
	img := image.NewRGBA(image.Rect(0, 0, t.desc.Width, t.desc.Height))
	copy(img.Pix, t.pix)
	return img, nil
}

func (d *Device) copyPass(p *render.Pass) error {
	src, ok := d.textures[p.Copy.Source]
	if !ok {
		return fmt.Errorf("copy source: %w", render.ErrInvalidHandle)
	}
	dst, ok := d.textures[p.Target]
	if !ok {
		return fmt.Errorf("copy target: %w", render.ErrInvalidHandle)
	}
	r := p.Copy.Src.Intersect(image.Rect(0, 0, src.desc.Width, src.desc.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dy := y - p.Copy.Src.Min.Y + p.Copy.DstPoint.Y
		if dy < 0 || dy >= dst.desc.Height {
			continue
		}
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := x - p.Copy.Src.Min.X + p.Copy.DstPoint.X
			if dx < 0 || dx >= dst.desc.Width {
				continue
			}
			si := (y*src.desc.Width + x) * 4
			di := (dy*dst.desc.Width + dx) * 4
			copy(dst.pix[di:di+4], src.pix[si:si+4])
		}
	}
	dst.msaaDirt = true
	return nil
}

// ReadBuffer returns a copy of a buffer's contents.
func (d *Device) ReadBuffer(h render.BufferHandle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[h]
	if !ok {
		return nil, render.ErrInvalidHandle
	}
	return append([]byte(nil), b.data...), nil
}
