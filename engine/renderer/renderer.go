package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
	"github.com/Carmen-Shannon/oxy-sync/engine/scheduler"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/docker/go-units"
)

const defaultStagingInstances = 3

// ErrReleased is returned when using a renderer after Release.
var ErrReleased = errors.New("renderer: released")

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu       *sync.Mutex
	released bool

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surfaceWidth         int
	surfaceHeight        int
	stagingInstances     int
}

// Renderer defines the interface for the rendering system.
//
// The Renderer creates multibuffered resources on its backend and brackets
// frames for a scheduler: it implements scheduler.FrameSource, so every
// staging copy of a frame is recorded into the same backend frame as its draws.
type Renderer interface {
	scheduler.FrameSource

	// BackendType returns the selected backend.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	BackendType() RendererBackendType

	// NewBuffer creates a multibuffered buffer of the given size.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//   - usage: how the buffer is bound
	//
	// Returns:
	//   - *resource.Buffer: the buffer
	//   - error: an error if the backend cannot create the instances
	NewBuffer(label string, size int, usage BufferUsage) (*resource.Buffer, error)

	// NewCameraBuffer creates a multibuffered uniform buffer for a camera.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - *resource.Buffer: the buffer, reporting the camera kind
	//   - error: an error if the backend cannot create the instances
	NewCameraBuffer(label string, size int) (*resource.Buffer, error)

	// NewTexture creates a multibuffered texture and uploads its initial pixels.
	//
	// Parameters:
	//   - ctx: the context bounding the initial write
	//   - label: the debug label
	//   - staging: the initial pixel data and dimensions
	//
	// Returns:
	//   - *resource.Texture: the texture, dirty until its first frame
	//   - error: an error if the data is invalid or the backend fails
	NewTexture(ctx context.Context, label string, staging common.TextureStagingData) (*resource.Texture, error)

	// NewSampler creates a sampler.
	//
	// Parameters:
	//   - label: the debug label
	//   - config: the sampler configuration
	//
	// Returns:
	//   - *resource.Sampler: the sampler
	//   - error: an error if sampler creation fails
	NewSampler(label string, config common.SamplerStagingData) (*resource.Sampler, error)

	// Resize configures the underlying backend to handle a new surface size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Release frees the backend. Resources created by the renderer must be closed first.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer with the configured backend.
//
// Parameters:
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the new renderer
//   - error: an error if the backend cannot be initialized
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:               &sync.Mutex{},
		backendType:      BackendTypeWGPU,
		stagingInstances: defaultStagingInstances,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	switch r.backendType {
	case BackendTypeHeadless:
		r.backend = newHeadlessRendererBackend()
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.surfaceDescriptor, r.forceFallbackAdapter)
		if err != nil {
			return nil, fmt.Errorf("wgpu backend: %w", err)
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("unknown backend %s", r.backendType)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	if r.surfaceDescriptor != nil {
		r.backend.ConfigureSurface(r.surfaceWidth, r.surfaceHeight)
	}

	logging.Logger().Info("renderer: ready", "backend", r.backendType.String(), "staging", r.stagingInstances)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) NewBuffer(label string, size int, usage BufferUsage) (*resource.Buffer, error) {
	label = common.LabelOr(label, "buffer")
	cpu, gpu, err := r.instances(label, size, func() (multibuffer.GPUable, error) {
		return r.backend.CreateBuffer(label, size, usage)
	})
	if err != nil {
		return nil, err
	}
	return resource.NewBuffer(cpu, gpu, multibuffer.WithLabel(label))
}

func (r *renderer) NewCameraBuffer(label string, size int) (*resource.Buffer, error) {
	label = common.LabelOr(label, "camera")
	cpu, gpu, err := r.instances(label, size, func() (multibuffer.GPUable, error) {
		return r.backend.CreateBuffer(label, size, BufferUsageUniform)
	})
	if err != nil {
		return nil, err
	}
	return resource.NewCameraBuffer(cpu, gpu, multibuffer.WithLabel(label))
}

func (r *renderer) NewTexture(ctx context.Context, label string, staging common.TextureStagingData) (*resource.Texture, error) {
	if err := staging.Validate(); err != nil {
		return nil, err
	}
	label = common.LabelOr(label, "texture")
	cpu, gpu, err := r.instances(label, staging.ByteLength(), func() (multibuffer.GPUable, error) {
		return r.backend.CreateTexture(label, staging.Width, staging.Height)
	})
	if err != nil {
		return nil, err
	}
	tex, err := resource.NewTexture(staging.Width, staging.Height, cpu, gpu, multibuffer.WithLabel(label))
	if err != nil {
		return nil, err
	}
	if err := tex.WritePixels(ctx, staging); err != nil {
		tex.Close()
		return nil, err
	}
	return tex, nil
}

func (r *renderer) NewSampler(label string, config common.SamplerStagingData) (*resource.Sampler, error) {
	label = common.LabelOr(label, "sampler")
	if err := r.check(); err != nil {
		return nil, err
	}
	handle, err := r.backend.CreateSampler(label, config)
	if err != nil {
		return nil, err
	}
	return resource.NewSampler(label, config, handle), nil
}

// instances creates the staging instances and the GPU instance of one
// resource, releasing whatever was created if a later step fails.
func (r *renderer) instances(label string, size int, gpuFn func() (multibuffer.GPUable, error)) ([]multibuffer.Mappable, multibuffer.GPUable, error) {
	if err := r.check(); err != nil {
		return nil, nil, err
	}
	if size <= 0 {
		return nil, nil, fmt.Errorf("%s: %w", label, multibuffer.ErrZeroSized)
	}

	cpu := make([]multibuffer.Mappable, 0, r.stagingInstances)
	release := func() {
		for _, c := range cpu {
			if rel, ok := c.(interface{ Release() }); ok {
				rel.Release()
			}
		}
	}
	for i := range r.stagingInstances {
		m, err := r.backend.CreateStaging(fmt.Sprintf("%s staging %d", label, i), size)
		if err != nil {
			release()
			return nil, nil, err
		}
		cpu = append(cpu, m)
	}
	gpu, err := gpuFn()
	if err != nil {
		release()
		return nil, nil, err
	}

	logging.Logger().Debug("renderer: resource created",
		"label", label,
		"size", units.HumanSize(float64(size)),
		"staging", len(cpu))
	return cpu, gpu, nil
}

func (r *renderer) check() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return nil
}

func (r *renderer) BeginFrame(ctx context.Context) (multibuffer.CopyContext, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.backend.BeginFrame(ctx)
}

func (r *renderer) EndFrame(cc multibuffer.CopyContext, submit bool) error {
	return r.backend.EndFrame(cc, submit)
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.mu.Unlock()
	r.backend.Release()
}
