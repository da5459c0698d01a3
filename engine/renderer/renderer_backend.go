package renderer

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeHeadless selects the host-memory backend. It needs no device
	// or window and is used by tests and offscreen tools.
	BackendTypeHeadless
)

// String returns the name of the backend type.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "WGPU"
	case BackendTypeHeadless:
		return "Headless"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// BufferUsage selects how a GPU buffer is bound.
type BufferUsage int

const (
	// BufferUsageUniform binds the buffer as a uniform buffer.
	BufferUsageUniform BufferUsage = iota
	// BufferUsageStorage binds the buffer as a storage buffer.
	BufferUsageStorage
)

// RendererBackend is the interface every backend implements. It creates the
// CPU staging instances and GPU instances that multibuffered resources are
// built from, and brackets frames with backend state.
type RendererBackend interface {
	// CreateStaging creates a CPU-visible staging instance.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//
	// Returns:
	//   - multibuffer.Mappable: the staging instance
	//   - error: an error if allocation fails
	CreateStaging(label string, size int) (multibuffer.Mappable, error)

	// CreateBuffer creates a GPU buffer instance.
	//
	// Parameters:
	//   - label: the debug label
	//   - size: the size in bytes
	//   - usage: how the buffer is bound
	//
	// Returns:
	//   - multibuffer.GPUable: the GPU instance
	//   - error: an error if buffer creation fails
	CreateBuffer(label string, size int, usage BufferUsage) (multibuffer.GPUable, error)

	// CreateTexture creates an RGBA8 GPU texture instance.
	//
	// Parameters:
	//   - label: the debug label
	//   - width: the width in pixels
	//   - height: the height in pixels
	//
	// Returns:
	//   - multibuffer.GPUable: the GPU instance
	//   - error: an error if texture creation fails
	CreateTexture(label string, width, height uint32) (multibuffer.GPUable, error)

	// CreateSampler creates a backend sampler object.
	//
	// Parameters:
	//   - label: the debug label
	//   - config: the sampler configuration
	//
	// Returns:
	//   - any: the backend handle (nil when the backend has none)
	//   - error: an error if sampler creation fails
	CreateSampler(label string, config common.SamplerStagingData) (any, error)

	// BeginFrame starts a frame and returns its copy context.
	BeginFrame(ctx context.Context) (multibuffer.CopyContext, error)

	// EndFrame submits (or discards) the frame started by BeginFrame.
	EndFrame(cc multibuffer.CopyContext, submit bool) error

	// ConfigureSurface is a wrapper for boilerplate logic required when the surface size changes,
	// such as when the window is resized.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Release frees the device and everything created from it.
	Release()
}
