package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackend selects the backend implementation. The default is BackendTypeWGPU.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(t RendererBackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = t
	}
}

// WithSurfaceDescriptor sets the platform surface the WGPU backend presents to,
// typically obtained from Window.SurfaceDescriptor(). Without it the WGPU
// backend renders offscreen.
//
// Parameters:
//   - desc: the platform-specific surface descriptor
//   - width: the initial surface width in pixels
//   - height: the initial surface height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor, width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.surfaceDescriptor = desc
		r.surfaceWidth = width
		r.surfaceHeight = height
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithStagingInstances sets how many CPU staging instances back each buffer
// and texture. Values < 1 are treated as the default of 3.
//
// Parameters:
//   - n: the number of staging instances per resource
//
// Returns:
//   - RendererBuilderOption: a function that applies the staging option to a renderer
func WithStagingInstances(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n < 1 {
			n = defaultStagingInstances
		}
		r.stagingInstances = n
	}
}
