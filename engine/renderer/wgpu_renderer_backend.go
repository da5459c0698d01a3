package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer/headless"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrFrameInFlight is returned by BeginFrame while the previous frame's surface texture is still held.
var ErrFrameInFlight = errors.New("renderer: previous frame surface not yet presented")

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	clearColor    wgpu.Color

	// frame is the frame between BeginFrame and EndFrame, if any.
	frame *WGPUFrame
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// WGPUFrame is the copy context of a WGPU frame. Render functions encode
// their passes into Encoder; View is the swapchain view, nil when rendering offscreen.
type WGPUFrame struct {
	Encoder *wgpu.CommandEncoder
	View    *wgpu.TextureView

	backend *wgpuRendererBackendImpl
	surface *wgpu.Texture
}

// ClearPass encodes a render pass that clears the swapchain view to color.
// It does nothing when the frame has no view.
//
// Parameters:
//   - color: the clear color
func (f *WGPUFrame) ClearPass(color wgpu.Color) {
	if f.View == nil {
		return
	}
	pass := f.Encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       f.View,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: color,
			},
		},
	})
	pass.End()
}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		clearColor:  wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
	}
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		w.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

// CreateStaging keeps staging instances in host memory; CopyFromMappable
// hands their bytes to the queue, which performs the upload before the next submit.
func (b *wgpuRendererBackendImpl) CreateStaging(_ string, size int) (multibuffer.Mappable, error) {
	return headless.NewMemory(size), nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, size int, usage BufferUsage) (multibuffer.GPUable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	flags := wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	if usage == BufferUsageStorage {
		flags = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	}
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " Buffer",
		Size:  uint64(size),
		Usage: flags,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuBuffer{backend: b, buffer: buf, size: size}, nil
}

func (b *wgpuRendererBackendImpl) CreateTexture(label string, width, height uint32) (multibuffer.GPUable, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label + " Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &wgpuTexture{backend: b, texture: tex, view: view, width: width, height: height}, nil
}

func (b *wgpuRendererBackendImpl) CreateSampler(label string, config common.SamplerStagingData) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label + " Sampler",
		AddressModeU:  common.Coalesce(config.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(config.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(config.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(config.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(config.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(config.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(config.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(config.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(config.MaxAnisotropy, 1),
		Compare:       config.Compare,
	})
	if err != nil {
		return nil, err
	}
	return samp, nil
}

func (b *wgpuRendererBackendImpl) BeginFrame(ctx context.Context) (multibuffer.CopyContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frame != nil {
		return nil, ErrFrameInFlight
	}

	f := &WGPUFrame{backend: b}
	if b.surface != nil {
		surfaceTexture, err := b.surface.GetCurrentTexture()
		if err != nil {
			return nil, err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return nil, err
		}
		f.surface = surfaceTexture
		f.View = view
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		f.release()
		return nil, err
	}
	f.Encoder = encoder
	b.frame = f
	return f, nil
}

func (b *wgpuRendererBackendImpl) EndFrame(cc multibuffer.CopyContext, submit bool) error {
	f, ok := cc.(*WGPUFrame)
	if !ok || f.backend != b {
		return ErrForeignFrame
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	defer func() {
		f.release()
		b.frame = nil
	}()

	if !submit {
		return nil
	}
	commandBuffer, err := f.Encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	if f.surface != nil {
		b.surface.Present()
	}
	return nil
}

// release frees the frame's encoder and swapchain references.
func (f *WGPUFrame) release() {
	if f.Encoder != nil {
		f.Encoder.Release()
		f.Encoder = nil
	}
	if f.View != nil {
		f.View.Release()
		f.View = nil
	}
	if f.surface != nil {
		f.surface.Release()
		f.surface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// wgpuBuffer is a GPU buffer instance refreshed through the queue.
//
// Queue writes are not part of the frame's encoder: they land on the device
// even when the frame is discarded. The pool treats the copy as done either
// way, so device contents and pool state stay in agreement.
type wgpuBuffer struct {
	backend *wgpuRendererBackendImpl
	buffer  *wgpu.Buffer
	size    int
}

var _ multibuffer.GPUable = &wgpuBuffer{}

func (g *wgpuBuffer) CopyFromMappable(ctx context.Context, src multibuffer.Mappable, _ multibuffer.CopyContext) error {
	data, err := src.MapForRead(ctx)
	if err != nil {
		return err
	}
	g.backend.mu.Lock()
	g.backend.queue.WriteBuffer(g.buffer, 0, data)
	g.backend.mu.Unlock()
	return src.Unmap()
}

func (g *wgpuBuffer) ByteLength() int {
	return g.size
}

func (g *wgpuBuffer) Release() {
	g.buffer.Release()
}

// Buffer returns the underlying GPU buffer for binding.
func (g *wgpuBuffer) Buffer() *wgpu.Buffer {
	return g.buffer
}

// wgpuTexture is an RGBA8 GPU texture instance refreshed through the queue.
// Like wgpuBuffer, its uploads persist when the frame is discarded.
type wgpuTexture struct {
	backend *wgpuRendererBackendImpl
	texture *wgpu.Texture
	view    *wgpu.TextureView
	width   uint32
	height  uint32
}

var _ multibuffer.GPUable = &wgpuTexture{}

func (g *wgpuTexture) CopyFromMappable(ctx context.Context, src multibuffer.Mappable, _ multibuffer.CopyContext) error {
	data, err := src.MapForRead(ctx)
	if err != nil {
		return err
	}
	g.backend.mu.Lock()
	g.backend.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  g.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  g.width * common.BytesPerPixel,
			RowsPerImage: g.height,
		},
		&wgpu.Extent3D{
			Width:              g.width,
			Height:             g.height,
			DepthOrArrayLayers: 1,
		},
	)
	g.backend.mu.Unlock()
	return src.Unmap()
}

func (g *wgpuTexture) ByteLength() int {
	return int(g.width) * int(g.height) * common.BytesPerPixel
}

func (g *wgpuTexture) Release() {
	g.view.Release()
	g.texture.Release()
}

// View returns the texture view for binding.
func (g *wgpuTexture) View() *wgpu.TextureView {
	return g.view
}
