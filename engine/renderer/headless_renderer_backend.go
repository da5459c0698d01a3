package renderer

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/renderer/headless"
)

// ErrForeignFrame is returned by EndFrame when given a copy context the backend did not create.
var ErrForeignFrame = errors.New("renderer: copy context was not created by this backend")

// headlessRendererBackendImpl keeps every instance in host memory.
type headlessRendererBackendImpl struct {
	frames    atomic.Uint64
	submitted atomic.Uint64
	discarded atomic.Uint64
}

var _ RendererBackend = &headlessRendererBackendImpl{}

func newHeadlessRendererBackend() *headlessRendererBackendImpl {
	return &headlessRendererBackendImpl{}
}

func (b *headlessRendererBackendImpl) CreateStaging(_ string, size int) (multibuffer.Mappable, error) {
	return headless.NewMemory(size), nil
}

func (b *headlessRendererBackendImpl) CreateBuffer(label string, size int, _ BufferUsage) (multibuffer.GPUable, error) {
	return headless.NewDevice(label, size), nil
}

func (b *headlessRendererBackendImpl) CreateTexture(label string, width, height uint32) (multibuffer.GPUable, error) {
	size := common.TextureStagingData{Width: width, Height: height}.ByteLength()
	return headless.NewDevice(label, size), nil
}

func (b *headlessRendererBackendImpl) CreateSampler(string, common.SamplerStagingData) (any, error) {
	return nil, nil
}

func (b *headlessRendererBackendImpl) BeginFrame(ctx context.Context) (multibuffer.CopyContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return headless.NewFrame(b.frames.Add(1)), nil
}

func (b *headlessRendererBackendImpl) EndFrame(cc multibuffer.CopyContext, submit bool) error {
	if _, ok := cc.(*headless.Frame); !ok {
		return ErrForeignFrame
	}
	if submit {
		b.submitted.Add(1)
	} else {
		b.discarded.Add(1)
	}
	return nil
}

func (b *headlessRendererBackendImpl) ConfigureSurface(int, int) {}

func (b *headlessRendererBackendImpl) SetPresentMode(PresentMode) {}

func (b *headlessRendererBackendImpl) Release() {}
