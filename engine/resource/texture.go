package resource

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

// Texture is a multibuffered RGBA8 texture.
type Texture struct {
	buf    *Buffer
	width  uint32
	height uint32
}

var _ bind_target.BindTarget = &Texture{}

// NewTexture creates a texture of the given dimensions over staging instances
// and a GPU instance sized width*height*4 bytes.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//   - cpu: the CPU staging instances
//   - gpu: the GPU texture instance
//   - options: pool options such as multibuffer.WithLabel
//
// Returns:
//   - *Texture: the new texture
//   - error: a construction error, or ErrTextureSize when the instances do not hold width*height texels
func NewTexture(width, height uint32, cpu []multibuffer.Mappable, gpu multibuffer.GPUable, options ...multibuffer.PoolBuilderOption) (*Texture, error) {
	want := common.TextureStagingData{Width: width, Height: height}.ByteLength()
	if want == 0 {
		return nil, fmt.Errorf("%dx%d texture: %w", width, height, multibuffer.ErrZeroSized)
	}
	b, err := newBuffer(bind_target.KindTexture, cpu, gpu, options...)
	if err != nil {
		return nil, err
	}
	if b.ByteLength() != want {
		b.Close()
		return nil, fmt.Errorf("%dx%d texture over %d byte instances: %w", width, height, b.ByteLength(), common.ErrTextureSize)
	}
	return &Texture{buf: b, width: width, height: height}, nil
}

func (t *Texture) Kind() bind_target.Kind { return bind_target.KindTexture }
func (t *Texture) Label() string          { return t.buf.Label() }

func (t *Texture) DirtyReceiver() (dirty.Receiver, bool) {
	return t.buf.DirtyReceiver()
}

func (t *Texture) AcquireGPU(ctx context.Context, cc multibuffer.CopyContext) (bind_target.Ticket, error) {
	return t.buf.AcquireGPU(ctx, cc)
}

// Size returns the texture dimensions in pixels.
func (t *Texture) Size() (width, height uint32) {
	return t.width, t.height
}

// Pool returns the underlying multibuffer.
func (t *Texture) Pool() *BufferPool {
	return t.buf.Pool()
}

// WritePixels replaces the texture contents.
//
// Parameters:
//   - ctx: the context bounding the wait for a free instance
//   - staging: pixel data with the texture's exact dimensions
//
// Returns:
//   - error: ErrTextureSize on a dimension mismatch, a mapping error, or the context's error
func (t *Texture) WritePixels(ctx context.Context, staging common.TextureStagingData) error {
	if err := staging.Validate(); err != nil {
		return err
	}
	if staging.Width != t.width || staging.Height != t.height {
		return fmt.Errorf("%s is %dx%d, got %dx%d: %w", t.Label(), t.width, t.height, staging.Width, staging.Height, common.ErrTextureSize)
	}
	return t.buf.Write(ctx, 0, staging.Pixels)
}

// WriteRow replaces a single row of texels, keeping the rest of the newest contents.
//
// Parameters:
//   - ctx: the context bounding the wait for a free instance
//   - y: the row index
//   - pixels: exactly one row of RGBA texels
//
// Returns:
//   - error: ErrOutOfRange, a mapping error, or the context's error
func (t *Texture) WriteRow(ctx context.Context, y uint32, pixels []byte) error {
	stride := int(t.width) * common.BytesPerPixel
	if y >= t.height || len(pixels) != stride {
		return fmt.Errorf("%s row %d with %d bytes: %w", t.Label(), y, len(pixels), ErrOutOfRange)
	}
	return t.buf.Write(ctx, int(y)*stride, pixels)
}

// Close releases the texture's instances.
func (t *Texture) Close() {
	t.buf.Close()
}
