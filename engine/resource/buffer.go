// Package resource provides the concrete bind targets a render pass binds:
// multibuffered buffers and textures, GPU-only static resources and samplers.
package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/ownership"
)

// ErrOutOfRange is returned by writes that do not fit inside the resource.
var ErrOutOfRange = errors.New("resource: write out of range")

// BufferPool is the pool type behind multibuffered resources.
type BufferPool = multibuffer.Pool[multibuffer.Mappable, multibuffer.GPUable]

// Buffer is a multibuffered uniform or storage buffer.
type Buffer struct {
	pool *BufferPool
	kind bind_target.Kind
}

var _ bind_target.BindTarget = &Buffer{}

// NewBuffer creates a buffer over the given staging instances and GPU instance.
//
// Parameters:
//   - cpu: the CPU staging instances, at least one
//   - gpu: the GPU instance
//   - options: pool options such as multibuffer.WithLabel
//
// Returns:
//   - *Buffer: the new buffer
//   - error: a construction error from the pool
func NewBuffer(cpu []multibuffer.Mappable, gpu multibuffer.GPUable, options ...multibuffer.PoolBuilderOption) (*Buffer, error) {
	return newBuffer(bind_target.KindBuffer, cpu, gpu, options...)
}

// NewCameraBuffer is NewBuffer for a camera uniform; it reports KindCamera.
func NewCameraBuffer(cpu []multibuffer.Mappable, gpu multibuffer.GPUable, options ...multibuffer.PoolBuilderOption) (*Buffer, error) {
	return newBuffer(bind_target.KindCamera, cpu, gpu, options...)
}

func newBuffer(kind bind_target.Kind, cpu []multibuffer.Mappable, gpu multibuffer.GPUable, options ...multibuffer.PoolBuilderOption) (*Buffer, error) {
	p, err := multibuffer.NewPool(cpu, gpu, options...)
	if err != nil {
		return nil, err
	}
	return &Buffer{pool: p, kind: kind}, nil
}

func (b *Buffer) Kind() bind_target.Kind { return b.kind }
func (b *Buffer) Label() string          { return b.pool.Label() }

func (b *Buffer) DirtyReceiver() (dirty.Receiver, bool) {
	return b.pool.DirtyReceiver(), true
}

func (b *Buffer) AcquireGPU(ctx context.Context, cc multibuffer.CopyContext) (bind_target.Ticket, error) {
	g, err := b.pool.AccessGPU(ctx, cc)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Pool returns the underlying multibuffer for direct ticket access.
func (b *Buffer) Pool() *BufferPool {
	return b.pool
}

// ByteLength returns the buffer size.
func (b *Buffer) ByteLength() int {
	return b.pool.ByteLength()
}

// Write stores data at offset. A write covering the whole buffer goes straight
// into a free instance; a partial write first carries the newest contents
// forward so bytes outside the written range are preserved.
//
// Parameters:
//   - ctx: the context bounding the wait for a free instance
//   - offset: the byte offset to write at
//   - data: the bytes to write
//
// Returns:
//   - error: ErrOutOfRange, a mapping error, or the context's error
func (b *Buffer) Write(ctx context.Context, offset int, data []byte) error {
	size := b.pool.ByteLength()
	if offset < 0 || offset+len(data) > size {
		return fmt.Errorf("%s: %d bytes at offset %d into %d: %w", b.Label(), len(data), offset, size, ErrOutOfRange)
	}

	if offset == 0 && len(data) == size {
		w, err := b.pool.AccessWrite(ctx)
		if err != nil {
			return err
		}
		written, err := writeMapped(ctx, w.Resource(), nil, offset, data)
		finishWrite(w, written)
		return err
	}

	w, prev, err := b.pool.AccessWriteWithLatest(ctx)
	if err != nil {
		return err
	}
	var src multibuffer.Mappable
	if prev != nil {
		defer prev.Release()
		src = prev.Resource()
	}
	written, err := writeMapped(ctx, w.Resource(), src, offset, data)
	finishWrite(w, written)
	return err
}

// finishWrite publishes the instance when data reached it and discards the
// ticket otherwise, so a failed write never replaces the newest contents.
func finishWrite(w *ownership.CPUWriteGuard[multibuffer.Mappable], written bool) {
	if written {
		w.Release()
		return
	}
	w.Discard()
}

// Read returns a copy of the newest contents written to the buffer, waiting
// while the newest instance is held by someone else.
//
// Parameters:
//   - ctx: the context bounding the wait for the instance
//
// Returns:
//   - []byte: the contents
//   - error: a mapping error or the context's error
func (b *Buffer) Read(ctx context.Context) ([]byte, error) {
	r, err := b.pool.AccessReadLatest(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Release()
	m := r.Resource()
	src, err := m.MapForRead(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), src...)
	return out, m.Unmap()
}

// Close releases the buffer's instances.
func (b *Buffer) Close() {
	b.pool.Close()
}

// writeMapped maps dst, optionally seeds it with prev's contents and copies
// data in at offset. written reports whether data reached dst; it can be true
// alongside an Unmap error.
func writeMapped(ctx context.Context, dst, prev multibuffer.Mappable, offset int, data []byte) (written bool, err error) {
	out, err := dst.MapForWrite(ctx)
	if err != nil {
		return false, err
	}
	if prev != nil {
		in, err := prev.MapForRead(ctx)
		if err != nil {
			_ = dst.Unmap()
			return false, err
		}
		copy(out, in)
		if err := prev.Unmap(); err != nil {
			_ = dst.Unmap()
			return false, err
		}
	}
	copy(out[offset:], data)
	return true, dst.Unmap()
}
