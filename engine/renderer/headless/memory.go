// Package headless provides host-memory resource instances for running the
// engine without a graphics device. Staging instances are plain byte slices
// with map bookkeeping; "GPU" instances are byte slices refreshed by copy.
package headless

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

var (
	// ErrAlreadyMapped is returned when mapping an instance that is already mapped.
	ErrAlreadyMapped = errors.New("headless: instance is already mapped")

	// ErrNotMapped is returned by Unmap on an instance that is not mapped.
	ErrNotMapped = errors.New("headless: instance is not mapped")

	// ErrReleased is returned when using an instance after Release.
	ErrReleased = errors.New("headless: instance was released")
)

// Memory is a host-memory staging instance implementing multibuffer.Mappable.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	mapped   bool
	released bool
}

var _ multibuffer.Mappable = &Memory{}

// NewMemory creates a zeroed staging instance of the given size.
//
// Parameters:
//   - size: the size in bytes
//
// Returns:
//   - *Memory: the new instance
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, max(size, 0))}
}

func (m *Memory) MapForRead(ctx context.Context) ([]byte, error) {
	return m.mapRange(ctx)
}

func (m *Memory) MapForWrite(ctx context.Context) ([]byte, error) {
	return m.mapRange(ctx)
}

func (m *Memory) mapRange(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.released:
		return nil, ErrReleased
	case m.mapped:
		return nil, ErrAlreadyMapped
	}
	m.mapped = true
	return m.data, nil
}

func (m *Memory) Unmap() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mapped {
		return ErrNotMapped
	}
	m.mapped = false
	return nil
}

func (m *Memory) ByteLength() int {
	return len(m.data)
}

// Release drops the backing memory.
func (m *Memory) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = true
	m.data = nil
}

// Device is a host-memory GPU instance implementing multibuffer.GPUable.
type Device struct {
	label    string
	mu       sync.Mutex
	data     []byte
	copies   atomic.Uint64
	released atomic.Bool
}

var _ multibuffer.GPUable = &Device{}

// NewDevice creates a zeroed GPU instance of the given size.
//
// Parameters:
//   - label: the debug label recorded in frames
//   - size: the size in bytes
//
// Returns:
//   - *Device: the new instance
func NewDevice(label string, size int) *Device {
	return &Device{label: label, data: make([]byte, max(size, 0))}
}

// CopyFromMappable copies src into the instance. When cc is a *Frame the
// copy is recorded on it.
func (d *Device) CopyFromMappable(ctx context.Context, src multibuffer.Mappable, cc multibuffer.CopyContext) error {
	if d.released.Load() {
		return ErrReleased
	}
	b, err := src.MapForRead(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	n := copy(d.data, b)
	d.mu.Unlock()
	if err := src.Unmap(); err != nil {
		return err
	}
	d.copies.Add(1)
	if f, ok := cc.(*Frame); ok {
		f.record(d.label, n)
	}
	return nil
}

func (d *Device) ByteLength() int {
	return len(d.data)
}

func (d *Device) Release() {
	d.released.Store(true)
}

// Label returns the debug label.
func (d *Device) Label() string {
	return d.label
}

// Bytes returns a copy of the instance's current contents.
func (d *Device) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.data...)
}

// Copies returns how many copies have landed in the instance.
func (d *Device) Copies() uint64 {
	return d.copies.Load()
}

// Released reports whether Release was called.
func (d *Device) Released() bool {
	return d.released.Load()
}
