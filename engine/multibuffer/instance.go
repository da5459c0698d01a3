package multibuffer

import "context"

// Mappable is the capability required of a CPU instance: host-visible memory
// that can be mapped for reading or writing. Every call may block.
type Mappable interface {
	// MapForRead maps the instance and returns its contents for reading.
	MapForRead(ctx context.Context) ([]byte, error)

	// MapForWrite maps the instance and returns its contents for writing.
	MapForWrite(ctx context.Context) ([]byte, error)

	// Unmap ends the current mapping. Slices returned by a map call must not
	// be used afterwards.
	Unmap() error

	// ByteLength returns the size of the instance in bytes.
	ByteLength() int
}

// CopyContext carries backend state for one round of staging copies, such as
// the frame being prepared. Backends define what it holds; it may be nil.
type CopyContext any

// GPUable is the capability required of the GPU instance: backend-resident
// memory that can be refreshed from a Mappable. It is owned by the pool.
type GPUable interface {
	// CopyFromMappable copies the full contents of src into this instance.
	// src is unmapped and exclusively held by the caller for the duration.
	CopyFromMappable(ctx context.Context, src Mappable, cc CopyContext) error

	// ByteLength returns the size of the instance in bytes.
	ByteLength() int

	// Release frees the backend resource.
	Release()
}

// releaser is implemented by CPU instances that own backend resources.
type releaser interface {
	Release()
}
