package multibuffer

import "errors"

// Construction and lifecycle errors.
var (
	// ErrNoInstances is returned when a pool is created without CPU instances.
	ErrNoInstances = errors.New("multibuffer: at least one CPU instance is required")

	// ErrNilInstance is returned when a CPU or GPU instance is nil.
	ErrNilInstance = errors.New("multibuffer: instance is nil")

	// ErrZeroSized is returned when an instance reports a byte length of zero or less.
	ErrZeroSized = errors.New("multibuffer: instance has zero size")

	// ErrSizeMismatch is returned when instances of one pool differ in size.
	ErrSizeMismatch = errors.New("multibuffer: instance sizes differ")

	// ErrClosed is returned by acquisitions on a closed pool.
	ErrClosed = errors.New("multibuffer: pool is closed")
)

// CopyError reports a failed staging copy into the GPU instance. The pool
// stays dirty, so the next AccessGPU retries the copy.
type CopyError struct {
	// Label is the pool's debug label.
	Label string
	// Err is the backend error.
	Err error
}

func (e *CopyError) Error() string {
	return "multibuffer: copy into " + e.Label + " failed: " + e.Err.Error()
}

func (e *CopyError) Unwrap() error {
	return e.Err
}
