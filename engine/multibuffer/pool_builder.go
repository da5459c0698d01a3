package multibuffer

// PoolBuilderOption is a functional option applied to a pool during construction via NewPool.
type PoolBuilderOption func(*poolConfig)

type poolConfig struct {
	label    string
	staleGPU bool
}

// WithLabel sets the pool's debug label. It also labels the pool's dirty signal.
// Without it, a unique label is generated.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - PoolBuilderOption: a function that applies the label option to a pool
func WithLabel(label string) PoolBuilderOption {
	return func(c *poolConfig) {
		c.label = label
	}
}

// WithStaleGPU marks the first CPU instance as newer than the GPU instance, so
// the pool starts dirty and the first AccessGPU uploads the initial contents.
//
// Returns:
//   - PoolBuilderOption: a function that applies the option to a pool
func WithStaleGPU() PoolBuilderOption {
	return func(c *poolConfig) {
		c.staleGPU = true
	}
}
