package loader

import "time"

// LoaderBuilderOption is a functional option for configuring a TextureLoader via NewTextureLoader.
type LoaderBuilderOption func(*loader)

// WithWatch enables hot reload: textures loaded from disk are re-decoded and
// rewritten whenever their file changes while Watch runs.
//
// Parameters:
//   - enabled: whether to watch loaded files
//
// Returns:
//   - LoaderBuilderOption: a function that applies the watch option to a loader
func WithWatch(enabled bool) LoaderBuilderOption {
	return func(l *loader) {
		l.watch = enabled
	}
}

// WithDebounce sets how long the watcher waits for a burst of file events to
// settle before reloading. Defaults to 10ms.
func WithDebounce(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.debounce = d
	}
}
