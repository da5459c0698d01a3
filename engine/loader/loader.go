// Package loader decodes images into multibuffered textures and optionally
// keeps them in sync with their files on disk.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/resource"
	"github.com/fsnotify/fsnotify"
)

var (
	// ErrNotWatching is returned by Watch when the loader was built without WithWatch.
	ErrNotWatching = errors.New("loader: watching is disabled")
	// ErrUnknownTexture is returned by Reload for a name that was never loaded.
	ErrUnknownTexture = errors.New("loader: unknown texture")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("loader: closed")
)

// TextureFactory creates textures from decoded pixels. renderer.Renderer implements it.
type TextureFactory interface {
	NewTexture(ctx context.Context, label string, staging common.TextureStagingData) (*resource.Texture, error)
}

// entry is a loaded texture and the source it came from.
type entry struct {
	source  common.ImageSource
	texture *resource.Texture
}

type loader struct {
	mu sync.RWMutex

	factory  TextureFactory
	textures map[string]*entry
	// byPath maps cleaned absolute file paths to texture names.
	byPath map[string]string

	watch    bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	closed   bool
}

// TextureLoader loads images into textures, caching them by name.
type TextureLoader interface {
	// Load decodes src and creates a texture for it. Loading a name twice
	// returns the cached texture.
	//
	// Parameters:
	//   - ctx: bounds the initial upload
	//   - src: the image; its Name, or else its Path, is the cache key
	//
	// Returns:
	//   - *resource.Texture: the texture
	//   - error: a decode, factory or watch error
	Load(ctx context.Context, src common.ImageSource) (*resource.Texture, error)

	// Get returns the cached texture for name, or nil.
	Get(name string) *resource.Texture

	// Textures returns a snapshot of the cache keyed by name.
	Textures() map[string]*resource.Texture

	// Reload re-decodes the named texture's source and writes the pixels into
	// the existing texture. The image must keep its dimensions.
	//
	// Parameters:
	//   - ctx: bounds the wait for a free staging instance
	//   - name: the cache key
	//
	// Returns:
	//   - error: ErrUnknownTexture, a decode error or common.ErrTextureSize
	Reload(ctx context.Context, name string) error

	// Watch reloads textures whose files change until ctx is done. Failed
	// reloads are logged and the previous contents stay.
	//
	// Returns:
	//   - error: ErrNotWatching without WithWatch, otherwise nil when ctx ends
	Watch(ctx context.Context) error

	// Close stops watching and closes every cached texture.
	Close() error
}

var _ TextureLoader = &loader{}

// NewTextureLoader creates a TextureLoader.
//
// Parameters:
//   - factory: creates the textures, usually the renderer
//   - options: functional options such as WithWatch
//
// Returns:
//   - TextureLoader: the new loader
//   - error: an error if the file watcher cannot be created
func NewTextureLoader(factory TextureFactory, options ...LoaderBuilderOption) (TextureLoader, error) {
	l := &loader{
		factory:  factory,
		textures: make(map[string]*entry),
		byPath:   make(map[string]string),
		debounce: 10 * time.Millisecond,
	}
	for _, option := range options {
		option(l)
	}
	if l.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("loader: create watcher: %w", err)
		}
		l.watcher = w
	}
	return l, nil
}

func (l *loader) Load(ctx context.Context, src common.ImageSource) (*resource.Texture, error) {
	name := common.Coalesce(src.Name, src.Path)
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrClosed
	}
	if cached, ok := l.textures[name]; ok {
		l.mu.RUnlock()
		return cached.texture, nil
	}
	l.mu.RUnlock()

	staging, err := src.Decode()
	if err != nil {
		return nil, err
	}
	tex, err := l.factory.NewTexture(ctx, common.LabelOr(name, "texture"), staging)
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.textures[name]; ok {
		// Lost a race with a concurrent Load of the same name.
		tex.Close()
		return cached.texture, nil
	}
	if l.watcher != nil && src.Path != "" && len(src.Data) == 0 {
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			tex.Close()
			return nil, err
		}
		// Watch the directory: editors replace files by rename, which drops a file watch.
		if err := l.watcher.Add(filepath.Dir(abs)); err != nil {
			tex.Close()
			return nil, fmt.Errorf("loader: watch %s: %w", src.Path, err)
		}
		l.byPath[abs] = name
	}
	l.textures[name] = &entry{source: src, texture: tex}
	logging.Logger().Debug("loader: texture loaded", "name", name, "width", staging.Width, "height", staging.Height)
	return tex, nil
}

func (l *loader) Get(name string) *resource.Texture {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.textures[name]; ok {
		return e.texture
	}
	return nil
}

func (l *loader) Textures() map[string]*resource.Texture {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]*resource.Texture, len(l.textures))
	for name, e := range l.textures {
		out[name] = e.texture
	}
	return out
}

func (l *loader) Reload(ctx context.Context, name string) error {
	l.mu.RLock()
	e, ok := l.textures[name]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownTexture)
	}
	staging, err := e.source.Decode()
	if err != nil {
		return err
	}
	if err := e.texture.WritePixels(ctx, staging); err != nil {
		return err
	}
	logging.Logger().Info("loader: texture reloaded", "name", name)
	return nil
}

func (l *loader) Watch(ctx context.Context) error {
	if l.watcher == nil {
		return ErrNotWatching
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(l.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-l.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			l.mu.RLock()
			name, watched := l.byPath[filepath.Clean(event.Name)]
			l.mu.RUnlock()
			if !watched {
				continue
			}
			// Wait for the burst to settle so a half-written file is not decoded.
			pending[name] = struct{}{}
			timer.Reset(l.debounce)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger().Warn("loader: watcher error", "error", err)
		case <-timer.C:
			for name := range pending {
				if err := l.Reload(ctx, name); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logging.Logger().Warn("loader: reload failed", "name", name, "error", err)
				}
				delete(pending, name)
			}
		}
	}
}

func (l *loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	var err error
	if l.watcher != nil {
		err = l.watcher.Close()
	}
	for _, e := range l.textures {
		e.texture.Close()
	}
	return err
}
