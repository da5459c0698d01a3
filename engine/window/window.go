// Package window provides the native window a WGPU renderer presents into.
// A framebuffer resize raises the window's Resized signal so a scheduler bound
// to it redraws at the new size.
package window

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window defines the interface for a platform window.
//
// Callbacks run on the goroutine executing Run, which must be the goroutine
// that created the window.
type Window interface {
	// SetResizeCallback sets the callback invoked with the new framebuffer size.
	// It runs before Resized is raised.
	//
	// Parameters:
	//   - callback: receives the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback invoked on vertical scroll.
	//
	// Parameters:
	//   - callback: receives the scroll delta
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback invoked when a key is pressed or repeats.
	// Escape always closes the window and is not forwarded.
	//
	// Parameters:
	//   - callback: receives the key code (see common.Key*)
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetDragCallback sets the callback invoked when the cursor moves while the
	// left mouse button is held.
	//
	// Parameters:
	//   - callback: receives the cursor movement since the last event in pixels
	SetDragCallback(callback func(dx, dy float32))

	// SurfaceDescriptor returns the descriptor a WGPU renderer creates its surface from.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size returns the current framebuffer size in pixels.
	Size() (width, height int)

	// Resized returns the signal raised on every framebuffer resize. Bind it to
	// a scheduler with scheduler.WithTriggers.
	Resized() *dirty.Sender

	// Run processes window events until the window is closed or ctx is done.
	//
	// Parameters:
	//   - ctx: cancels the event loop
	//
	// Returns:
	//   - error: ctx.Err() if ctx ended the loop, nil if the window was closed
	Run(ctx context.Context) error

	// Close destroys the window. Safe to call more than once.
	Close() error
}

type engineWindow struct {
	title string

	maxWidth  int
	maxHeight int
	minWidth  int
	minHeight int

	pollInterval float64

	mu     *sync.Mutex
	width  int
	height int

	resized *dirty.Sender

	internalWindow any

	onResize  func(width, height int)
	onScroll  func(delta float32)
	onKeyDown func(keyCode uint32)
	onDrag    func(dx, dy float32)
}

var _ Window = &engineWindow{}

// NewWindow creates a new platform window.
//
// Parameters:
//   - options: variadic list of WindowBuilderOption functions to configure the window
//
// Returns:
//   - Window: the new window
//   - error: an error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:        "oxy",
		maxWidth:     3840,
		maxHeight:    2160,
		minWidth:     320,
		minHeight:    200,
		width:        1280,
		height:       720,
		pollInterval: 0.01,
		mu:           &sync.Mutex{},
	}
	for _, opt := range options {
		opt(w)
	}
	w.resized = dirty.NewSender(false, common.Coalesce(w.title, "window")+" resize")

	if err := newPlatformWindow(w); err != nil {
		return nil, err
	}
	logging.Logger().Info("window: created", "title", w.title, "width", w.width, "height", w.height)
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *engineWindow) Resized() *dirty.Sender {
	return w.resized
}

func (w *engineWindow) Run(ctx context.Context) error {
	for platformIsRunningCheck(w) {
		if err := ctx.Err(); err != nil {
			return err
		}
		platformProcessMessages(w)
	}
	logging.Logger().Info("window: closed", "title", w.title)
	return nil
}

func (w *engineWindow) Close() error {
	w.resized.Close()
	return platformCloseWindow(w)
}

// resize records the new framebuffer size, runs the resize callback and
// raises the Resized signal.
func (w *engineWindow) resize(width, height int) {
	w.mu.Lock()
	w.width = width
	w.height = height
	w.mu.Unlock()

	if w.onResize != nil {
		w.onResize(width, height)
	}
	w.resized.Mark(true)
}
