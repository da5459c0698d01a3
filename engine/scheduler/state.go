package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
)

// State is the scheduler's position in its render cycle.
type State int32

const (
	// StateIdle means no frame is being produced.
	StateIdle State = iota
	// StateRendering means a frame is acquiring tickets or encoding.
	StateRendering
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRendering:
		return "Rendering"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrRunning is returned by Start when the scheduler's loop is already running.
var ErrRunning = errors.New("scheduler: already running")

// Frame is handed to the render function once every binding's GPU ticket is held.
type Frame struct {
	// Index counts frames produced by the scheduler, starting at 1.
	Index uint64
	// CopyContext is the backend frame state the staging copies were recorded into.
	CopyContext multibuffer.CopyContext

	tickets map[bind_target.BindTarget]bind_target.Ticket
}

// Ticket returns the held ticket for a binding. The render function
// type-asserts it to reach the backend resource, e.g. a GPU guard's Resource.
//
// Parameters:
//   - target: one of the scheduler's bindings
//
// Returns:
//   - bind_target.Ticket: the held ticket
//   - bool: false if target is not bound to this scheduler
func (f *Frame) Ticket(target bind_target.BindTarget) (bind_target.Ticket, bool) {
	t, ok := f.tickets[target]
	return t, ok
}

// RenderFunc encodes the backend work of one frame.
type RenderFunc func(ctx context.Context, frame *Frame) error

// FrameSource brackets a frame with backend state, typically a command
// encoder that staging copies and draw calls are recorded into.
type FrameSource interface {
	// BeginFrame starts a frame and returns the copy context for it.
	BeginFrame(ctx context.Context) (multibuffer.CopyContext, error)

	// EndFrame finishes the frame. When submit is false the recorded work is
	// discarded instead of submitted.
	EndFrame(cc multibuffer.CopyContext, submit bool) error
}
