package resource

import (
	"context"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/multibuffer"
	"github.com/Carmen-Shannon/oxy-sync/engine/ownership"
)

// Static is a GPU-only resource written once at creation, such as a mesh or a
// lookup table. It never becomes dirty, but its GPU ticket is still exclusive.
type Static[R any] struct {
	tracker *ownership.Tracker[R]
}

var _ bind_target.BindTarget = &Static[int]{}

// NewStatic wraps value as a static bind target.
//
// Parameters:
//   - label: the debug label; a unique one is generated when empty
//   - value: the backend resource
//
// Returns:
//   - *Static[R]: the new static resource
func NewStatic[R any](label string, value R) *Static[R] {
	return &Static[R]{tracker: ownership.NewTracker(value, common.LabelOr(label, "static"))}
}

func (s *Static[R]) Kind() bind_target.Kind { return bind_target.KindStatic }
func (s *Static[R]) Label() string          { return s.tracker.Label() }

func (s *Static[R]) DirtyReceiver() (dirty.Receiver, bool) {
	return dirty.Receiver{}, false
}

// AcquireGPU waits for the resource's GPU ticket. There is never anything to copy.
func (s *Static[R]) AcquireGPU(ctx context.Context, _ multibuffer.CopyContext) (bind_target.Ticket, error) {
	for {
		g, err := s.tracker.TryGPU()
		if err == nil {
			return g, nil
		}
		slot := dirty.NewOneShot()
		s.tracker.NotifyOnRelease(slot)
		if err := slot.Wait(ctx); err != nil {
			return nil, err
		}
	}
}

// Value returns the wrapped resource.
func (s *Static[R]) Value() R {
	return s.tracker.Resource()
}
