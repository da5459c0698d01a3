// Package ownership provides the single-owner state machine that guards every
// resource instance shared between CPU producers and the GPU consumer.
//
// A Tracker wraps one resource value. At most one ticket (CPUReadGuard,
// CPUWriteGuard or GPUGuard) over a tracker is live at any time. Acquisition
// never blocks: it either flips the state from Unused with a compare-and-swap
// or reports the occupying state as a BusyError. Blocking is layered on top by
// callers through NotifyOnRelease.
package ownership

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
)

// Tracker owns one resource instance and arbitrates exclusive access to it.
// The zero value is not usable; create trackers with NewTracker.
type Tracker[R any] struct {
	state    atomic.Int32
	resource R
	label    string

	// waiters are fired, all of them, by the next release.
	mu      sync.Mutex
	waiters []*dirty.OneShot
}

// NewTracker wraps a resource in an Unused tracker.
//
// Parameters:
//   - resource: the resource instance to guard
//   - label: a debug label for diagnostics
//
// Returns:
//   - *Tracker[R]: the new tracker
func NewTracker[R any](resource R, label string) *Tracker[R] {
	return &Tracker[R]{resource: resource, label: label}
}

// Label returns the debug label.
func (t *Tracker[R]) Label() string {
	return t.label
}

// Resource returns the wrapped resource without taking a ticket. It is meant
// for the owner tearing the resource down; all other access goes through a ticket.
func (t *Tracker[R]) Resource() R {
	return t.resource
}

// State returns a snapshot of the current occupancy.
func (t *Tracker[R]) State() State {
	return State(t.state.Load())
}

// TryCPURead attempts to take a CPU read ticket.
// The caller must not already hold a ticket on this tracker.
//
// Returns:
//   - *CPUReadGuard[R]: the ticket on success
//   - error: a *BusyError carrying the occupying state on failure
func (t *Tracker[R]) TryCPURead() (*CPUReadGuard[R], error) {
	if err := t.lock(StateCPUReadLocked); err != nil {
		return nil, err
	}
	return &CPUReadGuard[R]{guard: guard[R]{tracker: t}}, nil
}

// TryCPUWrite attempts to take a CPU write ticket.
// The caller must not already hold a ticket on this tracker.
//
// Returns:
//   - *CPUWriteGuard[R]: the ticket on success
//   - error: a *BusyError carrying the occupying state on failure
func (t *Tracker[R]) TryCPUWrite() (*CPUWriteGuard[R], error) {
	if err := t.lock(StateCPUWriteLocked); err != nil {
		return nil, err
	}
	return &CPUWriteGuard[R]{guard: guard[R]{tracker: t}}, nil
}

// TryGPU attempts to take a GPU ticket.
// The caller must not already hold a ticket on this tracker.
//
// Returns:
//   - *GPUGuard[R]: the ticket on success
//   - error: a *BusyError carrying the occupying state on failure
func (t *Tracker[R]) TryGPU() (*GPUGuard[R], error) {
	if err := t.lock(StateGPULocked); err != nil {
		return nil, err
	}
	return &GPUGuard[R]{guard: guard[R]{tracker: t}}, nil
}

// NotifyOnRelease registers slot to be fired by the next release of this
// tracker. If the tracker is Unused once the slot is registered, the slot is
// fired immediately, so a registration can never miss a release that raced with it.
//
// Parameters:
//   - slot: the wake slot to fire
func (t *Tracker[R]) NotifyOnRelease(slot *dirty.OneShot) {
	t.mu.Lock()
	// Drop slots that already fired through another tracker.
	live := t.waiters[:0]
	for _, w := range t.waiters {
		if !w.Fired() {
			live = append(live, w)
		}
	}
	t.waiters = append(live, slot)
	t.mu.Unlock()

	if t.State() == StateUnused {
		slot.Fire()
	}
}

func (t *Tracker[R]) lock(to State) error {
	for {
		cur := t.state.Load()
		if State(cur) != StateUnused {
			return &BusyError{State: State(cur)}
		}
		if t.state.CompareAndSwap(cur, int32(to)) {
			return nil
		}
	}
}

// WakeWaiters fires every registered waiter without changing the state. Owners
// use it on shutdown so blocked acquirers can observe that they should give up.
func (t *Tracker[R]) WakeWaiters() {
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, w := range waiters {
		w.Fire()
	}
}

// unlock returns the tracker to Unused and fires every registered waiter.
func (t *Tracker[R]) unlock() {
	t.state.Store(int32(StateUnused))
	t.WakeWaiters()
}
