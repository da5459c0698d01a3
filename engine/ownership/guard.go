package ownership

import "sync/atomic"

// guard is the shared part of every ticket.
type guard[R any] struct {
	tracker  *Tracker[R]
	released atomic.Bool
	hooks    []func()
}

// Resource returns the guarded resource. It must not be used after Release.
func (g *guard[R]) Resource() R {
	return g.tracker.resource
}

// Label returns the debug label of the tracker this ticket holds.
func (g *guard[R]) Label() string {
	return g.tracker.label
}

// OnRelease registers fn to run when the ticket is released, while the ticket
// still holds exclusive ownership. Hooks run in registration order.
//
// Parameters:
//   - fn: the hook to run
func (g *guard[R]) OnRelease(fn func()) {
	g.hooks = append(g.hooks, fn)
}

// Release runs the release hooks, returns the tracker to Unused and wakes
// anyone waiting for it. Only the first call has any effect.
func (g *guard[R]) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	for _, fn := range g.hooks {
		fn()
	}
	g.hooks = nil
	g.tracker.unlock()
}

// discard returns the tracker to Unused without running the release hooks.
func (g *guard[R]) discard() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.hooks = nil
	g.tracker.unlock()
}

// Released reports whether Release or Discard has been called.
func (g *guard[R]) Released() bool {
	return g.released.Load()
}

// CPUReadGuard is an exclusive CPU read ticket. Release it exactly once,
// normally with defer.
type CPUReadGuard[R any] struct {
	guard[R]
}

// CPUWriteGuard is an exclusive CPU write ticket. Release it exactly once,
// normally with defer.
type CPUWriteGuard[R any] struct {
	guard[R]
}

// Discard abandons the write: the tracker is freed like Release, but the
// release hooks do not run, so a pool does not publish the instance as the
// newest. Use it when the write failed part way. Only the first call to
// Release or Discard has any effect.
func (g *CPUWriteGuard[R]) Discard() {
	g.discard()
}

// GPUGuard is an exclusive GPU ticket. Its lifetime must span the backend
// operation that consumes the resource.
type GPUGuard[R any] struct {
	guard[R]
}
