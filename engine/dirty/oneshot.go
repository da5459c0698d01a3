package dirty

import (
	"context"
	"sync/atomic"
)

// OneShot is a single-use wake slot. It is fired at most once; every goroutine
// blocked in Wait is released when it fires.
//
// A slot that is abandoned while still pending must be dropped with Drop rather
// than forgotten: Drop fires the slot, so a waiter can never hang on a slot
// nobody will fire. Waiters must therefore treat a wakeup as "maybe changed"
// and re-check whatever condition they were waiting for.
type OneShot struct {
	fired atomic.Bool
	ch    chan struct{}
}

// NewOneShot creates an unfired wake slot.
//
// Returns:
//   - *OneShot: the new slot
func NewOneShot() *OneShot {
	return &OneShot{ch: make(chan struct{})}
}

// Fire wakes every waiter. Only the first call has any effect.
//
// Returns:
//   - bool: true if this call fired the slot, false if it had already fired
func (o *OneShot) Fire() bool {
	if !o.fired.CompareAndSwap(false, true) {
		return false
	}
	close(o.ch)
	return true
}

// Drop abandons the slot. A slot that has not fired yet fires now.
//
// Returns:
//   - bool: true if the drop released a pending waiter
func (o *OneShot) Drop() bool {
	return o.Fire()
}

// Fired reports whether the slot has fired.
func (o *OneShot) Fired() bool {
	return o.fired.Load()
}

// Done returns a channel that is closed once the slot fires.
func (o *OneShot) Done() <-chan struct{} {
	return o.ch
}

// Wait blocks until the slot fires or the context is done.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - error: nil once fired, otherwise the context's error
func (o *OneShot) Wait(ctx context.Context) error {
	select {
	case <-o.ch:
		return nil
	case <-ctx.Done():
		// A fire racing with cancellation still counts as a wakeup.
		if o.Fired() {
			return nil
		}
		return ctx.Err()
	}
}
