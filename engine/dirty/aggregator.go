package dirty

import "context"

// Aggregator waits for the first of many dirty signals. It is built for a
// single wait: gather the Receivers, call WaitForDirty, throw it away.
type Aggregator struct {
	receivers []Receiver
}

// NewAggregator creates an Aggregator over the given Receivers. Invalid (zero)
// Receivers are skipped.
//
// Parameters:
//   - receivers: the receivers to watch
//
// Returns:
//   - *Aggregator: the new aggregator
func NewAggregator(receivers []Receiver) *Aggregator {
	a := &Aggregator{receivers: make([]Receiver, 0, len(receivers))}
	for _, r := range receivers {
		if r.Valid() {
			a.receivers = append(a.receivers, r)
		}
	}
	return a
}

// Len returns the number of watched receivers.
func (a *Aggregator) Len() int {
	return len(a.receivers)
}

// IsDirty reports whether any receiver is currently dirty.
func (a *Aggregator) IsDirty() bool {
	for _, r := range a.receivers {
		if r.IsDirty() {
			return true
		}
	}
	return false
}

// WhoIsDirty lists the labels of the receivers that are currently dirty, in
// registration order. A receiver listed twice is reported once.
//
// Returns:
//   - []string: labels of dirty receivers
func (a *Aggregator) WhoIsDirty() []string {
	var labels []string
	seen := make(map[Receiver]struct{}, len(a.receivers))
	for _, r := range a.receivers {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		if r.IsDirty() {
			labels = append(labels, r.DebugLabel())
		}
	}
	return labels
}

// WaitForDirty blocks until any receiver is dirty.
//
// One wake slot is allocated and offered to each receiver in order. Under the
// receiver's own lock, a receiver that is already dirty ends the scan and the
// call returns immediately; otherwise the shared slot becomes that receiver's
// registered waiter and the scan moves on. Every receiver thus ends up pointing
// at the same slot. The first Mark(true) on any of them consumes the slot and
// wakes this call exactly once; later marks on the others find their slot
// already consumed or stale, which is harmless. The slot is dropped on every
// return, cancellation included, so no receiver is left holding a live slot
// for a waiter that has gone. The next wait replaces the stale registration.
//
// A wakeup can also come from a slot being dropped (its Sender was closed or
// collected, or another waiter replaced the registration), so callers should
// re-check IsDirty after the call returns. An Aggregator with no receivers
// waits until the context is done.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - error: nil on wakeup, otherwise the context's error
func (a *Aggregator) WaitForDirty(ctx context.Context) error {
	slot := NewOneShot()
	defer slot.Drop()
	for _, r := range a.receivers {
		if r.Register(slot) {
			return nil
		}
	}
	return slot.Wait(ctx)
}
