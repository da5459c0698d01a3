// Package dirty implements change notification between resource owners and
// the frame scheduler.
//
// A Sender owns a boolean "dirty" flag plus a single wake slot. Any number of
// Receivers observe the same shared state. An Aggregator gathers Receivers of
// many independently owned resources into one blocking wait that resolves as
// soon as any of them is dirty.
package dirty

import (
	"runtime"
	"sync"
)

// state is shared between a Sender and all of its Receivers.
type state struct {
	mu    sync.Mutex
	dirty bool
	slot  *OneShot
	label string
}

// register installs slot as this state's waiter unless the state is already dirty.
// A previously registered slot is replaced, and dropped so that its waiter is
// never left hanging.
func (st *state) register(slot *OneShot) bool {
	st.mu.Lock()
	if st.dirty {
		st.mu.Unlock()
		return true
	}
	old := st.slot
	st.slot = slot
	st.mu.Unlock()

	if old != nil && old != slot {
		old.Drop()
	}
	return false
}

// dropSlot fires and clears any registered slot without touching the flag.
func (st *state) dropSlot() {
	st.mu.Lock()
	slot := st.slot
	st.slot = nil
	st.mu.Unlock()

	if slot != nil {
		slot.Drop()
	}
}

// Sender is the owning half of a dirty signal. The owner of a resource marks it
// dirty whenever the CPU side holds data the GPU side has not seen yet.
type Sender struct {
	st      *state
	cleanup runtime.Cleanup
}

// NewSender creates a Sender with the given initial flag and diagnostic label.
//
// If the Sender becomes unreachable without Close being called, a pending wait
// registered on it is still released once the garbage collector reclaims it.
//
// Parameters:
//   - initial: the initial value of the dirty flag
//   - label: identity used in diagnostics (Receiver.DebugLabel, Aggregator.WhoIsDirty)
//
// Returns:
//   - *Sender: the new sender
func NewSender(initial bool, label string) *Sender {
	s := &Sender{st: &state{dirty: initial, label: label}}
	s.cleanup = runtime.AddCleanup(s, func(st *state) { st.dropSlot() }, s.st)
	return s
}

// Mark sets the dirty flag. Marking true consumes the registered wake slot, if
// any, and fires it. Marking is idempotent and visible to every later IsDirty call.
//
// Parameters:
//   - dirty: the new flag value
func (s *Sender) Mark(dirty bool) {
	s.st.mu.Lock()
	s.st.dirty = dirty
	var slot *OneShot
	if dirty {
		slot = s.st.slot
		s.st.slot = nil
	}
	s.st.mu.Unlock()

	if slot != nil {
		slot.Fire()
	}
}

// IsDirty returns a snapshot of the flag.
func (s *Sender) IsDirty() bool {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.dirty
}

// Label returns the diagnostic label.
func (s *Sender) Label() string {
	return s.st.label
}

// Receiver returns a new observing handle sharing this Sender's state.
func (s *Sender) Receiver() Receiver {
	return Receiver{st: s.st}
}

// Close releases any pending waiter without marking the signal dirty.
// The Sender remains usable; Close only guarantees nobody stays blocked on it.
func (s *Sender) Close() {
	s.cleanup.Stop()
	s.st.dropSlot()
}

// Receiver is an observing handle on a Sender's state. Receivers are small
// values; copies refer to the same state. Two Receivers compare equal (and hash
// equal as map keys) exactly when they observe the same Sender.
//
// All Receivers of one Sender share a single wake slot: registering a new wait
// replaces the previous one, and the replaced slot is fired rather than lost.
// A Sender should therefore be aggregated by one waiter at a time.
type Receiver struct {
	st *state
}

// NewReceiver creates an observing handle on the given Sender.
//
// Parameters:
//   - s: the sender to observe
//
// Returns:
//   - Receiver: the new receiver
func NewReceiver(s *Sender) Receiver {
	return s.Receiver()
}

// Valid reports whether the Receiver is attached to a Sender. The zero Receiver is not.
func (r Receiver) Valid() bool {
	return r.st != nil
}

// IsDirty returns a non-blocking snapshot of the shared flag.
func (r Receiver) IsDirty() bool {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return r.st.dirty
}

// DebugLabel returns the Sender's diagnostic label.
func (r Receiver) DebugLabel() string {
	return r.st.label
}

// Register installs slot as the shared waiter unless the signal is already
// dirty, in which case nothing is registered and true is returned. The check
// and the registration happen under the same lock, so a Mark(true) that
// happens after Register returns false always fires slot.
//
// Parameters:
//   - slot: the wake slot to install
//
// Returns:
//   - bool: true if the signal was already dirty
func (r Receiver) Register(slot *OneShot) bool {
	return r.st.register(slot)
}
