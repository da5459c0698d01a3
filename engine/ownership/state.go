package ownership

import (
	"errors"
	"fmt"
)

// State is the occupancy of a Tracker.
type State int32

const (
	// StateUnused means no ticket is live; any acquisition may succeed.
	StateUnused State = iota
	// StateCPUReadLocked means a CPUReadGuard is live.
	StateCPUReadLocked
	// StateCPUWriteLocked means a CPUWriteGuard is live.
	StateCPUWriteLocked
	// StateGPULocked means a GPUGuard is live.
	StateGPULocked
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUnused:
		return "Unused"
	case StateCPUReadLocked:
		return "CPUReadLocked"
	case StateCPUWriteLocked:
		return "CPUWriteLocked"
	case StateGPULocked:
		return "GPULocked"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(s))
	}
}

// ErrBusy matches every BusyError via errors.Is.
var ErrBusy = errors.New("ownership: resource is busy")

// BusyError is returned by a failed acquisition. It carries the state that
// occupied the tracker at the time of the attempt. It is not fatal: callers
// decide whether to wait and retry.
type BusyError struct {
	State State
}

func (e *BusyError) Error() string {
	return "ownership: resource is busy (" + e.State.String() + ")"
}

// Is reports whether target is ErrBusy.
func (e *BusyError) Is(target error) bool {
	return target == ErrBusy
}
