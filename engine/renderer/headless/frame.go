package headless

import "sync"

// Copy records one staging copy performed during a frame.
type Copy struct {
	Label string
	Bytes int
}

// Frame is the copy context of a headless frame. Copies from concurrent
// acquisitions are recorded in completion order.
type Frame struct {
	Index uint64

	mu     sync.Mutex
	copies []Copy
}

// NewFrame creates an empty frame record.
func NewFrame(index uint64) *Frame {
	return &Frame{Index: index}
}

func (f *Frame) record(label string, n int) {
	f.mu.Lock()
	f.copies = append(f.copies, Copy{Label: label, Bytes: n})
	f.mu.Unlock()
}

// Copies returns the copies recorded so far.
func (f *Frame) Copies() []Copy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Copy(nil), f.copies...)
}
