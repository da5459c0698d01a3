// Package multibuffer implements a pool of interchangeable CPU instances
// feeding one GPU instance.
//
// CPU producers write into whichever instance is free, so they rarely wait on
// the GPU. The pool remembers which instance holds the newest contents and,
// when the GPU side asks for its instance, copies that newest contents across
// first if the GPU copy is stale. A dirty signal reports staleness so a frame
// scheduler can sleep until there is something new to draw.
package multibuffer

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/ownership"
	"github.com/docker/go-units"
)

// Stats holds running counters for a pool.
type Stats struct {
	// Writes counts released CPU write tickets.
	Writes uint64
	// Copies counts successful copies into the GPU instance.
	Copies uint64
	// Waits counts acquisitions that had to block.
	Waits uint64
}

// Pool is a multibuffer: N CPU instances of type C and one GPU instance of type G,
// each guarded by its own ownership tracker.
type Pool[C Mappable, G GPUable] struct {
	label      string
	byteLength int
	cpu        []*ownership.Tracker[C]
	gpu        *ownership.Tracker[G]
	sender     *dirty.Sender

	mu        sync.Mutex
	latest    int
	writeGen  uint64
	copiedGen uint64
	closed    bool
	stats     Stats
}

// NewPool creates a pool over the given CPU instances and GPU instance. All
// instances must be non-nil, non-empty and of equal byte length. The pool takes
// ownership of the instances and releases them on Close.
//
// Parameters:
//   - cpuInstances: the CPU side instances, at least one
//   - gpuInstance: the GPU side instance
//   - options: variadic list of PoolBuilderOption functions to configure the pool
//
// Returns:
//   - *Pool[C, G]: the new pool, clean unless WithStaleGPU was given
//   - error: ErrNoInstances, ErrNilInstance, ErrZeroSized or ErrSizeMismatch
func NewPool[C Mappable, G GPUable](cpuInstances []C, gpuInstance G, options ...PoolBuilderOption) (*Pool[C, G], error) {
	cfg := &poolConfig{}
	for _, opt := range options {
		opt(cfg)
	}

	if len(cpuInstances) == 0 {
		return nil, ErrNoInstances
	}
	if isNil(gpuInstance) {
		return nil, fmt.Errorf("gpu instance: %w", ErrNilInstance)
	}
	size := gpuInstance.ByteLength()
	if size <= 0 {
		return nil, fmt.Errorf("gpu instance: %w", ErrZeroSized)
	}
	for i, c := range cpuInstances {
		if isNil(c) {
			return nil, fmt.Errorf("cpu instance %d: %w", i, ErrNilInstance)
		}
		switch n := c.ByteLength(); {
		case n <= 0:
			return nil, fmt.Errorf("cpu instance %d: %w", i, ErrZeroSized)
		case n != size:
			return nil, fmt.Errorf("cpu instance %d is %d bytes, gpu instance is %d: %w", i, n, size, ErrSizeMismatch)
		}
	}

	label := common.LabelOr(cfg.label, "multibuffer")
	p := &Pool[C, G]{
		label:      label,
		byteLength: size,
		cpu:        make([]*ownership.Tracker[C], len(cpuInstances)),
		gpu:        ownership.NewTracker(gpuInstance, label+"/gpu"),
		sender:     dirty.NewSender(cfg.staleGPU, label),
		latest:     -1,
	}
	for i, c := range cpuInstances {
		p.cpu[i] = ownership.NewTracker(c, fmt.Sprintf("%s/cpu%d", label, i))
	}
	if cfg.staleGPU {
		p.latest = 0
		p.writeGen = 1
	}
	return p, nil
}

// Label returns the pool's debug label.
func (p *Pool[C, G]) Label() string {
	return p.label
}

// Len returns the number of CPU instances.
func (p *Pool[C, G]) Len() int {
	return len(p.cpu)
}

// ByteLength returns the size shared by every instance.
func (p *Pool[C, G]) ByteLength() int {
	return p.byteLength
}

// Latest returns the index of the CPU instance holding the newest contents, or
// -1 when nothing has been written yet.
func (p *Pool[C, G]) Latest() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[C, G]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// DirtyReceiver returns the receiver side of the pool's dirty signal. It reads
// dirty while the GPU instance is older than the newest CPU write.
func (p *Pool[C, G]) DirtyReceiver() dirty.Receiver {
	return p.sender.Receiver()
}

// AccessWrite acquires a CPU instance for writing, blocking until one is free.
// Instances are tried starting after the newest one so the newest contents stay
// available to the GPU copy. Releasing the ticket makes its instance the newest
// and raises the dirty signal; discarding it leaves the pool unchanged.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - *ownership.CPUWriteGuard[C]: the write ticket
//   - error: ErrClosed or the context's error
func (p *Pool[C, G]) AccessWrite(ctx context.Context) (*ownership.CPUWriteGuard[C], error) {
	w, _, err := p.acquireWrite(ctx)
	return w, err
}

// AccessWriteWithLatest acquires a CPU instance for writing together with a read
// ticket on the newest instance, for producers that update contents partially.
// prev is nil when nothing was written yet or the write ticket already covers
// the newest instance. Both tickets must be released, or the write ticket discarded.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - *ownership.CPUWriteGuard[C]: the write ticket
//   - *ownership.CPUReadGuard[C]: a read ticket on the newest instance, or nil
//   - error: ErrClosed or the context's error
func (p *Pool[C, G]) AccessWriteWithLatest(ctx context.Context) (*ownership.CPUWriteGuard[C], *ownership.CPUReadGuard[C], error) {
	w, idx, err := p.acquireWrite(ctx)
	if err != nil {
		return nil, nil, err
	}
	latest := p.Latest()
	if latest < 0 || latest == idx {
		return w, nil, nil
	}
	prev, err := acquire(ctx, p, p.cpu[latest:latest+1], 0, (*ownership.Tracker[C]).TryCPURead)
	if err != nil {
		w.Discard()
		return nil, nil, err
	}
	return w, prev.guard, nil
}

// AccessRead acquires a CPU instance for reading, preferring the newest one
// and falling back to any free instance.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - *ownership.CPUReadGuard[C]: the read ticket
//   - error: ErrClosed or the context's error
func (p *Pool[C, G]) AccessRead(ctx context.Context) (*ownership.CPUReadGuard[C], error) {
	start := max(p.Latest(), 0)
	r, err := acquire(ctx, p, p.cpu, start, (*ownership.Tracker[C]).TryCPURead)
	if err != nil {
		return nil, err
	}
	return r.guard, nil
}

// AccessReadLatest acquires a CPU read ticket on the newest instance, waiting
// while it is busy rather than falling back to an older one. Before the first
// write it behaves like AccessRead.
//
// Parameters:
//   - ctx: the context bounding the wait
//
// Returns:
//   - *ownership.CPUReadGuard[C]: the read ticket
//   - error: ErrClosed or the context's error
func (p *Pool[C, G]) AccessReadLatest(ctx context.Context) (*ownership.CPUReadGuard[C], error) {
	for {
		latest := p.Latest()
		if latest < 0 {
			return p.AccessRead(ctx)
		}
		r, err := acquire(ctx, p, p.cpu[latest:latest+1], 0, (*ownership.Tracker[C]).TryCPURead)
		if err != nil {
			return nil, err
		}
		// A newer write may have landed while we waited.
		if p.Latest() == latest {
			return r.guard, nil
		}
		r.guard.Release()
	}
}

// AccessGPU acquires the GPU instance. If a CPU write happened since the last
// copy, the newest CPU instance is copied into the GPU instance first, waiting
// for it to become readable if necessary. The ticket must stay held until the
// backend work consuming the instance has been submitted.
//
// On a failed copy the GPU ticket is released, the pool stays dirty and a
// *CopyError is returned.
//
// Parameters:
//   - ctx: the context bounding the waits and passed to the copy
//   - cc: backend state forwarded to CopyFromMappable
//
// Returns:
//   - *ownership.GPUGuard[G]: the GPU ticket
//   - error: ErrClosed, a *CopyError or the context's error
func (p *Pool[C, G]) AccessGPU(ctx context.Context, cc CopyContext) (*ownership.GPUGuard[G], error) {
	g, err := acquire(ctx, p, []*ownership.Tracker[G]{p.gpu}, 0, (*ownership.Tracker[G]).TryGPU)
	if err != nil {
		return nil, err
	}
	gpu := g.guard

	p.mu.Lock()
	latest, gen := p.latest, p.writeGen
	stale := latest >= 0 && gen != p.copiedGen
	p.mu.Unlock()
	if !stale {
		return gpu, nil
	}

	src, err := acquire(ctx, p, p.cpu[latest:latest+1], 0, (*ownership.Tracker[C]).TryCPURead)
	if err != nil {
		gpu.Release()
		return nil, err
	}
	// The instance may have been rewritten while we waited for it.
	p.mu.Lock()
	if p.latest == latest {
		gen = p.writeGen
	}
	p.mu.Unlock()

	err = gpu.Resource().CopyFromMappable(ctx, src.guard.Resource(), cc)
	src.guard.Release()
	if err != nil {
		gpu.Release()
		logging.Logger().Warn("multibuffer: copy failed", "label", p.label, "instance", latest, "err", err)
		return nil, &CopyError{Label: p.label, Err: err}
	}

	p.mu.Lock()
	if gen > p.copiedGen {
		p.copiedGen = gen
	}
	p.stats.Copies++
	if p.copiedGen == p.writeGen {
		p.sender.Mark(false)
	}
	p.mu.Unlock()

	logging.Logger().Debug("multibuffer: copied to gpu",
		"label", p.label,
		"instance", latest,
		"size", units.HumanSize(float64(p.byteLength)))
	return gpu, nil
}

// Close marks the pool closed, wakes every blocked acquisition with ErrClosed
// and releases the instances. Callers must have released their tickets.
// Calling Close more than once has no further effect.
func (p *Pool[C, G]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.sender.Close()
	p.gpu.WakeWaiters()
	for _, t := range p.cpu {
		t.WakeWaiters()
	}

	p.gpu.Resource().Release()
	for _, t := range p.cpu {
		if r, ok := any(t.Resource()).(releaser); ok {
			r.Release()
		}
	}
}

func (p *Pool[C, G]) acquireWrite(ctx context.Context) (*ownership.CPUWriteGuard[C], int, error) {
	start := (p.Latest() + 1) % len(p.cpu)
	w, err := acquire(ctx, p, p.cpu, start, (*ownership.Tracker[C]).TryCPUWrite)
	if err != nil {
		return nil, -1, err
	}
	idx := w.index
	w.guard.OnRelease(func() {
		p.mu.Lock()
		p.latest = idx
		p.writeGen++
		p.stats.Writes++
		p.sender.Mark(true)
		p.mu.Unlock()
	})
	return w.guard, idx, nil
}

func (p *Pool[C, G]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool[C, G]) countWait() {
	p.mu.Lock()
	p.stats.Waits++
	p.mu.Unlock()
}

// acquired pairs a ticket with the index of the tracker it was taken from.
type acquired[T any] struct {
	guard T
	index int
}

// acquire tries every tracker once in rotation from start. When all are busy
// it parks one slot on every tracker and waits for any of them to be released,
// then tries again.
func acquire[C Mappable, G GPUable, R any, T any](
	ctx context.Context,
	p *Pool[C, G],
	trackers []*ownership.Tracker[R],
	start int,
	try func(*ownership.Tracker[R]) (T, error),
) (acquired[T], error) {
	n := len(trackers)
	for {
		if p.isClosed() {
			return acquired[T]{}, ErrClosed
		}
		for k := range n {
			i := (start + k) % n
			if g, err := try(trackers[i]); err == nil {
				return acquired[T]{guard: g, index: i}, nil
			}
		}

		slot := dirty.NewOneShot()
		for _, t := range trackers {
			t.NotifyOnRelease(slot)
		}
		// Close may have woken the trackers before the slot was parked.
		if p.isClosed() {
			return acquired[T]{}, ErrClosed
		}
		p.countWait()
		if err := slot.Wait(ctx); err != nil {
			slot.Drop()
			return acquired[T]{}, err
		}
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
