// Package scheduler drives rendering of one render pass. It renders only when
// a bound resource has changed: between frames it sleeps on a dirty aggregator
// over every binding's change signal, so an idle scene costs nothing.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-sync/common"
	"github.com/Carmen-Shannon/oxy-sync/engine/bind_target"
	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/profiler"
)

const defaultWorkers = 4

// scheduler is the implementation of the Scheduler interface.
type scheduler struct {
	label       string
	bindings    []bind_target.BindTarget
	render      RenderFunc
	frameSource FrameSource
	triggers    []*dirty.Sender
	redraw      *dirty.Sender
	profiler    *profiler.Profiler
	frameLimit  time.Duration
	workers     int

	// acquirePool runs the per-frame ticket acquisitions. Workers are reused
	// across frames; a WaitGroup is the per-frame barrier.
	acquirePool worker.DynamicWorkerPool

	// renderMu serializes frames between ForceRender callers and the loop.
	renderMu  sync.Mutex
	state     atomic.Int32
	frames    atomic.Uint64
	running   atomic.Bool
	closeOnce sync.Once
}

// Scheduler is the frame scheduler of a single render pass.
//
// A frame acquires the GPU ticket of every binding (copying fresh CPU contents
// across where needed), runs the render function, finishes the backend frame
// and releases the tickets. Any failure aborts the whole frame: tickets are
// released and nothing is submitted.
type Scheduler interface {
	// Label returns the debug label.
	Label() string

	// Bindings returns the deduplicated bindings in registration order.
	Bindings() []bind_target.BindTarget

	// Receivers returns the change signals the loop waits on: those of the
	// dynamic bindings followed by the triggers. The scheduler's own redraw
	// signal is not included.
	Receivers() []dirty.Receiver

	// State returns whether a frame is in progress.
	State() State

	// Frames returns how many frames were rendered successfully.
	Frames() uint64

	// ForceRender renders one frame now, regardless of dirty state.
	//
	// Parameters:
	//   - ctx: the context bounding ticket acquisition and rendering
	//
	// Returns:
	//   - error: the first acquisition, copy, render or backend error
	ForceRender(ctx context.Context) error

	// Start renders once, then renders again every time a binding or trigger
	// becomes dirty, until ctx is done or a frame fails. It returns nil when
	// ctx ends the loop and the frame error otherwise.
	//
	// Parameters:
	//   - ctx: the context whose cancellation stops the loop
	//
	// Returns:
	//   - error: ErrRunning if the loop is already running, or the failing frame's error
	Start(ctx context.Context) error

	// RequestRedraw asks the running loop for one more frame even though no
	// binding changed.
	RequestRedraw()

	// Close stops the acquisition workers. The scheduler must not be used afterwards.
	Close()
}

var _ Scheduler = &scheduler{}

// NewScheduler creates a scheduler over the given bindings. Duplicate bindings
// are dropped; a resource bound twice is still acquired once per frame.
//
// A dynamic binding or trigger belongs to one scheduler. Its dirty flag is
// cleared by whichever frame copies it first, so a second scheduler would miss
// the change, and two loops waiting on one receiver keep replacing each other's
// wake slot. The engine refuses such setups with ErrSharedBinding.
//
// Parameters:
//   - bindings: the resources bound to the render pass
//   - render: encodes the frame's backend work
//   - options: variadic list of SchedulerBuilderOption functions to configure the scheduler
//
// Returns:
//   - Scheduler: the new, idle scheduler
func NewScheduler(bindings []bind_target.BindTarget, render RenderFunc, options ...SchedulerBuilderOption) Scheduler {
	s := &scheduler{
		render:  render,
		workers: defaultWorkers,
	}
	for _, opt := range options {
		opt(s)
	}
	s.label = common.LabelOr(s.label, "scheduler")
	s.redraw = dirty.NewSender(false, s.label+"/redraw")

	seen := make(map[bind_target.BindTarget]struct{}, len(bindings))
	for _, b := range bindings {
		if b == nil {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		s.bindings = append(s.bindings, b)
	}

	s.acquirePool = worker.NewDynamicWorkerPool(min(s.workers, max(len(s.bindings), 1)), 256, time.Second)
	return s
}

func (s *scheduler) Label() string {
	return s.label
}

func (s *scheduler) Bindings() []bind_target.BindTarget {
	return append([]bind_target.BindTarget(nil), s.bindings...)
}

func (s *scheduler) Receivers() []dirty.Receiver {
	receivers := bind_target.Receivers(s.bindings)
	for _, t := range s.triggers {
		receivers = append(receivers, t.Receiver())
	}
	return receivers
}

func (s *scheduler) State() State {
	return State(s.state.Load())
}

func (s *scheduler) Frames() uint64 {
	return s.frames.Load()
}

func (s *scheduler) RequestRedraw() {
	s.redraw.Mark(true)
}

func (s *scheduler) Close() {
	s.closeOnce.Do(func() {
		s.redraw.Close()
		s.acquirePool.Stop()
	})
}

func (s *scheduler) ForceRender(ctx context.Context) error {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.state.Store(int32(StateRendering))
	defer s.state.Store(int32(StateIdle))

	frame := &Frame{
		Index:   s.frames.Load() + 1,
		tickets: make(map[bind_target.BindTarget]bind_target.Ticket, len(s.bindings)),
	}
	if s.frameSource != nil {
		cc, err := s.frameSource.BeginFrame(ctx)
		if err != nil {
			return fmt.Errorf("%s: begin frame: %w", s.label, err)
		}
		frame.CopyContext = cc
	}

	tickets, err := s.acquireAll(ctx, frame)
	defer func() {
		for _, t := range tickets {
			if t != nil {
				t.Release()
			}
		}
	}()

	if err == nil {
		for i, b := range s.bindings {
			frame.tickets[b] = tickets[i]
		}
		if s.render != nil {
			err = s.render(ctx, frame)
		}
	}

	// Tickets stay held until the frame has been submitted or discarded.
	if s.frameSource != nil {
		if endErr := s.frameSource.EndFrame(frame.CopyContext, err == nil); endErr != nil && err == nil {
			err = fmt.Errorf("%s: end frame: %w", s.label, endErr)
		}
	}
	if err != nil {
		return err
	}

	s.frames.Add(1)
	if s.profiler != nil {
		s.profiler.Tick()
	}
	logging.Logger().Debug("scheduler: frame rendered", "label", s.label, "frame", frame.Index)
	return nil
}

// acquireAll takes every binding's GPU ticket in parallel on the acquisition
// pool. On failure the tickets that were taken are still returned so the
// caller can release them.
func (s *scheduler) acquireAll(ctx context.Context, frame *Frame) ([]bind_target.Ticket, error) {
	tickets := make([]bind_target.Ticket, len(s.bindings))
	errs := make([]error, len(s.bindings))

	var wg sync.WaitGroup
	for i, b := range s.bindings {
		wg.Add(1)
		s.acquirePool.SubmitTask(worker.Task{
			ID:      i,
			Payload: b,
			Do: func() (any, error) {
				defer wg.Done()
				t, err := b.AcquireGPU(ctx, frame.CopyContext)
				if err != nil {
					errs[i] = fmt.Errorf("%s: acquire %s %q: %w", s.label, b.Kind(), b.Label(), err)
					return nil, err
				}
				tickets[i] = t
				return t, nil
			},
		})
	}
	wg.Wait()
	return tickets, errors.Join(errs...)
}

func (s *scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	logging.Logger().Info("scheduler: started", "label", s.label, "bindings", len(s.bindings))
	defer logging.Logger().Info("scheduler: stopped", "label", s.label, "frames", s.Frames())

	receivers := append(s.Receivers(), s.redraw.Receiver())

	if err := s.frame(ctx); err != nil {
		return err
	}

	lastFrame := time.Now()
	for {
		agg := dirty.NewAggregator(receivers)
		if err := agg.WaitForDirty(ctx); err != nil {
			return nil
		}
		// A wake slot dropped by a closed or collected sender also lands
		// here; only render if something is actually dirty.
		if !agg.IsDirty() {
			s.wakeup(true)
			logging.Logger().Warn("scheduler: spurious wakeup", "label", s.label)
			continue
		}
		s.wakeup(false)

		if s.frameLimit > 0 {
			if wait := s.frameLimit - time.Since(lastFrame); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
		}

		logging.Logger().Debug("scheduler: dirty", "label", s.label, "who", agg.WhoIsDirty())
		lastFrame = time.Now()
		if err := s.frame(ctx); err != nil {
			return err
		}
	}
}

// frame clears the triggers and renders one frame for the loop. Cancellation
// during the frame ends the loop quietly.
func (s *scheduler) frame(ctx context.Context) error {
	s.redraw.Mark(false)
	for _, t := range s.triggers {
		t.Mark(false)
	}
	err := s.ForceRender(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logging.Logger().Error("scheduler: frame failed", "label", s.label, "err", err)
	}
	return err
}

func (s *scheduler) wakeup(spurious bool) {
	if s.profiler != nil {
		s.profiler.Wakeup(spurious)
	}
}
