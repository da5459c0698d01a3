// Package engine runs an application: a fixed-rate tick loop for CPU-side
// producers, one scheduler per render pass and an optional window, all
// supervised together so the first failure stops the rest.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/Carmen-Shannon/oxy-sync/engine/profiler"
	"github.com/Carmen-Shannon/oxy-sync/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-sync/engine/window"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrRunning is returned by Run when the engine is already running.
	ErrRunning = errors.New("engine: already running")

	// ErrSharedBinding is returned when two schedulers wait on the same dynamic
	// binding or trigger.
	ErrSharedBinding = errors.New("engine: dynamic binding shared between schedulers")
)

// TickFunc runs once per tick. It typically updates CPU-side resources; every
// write marks the written resource dirty, which wakes the schedulers bound to it.
// A returned error stops the engine.
type TickFunc func(ctx context.Context, deltaTime float32) error

type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates
	engineTickRate  time.Duration

	running atomic.Bool

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window window.Window

	mu         sync.Mutex
	schedulers []scheduler.Scheduler

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickCallback TickFunc
}

// Engine defines the interface for the application loop.
type Engine interface {
	// Window returns the engine window, or nil for a windowless engine.
	//
	// Returns:
	//   - window.Window: the window or nil
	Window() window.Window

	// Schedulers returns the registered schedulers.
	//
	// Returns:
	//   - []scheduler.Scheduler: the schedulers in registration order
	Schedulers() []scheduler.Scheduler

	// AddScheduler registers a scheduler. It only takes effect on the next Run.
	//
	// Parameters:
	//   - s: the scheduler to add
	//
	// Returns:
	//   - error: ErrSharedBinding if s waits on a receiver another scheduler already waits on
	AddScheduler(s scheduler.Scheduler) error

	// SetTickRate changes the tick rate, also while running.
	// Values <= 0 are treated as the default (60Hz).
	//
	// Parameters:
	//   - fps: target ticks per second
	SetTickRate(fps float64)

	// SetTickCallback sets the function run every tick. Must be set before Run.
	//
	// Parameters:
	//   - callback: the tick function
	SetTickCallback(callback TickFunc)

	// Run starts the tick loop and every scheduler, then processes window events
	// on the calling goroutine until the window closes, ctx is done, Quit is
	// called or any part fails. With a window, Run must be called from the
	// goroutine that created it.
	//
	// Parameters:
	//   - ctx: cancels the engine
	//
	// Returns:
	//   - error: ErrSharedBinding, the first failure, or nil for a regular shutdown
	Run(ctx context.Context) error

	// Quit stops a running engine. Safe to call more than once and from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine.
//
// Parameters:
//   - options: variadic list of EngineBuilderOption functions to configure the engine
//
// Returns:
//   - Engine: the new engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.profilingEnabled {
		e.profiler = profiler.NewProfiler("engine tick", time.Second)
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Schedulers() []scheduler.Scheduler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]scheduler.Scheduler(nil), e.schedulers...)
}

func (e *engine) AddScheduler(s scheduler.Scheduler) error {
	if s == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := checkShared(append(e.schedulers[:len(e.schedulers):len(e.schedulers)], s)); err != nil {
		return err
	}
	e.schedulers = append(e.schedulers, s)
	return nil
}

// checkShared reports the first receiver that more than one scheduler waits on.
func checkShared(schedulers []scheduler.Scheduler) error {
	owners := make(map[dirty.Receiver]scheduler.Scheduler)
	for _, s := range schedulers {
		mine := make(map[dirty.Receiver]struct{})
		for _, r := range s.Receivers() {
			if owner, ok := owners[r]; ok {
				return fmt.Errorf("%w: %q is bound by %q and %q", ErrSharedBinding, r.DebugLabel(), owner.Label(), s.Label())
			}
			mine[r] = struct{}{}
		}
		for r := range mine {
			owners[r] = s
		}
	}
	return nil
}

func (e *engine) SetTickRate(fps float64) {
	rate := tickInterval(fps)
	// Drain any pending update so the newest rate wins.
	select {
	case <-e.tickRateChannel:
	default:
	}
	e.tickRateChannel <- rate
}

func (e *engine) SetTickCallback(callback TickFunc) {
	e.tickCallback = callback
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	schedulers := e.Schedulers()
	if err := checkShared(schedulers); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.handleTick(gctx)
	})
	for _, s := range schedulers {
		g.Go(func() error {
			return s.Start(gctx)
		})
	}
	logging.Logger().Info("engine: running", "schedulers", len(schedulers), "window", e.window != nil)

	var windowErr error
	if e.window != nil {
		windowErr = e.window.Run(gctx)
	} else {
		<-gctx.Done()
	}
	cancel()

	err := g.Wait()
	if err == nil && windowErr != nil && !errors.Is(windowErr, context.Canceled) {
		err = windowErr
	}
	logging.Logger().Info("engine: stopped", "error", err)
	return err
}

// handleTick runs the tick callback at the configured rate until ctx is done.
func (e *engine) handleTick(ctx context.Context) error {
	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				if err := e.tickCallback(ctx, dt); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					logging.Logger().Error("engine: tick failed", "error", err)
					return err
				}
			}
			if e.profiler != nil {
				e.profiler.Tick()
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// tickInterval converts a tick rate to a ticker period.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		fps = 60
	}
	return time.Duration(float64(time.Second) / fps)
}
