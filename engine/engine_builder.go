package engine

import (
	"github.com/Carmen-Shannon/oxy-sync/engine/scheduler"
	"github.com/Carmen-Shannon/oxy-sync/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables tick loop profiling output.
//
// Parameters:
//   - enabled: if true, logs tick rate and memory statistics every second
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in ticks per second.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		e.engineTickRate = tickInterval(fps)
	}
}

// WithWindow sets the window whose event loop the engine runs.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithScheduler registers a scheduler during engine construction.
func WithScheduler(s scheduler.Scheduler) EngineBuilderOption {
	return func(e *engine) {
		if s != nil {
			e.schedulers = append(e.schedulers, s)
		}
	}
}

// WithTickCallback sets the function run every tick.
func WithTickCallback(callback TickFunc) EngineBuilderOption {
	return func(e *engine) {
		e.tickCallback = callback
	}
}
