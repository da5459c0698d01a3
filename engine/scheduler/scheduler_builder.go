package scheduler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-sync/engine/dirty"
	"github.com/Carmen-Shannon/oxy-sync/engine/profiler"
)

// SchedulerBuilderOption is a functional option applied to a scheduler during construction via NewScheduler.
type SchedulerBuilderOption func(*scheduler)

// WithLabel sets the scheduler's debug label. Without it, a unique label is generated.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the label option to a scheduler
func WithLabel(label string) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.label = label
	}
}

// WithTriggers adds signals that request a frame without being bound
// resources, such as a window resize. The scheduler waits on them with its
// bindings and clears them before rendering the frame they triggered.
//
// Parameters:
//   - senders: the trigger signals
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the triggers option to a scheduler
func WithTriggers(senders ...*dirty.Sender) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.triggers = append(s.triggers, senders...)
	}
}

// WithWorkers sets how many bindings are acquired in parallel per frame.
// Values <= 0 are treated as the default of 4.
//
// Parameters:
//   - n: the number of acquisition workers
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the workers option to a scheduler
func WithWorkers(n int) SchedulerBuilderOption {
	return func(s *scheduler) {
		if n <= 0 {
			n = defaultWorkers
		}
		s.workers = n
	}
}

// WithProfiler reports frames and wakeups to p.
//
// Parameters:
//   - p: the profiler to report to
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the profiler option to a scheduler
func WithProfiler(p *profiler.Profiler) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.profiler = p
	}
}

// WithFrameLimit caps how often Start renders, in frames per second.
// Changes arriving faster are coalesced into the next frame. Pass 0 to uncap (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the frame limit option to a scheduler
func WithFrameLimit(fps float64) SchedulerBuilderOption {
	return func(s *scheduler) {
		if fps <= 0 {
			s.frameLimit = 0
			return
		}
		s.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithFrameSource brackets every frame with the given backend frame source.
//
// Parameters:
//   - fs: the frame source, usually the renderer
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the frame source option to a scheduler
func WithFrameSource(fs FrameSource) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.frameSource = fs
	}
}
