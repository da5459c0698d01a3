package profiler

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-sync/engine/logging"
	"github.com/docker/go-units"
)

// Profiler tracks frame rate, scheduler wakeups and memory statistics.
// Outputs stats to the engine logger at a configurable interval. It is safe
// for use by several schedulers at once.
type Profiler struct {
	mu             sync.Mutex
	label          string
	frameCount     int
	wakeups        int
	spurious       int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second when interval is not positive.
//
// Parameters:
//   - label: identifies the profiled component in log output
//   - interval: how often stats are logged
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(label string, interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Profiler{
		label:          label,
		lastTime:       time.Now(),
		updateInterval: interval,
	}
}

// Wakeup records a scheduler wakeup. Spurious wakeups found nothing dirty.
//
// Parameters:
//   - spurious: true if the wakeup did not lead to a frame
func (p *Profiler) Wakeup(spurious bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wakeups++
	if spurious {
		p.spurious++
	}
}

// Tick should be called once per rendered frame.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, wakeups, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocRate := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPause, maxPause time.Duration
	if gcCount > 0 {
		lastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPause = max(maxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	logging.Logger().Info("profiler",
		slog.String("label", p.label),
		slog.Float64("fps", fps),
		slog.Int("wakeups", p.wakeups),
		slog.Int("spurious", p.spurious),
		slog.String("heap", units.BytesSize(float64(p.memStats.Alloc))),
		slog.String("alloc_rate", units.BytesSize(allocRate)+"/s"),
		slog.Uint64("gc", uint64(gcCount)),
		slog.Duration("gc_last", lastPause),
		slog.Duration("gc_max", maxPause),
		slog.String("sys", units.BytesSize(float64(p.memStats.Sys))),
	)

	p.frameCount = 0
	p.wakeups = 0
	p.spurious = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
