package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/umbra-go/engine/atlas"
	"github.com/Carmen-Shannon/umbra-go/engine/shadow"
	"go.uber.org/zap"
)

// Profiler tracks frame rate, memory statistics and shadow paging churn for
// performance monitoring. Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastTotalAlloc uint64

	manager   shadow.ShadowManager
	lastStats atlas.Stats

	log *zap.Logger
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - manager: the shadow manager to sample paging stats from, or nil
//   - log: the logger stats are written to
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(manager shadow.ShadowManager, log *zap.Logger) *Profiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		manager:        manager,
		log:            log,
	}
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed:
// FPS, heap usage and allocation rate, plus resident page count, atlas
// utilization and repack/relocation deltas since the last report when a
// shadow manager is attached.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	// Alloc: Bytes of allocated heap objects (live memory)
	// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	fields := []zap.Field{
		zap.Float64("fps", fps),
		zap.Float64("heap_mb", allocMB),
		zap.Float64("alloc_rate_mb_s", allocRateMB),
	}

	if p.manager != nil {
		stats := p.manager.Atlas().Stats()
		fields = append(fields,
			zap.Int("resident_pages", p.manager.ResidentPages()),
			zap.Float64("atlas_utilization", p.manager.Atlas().Utilization()),
			zap.Uint64("repacks", stats.Repacks-p.lastStats.Repacks),
			zap.Uint64("relocations", stats.Relocations-p.lastStats.Relocations),
		)
		if stats.DroppedSlots > p.lastStats.DroppedSlots {
			fields = append(fields, zap.Uint64("dropped_slots", stats.DroppedSlots-p.lastStats.DroppedSlots))
		}
		p.lastStats = stats
	}

	p.log.Info("frame stats", fields...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
