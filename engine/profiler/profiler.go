package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Skip reasons recorded on oxy_frames_skipped_total.
const (
	SkipReasonSurface = "surface"
	SkipReasonEncoder = "encoder"
	SkipReasonSlot    = "slot_busy"
	SkipReasonError   = "error"
)

// Profiler tracks frame rate, memory statistics and GPU work timings.
// Stats are logged at a configurable interval and every sample is recorded into a private prometheus registry.
type Profiler struct {
	mu             *sync.Mutex
	logger         *zap.Logger
	logging        bool
	frameCount     int
	lastTime       time.Time
	lastFrame      time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	registry       *prometheus.Registry
	frameSeconds   prometheus.Histogram
	framesTotal    prometheus.Counter
	framesSkipped  *prometheus.CounterVec
	computeSeconds prometheus.Histogram
	slotsBusy      prometheus.Counter
	heapBytes      prometheus.Gauge
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second and the logger to a no-op.
//
// Parameters:
//   - options: a variadic list of ProfilerBuilderOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	now := time.Now()
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		lastTime:       now,
		lastFrame:      now,
		updateInterval: time.Second,
		registry:       reg,
		frameSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oxy_frame_seconds",
			Help:    "Wall time between consecutive frames in seconds",
			Buckets: []float64{0.001, 0.004, 0.008, 0.016, 0.033, 0.066, 0.1, 0.25},
		}),
		framesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "oxy_frames_total",
			Help: "Frames presented",
		}),
		framesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "oxy_frames_skipped_total",
			Help: "Frames skipped by reason",
		}, []string{"reason"}),
		computeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "oxy_histogram_compute_seconds",
			Help:    "Duration of blocking histogram computations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		slotsBusy: factory.NewCounter(prometheus.CounterOpts{
			Name: "oxy_scatter_slots_busy_total",
			Help: "Frames whose scatter pass found no idle offscreen slot",
		}),
		heapBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oxy_heap_alloc_bytes",
			Help: "Live heap bytes at the last stats interval",
		}),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Registry returns the registry holding the profiler's metrics.
func (p *Profiler) Registry() *prometheus.Registry {
	return p.registry
}

// SetLogging turns the interval stats log on or off. Metrics are recorded either way.
func (p *Profiler) SetLogging(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logging = enabled
}

// ToggleLogging flips the interval stats log.
//
// Returns:
//   - bool: whether logging is enabled after the toggle
func (p *Profiler) ToggleLogging() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logging = !p.logging
	return p.logging
}

// Logging reports whether interval stats are logged.
func (p *Profiler) Logging() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logging
}

// Tick should be called once per presented frame to track frame timing.
// Logs performance statistics when the update interval has elapsed and logging is enabled.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	currentTime := time.Now()
	p.frameSeconds.Observe(currentTime.Sub(p.lastFrame).Seconds())
	p.framesTotal.Inc()
	p.lastFrame = currentTime

	p.frameCount++
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocRateMB := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	p.heapBytes.Set(float64(p.memStats.Alloc))

	// PauseNs is a circular buffer of the last 256 GC pauses.
	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	if p.logging {
		p.logger.Info("frame stats",
			zap.Float64("fps", fps),
			zap.Float64("heap_mb", allocMB),
			zap.Float64("alloc_rate_mb_s", allocRateMB),
			zap.Uint32("gc_count", gcCount),
			zap.Uint64("gc_last_pause_us", lastPauseUs),
			zap.Uint64("gc_max_pause_us", maxPauseUs),
			zap.Float64("sys_mb", sysMB),
		)
	}

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return p.logging
}

// FrameSkipped counts a frame that was not presented.
//
// Parameters:
//   - reason: one of the SkipReason constants
func (p *Profiler) FrameSkipped(reason string) {
	p.framesSkipped.WithLabelValues(reason).Inc()
}

// SlotBusy counts a frame whose scatter pass was skipped because every offscreen slot was still mapping.
func (p *Profiler) SlotBusy() {
	p.slotsBusy.Inc()
}

// ObserveCompute records the duration of a blocking histogram computation.
func (p *Profiler) ObserveCompute(d time.Duration) {
	p.computeSeconds.Observe(d.Seconds())
}
