package profiler

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTickCountsFrames(t *testing.T) {
	p := NewProfiler(WithInterval(time.Hour))

	for i := 0; i < 3; i++ {
		assert.False(t, p.Tick())
	}
	assert.Equal(t, float64(3), testutil.ToFloat64(p.framesTotal))

	n, err := testutil.GatherAndCount(p.Registry(), "oxy_frame_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTickLogsStats(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(WithInterval(time.Nanosecond), WithLogger(zap.New(core)), WithLogging(true))

	time.Sleep(time.Millisecond)
	assert.True(t, p.Tick())

	entries := logs.FilterMessage("frame stats").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "fps")
	assert.Equal(t, "profiler", entries[0].LoggerName)
	assert.Greater(t, testutil.ToFloat64(p.heapBytes), float64(0))
}

func TestToggleLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewProfiler(WithInterval(time.Nanosecond), WithLogger(zap.New(core)))
	assert.False(t, p.Logging())

	time.Sleep(time.Millisecond)
	assert.False(t, p.Tick())
	assert.Zero(t, logs.FilterMessage("frame stats").Len())
	assert.Greater(t, testutil.ToFloat64(p.heapBytes), float64(0))

	assert.True(t, p.ToggleLogging())
	time.Sleep(time.Millisecond)
	assert.True(t, p.Tick())
	assert.Equal(t, 1, logs.FilterMessage("frame stats").Len())

	assert.False(t, p.ToggleLogging())
	p.SetLogging(true)
	assert.True(t, p.Logging())
}

func TestSkipAndBusyCounters(t *testing.T) {
	p := NewProfiler()

	p.FrameSkipped(SkipReasonSurface)
	p.FrameSkipped(SkipReasonSurface)
	p.FrameSkipped(SkipReasonSlot)
	p.SlotBusy()

	assert.Equal(t, float64(2), testutil.ToFloat64(p.framesSkipped.WithLabelValues(SkipReasonSurface)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.framesSkipped.WithLabelValues(SkipReasonSlot)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.slotsBusy))
}

func TestObserveCompute(t *testing.T) {
	p := NewProfiler()
	p.ObserveCompute(5 * time.Millisecond)

	n, err := testutil.GatherAndCount(p.Registry(), "oxy_histogram_compute_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewProfiler()
	b := NewProfiler()
	a.Tick()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.framesTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.framesTotal))
}
