package histogram

import (
	"encoding/binary"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-samples/engine/loader"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/readback"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/target"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestComputeCPUSolidImage(t *testing.T) {
	tests := []struct {
		name    string
		w, h    uint32
		rgba    [4]byte
		workers int
	}{
		{"single worker", 16, 9, [4]byte{10, 20, 30, 255}, 1},
		{"more workers than rows", 7, 3, [4]byte{0, 255, 128, 0}, 8},
		{"large image", 256, 256, [4]byte{128, 64, 32, 255}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ComputeCPU(loader.SolidColor(tt.w, tt.h, tt.rgba), tt.workers)
			require.NoError(t, err)

			n := tt.w * tt.h
			for ch := 0; ch < Channels; ch++ {
				assert.Equal(t, n, h.Count(ch, tt.rgba[ch]))
				assert.Equal(t, uint64(n), h.Total(ch))
				v, c := h.Peak(ch)
				assert.Equal(t, tt.rgba[ch], v)
				assert.Equal(t, n, c)
			}
		})
	}
}

func TestComputeCPUScenario(t *testing.T) {
	h, err := ComputeCPU(loader.SolidColor(256, 256, [4]byte{128, 64, 32, 255}), 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(65536), h[128])
	assert.Equal(t, uint32(65536), h[256+64])
	assert.Equal(t, uint32(65536), h[512+32])

	var want Histogram
	want[128], want[256+64], want[512+32] = 65536, 65536, 65536
	assert.Empty(t, h.Diff(&want))
}

func TestComputeCPUTestPatternTotals(t *testing.T) {
	p := loader.TestPattern(256, 256)
	h, err := ComputeCPU(p, 3)
	require.NoError(t, err)
	for ch := 0; ch < Channels; ch++ {
		assert.Equal(t, uint64(256*256), h.Total(ch))
	}
	// The three flat bands are 45, 55 and 35 columns wide.
	assert.GreaterOrEqual(t, h.Count(ChannelBlue, 170), uint32(45*256))
	assert.GreaterOrEqual(t, h.Count(ChannelGreen, 100), uint32(55*256))
}

func TestComputeCPUInvalid(t *testing.T) {
	_, err := ComputeCPU(common.TextureStagingData{Pixels: []byte{1, 2, 3}, Width: 1, Height: 1}, 2)
	assert.Error(t, err)
}

func TestCPUCounterReleasesWorkers(t *testing.T) {
	baseline := runtime.NumGoroutine()
	solid := loader.SolidColor(64, 64, [4]byte{10, 20, 30, 255})

	for i := 0; i < 10; i++ {
		_, err := ComputeCPU(solid, 4)
		require.NoError(t, err)
	}

	c := NewCPUCounter(4)
	assert.Equal(t, 4, c.Workers())
	for i := 0; i < 5; i++ {
		h, err := c.Count(solid)
		require.NoError(t, err)
		assert.Equal(t, uint64(64*64), h.Total(ChannelRed))
	}
	c.Release()
	c.Release()

	_, err := c.Count(solid)
	assert.ErrorIs(t, err, ErrCounterReleased)
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline
	}, 2*time.Second, 10*time.Millisecond, "pool workers still running")
}

func TestHistogramHelpers(t *testing.T) {
	var a, b Histogram
	a[5] = 2
	b[5] = 3
	b[Bins+1] = 1

	a.Add(&b)
	assert.Equal(t, uint32(5), a.Count(ChannelRed, 5))
	assert.Equal(t, uint32(1), a.Count(ChannelGreen, 1))
	assert.Len(t, a.Channel(ChannelBlue), Bins)
	assert.Equal(t, []int{5}, a.Diff(&b))

	data := make([]byte, BufferSize)
	binary.LittleEndian.PutUint32(data[4*(2*Bins+7):], 42)
	h, err := FromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), h.Count(ChannelBlue, 7))

	_, err = FromBytes(data[:10])
	assert.Error(t, err)
}

func TestDecodeScatter(t *testing.T) {
	data := make([]byte, Bins*8)
	put := func(col, comp int, v float32) {
		binary.LittleEndian.PutUint16(data[col*8+comp*2:], float16.Fromfloat32(v).Bits())
	}
	for col := 0; col < Bins; col++ {
		put(col, 3, 1)
	}
	put(32, 0, 100)
	put(32, 3, 101)
	put(200, 0, 2048)

	red := decodeScatter(data, [4]float32{1, 0, 0, 1})
	assert.Equal(t, float32(100), red[32])
	assert.Equal(t, float32(2048), red[200])
	assert.Zero(t, red[0])

	alpha := decodeScatter(data, [4]float32{0, 0, 0, 1})
	assert.Equal(t, float32(100), alpha[32])
	assert.Zero(t, alpha[1])

	half := decodeScatter(data, [4]float32{0.5, 0, 0, 1})
	assert.Equal(t, float32(200), half[32])
}

func TestValidateChannel(t *testing.T) {
	assert.NoError(t, validateChannel(ChannelGreen, [4]float32{0, 1, 0, 1}))
	assert.Error(t, validateChannel(3, [4]float32{1, 0, 0, 1}))
	assert.Error(t, validateChannel(-1, [4]float32{1, 0, 0, 1}))
	assert.Error(t, validateChannel(ChannelRed, [4]float32{}))
}

type gpuFixture struct {
	ctx    gpu.Context
	r      renderer.Renderer
	loader loader.TextureLoader
}

func newGPUFixture(t *testing.T) gpuFixture {
	t.Helper()
	ctx := gputest.NewHeadless(t)
	r, err := renderer.NewRenderer(ctx)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	l := loader.NewTextureLoader(ctx)
	t.Cleanup(l.Release)
	return gpuFixture{ctx: ctx, r: r, loader: l}
}

func (f gpuFixture) source(t *testing.T, name string, staging common.TextureStagingData) Source {
	t.Helper()
	tex, err := f.loader.Upload(name, staging)
	require.NoError(t, err)
	return Source{View: tex.View, Width: tex.Width, Height: tex.Height}
}

func TestComputerMatchesCPU(t *testing.T) {
	f := newGPUFixture(t)
	p := profiler.NewProfiler()
	c, err := NewComputer(f.ctx, f.r, WithProfiler(p))
	require.NoError(t, err)
	defer c.Release()

	solid := loader.SolidColor(256, 256, [4]byte{128, 64, 32, 255})
	h, err := c.Compute(f.source(t, "solid", solid))
	require.NoError(t, err)
	assert.Equal(t, uint32(65536), h.Count(ChannelRed, 128))
	assert.Equal(t, uint32(65536), h.Count(ChannelGreen, 64))
	assert.Equal(t, uint32(65536), h.Count(ChannelBlue, 32))

	n, err := testutil.GatherAndCount(p.Registry(), "oxy_histogram_compute_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pattern := loader.TestPattern(200, 75)
	gpuHist, err := c.Compute(f.source(t, "pattern", pattern))
	require.NoError(t, err)
	cpuHist, err := ComputeCPU(pattern, 4)
	require.NoError(t, err)
	assert.Empty(t, gpuHist.Diff(&cpuHist))
}

func TestComputerAccumulate(t *testing.T) {
	f := newGPUFixture(t)
	c, err := NewComputer(f.ctx, f.r)
	require.NoError(t, err)
	defer c.Release()

	src := f.source(t, "solid", loader.SolidColor(10, 10, [4]byte{1, 2, 3, 255}))

	once, err := c.Compute(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(100), once.Count(ChannelRed, 1))

	twice, err := c.Accumulate(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), twice.Count(ChannelRed, 1))
	assert.Equal(t, uint32(200), twice.Count(ChannelBlue, 3))

	again, err := c.Compute(src)
	require.NoError(t, err)
	assert.Equal(t, once, again)

	_, err = c.Compute(Source{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestComputerAsync(t *testing.T) {
	f := newGPUFixture(t)
	c, err := NewComputer(f.ctx, f.r)
	require.NoError(t, err)
	defer c.Release()

	src := f.source(t, "solid", loader.SolidColor(8, 8, [4]byte{9, 9, 9, 255}))

	var (
		got  Histogram
		errs []error
		done bool
	)
	require.NoError(t, c.ComputeAsync(src, func(h Histogram, err error) {
		got, done = h, true
		errs = append(errs, err)
	}))
	assert.ErrorIs(t, c.ComputeAsync(src, func(Histogram, error) {}), readback.ErrReadbackPending)

	for !done {
		f.ctx.Poll(true)
	}
	require.Len(t, errs, 1)
	require.NoError(t, errs[0])
	assert.Equal(t, uint32(64), got.Count(ChannelGreen, 9))
}

func TestComputerEncodeNeedsComputeFrame(t *testing.T) {
	f := newGPUFixture(t)
	c, err := NewComputer(f.ctx, f.r)
	require.NoError(t, err)
	defer c.Release()

	src := f.source(t, "solid", loader.SolidColor(4, 4, [4]byte{0, 0, 0, 255}))
	assert.ErrorIs(t, c.Encode(src), renderer.ErrNoActivePass)

	require.NoError(t, f.r.BeginComputeFrame())
	assert.NoError(t, c.Encode(src))
	require.NoError(t, f.r.EndComputeFrame())
}

func TestScatterCountsChannel(t *testing.T) {
	f := newGPUFixture(t)
	s, err := NewScatter(f.ctx, f.r, WithGridSize(16), WithChannel(ChannelRed, [4]float32{1, 0, 0, 1}))
	require.NoError(t, err)
	defer s.Release()

	slot, err := s.Acquire()
	require.NoError(t, err)
	assert.ErrorIs(t, s.Encode(slot), ErrNoSource)
	s.Cancel(slot)

	require.NoError(t, s.SetSource(f.source(t, "solid", loader.SolidColor(32, 32, [4]byte{128, 64, 32, 255}))))
	slot, err = s.Acquire()
	require.NoError(t, err)

	require.NoError(t, f.r.BeginOffscreenFrame())
	require.NoError(t, s.Encode(slot))
	require.NoError(t, f.r.EndOffscreenFrame())

	var bins ScatterBins
	done := false
	require.NoError(t, s.Resolve(slot, func(b ScatterBins, err error) {
		assert.NoError(t, err)
		bins, done = b, true
	}))
	assert.Equal(t, target.SlotMapping, s.Ring().State(slot))
	for !done {
		f.ctx.Poll(true)
	}
	assert.Equal(t, target.SlotIdle, s.Ring().State(slot))
	assert.Equal(t, float32(16*16), bins[128])

	assert.Error(t, s.SetChannel(5, [4]float32{1, 0, 0, 1}))
	require.NoError(t, s.SetChannel(ChannelGreen, [4]float32{0, 1, 0, 1}))
	ch, mask := s.Channel()
	assert.Equal(t, ChannelGreen, ch)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, mask)
}

func TestScatterRingExhaustion(t *testing.T) {
	f := newGPUFixture(t)
	s, err := NewScatter(f.ctx, f.r, WithFramesInFlight(1), WithGridSize(2))
	require.NoError(t, err)
	defer s.Release()

	slot, err := s.Acquire()
	require.NoError(t, err)
	_, err = s.Acquire()
	assert.True(t, errors.Is(err, target.ErrNoIdleSlot))

	s.Cancel(slot)
	assert.Equal(t, 1, s.Ring().Idle())
}
