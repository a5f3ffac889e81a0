// Package histogram computes per-channel 256-bin histograms of RGBA textures, on the GPU with a scatter pass and an
// atomic compute pass, and on the CPU as a reference.
package histogram

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/readback"
)

const (
	// Bins is the number of bins per channel.
	Bins = 256
	// Channels is the number of colour channels counted (R, G, B).
	Channels = 3
	// BufferSize is the size in bytes of the GPU bin buffer, Channels·Bins u32 values.
	BufferSize = Channels * Bins * 4
)

// Channel indices, matching the order of the bin buffer.
const (
	ChannelRed = iota
	ChannelGreen
	ChannelBlue
)

// Histogram holds channel-major bin counts: [0,256) red, [256,512) green, [512,768) blue.
type Histogram [Channels * Bins]uint32

// FromBytes decodes a little-endian bin buffer.
//
// Parameters:
//   - data: exactly BufferSize bytes
//
// Returns:
//   - Histogram: the decoded counts
//   - error: an error if the length is wrong
func FromBytes(data []byte) (Histogram, error) {
	var h Histogram
	if len(data) != BufferSize {
		return h, fmt.Errorf("histogram: got %d bytes, want %d", len(data), BufferSize)
	}
	copy(h[:], readback.DecodeUint32s(data))
	return h, nil
}

// Channel returns the 256 bins of one channel.
func (h *Histogram) Channel(channel int) []uint32 {
	return h[channel*Bins : (channel+1)*Bins]
}

// Count returns the count of value v in channel.
func (h *Histogram) Count(channel int, v uint8) uint32 {
	return h[channel*Bins+int(v)]
}

// Total returns the sum of every bin in channel, which equals the pixel count of the source.
func (h *Histogram) Total(channel int) uint64 {
	var sum uint64
	for _, c := range h.Channel(channel) {
		sum += uint64(c)
	}
	return sum
}

// Peak returns the value and count of the fullest bin in channel. Ties resolve to the lowest value.
func (h *Histogram) Peak(channel int) (uint8, uint32) {
	var value uint8
	var count uint32
	for v, c := range h.Channel(channel) {
		if c > count {
			value, count = uint8(v), c
		}
	}
	return value, count
}

// Add accumulates other into h.
func (h *Histogram) Add(other *Histogram) {
	for i := range h {
		h[i] += other[i]
	}
}

// Diff returns the indices at which h and other differ.
func (h *Histogram) Diff(other *Histogram) []int {
	var out []int
	for i := range h {
		if h[i] != other[i] {
			out = append(out, i)
		}
	}
	return out
}

// CPUCounter counts histograms on the CPU. It owns one worker pool for its lifetime; rows are split into bands
// and counted on the pool, and per-band histograms are summed once every band is done.
type CPUCounter interface {
	// Count counts every texel of an RGBA8 image.
	//
	// Parameters:
	//   - staging: the source pixels
	//
	// Returns:
	//   - Histogram: the counts
	//   - error: ErrCounterReleased after Release, or an error if the staging data is inconsistent
	Count(staging common.TextureStagingData) (Histogram, error)

	// Workers returns the pool size.
	Workers() int

	// Release retires every pool worker and waits until each has taken its retire task.
	Release()
}

// ErrCounterReleased is returned by CPUCounter.Count after Release.
var ErrCounterReleased = errors.New("histogram: cpu counter released")

// cpuCounter is the implementation of the CPUCounter interface.
type cpuCounter struct {
	mu       *sync.Mutex
	pool     worker.DynamicWorkerPool
	workers  int
	released bool
}

var _ CPUCounter = &cpuCounter{}

// NewCPUCounter starts a pool of workers for CPU histograms.
//
// Parameters:
//   - workers: the number of pool workers; values below 1 use one worker
//
// Returns:
//   - CPUCounter: the counter, to be released when no longer needed
func NewCPUCounter(workers int) CPUCounter {
	workers = max(1, workers)
	return &cpuCounter{
		mu:      &sync.Mutex{},
		pool:    worker.NewDynamicWorkerPool(workers, workers, time.Second),
		workers: workers,
	}
}

func (c *cpuCounter) Workers() int {
	return c.workers
}

func (c *cpuCounter) Count(staging common.TextureStagingData) (Histogram, error) {
	var total Histogram
	if err := staging.Validate(); err != nil {
		return total, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return total, ErrCounterReleased
	}

	bands := max(1, min(c.workers, int(staging.Height)))
	rowsPerBand := (int(staging.Height) + bands - 1) / bands
	partials := make([]Histogram, bands)
	rowLen := int(staging.BytesPerRow())

	// The pool's Wait also waits for workers to go inactive, which they never do between tasks.
	var wg sync.WaitGroup
	for b := 0; b < bands; b++ {
		start := b * rowsPerBand
		end := min(start+rowsPerBand, int(staging.Height))
		if start >= end {
			continue
		}
		wg.Add(1)
		c.pool.SubmitTask(worker.Task{
			ID: b,
			Do: func() (any, error) {
				defer wg.Done()
				countRows(&partials[b], staging.Pixels[start*rowLen:end*rowLen])
				return nil, nil
			},
		})
	}
	wg.Wait()

	for i := range partials {
		total.Add(&partials[i])
	}
	return total, nil
}

// Release submits one retire task per worker. A retire task ends the goroutine that runs it, so no worker can take
// two of them. The pool's Stop is not used: a worker drops stop ids addressed to other workers, which leaves
// them running.
func (c *cpuCounter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	c.released = true

	var wg sync.WaitGroup
	wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		c.pool.SubmitTask(worker.Task{
			ID: -1 - i,
			Do: func() (any, error) {
				wg.Done()
				runtime.Goexit()
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// ComputeCPU counts staging on a counter that lives only for this call.
//
// Parameters:
//   - staging: the source pixels
//   - workers: the number of pool workers
//
// Returns:
//   - Histogram: the counts
//   - error: an error if the staging data is inconsistent
func ComputeCPU(staging common.TextureStagingData, workers int) (Histogram, error) {
	c := NewCPUCounter(workers)
	defer c.Release()
	return c.Count(staging)
}

func countRows(h *Histogram, pixels []byte) {
	readback.ForEachPixel(pixels, common.BytesPerPixelRGBA8, func(_ int, px []byte) bool {
		h[px[0]]++
		h[Bins+int(px[1])]++
		h[2*Bins+int(px[2])]++
		return true
	})
}
