package histogram

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/readback"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

const (
	// ComputePipelineKey is the renderer key of the atomic histogram compute pipeline.
	ComputePipelineKey = "histogram compute"

	computeEntryPoint = "computeHistogram"
	sourceBinding     = 0
	binsBinding       = 1
)

// ErrNoSource is returned when a pass is encoded without a source texture.
var ErrNoSource = errors.New("histogram: no source texture")

// Source is a sampled texture to count.
type Source struct {
	View   *wgpu.TextureView
	Width  uint32
	Height uint32
}

// computer is the implementation of the Computer interface.
type computer struct {
	mu       *sync.Mutex
	ctx      gpu.Context
	r        renderer.Renderer
	logger   *zap.Logger
	profiler *profiler.Profiler

	shader   shader.Shader
	provider bind_group_provider.BindGroupProvider
	reader   readback.Reader
	bound    *wgpu.TextureView
}

// Computer runs the atomic compute pass: one invocation per source pixel, each adding one to the bin of its
// quantised R, G and B values in a storage buffer of BufferSize bytes.
type Computer interface {
	// Reset zeroes the bin buffer with a queue write, ordered before the next submit.
	Reset()

	// Encode records the dispatch into the renderer's open compute frame. Counts add to whatever the bin
	// buffer holds.
	//
	// Parameters:
	//   - source: the texture to count
	//
	// Returns:
	//   - error: ErrNoSource, renderer.ErrNoActivePass outside a compute frame, or a bind group failure
	Encode(source Source) error

	// Compute resets, dispatches, submits and blocks until the counts are mapped. Only for setup.
	//
	// Parameters:
	//   - source: the texture to count
	//
	// Returns:
	//   - Histogram: the counts
	//   - error: an encode, submit or map failure
	Compute(source Source) (Histogram, error)

	// Accumulate is Compute without the reset, so counts add up across calls.
	Accumulate(source Source) (Histogram, error)

	// ComputeAsync resets, dispatches and submits, then returns. done fires from a later gpu.Context.Poll.
	//
	// Parameters:
	//   - source: the texture to count
	//   - done: the completion callback
	//
	// Returns:
	//   - error: readback.ErrReadbackPending while a previous result is outstanding, or an encode failure
	ComputeAsync(source Source, done func(Histogram, error)) error

	// Buffer returns the storage buffer holding the bins.
	Buffer() *wgpu.Buffer

	// Release releases the bin buffer, bind group and readback buffer.
	Release()
}

var _ Computer = &computer{}

// NewComputer registers the compute pipeline with the renderer and allocates the bin and readback buffers.
//
// Parameters:
//   - ctx: the GPU context
//   - r: the renderer that owns the pipeline and the compute frame
//   - opts: ComputerBuilderOption values
//
// Returns:
//   - Computer: the created computer
//   - error: a shader, pipeline or allocation failure
func NewComputer(ctx gpu.Context, r renderer.Renderer, opts ...ComputerBuilderOption) (Computer, error) {
	c := &computer{
		mu:     &sync.Mutex{},
		ctx:    ctx,
		r:      r,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	lib, err := shader.Builtin("histogram_compute")
	if err != nil {
		return nil, err
	}
	c.shader, err = lib.Function(computeEntryPoint, shader.ShaderTypeCompute)
	if err != nil {
		return nil, err
	}
	if r.Pipeline(ComputePipelineKey) == nil {
		p := pipeline.NewPipeline(ComputePipelineKey, pipeline.PipelineTypeCompute, pipeline.WithComputeShader(c.shader))
		if err := r.RegisterPipelines(p); err != nil {
			return nil, fmt.Errorf("histogram: failed to register compute pipeline: %w", err)
		}
	}

	c.reader, err = readback.NewReader(ctx, readback.Layout{Width: Channels * Bins, Height: 1, BytesPerPixel: 4}, "Histogram Readback")
	if err != nil {
		return nil, err
	}
	c.provider = bind_group_provider.NewBindGroupProvider("Histogram Compute")
	return c, nil
}

func (c *computer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *computer) reset() {
	if buf := c.provider.Buffer(binsBinding); buf != nil {
		c.ctx.Queue().WriteBuffer(buf, 0, make([]byte, BufferSize))
	}
}

func (c *computer) Encode(source Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encode(source)
}

func (c *computer) encode(source Source) error {
	if source.View == nil || source.Width == 0 || source.Height == 0 {
		return ErrNoSource
	}
	if err := c.bind(source.View); err != nil {
		return err
	}
	workgroups := c.shader.WorkgroupSize()
	return c.r.DispatchCompute(ComputePipelineKey, c.provider, [3]uint32{
		common.CeilDiv(source.Width, max(1, workgroups[0])),
		common.CeilDiv(source.Height, max(1, workgroups[1])),
		1,
	})
}

// bind rebuilds the bind group when the source view changes. The bin buffer survives rebuilds.
func (c *computer) bind(view *wgpu.TextureView) error {
	if c.bound == view && c.provider.BindGroup() != nil {
		return nil
	}
	fresh := c.provider.Buffer(binsBinding) == nil
	c.provider.BorrowTextureView(sourceBinding, view)
	err := c.r.InitBindGroup(c.provider, c.shader.BindGroupLayoutDescriptor(0),
		map[int]wgpu.BufferUsage{binsBinding: wgpu.BufferUsageCopySrc},
		map[int]uint64{binsBinding: BufferSize},
	)
	if err != nil {
		return fmt.Errorf("histogram: failed to bind source: %w", err)
	}
	c.bound = view
	if fresh {
		c.reset()
	}
	return nil
}

func (c *computer) Compute(source Source) (Histogram, error) {
	return c.computeBlocking(source, true)
}

func (c *computer) Accumulate(source Source) (Histogram, error) {
	return c.computeBlocking(source, false)
}

func (c *computer) computeBlocking(source Source, reset bool) (Histogram, error) {
	start := time.Now()
	if err := c.submit(source, reset); err != nil {
		return Histogram{}, err
	}
	data, err := readback.Wait(c.ctx, c.reader)
	if err != nil {
		return Histogram{}, err
	}
	h, err := FromBytes(data)
	if err != nil {
		return Histogram{}, err
	}

	elapsed := time.Since(start)
	if c.profiler != nil {
		c.profiler.ObserveCompute(elapsed)
	}
	c.logger.Info("histogram computed",
		zap.Duration("elapsed", elapsed),
		zap.Uint32("width", source.Width),
		zap.Uint32("height", source.Height),
		zap.Bool("accumulated", !reset),
	)
	return h, nil
}

func (c *computer) ComputeAsync(source Source, done func(Histogram, error)) error {
	if c.reader.Pending() {
		return readback.ErrReadbackPending
	}
	if err := c.submit(source, true); err != nil {
		return err
	}
	return c.reader.Resolve(func(data []byte, err error) {
		if err != nil {
			done(Histogram{}, err)
			return
		}
		done(FromBytes(data))
	})
}

// submit records the dispatch and the copy into the readback buffer in a compute frame of its own.
func (c *computer) submit(source Source, reset bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if source.View == nil {
		return ErrNoSource
	}
	if err := c.r.BeginComputeFrame(); err != nil {
		return err
	}
	err := c.bind(source.View)
	if err == nil {
		if reset {
			c.reset()
		}
		err = c.encode(source)
	}
	if err == nil {
		err = c.reader.EncodeBufferCopy(c.r.ComputeEncoder(), c.provider.Buffer(binsBinding))
	}
	if err != nil {
		_ = c.r.EndComputeFrame()
		return err
	}
	return c.r.EndComputeFrame()
}

func (c *computer) Buffer() *wgpu.Buffer {
	return c.provider.Buffer(binsBinding)
}

func (c *computer) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.provider.Release()
	c.reader.Release()
	c.bound = nil
}
