package histogram

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/geometry"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/readback"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-samples/engine/target"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

const (
	// ScatterPipelineKey is the renderer key of the point-scatter pipeline.
	ScatterPipelineKey = "histogram scatter"
	// ScatterFormat is the format of the accumulation targets. Half floats count exactly up to 2048 per bin.
	ScatterFormat = wgpu.TextureFormatRGBA16Float

	uniformBinding = 1
)

// scatterClear is the load value of every accumulation target.
var scatterClear = wgpu.Color{R: 0, G: 0, B: 0, A: 1}

// ScatterBins holds the per-column counts read back from an accumulation target.
type ScatterBins [Bins]float32

// scatterUniforms mirrors the ScatterUniforms block: a u32 channel padded to 16 bytes, then the vec4 mask.
type scatterUniforms struct {
	Channel uint32
	_       [3]uint32
	Mask    [4]float32
}

// scatter is the implementation of the Scatter interface.
type scatter struct {
	mu     *sync.Mutex
	ctx    gpu.Context
	r      renderer.Renderer
	logger *zap.Logger

	gridSize       int
	framesInFlight int
	channel        int
	mask           [4]float32

	vertexShader shader.Shader
	mesh         bind_group_provider.BindGroupProvider
	uniforms     bind_group_provider.BindGroupProvider
	ring         target.Ring
	readers      []readback.Reader
	bound        *wgpu.TextureView
}

// Scatter renders one point per grid vertex into a 256×1 accumulation target, at the column of the vertex's
// quantised source value. Additive blending turns the target into a histogram of one channel.
// Targets come from a ring of frames in flight, each with its own readback buffer.
type Scatter interface {
	// SetSource binds the texture the grid samples.
	//
	// Parameters:
	//   - source: the texture to scatter
	//
	// Returns:
	//   - error: ErrNoSource or a bind group failure
	SetSource(source Source) error

	// SetChannel selects the counted channel and the colour each point adds.
	//
	// Parameters:
	//   - channel: ChannelRed, ChannelGreen or ChannelBlue
	//   - mask: the additive colour per point; at least one component must be non-zero
	//
	// Returns:
	//   - error: an error for an out-of-range channel or an all-zero mask
	SetChannel(channel int, mask [4]float32) error

	// Channel returns the counted channel and its mask.
	Channel() (int, [4]float32)

	// Acquire takes the next idle slot.
	//
	// Returns:
	//   - *target.Slot: the slot to encode into
	//   - error: target.ErrNoIdleSlot when every slot still has a readback in flight
	Acquire() (*target.Slot, error)

	// Encode records the scatter pass and the copy into the slot's readback buffer. It must run inside the
	// renderer's offscreen frame and outside any pass. The target is cleared to (0,0,0,1) first.
	//
	// Parameters:
	//   - slot: a slot returned by Acquire
	//
	// Returns:
	//   - error: ErrNoSource before SetSource, or a renderer error
	Encode(slot *target.Slot) error

	// Resolve maps the slot's readback after the offscreen frame was submitted. The slot returns to idle
	// before done runs.
	//
	// Parameters:
	//   - slot: a slot passed to Encode
	//   - done: receives the counts of the masked channel
	//
	// Returns:
	//   - error: target.ErrSlotState or readback.ErrReadbackPending
	Resolve(slot *target.Slot, done func(ScatterBins, error)) error

	// Cancel returns a slot to idle without reading it back, for frames abandoned after Acquire.
	Cancel(slot *target.Slot)

	// Ring returns the slot ring.
	Ring() target.Ring

	// Release releases the targets, buffers and bind groups.
	Release()
}

var _ Scatter = &scatter{}

// NewScatter registers the scatter pipeline, uploads the sample grid and creates the slot ring.
//
// Parameters:
//   - ctx: the GPU context
//   - r: the renderer that owns the pipeline and the offscreen frame
//   - opts: ScatterBuilderOption values
//
// Returns:
//   - Scatter: the created pass
//   - error: a configuration, shader, pipeline or allocation failure
func NewScatter(ctx gpu.Context, r renderer.Renderer, opts ...ScatterBuilderOption) (Scatter, error) {
	s := &scatter{
		mu:             &sync.Mutex{},
		ctx:            ctx,
		r:              r,
		logger:         zap.NewNop(),
		gridSize:       128,
		framesInFlight: 2,
		channel:        ChannelBlue,
		mask:           [4]float32{1, 0, 0, 1},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateChannel(s.channel, s.mask); err != nil {
		return nil, err
	}

	lib, err := shader.Builtin("histogram_scatter")
	if err != nil {
		return nil, err
	}
	s.vertexShader, err = lib.Function("vertexShaderHistogram", shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fs, err := lib.Function("fragmentShaderHistogram", shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	if r.Pipeline(ScatterPipelineKey) == nil {
		p := pipeline.NewPipeline(ScatterPipelineKey, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(s.vertexShader),
			pipeline.WithFragmentShader(fs),
			pipeline.WithTopology(wgpu.PrimitiveTopologyPointList),
			pipeline.WithAdditiveBlend(),
			pipeline.WithTargetFormat(ScatterFormat),
			pipeline.WithVertexLayouts(geometry.VertexLayout()),
		)
		if err := r.RegisterPipelines(p); err != nil {
			return nil, fmt.Errorf("histogram: failed to register scatter pipeline: %w", err)
		}
	}

	grid, err := geometry.NewGrid(s.gridSize, geometry.WithIndices(false))
	if err != nil {
		return nil, err
	}
	s.mesh = bind_group_provider.NewBindGroupProvider("Histogram Grid")
	if err := r.InitMeshBuffers(s.mesh, grid.VertexBytes(), grid.VertexCount(), nil, 0); err != nil {
		return nil, err
	}
	s.uniforms = bind_group_provider.NewBindGroupProvider("Histogram Scatter")

	s.ring, err = target.NewRing(ctx, "Histogram Target", s.framesInFlight, Bins, 1, target.WithFormat(ScatterFormat))
	if err != nil {
		s.mesh.Release()
		return nil, err
	}
	layout := readback.Layout{Width: Bins, Height: 1, BytesPerPixel: 8}
	for i := 0; i < s.framesInFlight; i++ {
		rd, err := readback.NewReader(ctx, layout, fmt.Sprintf("Histogram Target Readback %d", i))
		if err != nil {
			s.Release()
			return nil, err
		}
		s.readers = append(s.readers, rd)
	}
	return s, nil
}

func validateChannel(channel int, mask [4]float32) error {
	if channel < ChannelRed || channel > ChannelBlue {
		return fmt.Errorf("histogram: channel %d out of range [0, 2]", channel)
	}
	if mask == [4]float32{} {
		return fmt.Errorf("histogram: channel mask is all zero")
	}
	return nil
}

func (s *scatter) SetSource(source Source) error {
	if source.View == nil {
		return ErrNoSource
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bound == source.View {
		return nil
	}
	s.uniforms.BorrowTextureView(sourceBinding, source.View)
	if err := s.r.InitBindGroup(s.uniforms, s.vertexShader.BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return fmt.Errorf("histogram: failed to bind scatter source: %w", err)
	}
	s.bound = source.View
	s.writeUniforms()
	return nil
}

func (s *scatter) SetChannel(channel int, mask [4]float32) error {
	if err := validateChannel(channel, mask); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channel = channel
	s.mask = mask
	s.writeUniforms()
	return nil
}

func (s *scatter) writeUniforms() {
	if s.uniforms.Buffer(uniformBinding) == nil {
		return
	}
	u := scatterUniforms{Channel: uint32(s.channel), Mask: s.mask}
	s.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: s.uniforms,
		Binding:  uniformBinding,
		Data:     append([]byte(nil), common.StructToBytes(&u)...),
	}})
}

func (s *scatter) Channel() (int, [4]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel, s.mask
}

func (s *scatter) Acquire() (*target.Slot, error) {
	return s.ring.Acquire()
}

func (s *scatter) Encode(slot *target.Slot) error {
	s.mu.Lock()
	bound := s.bound != nil
	s.mu.Unlock()
	if !bound {
		return ErrNoSource
	}

	load := scatterClear
	if err := s.r.BeginOffscreenPass(slot.Target().View(), &load); err != nil {
		return err
	}
	if err := s.r.OffscreenDrawCall(ScatterPipelineKey, s.mesh, 1, s.uniforms); err != nil {
		s.r.EndOffscreenPass()
		return err
	}
	s.r.EndOffscreenPass()
	return s.readers[slot.Index()].EncodeCopy(s.r.OffscreenEncoder(), slot.Target().Texture())
}

func (s *scatter) Resolve(slot *target.Slot, done func(ScatterBins, error)) error {
	if err := s.ring.MarkMapping(slot); err != nil {
		return err
	}
	_, mask := s.Channel()
	err := s.readers[slot.Index()].Resolve(func(data []byte, err error) {
		var bins ScatterBins
		if err == nil {
			bins = decodeScatter(data, mask)
		}
		if releaseErr := s.ring.Release(slot); releaseErr != nil {
			s.logger.Warn("scatter slot release failed", zap.Int("slot", slot.Index()), zap.Error(releaseErr))
		}
		done(bins, err)
	})
	if err != nil {
		s.Cancel(slot)
		return err
	}
	return nil
}

// decodeScatter turns RGBA16Float texels into counts: each column's first non-zero mask component divided by
// the mask value. The alpha component starts at the clear value of 1.
func decodeScatter(data []byte, mask [4]float32) ScatterBins {
	var bins ScatterBins
	component := 3
	for c := 0; c < 4; c++ {
		if mask[c] != 0 {
			component = c
			break
		}
	}
	readback.ForEachPixel(data, 8, func(i int, px []byte) bool {
		if i >= Bins {
			return false
		}
		v := readback.DecodeRGBA16Float(px)[component]
		if component == 3 {
			v -= float32(scatterClear.A)
		}
		bins[i] = v / mask[component]
		return true
	})
	return bins
}

func (s *scatter) Cancel(slot *target.Slot) {
	if s.ring.State(slot) != target.SlotIdle {
		_ = s.ring.Release(slot)
	}
}

func (s *scatter) Ring() target.Ring {
	return s.ring
}

func (s *scatter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rd := range s.readers {
		rd.Release()
	}
	s.readers = nil
	if s.ring != nil {
		s.ring.Destroy()
	}
	s.mesh.Release()
	s.uniforms.Release()
	s.bound = nil
}
