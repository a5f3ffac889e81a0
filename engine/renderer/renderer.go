package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

var (
	// ErrFrameSkipped is returned by BeginFrame when the surface texture or encoder cannot be acquired.
	// The frame is dropped and the next one retried; it is never fatal.
	ErrFrameSkipped = errors.New("renderer: frame skipped")
	// ErrPipelineNotFound is returned when a draw or dispatch names an unregistered pipeline.
	ErrPipelineNotFound = errors.New("renderer: pipeline not found")
	// ErrNoActivePass is returned when a draw or dispatch is issued outside its frame.
	ErrNoActivePass = errors.New("renderer: no active pass")
	// ErrNoSurface is returned for surface work on a headless context.
	ErrNoSurface = errors.New("renderer: context has no surface")
	// ErrEncoderUnavailable is wrapped into ErrFrameSkipped when the frame's command encoder cannot be created.
	ErrEncoderUnavailable = errors.New("renderer: command encoder unavailable")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	logger *zap.Logger

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	presentMode PresentMode
	msaa        MSAASampleCount
	clearColor  wgpu.Color
	width       int
	height      int
}

// Renderer defines the interface for the rendering system.
//
// The Renderer caches pipelines by key and batches GPU work into three kinds of frames, each one encoder and
// one submission: a surface frame (BeginFrame/DrawCall/EndFrame/Present), a compute frame
// (BeginComputeFrame/DispatchCompute/EndComputeFrame) and an offscreen frame
// (BeginOffscreenFrame/BeginOffscreenPass/OffscreenDrawCall/EndOffscreenPass/EndOffscreenFrame).
type Renderer interface {
	// Pipeline retrieves the cached Pipeline associated with the given key, or nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines returns a copy of the pipeline cache.
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the GPU pipeline objects for one or more pipelines and caches them by key.
	// Keys that are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// SurfaceFormat returns the surface color format, or wgpu.TextureFormatUndefined when headless.
	SurfaceFormat() wgpu.TextureFormat

	// Headless reports whether the renderer has no surface. Surface frames are always skipped when headless.
	Headless() bool

	// Resize reconfigures the surface. A zero size pauses surface frames until the next non-zero resize.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface targets could not be recreated
	Resize(width, height int) error

	// SetPresentMode sets the surface present mode. Call Resize afterwards for it to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color the surface pass clears to.
	SetClearColor(color wgpu.Color)

	// ClearColor returns the color the surface pass clears to.
	ClearColor() wgpu.Color

	// InitMeshBuffers creates GPU vertex and index buffers from raw bytes and stores them on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex bytes, empty for vertex-index-only draws
	//   - vertexCount: the number of vertices drawn when there is no index buffer
	//   - indexData: the raw uint32 index bytes, empty for non-indexed draws
	//   - indexCount: the number of indices
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int, indexData []byte, indexCount int) error

	// InitBindGroup creates GPU buffers and a bind group from a layout descriptor and stores them on the
	// provider. Textures and samplers must already be on the provider, from InitTextureView, InitSampler or
	// BorrowTextureView. Calling it again rebuilds the bind group around the provider's current views.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags keyed by binding index (nil safe)
	//   - bufferSizeOverrides: buffer sizes used instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// InitTextureView uploads RGBA8 staging data to a new texture and stores the view on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created texture view on
	//   - bindingKey: the binding index for this texture
	//   - stagingData: the pixel data and dimensions for the texture
	//
	// Returns:
	//   - error: an error if texture creation fails
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// InitSampler creates a GPU sampler and stores it on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created sampler on
	//   - bindingKey: the binding index for this sampler
	//   - samplerStagingData: the sampler configuration
	//
	// Returns:
	//   - error: an error if sampler creation fails
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginComputeFrame opens the compute frame encoder.
	BeginComputeFrame() error

	// ComputeEncoder returns the open compute encoder for recording copies after dispatches, or nil.
	ComputeEncoder() *wgpu.CommandEncoder

	// DispatchCompute encodes a compute pass within the current compute frame.
	//
	// Parameters:
	//   - pipelineKey: the key of the cached compute Pipeline
	//   - computeProvider: the BindGroupProvider bound at group 0
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: ErrPipelineNotFound or ErrNoActivePass
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// EndComputeFrame submits the compute frame.
	EndComputeFrame() error

	// BeginFrame acquires the surface texture and begins the surface pass.
	//
	// Returns:
	//   - error: ErrFrameSkipped wrapped with the cause when the frame cannot start
	BeginFrame() error

	// DrawCall encodes a draw within the surface pass.
	//
	// Parameters:
	//   - pipelineKey: the key of the cached render Pipeline
	//   - meshProvider: the BindGroupProvider holding vertex/index buffers and counts
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: providers bound at groups 0..n-1
	//
	// Returns:
	//   - error: ErrPipelineNotFound or ErrNoActivePass
	DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups ...bind_group_provider.BindGroupProvider) error

	// EndFrame ends the surface pass and submits it. Does not present.
	EndFrame() error

	// Present presents the surface. Must be called once per frame after EndFrame.
	Present()

	// BeginOffscreenFrame opens the offscreen frame encoder.
	BeginOffscreenFrame() error

	// BeginOffscreenPass starts a color-only pass on a caller-owned view.
	//
	// Parameters:
	//   - view: the single-sampled color view to render into
	//   - clear: the clear color, or nil to keep the existing contents
	//
	// Returns:
	//   - error: ErrNoActivePass outside an offscreen frame
	BeginOffscreenPass(view *wgpu.TextureView, clear *wgpu.Color) error

	// OffscreenDrawCall encodes a draw within the current offscreen pass.
	//
	// Parameters:
	//   - pipelineKey: the key of the cached offscreen Pipeline
	//   - meshProvider: the BindGroupProvider holding vertex/index buffers and counts
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: providers bound at groups 0..n-1
	//
	// Returns:
	//   - error: ErrPipelineNotFound or ErrNoActivePass
	OffscreenDrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups ...bind_group_provider.BindGroupProvider) error

	// EndOffscreenPass ends the current offscreen pass.
	EndOffscreenPass()

	// OffscreenEncoder returns the open offscreen encoder for recording copies after passes, or nil.
	OffscreenEncoder() *wgpu.CommandEncoder

	// EndOffscreenFrame submits the offscreen frame.
	EndOffscreenFrame() error

	// Release releases every cached pipeline and the surface targets. The gpu.Context is not released.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on an existing gpu.Context. With a surface, the surface is configured to the
// size set by WithSurfaceSize; a headless context yields a renderer that only runs compute and offscreen frames.
//
// Parameters:
//   - ctx: the device and queue to render with
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer
//   - error: an error if the surface reports no formats or its targets cannot be created
func NewRenderer(ctx gpu.Context, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		logger:        zap.NewNop(),
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   BackendTypeWGPU,
		presentMode:   PresentModeVSync,
		msaa:          MSAAOff,
		clearColor:    wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
		width:         800,
		height:        600,
	}
	for _, opt := range options {
		opt(r)
	}

	switch r.backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		backend, err := newWGPURendererBackend(ctx, r.msaa, r.presentMode, r.clearColor, r.logger)
		if err != nil {
			return nil, err
		}
		r.backend = backend
	}

	if err := r.backend.ConfigureSurface(r.width, r.height); err != nil {
		r.backend.Release()
		return nil, err
	}
	r.logger.Info("renderer ready",
		zap.Bool("headless", ctx.Headless()),
		zap.Uint32("surface_format", uint32(r.backend.SurfaceFormat())),
		zap.Uint32("msaa", uint32(r.msaa)),
	)
	return r, nil
}

func (r *renderer) SurfaceFormat() wgpu.TextureFormat {
	return r.backend.SurfaceFormat()
}

func (r *renderer) Headless() bool {
	return r.backend.SurfaceFormat() == wgpu.TextureFormatUndefined
}

func (r *renderer) Resize(width, height int) error {
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) SetClearColor(color wgpu.Color) {
	r.backend.SetClearColor(color)
}

func (r *renderer) ClearColor() wgpu.Color {
	return r.backend.ClearColor()
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, p := range r.pipelineCache {
		out[k] = p
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return fmt.Errorf("renderer: register compute pipeline %q: %w", key, err)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return fmt.Errorf("renderer: register render pipeline %q: %w", key, err)
			}
		}
		r.pipelineCache[key] = p
		r.logger.Debug("pipeline registered", zap.String("key", key), zap.Bool("offscreen", p.Offscreen()))
	}
	return nil
}

func (r *renderer) lookup(key string) (pipeline.Pipeline, error) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	r.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrPipelineNotFound, key)
	}
	return p, nil
}

func (r *renderer) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int, indexData []byte, indexCount int) error {
	return r.backend.InitMeshBuffers(provider, vertexData, vertexCount, indexData, indexCount)
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	return r.backend.InitTextureView(provider, bindingKey, stagingData)
}

func (r *renderer) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	return r.backend.InitSampler(provider, bindingKey, samplerStagingData)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) ComputeEncoder() *wgpu.CommandEncoder {
	return r.backend.ComputeEncoder()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) EndComputeFrame() error {
	return r.backend.EndComputeFrame()
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) DrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups ...bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.DrawCall(p, meshProvider, instanceCount, bindGroups)
}

func (r *renderer) EndFrame() error {
	return r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) BeginOffscreenFrame() error {
	return r.backend.BeginOffscreenFrame()
}

func (r *renderer) BeginOffscreenPass(view *wgpu.TextureView, clear *wgpu.Color) error {
	return r.backend.BeginOffscreenPass(view, clear)
}

func (r *renderer) OffscreenDrawCall(pipelineKey string, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups ...bind_group_provider.BindGroupProvider) error {
	p, err := r.lookup(pipelineKey)
	if err != nil {
		return err
	}
	return r.backend.OffscreenDrawCall(p, meshProvider, instanceCount, bindGroups)
}

func (r *renderer) EndOffscreenPass() {
	r.backend.EndOffscreenPass()
}

func (r *renderer) OffscreenEncoder() *wgpu.CommandEncoder {
	return r.backend.OffscreenEncoder()
}

func (r *renderer) EndOffscreenFrame() error {
	return r.backend.EndOffscreenFrame()
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()
	r.backend.Release()
}
