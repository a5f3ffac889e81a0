package renderer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger *zap.Logger

	device  *wgpu.Device
	queue   *wgpu.Queue
	adapter *wgpu.Adapter
	surface *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	surfaceAlphaMode     wgpu.CompositeAlphaMode
	surfaceConfigured    bool
	msaaTexture          *wgpu.Texture
	msaaTextureView      *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode
	sampleCount MSAASampleCount
	clearColor  wgpu.Color

	// Surface frame state, batched across draw calls between BeginFrame and EndFrame.
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView

	computeFrameEncoder *wgpu.CommandEncoder

	// Offscreen frame state. Passes target caller-owned single-sampled color views.
	offscreenFrameEncoder *wgpu.CommandEncoder
	offscreenPass         *wgpu.RenderPassEncoder
}

type wgpuRendererBackend interface {
	// SurfaceFormat returns the surface color format, or wgpu.TextureFormatUndefined for a headless context.
	SurfaceFormat() wgpu.TextureFormat

	// ConfigureSurface configures the surface for a new size and rebuilds the MSAA target and the cached
	// render pass descriptor. A zero size leaves the surface unconfigured so frames are skipped until the
	// next non-zero resize. A no-op on headless contexts.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the MSAA target could not be created
	ConfigureSurface(width, height int) error

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the clear color of the surface pass.
	SetClearColor(color wgpu.Color)

	// ClearColor returns the clear color of the surface pass.
	ClearColor() wgpu.Color

	// BeginComputeFrame creates a single command encoder for batching compute dispatches and buffer copies
	// into one GPU submission. Must be paired with EndComputeFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// ComputeEncoder returns the open compute frame encoder, or nil outside a compute frame.
	// Callers use it to record buffer copies after their dispatches.
	ComputeEncoder() *wgpu.CommandEncoder

	// DispatchCompute encodes a compute pass within the current compute frame.
	//
	// Parameters:
	//   - p: the cached compute Pipeline
	//   - computeProvider: the BindGroupProvider bound at group 0
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	//
	// Returns:
	//   - error: ErrNoActivePass outside a compute frame
	DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// EndComputeFrame finishes the compute encoder and submits it to the queue.
	//
	// Returns:
	//   - error: an error if the encoder could not be finished
	EndComputeFrame() error

	// RegisterRenderPipeline creates the shader modules, pipeline layout and render pipeline for p.
	// The color target is the surface format unless p names a target format.
	//
	// Parameters:
	//   - p: the pipeline object holding the shaders and configuration
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// RegisterComputePipeline creates the shader module, pipeline layout and compute pipeline for p.
	//
	// Parameters:
	//   - p: the pipeline object holding the compute shader
	//
	// Returns:
	//   - error: an error if the pipeline could not be created, otherwise nil
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitMeshBuffers creates vertex and index buffers from raw bytes and stores them on the provider.
	// Either slice may be empty.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the buffers on
	//   - vertexData: the raw vertex bytes
	//   - vertexCount: the number of vertices, used for non-indexed draws
	//   - indexData: the raw uint32 index bytes
	//   - indexCount: the number of indices, used for indexed draws
	//
	// Returns:
	//   - error: an error if a buffer could not be created, otherwise nil
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int, indexData []byte, indexCount int) error

	// InitBindGroup creates missing buffers and the bind group described by a layout descriptor.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to populate
	//   - descriptor: the BindGroupLayoutDescriptor reflected from the shader
	//   - bufferUsageOverrides: extra usage flags ORed into each binding's derived usage (nil safe)
	//   - bufferSizeOverrides: buffer sizes used instead of MinBindingSize (nil safe)
	//
	// Returns:
	//   - error: an error if a texture or sampler binding is missing or creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// InitTextureView uploads RGBA8 staging data into a new texture and stores its view on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the view on
	//   - bindingKey: the binding index of the texture
	//   - stagingData: the pixel data and dimensions
	//
	// Returns:
	//   - error: an error if the texture could not be created, otherwise nil
	InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error

	// InitSampler creates a sampler and stores it on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the sampler on
	//   - bindingKey: the binding index of the sampler
	//   - samplerStagingData: the sampler configuration; zero fields take defaults
	//
	// Returns:
	//   - error: an error if the sampler could not be created, otherwise nil
	InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// BeginFrame acquires the next surface texture, creates a command encoder, and begins the surface
	// render pass.
	//
	// Returns:
	//   - error: ErrFrameSkipped wrapped with the cause when the frame cannot start
	BeginFrame() error

	// DrawCall encodes a draw within the surface pass. Indexed when the mesh has an index buffer.
	//
	// Parameters:
	//   - p: the cached render Pipeline
	//   - meshProvider: the BindGroupProvider holding vertex/index buffers and counts
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: providers bound at groups 0..n-1
	//
	// Returns:
	//   - error: ErrNoActivePass outside a frame
	DrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndFrame ends the surface pass and submits it. Call Present afterwards.
	//
	// Returns:
	//   - error: an error if the encoder could not be finished
	EndFrame() error

	// Present presents the surface and releases the frame's surface texture.
	Present()

	// BeginOffscreenFrame creates a command encoder for offscreen passes and copies.
	// Must be paired with EndOffscreenFrame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginOffscreenFrame() error

	// BeginOffscreenPass starts a color-only render pass on the given view.
	//
	// Parameters:
	//   - view: the single-sampled color view to render into
	//   - clear: the clear color, or nil to load the existing contents
	//
	// Returns:
	//   - error: ErrNoActivePass outside an offscreen frame
	BeginOffscreenPass(view *wgpu.TextureView, clear *wgpu.Color) error

	// OffscreenDrawCall encodes a draw within the current offscreen pass.
	//
	// Parameters:
	//   - p: the cached offscreen Pipeline
	//   - meshProvider: the BindGroupProvider holding vertex/index buffers and counts
	//   - instanceCount: the number of instances to draw
	//   - bindGroups: providers bound at groups 0..n-1
	//
	// Returns:
	//   - error: ErrNoActivePass outside an offscreen pass
	OffscreenDrawCall(p pipeline.Pipeline, meshProvider bind_group_provider.BindGroupProvider, instanceCount uint32, bindGroups []bind_group_provider.BindGroupProvider) error

	// EndOffscreenPass ends the current offscreen pass.
	EndOffscreenPass()

	// OffscreenEncoder returns the open offscreen frame encoder, or nil outside an offscreen frame.
	OffscreenEncoder() *wgpu.CommandEncoder

	// EndOffscreenFrame finishes the offscreen encoder and submits it to the queue.
	//
	// Returns:
	//   - error: an error if the encoder could not be finished
	EndOffscreenFrame() error

	// Release releases the MSAA target and any frame state left open.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(ctx gpu.Context, sampleCount MSAASampleCount, presentMode PresentMode, clearColor wgpu.Color, logger *zap.Logger) (*wgpuRendererBackendImpl, error) {
	b := &wgpuRendererBackendImpl{
		mu:            &sync.Mutex{},
		logger:        logger,
		device:        ctx.Device(),
		queue:         ctx.Queue(),
		adapter:       ctx.Adapter(),
		surface:       ctx.Surface(),
		surfaceFormat: wgpu.TextureFormatUndefined,
		sampleCount:   sampleCount,
		clearColor:    clearColor,
	}
	b.SetPresentMode(presentMode)

	if b.surface != nil {
		capabilities := b.surface.GetCapabilities(b.adapter)
		if len(capabilities.Formats) == 0 {
			return nil, errors.New("renderer: surface reports no supported formats")
		}
		b.surfaceFormat = capabilities.Formats[0]
		if len(capabilities.AlphaModes) > 0 {
			b.surfaceAlphaMode = capabilities.AlphaModes[0]
		}
	}
	return b, nil
}

func (b *wgpuRendererBackendImpl) SurfaceFormat() wgpu.TextureFormat {
	return b.surfaceFormat
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return nil
	}
	if width <= 0 || height <= 0 {
		b.surfaceConfigured = false
		return nil
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   b.surfaceAlphaMode,
	})

	b.releaseMSAATarget()
	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if msaaEnabled {
		// The pass draws into the MSAA texture and resolves into the swapchain view.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return fmt.Errorf("renderer: failed to create MSAA texture: %w", err)
		}
		view, err := msaaTexture.CreateView(nil)
		if err != nil {
			msaaTexture.Release()
			return fmt.Errorf("renderer: failed to create MSAA texture view: %w", err)
		}
		b.msaaTexture = msaaTexture
		b.msaaTextureView = view
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.msaaTextureView, // nil when MSAA is off; set in BeginFrame
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    storeOp,
				ClearValue: b.clearColor,
			},
		},
	}
	b.surfaceConfigured = true

	b.logger.Debug("surface configured",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Uint32("samples", count),
	)
	return nil
}

func (b *wgpuRendererBackendImpl) releaseMSAATarget() {
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if b.msaaTexture != nil {
		b.msaaTexture.Release()
		b.msaaTexture = nil
	}
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) SetClearColor(color wgpu.Color) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clearColor = color
	if b.renderPassDescriptor != nil {
		b.renderPassDescriptor.ColorAttachments[0].ClearValue = color
	}
}

func (b *wgpuRendererBackendImpl) ClearColor() wgpu.Color {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clearColor
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return errors.New("renderer: compute frame already open")
	}
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Compute Frame"})
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrFrameSkipped, ErrEncoderUnavailable, err)
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) ComputeEncoder() *wgpu.CommandEncoder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.computeFrameEncoder
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	computeProvider bind_group_provider.BindGroupProvider,
	workGroupCount [3]uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoActivePass
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.Pipeline().(*wgpu.ComputePipeline))
	if computeProvider != nil && computeProvider.BindGroup() != nil {
		pass.SetBindGroup(0, computeProvider.BindGroup(), nil)
	}
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder := b.computeFrameEncoder
	b.computeFrameEncoder = nil
	return b.submit(encoder)
}

// submit finishes an encoder, submits the command buffer and releases both. A nil encoder is a no-op.
func (b *wgpuRendererBackendImpl) submit(encoder *wgpu.CommandEncoder) error {
	if encoder == nil {
		return nil
	}
	defer encoder.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("renderer: failed to finish command encoder: %w", err)
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

// createBindGroupLayouts creates one layout per group index, filling gaps with empty layouts.
func (b *wgpuRendererBackendImpl) createBindGroupLayouts(label string, descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		if g > maxGroup {
			maxGroup = g
		}
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc, ok := descriptors[g]
		if !ok {
			desc = wgpu.BindGroupLayoutDescriptor{Label: fmt.Sprintf("%s empty group %d", label, g)}
		}
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			releaseLayouts(layouts)
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func releaseLayouts(layouts []*wgpu.BindGroupLayout) {
	for _, l := range layouts {
		if l != nil {
			l.Release()
		}
	}
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	format := b.surfaceFormat
	sampleCount := uint32(b.sampleCount)
	if p.Offscreen() {
		format = p.TargetFormat()
		sampleCount = 1
	}
	if format == wgpu.TextureFormatUndefined {
		return fmt.Errorf("%w: pipeline %q targets the surface", ErrNoSurface, p.PipelineKey())
	}

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return err
	}
	defer vs.Release()
	fs := vs
	if fragmentShader.Module() != vertexShader.Module() {
		fs, err = b.device.CreateShaderModule(fragmentShader.Module())
		if err != nil {
			return err
		}
		defer fs.Release()
	}

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	bindGroupLayouts, err := b.createBindGroupLayouts(p.PipelineKey(), merged)
	if err != nil {
		return err
	}
	defer releaseLayouts(bindGroupLayouts)

	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer pipelineLayout.Release()

	target := wgpu.ColorTargetState{
		Format:    format,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    p.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}

	p.SetRenderPipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	bindGroupLayouts, err := b.createBindGroupLayouts(p.PipelineKey(), computeShader.BindGroupLayoutDescriptors())
	if err != nil {
		return err
	}
	defer releaseLayouts(bindGroupLayouts)

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData []byte, vertexCount int, indexData []byte, indexCount int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(vertexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: provider.Label() + " Vertex Buffer",
			Size:  uint64(len(vertexData)),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		b.queue.WriteBuffer(buf, 0, vertexData)
		provider.SetVertexBuffer(buf, vertexCount)
	} else {
		provider.SetVertexCount(vertexCount)
	}

	if len(indexData) > 0 {
		buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: provider.Label() + " Index Buffer",
			Size:  uint64(len(indexData)),
			Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
		b.queue.WriteBuffer(buf, 0, indexData)
		provider.SetIndexBuffer(buf, indexCount)
	}

	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(descriptor.Entries) == 0 {
		return nil
	}

	layout := provider.BindGroupLayout()
	if layout == nil {
		var err error
		layout, err = b.device.CreateBindGroupLayout(&descriptor)
		if err != nil {
			return err
		}
		provider.SetBindGroupLayout(layout)
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		isTexture := entry.Texture.SampleType != wgpu.TextureSampleTypeUndefined
		isSampler := entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined

		switch {
		case isTexture:
			tv := provider.TextureView(binding)
			if tv == nil {
				return fmt.Errorf("%s: texture binding %d has no texture view", provider.Label(), binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding:     entry.Binding,
				TextureView: tv,
			}
		case isSampler:
			samp := provider.Sampler(binding)
			if samp == nil {
				return fmt.Errorf("%s: sampler binding %d has no sampler", provider.Label(), binding)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Sampler: samp,
			}
		default:
			var usage wgpu.BufferUsage
			switch entry.Buffer.Type {
			case wgpu.BufferBindingTypeUniform:
				usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
			case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
				usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
			}
			if overrideUsage, ok := bufferUsageOverrides[binding]; ok {
				usage |= overrideUsage
			}

			buf := provider.Buffer(binding)
			if buf == nil {
				bufSize := entry.Buffer.MinBindingSize
				if overrideSize, ok := bufferSizeOverrides[binding]; ok {
					bufSize = overrideSize
				}
				if bufSize == 0 {
					return fmt.Errorf("%s: binding %d is runtime-sized and needs a size override", provider.Label(), binding)
				}
				var err error
				buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
					Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
					Size:  bufSize,
					Usage: usage,
				})
				if err != nil {
					return err
				}
				provider.SetBuffer(binding, buf)
			}
			bindGroupEntries[i] = wgpu.BindGroupEntry{
				Binding: entry.Binding,
				Buffer:  buf,
				Size:    wgpu.WholeSize,
			}
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	provider.ResetBindGroup()
	provider.SetBindGroup(bindGroup)

	return nil
}

func (b *wgpuRendererBackendImpl) InitTextureView(provider bind_group_provider.BindGroupProvider, bindingKey int, stagingData common.TextureStagingData) error {
	if err := stagingData.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	extent := wgpu.Extent3D{
		Width:              stagingData.Width,
		Height:             stagingData.Height,
		DepthOrArrayLayers: 1,
	}
	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         provider.Label() + " Texture",
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		Size:          extent,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return err
	}

	b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Aspect:   wgpu.TextureAspectAll,
		},
		stagingData.Pixels,
		&wgpu.TextureDataLayout{
			BytesPerRow:  stagingData.BytesPerRow(),
			RowsPerImage: stagingData.Height,
		},
		&extent,
	)

	view, err := tex.CreateView(nil)
	// The view keeps the texture alive.
	tex.Release()
	if err != nil {
		return err
	}
	provider.SetTextureView(bindingKey, view)

	return nil
}

func (b *wgpuRendererBackendImpl) InitSampler(provider bind_group_provider.BindGroupProvider, bindingKey int, samplerStagingData common.SamplerStagingData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         provider.Label() + " Sampler",
		AddressModeU:  common.Coalesce(samplerStagingData.AddressModeU, wgpu.AddressModeClampToEdge),
		AddressModeV:  common.Coalesce(samplerStagingData.AddressModeV, wgpu.AddressModeClampToEdge),
		AddressModeW:  common.Coalesce(samplerStagingData.AddressModeW, wgpu.AddressModeClampToEdge),
		MagFilter:     common.Coalesce(samplerStagingData.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(samplerStagingData.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(samplerStagingData.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(samplerStagingData.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(samplerStagingData.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(samplerStagingData.MaxAnisotropy, 1),
	})
	if err != nil {
		return err
	}
	provider.SetSampler(bindingKey, samp)

	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		buf := w.Provider.Buffer(w.Binding)
		if buf == nil {
			continue
		}
		b.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.surface == nil {
		return fmt.Errorf("%w: %w", ErrFrameSkipped, ErrNoSurface)
	}
	if !b.surfaceConfigured {
		return fmt.Errorf("%w: surface not configured", ErrFrameSkipped)
	}
	// A held surface texture means the previous frame was never presented.
	if b.frameSurface != nil {
		return fmt.Errorf("%w: previous frame surface not yet presented", ErrFrameSkipped)
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("%w: acquire surface texture: %w", ErrFrameSkipped, err)
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("%w: create surface view: %w", ErrFrameSkipped, err)
	}

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Surface Frame"})
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return fmt.Errorf("%w: %w: %w", ErrFrameSkipped, ErrEncoderUnavailable, err)
	}

	if b.sampleCount > 1 {
		b.renderPassDescriptor.ColorAttachments[0].ResolveTarget = view
	} else {
		b.renderPassDescriptor.ColorAttachments[0].View = view
	}

	b.frameEncoder = encoder
	b.framePass = encoder.BeginRenderPass(b.renderPassDescriptor)
	b.frameSurface = surfaceTexture
	b.frameView = view

	return nil
}

func (b *wgpuRendererBackendImpl) DrawCall(
	p pipeline.Pipeline,
	meshProvider bind_group_provider.BindGroupProvider,
	instanceCount uint32,
	bindGroups []bind_group_provider.BindGroupProvider,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoActivePass
	}
	encodeDraw(b.framePass, p, meshProvider, instanceCount, bindGroups)
	return nil
}

// encodeDraw records one draw into a render pass. Meshes with an index buffer draw indexed with uint32 indices;
// meshes without one draw VertexCount vertices, with or without a vertex buffer.
func encodeDraw(
	pass *wgpu.RenderPassEncoder,
	p pipeline.Pipeline,
	meshProvider bind_group_provider.BindGroupProvider,
	instanceCount uint32,
	bindGroups []bind_group_provider.BindGroupProvider,
) {
	pass.SetPipeline(p.Pipeline().(*wgpu.RenderPipeline))

	for i, bg := range bindGroups {
		pass.SetBindGroup(uint32(i), bg.BindGroup(), nil)
	}

	if vb := meshProvider.VertexBuffer(); vb != nil {
		pass.SetVertexBuffer(0, vb, 0, wgpu.WholeSize)
	}
	if ib := meshProvider.IndexBuffer(); ib != nil {
		pass.SetIndexBuffer(ib, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(uint32(meshProvider.IndexCount()), instanceCount, 0, 0, 0)
		return
	}
	pass.Draw(uint32(meshProvider.VertexCount()), instanceCount, 0, 0)
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.framePass == nil {
		return ErrNoActivePass
	}
	b.framePass.End()
	b.framePass = nil

	encoder := b.frameEncoder
	b.frameEncoder = nil
	if err := b.submit(encoder); err != nil {
		b.releaseFrameSurface()
		return err
	}
	return nil
}

func (b *wgpuRendererBackendImpl) releaseFrameSurface() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameSurface()
}

func (b *wgpuRendererBackendImpl) BeginOffscreenFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreenFrameEncoder != nil {
		return errors.New("renderer: offscreen frame already open")
	}
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Offscreen Frame"})
	if err != nil {
		return fmt.Errorf("%w: %w: %w", ErrFrameSkipped, ErrEncoderUnavailable, err)
	}
	b.offscreenFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) BeginOffscreenPass(view *wgpu.TextureView, clear *wgpu.Color) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreenFrameEncoder == nil {
		return ErrNoActivePass
	}
	if b.offscreenPass != nil {
		return errors.New("renderer: offscreen pass already open")
	}

	attachment := wgpu.RenderPassColorAttachment{
		View:    view,
		LoadOp:  wgpu.LoadOpLoad,
		StoreOp: wgpu.StoreOpStore,
	}
	if clear != nil {
		attachment.LoadOp = wgpu.LoadOpClear
		attachment.ClearValue = *clear
	}
	b.offscreenPass = b.offscreenFrameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{attachment},
	})
	return nil
}

func (b *wgpuRendererBackendImpl) OffscreenDrawCall(
	p pipeline.Pipeline,
	meshProvider bind_group_provider.BindGroupProvider,
	instanceCount uint32,
	bindGroups []bind_group_provider.BindGroupProvider,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreenPass == nil {
		return ErrNoActivePass
	}
	encodeDraw(b.offscreenPass, p, meshProvider, instanceCount, bindGroups)
	return nil
}

func (b *wgpuRendererBackendImpl) EndOffscreenPass() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreenPass == nil {
		return
	}
	b.offscreenPass.End()
	b.offscreenPass = nil
}

func (b *wgpuRendererBackendImpl) OffscreenEncoder() *wgpu.CommandEncoder {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offscreenFrameEncoder
}

func (b *wgpuRendererBackendImpl) EndOffscreenFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.offscreenPass != nil {
		b.offscreenPass.End()
		b.offscreenPass = nil
	}
	encoder := b.offscreenFrameEncoder
	b.offscreenFrameEncoder = nil
	return b.submit(encoder)
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, enc := range []*wgpu.CommandEncoder{b.frameEncoder, b.computeFrameEncoder, b.offscreenFrameEncoder} {
		if enc != nil {
			enc.Release()
		}
	}
	b.frameEncoder, b.computeFrameEncoder, b.offscreenFrameEncoder = nil, nil, nil
	b.framePass, b.offscreenPass = nil, nil
	b.releaseFrameSurface()
	b.releaseMSAATarget()
	b.surfaceConfigured = false
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(vertexLayouts)+len(fragmentLayouts))

	for g, desc := range vertexLayouts {
		merged[g] = desc
	}
	for g, fDesc := range fragmentLayouts {
		vDesc, ok := merged[g]
		if !ok {
			merged[g] = fDesc
			continue
		}

		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry, len(vDesc.Entries)+len(fDesc.Entries))
		for _, e := range vDesc.Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range fDesc.Entries {
			if existing, found := entryMap[e.Binding]; found {
				existing.Visibility |= e.Visibility
				entryMap[e.Binding] = existing
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})

		merged[g] = wgpu.BindGroupLayoutDescriptor{
			Label:   vDesc.Label,
			Entries: entries,
		}
	}

	return merged
}
