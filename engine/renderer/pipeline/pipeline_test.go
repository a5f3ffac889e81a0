package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/geometry"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("defaults", PipelineTypeRender)

	assert.Equal(t, "defaults", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.FrontFaceCCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	assert.Equal(t, BlendAlpha(), p.BlendState())
	assert.False(t, p.Offscreen())
	assert.Equal(t, wgpu.TextureFormatUndefined, p.TargetFormat())
	assert.Nil(t, p.VertexLayouts())
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.Pipeline().(*wgpu.RenderPipeline))

	p.Release()
}

func TestScatterPipelineOptions(t *testing.T) {
	lib, err := shader.Builtin("histogram_scatter")
	require.NoError(t, err)
	vs, err := lib.Function("vertexShaderHistogram", shader.ShaderTypeVertex)
	require.NoError(t, err)
	fs, err := lib.Function("fragmentShaderHistogram", shader.ShaderTypeFragment)
	require.NoError(t, err)

	p := NewPipeline("scatter", PipelineTypeRender,
		WithVertexShader(vs),
		WithFragmentShader(fs),
		WithTopology(wgpu.PrimitiveTopologyPointList),
		WithAdditiveBlend(),
		WithTargetFormat(wgpu.TextureFormatRGBA16Float),
	)

	assert.True(t, p.BlendEnabled())
	blend := p.BlendState()
	for _, c := range []wgpu.BlendComponent{blend.Color, blend.Alpha} {
		assert.Equal(t, wgpu.BlendFactorOne, c.SrcFactor)
		assert.Equal(t, wgpu.BlendFactorOne, c.DstFactor)
		assert.Equal(t, wgpu.BlendOperationAdd, c.Operation)
	}
	assert.True(t, p.Offscreen())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, p.TargetFormat())
	assert.Equal(t, wgpu.PrimitiveTopologyPointList, p.Topology())
	assert.Equal(t, vs, p.Shader(shader.ShaderTypeVertex))
	assert.Equal(t, fs, p.Shader(shader.ShaderTypeFragment))
	assert.Equal(t, vs.VertexLayouts(), p.VertexLayouts())
}

func TestVertexLayoutOverride(t *testing.T) {
	lib, err := shader.Builtin("triangle")
	require.NoError(t, err)
	vs, err := lib.Function("vertexTriangle", shader.ShaderTypeVertex)
	require.NoError(t, err)

	p := NewPipeline("override", PipelineTypeRender, WithVertexShader(vs))
	assert.Nil(t, p.VertexLayouts())

	p = NewPipeline("override", PipelineTypeRender, WithVertexShader(vs), WithVertexLayouts(geometry.VertexLayout()))
	require.Len(t, p.VertexLayouts(), 1)
	assert.Equal(t, geometry.VertexStride, p.VertexLayouts()[0].ArrayStride)
}

func TestComputePipeline(t *testing.T) {
	lib, err := shader.Builtin("histogram_compute")
	require.NoError(t, err)
	cs, err := lib.Function("computeHistogram", shader.ShaderTypeCompute)
	require.NoError(t, err)

	p := NewPipeline("histogram", PipelineTypeCompute, WithComputeShader(cs))
	assert.Equal(t, PipelineTypeCompute, p.Type())
	assert.Equal(t, cs, p.Shader(shader.ShaderTypeCompute))
	assert.Nil(t, p.Pipeline().(*wgpu.ComputePipeline))
}

func TestRasterOptions(t *testing.T) {
	p := NewPipeline("raster", PipelineTypeRender,
		WithCullMode(wgpu.CullModeBack),
		WithFrontFace(wgpu.FrontFaceCW),
		WithWriteMask(wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskAlpha),
		WithBlendEnabled(true),
		WithBlendState(BlendAdditive()),
	)

	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, wgpu.FrontFaceCW, p.FrontFace())
	assert.Equal(t, wgpu.ColorWriteMaskRed|wgpu.ColorWriteMaskAlpha, p.WriteMask())
	assert.True(t, p.BlendEnabled())
	assert.Equal(t, BlendAdditive(), p.BlendState())
}
