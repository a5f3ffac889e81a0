package shader

import (
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-samples/engine/geometry"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuiltin(t *testing.T, name string) Library {
	t.Helper()
	lib, err := Builtin(name)
	require.NoError(t, err)
	return lib
}

func TestBuiltinNames(t *testing.T) {
	assert.Equal(t, []string{
		"grayscale",
		"histogram_compute",
		"histogram_scatter",
		"quad",
		"texture",
		"triangle",
	}, BuiltinNames())
}

func TestBuiltinEntryPoints(t *testing.T) {
	tests := []struct {
		library    string
		entryPoint string
		shaderType ShaderType
	}{
		{"triangle", "vertexTriangle", ShaderTypeVertex},
		{"triangle", "fragmentTriangle", ShaderTypeFragment},
		{"quad", "vertexColored", ShaderTypeVertex},
		{"quad", "vertexShifted", ShaderTypeVertex},
		{"quad", "fragmentColored", ShaderTypeFragment},
		{"texture", "vertexShader", ShaderTypeVertex},
		{"texture", "fragmentShader", ShaderTypeFragment},
		{"texture", "fragmentShader2", ShaderTypeFragment},
		{"histogram_scatter", "vertexShaderHistogram", ShaderTypeVertex},
		{"histogram_scatter", "fragmentShaderHistogram", ShaderTypeFragment},
		{"histogram_compute", "computeHistogram", ShaderTypeCompute},
		{"grayscale", "convertToGrayscale", ShaderTypeCompute},
	}

	for _, tt := range tests {
		t.Run(tt.library+"/"+tt.entryPoint, func(t *testing.T) {
			lib := mustBuiltin(t, tt.library)
			s, err := lib.Function(tt.entryPoint, tt.shaderType)
			require.NoError(t, err)
			assert.Equal(t, tt.entryPoint, s.EntryPoint())
			assert.Equal(t, tt.shaderType, s.ShaderType())
			assert.Equal(t, tt.library+":"+tt.entryPoint, s.Key())
			assert.Equal(t, lib.Source(), s.Source())
			require.NotNil(t, s.Module())
			assert.Equal(t, tt.library, s.Module().Label)
			assert.Contains(t, lib.EntryPoints(), tt.entryPoint)
		})
	}
}

func TestFunctionNotFound(t *testing.T) {
	lib := mustBuiltin(t, "texture")

	_, err := lib.Function("fragmentShader3", ShaderTypeFragment)
	assert.ErrorIs(t, err, ErrEntryPointNotFound)

	_, err = lib.Function("vertexShader", ShaderTypeFragment)
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestHistogramComputeReflection(t *testing.T) {
	lib := mustBuiltin(t, "histogram_compute")
	s, err := lib.Function("computeHistogram", ShaderTypeCompute)
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Nil(t, s.VertexLayouts())

	layouts := s.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 1)
	entries := s.BindGroupLayoutDescriptor(0).Entries
	require.Len(t, entries, 2)

	tex := entries[0]
	assert.Equal(t, uint32(0), tex.Binding)
	assert.Equal(t, wgpu.ShaderStageCompute, tex.Visibility)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, tex.Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, tex.Texture.ViewDimension)

	bins := entries[1]
	assert.Equal(t, uint32(1), bins.Binding)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, bins.Buffer.Type)
	assert.Equal(t, uint64(3072), bins.Buffer.MinBindingSize)

	assert.Equal(t, "bins", s.BindGroupVarName(0, 1))
	assert.Equal(t, map[int]map[int]string{0: {0: "histogramSource", 1: "bins"}}, s.BindGroupVarNames())
	binding, ok := s.BindGroupFromVarName(0, "histogramSource")
	assert.True(t, ok)
	assert.Equal(t, 0, binding)
	_, ok = s.BindGroupFromVarName(0, "missing")
	assert.False(t, ok)
}

func TestTextureReflection(t *testing.T) {
	lib := mustBuiltin(t, "texture")

	vs, err := lib.Function("vertexShader", ShaderTypeVertex)
	require.NoError(t, err)
	assert.Empty(t, vs.BindGroupLayoutDescriptors())
	require.Len(t, vs.VertexLayouts(), 1)
	assert.Equal(t, geometry.VertexLayout(), vs.VertexLayouts()[0])
	assert.Equal(t, [3]uint32{}, vs.WorkgroupSize())

	fs, err := lib.Function("fragmentShader", ShaderTypeFragment)
	require.NoError(t, err)
	entries := fs.BindGroupLayoutDescriptor(0).Entries
	require.Len(t, entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.ShaderStageFragment, entries[0].Visibility)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[1].Sampler.Type)

	fs2, err := lib.Function("fragmentShader2", ShaderTypeFragment)
	require.NoError(t, err)
	assert.Empty(t, fs2.BindGroupLayoutDescriptors())
}

func TestQuadReflection(t *testing.T) {
	lib := mustBuiltin(t, "quad")

	plain, err := lib.Function("vertexColored", ShaderTypeVertex)
	require.NoError(t, err)
	assert.Empty(t, plain.BindGroupLayoutDescriptors())
	require.Len(t, plain.VertexLayouts(), 1)
	assert.Equal(t, geometry.ColorVertexLayout(), plain.VertexLayouts()[0])

	shifted, err := lib.Function("vertexShifted", ShaderTypeVertex)
	require.NoError(t, err)
	entries := shifted.BindGroupLayoutDescriptor(0).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(16), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageVertex, entries[0].Visibility)
}

func TestScatterReflection(t *testing.T) {
	lib := mustBuiltin(t, "histogram_scatter")

	vs, err := lib.Function("vertexShaderHistogram", ShaderTypeVertex)
	require.NoError(t, err)
	entries := vs.BindGroupLayoutDescriptor(0).Entries
	require.Len(t, entries, 2)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[0].Texture.SampleType)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[1].Buffer.Type)
	assert.Equal(t, uint64(32), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, geometry.VertexLayout(), vs.VertexLayouts()[0])

	fs, err := lib.Function("fragmentShaderHistogram", ShaderTypeFragment)
	require.NoError(t, err)
	assert.Empty(t, fs.BindGroupLayoutDescriptors())
}

func TestGrayscaleReflection(t *testing.T) {
	lib := mustBuiltin(t, "grayscale")
	s, err := lib.Function("convertToGrayscale", ShaderTypeCompute)
	require.NoError(t, err)

	entries := s.BindGroupLayoutDescriptor(0).Entries
	require.Len(t, entries, 3)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[1].Buffer.Type)
	assert.Equal(t, uint64(0), entries[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[2].Buffer.Type)
	assert.Equal(t, uint64(16), entries[2].Buffer.MinBindingSize)
}

func TestStorageAccessModes(t *testing.T) {
	readOnly := `
@group(0) @binding(0) var<storage, read> heights: array<f32>;

@vertex
fn vs(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(heights[i], 0.0, 0.0, 1.0);
}
`
	lib, err := NewLibrary("read_only", readOnly)
	require.NoError(t, err)
	s, err := lib.Function("vs", ShaderTypeVertex)
	require.NoError(t, err)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, s.BindGroupLayoutDescriptor(0).Entries[0].Buffer.Type)

	writable := `
@group(0) @binding(0) var<storage, read_write> heights: array<f32>;

@vertex
fn vs(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(heights[i], 0.0, 0.0, 1.0);
}
`
	_, err = NewLibrary("writable", writable)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidSource)
}

func TestNewLibraryInvalidSource(t *testing.T) {
	_, err := NewLibrary("broken", "fn main( {")
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestLoadLibrary(t *testing.T) {
	fsys := fstest.MapFS{
		"shaders/solid.wgsl": &fstest.MapFile{Data: []byte(`
@fragment
fn solid() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 1.0, 0.0, 1.0);
}
`)},
	}

	lib, err := LoadLibrary(fsys, "shaders/solid.wgsl")
	require.NoError(t, err)
	assert.Equal(t, "solid", lib.Key())
	assert.Equal(t, []string{"solid"}, lib.EntryPoints())
	require.NotNil(t, lib.IR())

	_, err = LoadLibrary(fsys, "shaders/missing.wgsl")
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	lib := mustBuiltin(t, "triangle")

	out, err := lib.Translate(TargetWGSL, "")
	require.NoError(t, err)
	assert.Equal(t, lib.Source(), string(out))

	_, err = lib.Translate(TargetGLSL, "nope")
	assert.ErrorIs(t, err, ErrEntryPointNotFound)
}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{"wgsl", TargetWGSL, false},
		{"MSL", TargetMSL, false},
		{"metal", TargetMSL, false},
		{"glsl", TargetGLSL, false},
		{" hlsl ", TargetHLSL, false},
		{"spv", TargetSPIRV, false},
		{"spirv", TargetSPIRV, false},
		{"dxil", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}
}
