// Package geometry builds the CPU-side vertex and index data drawn by the samples.
// Everything here is a pure function of its inputs; GPU upload lives in the renderer.
package geometry

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// Vertex is a single grid or quad vertex. It is packed without padding so the GPU stride is 28 bytes.
//
// PointSize is carried for layout parity with the shaders; WebGPU rasterises points at one pixel regardless.
type Vertex struct {
	Position  [4]float32
	TexCoord  [2]float32
	PointSize float32
}

// ColorVertex is a vertex carrying a per-vertex color instead of a texture coordinate.
type ColorVertex struct {
	Position [4]float32
	Color    [4]float32
}

// VertexStride is the size of Vertex in bytes.
const VertexStride = uint64(unsafe.Sizeof(Vertex{}))

// ColorVertexStride is the size of ColorVertex in bytes.
const ColorVertexStride = uint64(unsafe.Sizeof(ColorVertex{}))

// VertexLayout returns the buffer layout matching Vertex: position at location 0, texture coordinate at location 1,
// point size at location 2.
//
// Returns:
//   - wgpu.VertexBufferLayout: the per-vertex layout
func VertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32, Offset: 24, ShaderLocation: 2},
		},
	}
}

// ColorVertexLayout returns the buffer layout matching ColorVertex: position at location 0, color at location 1.
//
// Returns:
//   - wgpu.VertexBufferLayout: the per-vertex layout
func ColorVertexLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: ColorVertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 1},
		},
	}
}
