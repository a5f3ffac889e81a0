package geometry

import "github.com/Carmen-Shannon/oxy-samples/common"

// QuadIndices are the two triangles of every quad built here, over the vertex order TL, BL, BR, TR.
var QuadIndices = []uint32{2, 3, 0, 0, 1, 2}

// Mesh is a small indexed vertex list.
type Mesh[V Vertex | ColorVertex] struct {
	Vertices []V
	Indices  []uint32
}

// VertexBytes returns a byte view of the vertices for GPU upload.
func (m Mesh[V]) VertexBytes() []byte {
	return common.SliceToBytes(m.Vertices)
}

// IndexBytes returns a byte view of the indices for GPU upload.
func (m Mesh[V]) IndexBytes() []byte {
	return common.SliceToBytes(m.Indices)
}

// TexturedQuad returns a quad spanning ±halfExtent with texture coordinates running bottom-left (0,0) to top-right (1,1).
//
// Parameters:
//   - halfExtent: half the side length in clip space
//
// Returns:
//   - Mesh[Vertex]: four vertices in TL, BL, BR, TR order and six indices
func TexturedQuad(halfExtent float32) Mesh[Vertex] {
	h := halfExtent
	return Mesh[Vertex]{
		Vertices: []Vertex{
			{Position: [4]float32{-h, h, 0, 1}, TexCoord: [2]float32{0, 1}, PointSize: 1},
			{Position: [4]float32{-h, -h, 0, 1}, TexCoord: [2]float32{0, 0}, PointSize: 1},
			{Position: [4]float32{h, -h, 0, 1}, TexCoord: [2]float32{1, 0}, PointSize: 1},
			{Position: [4]float32{h, h, 0, 1}, TexCoord: [2]float32{1, 1}, PointSize: 1},
		},
		Indices: append([]uint32(nil), QuadIndices...),
	}
}

// ColoredQuad returns a quad spanning ±halfExtent colored green, blue, red and yellow at TL, BL, BR and TR.
//
// Parameters:
//   - halfExtent: half the side length in clip space
//
// Returns:
//   - Mesh[ColorVertex]: four vertices in TL, BL, BR, TR order and six indices
func ColoredQuad(halfExtent float32) Mesh[ColorVertex] {
	h := halfExtent
	return Mesh[ColorVertex]{
		Vertices: []ColorVertex{
			{Position: [4]float32{-h, h, 0, 1}, Color: [4]float32{0, 1, 0, 1}},
			{Position: [4]float32{-h, -h, 0, 1}, Color: [4]float32{0, 0, 1, 1}},
			{Position: [4]float32{h, -h, 0, 1}, Color: [4]float32{1, 0, 0, 1}},
			{Position: [4]float32{h, h, 0, 1}, Color: [4]float32{1, 1, 0, 1}},
		},
		Indices: append([]uint32(nil), QuadIndices...),
	}
}

// FullscreenQuad returns a textured quad covering clip space.
func FullscreenQuad() Mesh[Vertex] {
	return TexturedQuad(1)
}

// TriangleVertexCount is the number of vertices the triangle sample draws. Its positions are generated in the
// vertex shader from the vertex index, so no buffer is needed.
const TriangleVertexCount = 3
