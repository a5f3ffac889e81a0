package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTexturedQuad(t *testing.T) {
	q := TexturedQuad(0.5)
	require.Len(t, q.Vertices, 4)
	assert.Equal(t, []uint32{2, 3, 0, 0, 1, 2}, q.Indices)

	wantUV := [][2]float32{{0, 1}, {0, 0}, {1, 0}, {1, 1}}
	wantXY := [][2]float32{{-0.5, 0.5}, {-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}}
	for i, v := range q.Vertices {
		assert.Equal(t, wantUV[i], v.TexCoord)
		assert.Equal(t, wantXY[i], [2]float32{v.Position[0], v.Position[1]})
	}
	assert.Len(t, q.VertexBytes(), 4*int(VertexStride))
	assert.Len(t, q.IndexBytes(), 24)
}

func TestColoredQuad(t *testing.T) {
	q := ColoredQuad(0.5)
	require.Len(t, q.Vertices, 4)
	assert.Equal(t, [4]float32{0, 1, 0, 1}, q.Vertices[0].Color)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, q.Vertices[1].Color)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, q.Vertices[2].Color)
	assert.Equal(t, [4]float32{1, 1, 0, 1}, q.Vertices[3].Color)
}

func TestQuadIndicesAreCopied(t *testing.T) {
	q := TexturedQuad(1)
	q.Indices[0] = 99
	assert.Equal(t, uint32(2), QuadIndices[0])
	assert.Equal(t, float32(-1), FullscreenQuad().Vertices[0].Position[0])
}
