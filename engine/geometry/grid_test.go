package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridCounts(t *testing.T) {
	for _, n := range []int{2, 3, 7, 128} {
		grid, err := NewGrid(n)
		require.NoError(t, err)

		assert.Equal(t, n*n, grid.VertexCount(), "vertices for N=%d", n)
		assert.Equal(t, 6*(n-1)*(n-1), grid.IndexCount(), "indices for N=%d", n)
		for _, idx := range grid.Indices {
			require.Less(t, idx, uint32(n*n))
		}
	}
}

func TestNewGridTwoByTwo(t *testing.T) {
	grid, err := NewGrid(2)
	require.NoError(t, err)

	wantPositions := [][2]float32{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	wantTexCoords := [][2]float32{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	require.Len(t, grid.Vertices, 4)
	for i, v := range grid.Vertices {
		assert.Equal(t, wantPositions[i][0], v.Position[0], "x of vertex %d", i)
		assert.Equal(t, wantPositions[i][1], v.Position[1], "y of vertex %d", i)
		assert.Equal(t, float32(0), v.Position[2])
		assert.Equal(t, float32(1), v.Position[3])
		assert.Equal(t, wantTexCoords[i], v.TexCoord)
		assert.Equal(t, float32(1), v.PointSize)
	}

	assert.Equal(t, []uint32{0, 1, 2, 1, 3, 2}, grid.Indices)
}

func TestNewGridDegenerate(t *testing.T) {
	grid, err := NewGrid(1)
	require.NoError(t, err)
	assert.Len(t, grid.Vertices, 1)
	assert.Empty(t, grid.Indices)
	assert.NotNil(t, grid.Indices)

	_, err = NewGrid(0)
	assert.ErrorIs(t, err, ErrInvalidResolution)
	_, err = NewGrid(-4)
	assert.ErrorIs(t, err, ErrInvalidResolution)
}

func TestNewGridOptions(t *testing.T) {
	grid, err := NewGrid(3, WithRange(-0.5, 0.5), WithPointSize(10), WithIndices(false))
	require.NoError(t, err)

	assert.Nil(t, grid.Indices)
	first, last := grid.Vertices[0], grid.Vertices[len(grid.Vertices)-1]
	assert.Equal(t, [4]float32{-0.5, -0.5, 0, 1}, first.Position)
	assert.Equal(t, [4]float32{0.5, 0.5, 0, 1}, last.Position)
	assert.Equal(t, [2]float32{1, 1}, last.TexCoord)
	assert.Equal(t, float32(10), first.PointSize)

	center := grid.Vertices[4]
	assert.InDelta(t, 0, center.Position[0], 1e-6)
	assert.InDelta(t, 0.5, center.TexCoord[0], 1e-6)
}

func TestGridRowMajorOrder(t *testing.T) {
	n := 4
	grid, err := NewGrid(n)
	require.NoError(t, err)

	for y := range n {
		for x := range n {
			v := grid.Vertices[y*n+x]
			assert.InDelta(t, float32(x)/float32(n-1), v.TexCoord[0], 1e-6)
			assert.InDelta(t, float32(y)/float32(n-1), v.TexCoord[1], 1e-6)
		}
	}
}

func TestGridIndicesCellWinding(t *testing.T) {
	indices := GridIndices(3)
	require.Len(t, indices, 24)
	// second cell of the first row: TL=1, TR=2, BL=4, BR=5
	assert.Equal(t, []uint32{1, 2, 4, 2, 5, 4}, indices[6:12])
}

func TestGridByteViews(t *testing.T) {
	grid, err := NewGrid(3)
	require.NoError(t, err)

	assert.Len(t, grid.VertexBytes(), 9*int(VertexStride))
	assert.Len(t, grid.IndexBytes(), 24*4)
}

func TestVertexStrides(t *testing.T) {
	assert.Equal(t, uint64(28), VertexStride)
	assert.Equal(t, uint64(32), ColorVertexStride)
	assert.Equal(t, VertexStride, VertexLayout().ArrayStride)
	assert.Len(t, VertexLayout().Attributes, 3)
	assert.Len(t, ColorVertexLayout().Attributes, 2)
}
