package geometry

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/common"
)

// ErrInvalidResolution is returned when a grid is requested with fewer than one vertex per side.
var ErrInvalidResolution = errors.New("grid resolution must be at least 1")

// Grid is a uniform N×N lattice of vertices in row-major order (y outer, x inner) plus the indices of the
// two triangles covering each cell.
type Grid struct {
	N        int
	Vertices []Vertex
	Indices  []uint32
}

// NewGrid builds an N×N grid. Positions are interpolated across the configured range (default [-1, 1]) on both axes
// and texture coordinates across [0, 1]. For N >= 2 the grid carries 6·(N-1)² indices, splitting every cell into
// (TL, TR, BL) and (TR, BR, BL). N == 1 yields a single vertex and no indices.
//
// Parameters:
//   - n: vertices per side
//   - opts: optional GridBuilderOption values
//
// Returns:
//   - Grid: the generated grid
//   - error: ErrInvalidResolution when n < 1
func NewGrid(n int, opts ...GridBuilderOption) (Grid, error) {
	if n < 1 {
		return Grid{}, fmt.Errorf("%w: got %d", ErrInvalidResolution, n)
	}

	g := &gridBuilder{
		min:       -1,
		max:       1,
		pointSize: 1,
		indices:   true,
	}
	for _, opt := range opts {
		opt(g)
	}

	grid := Grid{
		N:        n,
		Vertices: make([]Vertex, 0, n*n),
	}

	for y := range n {
		for x := range n {
			u, v := step(x, n), step(y, n)
			grid.Vertices = append(grid.Vertices, Vertex{
				Position: [4]float32{
					g.min + (g.max-g.min)*u,
					g.min + (g.max-g.min)*v,
					0,
					1,
				},
				TexCoord:  [2]float32{u, v},
				PointSize: g.pointSize,
			})
		}
	}

	if g.indices {
		grid.Indices = GridIndices(n)
	}
	return grid, nil
}

// GridIndices returns the triangle-list indices for an N×N grid, 6·(N-1)² entries for N >= 2 and none otherwise.
//
// Parameters:
//   - n: vertices per side
//
// Returns:
//   - []uint32: the index list
func GridIndices(n int) []uint32 {
	if n < 2 {
		return []uint32{}
	}
	cells := n - 1
	indices := make([]uint32, 0, 6*cells*cells)
	for y := range cells {
		for x := range cells {
			tl := uint32(y*n + x)
			tr := tl + 1
			bl := tl + uint32(n)
			br := bl + 1
			indices = append(indices, tl, tr, bl, tr, br, bl)
		}
	}
	return indices
}

// VertexCount returns the number of vertices in the grid.
func (g Grid) VertexCount() int {
	return len(g.Vertices)
}

// IndexCount returns the number of indices in the grid.
func (g Grid) IndexCount() int {
	return len(g.Indices)
}

// VertexBytes returns a byte view of the vertices for GPU upload. The view aliases the grid.
func (g Grid) VertexBytes() []byte {
	return common.SliceToBytes(g.Vertices)
}

// IndexBytes returns a byte view of the indices for GPU upload. The view aliases the grid.
func (g Grid) IndexBytes() []byte {
	return common.SliceToBytes(g.Indices)
}

// step maps i in [0, n) onto [0, 1]. A single-vertex grid sits at 0.
func step(i, n int) float32 {
	if n < 2 {
		return 0
	}
	return float32(i) / float32(n-1)
}
