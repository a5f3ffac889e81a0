package geometry

// gridBuilder collects NewGrid options before the grid is generated.
type gridBuilder struct {
	min, max  float32
	pointSize float32
	indices   bool
}

// GridBuilderOption is a functional option applied to a grid during construction via NewGrid.
type GridBuilderOption func(*gridBuilder)

// WithRange sets the position range covered by the grid on both axes.
//
// Parameters:
//   - min: the coordinate of the first row and column
//   - max: the coordinate of the last row and column
//
// Returns:
//   - GridBuilderOption: a function that applies the range option to a grid
func WithRange(min, max float32) GridBuilderOption {
	return func(g *gridBuilder) {
		g.min = min
		g.max = max
	}
}

// WithPointSize sets the point size stored on every vertex.
//
// Parameters:
//   - size: the point size in pixels
//
// Returns:
//   - GridBuilderOption: a function that applies the point size option to a grid
func WithPointSize(size float32) GridBuilderOption {
	return func(g *gridBuilder) {
		g.pointSize = size
	}
}

// WithIndices toggles generation of the triangle index list. Point-only draws can skip it.
//
// Parameters:
//   - enabled: true to generate indices (default)
//
// Returns:
//   - GridBuilderOption: a function that applies the indices option to a grid
func WithIndices(enabled bool) GridBuilderOption {
	return func(g *gridBuilder) {
		g.indices = enabled
	}
}
