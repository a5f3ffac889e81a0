package histogram

import (
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"

	"go.uber.org/zap"
)

// ComputerBuilderOption is a functional option applied during NewComputer.
type ComputerBuilderOption func(*computer)

// WithComputerLogger sets the logger that reports blocking computations.
//
// Parameters:
//   - logger: the parent logger
//
// Returns:
//   - ComputerBuilderOption: a function that applies the logger to a computer
func WithComputerLogger(logger *zap.Logger) ComputerBuilderOption {
	return func(c *computer) {
		c.logger = logger.Named("histogram")
	}
}

// WithProfiler records blocking computation times on the profiler's oxy_histogram_compute_seconds histogram.
func WithProfiler(p *profiler.Profiler) ComputerBuilderOption {
	return func(c *computer) {
		c.profiler = p
	}
}

// ScatterBuilderOption is a functional option applied during NewScatter.
type ScatterBuilderOption func(*scatter)

// WithGridSize sets the resolution N of the N×N vertex grid sampling the source. The default is 128.
//
// Parameters:
//   - n: vertices per side, at least 2
//
// Returns:
//   - ScatterBuilderOption: a function that applies the grid size to a scatter pass
func WithGridSize(n int) ScatterBuilderOption {
	return func(s *scatter) {
		s.gridSize = n
	}
}

// WithFramesInFlight sets the number of offscreen slots. The default is 2.
func WithFramesInFlight(n int) ScatterBuilderOption {
	return func(s *scatter) {
		s.framesInFlight = n
	}
}

// WithChannel sets the initial channel and the colour each scattered point adds.
//
// Parameters:
//   - channel: ChannelRed, ChannelGreen or ChannelBlue
//   - mask: the additive colour per point
//
// Returns:
//   - ScatterBuilderOption: a function that applies the channel to a scatter pass
func WithChannel(channel int, mask [4]float32) ScatterBuilderOption {
	return func(s *scatter) {
		s.channel = channel
		s.mask = mask
	}
}

// WithScatterLogger sets the logger for slot and readback events.
func WithScatterLogger(logger *zap.Logger) ScatterBuilderOption {
	return func(s *scatter) {
		s.logger = logger.Named("scatter")
	}
}
