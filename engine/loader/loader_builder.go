package loader

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// LoaderBuilderOption is a functional option for configuring a TextureLoader via NewTextureLoader.
type LoaderBuilderOption func(*textureLoader)

// WithFlipVertical sets whether decoded rows are flipped so row 0 is the bottom of the image. Enabled by default.
//
// Parameters:
//   - flip: true to flip rows on decode
//
// Returns:
//   - LoaderBuilderOption: a function that applies the flip option to a loader
func WithFlipVertical(flip bool) LoaderBuilderOption {
	return func(l *textureLoader) {
		l.flipVertical = flip
	}
}

// WithMaxDimension caps the longer side of decoded images. Larger images are downsampled with Catmull-Rom.
// Zero disables the cap.
//
// Parameters:
//   - max: the largest width or height in texels
//
// Returns:
//   - LoaderBuilderOption: a function that applies the limit to a loader
func WithMaxDimension(max int) LoaderBuilderOption {
	return func(l *textureLoader) {
		l.maxDimension = max
	}
}

// WithFormat sets the uploaded texture format. Only the RGBA8 family is accepted since staging data is RGBA8.
func WithFormat(format wgpu.TextureFormat) LoaderBuilderOption {
	return func(l *textureLoader) {
		l.format = format
	}
}

// WithLogger sets the logger used for asset warnings.
func WithLogger(logger *zap.Logger) LoaderBuilderOption {
	return func(l *textureLoader) {
		l.logger = logger.Named("loader")
	}
}
