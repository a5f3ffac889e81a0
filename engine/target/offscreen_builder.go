package target

import "github.com/cogentcore/webgpu/wgpu"

type offscreenBuilder struct {
	format wgpu.TextureFormat
	usage  wgpu.TextureUsage
}

// OffscreenBuilderOption is a functional option applied during NewOffscreen and NewRing.
type OffscreenBuilderOption func(*offscreenBuilder)

// WithFormat sets the texture format. The default is wgpu.TextureFormatRGBA16Float so additive blending
// can accumulate past 1.0.
//
// Parameters:
//   - format: a color-renderable format
//
// Returns:
//   - OffscreenBuilderOption: a function that applies the format
func WithFormat(format wgpu.TextureFormat) OffscreenBuilderOption {
	return func(b *offscreenBuilder) {
		b.format = format
	}
}

// WithUsage adds usage flags on top of RenderAttachment, TextureBinding and CopySrc.
func WithUsage(usage wgpu.TextureUsage) OffscreenBuilderOption {
	return func(b *offscreenBuilder) {
		b.usage |= usage
	}
}
