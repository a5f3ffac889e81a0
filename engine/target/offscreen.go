// Package target provides fixed-size offscreen render targets and the frame-in-flight ring that fences them.
package target

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// offscreen is the implementation of the Offscreen interface.
type offscreen struct {
	label   string
	width   uint32
	height  uint32
	format  wgpu.TextureFormat
	texture *wgpu.Texture
	view    *wgpu.TextureView
}

// Offscreen is a single-sampled color texture rendered into by one pass and read by a later pass or a copy.
type Offscreen interface {
	// Label returns the debug label of the texture.
	Label() string

	// Texture returns the GPU texture, used as a copy source.
	Texture() *wgpu.Texture

	// View returns the texture view used as a color attachment or a sampled binding.
	View() *wgpu.TextureView

	// Size returns the width and height in texels.
	Size() (width, height uint32)

	// Format returns the texture format.
	Format() wgpu.TextureFormat

	// Release releases the view and the texture.
	Release()
}

var _ Offscreen = &offscreen{}

// NewOffscreen creates a render target usable as a color attachment, a sampled texture and a copy source.
//
// Parameters:
//   - ctx: the device to allocate on
//   - label: a debug label
//   - width: the width in texels
//   - height: the height in texels
//   - opts: optional OffscreenBuilderOption values
//
// Returns:
//   - Offscreen: the created target
//   - error: an error if the extent is empty or creation fails
func NewOffscreen(ctx gpu.Context, label string, width, height uint32, opts ...OffscreenBuilderOption) (Offscreen, error) {
	b := &offscreenBuilder{
		format: wgpu.TextureFormatRGBA16Float,
		usage:  wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	}
	for _, opt := range opts {
		opt(b)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("target: %s has empty extent %dx%d", label, width, height)
	}

	tex, err := ctx.Device().CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        b.format,
		Usage:         b.usage,
	})
	if err != nil {
		return nil, fmt.Errorf("target: failed to create %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("target: failed to create %s view: %w", label, err)
	}

	return &offscreen{
		label:   label,
		width:   width,
		height:  height,
		format:  b.format,
		texture: tex,
		view:    view,
	}, nil
}

func (o *offscreen) Label() string {
	return o.label
}

func (o *offscreen) Texture() *wgpu.Texture {
	return o.texture
}

func (o *offscreen) View() *wgpu.TextureView {
	return o.view
}

func (o *offscreen) Size() (uint32, uint32) {
	return o.width, o.height
}

func (o *offscreen) Format() wgpu.TextureFormat {
	return o.format
}

func (o *offscreen) Release() {
	if o.view != nil {
		o.view.Release()
		o.view = nil
	}
	if o.texture != nil {
		o.texture.Release()
		o.texture = nil
	}
}
