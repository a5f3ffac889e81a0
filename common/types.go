// package common contains common types that are used throughout the samples. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// BytesPerPixelRGBA8 is the size of a single RGBA8 texel.
const BytesPerPixelRGBA8 = 4

// TextureStagingData holds RGBA pixel data for a texture pending GPU upload.
// Rows are tightly packed, Width*4 bytes each, with row 0 at the bottom of the image when the data was decoded with a vertical flip.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
}

// BytesPerRow returns the tightly packed row length of the staging data in bytes.
//
// Returns:
//   - uint32: Width * 4
func (t TextureStagingData) BytesPerRow() uint32 {
	return t.Width * BytesPerPixelRGBA8
}

// Validate reports whether the pixel slice holds exactly Width*Height RGBA texels.
//
// Returns:
//   - error: an error describing the mismatch, or nil if the staging data is consistent
func (t TextureStagingData) Validate() error {
	if t.Width == 0 || t.Height == 0 {
		return fmt.Errorf("texture staging data has empty extent %dx%d", t.Width, t.Height)
	}
	want := int(t.Width) * int(t.Height) * BytesPerPixelRGBA8
	if len(t.Pixels) != want {
		return fmt.Errorf("texture staging data holds %d bytes, want %d for %dx%d", len(t.Pixels), want, t.Width, t.Height)
	}
	return nil
}

// At returns the RGBA texel at (x, y). Out-of-range coordinates return the zero texel.
//
// Parameters:
//   - x: the column index
//   - y: the row index
//
// Returns:
//   - [4]uint8: the texel
func (t TextureStagingData) At(x, y uint32) [4]uint8 {
	if x >= t.Width || y >= t.Height {
		return [4]uint8{}
	}
	i := (int(y)*int(t.Width) + int(x)) * BytesPerPixelRGBA8
	if i+3 >= len(t.Pixels) {
		return [4]uint8{}
	}
	return [4]uint8{t.Pixels[i], t.Pixels[i+1], t.Pixels[i+2], t.Pixels[i+3]}
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero fields fall back to linear filtering with clamp-to-edge addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// ClearColor is an RGBA clear value in linear [0, 1] space.
type ClearColor [4]float64

// ToWGPU converts the clear color to its wgpu representation.
//
// Returns:
//   - wgpu.Color: the clear value
func (c ClearColor) ToWGPU() wgpu.Color {
	return wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}

// Commonly used clear colors.
var (
	ClearBlack  = ClearColor{0, 0, 0, 1}
	ClearRed    = ClearColor{1, 0, 0, 1}
	ClearGreen  = ClearColor{0, 1, 0, 1}
	ClearYellow = ClearColor{1, 1, 0, 1}
	ClearCyan   = ClearColor{0, 1, 1, 1}
	ClearGray   = ClearColor{0.1, 0.1, 0.1, 1}
)
