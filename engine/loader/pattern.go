package loader

import "github.com/Carmen-Shannon/oxy-samples/common"

// TestPattern builds the colour-band test image: a gradient on the outer columns and three flat bands between.
// Columns are laid out for a 256-wide image; wider images repeat the gradient past column 195.
//
// Parameters:
//   - width: the image width in texels
//   - height: the image height in texels
//
// Returns:
//   - common.TextureStagingData: the RGBA8 pattern
func TestPattern(width, height uint32) common.TextureStagingData {
	pixels := make([]byte, int(width)*int(height)*common.BytesPerPixelRGBA8)
	for row := uint32(0); row < height; row++ {
		for col := uint32(0); col < width; col++ {
			var px [4]byte
			switch {
			case col >= 60 && col < 105:
				px = [4]byte{128, 70, 170, 255}
			case col >= 105 && col < 160:
				px = [4]byte{138, 100, 50, 255}
			case col >= 160 && col < 195:
				px = [4]byte{148, 140, 100, 255}
			default:
				r := byte((row + col) / 2)
				px = [4]byte{r, r / 2, r/2 + 125, 255}
			}
			i := (int(row)*int(width) + int(col)) * common.BytesPerPixelRGBA8
			copy(pixels[i:], px[:])
		}
	}
	return common.TextureStagingData{Pixels: pixels, Width: width, Height: height}
}

// SolidColor builds a uniform RGBA8 image.
//
// Parameters:
//   - width: the image width in texels
//   - height: the image height in texels
//   - rgba: the texel value
//
// Returns:
//   - common.TextureStagingData: the filled image
func SolidColor(width, height uint32, rgba [4]byte) common.TextureStagingData {
	pixels := make([]byte, int(width)*int(height)*common.BytesPerPixelRGBA8)
	for i := 0; i < len(pixels); i += common.BytesPerPixelRGBA8 {
		copy(pixels[i:], rgba[:])
	}
	return common.TextureStagingData{Pixels: pixels, Width: width, Height: height}
}

// Checker builds the 2×2 magenta/black placeholder used when an asset cannot be decoded.
func Checker() common.TextureStagingData {
	return common.TextureStagingData{
		Pixels: []byte{
			255, 0, 255, 255, 0, 0, 0, 255,
			0, 0, 0, 255, 255, 0, 255, 255,
		},
		Width:  2,
		Height: 2,
	}
}
