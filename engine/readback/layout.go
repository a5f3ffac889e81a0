// Package readback copies GPU textures and buffers into CPU-mappable buffers and hands the tightly packed bytes
// to a completion callback once the map resolves.
package readback

import (
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/x448/float16"
)

// CopyBytesPerRowAlignment is the WebGPU alignment of BytesPerRow in texture-to-buffer copies.
const CopyBytesPerRowAlignment = 256

// Layout describes a W×H region of pixels and its padded form in a readback buffer.
type Layout struct {
	Width         uint32
	Height        uint32
	BytesPerPixel uint32
}

// Size returns the tightly packed size in bytes, W·H·bpp.
func (l Layout) Size() uint64 {
	return uint64(l.Width) * uint64(l.Height) * uint64(l.BytesPerPixel)
}

// BytesPerRow returns the unpadded row length in bytes.
func (l Layout) BytesPerRow() uint32 {
	return l.Width * l.BytesPerPixel
}

// PaddedBytesPerRow returns the row length rounded up to CopyBytesPerRowAlignment.
func (l Layout) PaddedBytesPerRow() uint32 {
	row := l.BytesPerRow()
	return (row + CopyBytesPerRowAlignment - 1) / CopyBytesPerRowAlignment * CopyBytesPerRowAlignment
}

// BufferSize returns the size of the mappable buffer a copy of this layout needs.
func (l Layout) BufferSize() uint64 {
	return uint64(l.PaddedBytesPerRow()) * uint64(l.Height)
}

// Unpad strips the per-row copy padding from src and returns exactly Size() bytes in a new slice.
// Rows missing from a short src are left zeroed.
//
// Parameters:
//   - src: the mapped buffer contents laid out with PaddedBytesPerRow
//
// Returns:
//   - []byte: the tightly packed pixels
func (l Layout) Unpad(src []byte) []byte {
	out := make([]byte, l.Size())
	row := int(l.BytesPerRow())
	padded := int(l.PaddedBytesPerRow())
	for y := 0; y < int(l.Height); y++ {
		start := y * padded
		if start >= len(src) {
			break
		}
		end := min(start+row, len(src))
		copy(out[y*row:], src[start:end])
	}
	return out
}

// BytesPerPixel returns the texel size of the color formats this package can read back.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - uint32: bytes per texel
//   - error: an error for formats without a fixed texel size here
func BytesPerPixel(format wgpu.TextureFormat) (uint32, error) {
	switch format {
	case wgpu.TextureFormatR8Unorm:
		return 1, nil
	case wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatRGBA8UnormSrgb,
		wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb,
		wgpu.TextureFormatR32Float, wgpu.TextureFormatR32Uint:
		return 4, nil
	case wgpu.TextureFormatRGBA16Float:
		return 8, nil
	case wgpu.TextureFormatRGBA32Float:
		return 16, nil
	default:
		return 0, fmt.Errorf("readback: unsupported format %v", format)
	}
}

// ForEachPixel calls fn for every complete pixel in data. A trailing partial pixel is never visited.
// Iteration stops early when fn returns false.
//
// Parameters:
//   - data: tightly packed pixels
//   - bpp: bytes per pixel, at least 1
//   - fn: receives the pixel index and its bytes
func ForEachPixel(data []byte, bpp int, fn func(i int, px []byte) bool) {
	if bpp < 1 {
		return
	}
	for i, off := 0, 0; off+bpp-1 < len(data); i, off = i+1, off+bpp {
		if !fn(i, data[off:off+bpp]) {
			return
		}
	}
}

// DecodeRGBA16Float converts one RGBA16Float texel to float32 components.
//
// Parameters:
//   - px: 8 little-endian bytes
//
// Returns:
//   - [4]float32: the R, G, B and A components
func DecodeRGBA16Float(px []byte) [4]float32 {
	var out [4]float32
	for c := 0; c < 4 && 2*c+1 < len(px); c++ {
		out[c] = float16.Frombits(binary.LittleEndian.Uint16(px[2*c:])).Float32()
	}
	return out
}

// DecodeUint32s reinterprets little-endian bytes as uint32 values. Trailing bytes short of a word are ignored.
func DecodeUint32s(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}
