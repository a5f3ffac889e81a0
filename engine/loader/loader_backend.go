package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-samples/common"
)

// loaderBackend defines the interface for turning encoded image files into RGBA staging data.
// Concrete implementations (e.g., imageLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// Decode reads and decodes the image file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed RGBA8 pixels
	//   - error: error if the file cannot be opened or decoded
	Decode(path string) (common.TextureStagingData, error)

	// DecodeReader decodes an image from a reader stream.
	//
	// Parameters:
	//   - r: the reader providing encoded image data
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed RGBA8 pixels
	//   - string: the format name reported by the registered decoder
	//   - error: error if decoding fails
	DecodeReader(r io.Reader) (common.TextureStagingData, string, error)
}
