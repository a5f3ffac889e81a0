package loader

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/Carmen-Shannon/oxy-samples/common"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// imageLoaderBackend decodes any format registered with the image package.
type imageLoaderBackend struct {
	flipVertical bool
	maxDimension int
}

var _ loaderBackend = &imageLoaderBackend{}

func newImageLoaderBackend(flipVertical bool, maxDimension int) *imageLoaderBackend {
	return &imageLoaderBackend{
		flipVertical: flipVertical,
		maxDimension: maxDimension,
	}
}

func (b *imageLoaderBackend) Decode(path string) (common.TextureStagingData, error) {
	file, err := os.Open(path)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer file.Close()

	staging, _, err := b.DecodeReader(file)
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("failed to decode texture file %s: %w", path, err)
	}
	return staging, nil
}

func (b *imageLoaderBackend) DecodeReader(r io.Reader) (common.TextureStagingData, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return common.TextureStagingData{}, "", err
	}
	rgba := b.toRGBA(img)
	if b.flipVertical {
		flipRows(rgba)
	}
	bounds := rgba.Bounds()
	return common.TextureStagingData{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, format, nil
}

// toRGBA converts img to a tightly packed RGBA image at the origin, scaling it down with Catmull-Rom when its
// longer side exceeds maxDimension.
func (b *imageLoaderBackend) toRGBA(img image.Image) *image.RGBA {
	src := img.Bounds()
	w, h := fitWithin(src.Dx(), src.Dy(), b.maxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == src.Dx() && h == src.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, src.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	return dst
}

// fitWithin scales (w, h) so neither side exceeds limit, keeping the aspect ratio. A limit of 0 disables scaling.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

// flipRows reverses the row order in place so row 0 becomes the bottom of the image.
func flipRows(img *image.RGBA) {
	h := img.Bounds().Dy()
	rowLen := img.Bounds().Dx() * common.BytesPerPixelRGBA8
	tmp := make([]byte, rowLen)
	for top, bottom := 0, h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pix[top*img.Stride : top*img.Stride+rowLen]
		b := img.Pix[bottom*img.Stride : bottom*img.Stride+rowLen]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}
