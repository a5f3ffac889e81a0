package loader

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// writePNG writes a w×h PNG whose top row is red and every other row is blue.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.NRGBA{B: 255, A: 255}
		if y == 0 {
			c = color.NRGBA{R: 255, A: 255}
		}
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestDecodeFlipsRows(t *testing.T) {
	path := writePNG(t, t.TempDir(), "rows.png", 3, 4)

	flipped, err := NewTextureLoader(nil).Decode(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), flipped.Width)
	assert.Equal(t, uint32(4), flipped.Height)
	require.NoError(t, flipped.Validate())
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, flipped.At(0, 3))
	assert.Equal(t, [4]uint8{0, 0, 255, 255}, flipped.At(0, 0))

	upright, err := NewTextureLoader(nil, WithFlipVertical(false)).Decode(path)
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, upright.At(2, 0))
}

func TestDecodeDownscales(t *testing.T) {
	path := writePNG(t, t.TempDir(), "big.png", 64, 16)

	staging, err := NewTextureLoader(nil, WithMaxDimension(32)).Decode(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(32), staging.Width)
	assert.Equal(t, uint32(8), staging.Height)
	require.NoError(t, staging.Validate())
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, limit int
		wantW       int
		wantH       int
	}{
		{512, 512, 0, 512, 512},
		{100, 50, 200, 100, 50},
		{400, 100, 200, 200, 50},
		{100, 400, 200, 50, 200},
		{1000, 1, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.limit)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	l := NewTextureLoader(nil)

	_, err := l.Decode(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o644))
	_, err = l.Decode(junk)
	assert.Error(t, err)
}

func TestDecodeAll(t *testing.T) {
	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 2, 2)
	b := writePNG(t, dir, "b.png", 5, 1)
	l := NewTextureLoader(nil)

	out, err := l.DecodeAll(a, b)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(2), out[0].Width)
	assert.Equal(t, uint32(5), out[1].Width)

	_, err = l.DecodeAll(a, filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestTestPattern(t *testing.T) {
	p := TestPattern(256, 256)
	require.NoError(t, p.Validate())

	tests := []struct {
		name     string
		col, row uint32
		want     [4]uint8
	}{
		{"gradient origin", 0, 0, [4]uint8{0, 0, 125, 255}},
		{"gradient left", 10, 20, [4]uint8{15, 7, 132, 255}},
		{"gradient right", 255, 255, [4]uint8{255, 127, 252, 255}},
		{"purple band", 60, 0, [4]uint8{128, 70, 170, 255}},
		{"brown band", 159, 100, [4]uint8{138, 100, 50, 255}},
		{"khaki band", 194, 200, [4]uint8{148, 140, 100, 255}},
		{"gradient after bands", 195, 1, [4]uint8{98, 49, 174, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.At(tt.col, tt.row))
		})
	}
}

func TestSolidColorAndChecker(t *testing.T) {
	s := SolidColor(4, 3, [4]byte{1, 2, 3, 4})
	require.NoError(t, s.Validate())
	assert.Equal(t, [4]uint8{1, 2, 3, 4}, s.At(3, 2))

	c := Checker()
	require.NoError(t, c.Validate())
	assert.Equal(t, [4]uint8{255, 0, 255, 255}, c.At(0, 0))
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, c.At(1, 0))
	assert.Equal(t, [4]uint8{255, 0, 255, 255}, c.At(1, 1))
}

func TestLoadOrPlaceholder(t *testing.T) {
	ctx := gputest.NewHeadless(t)
	core, logs := observer.New(zap.WarnLevel)
	l := NewTextureLoader(ctx, WithLogger(zap.New(core)))
	defer l.Release()

	tex, err := l.LoadOrPlaceholder(filepath.Join(t.TempDir(), "missing.png"))
	require.NoError(t, err)
	assert.True(t, tex.Placeholder)
	assert.Equal(t, uint32(2), tex.Width)
	assert.NotNil(t, tex.View)
	assert.Equal(t, 1, logs.FilterMessage("texture asset unavailable, using placeholder").Len())

	path := writePNG(t, t.TempDir(), "ok.png", 8, 8)
	loaded, err := l.LoadOrPlaceholder(path)
	require.NoError(t, err)
	assert.False(t, loaded.Placeholder)
	assert.Same(t, loaded, l.Get(path))

	again, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, loaded, again)

	_, err = l.Upload("bad", SolidColor(0, 0, [4]byte{}))
	assert.Error(t, err)
}

func TestUploadConcurrentSameName(t *testing.T) {
	ctx := gputest.NewHeadless(t)
	l := NewTextureLoader(ctx)
	defer l.Release()

	const uploaders = 8
	results := make([]*Texture, uploaders)
	var wg sync.WaitGroup
	for i := range uploaders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tex, err := l.Upload("shared", TestPattern(16, 16))
			assert.NoError(t, err)
			results[i] = tex
		}()
	}
	wg.Wait()

	cached := l.Get("shared")
	require.NotNil(t, cached)
	require.NotNil(t, cached.View)
	for _, tex := range results {
		assert.Same(t, cached, tex)
	}
}
