package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		name string
		n, d uint32
		want uint32
	}{
		{name: "exact", n: 256, d: 8, want: 32},
		{name: "remainder", n: 257, d: 8, want: 33},
		{name: "smaller than divisor", n: 3, d: 8, want: 1},
		{name: "zero", n: 0, d: 8, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CeilDiv(tt.n, tt.d))
		})
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		name             string
		value, alignment uint64
		want             uint64
	}{
		{name: "aligned row", value: 1024, alignment: 256, want: 1024},
		{name: "histogram row", value: 256 * 8, alignment: 256, want: 2048},
		{name: "odd row", value: 3 * 4, alignment: 256, want: 256},
		{name: "zero", value: 0, alignment: 256, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AlignUp(tt.value, tt.alignment))
		})
	}
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 3, Coalesce(0, 0, 3, 4))
	assert.Equal(t, "", Coalesce[string]())
	assert.Equal(t, float32(1.5), Coalesce(float32(0), 1.5))
}

func TestBytesRoundTrip(t *testing.T) {
	bins := []uint32{1, 2, 3, 0xFFFFFFFF}
	raw := SliceToBytes(bins)
	require.Len(t, raw, 16)
	assert.Equal(t, []byte{1, 0, 0, 0}, raw[:4])
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, raw[12:])
	assert.Nil(t, SliceToBytes[uint32](nil))
}

func TestStructToBytes(t *testing.T) {
	type uniforms struct {
		Channel uint32
		_       [3]uint32
		Mask    [4]float32
	}
	u := uniforms{Channel: 2, Mask: [4]float32{1, 0, 0, 1}}
	assert.Len(t, StructToBytes(&u), 32)
	assert.Nil(t, StructToBytes[uniforms](nil))
}

func TestTextureStagingData(t *testing.T) {
	data := TextureStagingData{
		Pixels: []byte{
			1, 2, 3, 4, 5, 6, 7, 8,
			9, 10, 11, 12, 13, 14, 15, 16,
		},
		Width:  2,
		Height: 2,
	}
	require.NoError(t, data.Validate())
	assert.Equal(t, uint32(8), data.BytesPerRow())
	assert.Equal(t, [4]uint8{13, 14, 15, 16}, data.At(1, 1))
	assert.Equal(t, [4]uint8{}, data.At(2, 0))

	data.Pixels = data.Pixels[:12]
	assert.Error(t, data.Validate())
	assert.Error(t, TextureStagingData{}.Validate())
}
