package readback

import (
	"encoding/binary"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu/gputest"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestLayout(t *testing.T) {
	tests := []struct {
		name       string
		layout     Layout
		size       uint64
		paddedRow  uint32
		bufferSize uint64
	}{
		{"histogram row", Layout{Width: 256, Height: 1, BytesPerPixel: 8}, 2048, 2048, 2048},
		{"unaligned", Layout{Width: 3, Height: 2, BytesPerPixel: 4}, 24, 256, 512},
		{"exact", Layout{Width: 64, Height: 4, BytesPerPixel: 4}, 1024, 256, 1024},
		{"empty", Layout{}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.layout.Size())
			assert.Equal(t, tt.paddedRow, tt.layout.PaddedBytesPerRow())
			assert.Equal(t, tt.bufferSize, tt.layout.BufferSize())
			assert.Zero(t, tt.layout.PaddedBytesPerRow()%CopyBytesPerRowAlignment)
		})
	}
}

func TestUnpad(t *testing.T) {
	l := Layout{Width: 3, Height: 2, BytesPerPixel: 4}
	src := make([]byte, l.BufferSize())
	for i := 0; i < 12; i++ {
		src[i] = byte(i + 1)
		src[256+i] = byte(100 + i)
	}
	src[12] = 0xff

	out := l.Unpad(src)
	require.Len(t, out, int(l.Size()))
	assert.Equal(t, byte(1), out[0])
	assert.Equal(t, byte(12), out[11])
	assert.Equal(t, byte(100), out[12])
	assert.Equal(t, byte(111), out[23])

	short := l.Unpad(src[:10])
	assert.Len(t, short, int(l.Size()))
	assert.Equal(t, byte(10), short[9])
	assert.Zero(t, short[12])
}

func TestForEachPixel(t *testing.T) {
	t.Run("stops at partial pixel", func(t *testing.T) {
		var seen []int
		ForEachPixel(make([]byte, 10), 4, func(i int, px []byte) bool {
			assert.Len(t, px, 4)
			seen = append(seen, i)
			return true
		})
		assert.Equal(t, []int{0, 1}, seen)
	})

	t.Run("early exit", func(t *testing.T) {
		calls := 0
		ForEachPixel(make([]byte, 64), 8, func(i int, _ []byte) bool {
			calls++
			return i < 2
		})
		assert.Equal(t, 3, calls)
	})

	t.Run("degenerate", func(t *testing.T) {
		ForEachPixel(nil, 4, func(int, []byte) bool {
			t.Fatal("visited empty data")
			return false
		})
		ForEachPixel(make([]byte, 4), 0, func(int, []byte) bool {
			t.Fatal("visited with zero stride")
			return false
		})
	})
}

func TestBytesPerPixel(t *testing.T) {
	tests := []struct {
		format wgpu.TextureFormat
		want   uint32
	}{
		{wgpu.TextureFormatRGBA8Unorm, 4},
		{wgpu.TextureFormatBGRA8Unorm, 4},
		{wgpu.TextureFormatRGBA16Float, 8},
		{wgpu.TextureFormatRGBA32Float, 16},
		{wgpu.TextureFormatR8Unorm, 1},
	}
	for _, tt := range tests {
		got, err := BytesPerPixel(tt.format)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := BytesPerPixel(wgpu.TextureFormatDepth24Plus)
	assert.Error(t, err)
}

func TestDecodeRGBA16Float(t *testing.T) {
	px := make([]byte, 8)
	for c, v := range []float32{1, 0.5, 2048, 0} {
		binary.LittleEndian.PutUint16(px[2*c:], float16.Fromfloat32(v).Bits())
	}
	assert.Equal(t, [4]float32{1, 0.5, 2048, 0}, DecodeRGBA16Float(px))
	assert.Equal(t, [4]float32{1, 0, 0, 0}, DecodeRGBA16Float(px[:2]))
}

func TestDecodeUint32s(t *testing.T) {
	data := []byte{1, 0, 0, 0, 0, 1, 0, 0, 9}
	assert.Equal(t, []uint32{1, 256}, DecodeUint32s(data))
}

func TestReaderBufferRoundTrip(t *testing.T) {
	ctx := gputest.NewHeadless(t)

	_, err := NewReader(ctx, Layout{}, "empty")
	assert.Error(t, err)

	layout := Layout{Width: 4, Height: 1, BytesPerPixel: 4}
	r, err := NewReader(ctx, layout, "test readback")
	require.NoError(t, err)
	defer r.Release()

	src, err := ctx.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: "test source",
		Size:  layout.Size(),
		Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	require.NoError(t, err)
	defer src.Release()

	want := make([]byte, layout.Size())
	for i := range want {
		want[i] = byte(i * 3)
	}
	ctx.Queue().WriteBuffer(src, 0, want)

	enc, err := ctx.Device().CreateCommandEncoder(nil)
	require.NoError(t, err)
	require.NoError(t, r.EncodeBufferCopy(enc, src))
	cmd, err := enc.Finish(nil)
	require.NoError(t, err)
	ctx.Queue().Submit(cmd)
	cmd.Release()
	enc.Release()

	got, err := Wait(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, r.Pending())
}
