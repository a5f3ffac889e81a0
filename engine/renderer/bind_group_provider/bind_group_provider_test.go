package bind_group_provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBindGroupProvider(t *testing.T) {
	p := NewBindGroupProvider("histogram bins", WithVertexCount(3))

	assert.Equal(t, "histogram bins", p.Label())
	assert.Equal(t, 3, p.VertexCount())
	assert.Zero(t, p.IndexCount())
	assert.Nil(t, p.BindGroup())
	assert.Nil(t, p.VertexBuffer())
	assert.Nil(t, p.Buffer(0))
	assert.Nil(t, p.TextureView(0))
	assert.Nil(t, p.Sampler(0))
}

func TestBorrowedTextureViews(t *testing.T) {
	p := NewBindGroupProvider("scatter").(*bindGroupProvider)
	p.BorrowTextureView(0, nil)
	assert.True(t, p.borrowed[0])
	assert.False(t, p.borrowed[1])

	p.SetTextureView(0, nil)
	assert.False(t, p.borrowed[0])

	p.BorrowTextureView(2, nil)
	assert.True(t, p.borrowed[2])
	assert.Contains(t, p.textureViews, 2)
}

func TestReleaseClearsState(t *testing.T) {
	p := NewBindGroupProvider("quad").(*bindGroupProvider)
	p.BorrowTextureView(0, nil)
	p.SetVertexBuffer(nil, 4)
	p.SetIndexBuffer(nil, 6)
	p.SetBuffer(1, nil)

	p.Release()

	assert.Empty(t, p.textureViews)
	assert.Empty(t, p.buffers)
	assert.Empty(t, p.borrowed)
	assert.Zero(t, p.VertexCount())
	assert.Zero(t, p.IndexCount())
}
