package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderOptions(t *testing.T) {
	w := &engineWindow{title: "default", width: 1280, height: 720}

	WithTitle("")(w)
	assert.Equal(t, "default", w.title)
	WithTitle("histogram")(w)
	assert.Equal(t, "histogram", w.title)

	WithSize(0, 480)(w)
	assert.Equal(t, 1280, w.width)
	assert.Equal(t, 480, w.height)

	WithSizeLimits(100, 50, 800, 600)(w)
	assert.Equal(t, [4]int{100, 50, 800, 600}, [4]int{w.minWidth, w.minHeight, w.maxWidth, w.maxHeight})
}

func TestNewWindowRejectsInvertedLimits(t *testing.T) {
	w, err := NewWindow(WithSizeLimits(800, 600, 640, 480))
	require.Error(t, err)
	assert.Nil(t, w)
}

func TestUninitializedWindow(t *testing.T) {
	w := &engineWindow{}
	assert.False(t, w.IsRunning())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.Error(t, w.Close())
}
