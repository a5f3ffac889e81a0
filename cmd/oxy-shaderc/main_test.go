package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBuiltins(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"list"}, &out))
	for _, name := range shader.BuiltinNames() {
		assert.Contains(t, out.String(), name)
	}
	assert.Contains(t, out.String(), "convertToGrayscale")
}

func TestTranslateWGSLIsIdentity(t *testing.T) {
	lib, err := shader.Builtin("texture")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run([]string{"translate", "-target", "wgsl", "-builtin", "texture"}, &out))
	assert.Equal(t, lib.Source(), out.String())
}

func TestTranslateToFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "fill.wgsl")
	require.NoError(t, os.WriteFile(src, []byte(`
@fragment
fn fill() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 1.0, 0.0, 1.0);
}
`), 0o644))

	dst := filepath.Join(dir, "fill.metal")
	require.NoError(t, run([]string{"translate", "-target", "metal", "-file", src, "-o", dst}, &bytes.Buffer{}))
	code, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(code), "fill")
}

func TestUsageErrors(t *testing.T) {
	assert.ErrorIs(t, run(nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run([]string{"compile"}, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run([]string{"translate", "-target", "msl"}, &bytes.Buffer{}), errUsage)
	assert.Error(t, run([]string{"translate", "-target", "dxil", "-builtin", "texture"}, &bytes.Buffer{}))
}
