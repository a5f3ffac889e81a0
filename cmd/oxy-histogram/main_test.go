package main

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/histogram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunCPUOnly(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(&out, zap.NewNop(), "", 2, true, false))

	text := out.String()
	assert.Contains(t, text, "pattern  256x256")
	for _, cs := range channelStyles {
		assert.Contains(t, text, cs.name)
	}
	assert.Contains(t, text, "total 65536")
	assert.NotContains(t, text, "gpu")
}

func TestRunMissingImage(t *testing.T) {
	assert.Error(t, run(&bytes.Buffer{}, zap.NewNop(), "testdata/missing.png", 2, true, false))
}

func TestPrintHistogramEmpty(t *testing.T) {
	var out bytes.Buffer
	var h histogram.Histogram
	printHistogram(&out, &h)
	assert.Equal(t, histogram.Channels, bytes.Count(out.Bytes(), []byte("\n")))
	assert.Contains(t, out.String(), "total 0")
}
