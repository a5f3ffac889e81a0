// Package gputest provides a headless gpu.Context for tests.
package gputest

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
)

// NewHeadless returns a headless context released at test cleanup, or skips the test when the machine has no
// usable adapter.
func NewHeadless(tb testing.TB) gpu.Context {
	tb.Helper()
	ctx, err := gpu.NewContext(gpu.WithLabel(tb.Name()))
	if err != nil {
		tb.Skipf("no GPU adapter available: %v", err)
	}
	tb.Cleanup(ctx.Release)
	return ctx
}
