package gpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// contextBuilder collects NewContext options before the adapter is requested.
type contextBuilder struct {
	label                string
	surfaceDescriptor    *wgpu.SurfaceDescriptor
	forceFallbackAdapter bool
	powerPreference      wgpu.PowerPreference
	maxBindGroups        uint32
	logger               *zap.Logger
}

// ContextBuilderOption is a functional option applied during NewContext.
type ContextBuilderOption func(*contextBuilder)

// WithSurfaceDescriptor attaches a presentation surface. Without it the context is headless.
//
// Parameters:
//   - desc: the platform surface descriptor, typically from Window.SurfaceDescriptor
//
// Returns:
//   - ContextBuilderOption: a function that applies the surface option
func WithSurfaceDescriptor(desc *wgpu.SurfaceDescriptor) ContextBuilderOption {
	return func(b *contextBuilder) {
		b.surfaceDescriptor = desc
	}
}

// WithForceFallbackAdapter forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - ContextBuilderOption: a function that applies the fallback option
func WithForceFallbackAdapter(force bool) ContextBuilderOption {
	return func(b *contextBuilder) {
		b.forceFallbackAdapter = force
	}
}

// WithPowerPreference selects between low-power and high-performance adapters.
//
// Parameters:
//   - pref: the power preference
//
// Returns:
//   - ContextBuilderOption: a function that applies the power preference option
func WithPowerPreference(pref wgpu.PowerPreference) ContextBuilderOption {
	return func(b *contextBuilder) {
		b.powerPreference = pref
	}
}

// ParsePowerPreference maps a config name ("high-performance" or "low-power") to a wgpu.PowerPreference.
//
// Parameters:
//   - s: the preference name, case-insensitive
//
// Returns:
//   - wgpu.PowerPreference: the parsed preference
//   - error: an error if the name is unknown
func ParsePowerPreference(s string) (wgpu.PowerPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high-performance", "high":
		return wgpu.PowerPreferenceHighPerformance, nil
	case "low-power", "low":
		return wgpu.PowerPreferenceLowPower, nil
	default:
		return wgpu.PowerPreferenceHighPerformance, fmt.Errorf("gpu: unknown power preference %q", s)
	}
}

// WithLabel sets the device debug label.
func WithLabel(label string) ContextBuilderOption {
	return func(b *contextBuilder) {
		b.label = label
	}
}

// WithLogger sets the logger used while creating the context.
func WithLogger(l *zap.Logger) ContextBuilderOption {
	return func(b *contextBuilder) {
		if l != nil {
			b.logger = l
		}
	}
}
