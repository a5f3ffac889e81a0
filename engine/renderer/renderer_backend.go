package renderer

import (
	"fmt"
	"strings"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// ParsePresentMode maps a config string ("vsync" or "uncapped") to a PresentMode.
//
// Parameters:
//   - s: the mode name, case-insensitive
//
// Returns:
//   - PresentMode: the parsed mode
//   - error: an error if the name is unknown
func ParsePresentMode(s string) (PresentMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vsync", "fifo":
		return PresentModeVSync, nil
	case "uncapped", "immediate":
		return PresentModeUncapped, nil
	default:
		return PresentModeVSync, fmt.Errorf("renderer: unknown present mode %q", s)
	}
}

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA) on the surface pass.
// WebGPU guarantees support for 1 (off) and 4. Offscreen passes are always single-sampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// ParseMSAA maps a config sample count to an MSAASampleCount.
//
// Parameters:
//   - count: the sample count, 1 or 4
//
// Returns:
//   - MSAASampleCount: the parsed count
//   - error: an error if the count is not supported
func ParseMSAA(count int) (MSAASampleCount, error) {
	switch count {
	case 1:
		return MSAAOff, nil
	case 4:
		return MSAA4x, nil
	default:
		return MSAAOff, fmt.Errorf("renderer: unsupported msaa sample count %d", count)
	}
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
