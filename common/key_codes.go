package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyR = 82 // R key, selects the red histogram channel
	KeyG = 71 // G key, selects the green histogram channel
	KeyB = 66 // B key, selects the blue histogram channel
	KeyH = 72 // H key, requests an asynchronous histogram computation
	KeyP = 80 // P key, toggles the profiler's frame stats logging
)
