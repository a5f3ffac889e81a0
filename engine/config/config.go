// Package config loads the YAML configuration shared by the sample binaries.
// A zero-value file is valid: every field falls back to Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Present modes accepted by RendererConfig.PresentMode.
const (
	PresentModeVSync    = "vsync"
	PresentModeUncapped = "uncapped"
)

// Adapter power preferences accepted by RendererConfig.PowerPreference.
const (
	PowerHighPerformance = "high-performance"
	PowerLowPower        = "low-power"
)

// Histogram source kinds accepted by HistogramConfig.Source.
const (
	SourcePattern = "pattern"
	SourceImage   = "image"
)

// Config is the root configuration document.
type Config struct {
	Sample    string          `yaml:"sample"`
	Window    WindowConfig    `yaml:"window"`
	Renderer  RendererConfig  `yaml:"renderer"`
	Histogram HistogramConfig `yaml:"histogram"`
	Assets    AssetsConfig    `yaml:"assets"`
	Log       LogConfig       `yaml:"log"`
	Profiling ProfilingConfig `yaml:"profiling"`
}

// WindowConfig configures the GLFW window.
type WindowConfig struct {
	Title  string `yaml:"title"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// RendererConfig configures the surface and adapter selection.
type RendererConfig struct {
	PresentMode          string     `yaml:"present_mode"`
	ForceFallbackAdapter bool       `yaml:"force_fallback_adapter"`
	FrameLimit           float64    `yaml:"frame_limit"`
	ClearColor           [4]float64 `yaml:"clear_color"`
	// MSAA is the surface sample count, 1 or 4. Offscreen passes stay single-sampled.
	MSAA                 int        `yaml:"msaa"`
	PowerPreference      string     `yaml:"power_preference"`
}

// HistogramConfig configures the two-stage histogram pipeline.
type HistogramConfig struct {
	// GridSize is the resolution N of the N×N sample grid used by the scatter pass.
	GridSize int `yaml:"grid_size"`
	// Channel selects the source channel scattered by pass 1 (0=R, 1=G, 2=B).
	Channel int `yaml:"channel"`
	// ChannelMask is the color written per scattered point.
	ChannelMask [4]float32 `yaml:"channel_mask"`
	// FramesInFlight is the number of offscreen target slots.
	FramesInFlight int `yaml:"frames_in_flight"`
	// Workers bounds the CPU reference worker pool.
	Workers int `yaml:"workers"`
	// Source is "image" to count Assets.Image, or "pattern" to count the generated color bands.
	Source string `yaml:"source"`
}

// AssetsConfig names the image assets.
type AssetsConfig struct {
	Image          string `yaml:"image"`
	SecondaryImage string `yaml:"secondary_image"`
	MaxDimension   int    `yaml:"max_dimension"`
	FlipVertical   bool   `yaml:"flip_vertical"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// ProfilingConfig configures the frame profiler.
type ProfilingConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when no file is supplied.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Sample: "histogram",
		Window: WindowConfig{
			Title:  "oxy-samples",
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			PresentMode:     PresentModeVSync,
			ClearColor:      [4]float64{0, 0, 0, 1},
			MSAA:            1,
			PowerPreference: PowerHighPerformance,
		},
		Histogram: HistogramConfig{
			GridSize:       128,
			Channel:        2,
			ChannelMask:    [4]float32{1, 0, 0, 1},
			FramesInFlight: 2,
			Workers:        4,
			Source:         SourceImage,
		},
		Assets: AssetsConfig{
			Image:          "assets/Lenna.png",
			SecondaryImage: "assets/barina.jpg",
			MaxDimension:   2048,
			FlipVertical:   true,
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "development",
		},
		Profiling: ProfilingConfig{
			Enabled:  false,
			Interval: time.Second,
		},
	}
}

// Parse decodes YAML over the defaults and validates the result.
//
// Parameters:
//   - data: the raw YAML document
//
// Returns:
//   - Config: the merged configuration
//   - error: a decode error or an ErrInvalidConfig wrapped validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the merged configuration
//   - error: a read, decode, or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the ranges the pipeline relies on.
//
// Returns:
//   - error: the first violation wrapped with ErrInvalidConfig, or nil
func (c Config) Validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	case c.Renderer.PresentMode != PresentModeVSync && c.Renderer.PresentMode != PresentModeUncapped:
		return fmt.Errorf("%w: present_mode %q", ErrInvalidConfig, c.Renderer.PresentMode)
	case c.Renderer.MSAA != 1 && c.Renderer.MSAA != 4:
		return fmt.Errorf("%w: msaa %d is neither 1 nor 4", ErrInvalidConfig, c.Renderer.MSAA)
	case c.Renderer.PowerPreference != PowerHighPerformance && c.Renderer.PowerPreference != PowerLowPower:
		return fmt.Errorf("%w: power_preference %q", ErrInvalidConfig, c.Renderer.PowerPreference)
	case c.Renderer.FrameLimit < 0:
		return fmt.Errorf("%w: frame_limit %v", ErrInvalidConfig, c.Renderer.FrameLimit)
	case c.Histogram.GridSize < 2:
		return fmt.Errorf("%w: grid_size %d is below 2", ErrInvalidConfig, c.Histogram.GridSize)
	case c.Histogram.Channel < 0 || c.Histogram.Channel > 2:
		return fmt.Errorf("%w: channel %d outside [0, 2]", ErrInvalidConfig, c.Histogram.Channel)
	case c.Histogram.FramesInFlight < 1:
		return fmt.Errorf("%w: frames_in_flight %d", ErrInvalidConfig, c.Histogram.FramesInFlight)
	case c.Histogram.Workers < 1:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Histogram.Workers)
	case c.Histogram.Source != SourcePattern && c.Histogram.Source != SourceImage:
		return fmt.Errorf("%w: histogram source %q", ErrInvalidConfig, c.Histogram.Source)
	case c.Assets.MaxDimension < 0:
		return fmt.Errorf("%w: max_dimension %d", ErrInvalidConfig, c.Assets.MaxDimension)
	case c.Profiling.Interval <= 0:
		return fmt.Errorf("%w: profiling interval %v", ErrInvalidConfig, c.Profiling.Interval)
	}
	return nil
}
