// Package gpu owns the WebGPU instance, adapter, device and queue shared by every other package.
// A Context is created once by NewContext and never mutated afterwards; consumers receive it explicitly.
package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

var (
	// ErrNoAdapter is returned when no adapter satisfies the requested options.
	ErrNoAdapter = errors.New("gpu: no compatible adapter")
	// ErrNoDevice is returned when the adapter refuses to create a device.
	ErrNoDevice = errors.New("gpu: device creation failed")
)

// Info describes the adapter backing a Context.
type Info struct {
	Name        string
	Backend     string
	AdapterType string
}

// gpuContext is the implementation of the Context interface.
type gpuContext struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	info     Info
	released bool
}

// Context is the immutable device and queue bundle.
//
// A Context created without a surface descriptor is headless: Surface returns nil and only compute,
// offscreen and readback work is possible.
type Context interface {
	// Instance returns the WebGPU instance.
	Instance() *wgpu.Instance

	// Adapter returns the selected adapter.
	Adapter() *wgpu.Adapter

	// Device returns the logical device.
	Device() *wgpu.Device

	// Queue returns the device's single submission queue.
	Queue() *wgpu.Queue

	// Surface returns the presentation surface, or nil for a headless context.
	Surface() *wgpu.Surface

	// Headless reports whether the context was created without a surface.
	Headless() bool

	// Info returns the adapter description captured at creation.
	Info() Info

	// Poll drives pending map and submission callbacks.
	//
	// Parameters:
	//   - wait: true blocks until the queue is idle; the render loop always passes false
	Poll(wait bool)

	// Release releases the device, adapter, surface and instance in reverse creation order.
	// Safe to call more than once.
	Release()
}

var _ Context = &gpuContext{}

// NewContext requests an adapter and device and returns the resulting Context.
// The calling goroutine is locked to its OS thread, matching the surface requirements of most platforms.
//
// Parameters:
//   - opts: optional ContextBuilderOption values
//
// Returns:
//   - Context: the created context
//   - error: ErrNoAdapter or ErrNoDevice wrapped with the underlying cause
func NewContext(opts ...ContextBuilderOption) (Context, error) {
	b := &contextBuilder{
		label:           "Main Device",
		powerPreference: wgpu.PowerPreferenceHighPerformance,
		maxBindGroups:   4,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	runtime.LockOSThread()

	c := &gpuContext{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}
	if c.instance == nil {
		return nil, fmt.Errorf("%w: instance creation failed", ErrNoAdapter)
	}

	if b.surfaceDescriptor != nil {
		c.surface = c.instance.CreateSurface(b.surfaceDescriptor)
		if c.surface == nil {
			c.Release()
			return nil, fmt.Errorf("%w: surface creation failed", ErrNoAdapter)
		}
	}

	adapter, err := c.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		PowerPreference:      b.powerPreference,
		CompatibleSurface:    c.surface,
	})
	if err != nil || adapter == nil {
		c.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, err)
	}
	c.adapter = adapter

	info := adapter.GetInfo()
	c.info = Info{
		Name:        info.Name,
		Backend:     fmt.Sprint(info.BackendType),
		AdapterType: fmt.Sprint(info.AdapterType),
	}

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = b.maxBindGroups

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: b.label,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil || device == nil {
		c.Release()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	c.device = device
	c.queue = device.GetQueue()

	b.logger.Info("gpu context created",
		zap.String("adapter", c.info.Name),
		zap.String("backend", c.info.Backend),
		zap.String("type", c.info.AdapterType),
		zap.Bool("headless", c.surface == nil),
	)

	return c, nil
}

func (c *gpuContext) Instance() *wgpu.Instance {
	return c.instance
}

func (c *gpuContext) Adapter() *wgpu.Adapter {
	return c.adapter
}

func (c *gpuContext) Device() *wgpu.Device {
	return c.device
}

func (c *gpuContext) Queue() *wgpu.Queue {
	return c.queue
}

func (c *gpuContext) Surface() *wgpu.Surface {
	return c.surface
}

func (c *gpuContext) Headless() bool {
	return c.surface == nil
}

func (c *gpuContext) Info() Info {
	return c.info
}

func (c *gpuContext) Poll(wait bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released || c.device == nil {
		return
	}
	c.device.Poll(wait, nil)
}

func (c *gpuContext) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.device != nil {
		c.device.Release()
		c.device = nil
	}
	if c.adapter != nil {
		c.adapter.Release()
		c.adapter = nil
	}
	if c.surface != nil {
		c.surface.Release()
		c.surface = nil
	}
	if c.instance != nil {
		c.instance.Release()
		c.instance = nil
	}
}
