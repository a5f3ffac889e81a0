package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/target"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"

	"go.uber.org/zap"
)

// ErrNoWindow is returned by Run when the engine was built without a window.
var ErrNoWindow = errors.New("engine: no window")

// Sample is one runnable demo. The engine calls Frame once per iteration of its render loop after polling the
// device, so map callbacks from the previous frame have already fired.
type Sample interface {
	// Frame encodes, submits and presents one frame.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - error: renderer.ErrFrameSkipped (wrapped) for a dropped frame, any other error is fatal
	Frame(dt float32) error

	// Resize reacts to a new framebuffer size. The renderer surface has already been reconfigured.
	Resize(width, height int)

	// Release frees every GPU resource the sample created.
	Release()
}

// KeyHandler is implemented by samples that react to key presses. Keys are delivered on the render goroutine.
type KeyHandler interface {
	KeyDown(keyCode uint32)
}

// engine implements the Engine interface.
// Coordinates the render goroutine with the window thread.
type engine struct {
	ctx      gpu.Context
	renderer renderer.Renderer
	window   window.Window
	logger   *zap.Logger
	profiler *profiler.Profiler

	sample Sample

	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	resizeChannel chan [2]int  // latest framebuffer size, drained by the render goroutine
	keyChannel    chan uint32 // key presses, drained by the render goroutine

	errMu sync.Mutex
	err   error

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine drives a Sample: it polls the device, forwards resizes and key presses, runs the frame, and counts
// skipped frames on the profiler.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Profiler returns the profiler frames are counted on.
	Profiler() *profiler.Profiler

	// SetSample sets the sample driven by the loop. Call before Run.
	SetSample(s Sample)

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Step runs one frame on the calling goroutine.
	//
	// Parameters:
	//   - dt: seconds since the previous frame
	//
	// Returns:
	//   - error: a fatal sample error; skipped frames are counted and return nil
	Step(dt float32) error

	// RunFrames runs n frames on the calling goroutine without a window.
	//
	// Parameters:
	//   - n: the number of frames
	//
	// Returns:
	//   - error: the first fatal sample error
	RunFrames(n int) error

	// Run starts the render goroutine and runs the window message loop on the calling goroutine, which must
	// be the goroutine that created the window. Blocks until the window closes or a frame fails.
	//
	// Returns:
	//   - error: ErrNoWindow, or the fatal error that stopped the render loop
	Run() error

	// Quit signals the render goroutine to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates an Engine over an existing context and renderer.
//
// Parameters:
//   - ctx: the GPU context polled once per frame
//   - r: the renderer resized on window resize
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(ctx gpu.Context, r renderer.Renderer, options ...EngineBuilderOption) Engine {
	e := &engine{
		ctx:           ctx,
		renderer:      r,
		logger:        zap.NewNop(),
		quitChannel:   make(chan struct{}),
		resizeChannel: make(chan [2]int, 1),
		keyChannel:    make(chan uint32, 32),
	}

	for _, opt := range options {
		opt(e)
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler()
	}

	if e.window != nil {
		e.window.SetResizeCallback(e.queueResize)
		e.window.SetKeyDownCallback(e.queueKey)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) SetSample(s Sample) {
	e.sample = s
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameLimit(fps)
}

func frameLimit(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// queueResize keeps only the most recent size; a pending older size is replaced.
func (e *engine) queueResize(width, height int) {
	size := [2]int{width, height}
	select {
	case e.resizeChannel <- size:
	default:
		select {
		case <-e.resizeChannel:
		default:
		}
		e.resizeChannel <- size
	}
}

func (e *engine) queueKey(keyCode uint32) {
	select {
	case e.keyChannel <- keyCode:
	default:
		e.logger.Debug("key dropped", zap.Uint32("key", keyCode))
	}
}

func (e *engine) Step(dt float32) error {
	e.ctx.Poll(false)

	select {
	case size := <-e.resizeChannel:
		if err := e.renderer.Resize(size[0], size[1]); err != nil {
			return fmt.Errorf("engine: resize to %dx%d: %w", size[0], size[1], err)
		}
		if e.sample != nil {
			e.sample.Resize(size[0], size[1])
		}
	default:
	}

	for drained := false; !drained; {
		select {
		case key := <-e.keyChannel:
			if key == common.KeyP {
				e.logger.Info("profiler logging toggled", zap.Bool("enabled", e.profiler.ToggleLogging()))
				continue
			}
			if h, ok := e.sample.(KeyHandler); ok {
				h.KeyDown(key)
			}
		default:
			drained = true
		}
	}

	if e.sample == nil {
		return nil
	}
	err := e.sample.Frame(dt)
	switch {
	case err == nil:
		e.profiler.Tick()
		return nil
	case errors.Is(err, renderer.ErrFrameSkipped):
		e.profiler.FrameSkipped(skipReason(err))
		e.logger.Debug("frame skipped", zap.Error(err))
		return nil
	default:
		e.profiler.FrameSkipped(profiler.SkipReasonError)
		return err
	}
}

// skipReason maps the cause wrapped in a skipped frame to its profiler label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, renderer.ErrEncoderUnavailable):
		return profiler.SkipReasonEncoder
	case errors.Is(err, target.ErrNoIdleSlot):
		return profiler.SkipReasonSlot
	default:
		return profiler.SkipReasonSurface
	}
}

func (e *engine) RunFrames(n int) error {
	last := time.Now()
	for i := 0; i < n; i++ {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now
		if err := e.Step(dt); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) Run() error {
	if e.window == nil {
		return ErrNoWindow
	}

	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.wg.Wait()
			_ = e.window.Close()
		default:
		}
	})

	e.wg.Add(1)
	go e.handleRender()
	e.window.ProcessMessages()

	e.signalQuit()
	e.wg.Wait()

	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the render goroutine to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

// handleRender runs the uncapped (or frame-limited) render loop on its own OS thread until quit.
// A panic inside a sample is recovered, logged and reported as the run error.
func (e *engine) handleRender() {
	defer e.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("render goroutine recovered from panic", zap.Any("panic", r))
			e.fail(fmt.Errorf("engine: render panic: %v", r))
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		frameStart := time.Now()
		dt := float32(frameStart.Sub(lastRender).Seconds())
		lastRender = frameStart

		if err := e.Step(dt); err != nil {
			e.logger.Error("frame failed", zap.Error(err))
			e.fail(err)
			return
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}
