// Command oxy-samples opens a window and runs one of the tutorial samples.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine"
	"github.com/Carmen-Shannon/oxy-samples/engine/config"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/loader"
	"github.com/Carmen-Shannon/oxy-samples/engine/logger"
	"github.com/Carmen-Shannon/oxy-samples/engine/profiler"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"
	"github.com/Carmen-Shannon/oxy-samples/engine/window"
	"github.com/Carmen-Shannon/oxy-samples/samples"

	"go.uber.org/zap"
)

// GLFW requires every window call on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	sampleName := flag.String("sample", "", "sample to run, see -list")
	configPath := flag.String("config", "", "path to a YAML config file")
	list := flag.Bool("list", false, "print the sample names and exit")
	flag.Parse()

	if *list {
		for _, name := range samples.Names() {
			fmt.Println(name)
		}
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}
	if *sampleName != "" {
		cfg.Sample = *sampleName
	}

	log, err := logger.New(logger.Config{
		Environment: cfg.Log.Environment,
		LogLevel:    cfg.Log.Level,
		ServiceName: "oxy-samples",
		Sample:      cfg.Sample,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if err := runSample(cfg, log); err != nil {
		log.Error("sample stopped", zap.Error(err))
		return 1
	}
	return 0
}

func runSample(cfg config.Config, log *zap.Logger) error {
	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title+" - "+cfg.Sample),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
	)
	if err != nil {
		return err
	}
	defer func() { _ = win.Close() }()

	power, err := gpu.ParsePowerPreference(cfg.Renderer.PowerPreference)
	if err != nil {
		return err
	}
	ctx, err := gpu.NewContext(
		gpu.WithSurfaceDescriptor(win.SurfaceDescriptor()),
		gpu.WithForceFallbackAdapter(cfg.Renderer.ForceFallbackAdapter),
		gpu.WithPowerPreference(power),
		gpu.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer ctx.Release()

	mode, err := renderer.ParsePresentMode(cfg.Renderer.PresentMode)
	if err != nil {
		return err
	}
	msaa, err := renderer.ParseMSAA(cfg.Renderer.MSAA)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(ctx,
		renderer.WithPresentMode(mode),
		renderer.WithMSAA(msaa),
		renderer.WithClearColor(common.ClearColor(cfg.Renderer.ClearColor).ToWGPU()),
		renderer.WithSurfaceSize(win.Width(), win.Height()),
		renderer.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer r.Release()

	prof := profiler.NewProfiler(
		profiler.WithInterval(cfg.Profiling.Interval),
		profiler.WithLogger(log),
		profiler.WithLogging(cfg.Profiling.Enabled),
	)

	textures := loader.NewTextureLoader(ctx,
		loader.WithFlipVertical(cfg.Assets.FlipVertical),
		loader.WithMaxDimension(cfg.Assets.MaxDimension),
		loader.WithLogger(log),
	)
	defer textures.Release()

	sample, err := samples.New(cfg.Sample, samples.Env{
		Ctx:      ctx,
		Renderer: r,
		Loader:   textures,
		Config:   cfg,
		Logger:   log,
		Profiler: prof,
	})
	if err != nil {
		return err
	}
	defer sample.Release()

	e := engine.NewEngine(ctx, r,
		engine.WithWindow(win),
		engine.WithProfiler(prof),
		engine.WithSample(sample),
		engine.WithRenderFrameLimit(cfg.Renderer.FrameLimit),
		engine.WithLogger(log),
	)
	return e.Run()
}
