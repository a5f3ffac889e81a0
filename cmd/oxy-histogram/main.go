// Command oxy-histogram computes the RGB histogram of an image without opening a window.
//
// The GPU result is checked against the parallel CPU count. When no adapter is available only the CPU count is
// printed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/histogram"
	"github.com/Carmen-Shannon/oxy-samples/engine/loader"
	"github.com/Carmen-Shannon/oxy-samples/engine/logger"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

const barColumns = 32

var channelStyles = []struct {
	name  string
	style *color.Color
}{
	{"red", color.New(color.FgHiRed, color.Bold)},
	{"green", color.New(color.FgHiGreen, color.Bold)},
	{"blue", color.New(color.FgHiBlue, color.Bold)},
}

func main() {
	imagePath := flag.String("image", "", "image to count, a 256x256 test pattern when empty")
	workers := flag.Int("workers", 4, "CPU workers for the cross-check")
	cpuOnly := flag.Bool("cpu", false, "skip the GPU pass")
	fallback := flag.Bool("fallback", false, "force the fallback adapter")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	log, err := logger.New(logger.Config{LogLevel: *level, ServiceName: "oxy-histogram"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(os.Stdout, log, *imagePath, *workers, *cpuOnly, *fallback); err != nil {
		log.Error("histogram failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(out io.Writer, log *zap.Logger, imagePath string, workers int, cpuOnly, fallback bool) error {
	var ctx gpu.Context
	if !cpuOnly {
		var err error
		ctx, err = gpu.NewContext(gpu.WithForceFallbackAdapter(fallback), gpu.WithLogger(log))
		switch {
		case errors.Is(err, gpu.ErrNoAdapter):
			log.Warn("no GPU adapter, counting on the CPU only", zap.Error(err))
			ctx = nil
		case err != nil:
			return err
		default:
			defer ctx.Release()
		}
	}

	textures := loader.NewTextureLoader(ctx, loader.WithFlipVertical(false), loader.WithLogger(log))
	defer textures.Release()

	name := "pattern"
	staging := loader.TestPattern(256, 256)
	if imagePath != "" {
		var err error
		if staging, err = textures.Decode(imagePath); err != nil {
			return err
		}
		name = imagePath
	}

	counter := histogram.NewCPUCounter(workers)
	defer counter.Release()
	cpu, err := counter.Count(staging)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s  %dx%d\n", color.New(color.Bold).Sprint(name), staging.Width, staging.Height)
	if ctx == nil {
		printHistogram(out, &cpu)
		return nil
	}

	gpuResult, err := computeGPU(ctx, textures, log, name, staging)
	if err != nil {
		return err
	}
	printHistogram(out, &gpuResult)
	if diff := gpuResult.Diff(&cpu); len(diff) > 0 {
		color.New(color.FgHiRed, color.Bold).Fprintf(out, "gpu and cpu differ in %d bins, first %d\n", len(diff), diff[0])
		return fmt.Errorf("histogram mismatch in %d bins", len(diff))
	}
	color.New(color.FgHiGreen).Fprintln(out, "gpu matches cpu")
	return nil
}

func computeGPU(ctx gpu.Context, textures loader.TextureLoader, log *zap.Logger, name string, staging common.TextureStagingData) (histogram.Histogram, error) {
	r, err := renderer.NewRenderer(ctx, renderer.WithLogger(log))
	if err != nil {
		return histogram.Histogram{}, err
	}
	defer r.Release()

	tex, err := textures.Upload(name, staging)
	if err != nil {
		return histogram.Histogram{}, err
	}
	computer, err := histogram.NewComputer(ctx, r, histogram.WithComputerLogger(log))
	if err != nil {
		return histogram.Histogram{}, err
	}
	defer computer.Release()

	return computer.Compute(histogram.Source{View: tex.View, Width: tex.Width, Height: tex.Height})
}

// printHistogram writes one line per channel with the total, the peak and a bar per group of bins.
func printHistogram(out io.Writer, h *histogram.Histogram) {
	const group = histogram.Bins / barColumns
	for ch, cs := range channelStyles {
		bins := h.Channel(ch)
		sums := make([]uint64, barColumns)
		var top uint64
		for i, c := range bins {
			sums[i/group] += uint64(c)
			top = max(top, sums[i/group])
		}

		var bar strings.Builder
		levels := []rune(" ▁▂▃▄▅▆▇█")
		for _, s := range sums {
			idx := 0
			if top > 0 {
				idx = int(s * uint64(len(levels)-1) / top)
			}
			bar.WriteRune(levels[idx])
		}

		peak, count := h.Peak(ch)
		cs.style.Fprintf(out, "%-5s", cs.name)
		fmt.Fprintf(out, " total %-8d peak %3d (%d)  |%s|\n", h.Total(ch), peak, count, cs.style.Sprint(bar.String()))
	}
}
