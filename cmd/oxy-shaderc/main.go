// Command oxy-shaderc lists and translates the WGSL shader libraries.
//
//	oxy-shaderc list [-file path.wgsl]
//	oxy-shaderc translate -target msl [-entry name] [-o out] (-builtin name | -file path.wgsl)
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-samples/engine/logger"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/shader"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage: oxy-shaderc list|translate [flags]")

func main() {
	log, err := logger.New(logger.Config{LogLevel: "warn", ServiceName: "oxy-shaderc"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, errUsage)
			os.Exit(2)
		}
		log.Error("shaderc failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "list":
		return list(args[1:], out)
	case "translate":
		return translate(args[1:], out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// openLibrary loads a file when one is given, otherwise the named builtin.
func openLibrary(file, builtin string) (shader.Library, error) {
	if file != "" {
		return shader.LoadLibrary(os.DirFS(filepath.Dir(file)), filepath.Base(file), shader.WithValidation(true))
	}
	if builtin == "" {
		return nil, fmt.Errorf("%w: -builtin or -file is required", errUsage)
	}
	return shader.Builtin(builtin, shader.WithValidation(true))
}

func list(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("list", flag.ContinueOnError)
	file := fset.String("file", "", "WGSL file to list instead of the builtins")
	if err := fset.Parse(args); err != nil {
		return err
	}

	names := shader.BuiltinNames()
	if *file != "" {
		names = []string{""}
	}
	heading := color.New(color.FgHiMagenta, color.Bold)
	entry := color.New(color.FgHiBlue)
	for _, name := range names {
		lib, err := openLibrary(*file, name)
		if err != nil {
			return err
		}
		heading.Fprintln(out, lib.Key())
		for _, ep := range lib.EntryPoints() {
			fmt.Fprintf(out, "  %s\n", entry.Sprint(ep))
		}
	}
	return nil
}

func translate(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("translate", flag.ContinueOnError)
	targetName := fset.String("target", "msl", "wgsl, msl, glsl, hlsl or spirv")
	entryPoint := fset.String("entry", "", "entry point for single-entry targets")
	builtin := fset.String("builtin", "", "embedded library name")
	file := fset.String("file", "", "WGSL file to translate")
	output := fset.String("o", "", "output file, stdout when empty")
	if err := fset.Parse(args); err != nil {
		return err
	}

	target, err := shader.ParseTarget(*targetName)
	if err != nil {
		return err
	}
	lib, err := openLibrary(*file, *builtin)
	if err != nil {
		return err
	}
	code, err := lib.Translate(target, *entryPoint)
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = out.Write(code)
		return err
	}
	if err := os.WriteFile(*output, code, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", *output, err)
	}
	return nil
}
