package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
	"github.com/gogpu/naga/spirv"
)

// Target is an output language for Library.Translate.
type Target int

const (
	// TargetWGSL returns the library source unchanged.
	TargetWGSL Target = iota
	// TargetMSL emits Metal Shading Language.
	TargetMSL
	// TargetGLSL emits desktop GLSL for a single entry point.
	TargetGLSL
	// TargetHLSL emits HLSL shader model 5.1.
	TargetHLSL
	// TargetSPIRV emits a SPIR-V 1.3 binary.
	TargetSPIRV
)

var targetNames = map[Target]string{
	TargetWGSL:  "wgsl",
	TargetMSL:   "msl",
	TargetGLSL:  "glsl",
	TargetHLSL:  "hlsl",
	TargetSPIRV: "spirv",
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget resolves a target name such as "msl" or "spv".
func ParseTarget(name string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wgsl":
		return TargetWGSL, nil
	case "msl", "metal":
		return TargetMSL, nil
	case "glsl":
		return TargetGLSL, nil
	case "hlsl":
		return TargetHLSL, nil
	case "spirv", "spv":
		return TargetSPIRV, nil
	default:
		return 0, fmt.Errorf("shader: unknown target %q", name)
	}
}

func (l *library) Translate(target Target, entryPoint string) ([]byte, error) {
	if entryPoint != "" {
		if _, ok := l.shaders[entryPoint]; !ok {
			return nil, fmt.Errorf("%w: %s has no entry point %q", ErrEntryPointNotFound, l.key, entryPoint)
		}
	}

	switch target {
	case TargetWGSL:
		return []byte(l.source), nil
	case TargetMSL:
		code, _, err := msl.Compile(l.module, msl.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("shader: %s: msl: %w", l.key, err)
		}
		return []byte(code), nil
	case TargetGLSL:
		opts := glsl.DefaultOptions()
		opts.EntryPoint = entryPoint
		if l.isCompute(entryPoint) {
			opts.LangVersion = glsl.Version430
		}
		code, _, err := glsl.Compile(l.module, opts)
		if err != nil {
			return nil, fmt.Errorf("shader: %s: glsl: %w", l.key, err)
		}
		return []byte(code), nil
	case TargetHLSL:
		opts := hlsl.DefaultOptions()
		opts.EntryPoint = entryPoint
		code, _, err := hlsl.Compile(l.module, opts)
		if err != nil {
			return nil, fmt.Errorf("shader: %s: hlsl: %w", l.key, err)
		}
		return []byte(code), nil
	case TargetSPIRV:
		code, err := naga.GenerateSPIRV(l.module, spirv.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("shader: %s: %w", l.key, err)
		}
		return code, nil
	default:
		return nil, fmt.Errorf("shader: unknown target %d", int(target))
	}
}

// isCompute reports whether the named entry point, or the first one when name is empty, is a compute stage.
func (l *library) isCompute(name string) bool {
	for _, ep := range l.module.EntryPoints {
		if name == "" || ep.Name == name {
			return ep.Stage == ir.StageCompute
		}
	}
	return false
}
