// Package shader loads WGSL libraries and reflects their entry points into wgpu layouts.
//
// Sources are parsed and lowered with naga. Bind group layouts, vertex buffer layouts and workgroup sizes are
// read from the resulting IR instead of from the source text, so layouts always agree with what the GPU
// compiler sees.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

var (
	// ErrEntryPointNotFound is returned when a library has no entry point with the requested name and stage.
	ErrEntryPointNotFound = errors.New("shader: entry point not found")
	// ErrInvalidSource is returned when WGSL source fails to parse, lower or validate.
	ErrInvalidSource = errors.New("shader: invalid WGSL source")
)

//go:embed shaders/*.wgsl
var builtinShaders embed.FS

// library is the implementation of the Library interface.
type library struct {
	key              string
	source           string
	module           *ir.Module
	moduleDescriptor *wgpu.ShaderModuleDescriptor

	shaders map[string]*shader
	order   []string
}

// Library is a parsed WGSL source holding one or more entry points.
type Library interface {
	// Key returns the library key, used as the prefix of every shader key.
	Key() string

	// Source returns the WGSL source.
	Source() string

	// EntryPoints returns the entry point names in declaration order.
	EntryPoints() []string

	// Function looks up an entry point by name and stage.
	//
	// Parameters:
	//   - name: the entry point function name
	//   - shaderType: the expected stage
	//
	// Returns:
	//   - Shader: the reflected entry point
	//   - error: ErrEntryPointNotFound when no entry point matches both name and stage
	Function(name string, shaderType ShaderType) (Shader, error)

	// Translate emits the library in another shading language.
	//
	// Parameters:
	//   - target: the output language
	//   - entryPoint: the entry point to emit for single-entry targets such as GLSL; empty selects the first
	//
	// Returns:
	//   - []byte: the translated source, or a SPIR-V binary
	//   - error: an error if the backend rejects the module
	Translate(target Target, entryPoint string) ([]byte, error)

	// IR returns the lowered naga module.
	IR() *ir.Module
}

var _ Library = &library{}

// NewLibrary parses, lowers and reflects a WGSL source.
//
// Parameters:
//   - key: a unique identifier for the library
//   - source: the WGSL source code
//   - opts: optional LibraryBuilderOption values
//
// Returns:
//   - Library: the reflected library
//   - error: ErrInvalidSource wrapped with the naga diagnostic, or a reflection error
func NewLibrary(key, source string, opts ...LibraryBuilderOption) (Library, error) {
	b := &libraryBuilder{}
	for _, opt := range opts {
		opt(b)
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, key, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, key, err)
	}
	if b.validate {
		problems, err := naga.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, key, err)
		}
		if len(problems) > 0 {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSource, key, problems[0])
		}
	}

	l := &library{
		key:    key,
		source: source,
		module: module,
		moduleDescriptor: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
		shaders: make(map[string]*shader, len(module.EntryPoints)),
	}

	for _, ep := range module.EntryPoints {
		s, err := reflectEntryPoint(l, ep)
		if err != nil {
			return nil, err
		}
		l.shaders[ep.Name] = s
		l.order = append(l.order, ep.Name)
	}

	return l, nil
}

// LoadLibrary reads a WGSL file from a filesystem and builds a Library keyed by the file's base name.
//
// Parameters:
//   - fsys: the filesystem to read from, e.g. os.DirFS or an embed.FS
//   - name: the slash-separated path of the .wgsl file
//   - opts: optional LibraryBuilderOption values
//
// Returns:
//   - Library: the reflected library
//   - error: an error if the file cannot be read or the source is invalid
func LoadLibrary(fsys fs.FS, name string, opts ...LibraryBuilderOption) (Library, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to read %q: %w", name, err)
	}
	key := strings.TrimSuffix(path.Base(name), path.Ext(name))
	return NewLibrary(key, string(data), opts...)
}

// Builtin loads one of the WGSL libraries embedded in the binary, e.g. "texture" or "histogram_compute".
func Builtin(name string, opts ...LibraryBuilderOption) (Library, error) {
	return LoadLibrary(builtinShaders, path.Join("shaders", name+".wgsl"), opts...)
}

// BuiltinNames lists the embedded library names in lexical order.
func BuiltinNames() []string {
	matches, _ := fs.Glob(builtinShaders, "shaders/*.wgsl")
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(path.Base(m), ".wgsl"))
	}
	sort.Strings(names)
	return names
}

func (l *library) Key() string {
	return l.key
}

func (l *library) Source() string {
	return l.source
}

func (l *library) EntryPoints() []string {
	return append([]string(nil), l.order...)
}

func (l *library) IR() *ir.Module {
	return l.module
}

func (l *library) Function(name string, shaderType ShaderType) (Shader, error) {
	s, ok := l.shaders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry point %q", ErrEntryPointNotFound, l.key, name)
	}
	if s.shaderType != shaderType {
		return nil, fmt.Errorf("%w: %s:%s is a %s entry point, not %s", ErrEntryPointNotFound, l.key, name, s.shaderType, shaderType)
	}
	return s, nil
}
