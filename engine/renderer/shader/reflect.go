package shader

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga/ir"
)

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// vertexFormats maps (scalar kind, component count) to a vertex format. Only 32-bit scalars are valid vertex inputs here.
var vertexFormats = map[ir.ScalarKind][5]wgpu.VertexFormat{
	ir.ScalarFloat: {1: wgpu.VertexFormatFloat32, 2: wgpu.VertexFormatFloat32x2, 3: wgpu.VertexFormatFloat32x3, 4: wgpu.VertexFormatFloat32x4},
	ir.ScalarUint:  {1: wgpu.VertexFormatUint32, 2: wgpu.VertexFormatUint32x2, 3: wgpu.VertexFormatUint32x3, 4: wgpu.VertexFormatUint32x4},
	ir.ScalarSint:  {1: wgpu.VertexFormatSint32, 2: wgpu.VertexFormatSint32x2, 3: wgpu.VertexFormatSint32x3, 4: wgpu.VertexFormatSint32x4},
}

var imageViewDimensions = map[ir.ImageDimension]wgpu.TextureViewDimension{
	ir.Dim1D:   wgpu.TextureViewDimension1D,
	ir.Dim2D:   wgpu.TextureViewDimension2D,
	ir.Dim3D:   wgpu.TextureViewDimension3D,
	ir.DimCube: wgpu.TextureViewDimensionCube,
}

// vertexAttribute is a single @location input found on an entry point.
type vertexAttribute struct {
	location uint32
	info     vertexFormatInfo
}

// reflectEntryPoint builds the Shader for one entry point of a lowered module.
//
// Parameters:
//   - lib: the owning library, providing the key, source and lowered module
//   - ep: the entry point to reflect
//
// Returns:
//   - *shader: the reflected shader
//   - error: an error if a resource or vertex input has a type that cannot be expressed as a wgpu layout
func reflectEntryPoint(lib *library, ep ir.EntryPoint) (*shader, error) {
	m := lib.module
	s := &shader{
		key:        lib.key + ":" + ep.Name,
		source:     lib.source,
		entryPoint: ep.Name,
		module:     lib.moduleDescriptor,
	}
	switch ep.Stage {
	case ir.StageVertex:
		s.shaderType = ShaderTypeVertex
	case ir.StageFragment:
		s.shaderType = ShaderTypeFragment
	case ir.StageCompute:
		s.shaderType = ShaderTypeCompute
		s.workGroupSize = ep.Workgroup
		for i := range s.workGroupSize {
			if s.workGroupSize[i] == 0 {
				s.workGroupSize[i] = 1
			}
		}
	default:
		return nil, fmt.Errorf("shader: entry point %q has unsupported stage %d", ep.Name, ep.Stage)
	}

	fn := ep.Function
	layouts, names, err := reflectBindGroups(lib, usedGlobals(m, &fn), s.shaderType)
	if err != nil {
		return nil, fmt.Errorf("shader: %s: %w", s.key, err)
	}
	s.bindGroupLayoutDescriptors = layouts
	s.bindingVarNames = names

	if s.shaderType == ShaderTypeVertex {
		s.vertexLayouts, err = reflectVertexLayouts(m, fn)
		if err != nil {
			return nil, fmt.Errorf("shader: %s: %w", s.key, err)
		}
	}

	return s, nil
}

// usedGlobals collects the global variables referenced by an entry point function. Entry point bodies are held
// inline, so every function in Module.Functions is a helper and is treated as reachable.
func usedGlobals(m *ir.Module, entry *ir.Function) []ir.GlobalVariableHandle {
	seen := make(map[ir.GlobalVariableHandle]bool)
	collect := func(fn *ir.Function) {
		for _, expr := range fn.Expressions {
			if g, ok := expr.Kind.(ir.ExprGlobalVariable); ok {
				seen[g.Variable] = true
			}
		}
	}
	collect(entry)
	for i := range m.Functions {
		collect(&m.Functions[i])
	}

	result := make([]ir.GlobalVariableHandle, 0, len(seen))
	for h := range seen {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// reflectBindGroups converts the bound globals of an entry point into layout descriptors keyed by group,
// sorted by binding, with visibility set to the entry point's stage.
func reflectBindGroups(lib *library, globals []ir.GlobalVariableHandle, stage ShaderType) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string, error) {
	m := lib.module
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)

	for _, h := range globals {
		if int(h) >= len(m.GlobalVariables) {
			continue
		}
		gv := m.GlobalVariables[h]
		if gv.Binding == nil {
			continue
		}

		entry, err := classifyResource(lib, gv, stage)
		if err != nil {
			return nil, nil, err
		}

		group := int(gv.Binding.Group)
		groups[group] = append(groups[group], entry)
		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][int(gv.Binding.Binding)] = gv.Name
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", lib.key, g),
			Entries: entries,
		}
	}
	return result, varNames, nil
}

// classifyResource creates a wgpu.BindGroupLayoutEntry from a bound global variable. Storage buffers declared
// without read_write access become read-only storage, which is also the only storage kind a vertex stage may use.
func classifyResource(lib *library, gv ir.GlobalVariable, stage ShaderType) (wgpu.BindGroupLayoutEntry, error) {
	m := lib.module
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    gv.Binding.Binding,
		Visibility: stage.visibility(),
	}

	if int(gv.Type) >= len(m.Types) {
		return entry, fmt.Errorf("%s: unknown type %d", gv.Name, gv.Type)
	}

	switch inner := m.Types[gv.Type].Inner.(type) {
	case ir.SamplerType:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if inner.Comparison {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
		return entry, nil
	case ir.ImageType:
		if inner.Class == ir.ImageClassStorage {
			return entry, fmt.Errorf("%s: storage textures are not supported, bind a storage buffer instead", gv.Name)
		}
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		if inner.Class == ir.ImageClassDepth {
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		}
		entry.Texture.ViewDimension = imageViewDimensions[inner.Dim]
		if inner.Arrayed && inner.Dim == ir.Dim2D {
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2DArray
		}
		entry.Texture.Multisampled = inner.Multisampled
		return entry, nil
	}

	switch gv.Space {
	case ir.SpaceUniform:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case ir.SpaceStorage:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if gv.Access != ir.StorageRead {
			if stage == ShaderTypeVertex {
				return entry, fmt.Errorf("%s: writable storage is not allowed in a vertex stage", gv.Name)
			}
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	default:
		return entry, fmt.Errorf("%s: unsupported address space %d for a bound resource", gv.Name, gv.Space)
	}
	entry.Buffer.MinBindingSize = typeSize(m, gv.Type)
	return entry, nil
}

// typeSize returns the host-shareable size of a type in bytes, or 0 for runtime-sized arrays.
func typeSize(m *ir.Module, h ir.TypeHandle) uint64 {
	if int(h) >= len(m.Types) {
		return 0
	}
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		return uint64(t.Width)
	case ir.AtomicType:
		return uint64(t.Scalar.Width)
	case ir.VectorType:
		return uint64(t.Size) * uint64(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint64(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint64(t.Columns) * rows * uint64(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		stride := uint64(t.Stride)
		if stride == 0 {
			stride = common.AlignUp(typeSize(m, t.Base), 4)
		}
		return stride * uint64(*t.Size.Constant)
	case ir.StructType:
		return uint64(t.Span)
	default:
		return 0
	}
}

// reflectVertexLayouts packs the @location inputs of a vertex entry point, direct or through struct members,
// into a single per-vertex buffer layout ordered by location.
func reflectVertexLayouts(m *ir.Module, fn ir.Function) ([]wgpu.VertexBufferLayout, error) {
	var attrs []vertexAttribute

	add := func(name string, binding *ir.Binding, th ir.TypeHandle) error {
		if binding == nil {
			return nil
		}
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return nil
		}
		info, err := vertexFormat(m, th)
		if err != nil {
			return fmt.Errorf("vertex input %s: %w", name, err)
		}
		attrs = append(attrs, vertexAttribute{location: loc.Location, info: info})
		return nil
	}

	for _, arg := range fn.Arguments {
		if arg.Binding != nil {
			if err := add(arg.Name, arg.Binding, arg.Type); err != nil {
				return nil, err
			}
			continue
		}
		if int(arg.Type) >= len(m.Types) {
			continue
		}
		st, ok := m.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for _, member := range st.Members {
			if err := add(member.Name, member.Binding, member.Type); err != nil {
				return nil, err
			}
		}
	}

	if len(attrs) == 0 {
		return nil, nil
	}

	sort.Slice(attrs, func(i, j int) bool { return attrs[i].location < attrs[j].location })
	layout := wgpu.VertexBufferLayout{
		StepMode:   wgpu.VertexStepModeVertex,
		Attributes: make([]wgpu.VertexAttribute, 0, len(attrs)),
	}
	var offset uint64
	for _, a := range attrs {
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         a.info.format,
			Offset:         offset,
			ShaderLocation: a.location,
		})
		offset += a.info.size
	}
	layout.ArrayStride = offset

	return []wgpu.VertexBufferLayout{layout}, nil
}

func vertexFormat(m *ir.Module, th ir.TypeHandle) (vertexFormatInfo, error) {
	if int(th) >= len(m.Types) {
		return vertexFormatInfo{}, fmt.Errorf("unknown type %d", th)
	}

	var scalar ir.ScalarType
	components := 1
	switch t := m.Types[th].Inner.(type) {
	case ir.ScalarType:
		scalar = t
	case ir.VectorType:
		scalar = t.Scalar
		components = int(t.Size)
	default:
		return vertexFormatInfo{}, fmt.Errorf("type %T cannot be a vertex attribute", t)
	}

	formats, ok := vertexFormats[scalar.Kind]
	if !ok || scalar.Width != 4 || components < 1 || components > 4 {
		return vertexFormatInfo{}, fmt.Errorf("unsupported scalar kind %d width %d", scalar.Kind, scalar.Width)
	}
	return vertexFormatInfo{
		format: formats[components],
		size:   uint64(components) * uint64(scalar.Width),
	}, nil
}
