package shader

// libraryBuilder collects NewLibrary options.
type libraryBuilder struct {
	validate bool
}

// LibraryBuilderOption is a functional option applied during NewLibrary.
type LibraryBuilderOption func(*libraryBuilder)

// WithValidation runs the naga IR validator after lowering. wgpu validates the module again when the
// pipeline is created, so this is mainly useful for offline tooling.
//
// Parameters:
//   - validate: true to reject modules with validation errors
//
// Returns:
//   - LibraryBuilderOption: a function that applies the validation option
func WithValidation(validate bool) LibraryBuilderOption {
	return func(b *libraryBuilder) {
		b.validate = validate
	}
}
