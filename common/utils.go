package common

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// CeilDiv divides n by d rounding up. Used for workgroup dispatch counts.
//
// Parameters:
//   - n: the numerator
//   - d: the denominator, must be non-zero
//
// Returns:
//   - uint32: ceil(n / d)
func CeilDiv(n, d uint32) uint32 {
	return (n + d - 1) / d
}

// AlignUp rounds value up to the next multiple of alignment.
//
// Parameters:
//   - value: the value to align
//   - alignment: the alignment, must be non-zero
//
// Returns:
//   - uint64: the aligned value
func AlignUp(value, alignment uint64) uint64 {
	return (value + alignment - 1) / alignment * alignment
}
