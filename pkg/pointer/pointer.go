// Package pointer has helpers for optional values.
package pointer

// To returns a pointer to a copy of value.
func To[T any](value T) *T {
	return &value
}

// Copy returns a pointer to a copy of *value, or nil when value is nil.
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return To(*value)
}

// ValueOrDefault dereferences value, falling back to defaultValue when nil.
func ValueOrDefault[T any](value *T, defaultValue T) T {
	if value == nil {
		return defaultValue
	}
	return *value
}
