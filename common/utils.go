package common

import "github.com/google/uuid"

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

// LabelOr returns label when it is set, otherwise a unique label made of the
// prefix and a short random suffix (e.g. "buffer-1f3a9c2e").
//
// Parameters:
//   - label: the caller supplied label, possibly empty
//   - prefix: the kind of object being labelled
//
// Returns:
//   - string: a non-empty debug label
func LabelOr(label, prefix string) string {
	if label != "" {
		return label
	}
	return prefix + "-" + uuid.NewString()[:8]
}
