package utils

// Ptr returns a pointer to a copy of v, for optional JSON fields that must
// distinguish absent from zero.
func Ptr[T any](v T) *T {
	return &v
}
