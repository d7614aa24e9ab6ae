package ultravox

// Ptr is a utility function that returns a pointer to the given value.
// Useful for building optional fields that distinguish "absent" from
// "empty", such as transcript fragment text.
//
// Example usage:
//
//	text := ultravox.Ptr("hello")
func Ptr[T any](v T) *T { return &v }
