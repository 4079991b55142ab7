package array

// BoundsError reports a view whose reachable elements exceed the backing
// buffer. It surfaces when the view is bound to an operation, not when the
// view is constructed; it is a programmer error and is never retried.
type BoundsError struct {
	Detail string
}

func (e *BoundsError) Error() string {
	return "array: view out of bounds: " + e.Detail
}
