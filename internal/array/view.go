package array

import "fmt"

// View describes a strided window over an array's buffer: a shape, a signed
// element stride per dimension and a starting element offset. Views are
// metadata-only; constructing or copying one moves no data and multiple
// views may alias the same buffer.
type View struct {
	arr     *Array
	shape   Shape
	strides []int
	offset  int
}

// ViewWith builds a view with caller-supplied strides and offset. The layout
// is taken as given; whether it stays inside the buffer is only checked when
// the view is bound to an operation, via Validate.
func ViewWith(a *Array, shape Shape, strides []int, offset int) (View, error) {
	if len(strides) != len(shape) {
		return View{}, fmt.Errorf("array: %d strides for rank-%d shape", len(strides), len(shape))
	}
	return View{
		arr:     a,
		shape:   shape.Clone(),
		strides: append([]int(nil), strides...),
		offset:  offset,
	}, nil
}

// Slice narrows dimension dim to length elements starting at start,
// returning a new view. The range must lie within the view's extent;
// buffer-bounds checking happens when the view is bound to an operation.
func (v View) Slice(dim, start, length int) (View, error) {
	if dim < 0 || dim >= len(v.shape) {
		return View{}, fmt.Errorf("array: slice dimension %d out of range for rank %d", dim, len(v.shape))
	}
	if start < 0 || length < 1 || start+length > v.shape[dim] {
		return View{}, fmt.Errorf("array: slice [%d:%d) out of range for extent %d", start, start+length, v.shape[dim])
	}
	out := v.clone()
	out.offset += start * v.strides[dim]
	out.shape[dim] = length
	return out, nil
}

// Stride widens dimension dim's step by the given factor, keeping every
// step-th element. The resulting extent is ceil(extent/step).
func (v View) Stride(dim, step int) (View, error) {
	if dim < 0 || dim >= len(v.shape) {
		return View{}, fmt.Errorf("array: stride dimension %d out of range for rank %d", dim, len(v.shape))
	}
	if step < 1 {
		return View{}, fmt.Errorf("array: stride step must be >= 1, got %d", step)
	}
	out := v.clone()
	out.shape[dim] = (v.shape[dim] + step - 1) / step
	out.strides[dim] *= step
	return out, nil
}

// Reverse flips dimension dim, producing a negative stride over the same
// elements.
func (v View) Reverse(dim int) (View, error) {
	if dim < 0 || dim >= len(v.shape) {
		return View{}, fmt.Errorf("array: reverse dimension %d out of range for rank %d", dim, len(v.shape))
	}
	out := v.clone()
	out.offset += (v.shape[dim] - 1) * v.strides[dim]
	out.strides[dim] = -v.strides[dim]
	return out, nil
}

// Validate checks the bounds invariant: the first and last logical elements
// reachable through the view must stay within the buffer. Operations call
// this when the view is bound; a violation is a BoundsError.
func (v View) Validate() error {
	if v.arr == nil {
		return &BoundsError{Detail: "view has no backing array"}
	}
	lo, hi := v.offset, v.offset
	for d, extent := range v.shape {
		reach := (extent - 1) * v.strides[d]
		if reach >= 0 {
			hi += reach
		} else {
			lo += reach
		}
	}
	n := v.arr.NumElements()
	if lo < 0 || hi >= n {
		return &BoundsError{
			Detail: fmt.Sprintf("view reaches elements [%d, %d] of a %d-element buffer (offset %d, shape %v, strides %v)",
				lo, hi, n, v.offset, v.shape, v.strides),
		}
	}
	return nil
}

// Array returns the backing array.
func (v View) Array() *Array {
	return v.arr
}

// DType returns the element type.
func (v View) DType() DataType {
	return v.arr.dtype
}

// Shape returns the view's shape.
func (v View) Shape() Shape {
	return v.shape
}

// Strides returns the signed element strides per dimension.
func (v View) Strides() []int {
	return v.strides
}

// Offset returns the starting element offset into the buffer.
func (v View) Offset() int {
	return v.offset
}

// NumElements returns the number of logical elements the view selects.
func (v View) NumElements() int {
	return v.shape.NumElements()
}

// Contiguous reports whether the view is a dense row-major window starting
// at offset zero. Kernels specialize indexing for this layout class.
func (v View) Contiguous() bool {
	if v.offset != 0 {
		return false
	}
	want := v.shape.ContiguousStrides()
	for i := range want {
		if v.strides[i] != want[i] {
			return false
		}
	}
	return true
}

// LinearStride returns the element stride of a rank-1 view.
// Panics if the view is not rank-1; reductions flatten contiguous views
// before asking.
func (v View) LinearStride() int {
	if len(v.strides) != 1 {
		panic(fmt.Sprintf("array: LinearStride on rank-%d view", len(v.strides)))
	}
	return v.strides[0]
}

// Flatten returns a rank-1 view over the same elements. Only contiguous
// views and views that are already rank-1 can be flattened without copying.
func (v View) Flatten() (View, error) {
	if len(v.shape) == 1 {
		return v, nil
	}
	if !v.Contiguous() {
		return View{}, fmt.Errorf("array: cannot flatten non-contiguous rank-%d view", len(v.shape))
	}
	return View{
		arr:     v.arr,
		shape:   Shape{v.NumElements()},
		strides: []int{1},
		offset:  v.offset,
	}, nil
}

func (v View) clone() View {
	return View{
		arr:     v.arr,
		shape:   v.shape.Clone(),
		strides: append([]int(nil), v.strides...),
		offset:  v.offset,
	}
}
