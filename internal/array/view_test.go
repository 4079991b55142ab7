package array

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// hostArray builds an array with no device buffer. View arithmetic and
// bounds checking are pure metadata, so no GPU is needed.
func hostArray(n int) *Array {
	return Wrap(nil, Shape{n}, Float32)
}

func TestViewFullIsContiguous(t *testing.T) {
	v := hostArray(10).View()
	assert.True(t, v.Contiguous())
	assert.Equal(t, 0, v.Offset())
	assert.Equal(t, 10, v.NumElements())
	assert.Equal(t, 1, v.LinearStride())
	require.NoError(t, v.Validate())
}

func TestViewSlice(t *testing.T) {
	v, err := hostArray(10).View().Slice(0, 3, 4)
	require.NoError(t, err)

	assert.Equal(t, 3, v.Offset())
	assert.Equal(t, Shape{4}, v.Shape())
	assert.Equal(t, 1, v.LinearStride())
	assert.False(t, v.Contiguous())
	require.NoError(t, v.Validate())
}

func TestViewSliceRejectsBadRange(t *testing.T) {
	full := hostArray(10).View()

	_, err := full.Slice(0, -1, 3)
	assert.Error(t, err)
	_, err = full.Slice(0, 8, 5)
	assert.Error(t, err)
	_, err = full.Slice(1, 0, 1)
	assert.Error(t, err)
}

func TestViewStrideExtent(t *testing.T) {
	// 10 elements every 3rd: indices 0,3,6,9 -> extent 4.
	v, err := hostArray(10).View().Stride(0, 3)
	require.NoError(t, err)

	assert.Equal(t, Shape{4}, v.Shape())
	assert.Equal(t, 3, v.LinearStride())
	require.NoError(t, v.Validate())
}

func TestViewSliceThenStride(t *testing.T) {
	// [5:10007) every 4th of a 10007-element buffer.
	v, err := hostArray(10007).View().Slice(0, 5, 10002)
	require.NoError(t, err)
	v, err = v.Stride(0, 4)
	require.NoError(t, err)

	assert.Equal(t, 5, v.Offset())
	assert.Equal(t, 4, v.LinearStride())
	assert.Equal(t, (10002+3)/4, v.NumElements())
	require.NoError(t, v.Validate())
}

func TestViewReverse(t *testing.T) {
	v, err := hostArray(8).View().Reverse(0)
	require.NoError(t, err)

	assert.Equal(t, 7, v.Offset())
	assert.Equal(t, -1, v.LinearStride())
	assert.Equal(t, 8, v.NumElements())
	require.NoError(t, v.Validate())
}

func TestViewValidateBounds(t *testing.T) {
	// Metadata that reaches past the buffer fails at bind time, not at
	// construction.
	v := View{arr: hostArray(10), shape: Shape{4}, strides: []int{3}, offset: 2}
	err := v.Validate()
	require.Error(t, err)

	var be *BoundsError
	assert.True(t, errors.As(err, &be))
}

func TestViewWith(t *testing.T) {
	v, err := ViewWith(hostArray(10), Shape{4}, []int{3}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Offset())
	assert.Equal(t, []int{3}, v.Strides())

	// Construction never bounds-checks; Validate does.
	require.Error(t, v.Validate())

	_, err = ViewWith(hostArray(10), Shape{2, 2}, []int{1}, 0)
	require.Error(t, err)
}

func TestViewValidateNegativeReach(t *testing.T) {
	v := View{arr: hostArray(10), shape: Shape{4}, strides: []int{-1}, offset: 2}
	err := v.Validate()

	var be *BoundsError
	assert.True(t, errors.As(err, &be))
}

func TestFlattenContiguous(t *testing.T) {
	a := Wrap(nil, Shape{4, 5}, Float32)
	flat, err := a.View().Flatten()
	require.NoError(t, err)

	assert.Equal(t, Shape{20}, flat.Shape())
	assert.Equal(t, 1, flat.LinearStride())
}

func TestFlattenRankOnePassThrough(t *testing.T) {
	v, err := hostArray(10).View().Stride(0, 2)
	require.NoError(t, err)

	flat, err := v.Flatten()
	require.NoError(t, err)
	assert.Equal(t, 2, flat.LinearStride())
}

func TestFlattenNonContiguousFails(t *testing.T) {
	a := Wrap(nil, Shape{4, 5}, Float32)
	v, err := a.View().Slice(1, 1, 3)
	require.NoError(t, err)

	_, err = v.Flatten()
	assert.Error(t, err)
}

func TestDataTypeEpsilon(t *testing.T) {
	assert.Equal(t, 1e-4, Float32.Epsilon())
	assert.Equal(t, 1e-9, Float64.Epsilon())
	assert.Equal(t, 1e-2, Float16.Epsilon())
}

func TestFloat16Bits(t *testing.T) {
	// All values chosen exactly representable in binary16.
	in := []float32{0, 1, -2.5, 0.125}
	bits := Float16Bits(in)
	require.Len(t, bits, len(in))
	for i, b := range bits {
		assert.Equal(t, in[i], float16.Frombits(b).Float32())
	}
}
