package array

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lumen-ml/lumen/internal/device"
	"github.com/x448/float16"
)

// Array owns (or shares ownership of) a device buffer holding a dense,
// contiguously laid out block of elements of one numeric type. Views carved
// from it share the buffer through reference counting; device memory is
// freed when the last reference is released.
type Array struct {
	buf   *device.Buffer
	dtype DataType
	shape Shape
}

// New allocates a zero-initialized device array.
func New(dev *device.Device, shape Shape, dtype DataType) (*Array, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("array: invalid shape: %w", err)
	}
	size := uint64(shape.NumElements() * dtype.Size())
	return &Array{
		buf:   dev.NewBuffer(size),
		dtype: dtype,
		shape: shape.Clone(),
	}, nil
}

// FromFloat32 uploads host data into a new 1-D float32 array.
func FromFloat32(dev *device.Device, data []float32) (*Array, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("array: empty input")
	}
	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return &Array{
		buf:   dev.NewBufferFrom(raw),
		dtype: Float32,
		shape: Shape{len(data)},
	}, nil
}

// FromInt32 uploads host data into a new 1-D int32 array.
func FromInt32(dev *device.Device, data []int32) (*Array, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("array: empty input")
	}
	raw := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return &Array{
		buf:   dev.NewBufferFrom(raw),
		dtype: Int32,
		shape: Shape{len(data)},
	}, nil
}

// FromFloat16Bits widens IEEE half-precision storage to a float32 device
// array. Kernels execute in f32; half precision is a storage format only.
func FromFloat16Bits(dev *device.Device, bits []uint16) (*Array, error) {
	if len(bits) == 0 {
		return nil, fmt.Errorf("array: empty input")
	}
	widened := make([]float32, len(bits))
	for i, b := range bits {
		widened[i] = float16.Frombits(b).Float32()
	}
	return FromFloat32(dev, widened)
}

// Float16Bits narrows host float32 data to half-precision bits, the inverse
// of FromFloat16Bits.
func Float16Bits(data []float32) []uint16 {
	bits := make([]uint16, len(data))
	for i, v := range data {
		bits[i] = float16.Fromfloat32(v).Bits()
	}
	return bits
}

// Wrap adopts an existing device buffer as a contiguous array. Used by the
// executor to materialize elementwise results.
func Wrap(buf *device.Buffer, shape Shape, dtype DataType) *Array {
	return &Array{buf: buf, dtype: dtype, shape: shape.Clone()}
}

// View returns the full contiguous view over the array.
func (a *Array) View() View {
	return View{
		arr:     a,
		shape:   a.shape.Clone(),
		strides: a.shape.ContiguousStrides(),
		offset:  0,
	}
}

// DType returns the array's numeric type.
func (a *Array) DType() DataType {
	return a.dtype
}

// Shape returns the array's shape.
func (a *Array) Shape() Shape {
	return a.shape
}

// NumElements returns the total number of elements.
func (a *Array) NumElements() int {
	return a.shape.NumElements()
}

// Buffer returns the underlying device buffer.
func (a *Array) Buffer() *device.Buffer {
	return a.buf
}

// Release drops this array's reference to the device buffer.
func (a *Array) Release() {
	if a.buf != nil {
		a.buf.Release()
		a.buf = nil
	}
}

// Float32s reads the array back to the host through the given queue. The
// read flushes and waits for all work enqueued before it, so a freshly
// evaluated result is fully materialized.
func (a *Array) Float32s(q *device.Queue) ([]float32, error) {
	if a.dtype != Float32 {
		return nil, fmt.Errorf("array: dtype is %s, not float32", a.dtype)
	}
	n := a.NumElements()
	raw, err := q.Read(a.buf, 0, uint64(n*4))
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// Int32s reads the array back to the host through the given queue.
func (a *Array) Int32s(q *device.Queue) ([]int32, error) {
	if a.dtype != Int32 {
		return nil, fmt.Errorf("array: dtype is %s, not int32", a.dtype)
	}
	n := a.NumElements()
	raw, err := q.Read(a.buf, 0, uint64(n*4))
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
