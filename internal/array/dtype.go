// Package array provides the device-backed array data model: numeric types,
// shapes, buffer-owning arrays and the strided/sliced views expressions
// read through.
package array

// DataType is runtime numeric type information for arrays.
type DataType int

// Supported numeric types.
const (
	Float32 DataType = iota
	Float64
	Float16
	Int32
	Int64
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// Epsilon returns the relative tolerance appropriate to the type's precision
// class when comparing a device reduction against a host accumulation.
func (dt DataType) Epsilon() float64 {
	switch dt {
	case Float64:
		return 1e-9
	case Float16:
		return 1e-2
	default:
		return 1e-4
	}
}

// IsFloat reports whether the type is a floating-point variant.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float16
}
