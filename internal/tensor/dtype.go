// Package tensor provides the dense matrix kernel for the sparsenet framework.
package tensor

// Float is a constraint for the supported scalar types.
// A whole process runs with one of them; it is chosen by configuration
// and threaded through model construction as a type parameter.
type Float interface {
	float32 | float64
}

// DataType represents runtime type information for matrices.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64, Int64:
		return 8
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
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// ParseDataType converts "float32"/"float64" (or "32"/"64") into a DataType.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32", "32":
		return Float32, true
	case "float64", "64":
		return Float64, true
	case "int64":
		return Int64, true
	default:
		return 0, false
	}
}

// TypeOf infers the DataType of the scalar type T.
func TypeOf[T Float]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	default:
		panic("unsupported type")
	}
}
