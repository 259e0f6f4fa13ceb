package series

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/exp/constraints"
)

// Number is any Arrow-backed numeric element type.
type Number interface {
	constraints.Integer | constraints.Float
}

type numericArray[T Number] interface {
	IsNull(i int) bool
	Value(i int) T
}

// Accessor reads element i as float64; ok is false for nulls.
type Accessor func(i int) (value float64, ok bool)

func accessor[T Number](arr numericArray[T]) Accessor {
	return func(i int) (float64, bool) {
		if arr.IsNull(i) {
			return 0, false
		}
		return float64(arr.Value(i)), true
	}
}

// NumericAccessor returns an Accessor for numeric arrays, or false when the
// array does not hold numbers.
func NumericAccessor(arr arrow.Array) (Accessor, bool) {
	switch a := arr.(type) {
	case *array.Float64:
		return accessor[float64](a), true
	case *array.Float32:
		return accessor[float32](a), true
	case *array.Int64:
		return accessor[int64](a), true
	case *array.Int32:
		return accessor[int32](a), true
	default:
		return nil, false
	}
}

// IsNumeric reports whether values of dt can be averaged.
func IsNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.FLOAT64, arrow.FLOAT32, arrow.INT64, arrow.INT32:
		return true
	default:
		return false
	}
}

// Mean is the arithmetic mean of the present values. NaN counts as missing;
// ok is false when nothing is present.
func Mean[T Number](values []T, valid []bool) (mean float64, ok bool) {
	var sum float64
	n := 0
	for i, v := range values {
		f := float64(v)
		if (valid != nil && !valid[i]) || math.IsNaN(f) {
			continue
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
