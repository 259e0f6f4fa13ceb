// Package series provides typed, Arrow-backed data columns.
package series

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Series represents a typed data column with Apache Arrow backend
type Series[T any] struct {
	name  string
	array arrow.Array
}

// New creates a new Series from a slice of values. It panics on element types
// Arrow cannot represent; use NewSafe when the type comes from input data.
func New[T any](name string, values []T, mem memory.Allocator) *Series[T] {
	s, err := NewNullable(name, values, nil, mem)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSafe is New returning an error instead of panicking.
func NewSafe[T any](name string, values []T, mem memory.Allocator) (*Series[T], error) {
	return NewNullable(name, values, nil, mem)
}

// NewNullable creates a Series where valid[i] == false marks values[i] as
// null. A nil valid slice means every value is present.
func NewNullable[T any](name string, values []T, valid []bool, mem memory.Allocator) (*Series[T], error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if valid != nil && len(valid) != len(values) {
		return nil, fmt.Errorf("validity length %d does not match %d values", len(valid), len(values))
	}

	var arr arrow.Array

	switch v := any(values).(type) {
	case []string:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []int32:
		builder := array.NewInt32Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []float32:
		builder := array.NewFloat32Builder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	case []bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(v, valid)
		arr = builder.NewArray()
	default:
		return nil, fmt.Errorf("unsupported type: %T", values)
	}

	return &Series[T]{
		name:  name,
		array: arr,
	}, nil
}

// FromArrow wraps an existing Arrow array. The series takes its own reference.
func FromArrow[T any](name string, arr arrow.Array) *Series[T] {
	arr.Retain()
	return &Series[T]{name: name, array: arr}
}

// Name returns the column name
func (s *Series[T]) Name() string {
	return s.name
}

// Rename returns a series sharing the same data under a new name.
func (s *Series[T]) Rename(name string) *Series[T] {
	return FromArrow[T](name, s.array)
}

// Len returns the length of the series
func (s *Series[T]) Len() int {
	return s.array.Len()
}

// NullN returns the number of null values
func (s *Series[T]) NullN() int {
	return s.array.NullN()
}

// Values returns the data as a Go slice. Nulls come back as the zero value.
func (s *Series[T]) Values() []T {
	result := make([]T, s.array.Len())
	for i := range result {
		result[i] = s.Value(i)
	}
	return result
}

// Value returns the value at the given index
func (s *Series[T]) Value(index int) T {
	var result T
	if index < 0 || index >= s.array.Len() || s.array.IsNull(index) {
		return result
	}

	switch arr := s.array.(type) {
	case *array.String:
		if v, ok := any(&result).(*string); ok {
			*v = arr.Value(index)
		}
	case *array.Int64:
		if v, ok := any(&result).(*int64); ok {
			*v = arr.Value(index)
		}
	case *array.Int32:
		if v, ok := any(&result).(*int32); ok {
			*v = arr.Value(index)
		}
	case *array.Float64:
		if v, ok := any(&result).(*float64); ok {
			*v = arr.Value(index)
		}
	case *array.Float32:
		if v, ok := any(&result).(*float32); ok {
			*v = arr.Value(index)
		}
	case *array.Boolean:
		if v, ok := any(&result).(*bool); ok {
			*v = arr.Value(index)
		}
	}

	return result
}

// DataType returns the Arrow data type
func (s *Series[T]) DataType() arrow.DataType {
	return s.array.DataType()
}

// IsNull checks if the value at index is null
func (s *Series[T]) IsNull(index int) bool {
	return s.array.IsNull(index)
}

// GetAsString formats the value at index. Nulls format as the empty string.
func (s *Series[T]) GetAsString(index int) string {
	return FormatValue(s.array, index)
}

// String returns a string representation of the series
func (s *Series[T]) String() string {
	return fmt.Sprintf("Series[%s]: %s (len=%d)",
		reflect.TypeOf(new(T)).Elem().Name(),
		s.name,
		s.Len())
}

// Array returns the underlying Arrow array (retains a reference)
func (s *Series[T]) Array() arrow.Array {
	if s.array != nil {
		s.array.Retain()
		return s.array
	}
	return nil
}

// Release releases the underlying Arrow memory
func (s *Series[T]) Release() {
	if s.array != nil {
		s.array.Release()
	}
}

// FormatValue renders arr[index] as text. Nulls and unknown types render as "".
func FormatValue(arr arrow.Array, index int) string {
	if index < 0 || index >= arr.Len() || arr.IsNull(index) {
		return ""
	}

	switch a := arr.(type) {
	case *array.String:
		return a.Value(index)
	case *array.Int64:
		return strconv.FormatInt(a.Value(index), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(index)), 10)
	case *array.Float64:
		return strconv.FormatFloat(a.Value(index), 'g', -1, 64)
	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(index)), 'g', -1, 32)
	case *array.Boolean:
		return strconv.FormatBool(a.Value(index))
	default:
		return ""
	}
}
