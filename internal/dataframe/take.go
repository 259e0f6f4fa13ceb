package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/expr"
)

// Take returns a new DataFrame holding the given rows, in the given order.
// Null values are carried over as nulls.
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	n := df.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("take row %d of %d: %w", idx, n, dferrors.ErrInvalidIndex)
		}
	}

	mem := memory.NewGoAllocator()
	taken := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		arr := df.columns[name].Array()
		out, err := takeArray(arr, indices, mem)
		arr.Release()
		if err != nil {
			New(taken...).Release()
			return nil, dferrors.NewUnsupportedTypeError("Take", name, err.Error())
		}

		s, err := SeriesFromArray(name, out)
		out.Release()
		if err != nil {
			New(taken...).Release()
			return nil, err
		}
		taken = append(taken, s)
	}
	return New(taken...), nil
}

type valueArray[T any] interface {
	arrow.Array
	Value(i int) T
}

type valueBuilder[T any] interface {
	array.Builder
	Append(v T)
}

func takeTyped[T any](src valueArray[T], b valueBuilder[T], indices []int) arrow.Array {
	defer b.Release()
	b.Reserve(len(indices))
	for _, idx := range indices {
		if src.IsNull(idx) {
			b.AppendNull()
			continue
		}
		b.Append(src.Value(idx))
	}
	return b.NewArray()
}

func takeArray(arr arrow.Array, indices []int, mem memory.Allocator) (arrow.Array, error) {
	switch a := arr.(type) {
	case *array.String:
		return takeTyped[string](a, array.NewStringBuilder(mem), indices), nil
	case *array.Int64:
		return takeTyped[int64](a, array.NewInt64Builder(mem), indices), nil
	case *array.Int32:
		return takeTyped[int32](a, array.NewInt32Builder(mem), indices), nil
	case *array.Float64:
		return takeTyped[float64](a, array.NewFloat64Builder(mem), indices), nil
	case *array.Float32:
		return takeTyped[float32](a, array.NewFloat32Builder(mem), indices), nil
	case *array.Boolean:
		return takeTyped[bool](a, array.NewBooleanBuilder(mem), indices), nil
	default:
		return nil, fmt.Errorf("%s", arr.DataType())
	}
}

// columnArrays returns retained arrays for every column; call the release func
// when done.
func (df *DataFrame) columnArrays() (map[string]arrow.Array, func()) {
	columns := make(map[string]arrow.Array, len(df.order))
	for _, name := range df.order {
		columns[name] = df.columns[name].Array()
	}
	return columns, func() {
		for _, arr := range columns {
			arr.Release()
		}
	}
}

// Filter keeps the rows where predicate is true. Rows where it is false or
// null are dropped.
func (df *DataFrame) Filter(predicate expr.Expr) (*DataFrame, error) {
	columns, release := df.columnArrays()
	defer release()

	indices, err := expr.NewEvaluator(nil).Selection(predicate, columns)
	if err != nil {
		return nil, fmt.Errorf("evaluating filter predicate: %w", err)
	}
	return df.Take(indices)
}
