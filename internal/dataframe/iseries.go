package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/paveg/groupbench/internal/series"
)

// ISeries provides a type-erased interface for Series of any type
type ISeries interface {
	Name() string
	Len() int
	NullN() int
	DataType() arrow.DataType
	IsNull(index int) bool
	String() string
	Array() arrow.Array
	Release()
	GetAsString(index int) string
}

// SeriesFromArray wraps an Arrow array in the typed Series matching its type.
// The returned series holds its own reference to arr.
func SeriesFromArray(name string, arr arrow.Array) (ISeries, error) {
	switch arr.(type) {
	case *array.String:
		return series.FromArrow[string](name, arr), nil
	case *array.Int64:
		return series.FromArrow[int64](name, arr), nil
	case *array.Int32:
		return series.FromArrow[int32](name, arr), nil
	case *array.Float64:
		return series.FromArrow[float64](name, arr), nil
	case *array.Float32:
		return series.FromArrow[float32](name, arr), nil
	case *array.Boolean:
		return series.FromArrow[bool](name, arr), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s for %s", arr.DataType(), name)
	}
}

// shareSeries returns a new handle on the same data, so that both owners can
// release independently.
func shareSeries(s ISeries) ISeries {
	arr := s.Array()
	defer arr.Release()
	shared, err := SeriesFromArray(s.Name(), arr)
	if err != nil {
		// every ISeries in a frame came from SeriesFromArray or series.New
		panic(err)
	}
	return shared
}
