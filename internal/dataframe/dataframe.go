// Package dataframe provides the Arrow-backed columnar DataFrame used by the
// in-process benchmark strategies: eager operations, hash group-by with
// aggregation, and a lazy plan with an optimizer.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/series"
)

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries.
// The DataFrame takes ownership of the series.
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, dup := columns[name]; !dup {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// FromRecord builds a DataFrame over the columns of an Arrow record.
func FromRecord(rec arrow.Record) (*DataFrame, error) {
	cols := make([]ISeries, 0, rec.NumCols())
	for i, field := range rec.Schema().Fields() {
		s, err := SeriesFromArray(field.Name, rec.Column(i))
		if err != nil {
			for _, c := range cols {
				c.Release()
			}
			return nil, err
		}
		cols = append(cols, s)
	}
	return New(cols...), nil
}

// ToRecord returns the frame as an Arrow record. The caller releases it.
func (df *DataFrame) ToRecord() arrow.Record {
	fields := make([]arrow.Field, 0, len(df.order))
	arrays := make([]arrow.Array, 0, len(df.order))
	for _, name := range df.order {
		s := df.columns[name]
		arr := s.Array()
		defer arr.Release()
		fields = append(fields, arrow.Field{Name: name, Type: arr.DataType(), Nullable: true})
		arrays = append(arrays, arr)
	}
	return array.NewRecord(arrow.NewSchema(fields, nil), arrays, int64(df.Len()))
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows (assumes all columns have same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// NumericColumns returns, in order, the columns whose type supports averaging.
func (df *DataFrame) NumericColumns() []string {
	var names []string
	for _, name := range df.order {
		if series.IsNumeric(df.columns[name].DataType()) {
			names = append(names, name)
		}
	}
	return names
}

// RequireColumns checks that every name exists, and when numeric is set, that
// it can be averaged.
func (df *DataFrame) RequireColumns(op string, numeric bool, names ...string) error {
	for _, name := range names {
		s, ok := df.columns[name]
		if !ok {
			return dferrors.NewColumnNotFoundError(op, name)
		}
		if numeric && !series.IsNumeric(s.DataType()) {
			return dferrors.NewUnsupportedTypeError(op, name, s.DataType().String())
		}
	}
	return nil
}

// Select returns a new DataFrame with only the specified columns.
// Unknown names are skipped.
func (df *DataFrame) Select(names ...string) *DataFrame {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		if s, exists := df.columns[name]; exists {
			selected = append(selected, shareSeries(s))
		}
	}
	return New(selected...)
}

// Drop returns a new DataFrame without the specified columns
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool)
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			kept = append(kept, shareSeries(df.columns[name]))
		}
	}
	return New(kept...)
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		series := df.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, series.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Slice creates a new DataFrame containing rows from start (inclusive) to end
// (exclusive). The result shares memory with df.
func (df *DataFrame) Slice(start, end int) *DataFrame {
	length := df.Len()
	if start < 0 {
		start = 0
	}
	if end > length {
		end = length
	}
	if start > end {
		start = end
	}

	sliced := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		arr := df.columns[name].Array()
		part := array.NewSlice(arr, int64(start), int64(end))
		arr.Release()

		s, err := SeriesFromArray(name, part)
		part.Release()
		if err != nil {
			panic(err)
		}
		sliced = append(sliced, s)
	}
	return New(sliced...)
}

// Concat concatenates multiple DataFrames vertically (row-wise).
// All DataFrames must have the same column names and types, in the same order.
func (df *DataFrame) Concat(others ...*DataFrame) (*DataFrame, error) {
	for _, other := range others {
		if !df.hasSameSchema(other) {
			return nil, dferrors.NewInvalidInputError("Concat", "frames have different schemas")
		}
	}

	mem := memory.NewGoAllocator()
	result := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		parts := make([]arrow.Array, 0, len(others)+1)
		parts = append(parts, df.columns[name].Array())
		for _, other := range others {
			parts = append(parts, other.columns[name].Array())
		}

		joined, err := array.Concatenate(parts, mem)
		for _, p := range parts {
			p.Release()
		}
		if err != nil {
			New(result...).Release()
			return nil, dferrors.NewInternalError("Concat", err)
		}

		s, err := SeriesFromArray(name, joined)
		joined.Release()
		if err != nil {
			New(result...).Release()
			return nil, err
		}
		result = append(result, s)
	}
	return New(result...), nil
}

// hasSameSchema checks if two DataFrames have the same column structure
func (df *DataFrame) hasSameSchema(other *DataFrame) bool {
	if len(df.order) != len(other.order) {
		return false
	}

	for i, colName := range df.order {
		if other.order[i] != colName {
			return false
		}
		if !arrow.TypeEqual(df.columns[colName].DataType(), other.columns[colName].DataType()) {
			return false
		}
	}

	return true
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, series := range df.columns {
		series.Release()
	}
}
