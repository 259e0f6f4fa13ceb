package dataframe

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	xxhash "github.com/cespare/xxhash/v2"

	"github.com/paveg/groupbench/internal/config"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/expr"
	"github.com/paveg/groupbench/internal/parallel"
	"github.com/paveg/groupbench/internal/series"
)

// GroupBy represents a grouped DataFrame for aggregation operations.
// Groups are numbered in order of first appearance.
type GroupBy struct {
	df          *DataFrame
	groupByCols []string
	groupOf     []int // row -> group id
	firstRow    []int // group id -> first row, -1 for the empty full-table group
	err         error
}

// GroupBy assigns every row to a group keyed by the given columns. With no
// columns the whole frame is a single group.
func (df *DataFrame) GroupBy(columns ...string) *GroupBy {
	gb := &GroupBy{df: df, groupByCols: append([]string(nil), columns...)}
	if err := df.RequireColumns("GroupBy", false, columns...); err != nil {
		gb.err = err
		return gb
	}
	gb.buildGroups()
	return gb
}

// Err returns the error found while grouping, if any.
func (gb *GroupBy) Err() error {
	return gb.err
}

// NumGroups returns the number of distinct keys.
func (gb *GroupBy) NumGroups() int {
	return len(gb.firstRow)
}

// Keys returns the grouping columns.
func (gb *GroupBy) Keys() []string {
	return append([]string(nil), gb.groupByCols...)
}

// Indices returns the row indices of every group, in group order.
func (gb *GroupBy) Indices() [][]int {
	counts := make([]int, len(gb.firstRow))
	for _, g := range gb.groupOf {
		counts[g]++
	}
	out := make([][]int, len(gb.firstRow))
	for g := range out {
		out[g] = make([]int, 0, counts[g])
	}
	for row, g := range gb.groupOf {
		out[g] = append(out[g], row)
	}
	return out
}

// keyColumn hashes and compares one grouping column.
type keyColumn struct {
	arr   arrow.Array
	write func(d *xxhash.Digest, row int)
	equal func(a, b int) bool
}

func newKeyColumn(arr arrow.Array) (keyColumn, error) {
	var buf [8]byte
	kc := keyColumn{arr: arr}

	switch a := arr.(type) {
	case *array.String:
		kc.write = func(d *xxhash.Digest, row int) {
			v := a.Value(row)
			binary.LittleEndian.PutUint64(buf[:], uint64(len(v)))
			_, _ = d.Write(buf[:])
			_, _ = d.WriteString(v)
		}
		kc.equal = func(x, y int) bool { return a.Value(x) == a.Value(y) }
	case *array.Int64:
		kc.write = func(d *xxhash.Digest, row int) {
			binary.LittleEndian.PutUint64(buf[:], uint64(a.Value(row)))
			_, _ = d.Write(buf[:])
		}
		kc.equal = func(x, y int) bool { return a.Value(x) == a.Value(y) }
	case *array.Int32:
		kc.write = func(d *xxhash.Digest, row int) {
			binary.LittleEndian.PutUint64(buf[:], uint64(a.Value(row)))
			_, _ = d.Write(buf[:])
		}
		kc.equal = func(x, y int) bool { return a.Value(x) == a.Value(y) }
	case *array.Float64:
		kc.write = func(d *xxhash.Digest, row int) {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(a.Value(row)))
			_, _ = d.Write(buf[:])
		}
		kc.equal = func(x, y int) bool {
			return math.Float64bits(a.Value(x)) == math.Float64bits(a.Value(y))
		}
	case *array.Boolean:
		kc.write = func(d *xxhash.Digest, row int) {
			buf[0] = 0
			if a.Value(row) {
				buf[0] = 1
			}
			_, _ = d.Write(buf[:1])
		}
		kc.equal = func(x, y int) bool { return a.Value(x) == a.Value(y) }
	default:
		return kc, fmt.Errorf("%s", arr.DataType())
	}
	return kc, nil
}

func (kc keyColumn) hash(d *xxhash.Digest, row int) {
	if kc.arr.IsNull(row) {
		_, _ = d.Write([]byte{0})
		return
	}
	_, _ = d.Write([]byte{1})
	kc.write(d, row)
}

func (kc keyColumn) same(a, b int) bool {
	an, bn := kc.arr.IsNull(a), kc.arr.IsNull(b)
	if an || bn {
		return an == bn
	}
	return kc.equal(a, b)
}

// buildGroups makes one pass over the rows, hashing the key tuple with xxhash
// and confirming candidates by value so hash collisions never merge groups.
func (gb *GroupBy) buildGroups() {
	rows := gb.df.Len()
	gb.groupOf = make([]int, rows)

	if len(gb.groupByCols) == 0 {
		gb.firstRow = []int{-1}
		if rows > 0 {
			gb.firstRow[0] = 0
		}
		return
	}

	keys := make([]keyColumn, len(gb.groupByCols))
	for i, name := range gb.groupByCols {
		arr := gb.df.columns[name].Array()
		defer arr.Release()
		kc, err := newKeyColumn(arr)
		if err != nil {
			gb.err = dferrors.NewUnsupportedTypeError("GroupBy", name, err.Error())
			return
		}
		keys[i] = kc
	}

	buckets := make(map[uint64][]int)
	digest := xxhash.New()
	for row := 0; row < rows; row++ {
		digest.Reset()
		for _, kc := range keys {
			kc.hash(digest, row)
		}
		h := digest.Sum64()

		group := -1
		for _, candidate := range buckets[h] {
			if sameKey(keys, gb.firstRow[candidate], row) {
				group = candidate
				break
			}
		}
		if group < 0 {
			group = len(gb.firstRow)
			gb.firstRow = append(gb.firstRow, row)
			buckets[h] = append(buckets[h], group)
		}
		gb.groupOf[row] = group
	}
}

func sameKey(keys []keyColumn, a, b int) bool {
	for _, kc := range keys {
		if !kc.same(a, b) {
			return false
		}
	}
	return true
}

// Agg computes one output column per aggregation and returns a frame with the
// grouping columns followed by the aggregates, one row per group.
//
// NaN counts as missing. Mean, Min and Max of a group without present values
// are null; Sum of such a group is 0; Count counts present values.
func (gb *GroupBy) Agg(aggregations ...*expr.AggregationExpr) (*DataFrame, error) {
	if gb.err != nil {
		return nil, gb.err
	}

	sources := make([]string, len(aggregations))
	for i, agg := range aggregations {
		col, ok := agg.Column().(*expr.ColumnExpr)
		if !ok {
			return nil, dferrors.NewInvalidInputError("Agg", fmt.Sprintf("aggregation %s must reference a column", agg))
		}
		if err := gb.df.RequireColumns("Agg", agg.AggType() != expr.AggCount, col.Name()); err != nil {
			return nil, err
		}
		sources[i] = col.Name()
	}

	result, err := gb.keyFrame()
	if err != nil {
		return nil, err
	}

	var aggSeries []ISeries
	cfg := config.GetGlobalConfig()
	if len(aggregations) > 1 && gb.df.Len() >= cfg.ParallelThreshold {
		aggSeries, err = gb.aggParallel(aggregations, sources, cfg.WorkerPoolSize)
	} else {
		aggSeries, err = gb.aggSequential(aggregations, sources)
	}
	if err != nil {
		result.Release()
		return nil, err
	}

	for _, s := range aggSeries {
		if _, dup := result.columns[s.Name()]; !dup {
			result.order = append(result.order, s.Name())
		}
		result.columns[s.Name()] = s
	}
	return result, nil
}

// keyFrame holds one row per group with the grouping column values.
func (gb *GroupBy) keyFrame() (*DataFrame, error) {
	if len(gb.groupByCols) == 0 {
		return New(), nil
	}
	keys := gb.df.Select(gb.groupByCols...)
	defer keys.Release()
	return keys.Take(gb.firstRow)
}

func (gb *GroupBy) aggSequential(aggregations []*expr.AggregationExpr, sources []string) ([]ISeries, error) {
	out := make([]ISeries, 0, len(aggregations))
	for i, agg := range aggregations {
		s, err := gb.aggregate(agg, sources[i])
		if err != nil {
			New(out...).Release()
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// aggParallel fans the aggregations out over the worker pool, one column per item.
func (gb *GroupBy) aggParallel(aggregations []*expr.AggregationExpr, sources []string, workers int) ([]ISeries, error) {
	pool := parallel.NewWorkerPool(workers)
	defer pool.Close()

	out, err := parallel.ProcessIndexedErr(pool, aggregations, func(i int, agg *expr.AggregationExpr) (ISeries, error) {
		return gb.aggregate(agg, sources[i])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// aggState accumulates per-group statistics for one column.
type aggState struct {
	sum   []float64
	count []int64
	min   []float64
	max   []float64
}

func (gb *GroupBy) aggregate(agg *expr.AggregationExpr, source string) (ISeries, error) {
	arr := gb.df.columns[source].Array()
	defer arr.Release()

	groups := len(gb.firstRow)
	mem := memory.NewGoAllocator()
	name := agg.OutputName()

	if agg.AggType() == expr.AggCount {
		counts := make([]int64, groups)
		for row, g := range gb.groupOf {
			if arr.IsValid(row) && !isNaN(arr, row) {
				counts[g]++
			}
		}
		return series.New(name, counts, mem), nil
	}

	st := gb.accumulate(arr, agg.AggType())

	values := make([]float64, groups)
	valid := make([]bool, groups)
	for g := 0; g < groups; g++ {
		switch agg.AggType() {
		case expr.AggSum:
			values[g], valid[g] = st.sum[g], true
		case expr.AggMean:
			if st.count[g] > 0 {
				values[g], valid[g] = st.sum[g]/float64(st.count[g]), true
			}
		case expr.AggMin:
			if st.count[g] > 0 {
				values[g], valid[g] = st.min[g], true
			}
		case expr.AggMax:
			if st.count[g] > 0 {
				values[g], valid[g] = st.max[g], true
			}
		}
	}
	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (gb *GroupBy) accumulate(arr arrow.Array, aggType expr.AggregationType) aggState {
	groups := len(gb.firstRow)
	st := aggState{sum: make([]float64, groups), count: make([]int64, groups)}
	tracksRange := aggType == expr.AggMin || aggType == expr.AggMax
	if tracksRange {
		st.min = make([]float64, groups)
		st.max = make([]float64, groups)
	}

	add := func(g int, v float64) {
		if math.IsNaN(v) {
			return
		}
		if tracksRange {
			if st.count[g] == 0 || v < st.min[g] {
				st.min[g] = v
			}
			if st.count[g] == 0 || v > st.max[g] {
				st.max[g] = v
			}
		}
		st.sum[g] += v
		st.count[g]++
	}

	// dense float64 columns skip the per-row null check
	if f, ok := arr.(*array.Float64); ok && f.NullN() == 0 {
		for row, v := range f.Float64Values() {
			add(gb.groupOf[row], v)
		}
		return st
	}

	get, _ := series.NumericAccessor(arr)
	for row, g := range gb.groupOf {
		if v, ok := get(row); ok {
			add(g, v)
		}
	}
	return st
}

func isNaN(arr arrow.Array, row int) bool {
	switch a := arr.(type) {
	case *array.Float64:
		return math.IsNaN(a.Value(row))
	case *array.Float32:
		return math.IsNaN(float64(a.Value(row)))
	}
	return false
}
