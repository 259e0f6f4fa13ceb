package dataframe

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/expr"
	"github.com/paveg/groupbench/internal/series"
)

func createGroupedFrame(t *testing.T) *DataFrame {
	t.Helper()
	mem := memory.NewGoAllocator()

	categories := series.New("category", []string{"A", "B", "A", "B", "A"}, mem)
	values := series.New("value", []int64{10, 20, 30, 40, 50}, mem)
	prices, err := series.NewNullable("price", []float64{1.5, 0, 3.5, 0, 5.5}, []bool{true, false, true, false, true}, mem)
	require.NoError(t, err)
	return New(categories, values, prices)
}

func withConfig(t *testing.T, modify func(*config.Config)) {
	t.Helper()
	original := config.GetGlobalConfig()
	cfg := original
	modify(&cfg)
	config.SetGlobalConfig(cfg)
	t.Cleanup(func() { config.SetGlobalConfig(original) })
}

func TestDataFrameGroupBy(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()

	gb := df.GroupBy("category")
	require.NoError(t, gb.Err())
	assert.Equal(t, 2, gb.NumGroups())
	assert.Equal(t, []string{"category"}, gb.Keys())
	assert.Equal(t, [][]int{{0, 2, 4}, {1, 3}}, gb.Indices())
}

func TestGroupByAggregations(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()

	result, err := df.GroupBy("category").Agg(
		expr.Sum(expr.Col("value")),
		expr.Mean(expr.Col("value")).As("avg"),
		expr.Count(expr.Col("price")),
		expr.Min(expr.Col("value")),
		expr.Max(expr.Col("value")),
		expr.Mean(expr.Col("price")),
	)
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, []string{"category", "sum_value", "avg", "count_price", "min_value", "max_value", "mean_price"}, result.Columns())
	assert.Equal(t, []string{"A", "B"}, stringColumn(t, result, "category"))

	sums, _ := float64Column(t, result, "sum_value")
	assert.Equal(t, []float64{90, 60}, sums)

	avg, _ := float64Column(t, result, "avg")
	assert.Equal(t, []float64{30, 30}, avg)

	counts, _ := float64Column(t, result, "count_price")
	assert.Equal(t, []float64{3, 0}, counts)

	mins, _ := float64Column(t, result, "min_value")
	assert.Equal(t, []float64{10, 20}, mins)

	maxs, _ := float64Column(t, result, "max_value")
	assert.Equal(t, []float64{50, 40}, maxs)

	// group B has only null prices: its mean is null, never zero
	means, valid := float64Column(t, result, "mean_price")
	assert.InDelta(t, 3.5, means[0], 1e-12)
	assert.Equal(t, []bool{true, false}, valid)
}

func TestGroupByParallelMatchesSequential(t *testing.T) {
	mem := memory.NewGoAllocator()
	n := 2000
	keys := make([]int64, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range keys {
		keys[i] = int64(i % 7)
		a[i] = float64(i)
		b[i] = float64(i % 3)
	}
	df := New(series.New("id", keys, mem), series.New("a", a, mem), series.New("b", b, mem))
	defer df.Release()

	aggs := []*expr.AggregationExpr{expr.Mean(expr.Col("a")), expr.Mean(expr.Col("b"))}

	withConfig(t, func(c *config.Config) { c.ParallelThreshold = 1_000_000 })
	sequential, err := df.GroupBy("id").Agg(aggs...)
	require.NoError(t, err)
	defer sequential.Release()

	withConfig(t, func(c *config.Config) { c.ParallelThreshold = 10; c.WorkerPoolSize = 4 })
	parallelResult, err := df.GroupBy("id").Agg(aggs...)
	require.NoError(t, err)
	defer parallelResult.Release()

	for _, col := range []string{"mean_a", "mean_b"} {
		want, _ := float64Column(t, sequential, col)
		got, _ := float64Column(t, parallelResult, col)
		assert.Equal(t, want, got, col)
	}
	assert.Equal(t, 7, parallelResult.Len())
}

func TestGroupByMultipleKeys(t *testing.T) {
	mem := memory.NewGoAllocator()
	region, err := series.NewNullable("region", []string{"n", "n", "s", "", "", "n"}, []bool{true, true, true, false, false, true}, mem)
	require.NoError(t, err)
	df := New(
		region,
		series.New("tier", []int64{1, 2, 1, 1, 1, 1}, mem),
		series.New("v", []float64{1, 2, 3, 4, 5, 6}, mem),
	)
	defer df.Release()

	gb := df.GroupBy("region", "tier")
	require.NoError(t, gb.Err())
	// (n,1) (n,2) (s,1) (null,1)
	assert.Equal(t, 4, gb.NumGroups())
	assert.Equal(t, [][]int{{0, 5}, {1}, {2}, {3, 4}}, gb.Indices())

	result, err := gb.Agg(expr.Mean(expr.Col("v")))
	require.NoError(t, err)
	defer result.Release()
	means, _ := float64Column(t, result, "mean_v")
	assert.Equal(t, []float64{3.5, 2, 3, 4.5}, means)

	keyCol, _ := result.Column("region")
	assert.True(t, keyCol.IsNull(3))
}

func TestGroupByFloatAndBoolKeys(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := New(
		series.New("f", []float64{0.5, 0.5, math.NaN(), math.NaN()}, mem),
		series.New("b", []bool{true, true, false, false}, mem),
		series.New("v", []int32{1, 3, 5, 7}, mem),
	)
	defer df.Release()

	result, err := df.GroupBy("f", "b").Agg(expr.Mean(expr.Col("v")))
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, 2, result.Len())
	means, _ := float64Column(t, result, "mean_v")
	assert.Equal(t, []float64{2, 6}, means)
}

func TestGroupByNaNIsMissing(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := New(
		series.New("id", []string{"A", "A", "B"}, mem),
		series.New("v", []float64{math.NaN(), 1, math.NaN()}, mem),
	)
	defer df.Release()

	result, err := df.GroupBy("id").Agg(
		expr.Mean(expr.Col("v")),
		expr.Count(expr.Col("v")),
		expr.Max(expr.Col("v")),
	)
	require.NoError(t, err)
	defer result.Release()

	means, valid := float64Column(t, result, "mean_v")
	assert.Equal(t, 1.0, means[0])
	assert.Equal(t, []bool{true, false}, valid)

	counts, ok := result.Column("count_v")
	require.True(t, ok)
	assert.Equal(t, "1", counts.GetAsString(0))
	assert.Equal(t, "0", counts.GetAsString(1))

	maxes, _ := float64Column(t, result, "max_v")
	assert.Equal(t, 1.0, maxes[0])
}

func TestGroupByNoKeys(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()

	result, err := df.GroupBy().Agg(expr.Mean(expr.Col("value")))
	require.NoError(t, err)
	defer result.Release()

	assert.Equal(t, []string{"mean_value"}, result.Columns())
	means, _ := float64Column(t, result, "mean_value")
	assert.Equal(t, []float64{30}, means)

	empty := df.Slice(0, 0)
	defer empty.Release()
	result, err = empty.GroupBy().Agg(expr.Mean(expr.Col("value")))
	require.NoError(t, err)
	defer result.Release()

	_, valid := float64Column(t, result, "mean_value")
	assert.Equal(t, []bool{false}, valid)
}

func TestGroupByEmptyFrame(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()
	empty := df.Slice(0, 0)
	defer empty.Release()

	result, err := empty.GroupBy("category").Agg(expr.Mean(expr.Col("value")))
	require.NoError(t, err)
	defer result.Release()
	assert.Equal(t, 0, result.Len())
	assert.Equal(t, []string{"category", "mean_value"}, result.Columns())
}

func TestGroupByErrors(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()

	_, err := df.GroupBy("missing").Agg(expr.Mean(expr.Col("value")))
	assert.Error(t, err)

	_, err = df.GroupBy("category").Agg(expr.Mean(expr.Col("category")))
	assert.Error(t, err, "mean of a string column")

	_, err = df.GroupBy("category").Agg(expr.Mean(expr.Col("value").Add(expr.Lit(1))))
	assert.Error(t, err, "aggregation over an expression")

	result, err := df.GroupBy("category").Agg(expr.Count(expr.Col("category")))
	require.NoError(t, err, "count works on any column")
	result.Release()
}

func TestPartitionBy(t *testing.T) {
	df := createGroupedFrame(t)
	defer df.Release()

	parts, err := df.PartitionBy("category")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	assert.Equal(t, []string{"A", "A", "A"}, stringColumn(t, parts[0], "category"))
	assert.Equal(t, []string{"B", "B"}, stringColumn(t, parts[1], "category"))

	_, err = df.PartitionBy("missing")
	assert.Error(t, err)
}

func TestBucketBy(t *testing.T) {
	mem := memory.NewGoAllocator()
	keys := make([]int64, 100)
	for i := range keys {
		keys[i] = int64(i % 10)
	}
	df := New(series.New("id", keys, mem))
	defer df.Release()

	buckets, err := df.BucketBy(3, "id")
	require.NoError(t, err)
	require.Len(t, buckets, 3)

	seen := map[string]int{}
	total := 0
	for b, part := range buckets {
		total += part.Len()
		for _, k := range stringColumn(t, part, "id") {
			if prev, ok := seen[k]; ok {
				assert.Equal(t, prev, b, "group %s split across buckets", k)
			}
			seen[k] = b
		}
		part.Release()
	}
	assert.Equal(t, 100, total)
	assert.Len(t, seen, 10)

	few, err := df.BucketBy(50, "id")
	require.NoError(t, err)
	assert.Len(t, few, 10, "empty buckets are dropped")
	for _, part := range few {
		part.Release()
	}
}
