package bench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/monitoring"
	"github.com/paveg/groupbench/internal/series"
)

// fakeStrategy returns a fixed outcome, or fails in the configured way.
type fakeStrategy struct {
	name       string
	out        Outcome
	err        error
	prepareErr error
	panics     bool
	prepared   bool
	closed     bool
}

func (f *fakeStrategy) Name() string        { return f.name }
func (f *fakeStrategy) Timing() TimingScope { return TimingQuery }

func (f *fakeStrategy) Prepare(context.Context, *Dataset) error {
	f.prepared = true
	return f.prepareErr
}

func (f *fakeStrategy) Run(context.Context, Query) (Outcome, error) {
	if f.panics {
		panic("boom")
	}
	return f.out, f.err
}

func (f *fakeStrategy) Close() error {
	f.closed = true
	return nil
}

func testHarness(strategies ...Strategy) *Harness {
	h := NewHarness(strategies, nil)
	h.hostInfo = func() monitoring.HostInfo {
		return monitoring.HostInfo{Arch: "amd64", Platform: "linux", CPUCount: 4, GoVersion: "go1.24"}
	}
	return h
}

func TestHarnessRun(t *testing.T) {
	df := exampleFrame(t)
	defer df.Release()
	ds := writeDataset(t, df, "data.csv")
	q := Query{GroupBy: []string{"id"}, Values: []string{"v1"}, Threshold: 0.4}

	strategies := testStrategies(t)
	report, err := testHarness(strategies...).Run(context.Background(), ds, q)
	require.NoError(t, err)

	require.Len(t, report.Results, len(strategies))
	for i, res := range report.Results {
		assert.Equal(t, strategies[i].Name(), res.Strategy)
		assert.Equal(t, strategies[i].Timing(), res.Timing)
		require.NoError(t, res.Err, res.Strategy)
		assert.Equal(t, 1, res.Count, res.Strategy)
		assert.Equal(t, []string{"A"}, res.Keys, res.Strategy)
		assert.GreaterOrEqual(t, int64(res.Elapsed), int64(0), res.Strategy)
	}

	assert.True(t, report.Consistent)
	assert.NotEmpty(t, report.RunID.String())
	assert.Equal(t, DatasetInfo{Path: ds.Path, Rows: 4, Columns: 2}, report.Dataset)
	assert.Equal(t, len(strategies), report.Summary.Succeeded)
	assert.Zero(t, report.Summary.Failed)
	assert.Empty(t, report.Failed())
}

func TestHarnessRecoversFailures(t *testing.T) {
	df := exampleFrame(t)
	defer df.Release()

	panicking := &fakeStrategy{name: "panics", panics: true}
	failing := &fakeStrategy{name: "fails", err: errors.New("engine down")}
	unprepared := &fakeStrategy{name: "unprepared", prepareErr: errors.New("no engine")}
	healthy := &fakeStrategy{name: "healthy", out: Outcome{Count: 1, Keys: []string{"A"}}}

	h := testHarness(panicking, failing, unprepared, healthy, &eagerStrategy{name: "eager"})
	report, err := h.Run(context.Background(), &Dataset{Frame: df}, Query{GroupBy: []string{"id"}, Threshold: 0.4})
	require.NoError(t, err)
	require.Len(t, report.Results, 5)

	for _, res := range report.Results[:3] {
		require.Error(t, res.Err, res.Strategy)
		assert.ErrorIs(t, res.Err, dferrors.ErrStrategyFailure)
		assert.Contains(t, res.Error, res.Strategy)
		assert.Zero(t, res.Count)
		assert.False(t, res.OK())
	}
	assert.Contains(t, report.Results[0].Error, "panic: boom")
	assert.Contains(t, report.Results[1].Error, "engine down")
	assert.Contains(t, report.Results[2].Error, "prepare")

	assert.True(t, report.Results[3].OK())
	assert.True(t, report.Results[4].OK())
	assert.Equal(t, 1, report.Results[4].Count)
	assert.True(t, report.Consistent)
	assert.Len(t, report.Failed(), 3)

	for _, f := range []*fakeStrategy{panicking, failing, unprepared, healthy} {
		assert.True(t, f.prepared, f.name)
		assert.True(t, f.closed, f.name)
	}

	metrics := h.Metrics().GetMetrics()
	require.Len(t, metrics, 5)
	assert.False(t, metrics[0].Success)
	assert.True(t, metrics[4].Success)
}

func TestHarnessInconsistentResults(t *testing.T) {
	df := exampleFrame(t)
	defer df.Release()

	h := testHarness(
		&fakeStrategy{name: "one", out: Outcome{Count: 1, Keys: []string{"A"}}},
		&fakeStrategy{name: "other", out: Outcome{Count: 1, Keys: []string{"B"}}},
	)
	report, err := h.Run(context.Background(), &Dataset{Frame: df}, Query{GroupBy: []string{"id"}, Threshold: 0.4})
	require.NoError(t, err)
	assert.False(t, report.Consistent)
}

func TestHarnessLoadsPath(t *testing.T) {
	df := exampleFrame(t)
	defer df.Release()
	ds := writeDataset(t, df, "data.parquet")

	eager := &eagerStrategy{name: "eager"}
	report, err := testHarness(eager).Run(context.Background(), &Dataset{Path: ds.Path},
		Query{GroupBy: []string{"id"}, Values: []string{"v1"}, Threshold: 0.4})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Dataset.Rows)
	assert.Equal(t, 1, report.Results[0].Count)
}

func TestHarnessNaNCellIsConsistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nan.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,v1\nA,NaN\nA,1.0\nB,0.1\n"), 0o600))

	report, err := testHarness(testStrategies(t)...).Run(context.Background(), &Dataset{Path: path},
		Query{GroupBy: []string{"id"}, Values: []string{"v1"}, Threshold: 0.4})
	require.NoError(t, err)
	for _, res := range report.Results {
		require.True(t, res.OK(), "%s: %v", res.Strategy, res.Err)
		assert.Equal(t, 1, res.Count, res.Strategy)
		assert.Equal(t, []string{"A"}, res.Keys, res.Strategy)
	}
	assert.True(t, report.Consistent)
}

func TestHarnessDataUnavailable(t *testing.T) {
	healthy := &fakeStrategy{name: "healthy"}
	h := testHarness(healthy)

	for _, ds := range []*Dataset{
		{Path: filepath.Join(t.TempDir(), "missing.csv")},
		{Path: t.TempDir()},
		{},
	} {
		report, err := h.Run(context.Background(), ds, Query{GroupBy: []string{"id"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, dferrors.ErrDataUnavailable)
		assert.Nil(t, report)
	}
	assert.False(t, healthy.prepared)
}

func TestHarnessSchemaMismatch(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := dataframe.New(
		series.New("id", []string{"A", "B"}, mem),
		series.New("label", []string{"x", "y"}, mem),
		series.New("v1", []float64{0.5, 0.1}, mem),
	)
	defer df.Release()

	tests := []struct {
		name   string
		query  Query
		column string
	}{
		{"missing key", Query{GroupBy: []string{"nope"}, Values: []string{"v1"}}, "nope"},
		{"missing value", Query{GroupBy: []string{"id"}, Values: []string{"v9"}}, "v9"},
		{"non-numeric value", Query{GroupBy: []string{"id"}, Values: []string{"label"}}, "label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy := &fakeStrategy{name: "healthy"}
			_, err := testHarness(healthy).Run(context.Background(), &Dataset{Frame: df}, tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, dferrors.ErrSchemaMismatch)

			var benchErr *dferrors.BenchmarkError
			require.ErrorAs(t, err, &benchErr)
			assert.Equal(t, tt.column, benchErr.Column)
			assert.False(t, healthy.prepared)
		})
	}
}

func TestResolveQueryValues(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := dataframe.New(
		series.New("id", []int64{1, 2}, mem),
		series.New("label", []string{"x", "y"}, mem),
		series.New("v1", []float64{0.5, 0.1}, mem),
		series.New("v2", []int64{1, 0}, mem),
	)
	defer df.Release()

	q, err := resolveQuery(df, Query{GroupBy: []string{"id"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, q.Values)

	q, err = resolveQuery(df, Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "v1", "v2"}, q.Values)
}
