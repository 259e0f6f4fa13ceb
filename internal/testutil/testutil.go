// Package testutil provides helpers shared by tests: leak-checked Arrow
// allocators, small benchmark-shaped frames and datasets written to disk.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/series"
)

const (
	defaultRowCount = 8
	defaultGroups   = 4
	defaultValues   = 2
)

// TestMemoryContext provides a checked allocator for one test.
type TestMemoryContext struct {
	Allocator *memory.CheckedAllocator
	tb        testing.TB
}

// Release fails the test if anything allocated through the context is still
// retained.
func (tmc *TestMemoryContext) Release() {
	tmc.tb.Helper()
	tmc.Allocator.AssertSize(tmc.tb, 0)
}

// SetupMemoryTest creates a leak-checking allocator.
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewCheckedAllocator(memory.NewGoAllocator()),
		tb:        tb,
	}
}

// TestDataFrameOption configures test DataFrame creation.
type TestDataFrameOption func(*testDataFrameConfig)

type testDataFrameConfig struct {
	includeNulls bool
	rowCount     int
	groups       int
	values       int
}

// WithNulls makes every third value of v1 null.
func WithNulls() TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.includeNulls = true
	}
}

// WithRowCount sets the number of rows in test data.
func WithRowCount(count int) TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.rowCount = count
	}
}

// WithGroups sets the number of distinct ids.
func WithGroups(groups int) TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.groups = groups
	}
}

// WithValueColumns sets the number of value columns v1..vN.
func WithValueColumns(n int) TestDataFrameOption {
	return func(cfg *testDataFrameConfig) {
		cfg.values = n
	}
}

// CreateTestDataFrame builds a frame shaped like the benchmark dataset:
// an int64 "id" column with id = row mod groups, and float64 columns
// v1..vN. Values are deterministic: v_j at row i is ((i*j) mod 10) / 10.
func CreateTestDataFrame(allocator memory.Allocator, opts ...TestDataFrameOption) *dataframe.DataFrame {
	cfg := &testDataFrameConfig{
		rowCount: defaultRowCount,
		groups:   defaultGroups,
		values:   defaultValues,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ids := make([]int64, cfg.rowCount)
	for i := range ids {
		ids[i] = int64(i % cfg.groups)
	}
	cols := []dataframe.ISeries{series.New("id", ids, allocator)}

	for j := 1; j <= cfg.values; j++ {
		values := make([]float64, cfg.rowCount)
		valid := make([]bool, cfg.rowCount)
		for i := range values {
			values[i] = float64((i*j)%10) / 10
			valid[i] = !(cfg.includeNulls && j == 1 && i%3 == 0)
		}
		s, err := series.NewNullable(fmt.Sprintf("v%d", j), values, valid, allocator)
		if err != nil {
			panic(err)
		}
		cols = append(cols, s)
	}
	return dataframe.New(cols...)
}

// WriteDataset writes df under the test's temporary directory and returns
// the path. The extension picks the format.
func WriteDataset(tb testing.TB, df *dataframe.DataFrame, name string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	require.NoError(tb, io.WriteFile(path, df))
	return path
}

// AssertDataFrameHasColumns verifies that a DataFrame has the expected columns.
func AssertDataFrameHasColumns(t *testing.T, df *dataframe.DataFrame, expectedColumns []string) {
	t.Helper()

	require.NotNil(t, df, "DataFrame should not be nil")
	assert.Equal(t, expectedColumns, df.Columns(), "columns should match in order")
}

// AssertColumnStrings compares a column's rendered values; nulls render as "".
func AssertColumnStrings(t *testing.T, df *dataframe.DataFrame, column string, expected []string) {
	t.Helper()

	col, ok := df.Column(column)
	require.True(t, ok, "DataFrame should have column %s", column)

	actual := make([]string, col.Len())
	for i := range actual {
		actual[i] = col.GetAsString(i)
	}
	assert.Equal(t, expected, actual, "column %s", column)
}
