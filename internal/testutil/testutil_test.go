package testutil_test

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/testutil"
)

func TestSetupMemoryTest(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateTestDataFrame(mem.Allocator)
	assert.Positive(t, mem.Allocator.CurrentAlloc())
	df.Release()
	assert.Zero(t, mem.Allocator.CurrentAlloc())
}

func TestCreateTestDataFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	t.Run("default configuration", func(t *testing.T) {
		df := testutil.CreateTestDataFrame(mem.Allocator)
		defer df.Release()

		assert.Equal(t, 8, df.Len())
		testutil.AssertDataFrameHasColumns(t, df, []string{"id", "v1", "v2"})
		testutil.AssertColumnStrings(t, df, "id", []string{"0", "1", "2", "3", "0", "1", "2", "3"})
		testutil.AssertColumnStrings(t, df, "v2", []string{"0", "0.2", "0.4", "0.6", "0.8", "0", "0.2", "0.4"})
	})

	t.Run("custom shape", func(t *testing.T) {
		df := testutil.CreateTestDataFrame(mem.Allocator,
			testutil.WithRowCount(10), testutil.WithGroups(5), testutil.WithValueColumns(3))
		defer df.Release()

		assert.Equal(t, 10, df.Len())
		testutil.AssertDataFrameHasColumns(t, df, []string{"id", "v1", "v2", "v3"})
	})

	t.Run("with nulls", func(t *testing.T) {
		df := testutil.CreateTestDataFrame(mem.Allocator, testutil.WithNulls(), testutil.WithRowCount(6))
		defer df.Release()

		col, ok := df.Column("v1")
		require.True(t, ok)
		assert.Equal(t, 2, col.NullN())
		assert.True(t, col.IsNull(0))
		assert.True(t, col.IsNull(3))

		v2, _ := df.Column("v2")
		assert.Zero(t, v2.NullN())
	})
}

func TestWriteDataset(t *testing.T) {
	df := testutil.CreateTestDataFrame(memory.NewGoAllocator(), testutil.WithNulls())
	defer df.Release()

	for _, name := range []string{"data.csv", "data.parquet"} {
		path := testutil.WriteDataset(t, df, name)

		back, err := io.ReadFile(path, nil, memory.NewGoAllocator())
		require.NoError(t, err)
		assert.Equal(t, df.Len(), back.Len(), name)
		testutil.AssertDataFrameHasColumns(t, back, df.Columns())
		col, _ := back.Column("v1")
		assert.Equal(t, 3, col.NullN(), name)
		back.Release()
	}
}
