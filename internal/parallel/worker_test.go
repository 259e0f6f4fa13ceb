package parallel_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paveg/groupbench/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	pool := parallel.NewWorkerPool(0)
	defer pool.Close()
	assert.Equal(t, runtime.NumCPU(), pool.Workers())

	pool2 := parallel.NewWorkerPool(4)
	defer pool2.Close()
	assert.Equal(t, 4, pool2.Workers())

	// Negative worker count defaults to CPU count
	pool3 := parallel.NewWorkerPool(-1)
	defer pool3.Close()
	assert.Equal(t, runtime.NumCPU(), pool3.Workers())
}

func TestProcessBasic(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	// Test basic processing
	input := []int{1, 2, 3, 4, 5}

	// Square each number
	results := parallel.Process(pool, input, func(x int) int {
		return x * x
	})

	// Results might not be in order due to parallel processing
	assert.Len(t, results, 5)

	// Convert to map for order-independent comparison
	resultMap := make(map[int]bool)
	for _, r := range results {
		resultMap[r] = true
	}

	expected := map[int]bool{1: true, 4: true, 9: true, 16: true, 25: true}
	assert.Equal(t, expected, resultMap)
}

func TestProcessEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	// Test empty input
	input := []int{}
	results := parallel.Process(pool, input, func(x int) int {
		return x * 2
	})

	assert.Nil(t, results)
}

func TestProcessIndexed(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	// Test indexed processing (results should maintain order)
	input := []string{"a", "b", "c", "d"}

	results := parallel.ProcessIndexed(pool, input, func(index int, value string) string {
		return value + string(rune('0'+index))
	})

	expected := []string{"a0", "b1", "c2", "d3"}
	assert.Equal(t, expected, results)
}

func TestProcessIndexedEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	// Test empty input with indexed processing
	input := []string{}
	results := parallel.ProcessIndexed(pool, input, func(_ int, value string) string {
		return value
	})

	assert.Nil(t, results)
}

func TestProcessConcurrency(t *testing.T) {
	pool := parallel.NewWorkerPool(4)
	defer pool.Close()

	// Test that work is actually being done concurrently
	var concurrentCount int64
	var maxConcurrent int64

	input := make([]int, 20)
	for i := range input {
		input[i] = i
	}

	results := parallel.Process(pool, input, func(x int) int {
		// Track concurrent executions
		current := atomic.AddInt64(&concurrentCount, 1)

		// Update max if needed
		for {
			maxVal := atomic.LoadInt64(&maxConcurrent)
			if current <= maxVal || atomic.CompareAndSwapInt64(&maxConcurrent, maxVal, current) {
				break
			}
		}

		// Simulate some work
		time.Sleep(10 * time.Millisecond)

		atomic.AddInt64(&concurrentCount, -1)
		return x * 2
	})

	assert.Len(t, results, 20)

	// We should have had multiple concurrent executions
	// (at least 2 since we have 4 workers and 20 items with delays)
	assert.Greater(t, maxConcurrent, int64(1), "Expected some concurrent execution")
}

func TestProcessDifferentTypes(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	// Test string to int conversion
	input := []string{"1", "2", "3"}

	results := parallel.Process(pool, input, func(s string) int {
		switch s {
		case "1":
			return 1
		case "2":
			return 2
		case "3":
			return 3
		default:
			return 0
		}
	})

	assert.Len(t, results, 3)

	// Check that all expected values are present
	resultMap := make(map[int]bool)
	for _, r := range results {
		resultMap[r] = true
	}

	expected := map[int]bool{1: true, 2: true, 3: true}
	assert.Equal(t, expected, resultMap)
}

func TestWorkerPoolClose(t *testing.T) {
	pool := parallel.NewWorkerPool(2)

	// Pool should work before closing
	input := []int{1, 2, 3}
	results := parallel.Process(pool, input, func(x int) int {
		return x
	})
	assert.Len(t, results, 3)

	// Close the pool
	pool.Close()

	// After closing, context should be canceled
	// This is mainly testing that Close() doesn't panic
	assert.NotPanics(t, func() {
		pool.Close() // Should be safe to call multiple times
	})
}

func TestLargeDataset(t *testing.T) {
	pool := parallel.NewWorkerPool(runtime.NumCPU())
	defer pool.Close()

	// Test with larger dataset to ensure it works under load
	size := 1000
	input := make([]int, size)
	for i := range size {
		input[i] = i
	}

	results := parallel.Process(pool, input, func(x int) int {
		// Simple computation
		return x*x + x + 1
	})

	require.Len(t, results, size)

	// Verify some results (order doesn't matter)
	resultMap := make(map[int]bool)
	for _, r := range results {
		resultMap[r] = true
	}

	// Check a few expected values
	assert.True(t, resultMap[1]) // f(0) = 0*0 + 0 + 1 = 1
	assert.True(t, resultMap[3]) // f(1) = 1*1 + 1 + 1 = 3
	assert.True(t, resultMap[7]) // f(2) = 2*2 + 2 + 1 = 7
}

func TestProcessIndexedErr(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	defer pool.Close()

	t.Run("success keeps order", func(t *testing.T) {
		results, err := parallel.ProcessIndexedErr(pool, []int{3, 1, 2}, func(i, v int) (int, error) {
			return i * v, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, 4}, results)
	})

	t.Run("first error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		results, err := parallel.ProcessIndexedErr(pool, []int{1, 2, 3, 4}, func(_ int, v int) (int, error) {
			if v == 3 {
				return 0, boom
			}
			return v, nil
		})
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, results)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		_, err := parallel.ProcessIndexedErr(pool, []int{1}, func(_ int, _ int) (int, error) {
			panic("bad partition")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad partition")
	})
}

func TestProcessIndexedErrCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := parallel.NewWorkerPoolWithContext(ctx, 2)
	defer pool.Close()
	cancel()

	_, err := parallel.ProcessIndexedErr(pool, []int{1, 2, 3}, func(_ int, v int) (int, error) {
		return v, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChunks(t *testing.T) {
	tests := []struct {
		name string
		n    int
		size int
		want [][2]int
	}{
		{"even", 6, 3, [][2]int{{0, 3}, {3, 6}}},
		{"remainder", 7, 3, [][2]int{{0, 3}, {3, 6}, {6, 7}}},
		{"size larger than n", 2, 10, [][2]int{{0, 2}}},
		{"zero size means one chunk", 5, 0, [][2]int{{0, 5}}},
		{"empty", 0, 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parallel.Chunks(tt.n, tt.size))
		})
	}
}
