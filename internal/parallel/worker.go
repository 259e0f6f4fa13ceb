// Package parallel provides the worker pool used to fan work out across
// columns and partitions.
//
// Work items are distributed over a fixed number of goroutines; results are
// collected either in completion order (Process) or in input order
// (ProcessIndexed, ProcessIndexedErr). The pool size defaults to
// runtime.NumCPU().
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of goroutines for parallel processing
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(numWorkers int) *WorkerPool {
	return NewWorkerPoolWithContext(context.Background(), numWorkers)
}

// NewWorkerPoolWithContext creates a pool that stops handing out work once ctx
// is cancelled.
func NewWorkerPoolWithContext(ctx context.Context, numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Workers returns the number of goroutines the pool runs.
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}

// Process executes work items in parallel using fan-out/fan-in pattern
func Process[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(T) R,
) []R {
	if len(items) == 0 {
		return nil
	}

	indexed := ProcessIndexed(wp, items, func(_ int, item T) R {
		return worker(item)
	})
	return indexed
}

// ProcessIndexed executes work items in parallel while preserving order
func ProcessIndexed[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) R,
) []R {
	results, _ := ProcessIndexedErr(wp, items, func(i int, item T) (R, error) {
		return worker(i, item), nil
	})
	return results
}

// ProcessIndexedErr is ProcessIndexed for workers that can fail. The first
// error wins and cancels the remaining items. A panicking worker is reported
// as an error.
func ProcessIndexedErr[T, R any](
	wp *WorkerPool,
	items []T,
	worker func(int, T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(wp.ctx)
	defer cancel()

	itemCh := make(chan indexedItem[T], len(items))
	resultCh := make(chan indexedResult[R], len(items))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := wp.numWorkers
	if workers > len(items) {
		workers = len(items)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				result, err := safeCall(item, worker)
				if err != nil {
					fail(err)
					return
				}
				resultCh <- indexedResult[R]{index: item.index, result: result}
			}
		}()
	}

	go func() {
		defer close(itemCh)
		for i, item := range items {
			select {
			case <-ctx.Done():
				return
			case itemCh <- indexedItem[T]{index: i, value: item}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	received := 0
	for result := range resultCh {
		results[result.index] = result.result
		received++
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if received < len(items) {
		if err := wp.ctx.Err(); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func safeCall[T, R any](item indexedItem[T], worker func(int, T) (R, error)) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic on item %d: %v", item.index, r)
		}
	}()
	return worker(item.index, item.value)
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.cancel()
}

// Chunks splits [0, n) into contiguous half-open ranges of at most size rows.
func Chunks(n, size int) [][2]int {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = n
	}
	ranges := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// indexedItem holds an item with its index
type indexedItem[T any] struct {
	index int
	value T
}

// indexedResult holds a result with its index
type indexedResult[R any] struct {
	index  int
	result R
}
