package dataframe

import (
	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/parallel"
)

// PartitionBy splits the frame into one frame per distinct key, in order of
// first appearance. It is the split step of split-apply-combine.
func (df *DataFrame) PartitionBy(keys ...string) ([]*DataFrame, error) {
	gb := df.GroupBy(keys...)
	if gb.Err() != nil {
		return nil, gb.Err()
	}
	return df.takeAll(gb.Indices())
}

// BucketBy splits the frame into at most n frames so that every group lands in
// exactly one of them. Groups are dealt to buckets round-robin in order of
// first appearance; empty buckets are dropped.
func (df *DataFrame) BucketBy(n int, keys ...string) ([]*DataFrame, error) {
	gb := df.GroupBy(keys...)
	if gb.Err() != nil {
		return nil, gb.Err()
	}
	if n <= 0 {
		n = 1
	}

	buckets := make([][]int, n)
	for row, g := range gb.groupOf {
		b := g % n
		buckets[b] = append(buckets[b], row)
	}

	nonEmpty := buckets[:0]
	for _, rows := range buckets {
		if len(rows) > 0 {
			nonEmpty = append(nonEmpty, rows)
		}
	}
	return df.takeAll(nonEmpty)
}

func (df *DataFrame) takeAll(rowSets [][]int) ([]*DataFrame, error) {
	cfg := config.GetGlobalConfig()
	pool := parallel.NewWorkerPool(cfg.WorkerPoolSize)
	defer pool.Close()

	return parallel.ProcessIndexedErr(pool, rowSets, func(_ int, rows []int) (*DataFrame, error) {
		return df.Take(rows)
	})
}
