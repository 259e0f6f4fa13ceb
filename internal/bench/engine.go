package bench

import (
	"context"
	"errors"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/parallel"
)

var errNoFrame = errors.New("dataset has no in-memory frame")

var errNoPath = errors.New("dataset has no file path")

// evaluate runs the query eagerly over df.
func evaluate(df *dataframe.DataFrame, q Query) (Outcome, error) {
	grouped, err := df.GroupBy(q.GroupBy...).Agg(q.Aggregations()...)
	if err != nil {
		return Outcome{}, err
	}
	defer grouped.Release()

	retained, err := grouped.Filter(q.Predicate())
	if err != nil {
		return Outcome{}, err
	}
	defer retained.Release()

	return outcomeFromFrame(retained, q.GroupBy)
}

// eagerStrategy groups, aggregates and filters the shared frame step by step.
type eagerStrategy struct {
	name string
	ds   *Dataset
}

func (s *eagerStrategy) Name() string        { return s.name }
func (s *eagerStrategy) Timing() TimingScope { return TimingQuery }

func (s *eagerStrategy) Prepare(_ context.Context, ds *Dataset) error {
	if ds.Frame == nil {
		return errNoFrame
	}
	s.ds = ds
	return nil
}

func (s *eagerStrategy) Run(_ context.Context, q Query) (Outcome, error) {
	return evaluate(s.ds.Frame, q)
}

// lazyStrategy builds an optimized plan over the shared frame and collects it.
type lazyStrategy struct {
	name string
	ds   *Dataset
}

func (s *lazyStrategy) Name() string        { return s.name }
func (s *lazyStrategy) Timing() TimingScope { return TimingQuery }

func (s *lazyStrategy) Prepare(_ context.Context, ds *Dataset) error {
	if ds.Frame == nil {
		return errNoFrame
	}
	s.ds = ds
	return nil
}

func (s *lazyStrategy) Run(_ context.Context, q Query) (Outcome, error) {
	return collect(q.Plan(s.ds.Frame.Lazy()), q)
}

func collect(lf *dataframe.LazyFrame, q Query) (Outcome, error) {
	result, err := lf.Collect()
	if err != nil {
		return Outcome{}, err
	}
	defer result.Release()
	return outcomeFromFrame(result, q.GroupBy)
}

// lazyScanStrategy starts its plan from the file, so the read is timed and
// only the columns the query uses are parsed.
type lazyScanStrategy struct {
	name string
	path string
}

func (s *lazyScanStrategy) Name() string        { return s.name }
func (s *lazyScanStrategy) Timing() TimingScope { return TimingLoadQuery }

func (s *lazyScanStrategy) Prepare(_ context.Context, ds *Dataset) error {
	if ds.Path == "" {
		return errNoPath
	}
	s.path = ds.Path
	return nil
}

func (s *lazyScanStrategy) Run(_ context.Context, q Query) (Outcome, error) {
	scanner := io.ScanFile(s.path, memory.NewGoAllocator())
	return collect(q.Plan(dataframe.Scan(scanner)), q)
}

// partitionStrategy is split-apply-combine: rows are split into buckets that
// never share a group, and each bucket is evaluated on the worker pool.
type partitionStrategy struct {
	name    string
	buckets int
	ds      *Dataset
}

func (s *partitionStrategy) Name() string        { return s.name }
func (s *partitionStrategy) Timing() TimingScope { return TimingQuery }

func (s *partitionStrategy) Prepare(_ context.Context, ds *Dataset) error {
	if ds.Frame == nil {
		return errNoFrame
	}
	if s.buckets <= 0 {
		s.buckets = runtime.GOMAXPROCS(0)
	}
	s.ds = ds
	return nil
}

func (s *partitionStrategy) Run(_ context.Context, q Query) (Outcome, error) {
	if len(q.GroupBy) == 0 {
		// one group: nothing to split
		return evaluate(s.ds.Frame, q)
	}

	parts, err := s.ds.Frame.BucketBy(s.buckets, q.GroupBy...)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		for _, p := range parts {
			p.Release()
		}
	}()

	pool := parallel.NewWorkerPool(s.buckets)
	defer pool.Close()

	outcomes, err := parallel.ProcessIndexedErr(pool, parts, func(_ int, part *dataframe.DataFrame) (Outcome, error) {
		return evaluate(part, q)
	})
	if err != nil {
		return Outcome{}, err
	}
	return mergeOutcomes(outcomes), nil
}
