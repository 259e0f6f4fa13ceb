package dataframe

import (
	"fmt"
	"strings"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/expr"
	"github.com/paveg/groupbench/internal/parallel"
)

// Scanner reads a table from storage. A nil column list reads every column.
type Scanner interface {
	Scan(columns []string) (*DataFrame, error)
	String() string
}

// LazyOperation represents a deferred operation on a DataFrame
type LazyOperation interface {
	Apply(df *DataFrame) (*DataFrame, error)
	String() string
}

// ScanOperation reads the plan's input from a Scanner. Projection pushdown
// fills in columns.
type ScanOperation struct {
	scanner Scanner
	columns []string
}

func (s *ScanOperation) Apply(_ *DataFrame) (*DataFrame, error) {
	df, err := s.scanner.Scan(s.columns)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.scanner, err)
	}
	return df, nil
}

func (s *ScanOperation) String() string {
	if s.columns == nil {
		return fmt.Sprintf("scan(%s)", s.scanner)
	}
	return fmt.Sprintf("scan(%s, columns=[%s])", s.scanner, strings.Join(s.columns, ", "))
}

// FilterOperation represents a filter operation
type FilterOperation struct {
	predicate expr.Expr
}

func (f *FilterOperation) Apply(df *DataFrame) (*DataFrame, error) {
	return df.Filter(f.predicate)
}

func (f *FilterOperation) String() string {
	return fmt.Sprintf("filter(%s)", f.predicate.String())
}

// SelectOperation represents a column selection
type SelectOperation struct {
	columns []string
}

func (s *SelectOperation) Apply(df *DataFrame) (*DataFrame, error) {
	if err := df.RequireColumns("Select", false, s.columns...); err != nil {
		return nil, err
	}
	return df.Select(s.columns...), nil
}

func (s *SelectOperation) String() string {
	return fmt.Sprintf("select(%s)", strings.Join(s.columns, ", "))
}

// GroupByOperation represents a group by and aggregation operation
type GroupByOperation struct {
	groupByCols  []string
	aggregations []*expr.AggregationExpr
}

func (g *GroupByOperation) Apply(df *DataFrame) (*DataFrame, error) {
	return df.GroupBy(g.groupByCols...).Agg(g.aggregations...)
}

func (g *GroupByOperation) String() string {
	aggStrs := make([]string, len(g.aggregations))
	for i, agg := range g.aggregations {
		aggStrs[i] = agg.String()
	}
	return fmt.Sprintf("group_by(%s).agg(%s)", strings.Join(g.groupByCols, ", "), strings.Join(aggStrs, ", "))
}

// LazyFrame holds an input and a sequence of deferred operations.
// Every builder method returns a new LazyFrame; the receiver is not modified.
type LazyFrame struct {
	source     *DataFrame
	scan       *ScanOperation
	operations []LazyOperation
}

// Lazy converts a DataFrame to a LazyFrame
func (df *DataFrame) Lazy() *LazyFrame {
	return &LazyFrame{source: df}
}

// Scan starts a plan that reads its input from s when collected.
func Scan(s Scanner) *LazyFrame {
	return &LazyFrame{scan: &ScanOperation{scanner: s}}
}

func (lf *LazyFrame) with(op LazyOperation) *LazyFrame {
	ops := make([]LazyOperation, len(lf.operations), len(lf.operations)+1)
	copy(ops, lf.operations)
	return &LazyFrame{
		source:     lf.source,
		scan:       lf.scan,
		operations: append(ops, op),
	}
}

// Filter adds a filter operation to the lazy frame
func (lf *LazyFrame) Filter(predicate expr.Expr) *LazyFrame {
	return lf.with(&FilterOperation{predicate: predicate})
}

// Select adds a column selection operation to the lazy frame
func (lf *LazyFrame) Select(columns ...string) *LazyFrame {
	return lf.with(&SelectOperation{columns: append([]string(nil), columns...)})
}

// GroupBy starts a group by; finish it with Agg.
func (lf *LazyFrame) GroupBy(columns ...string) *LazyGroupBy {
	return &LazyGroupBy{
		lazyFrame:   lf,
		groupByCols: append([]string(nil), columns...),
	}
}

// LazyGroupBy represents a lazy groupby operation that can be followed by aggregations
type LazyGroupBy struct {
	lazyFrame   *LazyFrame
	groupByCols []string
}

// Agg performs aggregation operations and returns a new LazyFrame
func (lgb *LazyGroupBy) Agg(aggregations ...*expr.AggregationExpr) *LazyFrame {
	return lgb.lazyFrame.with(&GroupByOperation{
		groupByCols:  lgb.groupByCols,
		aggregations: aggregations,
	})
}

// Mean creates a mean aggregation for each of the given columns
func (lgb *LazyGroupBy) Mean(columns ...string) *LazyFrame {
	aggs := make([]*expr.AggregationExpr, len(columns))
	for i, c := range columns {
		aggs[i] = expr.Mean(expr.Col(c))
	}
	return lgb.Agg(aggs...)
}

// Plan builds the optimized execution plan without running it.
func (lf *LazyFrame) Plan() *ExecutionPlan {
	plan := CreateExecutionPlan(lf.source, lf.scan, lf.operations)
	return NewQueryOptimizerFromConfig(config.GetGlobalConfig()).Optimize(plan)
}

// Explain renders the optimized plan.
func (lf *LazyFrame) Explain() string {
	return lf.Plan().String()
}

// Collect optimizes the plan and executes it. The caller releases the result.
func (lf *LazyFrame) Collect() (*DataFrame, error) {
	if lf.source == nil && lf.scan == nil {
		return New(), nil
	}

	plan := lf.Plan()

	current := plan.source
	owned := false
	if plan.scan != nil {
		df, err := plan.scan.Apply(nil)
		if err != nil {
			return nil, err
		}
		current, owned = df, true
	}

	operations := plan.operations
	cfg := config.GetGlobalConfig()
	if n := rowLocalPrefix(operations); n > 0 && current.Len() >= cfg.ParallelThreshold {
		next, err := collectParallel(current, operations[:n], cfg)
		if owned {
			current.Release()
		}
		if err != nil {
			return nil, err
		}
		current, owned = next, true
		operations = operations[n:]
	}

	for _, op := range operations {
		next, err := op.Apply(current)
		if owned {
			current.Release()
		}
		if err != nil {
			return nil, err
		}
		current, owned = next, true
	}

	if !owned {
		return current.Select(current.Columns()...), nil
	}
	return current, nil
}

// rowLocalPrefix returns how many leading operations only look at one row at
// a time, provided at least one of them is a filter.
func rowLocalPrefix(operations []LazyOperation) int {
	n, filters := 0, 0
	for _, op := range operations {
		switch op.(type) {
		case *FilterOperation:
			filters++
		case *SelectOperation:
		default:
			if filters == 0 {
				return 0
			}
			return n
		}
		n++
	}
	if filters == 0 {
		return 0
	}
	return n
}

// collectParallel runs row-local operations over row chunks on the worker
// pool and concatenates the chunk results in order.
func collectParallel(df *DataFrame, operations []LazyOperation, cfg config.Config) (*DataFrame, error) {
	pool := parallel.NewWorkerPool(cfg.WorkerPoolSize)
	defer pool.Close()

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = (df.Len() + pool.Workers() - 1) / pool.Workers()
	}

	chunks, err := parallel.ProcessIndexedErr(pool, parallel.Chunks(df.Len(), chunkSize), func(_ int, r [2]int) (*DataFrame, error) {
		current := df.Slice(r[0], r[1])
		for _, op := range operations {
			next, err := op.Apply(current)
			current.Release()
			if err != nil {
				return nil, err
			}
			current = next
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	defer func() {
		for _, c := range chunks {
			c.Release()
		}
	}()
	return chunks[0].Concat(chunks[1:]...)
}

// String returns a string representation of the lazy frame and its operations
func (lf *LazyFrame) String() string {
	return CreateExecutionPlan(lf.source, lf.scan, lf.operations).String()
}
