package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/logging"
	"github.com/paveg/groupbench/internal/monitoring"
	"github.com/paveg/groupbench/internal/validation"
)

// Result is the measurement of one strategy. Err is set, and Count and
// Keys are empty, when the strategy failed.
type Result struct {
	Strategy  string        `json:"strategy"`
	Timing    TimingScope   `json:"timing"`
	Count     int           `json:"count"`
	Keys      []string      `json:"-"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Allocated int64         `json:"allocated_bytes"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// OK reports whether the strategy produced a result.
func (r Result) OK() bool {
	return r.Err == nil
}

// Harness runs strategies one after another over the same dataset and
// query.
type Harness struct {
	strategies []Strategy
	metrics    *monitoring.MetricsCollector
	hostInfo   func() monitoring.HostInfo
}

// NewHarness returns a harness running strategies in order. A nil metrics
// collector gets a fresh enabled one.
func NewHarness(strategies []Strategy, metrics *monitoring.MetricsCollector) *Harness {
	if metrics == nil {
		metrics = monitoring.NewMetricsCollector(true)
	}
	return &Harness{
		strategies: strategies,
		metrics:    metrics,
		hostInfo:   monitoring.HostStat,
	}
}

// Metrics returns the collector the harness records into.
func (h *Harness) Metrics() *monitoring.MetricsCollector {
	return h.metrics
}

// Run loads the dataset if needed, checks the query against its schema and
// runs every strategy. Dataset and schema problems abort the run; a failing
// strategy is recorded in its Result and the run continues.
func (h *Harness) Run(ctx context.Context, ds *Dataset, q Query) (*Report, error) {
	started := time.Now()

	shared := *ds
	if shared.Frame == nil {
		df, err := loadDataset(shared.Path)
		if err != nil {
			return nil, err
		}
		defer df.Release()
		shared.Frame = df
	}

	q, err := resolveQuery(shared.Frame, q)
	if err != nil {
		return nil, err
	}

	logging.Logger.Infow("starting benchmark",
		"rows", shared.Frame.Len(),
		"columns", shared.Frame.Width(),
		"group_by", q.GroupBy,
		"values", len(q.Values),
		"threshold", q.Threshold,
		"strategies", len(h.strategies))

	h.metrics.Clear()
	results := make([]Result, 0, len(h.strategies))
	for _, s := range h.strategies {
		res := h.runStrategy(ctx, s, &shared, q)
		h.metrics.Record(monitoring.OperationMetrics{
			Operation: res.Strategy,
			Timing:    string(res.Timing),
			Duration:  res.Elapsed,
			Allocated: res.Allocated,
			Groups:    res.Count,
			Success:   res.OK(),
		})
		results = append(results, res)
	}

	consistent := checkConsistency(results)
	if !consistent {
		logging.Logger.Warnw("strategies disagree on the retained groups", "results", countsByStrategy(results))
	}

	return &Report{
		RunID:     uuid.New(),
		StartedAt: started,
		Host:      h.hostInfo(),
		Dataset: DatasetInfo{
			Path:    shared.Path,
			Rows:    shared.Frame.Len(),
			Columns: shared.Frame.Width(),
		},
		Query:      q,
		Results:    results,
		Consistent: consistent,
		Summary:    h.metrics.GetSummary(),
	}, nil
}

// closer is implemented by strategies holding resources beyond one run.
type closer interface {
	Close() error
}

func (h *Harness) runStrategy(ctx context.Context, s Strategy, ds *Dataset, q Query) Result {
	res := Result{Strategy: s.Name(), Timing: s.Timing()}
	log := logging.Logger.With("strategy", res.Strategy, "timing", res.Timing)

	if c, ok := s.(closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Warnw("closing strategy", "error", err)
			}
		}()
	}

	fail := func(stage string, err error) Result {
		res.Err = dferrors.NewStrategyFailure(res.Strategy, fmt.Errorf("%s: %w", stage, err))
		res.Error = res.Err.Error()
		log.Warnw("strategy failed", "stage", stage, "error", err)
		return res
	}

	log.Debug("preparing strategy")
	if err := recovered(func() error { return s.Prepare(ctx, ds) }); err != nil {
		return fail("prepare", err)
	}

	var out Outcome
	m, err := monitoring.Measure(func() error {
		return recovered(func() error {
			var runErr error
			out, runErr = s.Run(ctx, q)
			return runErr
		})
	})
	res.Elapsed = m.Duration
	res.Allocated = m.Allocated
	if err != nil {
		return fail("run", err)
	}

	res.Count = out.Count
	res.Keys = out.Keys
	log.Infow("strategy finished", "retained", res.Count, "elapsed", res.Elapsed)
	return res
}

// recovered calls fn and turns a panic into an error.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func loadDataset(path string) (*dataframe.DataFrame, error) {
	if path == "" {
		return nil, dferrors.NewDataUnavailableError(path, errors.New("no dataset path or frame given"))
	}
	df, err := io.ReadFile(path, nil, memory.NewGoAllocator())
	if err != nil {
		if errors.Is(err, dferrors.ErrDataUnavailable) {
			return nil, err
		}
		return nil, dferrors.NewDataUnavailableError(path, err)
	}
	return df, nil
}

// resolveQuery checks q against df and fills in the value columns when none
// were named: every numeric column that is not a grouping key.
func resolveQuery(df *dataframe.DataFrame, q Query) (Query, error) {
	if len(q.Values) == 0 {
		for _, name := range df.NumericColumns() {
			if !slices.Contains(q.GroupBy, name) {
				q.Values = append(q.Values, name)
			}
		}
	}
	if err := validation.ValidateQuery(df, q.GroupBy, q.Values); err != nil {
		return q, err
	}
	return q, nil
}

// checkConsistency reports whether every successful strategy retained the
// same groups.
func checkConsistency(results []Result) bool {
	var first *Result
	for i := range results {
		r := &results[i]
		if !r.OK() {
			continue
		}
		if first == nil {
			first = r
			continue
		}
		if r.Count != first.Count || !slices.Equal(r.Keys, first.Keys) {
			return false
		}
	}
	return true
}

func countsByStrategy(results []Result) map[string]int {
	counts := make(map[string]int, len(results))
	for _, r := range results {
		if r.OK() {
			counts[r.Strategy] = r.Count
		}
	}
	return counts
}
