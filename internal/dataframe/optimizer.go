package dataframe

import (
	"fmt"
	"strings"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/expr"
)

// QueryOptimizer applies optimization rules to improve query performance
type QueryOptimizer struct {
	rules []OptimizationRule
}

// OptimizationRule represents a single optimization transformation
type OptimizationRule interface {
	Apply(plan *ExecutionPlan) *ExecutionPlan
	Name() string
}

// ExecutionPlan represents a planned query execution
type ExecutionPlan struct {
	source     *DataFrame
	scan       *ScanOperation
	operations []LazyOperation
}

// NewQueryOptimizer creates a new optimizer with default rules
func NewQueryOptimizer() *QueryOptimizer {
	return &QueryOptimizer{
		rules: []OptimizationRule{
			&PredicatePushdownRule{},
			&FilterFusionRule{},
			&ProjectionPushdownRule{},
		},
	}
}

// NewQueryOptimizerFromConfig enables only the rules switched on in cfg.
func NewQueryOptimizerFromConfig(cfg config.Config) *QueryOptimizer {
	qo := &QueryOptimizer{}
	if cfg.PredicatePushdown {
		qo.rules = append(qo.rules, &PredicatePushdownRule{})
	}
	if cfg.FilterFusion {
		qo.rules = append(qo.rules, &FilterFusionRule{})
	}
	if cfg.ProjectionPushdown {
		qo.rules = append(qo.rules, &ProjectionPushdownRule{})
	}
	return qo
}

// Rules lists the names of the active rules in application order.
func (qo *QueryOptimizer) Rules() []string {
	names := make([]string, len(qo.rules))
	for i, r := range qo.rules {
		names[i] = r.Name()
	}
	return names
}

// Optimize applies all optimization rules to the execution plan
func (qo *QueryOptimizer) Optimize(plan *ExecutionPlan) *ExecutionPlan {
	optimized := plan
	for _, rule := range qo.rules {
		optimized = rule.Apply(optimized)
	}
	return optimized
}

// CreateExecutionPlan wraps an input and its operations. Exactly one of
// source and scan is expected to be set.
func CreateExecutionPlan(source *DataFrame, scan *ScanOperation, operations []LazyOperation) *ExecutionPlan {
	var scanCopy *ScanOperation
	if scan != nil {
		scanCopy = &ScanOperation{scanner: scan.scanner, columns: scan.columns}
	}
	return &ExecutionPlan{
		source:     source,
		scan:       scanCopy,
		operations: append([]LazyOperation(nil), operations...),
	}
}

// Operations returns the planned operations, excluding the scan.
func (p *ExecutionPlan) Operations() []LazyOperation {
	return append([]LazyOperation(nil), p.operations...)
}

// ScanColumns returns the columns the scan will read; nil means all.
func (p *ExecutionPlan) ScanColumns() []string {
	if p.scan == nil {
		return nil
	}
	return p.scan.columns
}

func (p *ExecutionPlan) withOperations(ops []LazyOperation) *ExecutionPlan {
	return &ExecutionPlan{source: p.source, scan: p.scan, operations: ops}
}

func (p *ExecutionPlan) String() string {
	var b strings.Builder
	switch {
	case p.scan != nil:
		b.WriteString(p.scan.String())
	case p.source != nil:
		fmt.Fprintf(&b, "source(%d rows, columns=[%s])", p.source.Len(), strings.Join(p.source.Columns(), ", "))
	default:
		b.WriteString("source(empty)")
	}
	for i, op := range p.operations {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, op.String())
	}
	return b.String()
}

// extractOperationDependencies returns the columns required by an operation
func extractOperationDependencies(op LazyOperation) []string {
	switch o := op.(type) {
	case *FilterOperation:
		return expr.Columns(o.predicate)
	case *SelectOperation:
		return o.columns
	case *GroupByOperation:
		deps := append([]string(nil), o.groupByCols...)
		for _, agg := range o.aggregations {
			deps = append(deps, expr.Columns(agg.Column())...)
		}
		return deduplicateStrings(deps)
	default:
		return []string{}
	}
}

// PredicatePushdownRule moves filter operations ahead of column selections so
// rows are dropped before later operations see them.
type PredicatePushdownRule struct{}

func (r *PredicatePushdownRule) Name() string {
	return "PredicatePushdown"
}

func (r *PredicatePushdownRule) Apply(plan *ExecutionPlan) *ExecutionPlan {
	if len(plan.operations) <= 1 {
		return plan
	}

	ops := append([]LazyOperation(nil), plan.operations...)
	for i := range ops {
		filter, ok := ops[i].(*FilterOperation)
		if !ok {
			continue
		}
		// Bubble the filter left past selects that keep every column it reads.
		for j := i; j > 0; j-- {
			sel, ok := ops[j-1].(*SelectOperation)
			if !ok || !r.canPushThroughSelect(filter, sel) {
				break
			}
			ops[j-1], ops[j] = ops[j], ops[j-1]
		}
	}

	return plan.withOperations(ops)
}

// canPushThroughSelect checks if a filter can be pushed before a select
func (r *PredicatePushdownRule) canPushThroughSelect(filter *FilterOperation, sel *SelectOperation) bool {
	selected := make(map[string]bool, len(sel.columns))
	for _, col := range sel.columns {
		selected[col] = true
	}
	for _, dep := range expr.Columns(filter.predicate) {
		if !selected[dep] {
			return false
		}
	}
	return true
}

// FilterFusionRule combines adjacent filter operations into one AND predicate
type FilterFusionRule struct{}

func (r *FilterFusionRule) Name() string {
	return "FilterFusion"
}

func (r *FilterFusionRule) Apply(plan *ExecutionPlan) *ExecutionPlan {
	if len(plan.operations) <= 1 {
		return plan
	}

	optimized := make([]LazyOperation, 0, len(plan.operations))
	var pending []*FilterOperation

	flush := func() {
		if len(pending) > 0 {
			optimized = append(optimized, r.fuseFilters(pending))
			pending = nil
		}
	}

	for _, op := range plan.operations {
		if f, ok := op.(*FilterOperation); ok {
			pending = append(pending, f)
			continue
		}
		flush()
		optimized = append(optimized, op)
	}
	flush()

	return plan.withOperations(optimized)
}

// fuseFilters combines multiple filters using AND logic
func (r *FilterFusionRule) fuseFilters(filters []*FilterOperation) *FilterOperation {
	if len(filters) == 1 {
		return filters[0]
	}
	predicate := filters[0].predicate
	for _, f := range filters[1:] {
		predicate = expr.And(predicate, f.predicate)
	}
	return &FilterOperation{predicate: predicate}
}

// ProjectionPushdownRule restricts the input to the columns the plan reads.
// Scans read only those columns; in-memory sources get a leading select.
type ProjectionPushdownRule struct{}

func (r *ProjectionPushdownRule) Name() string {
	return "ProjectionPushdown"
}

func (r *ProjectionPushdownRule) Apply(plan *ExecutionPlan) *ExecutionPlan {
	required := r.analyzeRequiredColumns(plan.operations)
	if required == nil {
		return plan
	}

	if plan.scan != nil {
		return &ExecutionPlan{
			source:     plan.source,
			scan:       &ScanOperation{scanner: plan.scan.scanner, columns: required},
			operations: plan.operations,
		}
	}

	if plan.source == nil || len(required) >= plan.source.Width() {
		return plan
	}
	if first, ok := plan.operations[0].(*SelectOperation); ok && len(first.columns) == len(required) {
		return plan
	}

	// keep the source's column order
	requiredSet := make(map[string]bool, len(required))
	for _, c := range required {
		requiredSet[c] = true
	}
	ordered := make([]string, 0, len(required))
	for _, c := range plan.source.Columns() {
		if requiredSet[c] {
			ordered = append(ordered, c)
		}
	}

	ops := make([]LazyOperation, 0, len(plan.operations)+1)
	ops = append(ops, &SelectOperation{columns: ordered})
	ops = append(ops, plan.operations...)
	return plan.withOperations(ops)
}

// analyzeRequiredColumns collects the input columns read by every operation
// up to the first one that narrows the schema (a select or a group by). It
// returns nil when nothing narrows the schema, since then every input column
// reaches the output.
func (r *ProjectionPushdownRule) analyzeRequiredColumns(operations []LazyOperation) []string {
	var deps []string
	for _, op := range operations {
		deps = append(deps, extractOperationDependencies(op)...)
		switch op.(type) {
		case *SelectOperation, *GroupByOperation:
			return deduplicateStrings(deps)
		}
	}
	return nil
}

// deduplicateStrings removes duplicates from a string slice
func deduplicateStrings(slice []string) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, item := range slice {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
