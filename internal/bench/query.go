package bench

import (
	"fmt"
	"strings"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/expr"
)

// Query is the canonical benchmark query: group by GroupBy, average every
// column in Values, keep groups where any average is strictly greater than
// Threshold, and count them.
//
// An empty GroupBy aggregates the whole table as a single group.
type Query struct {
	GroupBy   []string `json:"group_by"`
	Values    []string `json:"values"`
	Threshold float64  `json:"threshold"`
}

// QueryFromConfig builds the query from cfg. Values may still be empty, in
// which case the harness resolves them from the dataset.
func QueryFromConfig(cfg config.Config) Query {
	return Query{
		GroupBy:   cfg.Keys(),
		Values:    append([]string(nil), cfg.ValueColumns...),
		Threshold: cfg.Threshold,
	}
}

// MeanColumn names the aggregate column holding the mean of value.
func MeanColumn(value string) string {
	return "mean_" + value
}

// Columns lists every input column the query reads.
func (q Query) Columns() []string {
	cols := make([]string, 0, len(q.GroupBy)+len(q.Values))
	cols = append(cols, q.GroupBy...)
	return append(cols, q.Values...)
}

// Aggregations returns one aliased mean per value column.
func (q Query) Aggregations() []*expr.AggregationExpr {
	aggs := make([]*expr.AggregationExpr, len(q.Values))
	for i, v := range q.Values {
		aggs[i] = expr.Mean(expr.Col(v)).As(MeanColumn(v))
	}
	return aggs
}

// Predicate is true for a group when any of its means exceeds the
// threshold. Null and NaN means never do.
func (q Query) Predicate() expr.Expr {
	terms := make([]expr.Expr, len(q.Values))
	for i, v := range q.Values {
		terms[i] = expr.Col(MeanColumn(v)).Gt(expr.Lit(q.Threshold))
	}
	return expr.Any(terms...)
}

// Plan appends the query to lf.
func (q Query) Plan(lf *dataframe.LazyFrame) *dataframe.LazyFrame {
	return lf.GroupBy(q.GroupBy...).Agg(q.Aggregations()...).Filter(q.Predicate())
}

// SQL renders the query against table. Placeholders carry the threshold,
// one per value column. The OR of the per-column conditions is built as a
// balanced tree so that a thousand columns stay well below SQLite's
// expression depth limit. Without keys the whole table is one aggregate
// row, so COUNT(*) makes the HAVING clause legal.
func (q Query) SQL(table string) (string, []any) {
	var b strings.Builder

	keys := make([]string, len(q.GroupBy))
	for i, k := range q.GroupBy {
		keys[i] = quoteIdent(k)
	}

	if len(keys) == 0 {
		fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", quoteIdent(table))
	} else {
		list := strings.Join(keys, ", ")
		fmt.Fprintf(&b, "SELECT %s FROM %s GROUP BY %s", list, quoteIdent(table), list)
	}

	if len(q.Values) == 0 {
		b.WriteString(" HAVING 0")
		return b.String(), nil
	}

	terms := make([]string, len(q.Values))
	args := make([]any, len(q.Values))
	for i, v := range q.Values {
		terms[i] = fmt.Sprintf("AVG(%s) > ?", quoteIdent(v))
		args[i] = q.Threshold
	}
	b.WriteString(" HAVING ")
	b.WriteString(balancedOr(terms))
	return b.String(), args
}

func balancedOr(terms []string) string {
	if len(terms) == 1 {
		return terms[0]
	}
	mid := len(terms) / 2
	return "(" + balancedOr(terms[:mid]) + " OR " + balancedOr(terms[mid:]) + ")"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
