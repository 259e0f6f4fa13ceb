package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/paveg/groupbench/internal/config"
)

func TestQueryFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ValueColumns = []string{"v1", "v2"}
	cfg.Threshold = 0.25

	q := QueryFromConfig(cfg)
	assert.Equal(t, []string{"id"}, q.GroupBy)
	assert.Equal(t, []string{"v1", "v2"}, q.Values)
	assert.InDelta(t, 0.25, q.Threshold, 0)

	cfg.NoGroupKeys = true
	assert.Empty(t, QueryFromConfig(cfg).GroupBy)
}

func TestQueryColumns(t *testing.T) {
	q := Query{GroupBy: []string{"a", "b"}, Values: []string{"v1"}}
	assert.Equal(t, []string{"a", "b", "v1"}, q.Columns())
	assert.Equal(t, "mean_v1", MeanColumn("v1"))

	aggs := q.Aggregations()
	if assert.Len(t, aggs, 1) {
		assert.Equal(t, "mean_v1", aggs[0].Alias())
	}
}

func TestQuerySQL(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "single value",
			query:    Query{GroupBy: []string{"id"}, Values: []string{"v1"}, Threshold: 0.4},
			wantSQL:  `SELECT "id" FROM "data" GROUP BY "id" HAVING AVG("v1") > ?`,
			wantArgs: []any{0.4},
		},
		{
			name:     "balanced or",
			query:    Query{GroupBy: []string{"id"}, Values: []string{"v1", "v2", "v3"}, Threshold: 0.4},
			wantSQL:  `SELECT "id" FROM "data" GROUP BY "id" HAVING (AVG("v1") > ? OR (AVG("v2") > ? OR AVG("v3") > ?))`,
			wantArgs: []any{0.4, 0.4, 0.4},
		},
		{
			name:     "composite key",
			query:    Query{GroupBy: []string{"a", "b"}, Values: []string{"v1", "v2"}, Threshold: 1},
			wantSQL:  `SELECT "a", "b" FROM "data" GROUP BY "a", "b" HAVING (AVG("v1") > ? OR AVG("v2") > ?)`,
			wantArgs: []any{1.0, 1.0},
		},
		{
			name:     "no keys",
			query:    Query{Values: []string{"v1"}, Threshold: 0.4},
			wantSQL:  `SELECT COUNT(*) FROM "data" HAVING AVG("v1") > ?`,
			wantArgs: []any{0.4},
		},
		{
			name:    "no values",
			query:   Query{GroupBy: []string{"id"}, Threshold: 0.4},
			wantSQL: `SELECT "id" FROM "data" GROUP BY "id" HAVING 0`,
		},
		{
			name:     "quoted identifiers",
			query:    Query{GroupBy: []string{`we"ird`}, Values: []string{"v 1"}, Threshold: 0},
			wantSQL:  `SELECT "we""ird" FROM "data" GROUP BY "we""ird" HAVING AVG("v 1") > ?`,
			wantArgs: []any{0.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.query.SQL("data")
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBalancedOrDepth(t *testing.T) {
	terms := make([]string, 1000)
	for i := range terms {
		terms[i] = "x"
	}
	rendered := balancedOr(terms)

	depth, maxDepth := 0, 0
	for _, c := range rendered {
		switch c {
		case '(':
			depth++
			maxDepth = max(maxDepth, depth)
		case ')':
			depth--
		}
	}
	assert.Equal(t, 0, depth)
	assert.LessOrEqual(t, maxDepth, 10)
}
