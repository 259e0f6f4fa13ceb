package bench

import (
	"context"
	"sort"
	"strings"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
)

// TimingScope states what the timed region of a strategy covers.
type TimingScope string

const (
	// TimingQuery times the query only; parsing and loading happen before.
	TimingQuery TimingScope = "query"
	// TimingLoadQuery includes reading the file and loading the engine.
	TimingLoadQuery TimingScope = "load+query"
)

// Dataset is the shared input. Path is the file on disk; Frame is the same
// data parsed once, shared read-only by every strategy.
type Dataset struct {
	Path  string
	Frame *dataframe.DataFrame
}

// Outcome is what a strategy returns: how many groups were retained and
// their sorted keys.
type Outcome struct {
	Count int      `json:"count"`
	Keys  []string `json:"-"`
}

// Strategy is one way of running the query.
//
// Prepare runs outside the timed region and may keep a reference to the
// dataset. Run is timed and must fully materialize its result before
// returning. A strategy is used for a single Prepare/Run pair.
type Strategy interface {
	Name() string
	Timing() TimingScope
	Prepare(ctx context.Context, ds *Dataset) error
	Run(ctx context.Context, q Query) (Outcome, error)
}

// keySeparator joins the rendered values of a composite key.
const keySeparator = "|"

// KeyString renders a group identity from its key values. Null parts are
// rendered as empty strings; the single group of a keyless query is "".
func KeyString(parts []string) string {
	return strings.Join(parts, keySeparator)
}

// outcomeFromFrame reads the retained groups out of a result frame whose
// leading columns are the grouping keys.
func outcomeFromFrame(df *dataframe.DataFrame, keys []string) (Outcome, error) {
	cols := make([]dataframe.ISeries, len(keys))
	for i, k := range keys {
		col, ok := df.Column(k)
		if !ok {
			return Outcome{}, dferrors.NewColumnNotFoundError("outcome", k)
		}
		cols[i] = col
	}

	out := Outcome{Count: df.Len(), Keys: make([]string, df.Len())}
	parts := make([]string, len(cols))
	for row := range out.Keys {
		for i, col := range cols {
			parts[i] = col.GetAsString(row)
		}
		out.Keys[row] = KeyString(parts)
	}
	sort.Strings(out.Keys)
	return out, nil
}

// mergeOutcomes combines outcomes over disjoint sets of groups.
func mergeOutcomes(parts []Outcome) Outcome {
	var out Outcome
	for _, p := range parts {
		out.Count += p.Count
		out.Keys = append(out.Keys, p.Keys...)
	}
	if out.Keys == nil {
		out.Keys = []string{}
	}
	sort.Strings(out.Keys)
	return out
}
