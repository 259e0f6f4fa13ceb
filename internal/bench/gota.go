package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	stdio "io"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	gotadf "github.com/go-gota/gota/dataframe"
	gotaseries "github.com/go-gota/gota/series"

	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/io"
)

// gotaNaNValues are the cells gota reads as missing. The empty cell is added
// to gota's defaults so that empty CSV cells are nulls, as everywhere else.
var gotaNaNValues = []string{"", "NA", "NaN", "<nil>"}

// gotaStrategy runs the query with go-gota. With load set, the file is read
// by gota inside the timed region; otherwise the shared frame is converted
// during Prepare.
type gotaStrategy struct {
	name  string
	load  bool
	path  string
	frame gotadf.DataFrame
}

func (s *gotaStrategy) Name() string { return s.name }

func (s *gotaStrategy) Timing() TimingScope {
	if s.load {
		return TimingLoadQuery
	}
	return TimingQuery
}

func (s *gotaStrategy) Prepare(_ context.Context, ds *Dataset) error {
	if s.load {
		if ds.Path == "" {
			return errNoPath
		}
		s.path = ds.Path
		return nil
	}
	if ds.Frame == nil {
		return errNoFrame
	}
	frame, err := toGota(ds.Frame)
	if err != nil {
		return err
	}
	s.frame = frame
	return nil
}

func (s *gotaStrategy) Run(_ context.Context, q Query) (Outcome, error) {
	frame := s.frame
	if s.load {
		loaded, err := loadGota(s.path, q)
		if err != nil {
			return Outcome{}, err
		}
		frame = loaded
	}

	// gota refuses to group or load an empty frame
	if frame.Nrow() == 0 {
		return Outcome{Keys: []string{}}, nil
	}

	if len(q.GroupBy) == 0 {
		if gotaRetained(frame, q) {
			return Outcome{Count: 1, Keys: []string{KeyString(nil)}}, nil
		}
		return Outcome{Keys: []string{}}, nil
	}

	// gota cannot group rows whose key is missing and reports it in Err.
	grouped := frame.GroupBy(q.GroupBy...)
	if grouped.Err != nil {
		return Outcome{}, fmt.Errorf("gota group by: %w", grouped.Err)
	}
	groups := grouped.GetGroups()
	retained := make([]Outcome, 0, len(groups))
	for _, g := range groups {
		if !gotaRetained(g, q) {
			continue
		}
		parts := make([]string, len(q.GroupBy))
		for i, k := range q.GroupBy {
			parts[i] = gotaKey(g.Col(k).Elem(0))
		}
		retained = append(retained, Outcome{Count: 1, Keys: []string{KeyString(parts)}})
	}
	return mergeOutcomes(retained), nil
}

// gotaRetained reports whether any value column of g has a mean above the
// threshold. gota's own mean propagates missing values, so the mean here
// skips them.
func gotaRetained(g gotadf.DataFrame, q Query) bool {
	for _, v := range q.Values {
		if mean, ok := gotaMean(g.Col(v)); ok && mean > q.Threshold {
			return true
		}
	}
	return false
}

func gotaMean(s gotaseries.Series) (float64, bool) {
	sum, n := 0.0, 0
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			continue
		}
		sum += e.Float()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// gotaKey renders a key element the way the other engines do; gota prints
// floats with a fixed six decimals.
func gotaKey(e gotaseries.Element) string {
	if e.IsNA() {
		return ""
	}
	if e.Type() == gotaseries.Float {
		return strconv.FormatFloat(e.Float(), 'g', -1, 64)
	}
	return e.String()
}

// loadGota reads the query's columns from path with gota. Parquet files
// are decoded by the io package first since gota only reads text formats.
func loadGota(path string, q Query) (gotadf.DataFrame, error) {
	if io.DetectFormat(path) == io.FormatParquet {
		df, err := io.ReadFile(path, q.Columns(), memory.NewGoAllocator())
		if err != nil {
			return gotadf.DataFrame{}, err
		}
		defer df.Release()
		return toGota(df)
	}

	f, err := io.Open(path)
	if err != nil {
		return gotadf.DataFrame{}, err
	}
	defer f.Close()

	types := make(map[string]gotaseries.Type, len(q.Values))
	for _, v := range q.Values {
		types[v] = gotaseries.Float
	}
	frame := gotadf.ReadCSV(f,
		gotadf.HasHeader(true),
		gotadf.NaNValues(gotaNaNValues),
		gotadf.WithTypes(types),
	)
	if frame.Err != nil {
		if empty, err := headerOnly(path); err == nil && empty {
			return gotadf.DataFrame{}, nil
		}
		return gotadf.DataFrame{}, fmt.Errorf("gota reading %s: %w", path, frame.Err)
	}
	selected := frame.Select(q.Columns())
	if selected.Err != nil {
		return gotadf.DataFrame{}, fmt.Errorf("gota selecting columns: %w", selected.Err)
	}
	return selected, nil
}

// headerOnly reports whether the CSV at path has no data rows.
func headerOnly(path string) (bool, error) {
	f, err := io.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for range 2 {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, stdio.EOF) {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

// toGota converts a frame column by column, keeping nulls as missing values.
func toGota(df *dataframe.DataFrame) (gotadf.DataFrame, error) {
	cols := make([]gotaseries.Series, 0, df.Width())
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		arr := col.Array()
		s, err := gotaColumn(name, arr)
		arr.Release()
		if err != nil {
			return gotadf.DataFrame{}, err
		}
		cols = append(cols, s)
	}
	frame := gotadf.New(cols...)
	if frame.Err != nil {
		return gotadf.DataFrame{}, frame.Err
	}
	return frame, nil
}

func gotaColumn(name string, arr arrow.Array) (gotaseries.Series, error) {
	var s gotaseries.Series
	switch a := arr.(type) {
	case *array.String:
		values := make([]string, a.Len())
		for i := range values {
			values[i] = a.Value(i)
		}
		s = gotaseries.New(values, gotaseries.String, name)
	case *array.Int64:
		values := make([]int, a.Len())
		for i := range values {
			values[i] = int(a.Value(i))
		}
		s = gotaseries.New(values, gotaseries.Int, name)
	case *array.Int32:
		values := make([]int, a.Len())
		for i := range values {
			values[i] = int(a.Value(i))
		}
		s = gotaseries.New(values, gotaseries.Int, name)
	case *array.Float64:
		s = gotaseries.New(append([]float64(nil), a.Float64Values()...), gotaseries.Float, name)
	case *array.Float32:
		values := make([]float64, a.Len())
		for i := range values {
			values[i] = float64(a.Value(i))
		}
		s = gotaseries.New(values, gotaseries.Float, name)
	case *array.Boolean:
		values := make([]bool, a.Len())
		for i := range values {
			values[i] = a.Value(i)
		}
		s = gotaseries.New(values, gotaseries.Bool, name)
	default:
		return gotaseries.Series{}, fmt.Errorf("gota: unsupported column type %s for %s", arr.DataType(), name)
	}

	if arr.NullN() > 0 {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				s.Elem(i).Set(nil)
			}
		}
	}
	return s, nil
}
