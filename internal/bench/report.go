package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/monitoring"
)

const percentageBase = 100

// noResult stands in for the count and time of a failed strategy.
const noResult = "no result"

// DatasetInfo describes the data every strategy ran on.
type DatasetInfo struct {
	Path    string `json:"path,omitempty"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Report is the outcome of a harness run.
type Report struct {
	RunID      uuid.UUID                 `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	Host       monitoring.HostInfo       `json:"host"`
	Dataset    DatasetInfo               `json:"dataset"`
	Query      Query                     `json:"query"`
	Results    []Result                  `json:"results"`
	Consistent bool                      `json:"consistent"`
	Summary    monitoring.MetricsSummary `json:"summary"`
}

// Failed returns the results of strategies that produced no result.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Render writes the report in format: text, markdown or json.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case config.ReportText, "":
		return r.WriteText(w)
	case config.ReportMarkdown:
		_, err := io.WriteString(w, r.Markdown())
		return err
	case config.ReportJSON:
		return r.WriteJSON(w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// WriteText writes an aligned plain-text table, one line per strategy.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s on %s\n", r.RunID, r.hostLine())
	fmt.Fprintf(&b, "dataset: %s\n", r.datasetLine())
	fmt.Fprintf(&b, "query: %s\n\n", r.queryLine())

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tTIMING\tGROUPS\tELAPSED\tALLOCATED")
	for _, res := range r.Results {
		if !res.OK() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\n", res.Strategy, res.Timing, noResult, noResult)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			res.Strategy,
			res.Timing,
			humanize.Comma(int64(res.Count)),
			res.Elapsed.Round(time.Microsecond),
			humanize.Bytes(uint64(max(res.Allocated, 0))))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed := r.Failed(); len(failed) > 0 {
		b.WriteString("\nfailures:\n")
		for _, res := range failed {
			fmt.Fprintf(&b, "  %s: %s\n", res.Strategy, res.Error)
		}
	}
	fmt.Fprintf(&b, "\nconsistent: %t\n", r.Consistent)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Markdown renders the report as a markdown document.
func (r *Report) Markdown() string {
	var report strings.Builder

	report.WriteString("# Group-by Benchmark Report\n\n")
	fmt.Fprintf(&report, "Run: `%s`  \nGenerated: %s\n\n", r.RunID, r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&report, "- **Host:** %s\n", r.hostLine())
	fmt.Fprintf(&report, "- **Dataset:** %s\n", r.datasetLine())
	fmt.Fprintf(&report, "- **Query:** %s\n\n", r.queryLine())

	if len(r.Results) == 0 {
		report.WriteString("No strategies were run.\n")
		return report.String()
	}

	r.writeSummaryTable(&report)
	r.writeFailures(&report)
	r.writeInsights(&report)
	return report.String()
}

func (r *Report) writeSummaryTable(report *strings.Builder) {
	report.WriteString("## Results\n\n")
	report.WriteString("| Strategy | Timing | Retained Groups | Elapsed | Allocated | Status |\n")
	report.WriteString("|----------|--------|-----------------|---------|-----------|--------|\n")

	for _, res := range r.Results {
		if !res.OK() {
			fmt.Fprintf(report, "| %s | %s | %s | %s | - | ❌ Failed |\n",
				res.Strategy, res.Timing, noResult, noResult)
			continue
		}
		fmt.Fprintf(report, "| %s | %s | %s | %v | %s | ✅ Success |\n",
			res.Strategy,
			res.Timing,
			humanize.Comma(int64(res.Count)),
			res.Elapsed.Round(time.Microsecond),
			humanize.Bytes(uint64(max(res.Allocated, 0))))
	}
	report.WriteString("\n")
}

func (r *Report) writeFailures(report *strings.Builder) {
	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	report.WriteString("## Failures\n\n")
	for _, res := range failed {
		fmt.Fprintf(report, "- **%s:** %s\n", res.Strategy, res.Error)
	}
	report.WriteString("\n")
}

func (r *Report) writeInsights(report *strings.Builder) {
	report.WriteString("## Insights\n\n")

	s := r.Summary
	if s.Succeeded > 1 {
		fmt.Fprintf(report, "- **Fastest Strategy:** %s\n", s.Fastest)
		fmt.Fprintf(report, "- **Slowest Strategy:** %s\n", s.Slowest)
		if s.Spread > 0 {
			fmt.Fprintf(report, "- **Spread:** %.2fx (slowest vs fastest)\n", s.Spread)
		}
	}
	fmt.Fprintf(report, "- **Success Rate:** %d/%d (%.1f%%)\n",
		s.Succeeded, len(r.Results), float64(s.Succeeded)/float64(len(r.Results))*percentageBase)
	if r.Consistent {
		report.WriteString("- **Consistency:** all successful strategies retained the same groups\n")
	} else {
		report.WriteString("- **Consistency:** strategies disagree on the retained groups\n")
	}
}

func (r *Report) hostLine() string {
	h := r.Host
	line := fmt.Sprintf("%s/%s, %d CPUs", h.Platform, h.Arch, h.CPUCount)
	if h.CPUModel != "" {
		line += " (" + h.CPUModel + ")"
	}
	if h.TotalMemory > 0 {
		line += ", " + humanize.Bytes(h.TotalMemory)
	}
	return line + ", " + h.GoVersion
}

func (r *Report) datasetLine() string {
	src := r.Dataset.Path
	if src == "" {
		src = "in-memory"
	}
	return fmt.Sprintf("%s, %s rows x %s columns",
		src, humanize.Comma(int64(r.Dataset.Rows)), humanize.Comma(int64(r.Dataset.Columns)))
}

func (r *Report) queryLine() string {
	keys := "(all rows)"
	if len(r.Query.GroupBy) > 0 {
		keys = strings.Join(r.Query.GroupBy, ", ")
	}
	return fmt.Sprintf("group by %s, mean of %d columns, threshold %g",
		keys, len(r.Query.Values), r.Query.Threshold)
}
