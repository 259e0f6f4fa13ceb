package main

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/spf13/cobra"

	"github.com/paveg/groupbench/internal/bench"
	"github.com/paveg/groupbench/internal/dataframe"
	"github.com/paveg/groupbench/internal/generate"
	"github.com/paveg/groupbench/internal/io"
)

func newExplainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "Print the lazy query plan and its SQL translation",
		Long: `Prints the plan the lazy-scan strategy runs, before and after optimization,
and the SQL the sqlite strategies send. Without --values the value columns
of the generated dataset are assumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			q := bench.QueryFromConfig(cfg)
			if len(q.Values) == 0 {
				q.Values = generate.FromConfig(cfg).ValueColumns()
			}

			lf := q.Plan(dataframe.Scan(io.ScanFile(cfg.DataPath, memory.NewGoAllocator())))
			sql, args := q.SQL("data")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "plan:")
			fmt.Fprintln(out, lf.String())
			fmt.Fprintln(out, "optimized:")
			fmt.Fprintln(out, lf.Explain())
			fmt.Fprintln(out, "sql:")
			fmt.Fprintln(out, sql)
			if len(args) > 0 {
				fmt.Fprintf(out, "-- %d parameters bound to %g\n", len(args), q.Threshold)
			}
			return nil
		},
	}
}
