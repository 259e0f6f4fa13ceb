package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paveg/groupbench/internal/bench"
	"github.com/paveg/groupbench/internal/config"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/generate"
	"github.com/paveg/groupbench/internal/logging"
	"github.com/paveg/groupbench/internal/monitoring"
)

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every strategy against the dataset and print the report",
		Long: `Runs the configured strategies in order against the dataset, generating it
first when the file does not exist. Strategies are given as a comma separated
list of kinds, each optionally followed by options: "gota:load=true".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if err := ensureDataset(cfg); err != nil {
				return err
			}

			strategies, err := bench.NewStrategies(cfg.Strategies)
			if err != nil {
				return err
			}

			h := bench.NewHarness(strategies, monitoring.NewMetricsCollector(true))
			report, err := h.Run(cmd.Context(), &bench.Dataset{Path: cfg.DataPath}, bench.QueryFromConfig(cfg))
			if err != nil {
				return err
			}

			if err := report.Render(cmd.OutOrStdout(), cfg.Report); err != nil {
				return err
			}
			if cfg.MetricsOut != "" {
				if err := h.Metrics().WriteTextfile(cfg.MetricsOut); err != nil {
					return err
				}
				logging.Logger.Infow("wrote metrics", "path", cfg.MetricsOut)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.strategies, "strategies", strings.Join(config.DefaultStrategyKinds, ","),
		"strategies to run, in order; known kinds: "+strings.Join(bench.Kinds(), ", "))
	flags.StringVar(&opts.report, "report", config.DefaultReport, "report format: text, markdown or json")
	flags.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus gauges to this textfile")
	return cmd
}

// ensureDataset writes the generated dataset when the file is missing or a
// rewrite was asked for.
func ensureDataset(cfg config.Config) error {
	if !cfg.Regenerate {
		_, err := os.Stat(cfg.DataPath)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return dferrors.NewDataUnavailableError(cfg.DataPath, err)
		}
		logging.Logger.Infow("dataset not found, generating", "path", cfg.DataPath)
	}
	return generate.WriteFile(cfg.DataPath, generate.FromConfig(cfg))
}
