package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paveg/groupbench/internal/generate"
)

func newGenerateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "generate [path]",
		Short: "Write the synthetic dataset",
		Long: `Writes rows of standard-normal values in numeric columns v1..vN plus a key
column assigned as row mod groups. The format follows the file extension:
.parquet or .pq for Parquet, anything else for CSV.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			path := cfg.DataPath
			if len(args) > 0 {
				path = args[0]
			}

			if err := generate.WriteFile(path, generate.FromConfig(cfg)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
