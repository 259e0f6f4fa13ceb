package main

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/logging"
)

// options holds the flag values shared by every command.
type options struct {
	configFile string
	envFile    string
	verbose    bool

	rows        int
	columns     int
	groups      int
	seed        uint64
	groupColumn string
	dataPath    string
	regenerate  bool

	groupBy   []string
	values    []string
	threshold float64
	noKeys    bool

	strategies string
	report     string
	metricsOut string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	defaults := config.NewConfig()

	root := &cobra.Command{
		Use:   "groupbench",
		Short: "Benchmark a group-by/mean/filter query across engines",
		Long: `groupbench runs the same query through several engines: group the rows
by a key, average every value column per group, keep the groups where any
average is above a threshold, and count them. Each engine's count and elapsed
time are reported, together with whether loading the data was timed.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (.yaml, .yml or .json)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	flags.IntVar(&opts.rows, "rows", defaults.Rows, "rows in the generated dataset")
	flags.IntVar(&opts.columns, "columns", defaults.Columns, "numeric value columns in the generated dataset")
	flags.IntVar(&opts.groups, "groups", defaults.Groups, "distinct keys in the generated dataset")
	flags.Uint64Var(&opts.seed, "seed", defaults.Seed, "generator seed")
	flags.StringVar(&opts.groupColumn, "group-column", defaults.GroupColumn, "name of the generated key column")
	flags.StringVar(&opts.dataPath, "data", defaults.DataPath, "dataset file, CSV or Parquet by extension")
	flags.BoolVar(&opts.regenerate, "regenerate", false, "rewrite the dataset even when the file exists")

	flags.StringSliceVar(&opts.groupBy, "group-by", nil, "grouping columns (default: the group column)")
	flags.StringSliceVar(&opts.values, "values", nil, "columns to average (default: every numeric non-key column)")
	flags.Float64Var(&opts.threshold, "threshold", defaults.Threshold, "keep groups with any mean strictly above this")
	flags.BoolVar(&opts.noKeys, "no-keys", false, "aggregate the whole table as a single group")

	root.AddCommand(
		newRunCmd(opts),
		newGenerateCmd(opts),
		newExplainCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig layers defaults, the config file, the environment and the
// flags that were set explicitly, in that order.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Logger.Warnw("loading env file", "path", opts.envFile, "error", err)
	}

	cfg := config.NewConfig()
	if opts.configFile != "" {
		loaded, err := config.LoadFromFile(opts.configFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg = config.LoadFromEnv(cfg)
	applyFlags(cmd.Flags(), opts, &cfg)

	if cfg.VerboseLogging || opts.verbose {
		logging.SetVerbose(true)
	}

	validated, warnings, err := config.NewConfigValidator().Validate(cfg)
	if err != nil {
		return config.Config{}, err
	}
	for _, w := range warnings {
		logging.Logger.Debug(w)
	}
	config.SetGlobalConfig(validated)
	return validated, nil
}

func applyFlags(flags *pflag.FlagSet, opts *options, cfg *config.Config) {
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("verbose", func() { cfg.VerboseLogging = opts.verbose })
	set("rows", func() { cfg.Rows = opts.rows })
	set("columns", func() { cfg.Columns = opts.columns })
	set("groups", func() { cfg.Groups = opts.groups })
	set("seed", func() { cfg.Seed = opts.seed })
	set("group-column", func() { cfg.GroupColumn = opts.groupColumn })
	set("data", func() { cfg.DataPath = opts.dataPath })
	set("regenerate", func() { cfg.Regenerate = opts.regenerate })
	set("group-by", func() { cfg.GroupBy = opts.groupBy })
	set("values", func() { cfg.ValueColumns = opts.values })
	set("threshold", func() { cfg.Threshold = opts.threshold })
	set("no-keys", func() { cfg.NoGroupKeys = opts.noKeys })
	set("strategies", func() { cfg.Strategies = config.ParseStrategies(opts.strategies) })
	set("report", func() { cfg.Report = strings.ToLower(opts.report) })
	set("metrics-out", func() { cfg.MetricsOut = opts.metricsOut })
}
