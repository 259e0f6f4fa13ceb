// Package config provides configuration management for groupbench runs and
// the dataframe engine they exercise.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
	"gopkg.in/yaml.v3"
)

// StrategySpec names one backend strategy to run. Kind selects the
// implementation; Name labels it in the report (defaults to Kind).
type StrategySpec struct {
	Kind    string            `json:"kind" yaml:"kind"`
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Label returns Name, or Kind when no name was given.
func (s StrategySpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// Config represents the configuration of a benchmark run
type Config struct {
	// Dataset
	Rows        int    `json:"rows" yaml:"rows"`                 // Rows in the generated dataset
	Columns     int    `json:"columns" yaml:"columns"`           // Numeric value columns v1..vN
	Groups      int    `json:"groups" yaml:"groups"`             // Distinct keys, id = row mod groups
	Seed        uint64 `json:"seed" yaml:"seed"`                 // Generator seed
	GroupColumn string `json:"group_column" yaml:"group_column"` // Name of the generated key column
	DataPath    string `json:"data_path" yaml:"data_path"`       // CSV or Parquet file, by extension
	Regenerate  bool   `json:"regenerate" yaml:"regenerate"`     // Rewrite the file even when it exists

	// Query
	GroupBy      []string `json:"group_by" yaml:"group_by"`           // Grouping keys; empty means GroupColumn
	ValueColumns []string `json:"value_columns" yaml:"value_columns"` // Columns to average; empty means every numeric non-key column
	Threshold    float64  `json:"threshold" yaml:"threshold"`         // Keep groups with any mean strictly above this
	NoGroupKeys  bool     `json:"no_group_keys" yaml:"no_group_keys"` // Aggregate the whole table as one group

	// Strategies, run in order
	Strategies []StrategySpec `json:"strategies" yaml:"strategies"`

	// Output
	Report     string `json:"report" yaml:"report"`           // text, markdown or json
	MetricsOut string `json:"metrics_out" yaml:"metrics_out"` // Prometheus textfile path; empty disables

	// Parallel Processing Configuration
	ParallelThreshold int `json:"parallel_threshold" yaml:"parallel_threshold"` // Minimum rows to trigger parallel processing
	WorkerPoolSize    int `json:"worker_pool_size" yaml:"worker_pool_size"`     // Number of worker goroutines (0 = auto-detect)
	ChunkSize         int `json:"chunk_size" yaml:"chunk_size"`                 // Size of data chunks for parallel processing (0 = auto-calculate)

	// Query Optimization Configuration
	FilterFusion       bool `json:"filter_fusion" yaml:"filter_fusion"`             // Enable filter fusion optimization
	PredicatePushdown  bool `json:"predicate_pushdown" yaml:"predicate_pushdown"`   // Enable predicate pushdown optimization
	ProjectionPushdown bool `json:"projection_pushdown" yaml:"projection_pushdown"` // Enable projection pushdown optimization

	// Debugging Configuration
	VerboseLogging bool `json:"verbose_logging" yaml:"verbose_logging"` // Enable debug logging
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultRows              = 1_000_000
	DefaultColumns           = 1_000
	DefaultGroups            = 10_000
	DefaultSeed              = 42
	DefaultThreshold         = 0.4
	DefaultGroupColumn       = "id"
	DefaultDataPath          = "data/groupbench.csv"
	DefaultReport            = "text"
	DefaultParallelThreshold = 1000
)

// Report formats
const (
	ReportText     = "text"
	ReportMarkdown = "markdown"
	ReportJSON     = "json"
)

// DefaultStrategyKinds is the strategy order used when none is configured.
var DefaultStrategyKinds = []string{"eager", "lazy", "lazy-scan", "gota", "sqlite", "sqlite-load", "partition"}

// EnvPrefix prefixes every environment variable read by LoadFromEnv.
const EnvPrefix = "GROUPBENCH_"

// Initialize global configuration with defaults
func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		Rows:        DefaultRows,
		Columns:     DefaultColumns,
		Groups:      DefaultGroups,
		Seed:        DefaultSeed,
		GroupColumn: DefaultGroupColumn,
		DataPath:    DefaultDataPath,
		Threshold:   DefaultThreshold,
		Strategies:  ParseStrategies(strings.Join(DefaultStrategyKinds, ",")),
		Report:      DefaultReport,

		// Parallel Processing defaults
		ParallelThreshold: DefaultParallelThreshold,
		WorkerPoolSize:    0, // Auto-detect
		ChunkSize:         0, // Auto-calculate

		// Query Optimization defaults (enabled)
		FilterFusion:       true,
		PredicatePushdown:  true,
		ProjectionPushdown: true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.Rows < 0 {
		return fmt.Errorf("Rows must be non-negative, got %d", c.Rows)
	}

	if c.Columns < 1 {
		return fmt.Errorf("Columns must be at least 1, got %d", c.Columns)
	}

	if c.Groups < 1 {
		return fmt.Errorf("Groups must be at least 1, got %d", c.Groups)
	}

	if c.GroupColumn == "" {
		return fmt.Errorf("GroupColumn must not be empty")
	}

	if c.DataPath == "" {
		return fmt.Errorf("DataPath must not be empty")
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, s := range c.Strategies {
		if s.Kind == "" {
			return fmt.Errorf("strategy %d has no kind", i)
		}
	}

	switch c.Report {
	case ReportText, ReportMarkdown, ReportJSON:
	default:
		return fmt.Errorf("Report must be one of text, markdown, json, got %q", c.Report)
	}

	if c.ParallelThreshold <= 0 {
		return fmt.Errorf("ParallelThreshold must be positive, got %d", c.ParallelThreshold)
	}

	if c.WorkerPoolSize < 0 {
		return fmt.Errorf("WorkerPoolSize must be non-negative, got %d", c.WorkerPoolSize)
	}

	if c.ChunkSize < 0 {
		return fmt.Errorf("ChunkSize must be non-negative, got %d", c.ChunkSize)
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.Rows == 0 {
		c.Rows = defaults.Rows
	}
	if c.Columns == 0 {
		c.Columns = defaults.Columns
	}
	if c.Groups == 0 {
		c.Groups = defaults.Groups
	}
	if c.Seed == 0 {
		c.Seed = defaults.Seed
	}
	if c.GroupColumn == "" {
		c.GroupColumn = defaults.GroupColumn
	}
	if c.DataPath == "" {
		c.DataPath = defaults.DataPath
	}
	if c.Threshold == 0 {
		c.Threshold = defaults.Threshold
	}
	if len(c.Strategies) == 0 {
		c.Strategies = defaults.Strategies
	}
	if c.Report == "" {
		c.Report = defaults.Report
	}
	if c.ParallelThreshold == 0 {
		c.ParallelThreshold = defaults.ParallelThreshold
	}

	// Note: Boolean fields are intentionally not set to defaults here
	// This allows distinguishing between explicitly set false and unset values
	// Use NewConfig() directly if you need boolean defaults

	return c
}

// Keys returns the grouping keys of the query: none when NoGroupKeys is set,
// GroupBy when given, else the generated group column.
func (c Config) Keys() []string {
	if c.NoGroupKeys {
		return []string{}
	}
	if len(c.GroupBy) > 0 {
		return append([]string(nil), c.GroupBy...)
	}
	return []string{c.GroupColumn}
}

// ParseStrategies turns "eager,lazy,gota:load=true" into strategy specs.
// Options follow the kind after a colon as comma-free key=value pairs joined
// by ';'.
func ParseStrategies(list string) []StrategySpec {
	var specs []StrategySpec
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		kind, rawOpts, _ := strings.Cut(item, ":")
		spec := StrategySpec{Kind: strings.TrimSpace(kind)}
		for _, pair := range strings.Split(rawOpts, ";") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || strings.TrimSpace(k) == "" {
				continue
			}
			if spec.Options == nil {
				spec.Options = make(map[string]string)
			}
			spec.Options[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		specs = append(specs, spec)
	}
	return specs
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data over the defaults
func LoadFromJSON(data []byte) (Config, error) {
	config := NewConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file. Fields the file
// does not mention keep their defaults.
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	config := NewConfig()
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv overlays GROUPBENCH_* environment variables on base.
// Unparseable values are ignored.
func LoadFromEnv(base Config) Config {
	config := base

	envInt("ROWS", &config.Rows)
	envInt("COLUMNS", &config.Columns)
	envInt("GROUPS", &config.Groups)
	if val := os.Getenv(EnvPrefix + "SEED"); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			config.Seed = parsed
		}
	}
	envString("GROUP_COLUMN", &config.GroupColumn)
	envString("DATA_PATH", &config.DataPath)
	envBool("REGENERATE", &config.Regenerate)

	if val := os.Getenv(EnvPrefix + "GROUP_BY"); val != "" {
		config.GroupBy = splitList(val)
	}
	if val := os.Getenv(EnvPrefix + "VALUE_COLUMNS"); val != "" {
		config.ValueColumns = splitList(val)
	}
	if val := os.Getenv(EnvPrefix + "THRESHOLD"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			config.Threshold = parsed
		}
	}
	envBool("NO_GROUP_KEYS", &config.NoGroupKeys)
	if val := os.Getenv(EnvPrefix + "STRATEGIES"); val != "" {
		config.Strategies = ParseStrategies(val)
	}

	envString("REPORT", &config.Report)
	envString("METRICS_OUT", &config.MetricsOut)

	envInt("PARALLEL_THRESHOLD", &config.ParallelThreshold)
	envInt("WORKER_POOL_SIZE", &config.WorkerPoolSize)
	envInt("CHUNK_SIZE", &config.ChunkSize)
	envBool("FILTER_FUSION", &config.FilterFusion)
	envBool("PREDICATE_PUSHDOWN", &config.PredicatePushdown)
	envBool("PROJECTION_PUSHDOWN", &config.ProjectionPushdown)
	envBool("VERBOSE_LOGGING", &config.VerboseLogging)

	return config
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			*dst = parsed
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			*dst = parsed
		}
	}
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SystemInfo contains system information for configuration validation
type SystemInfo struct {
	CPUCount     int
	MemorySize   int64
	Architecture string
	OSType       string
}

// fallbackMemorySize is used when the host does not report its memory.
const fallbackMemorySize int64 = 8 * 1024 * 1024 * 1024

// GetSystemInfo returns system information for configuration validation
func GetSystemInfo() SystemInfo {
	memSize := fallbackMemorySize
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		memSize = int64(vm.Total)
	}

	return SystemInfo{
		CPUCount:     runtime.NumCPU(),
		MemorySize:   memSize,
		Architecture: runtime.GOARCH,
		OSType:       runtime.GOOS,
	}
}

// ConfigValidator validates and provides recommendations for configuration
type ConfigValidator struct {
	systemInfo SystemInfo
}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		systemInfo: GetSystemInfo(),
	}
}

// Validate validates a configuration and provides recommendations
func (cv *ConfigValidator) Validate(config Config) (Config, []string, error) {
	var warnings []string
	validated := config

	if err := config.Validate(); err != nil {
		return Config{}, warnings, err
	}

	if config.WorkerPoolSize > cv.systemInfo.CPUCount*2 {
		warnings = append(warnings,
			fmt.Sprintf("Worker pool size (%d) exceeds 2x CPU count (%d), may cause contention",
				config.WorkerPoolSize, cv.systemInfo.CPUCount))
	}

	// One float64 per cell; several strategies hold a copy at the same time.
	datasetBytes := int64(config.Rows) * int64(config.Columns+1) * 8
	if datasetBytes > cv.systemInfo.MemorySize/2 {
		warnings = append(warnings,
			fmt.Sprintf("Dataset (%d bytes in memory) exceeds half of system memory (%d bytes)",
				datasetBytes, cv.systemInfo.MemorySize))
	}

	if config.WorkerPoolSize == 0 {
		validated.WorkerPoolSize = cv.systemInfo.CPUCount
		warnings = append(warnings,
			fmt.Sprintf("Auto-setting worker pool size to %d (CPU count)",
				validated.WorkerPoolSize))
	}

	return validated, warnings, nil
}
