package bench

import (
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/logging"
)

// factory builds a strategy from its label and options.
type factory struct {
	options []string
	build   func(name string, opts map[string]string) (Strategy, error)
}

var registry = map[string]factory{
	"eager": {
		build: func(name string, _ map[string]string) (Strategy, error) {
			return &eagerStrategy{name: name}, nil
		},
	},
	"lazy": {
		build: func(name string, _ map[string]string) (Strategy, error) {
			return &lazyStrategy{name: name}, nil
		},
	},
	"lazy-scan": {
		build: func(name string, _ map[string]string) (Strategy, error) {
			return &lazyScanStrategy{name: name}, nil
		},
	},
	"gota": {
		options: []string{"load"},
		build: func(name string, opts map[string]string) (Strategy, error) {
			load, err := boolOption(opts, "load")
			if err != nil {
				return nil, err
			}
			return &gotaStrategy{name: name, load: load}, nil
		},
	},
	"sqlite": {
		options: []string{"dsn"},
		build: func(name string, opts map[string]string) (Strategy, error) {
			return &sqliteStrategy{name: name, dsn: opts["dsn"]}, nil
		},
	},
	"sqlite-load": {
		options: []string{"dsn"},
		build: func(name string, opts map[string]string) (Strategy, error) {
			return &sqliteStrategy{name: name, dsn: opts["dsn"], loadTimed: true}, nil
		},
	},
	"partition": {
		options: []string{"buckets"},
		build: func(name string, opts map[string]string) (Strategy, error) {
			buckets, err := intOption(opts, "buckets")
			if err != nil {
				return nil, err
			}
			if buckets < 0 {
				return nil, fmt.Errorf("option buckets must not be negative, got %d", buckets)
			}
			return &partitionStrategy{name: name, buckets: buckets}, nil
		},
	},
}

// Kinds lists the registered strategy kinds.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// NewStrategy builds the strategy described by spec.
func NewStrategy(spec config.StrategySpec) (Strategy, error) {
	f, ok := registry[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q (known: %v)", spec.Kind, Kinds())
	}

	for key := range spec.Options {
		if !slices.Contains(f.options, key) {
			logging.Logger.Debugw("ignoring unknown strategy option",
				"strategy", spec.Label(), "option", key)
		}
	}

	s, err := f.build(spec.Label(), spec.Options)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", spec.Label(), err)
	}
	return s, nil
}

// NewStrategies builds every strategy in order, failing on the first
// invalid spec.
func NewStrategies(specs []config.StrategySpec) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(specs))
	for _, spec := range specs {
		s, err := NewStrategy(spec)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, nil
}

func boolOption(opts map[string]string, key string) (bool, error) {
	raw, ok := opts[key]
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("option %s: %w", key, err)
	}
	return v, nil
}

func intOption(opts map[string]string, key string) (int, error) {
	raw, ok := opts[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("option %s: %w", key, err)
	}
	return v, nil
}
