package bench

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/generate"
	"github.com/paveg/groupbench/internal/io"
)

func BenchmarkStrategies(b *testing.B) {
	spec := generate.Spec{Rows: 20_000, Columns: 20, Groups: 200, Seed: 1, GroupColumn: "id"}
	df, err := generate.Frame(spec)
	if err != nil {
		b.Fatal(err)
	}
	defer df.Release()

	path := filepath.Join(b.TempDir(), "data.csv")
	if err := io.WriteFile(path, df); err != nil {
		b.Fatal(err)
	}
	ds := &Dataset{Path: path, Frame: df}
	q := Query{GroupBy: []string{"id"}, Values: spec.ValueColumns(), Threshold: config.DefaultThreshold}
	ctx := context.Background()

	for _, kind := range config.DefaultStrategyKinds {
		b.Run(kind, func(b *testing.B) {
			b.ReportAllocs()
			for range b.N {
				b.StopTimer()
				s, err := NewStrategy(config.StrategySpec{Kind: kind})
				if err != nil {
					b.Fatal(err)
				}
				if err := s.Prepare(ctx, ds); err != nil {
					b.Fatal(err)
				}
				b.StartTimer()

				if _, err := s.Run(ctx, q); err != nil {
					b.Fatal(err)
				}

				if c, ok := s.(closer); ok {
					_ = c.Close()
				}
			}
		})
	}
}
