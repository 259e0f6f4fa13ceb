// Package generate builds the synthetic benchmark dataset: a grouping column
// assigned by row position modulo the group count, plus numeric columns of
// independent standard-normal draws. Output is deterministic for a seed and
// does not depend on the batch size used to produce it.
package generate

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	humanize "github.com/dustin/go-humanize"

	"github.com/paveg/groupbench/internal/config"
	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/io"
	"github.com/paveg/groupbench/internal/logging"
)

// cellsPerBatch bounds the size of one generated record batch.
const cellsPerBatch = 1 << 20

// Spec describes a dataset.
type Spec struct {
	Rows        int
	Columns     int
	Groups      int
	Seed        uint64
	GroupColumn string
}

// FromConfig takes the dataset dimensions from cfg.
func FromConfig(cfg config.Config) Spec {
	return Spec{
		Rows:        cfg.Rows,
		Columns:     cfg.Columns,
		Groups:      cfg.Groups,
		Seed:        cfg.Seed,
		GroupColumn: cfg.GroupColumn,
	}
}

// Validate checks the dimensions.
func (s Spec) Validate() error {
	switch {
	case s.Rows < 0:
		return dferrors.NewInvalidInputError("generate", fmt.Sprintf("rows must be non-negative, got %d", s.Rows))
	case s.Columns < 1:
		return dferrors.NewInvalidInputError("generate", fmt.Sprintf("columns must be at least 1, got %d", s.Columns))
	case s.Groups < 1:
		return dferrors.NewInvalidInputError("generate", fmt.Sprintf("groups must be at least 1, got %d", s.Groups))
	}
	return nil
}

func (s Spec) groupColumn() string {
	if s.GroupColumn == "" {
		return config.DefaultGroupColumn
	}
	return s.GroupColumn
}

// ValueColumns returns v1..vC.
func (s Spec) ValueColumns() []string {
	names := make([]string, s.Columns)
	for i := range names {
		names[i] = fmt.Sprintf("v%d", i+1)
	}
	return names
}

// Schema is the grouping column followed by the value columns.
func (s Spec) Schema() *arrow.Schema {
	fields := make([]arrow.Field, 0, s.Columns+1)
	fields = append(fields, arrow.Field{Name: s.groupColumn(), Type: arrow.PrimitiveTypes.Int64})
	for _, name := range s.ValueColumns() {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// DefaultBatchRows picks a batch size that keeps a batch near a million cells.
func (s Spec) DefaultBatchRows() int {
	if s.Columns <= 0 {
		return cellsPerBatch
	}
	return max(1, cellsPerBatch/s.Columns)
}

// Batches produces the dataset as record batches of at most batchRows rows
// and hands each to fn, which must not keep the record after returning.
// At least one batch is produced, even for zero rows.
func Batches(spec Spec, batchRows int, fn func(arrow.Record) error) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if batchRows <= 0 {
		batchRows = spec.DefaultBatchRows()
	}

	mem := memory.NewGoAllocator()
	rng := rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x9e3779b97f4a7c15))
	b := array.NewRecordBuilder(mem, spec.Schema())
	defer b.Release()

	ids := b.Field(0).(*array.Int64Builder)
	values := make([]*array.Float64Builder, spec.Columns)
	for c := range values {
		values[c] = b.Field(c + 1).(*array.Float64Builder)
	}

	emit := func() error {
		rec := b.NewRecord()
		defer rec.Release()
		return fn(rec)
	}

	for start := 0; start < spec.Rows || start == 0; start += batchRows {
		end := min(start+batchRows, spec.Rows)
		n := end - start
		ids.Reserve(n)
		for c := range values {
			values[c].Reserve(n)
		}
		// rows outer, columns inner: the draw order is independent of batchRows
		for row := start; row < end; row++ {
			ids.UnsafeAppend(int64(row % spec.Groups))
			for _, v := range values {
				v.UnsafeAppend(rng.NormFloat64())
			}
		}
		if err := emit(); err != nil {
			return err
		}
		if end >= spec.Rows {
			break
		}
	}
	return nil
}

// Frame generates the whole dataset in memory.
func Frame(spec Spec) (*dataframe.DataFrame, error) {
	var frames []*dataframe.DataFrame
	release := func() {
		for _, f := range frames {
			f.Release()
		}
	}

	err := Batches(spec, spec.Rows, func(rec arrow.Record) error {
		df, err := dataframe.FromRecord(rec)
		if err != nil {
			return err
		}
		frames = append(frames, df)
		return nil
	})
	if err != nil {
		release()
		return nil, err
	}
	if len(frames) == 1 {
		return frames[0], nil
	}
	defer release()
	return frames[0].Concat(frames[1:]...)
}

// Write streams the dataset into w using a format-specific record writer.
func Write(spec Spec, batchRows int, open func(*arrow.Schema) (io.RecordWriter, error)) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	w, err := open(spec.Schema())
	if err != nil {
		return err
	}
	if err := Batches(spec, batchRows, w.Write); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteFile writes the dataset to path as CSV or Parquet, chosen by the file
// extension. Missing parent directories are created.
func WriteFile(path string, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	format := io.DetectFormat(path)
	logging.Logger.Infow("generating dataset",
		"path", path,
		"format", format,
		"rows", humanize.Comma(int64(spec.Rows)),
		"columns", spec.Columns,
		"groups", spec.Groups,
		"seed", spec.Seed,
	)

	open := func(schema *arrow.Schema) (io.RecordWriter, error) {
		if format == io.FormatParquet {
			return io.NewParquetRecordWriter(f, schema, io.DefaultParquetOptions())
		}
		return io.NewCSVRecordWriter(f, schema, io.DefaultCSVOptions()), nil
	}
	if err := Write(spec, 0, open); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	if info, err := os.Stat(path); err == nil {
		logging.Logger.Infow("dataset written", "path", path, "size", humanize.Bytes(uint64(info.Size()))) //nolint:gosec // file sizes are non-negative
	}
	return nil
}
