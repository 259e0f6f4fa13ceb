package io

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// RecordWriter writes a file one Arrow record batch at a time.
type RecordWriter interface {
	Write(rec arrow.Record) error
	Close() error
}

type csvRecordWriter struct {
	w *csv.Writer
}

// NewCSVRecordWriter streams record batches as CSV. Nulls are written as
// empty cells, the header is written before the first batch.
func NewCSVRecordWriter(w io.Writer, schema *arrow.Schema, options CSVOptions) RecordWriter {
	delimiter := options.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	return &csvRecordWriter{w: csv.NewWriter(w, schema,
		csv.WithComma(delimiter),
		csv.WithHeader(options.Header),
		csv.WithNullWriter(""),
	)}
}

func (c *csvRecordWriter) Write(rec arrow.Record) error {
	if err := c.w.Write(rec); err != nil {
		return fmt.Errorf("writing CSV batch: %w", err)
	}
	return nil
}

func (c *csvRecordWriter) Close() error {
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return c.w.Error()
}

type parquetRecordWriter struct {
	w *pqarrow.FileWriter
}

// sink hides Close from pqarrow, which would otherwise close the caller's file.
type sink struct {
	io.Writer
}

// NewParquetRecordWriter streams record batches into a Parquet file, one row
// group per batch. Closing the writer finishes the file footer; w stays open
// and belongs to the caller.
func NewParquetRecordWriter(w io.Writer, schema *arrow.Schema, options ParquetOptions) (RecordWriter, error) {
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compressionCodec(options.Compression)),
		parquet.WithBatchSize(int64(batchSize)),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(schema, sink{w}, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("creating file writer: %w", err)
	}
	return &parquetRecordWriter{w: writer}, nil
}

func (p *parquetRecordWriter) Write(rec arrow.Record) error {
	if err := p.w.Write(rec); err != nil {
		return fmt.Errorf("writing Parquet batch: %w", err)
	}
	return nil
}

func (p *parquetRecordWriter) Close() error {
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("closing Parquet writer: %w", err)
	}
	return nil
}
