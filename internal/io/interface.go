// Package io reads and writes DataFrames as CSV and Parquet.
//
// Readers infer column types, treat empty CSV cells as nulls and can restrict
// the read to a subset of columns. Scanners wrap a file path so that a lazy
// plan reads the file only when collected, with the projection the optimizer
// pushed down.
//
// Memory management: every returned DataFrame is owned by the caller and must
// be released.
package io

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/groupbench/internal/dataframe"
)

const (
	// DefaultBatchSize is the default batch size for Parquet I/O
	DefaultBatchSize = 64 * 1024
)

// DataReader defines the interface for reading data from various sources
type DataReader interface {
	// Read reads data from the source and returns a DataFrame
	Read() (*dataframe.DataFrame, error)
}

// DataWriter defines the interface for writing data to various destinations
type DataWriter interface {
	// Write writes the DataFrame to the destination
	Write(df *dataframe.DataFrame) error
}

// CSVOptions contains configuration options for CSV operations
type CSVOptions struct {
	// Delimiter is the field delimiter (default: comma)
	Delimiter rune
	// Comment is the comment character (default: 0 = disabled)
	Comment rune
	// Header indicates whether the first row contains headers
	Header bool
	// SkipInitialSpace indicates whether to skip initial whitespace
	SkipInitialSpace bool
	// Columns restricts reading to these columns, in this order. Nil reads all.
	Columns []string
}

// DefaultCSVOptions returns default CSV options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter: ',',
		Header:    true,
	}
}

// CSVReader reads CSV data and converts it to DataFrames
type CSVReader struct {
	reader  io.Reader
	options CSVOptions
	mem     memory.Allocator
}

// NewCSVReader creates a new CSV reader with the specified options
func NewCSVReader(reader io.Reader, options CSVOptions, mem memory.Allocator) *CSVReader {
	return &CSVReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// CSVWriter writes DataFrames to CSV format
type CSVWriter struct {
	writer  io.Writer
	options CSVOptions
}

// NewCSVWriter creates a new CSV writer with the specified options
func NewCSVWriter(writer io.Writer, options CSVOptions) *CSVWriter {
	return &CSVWriter{
		writer:  writer,
		options: options,
	}
}

// ParquetOptions contains configuration options for Parquet operations
type ParquetOptions struct {
	// Compression type for Parquet files
	Compression string
	// BatchSize for reading/writing operations
	BatchSize int
	// Columns restricts reading to these columns, in this order. Nil reads all.
	Columns []string
}

// DefaultParquetOptions returns default Parquet options
func DefaultParquetOptions() ParquetOptions {
	return ParquetOptions{
		Compression: "snappy",
		BatchSize:   DefaultBatchSize,
	}
}

// ParquetReader reads Parquet data and converts it to DataFrames
type ParquetReader struct {
	reader  io.Reader
	options ParquetOptions
	mem     memory.Allocator
}

// NewParquetReader creates a new Parquet reader with the specified options
func NewParquetReader(reader io.Reader, options ParquetOptions, mem memory.Allocator) *ParquetReader {
	return &ParquetReader{
		reader:  reader,
		options: options,
		mem:     mem,
	}
}

// ParquetWriter writes DataFrames to Parquet format
type ParquetWriter struct {
	writer  io.Writer
	options ParquetOptions
}

// NewParquetWriter creates a new Parquet writer with the specified options
func NewParquetWriter(writer io.Writer, options ParquetOptions) *ParquetWriter {
	return &ParquetWriter{
		writer:  writer,
		options: options,
	}
}
