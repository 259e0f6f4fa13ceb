package io

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
)

// Format is an on-disk table format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat picks the format from the file extension. Anything that is
// not Parquet is read as CSV.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// Open opens path for reading. A missing, unreadable or non-regular file is
// reported as a data unavailable error.
func Open(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, dferrors.NewDataUnavailableError(path, err)
	}
	if info.IsDir() {
		return nil, dferrors.NewDataUnavailableError(path, fmt.Errorf("is a directory"))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, dferrors.NewDataUnavailableError(path, err)
	}
	return f, nil
}

// ReadFile reads the given columns of a CSV or Parquet file. Nil columns
// reads every column.
func ReadFile(path string, columns []string, mem memory.Allocator) (*dataframe.DataFrame, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader DataReader
	switch DetectFormat(path) {
	case FormatParquet:
		opts := DefaultParquetOptions()
		opts.Columns = columns
		reader = NewParquetReader(f, opts, mem)
	default:
		opts := DefaultCSVOptions()
		opts.Columns = columns
		reader = NewCSVReader(f, opts, mem)
	}

	df, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return df, nil
}

// WriteFile writes df to path in the format implied by its extension.
func WriteFile(path string, df *dataframe.DataFrame) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	var writer DataWriter
	switch DetectFormat(path) {
	case FormatParquet:
		writer = NewParquetWriter(f, DefaultParquetOptions())
	default:
		writer = NewCSVWriter(f, DefaultCSVOptions())
	}

	if err := writer.Write(df); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// FileScanner reads a file for a lazy plan. It implements dataframe.Scanner.
type FileScanner struct {
	path   string
	format Format
	mem    memory.Allocator
}

// ScanFile returns a scanner over path; the file is not opened until Scan.
func ScanFile(path string, mem memory.Allocator) *FileScanner {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &FileScanner{path: path, format: DetectFormat(path), mem: mem}
}

// Scan reads the requested columns.
func (s *FileScanner) Scan(columns []string) (*dataframe.DataFrame, error) {
	return ReadFile(s.path, columns, s.mem)
}

// Path returns the scanned file.
func (s *FileScanner) Path() string {
	return s.path
}

func (s *FileScanner) String() string {
	return fmt.Sprintf("%s %s", s.format, s.path)
}

var _ dataframe.Scanner = (*FileScanner)(nil)
