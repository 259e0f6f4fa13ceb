package io

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
)

// Read reads Parquet data and returns a DataFrame. Only the configured
// columns are decoded. Schemas are expected to be flat.
func (r *ParquetReader) Read() (*dataframe.DataFrame, error) {
	src, ok := r.reader.(parquet.ReaderAtSeeker)
	if !ok {
		data, err := io.ReadAll(r.reader)
		if err != nil {
			return nil, fmt.Errorf("reading data: %w", err)
		}
		src = bytes.NewReader(data)
	}

	pqReader, err := file.NewParquetReader(src)
	if err != nil {
		return nil, fmt.Errorf("creating parquet file reader: %w", err)
	}
	defer pqReader.Close()

	batchSize := r.options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		Parallel:  true,
		BatchSize: int64(batchSize),
	}, r.mem)
	if err != nil {
		return nil, fmt.Errorf("creating arrow file reader: %w", err)
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	fields, indices, err := r.projection(schema)
	if err != nil {
		return nil, err
	}

	records, err := arrowReader.GetRecordReader(context.Background(), indices, nil)
	if err != nil {
		return nil, fmt.Errorf("creating record reader: %w", err)
	}
	defer records.Release()

	chunks := make([][]arrow.Array, len(fields))
	release := func() {
		for _, cs := range chunks {
			for _, c := range cs {
				c.Release()
			}
		}
	}
	for records.Next() {
		rec := records.Record()
		for c, field := range fields {
			found := rec.Schema().FieldIndices(field.Name)
			if len(found) == 0 {
				release()
				return nil, dferrors.NewColumnNotFoundError("ReadParquet", field.Name)
			}
			arr := rec.Column(found[0])
			arr.Retain()
			chunks[c] = append(chunks[c], arr)
		}
	}
	if err := records.Err(); err != nil && !errors.Is(err, io.EOF) {
		release()
		return nil, fmt.Errorf("reading row groups: %w", err)
	}

	seriesList := make([]dataframe.ISeries, 0, len(fields))
	for c, field := range fields {
		arr, err := r.combine(field, chunks[c])
		if err != nil {
			release()
			dataframe.New(seriesList...).Release()
			return nil, fmt.Errorf("converting column %s: %w", field.Name, err)
		}
		s, err := dataframe.SeriesFromArray(field.Name, arr)
		arr.Release()
		if err != nil {
			release()
			dataframe.New(seriesList...).Release()
			return nil, err
		}
		seriesList = append(seriesList, s)
	}
	release()
	return dataframe.New(seriesList...), nil
}

// projection resolves the configured columns to field positions.
func (r *ParquetReader) projection(schema *arrow.Schema) ([]arrow.Field, []int, error) {
	if r.options.Columns == nil {
		indices := make([]int, schema.NumFields())
		for i := range indices {
			indices[i] = i
		}
		return schema.Fields(), indices, nil
	}

	fields := make([]arrow.Field, len(r.options.Columns))
	indices := make([]int, len(r.options.Columns))
	for i, name := range r.options.Columns {
		found := schema.FieldIndices(name)
		if len(found) == 0 {
			return nil, nil, dferrors.NewColumnNotFoundError("ReadParquet", name)
		}
		indices[i] = found[0]
		fields[i] = schema.Field(found[0])
	}
	return fields, indices, nil
}

// combine joins the record batches of one column into a single array.
func (r *ParquetReader) combine(field arrow.Field, chunks []arrow.Array) (arrow.Array, error) {
	switch len(chunks) {
	case 0:
		b := array.NewBuilder(r.mem, field.Type)
		defer b.Release()
		return b.NewArray(), nil
	case 1:
		chunks[0].Retain()
		return chunks[0], nil
	default:
		return array.Concatenate(chunks, r.mem)
	}
}

// Write writes the DataFrame to Parquet format.
func (w *ParquetWriter) Write(df *dataframe.DataFrame) error {
	rec := df.ToRecord()
	defer rec.Release()

	stream, err := NewParquetRecordWriter(w.writer, rec.Schema(), w.options)
	if err != nil {
		return err
	}
	if err := stream.Write(rec); err != nil {
		_ = stream.Close()
		return err
	}
	return stream.Close()
}

// compressionCodec maps a codec name to its Parquet compression; unknown
// names fall back to snappy.
func compressionCodec(name string) compress.Compression {
	switch name {
	case "gzip":
		return compress.Codecs.Gzip
	case "lz4":
		return compress.Codecs.Lz4Raw
	case "zstd":
		return compress.Codecs.Zstd
	case "uncompressed", "none":
		return compress.Codecs.Uncompressed
	default:
		return compress.Codecs.Snappy
	}
}
