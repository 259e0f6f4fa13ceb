package io

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/paveg/groupbench/internal/dataframe"
	dferrors "github.com/paveg/groupbench/internal/errors"
	"github.com/paveg/groupbench/internal/series"
)

const (
	// Boolean string constants
	trueStr  = "true"
	falseStr = "false"
)

type columnKind int

const (
	kindString columnKind = iota
	kindBool
	kindInt
	kindFloat
)

// Read reads CSV data and returns a DataFrame. Empty cells become nulls.
func (r *CSVReader) Read() (*dataframe.DataFrame, error) {
	csvReader := csv.NewReader(r.reader)
	csvReader.Comma = r.options.Delimiter
	csvReader.Comment = r.options.Comment
	csvReader.TrimLeadingSpace = r.options.SkipInitialSpace
	csvReader.FieldsPerRecord = -1
	csvReader.ReuseRecord = true

	first, err := csvReader.Read()
	if errors.Is(err, io.EOF) {
		if len(r.options.Columns) > 0 {
			return nil, dferrors.NewColumnNotFoundError("ReadCSV", r.options.Columns[0])
		}
		return dataframe.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	var headers []string
	if r.options.Header {
		headers = append([]string(nil), first...)
	} else {
		headers = make([]string, len(first))
		for i := range headers {
			headers[i] = fmt.Sprintf("column_%d", i)
		}
	}

	names, picks, err := r.projection(headers)
	if err != nil {
		return nil, err
	}

	columns := make([][]string, len(picks))
	appendRow := func(record []string) {
		for c, idx := range picks {
			value := ""
			if idx < len(record) {
				value = record[idx]
			}
			columns[c] = append(columns[c], value)
		}
	}
	if !r.options.Header {
		appendRow(first)
	}

	for {
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		appendRow(record)
	}

	seriesList := make([]dataframe.ISeries, 0, len(names))
	for c, name := range names {
		s, err := r.createSeriesFromStrings(name, columns[c])
		if err != nil {
			dataframe.New(seriesList...).Release()
			return nil, fmt.Errorf("creating series for column %s: %w", name, err)
		}
		seriesList = append(seriesList, s)
	}
	return dataframe.New(seriesList...), nil
}

// projection maps the requested columns to record positions.
func (r *CSVReader) projection(headers []string) ([]string, []int, error) {
	if r.options.Columns == nil {
		picks := make([]int, len(headers))
		for i := range picks {
			picks[i] = i
		}
		return headers, picks, nil
	}

	position := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := position[h]; !dup {
			position[h] = i
		}
	}
	picks := make([]int, len(r.options.Columns))
	for i, name := range r.options.Columns {
		idx, ok := position[name]
		if !ok {
			return nil, nil, dferrors.NewColumnNotFoundError("ReadCSV", name)
		}
		picks[i] = idx
	}
	return append([]string(nil), r.options.Columns...), picks, nil
}

// createSeriesFromStrings creates a nullable series from string data,
// inferring the narrowest type that fits every non-empty value.
func (r *CSVReader) createSeriesFromStrings(name string, data []string) (dataframe.ISeries, error) {
	valid := make([]bool, len(data))
	for i, value := range data {
		valid[i] = value != ""
	}

	switch inferDataType(data) {
	case kindBool:
		values := make([]bool, len(data))
		for i, value := range data {
			values[i] = strings.EqualFold(value, trueStr)
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindInt:
		values := make([]int64, len(data))
		for i, value := range data {
			if valid[i] {
				values[i], _ = strconv.ParseInt(value, 10, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	case kindFloat:
		values := make([]float64, len(data))
		for i, value := range data {
			if valid[i] {
				values[i], _ = strconv.ParseFloat(value, 64)
			}
		}
		return series.NewNullable(name, values, valid, r.mem)
	default:
		return series.NewNullable(name, data, valid, r.mem)
	}
}

// inferDataType determines the most specific type for the given values.
// A column with no values at all is numeric: every entry is a null float.
func inferDataType(data []string) columnKind {
	canBeInt := true
	canBeFloat := true
	canBeBool := true
	hasNonEmptyValue := false

	for _, value := range data {
		if value == "" {
			continue
		}
		hasNonEmptyValue = true

		if canBeBool {
			lower := strings.ToLower(value)
			if lower != trueStr && lower != falseStr {
				canBeBool = false
			}
		}
		if canBeInt {
			if _, err := strconv.ParseInt(value, 10, 64); err != nil {
				canBeInt = false
			}
		}
		if canBeFloat {
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				canBeFloat = false
			}
		}
		if !canBeBool && !canBeInt && !canBeFloat {
			return kindString
		}
	}

	switch {
	case !hasNonEmptyValue:
		return kindFloat
	case canBeBool:
		return kindBool
	case canBeInt:
		return kindInt
	case canBeFloat:
		return kindFloat
	default:
		return kindString
	}
}

// Write writes the DataFrame to CSV format. Nulls are written as empty cells.
func (w *CSVWriter) Write(df *dataframe.DataFrame) error {
	csvWriter := csv.NewWriter(w.writer)
	if w.options.Delimiter != 0 {
		csvWriter.Comma = w.options.Delimiter
	}

	names := df.Columns()
	if w.options.Header {
		if err := csvWriter.Write(names); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}

	arrays := make([]arrow.Array, len(names))
	for j, name := range names {
		column, _ := df.Column(name)
		arrays[j] = column.Array()
		defer arrays[j].Release()
	}

	row := make([]string, len(names))
	for i := 0; i < df.Len(); i++ {
		for j, arr := range arrays {
			row[j] = series.FormatValue(arr, i)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
