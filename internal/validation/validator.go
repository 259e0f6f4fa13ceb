// Package validation checks a query's columns against the dataset schema
// before any strategy runs. Every failure is a SchemaMismatch.
package validation

import (
	"errors"
	"fmt"
	"slices"

	dferrors "github.com/paveg/groupbench/internal/errors"
)

// Validator interface for input validation
type Validator interface {
	Validate() error
}

// ColumnProvider interface for types that provide column information
type ColumnProvider interface {
	HasColumn(name string) bool
	NumericColumns() []string
}

// ColumnValidator checks that columns exist. Role names the columns in the
// error ("grouping", "value").
type ColumnValidator struct {
	df      ColumnProvider
	role    string
	columns []string
}

// NewColumnValidator creates a validator for column existence
func NewColumnValidator(df ColumnProvider, role string, columns ...string) *ColumnValidator {
	return &ColumnValidator{df: df, role: role, columns: columns}
}

// Validate checks if all columns exist in the DataFrame
func (v *ColumnValidator) Validate() error {
	for _, column := range v.columns {
		if !v.df.HasColumn(column) {
			return dferrors.NewSchemaMismatchError(column, fmt.Errorf("%s column not found", v.role))
		}
	}
	return nil
}

// NumericValidator checks that columns can be averaged.
type NumericValidator struct {
	df      ColumnProvider
	columns []string
}

// NewNumericValidator creates a validator for numeric columns
func NewNumericValidator(df ColumnProvider, columns ...string) *NumericValidator {
	return &NumericValidator{df: df, columns: columns}
}

// Validate checks that every column is numeric. Missing columns are left to
// ColumnValidator.
func (v *NumericValidator) Validate() error {
	numeric := v.df.NumericColumns()
	for _, column := range v.columns {
		if v.df.HasColumn(column) && !slices.Contains(numeric, column) {
			return dferrors.NewSchemaMismatchError(column, errors.New("value column is not numeric"))
		}
	}
	return nil
}

// DisjointValidator checks that no column is used both as a key and as a
// value.
type DisjointValidator struct {
	keys   []string
	values []string
}

// NewDisjointValidator creates a validator for key/value overlap
func NewDisjointValidator(keys, values []string) *DisjointValidator {
	return &DisjointValidator{keys: keys, values: values}
}

// Validate reports the first value column that is also a key.
func (v *DisjointValidator) Validate() error {
	for _, column := range v.values {
		if slices.Contains(v.keys, column) {
			return dferrors.NewSchemaMismatchError(column, errors.New("column is both a grouping key and a value"))
		}
	}
	return nil
}

// CompoundValidator combines multiple validators
type CompoundValidator struct {
	validators []Validator
}

// NewCompoundValidator creates a validator that checks multiple conditions
func NewCompoundValidator(validators ...Validator) *CompoundValidator {
	return &CompoundValidator{validators: validators}
}

// Validate runs all validators and returns the first error encountered
func (v *CompoundValidator) Validate() error {
	for _, validator := range v.validators {
		if err := validator.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateQuery checks grouping keys and value columns against df.
func ValidateQuery(df ColumnProvider, keys, values []string) error {
	return NewCompoundValidator(
		NewColumnValidator(df, "grouping", keys...),
		NewColumnValidator(df, "value", values...),
		NewNumericValidator(df, values...),
		NewDisjointValidator(keys, values),
	).Validate()
}
