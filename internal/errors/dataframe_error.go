// Package errors provides the error types shared by the dataframe engine and
// the benchmark harness.
//
// DataFrameError describes a failed engine operation (missing column,
// unsupported type, length mismatch). BenchmarkError classifies harness
// failures into the DataUnavailable / SchemaMismatch / StrategyFailure
// taxonomy and is matched with errors.Is against the exported sentinels.
package errors

import (
	"fmt"
)

// DataFrameError represents a failed DataFrame operation.
type DataFrameError struct {
	Op      string // Operation name (e.g., "GroupBy", "Filter", "Take")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *DataFrameError) Error() string {
	msg := fmt.Sprintf("%s operation failed: %s", e.Op, e.Message)
	if e.Column != "" {
		msg = fmt.Sprintf("%s operation failed on column '%s': %s", e.Op, e.Column, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support
func (e *DataFrameError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DataFrameError with the same operation,
// column and message. The cause is not compared.
func (e *DataFrameError) Is(target error) bool {
	if df, ok := target.(*DataFrameError); ok {
		return e.Op == df.Op && e.Column == df.Column && e.Message == df.Message
	}
	return false
}

// NewColumnNotFoundError creates an error for operations on non-existent columns
func NewColumnNotFoundError(op, column string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Message: message,
	}
}

// NewUnsupportedTypeError creates an error for unsupported data types
func NewUnsupportedTypeError(op, column, typeName string) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Column:  column,
		Message: fmt.Sprintf("unsupported type: %s", typeName),
	}
}

// NewInternalError wraps an unexpected failure inside an operation.
func NewInternalError(op string, cause error) *DataFrameError {
	return &DataFrameError{
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}

var (
	// ErrMismatchedLength indicates columns of different lengths
	ErrMismatchedLength = &DataFrameError{
		Op:      "validation",
		Message: "arrays must have the same length",
	}

	// ErrInvalidIndex indicates out-of-bounds index access
	ErrInvalidIndex = &DataFrameError{
		Op:      "indexing",
		Message: "index out of bounds",
	}
)
