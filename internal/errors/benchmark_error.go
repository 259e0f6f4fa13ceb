package errors

import (
	"fmt"
	"strings"
)

// Kind classifies a benchmark failure.
type Kind int

const (
	// KindDataUnavailable: the dataset file is missing or unreadable.
	KindDataUnavailable Kind = iota + 1
	// KindSchemaMismatch: a grouping or value column is absent or not numeric.
	KindSchemaMismatch
	// KindStrategyFailure: a single strategy failed while the run went on.
	KindStrategyFailure
)

func (k Kind) String() string {
	switch k {
	case KindDataUnavailable:
		return "DataUnavailable"
	case KindSchemaMismatch:
		return "SchemaMismatch"
	case KindStrategyFailure:
		return "StrategyFailure"
	default:
		return "Unknown"
	}
}

// BenchmarkError is returned by the harness and its strategies.
type BenchmarkError struct {
	Kind     Kind
	Strategy string
	Path     string
	Column   string
	Cause    error
}

func (e *BenchmarkError) Error() string {
	var details []string
	if e.Strategy != "" {
		details = append(details, fmt.Sprintf("strategy %q", e.Strategy))
	}
	if e.Path != "" {
		details = append(details, fmt.Sprintf("path %q", e.Path))
	}
	if e.Column != "" {
		details = append(details, fmt.Sprintf("column %q", e.Column))
	}

	msg := e.Kind.String()
	if len(details) > 0 {
		msg += " (" + strings.Join(details, ", ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BenchmarkError) Unwrap() error {
	return e.Cause
}

// Is matches any BenchmarkError of the same kind, so callers can write
// errors.Is(err, ErrSchemaMismatch).
func (e *BenchmarkError) Is(target error) bool {
	t, ok := target.(*BenchmarkError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrDataUnavailable = &BenchmarkError{Kind: KindDataUnavailable}
	ErrSchemaMismatch  = &BenchmarkError{Kind: KindSchemaMismatch}
	ErrStrategyFailure = &BenchmarkError{Kind: KindStrategyFailure}
)

// NewDataUnavailableError reports a dataset path that cannot be read.
func NewDataUnavailableError(path string, cause error) *BenchmarkError {
	return &BenchmarkError{Kind: KindDataUnavailable, Path: path, Cause: cause}
}

// NewSchemaMismatchError reports a missing or mistyped column.
func NewSchemaMismatchError(column string, cause error) *BenchmarkError {
	return &BenchmarkError{Kind: KindSchemaMismatch, Column: column, Cause: cause}
}

// NewStrategyFailure wraps the underlying cause of a failed strategy.
func NewStrategyFailure(strategy string, cause error) *BenchmarkError {
	return &BenchmarkError{Kind: KindStrategyFailure, Strategy: strategy, Cause: cause}
}
