package domain

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ExtractionKind classifies why an intent payload was rejected.
type ExtractionKind string

const (
	FreeTextNotAccepted    ExtractionKind = "FreeTextNotAccepted"
	IntentExtractionFailed ExtractionKind = "IntentExtractionFailed"
)

// ExtractionError indicates the payload could not be turned into an Intent.
type ExtractionError struct {
	Kind    ExtractionKind
	Message string
}

func (e *ExtractionError) Error() string { return e.Message }

// ErrExtraction creates an ExtractionError with a formatted message.
func ErrExtraction(kind ExtractionKind, format string, args ...interface{}) *ExtractionError {
	return &ExtractionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ViolationKind classifies an intent rejected by business rules.
type ViolationKind string

const (
	PiiExposure           ViolationKind = "PiiExposure"
	DimensionsUnsupported ViolationKind = "DimensionsUnsupported"
	FilterForbidden       ViolationKind = "FilterForbidden"
	FilterUnsupported     ViolationKind = "FilterUnsupported"
	TimeRangeRequired     ViolationKind = "TimeRangeRequired"
	UnsupportedTimeRange  ViolationKind = "UnsupportedTimeRange"
	NoDefaultVersion      ViolationKind = "NoDefaultVersion"
)

// IntentViolation indicates a well-formed intent that breaks a metric's rules.
type IntentViolation struct {
	Kind    ViolationKind
	Filter  FilterIntent // set for FilterForbidden and FilterUnsupported
	Message string
}

func (e *IntentViolation) Error() string { return e.Message }

// ErrViolation creates an IntentViolation with a formatted message.
func ErrViolation(kind ViolationKind, format string, args ...interface{}) *IntentViolation {
	return &IntentViolation{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// GenerationKind classifies a failure at the SQL generation boundary.
type GenerationKind string

const (
	SqlGenerationFailed GenerationKind = "SqlGenerationFailed"
	EmptyGeneration     GenerationKind = "EmptyGeneration"
)

// GenerationError indicates the generator failed or returned nothing usable.
type GenerationError struct {
	Kind GenerationKind
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return "sql generation: " + string(e.Kind)
	}
	return "sql generation: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SQLViolationKind classifies a generated statement rejected by the safety
// validator.
type SQLViolationKind string

const (
	NotSelectOnly        SQLViolationKind = "NotSelectOnly"
	DestructiveOperation SQLViolationKind = "DestructiveOperation"
	SubqueryNotAllowed   SQLViolationKind = "SubqueryNotAllowed"
	CrossJoinNotAllowed  SQLViolationKind = "CrossJoinNotAllowed"
	LimitRequired        SQLViolationKind = "LimitRequired"
	SyntaxError          SQLViolationKind = "SyntaxError"
)

// SQLViolation indicates generated SQL failed a safety check.
type SQLViolation struct {
	Kind   SQLViolationKind
	Detail string
}

func (e *SQLViolation) Error() string {
	if e.Detail == "" {
		return "unsafe sql: " + string(e.Kind)
	}
	return "unsafe sql: " + string(e.Kind) + ": " + e.Detail
}

// ErrSQLViolation creates a SQLViolation with a formatted detail.
func ErrSQLViolation(kind SQLViolationKind, format string, args ...interface{}) *SQLViolation {
	return &SQLViolation{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// ExecutionKind classifies a database failure.
type ExecutionKind string

const (
	DatabaseExecutionFailed ExecutionKind = "DatabaseExecutionFailed"
	QueryTimeout            ExecutionKind = "QueryTimeout"
)

// ExecutionError indicates the database could not answer the query.
type ExecutionError struct {
	Kind ExecutionKind
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return "execute: " + string(e.Kind)
	}
	return "execute: " + e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RegistryLoadError lists every problem found while loading the metric
// catalog. A registry that fails to load must stop the process.
type RegistryLoadError struct {
	Problems []string
}

func (e *RegistryLoadError) Error() string {
	return fmt.Sprintf("metric registry: %d problem(s):\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// ErrorKind returns the stable, machine-readable kind of err, or "Internal"
// when err is not a domain error.
func ErrorKind(err error) string {
	var (
		extraction *ExtractionError
		violation  *IntentViolation
		generation *GenerationError
		unsafe     *SQLViolation
		execution  *ExecutionError
		registry   *RegistryLoadError
		notFound   *NotFoundError
		validation *ValidationError
	)
	switch {
	case errors.As(err, &extraction):
		return string(extraction.Kind)
	case errors.As(err, &violation):
		return string(violation.Kind)
	case errors.As(err, &generation):
		return string(generation.Kind)
	case errors.As(err, &unsafe):
		return string(unsafe.Kind)
	case errors.As(err, &execution):
		return string(execution.Kind)
	case errors.As(err, &registry):
		return "RegistryLoadFailed"
	case errors.As(err, &notFound):
		return "NotFound"
	case errors.As(err, &validation):
		return "ValidationFailed"
	default:
		return "Internal"
	}
}
