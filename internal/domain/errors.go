package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Selection dimensions reported by EmptySelectionError.
const (
	DimensionMonths     = "months"
	DimensionCategories = "categories"
)

var (
	// ErrNarrativeDisabled is returned when no credential for the narrative
	// service is configured. The rest of the pipeline keeps working.
	ErrNarrativeDisabled = errors.New("narrative generation disabled: no API credential configured")

	// ErrNegativeBudget rejects a budget target below zero.
	ErrNegativeBudget = errors.New("budget must not be negative")

	// ErrMissingInput signals a violated input contract (e.g. absent metrics).
	ErrMissingInput = errors.New("missing required input")

	// ErrNoCurrentData is returned when no current-period file could be used.
	ErrNoCurrentData = errors.New("no current-period data")
)

// FileFormatError reports an upload that is not a readable table or lacks a
// required column.
type FileFormatError struct {
	File   string
	Column string // set when a required column is missing
	Reason string
	Err    error
}

func (e *FileFormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "file %q: ", e.File)
	if e.Column != "" {
		fmt.Fprintf(&b, "missing required column %q", e.Column)
	} else {
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FileFormatError) Unwrap() error { return e.Err }

// ValueCoercionError reports a cell that cannot be converted to its column type.
// Row is the 1-based row number in the source file, counting the header.
type ValueCoercionError struct {
	File   string
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ValueCoercionError) Error() string {
	msg := fmt.Sprintf("file %q row %d: cannot convert %s value %q", e.File, e.Row, e.Column, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValueCoercionError) Unwrap() error { return e.Err }

// DataIntegrityError lists the required columns that contain null values.
type DataIntegrityError struct {
	Columns []string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("null values in required columns: %s (only %s may be empty)",
		strings.Join(e.Columns, ", "), strings.Join([]string{ColumnDescription, ColumnSatisfaction}, ", "))
}

// EmptySelectionError reports a filter that excludes every month or category.
type EmptySelectionError struct {
	Dimension string
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("empty selection: select at least one of %s", e.Dimension)
}

// RemoteServiceError wraps a failed call to an external service such as
// the narrative model or cloud storage.
type RemoteServiceError struct {
	Op  string
	Err error
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("%s: remote service: %v", e.Op, e.Err)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }
