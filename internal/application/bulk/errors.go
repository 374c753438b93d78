// Package bulk implements the CSV-driven catalog import/export
// pipeline: schema mapping, reference resolution, row processing,
// batched creation with downstream reconciliation, and the inverse
// export formatter.
package bulk

import (
	"fmt"
	"strings"
)

// Import error codes
const (
	ErrCodeRowFailed         = "ERR_IMPORT_ROW_FAILED"
	ErrCodeInvalidType       = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeMissingColumn     = "ERR_IMPORT_MISSING_COLUMN"
	ErrCodeReferenceNotFound = "ERR_IMPORT_REFERENCE_NOT_FOUND"
	ErrCodeCreateFailed      = "ERR_IMPORT_CREATE_FAILED"
)

// RowError records a failure processing one CSV row. Row errors never
// abort the import; they are collected and reported in the outcome.
type RowError struct {
	Row         int    `json:"row"`
	ProductName string `json:"product_name,omitempty"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.ProductName != "" {
		return fmt.Sprintf("row %d (%s): %s", e.Row, e.ProductName, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, productName, code, message string) RowError {
	return RowError{Row: row, ProductName: productName, Code: code, Message: message}
}

// ErrorCollection accumulates row errors up to a reporting limit, while
// still counting every error past the limit.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates an ErrorCollection with a maximum reported size
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including unreported ones
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if any error was recorded
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were dropped from the report
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}

// MissingReferences is the exhaustive list of category and brand names
// a CSV references that do not exist in the catalog. The import is
// rejected with the complete list, never one name at a time.
type MissingReferences struct {
	Categories []string `json:"categories,omitempty"`
	Brands     []string `json:"brands,omitempty"`
}

// IsEmpty returns true when every reference resolved
func (m *MissingReferences) IsEmpty() bool {
	return len(m.Categories) == 0 && len(m.Brands) == 0
}

// ValidationError is the fatal pre-flight failure returned when
// references are unresolvable. It carries the full missing list.
type ValidationError struct {
	Missing *MissingReferences
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("unknown categories: %s", strings.Join(e.Missing.Categories, ", ")))
	}
	if len(e.Missing.Brands) > 0 {
		parts = append(parts, fmt.Sprintf("unknown brands: %s", strings.Join(e.Missing.Brands, ", ")))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return strings.Join(parts, "; ")
}
