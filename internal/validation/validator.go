// =============================================================================
// Stop & Go Invoice Batch - Structural Validation
// =============================================================================
//
// This module checks the structure of the tables the batch reads and writes.
// Cell values are never validated here: unreadable cells are coerced to zero
// or "" by the normalizer. What is validated:
//   1. Input level: required columns exist after header renaming
//   2. Output level: every export record has the fixed column count
//
// ERROR HANDLING:
//   - A failed check returns a *ValidationError, callers use errors.As
//   - Severity "error" aborts the stage, "warning" is only logged
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleRequiredColumns = "required_columns"
	RuleRecordWidth     = "record_width"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single structural validation failure.
type ValidationError struct {
	// Severity indicates the severity of the error.
	// "error" = fatal, the stage stops
	// "warning" = non-fatal, processing continues
	Severity string

	// Source is the file the check was applied to.
	Source string

	// Field names the missing columns or the offending record.
	Field string

	// Rule is the validation rule that was violated.
	Rule string

	// Message is a human-readable error message.
	Message string

	// Missing lists the required columns that were not found.
	Missing []string

	// Detected lists the columns that were found.
	Detected []string

	// RowNumber is the 1-based record index, 0 when not row-specific.
	RowNumber int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	location := e.Source
	if e.RowNumber > 0 {
		location = fmt.Sprintf("%s, record %d", location, e.RowNumber)
	}
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(e.Severity), location, e.Message)
}

// IsFatal reports whether the error should stop processing.
func (e *ValidationError) IsFatal() bool {
	return e.Severity == SeverityError
}

// =============================================================================
// INPUT CHECKS
// =============================================================================

// RequireColumns checks that every required column is among headers.
//
// RETURNS:
//   - nil when all columns are present.
//   - A fatal *ValidationError listing the missing and the detected columns.
func RequireColumns(source string, headers, required []string) *ValidationError {
	present := make(map[string]bool, len(headers))
	for _, header := range headers {
		present[strings.TrimSpace(header)] = true
	}

	var missing []string
	for _, column := range required {
		if !present[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)

	detected := append([]string(nil), headers...)
	return &ValidationError{
		Severity: SeverityError,
		Source:   source,
		Field:    strings.Join(missing, ","),
		Rule:     RuleRequiredColumns,
		Message: fmt.Sprintf("missing required columns %v (detected: %v)",
			missing, detected),
		Missing:  missing,
		Detected: detected,
	}
}

// =============================================================================
// OUTPUT CHECKS
// =============================================================================

// CheckRecordWidth verifies that every record has exactly width columns. The
// first offending record is reported.
func CheckRecordWidth(source string, records [][]string, width int) *ValidationError {
	for i, record := range records {
		if len(record) != width {
			return &ValidationError{
				Severity:  SeverityError,
				Source:    source,
				Field:     "record",
				Rule:      RuleRecordWidth,
				Message:   fmt.Sprintf("expected %d columns, got %d", width, len(record)),
				RowNumber: i + 1,
			}
		}
	}
	return nil
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d error(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}
