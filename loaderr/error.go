// Package loaderr provides the structured error type shared by the loader.
//
// Every failure the loader reports carries an operation, a standard error code
// and a class telling whether retrying can help. It integrates with Go's
// standard errors package for wrapping and unwrapping.
package loaderr

import (
	"errors"
	"fmt"
	"strings"
)

// Standard error codes.
const (
	// CodeSchemaCycleViolation indicates a class-level reference cycle that holds
	// a mandatory property. Fatal, reported before any network call.
	CodeSchemaCycleViolation = "SCHEMA_CYCLE_VIOLATION"

	// CodeUnstashableCycle indicates an instance-level cycle made only of
	// mandatory values. Fatal, reported before any network call.
	CodeUnstashableCycle = "UNSTASHABLE_CYCLE"

	// CodeTransientNetwork indicates a failure that may go away on retry.
	CodeTransientNetwork = "TRANSIENT_NETWORK_FAILURE"

	// CodeTerminalAPI indicates the backend refused the operation for good.
	CodeTerminalAPI = "TERMINAL_API_FAILURE"

	// CodeBlockedByDependency indicates a record or reinsertion skipped because
	// something it depends on failed.
	CodeBlockedByDependency = "BLOCKED_BY_DEPENDENCY"

	// CodeRetriesExhausted indicates every allowed attempt failed transiently.
	CodeRetriesExhausted = "RETRIES_EXHAUSTED"

	// CodeDuplicateIdentifier indicates a local id registered twice with different global ids.
	CodeDuplicateIdentifier = "DUPLICATE_IDENTIFIER"

	// CodeInvalidInput indicates malformed records or schema.
	CodeInvalidInput = "INVALID_INPUT"

	// CodeCheckpointUnavailable indicates the saved state of an earlier run
	// could not be read. Fatal, reported before any network call.
	CodeCheckpointUnavailable = "CHECKPOINT_UNAVAILABLE"

	// CodeCancelled indicates the work was not started because the run was cancelled.
	CodeCancelled = "CANCELLED"
)

// Error is a structured error for loader operations.
type Error struct {
	// Op is the operation that failed (e.g., "create record", "update record").
	Op string

	// RecordID is the caller-local id of the record involved, if any.
	RecordID string

	// Property is the property involved, if any.
	Property string

	// Code is a standard error code constant.
	Code string

	// Message is a human-readable error message.
	Message string

	// Details contains additional context as key-value pairs.
	Details map[string]any

	// Cause is the underlying error.
	Cause error

	// Class tells whether a retry can help.
	Class ErrorClass `json:"class,omitempty"`
}

// New creates a structured error. The class defaults to DefaultClassForCode(code).
func New(op, code, message string) *Error {
	return &Error{
		Op:      op,
		Code:    code,
		Message: message,
		Class:   DefaultClassForCode(code),
	}
}

// WithCause adds an underlying error and returns e for chaining.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithRecord sets the record id and property and returns e for chaining.
func (e *Error) WithRecord(recordID, property string) *Error {
	e.RecordID = recordID
	e.Property = property
	return e
}

// WithDetails adds context and returns e for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithClass overrides the error class and returns e for chaining.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// Error formats the error as "op [CODE] record/property: message: cause".
//
// Examples:
//   - "create record [TERMINAL_API_FAILURE] book-1: backend refused record: status 400"
//   - "plan [UNSTASHABLE_CYCLE] a/hasB: cycle holds only mandatory values"
func (e *Error) Error() string {
	var parts []string

	head := fmt.Sprintf("%s [%s]", e.Op, e.Code)
	switch {
	case e.RecordID != "" && e.Property != "":
		head += " " + e.RecordID + "/" + e.Property
	case e.RecordID != "":
		head += " " + e.RecordID
	}
	parts = append(parts, head)

	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same Code. An empty target Op matches any
// operation, so errors.Is(err, &Error{Code: CodeRetriesExhausted}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// Sentinel errors for common scenarios.
var (
	// ErrTransient marks an error as transient when wrapped with %w.
	ErrTransient = errors.New("transient failure, try again later")

	// ErrRetriesExhausted matches any error with CodeRetriesExhausted.
	ErrRetriesExhausted = &Error{Code: CodeRetriesExhausted}

	// ErrBlocked matches any error with CodeBlockedByDependency.
	ErrBlocked = &Error{Code: CodeBlockedByDependency}
)
