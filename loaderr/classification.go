package loaderr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// ErrorClass tells the retry layer whether an operation is worth repeating.
type ErrorClass string

const (
	// ErrorClassTransient indicates temporary failures that may resolve.
	// Examples: refused connections, 5xx responses, "try again later" replies.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassTerminal indicates failures that will not resolve by retrying.
	// Examples: 4xx responses, validation errors, timeouts.
	ErrorClassTerminal ErrorClass = "terminal"
)

// DefaultClassForCode returns the default class for an error code.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case CodeTransientNetwork:
		return ErrorClassTransient
	default:
		return ErrorClassTerminal
	}
}

// StatusError is a non-success HTTP response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("backend responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.StatusCode, body)
}

// tryAgainLater is the phrase a busy backend puts in its reply.
const tryAgainLater = "try again later"

// Classify decides whether err is transient or terminal. It returns "" for a nil error.
//
// Timeouts are terminal: the backend may have accepted a create whose reply
// was lost, and a retry would create the record twice.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTerminal
	}
	// The outermost structured error decides, so a RETRIES_EXHAUSTED error
	// stays terminal whatever its last cause was.
	var le *Error
	if errors.As(err, &le) && le.Class != "" {
		return le.Class
	}

	if errors.Is(err, ErrTransient) {
		return ErrorClassTransient
	}

	var se *StatusError
	if errors.As(err, &se) {
		if se.StatusCode >= 500 && se.StatusCode < 600 {
			return ErrorClassTransient
		}
		if strings.Contains(strings.ToLower(se.Body), tryAgainLater) {
			return ErrorClassTransient
		}
		return ErrorClassTerminal
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrorClassTerminal
		}
		return ErrorClassTransient
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrorClassTransient
	}

	if strings.Contains(strings.ToLower(err.Error()), tryAgainLater) {
		return ErrorClassTransient
	}
	return ErrorClassTerminal
}

// IsTransient reports whether Classify(err) is ErrorClassTransient.
func IsTransient(err error) bool {
	return Classify(err) == ErrorClassTransient
}
