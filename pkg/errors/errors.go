// Package errors provides typed errors for the Facebook Marketing connector
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/nebula-fbmarketing/pkg/strings"
)

// ErrorType classifies an error so callers can decide whether to retry,
// surface or drop it.
type ErrorType string

const (
	// ErrorTypeInternal represents programming or invariant errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents invalid input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents a missing entity or stream
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeRateLimit represents Graph API throttling
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeTimeout represents request timeouts
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents transport failures
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeAuthentication represents an invalid or expired token
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypePermission represents missing ad account permissions
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeConfig represents invalid stream or connector configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents malformed records, cursors or responses
	ErrorTypeData ErrorType = "data"
	// ErrorTypeFile represents output file errors
	ErrorTypeFile ErrorType = "file"
)

// Error is a structured error with a type, optional cause and details
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the captured call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the same error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error of the given type with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message. It returns nil for a nil err.
// The stack of an already typed cause is preserved.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	wrapped := &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
	var existing *Error
	if errors.As(err, &existing) {
		wrapped.Stack = existing.Stack
	} else {
		wrapped.Stack = captureStack(2)
	}
	return wrapped
}

// TypeOf returns the type of the outermost typed error in the chain,
// or ErrorTypeInternal when err carries none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// IsRetryable reports whether the error is worth retrying
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeConnection:
		return true
	default:
		return false
	}
}

// IsType reports whether any typed error in the chain has errType
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]StackFrame, 0, n)
	for {
		frame, more := frames.Next()
		stack = append(stack, StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more {
			break
		}
	}
	return stack
}
