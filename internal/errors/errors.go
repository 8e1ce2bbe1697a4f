// Package errors provides structured error types and exit codes for testbench.
//
// Individual unit and session failures are never reported through this
// package: they are recorded as data (model.TestOutcome, model.LoadSessionResult).
// Only failures that prevent a run from producing a result use these types.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Exit codes returned by the testbench CLI.
const (
	ExitSuccess          = 0 // Success (including runs with failed tests)
	ExitRuntimeError     = 1 // Engine failed to run
	ExitConfigError      = 2 // Invalid configuration or unknown category
	ExitEnvironmentError = 3 // Units could not be resolved, store unavailable, etc.
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindEnvironment
	KindEmptyInput
)

// String returns the lowercase name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindEnvironment:
		return "environment"
	case KindEmptyInput:
		return "empty_input"
	default:
		return "runtime"
	}
}

// Error is the base error type for testbench.
type Error struct {
	Kind     ErrorKind
	Message  string
	Category string // Test category if applicable
	Cause    error  // Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Category != "" {
		msg = fmt.Sprintf("[%s] %s", e.Category, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *Error {
	return &Error{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *Error {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *Error {
	return &Error{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *Error {
	return Config(fmt.Sprintf(format, args...))
}

// Environment creates a new environment error.
func Environment(message string) *Error {
	return &Error{
		Kind:    KindEnvironment,
		Message: message,
	}
}

// Environmentf creates a new environment error with formatting.
func Environmentf(format string, args ...interface{}) *Error {
	return Environment(fmt.Sprintf(format, args...))
}

// Validationf creates a new validation error with formatting.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// EmptyInput creates an error for a statistic requested on no data.
func EmptyInput(what string) *Error {
	return &Error{
		Kind:    KindEmptyInput,
		Message: fmt.Sprintf("%s: input must not be empty", what),
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *Error {
	return &Error{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// WrapKind wraps an error with a specific kind.
func WrapKind(kind ErrorKind, err error, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   err,
	}
}

// UnknownCategory creates the error returned when a requested category is not configured.
func UnknownCategory(name string) *Error {
	return &Error{
		Kind:     KindConfig,
		Category: name,
		Message:  "category is not configured",
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// Is reports whether err is or wraps an *Error of the given kind.
func Is(err error, kind ErrorKind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	return Is(err, KindConfig) || Is(err, KindValidation)
}

// IsEmptyInput reports whether err signals a statistic computed on no data.
func IsEmptyInput(err error) bool {
	return Is(err, KindEmptyInput)
}

// GetExitCode returns the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.ExitCode()
	}
	return ExitRuntimeError
}
