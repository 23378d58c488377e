// Package mcperr provides the closed error-code taxonomy of spec §4.1/§7
// as a typed, wrappable error, mirroring the teacher's internal/common/errors
// AppError shape but keyed on the bus's own error codes instead of HTTP
// status codes.
package mcperr

import (
	"errors"
	"fmt"
)

// Code is one of the seventeen closed error codes.
type Code string

const (
	InvalidMessageFormat  Code = "invalid-message-format"
	InvalidTaskType       Code = "invalid-task-type"
	InvalidParameters     Code = "invalid-parameters"
	InsufficientBudget    Code = "insufficient-budget"
	ResourceLimitExceeded Code = "resource-limit-exceeded"
	AgentUnavailable      Code = "agent-unavailable"
	QueueFull             Code = "queue-full"
	TaskTimeout           Code = "task-timeout"
	TaskCancelled         Code = "task-cancelled"
	AgentError            Code = "agent-error"
	NetworkError          Code = "network-error"
	AuthenticationFailed  Code = "authentication-failed"
	AuthorizationFailed   Code = "authorization-failed"
	RateLimitExceeded     Code = "rate-limit-exceeded"
	InternalError         Code = "internal-error"
	ServiceUnavailable    Code = "service-unavailable"
	ConfigurationError    Code = "configuration-error"
)

// Taxonomy groups, per spec §7: validation, capacity, routing, execution,
// infrastructure. Not enforced at runtime; documented for callers deciding
// how to log/propagate a given Code.
var Taxonomy = map[Code]string{
	InvalidMessageFormat:  "validation",
	InvalidTaskType:       "validation",
	InvalidParameters:     "validation",
	QueueFull:             "capacity",
	RateLimitExceeded:     "capacity",
	ResourceLimitExceeded: "capacity",
	InsufficientBudget:    "capacity",
	AgentUnavailable:      "routing",
	AuthorizationFailed:   "routing",
	AuthenticationFailed:  "routing",
	TaskTimeout:           "execution",
	TaskCancelled:         "execution",
	AgentError:            "execution",
	NetworkError:          "execution",
	InternalError:         "infrastructure",
	ServiceUnavailable:    "infrastructure",
	ConfigurationError:    "infrastructure",
}

// Error is the bus's wrappable error type.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given code, preserving the code
// of an already-wrapped *Error if one is found in the chain.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	var inner *Error
	if errors.As(err, &inner) {
		return &Error{Code: inner.Code, Message: fmt.Sprintf("%s: %s", message, inner.Message), Err: err}
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, defaulting to InternalError.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}
