// Package apierror defines the gateway error taxonomy shared by the core and
// the transports.
package apierror

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

// Error kinds.
const (
	KindConfiguration         Kind = "ConfigurationError"
	KindSessionSetupFailed    Kind = "SessionSetupFailed"
	KindConnectionUnavailable Kind = "ConnectionUnavailable"
	KindQueryError            Kind = "QueryError"
	KindUnknownExecution      Kind = "UnknownExecutionError"
	KindInvalidRequest        Kind = "InvalidRequest"
)

// Sentinels for errors.Is checks. Matching is by kind only.
var (
	ErrConfiguration         = &Error{Kind: KindConfiguration}
	ErrSessionSetupFailed    = &Error{Kind: KindSessionSetupFailed}
	ErrConnectionUnavailable = &Error{Kind: KindConnectionUnavailable}
	ErrQueryError            = &Error{Kind: KindQueryError}
	ErrUnknownExecution      = &Error{Kind: KindUnknownExecution}
	ErrInvalidRequest        = &Error{Kind: KindInvalidRequest}
)

// Error is a classified gateway error.
type Error struct {
	Kind    Kind
	Code    string // database-native error code, QueryError only
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap wraps err with the given kind and message.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewConfigurationError reports a missing or empty configuration value.
func NewConfigurationError(key string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("required configuration value %s is missing or empty", key),
	}
}

// NewSessionSetupFailed wraps a failure while configuring session context.
func NewSessionSetupFailed(step string, err error) *Error {
	return &Error{
		Kind:    KindSessionSetupFailed,
		Message: fmt.Sprintf("session setup failed at %q", step),
		Err:     err,
	}
}

// NewConnectionUnavailable wraps a failure to (re)establish the connection.
func NewConnectionUnavailable(err error) *Error {
	return &Error{
		Kind:    KindConnectionUnavailable,
		Message: "connection could not be established",
		Err:     err,
	}
}

// NewQueryError wraps an error reported by the database.
func NewQueryError(code string, err error) *Error {
	return &Error{Kind: KindQueryError, Code: code, Err: err}
}

// NewUnknownExecutionError wraps an unexpected execution failure.
func NewUnknownExecutionError(err error) *Error {
	return &Error{Kind: KindUnknownExecution, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknownExecution when err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknownExecution
}

// CodeOf returns the first database-native code found in err's chain.
func CodeOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}
		if e.Code != "" {
			return e.Code
		}
		err = e.Err
	}
	return ""
}

// ErrorResponse is the JSON body returned by the HTTP transport on failure.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
	Code    string `json:"code,omitempty"`
}

// ToResponse converts the error to an ErrorResponse.
func (e *Error) ToResponse() *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Message: e.Error(),
		Kind:    e.Kind,
		Code:    e.Code,
	}
}

// FromError converts any error to an *Error. A nil error returns nil and an
// unclassified error becomes UnknownExecutionError.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewUnknownExecutionError(err)
}
