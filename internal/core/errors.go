// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrSymbolNotFound   = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrNoData           = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for analysis"}

	// Collector errors
	ErrCollectorFailed  = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}
	ErrCollectorTimeout = &Error{Code: "COLLECTOR_TIMEOUT", Message: "collector timeout"}

	// Broker errors
	ErrAccountUnavailable = &Error{Code: "ACCOUNT_UNAVAILABLE", Message: "account information unavailable"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrJobNotFound    = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrAlertNotFound  = &Error{Code: "ALERT_NOT_FOUND", Message: "alert not found"}
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
)
