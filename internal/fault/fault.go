// Package fault defines the pipeline's error taxonomy. Extraction-engine and
// persistence failures carry one of these codes to the caller so retry and
// display decisions can be made without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline failure.
type Code string

const (
	// CodeConfig: missing or invalid setup. Not retryable without operator action.
	CodeConfig Code = "CONFIG_ERROR"
	// CodeAuth: upstream rejected credentials. Not retryable without operator action.
	CodeAuth Code = "AUTH_ERROR"
	// CodeRateLimit: upstream quota exceeded. Retryable after backoff.
	CodeRateLimit Code = "RATE_LIMIT"
	// CodeValidation: malformed request. Not retryable without changing input.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNetwork: transport failure. Retryable.
	CodeNetwork Code = "NETWORK_ERROR"
	// CodeUnknown: catch-all. Always carries diagnostic detail.
	CodeUnknown Code = "UNKNOWN_ERROR"
)

// Retryable reports whether a failure with this code may succeed on retry
// without operator or caller intervention.
func (c Code) Retryable() bool {
	return c == CodeRateLimit || c == CodeNetwork
}

// Error is a classified pipeline failure.
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

// New creates a classified error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(code Code, err error, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain. Unclassified errors
// report CodeUnknown; nil reports the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeUnknown
}

// FromStatus maps an upstream HTTP status to a taxonomy code.
func FromStatus(status int) Code {
	switch {
	case status == 401 || status == 403:
		return CodeAuth
	case status == 429:
		return CodeRateLimit
	case status == 400 || status == 413 || status == 422:
		return CodeValidation
	case status == 408 || status >= 500:
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
