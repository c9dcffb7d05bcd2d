package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Continuity error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	ErrShotNotFound        ErrorCode = "SHOT_NOT_FOUND"
	ErrVersionMismatch     ErrorCode = "VERSION_MISMATCH"
	ErrUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	ErrAnchorUnresolved    ErrorCode = "ANCHOR_UNRESOLVED"
	ErrProviderError       ErrorCode = "PROVIDER_ERROR"
	ErrProxyNotReady       ErrorCode = "PROXY_NOT_READY"
	ErrStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// VersionMismatchError is returned when a versioned save presents a stale
// version. It names the session and both version numbers so callers can
// reconcile or surface the conflict.
type VersionMismatchError struct {
	SessionID       string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("version mismatch for session %s: expected %d, stored %d",
		e.SessionID, e.ExpectedVersion, e.ActualVersion)
}

// IsVersionMismatch reports whether err is a VersionMismatchError.
func IsVersionMismatch(err error) bool {
	var vm *VersionMismatchError
	return errors.As(err, &vm)
}

// UnsupportedProviderError is returned when a (provider, model) pair supports
// no continuity mechanism at all.
type UnsupportedProviderError struct {
	Provider string
	ModelID  string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("provider %s (model %s) supports no continuity mechanism", e.Provider, e.ModelID)
}

// IsUnsupportedProvider reports whether err is an UnsupportedProviderError.
func IsUnsupportedProvider(err error) bool {
	var up *UnsupportedProviderError
	return errors.As(err, &up)
}
