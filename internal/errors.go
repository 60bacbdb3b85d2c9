package internal

import (
	"errors"
	"net/http"
)

// Machine-readable error kinds carried by HTTPError.ErrorCode.
// Procedure calls made from loaders and actions report failures with one of
// these kinds; StatusFromErrorCode maps them to a response status.
const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeUnprocessable  = "UNPROCESSABLE_CONTENT"
	CodeTimeout        = "TIMEOUT"
	CodeInternal       = "INTERNAL_SERVER_ERROR"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

var errorCodeStatus = map[string]int{
	CodeBadRequest:     http.StatusBadRequest,
	CodeUnauthorized:   http.StatusUnauthorized,
	CodeForbidden:      http.StatusForbidden,
	CodeNotFound:       http.StatusNotFound,
	CodeConflict:       http.StatusConflict,
	CodeUnprocessable:  http.StatusUnprocessableEntity,
	CodeTimeout:        http.StatusGatewayTimeout,
	CodeInternal:       http.StatusInternalServerError,
	CodeNotImplemented: http.StatusNotImplemented,
}

// StatusFromErrorCode returns the HTTP status for a machine-readable error kind.
// Unknown kinds map to 500.
func StatusFromErrorCode(code string) int {
	if s, ok := errorCodeStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// HTTPError represents an HTTP error with all data needed for rendering.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to users).
	Err error

	// Message is the user-facing error message.
	Message string

	// Title is an optional title for the error (defaults derived from Code).
	Title string

	// Detail is an optional extended description.
	Detail string

	// ErrorCode is the machine-readable kind (UNAUTHORIZED, NOT_FOUND, ...).
	ErrorCode string

	// RequestID is the request tracking ID.
	RequestID string

	// Code is the HTTP status code (e.g., 404, 500).
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	e := &HTTPError{
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewCodedError creates an HTTPError from a machine-readable kind.
// The status code is derived with StatusFromErrorCode.
func NewCodedError(errorCode, message string, opts ...HTTPErrorOption) *HTTPError {
	e := NewHTTPError(StatusFromErrorCode(errorCode), message, opts...)
	e.ErrorCode = errorCode
	return e
}

// WithErrorTitle sets a short human-readable summary of the error.
func WithErrorTitle(title string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Title = title
	}
}

// WithDetail sets an explanation specific to this occurrence.
func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

// WithErrorCode sets the machine-readable error kind.
func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

// WithRequestID attaches the request ID for correlation with logs.
func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.RequestID = id
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, message, append([]HTTPErrorOption{WithErrorCode(CodeBadRequest)}, opts...)...)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, message, append([]HTTPErrorOption{WithErrorCode(CodeUnauthorized)}, opts...)...)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusForbidden, message, append([]HTTPErrorOption{WithErrorCode(CodeForbidden)}, opts...)...)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message, append([]HTTPErrorOption{WithErrorCode(CodeNotFound)}, opts...)...)
}

func ErrMethodNotAllowed(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusMethodNotAllowed, message, opts...)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusConflict, message, append([]HTTPErrorOption{WithErrorCode(CodeConflict)}, opts...)...)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusUnprocessableEntity, message, append([]HTTPErrorOption{WithErrorCode(CodeUnprocessable)}, opts...)...)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, message, append([]HTTPErrorOption{WithErrorCode(CodeInternal)}, opts...)...)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(http.StatusServiceUnavailable, message, opts...)
}

// Helper functions for error inspection.

func IsHTTPError(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr)
}

// AsHTTPError extracts the HTTPError from an error chain if present.
// Returns nil if there is none.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}
