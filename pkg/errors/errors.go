// Package errors defines the coded error type every service layer returns.
// A Code carries enough metadata for the HTTP boundary to render a response
// without the handler inspecting error strings.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and retry decisions.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeTimeout       Code = "TIMEOUT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a Code surfaces at the HTTP boundary.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, retryable, details bool, msg string) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: msg, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, true, "validation failed"),
	CodeUnauthorized:  meta(http.StatusUnauthorized, false, false, "authentication required"),
	CodeForbidden:     meta(http.StatusForbidden, false, false, "access denied"),
	CodeNotFound:      meta(http.StatusNotFound, false, false, "resource not found"),
	CodeConflict:      meta(http.StatusConflict, false, true, "conflict detected"),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, true, "state transition disallowed"),
	CodeIdempotency:   meta(http.StatusConflict, false, true, "idempotency key reused"),
	CodeTimeout:       meta(http.StatusGatewayTimeout, true, false, "operation timed out; re-query before retrying"),
	CodeInternal:      meta(http.StatusInternalServerError, true, false, "internal server error"),
	CodeDependency:    meta(http.StatusServiceUnavailable, true, true, "dependency unavailable"),
}

// MetadataFor resolves transport metadata for a code. Unknown codes fall back
// to the internal-error metadata.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is the coded error carried across layer boundaries. The message is
// operator-facing; the public message comes from the code's metadata.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

// New builds an Error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// As extracts the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Code returns the classification; a nil receiver reads as internal.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches structured details rendered to clients when the
// code's metadata allows it.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}
