// Package dErrors provides coded domain errors shared across services.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate those into coded domain errors so
// transports can map them to status codes without inspecting error strings.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error classification.
type Code string

const (
	// CodeInvalidInput marks input-rejection errors: missing file, wrong
	// file kind, quality too low, unparseable fields. Never retried
	// automatically; the message carries a remediation hint for the user.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest marks malformed requests (bad JSON, missing params).
	CodeBadRequest Code = "bad_request"

	// CodeUnauthorized marks missing or invalid caller identity.
	CodeUnauthorized Code = "unauthorized"

	// CodeNotFound marks lookups for entities that do not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks state conflicts (duplicate submission races).
	CodeConflict Code = "conflict"

	// CodePreconditionFailed marks submission preconditions that the caller
	// can still remedy: missing ID document, missing selfie, verification
	// already completed.
	CodePreconditionFailed Code = "precondition_failed"

	// CodeRetryExhausted marks operations rejected because the retry chain
	// has consumed its attempt budget. Unlike CodePreconditionFailed the
	// caller cannot remedy this on the same chain.
	CodeRetryExhausted Code = "retry_exhausted"

	// CodeUnavailable marks exhaustion of every provider in a fallback
	// chain, or an unreachable collaborator.
	CodeUnavailable Code = "unavailable"

	// CodeInternal marks unexpected failures. Descriptions are not exposed
	// over HTTP for this code.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Message is safe to surface to callers for
// every code except CodeInternal.
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

// New constructs a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted caller-facing message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the chain for
// errors.Is/As. Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// MessageOf extracts the caller-facing message from err, or an empty string.
func MessageOf(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// Retryable reports whether the caller may retry the operation that produced
// err on the same verification chain.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodePreconditionFailed, CodeUnavailable:
		return true
	}
	return false
}

// HTTPStatus maps a code to its transport status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodePreconditionFailed:
		return http.StatusUnprocessableEntity
	case CodeRetryExhausted:
		return http.StatusTooManyRequests
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
