// Package domainerrors defines coded errors that cross the service boundary.
//
// Services return these (or wrap sentinel infra errors into them) and the HTTP
// layer translates the code into a status via ToHTTPStatus. Policy rejections
// are NOT errors, they are outcome values; this package is for faults and
// caller mistakes only.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of failure in a transport-independent way.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeUpstream     Code = "upstream_unavailable"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error with an operator-facing description.
type Error struct {
	Code        Code
	Description string
	cause       error
}

// New builds a domain error with no underlying cause.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Wrap attaches a cause so errors.Is/As keep working through the boundary.
func Wrap(code Code, description string, cause error) *Error {
	return &Error{Code: code, Description: description, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the code from err, defaulting to CodeInternal for anything
// that is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DescriptionOf returns the safe description for err, empty for non-domain
// errors so internals never leak to clients.
func DescriptionOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Description
	}
	return ""
}

// ToHTTPStatus maps a code onto the HTTP status the transport should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
