//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package common provides shared types and utilities used across the
// hub packages.
//
// # Error Handling
//
// The [OcpiError] type carries everything the HTTP boundary needs to render a
// failure: the error class, the HTTP status, the OCPI status_code and a
// human-readable reason.  Components return their own sentinel or structured
// errors; the hub converts them to OcpiError exactly once, at the edge.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// OCPI status codes.
const (
	StatusSuccess              = 1000
	StatusClientError          = 2000
	StatusInvalidParameters    = 2001
	StatusNotEnoughInfo        = 2002
	StatusUnknownLocation      = 2003
	StatusUnknownToken         = 2004
	StatusServerError          = 3000
	StatusUnableToUseClientAPI = 3001
)

// Class is the error taxonomy every failure is folded into.
type Class int

// Error classes.
const (
	ClassMalformed Class = iota + 1
	ClassUnauthorized
	ClassForbidden
	ClassNotFound
	ClassConflict
	ClassPatchFailure
	ClassPrecondition
	ClassNotAllowed
	ClassCancelled
	ClassInternal
)

var classNames = map[Class]string{
	ClassMalformed:    "malformed request",
	ClassUnauthorized: "unauthorized",
	ClassForbidden:    "forbidden",
	ClassNotFound:     "not found",
	ClassConflict:     "version conflict",
	ClassPatchFailure: "patch failure",
	ClassPrecondition: "precondition failed",
	ClassNotAllowed:   "method not allowed",
	ClassCancelled:    "request cancelled",
	ClassInternal:     "internal failure",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return fmt.Sprintf("class-%d", int(c))
}

// HTTPStatus returns the HTTP status a class maps to.
func (c Class) HTTPStatus() int {
	switch c {
	case ClassMalformed, ClassPatchFailure:
		return http.StatusBadRequest
	case ClassUnauthorized:
		return http.StatusUnauthorized
	case ClassForbidden:
		return http.StatusForbidden
	case ClassNotFound:
		return http.StatusNotFound
	case ClassConflict:
		return http.StatusConflict
	case ClassPrecondition:
		return http.StatusPreconditionFailed
	case ClassNotAllowed:
		return http.StatusMethodNotAllowed
	case ClassCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// OcpiError is a failure ready to be rendered as an OCPI response.
type OcpiError struct {
	Class      Class
	StatusCode int
	Reason     string
	// Cause is the underlying error, if any.  It never reaches the client.
	Cause error
}

// Error implements the error interface.
func (e *OcpiError) Error() string {
	return fmt.Sprintf("%s(code-%d): %s", e.Class, e.StatusCode, e.Reason)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *OcpiError) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status of the error's class.
func (e *OcpiError) HTTPStatus() int {
	return e.Class.HTTPStatus()
}

// NewError creates an [OcpiError] with the default status code of its class.
func NewError(class Class, msg string) *OcpiError {
	return &OcpiError{Class: class, StatusCode: defaultCode(class), Reason: msg}
}

// NewErrorWithCode creates an [OcpiError] carrying a specific OCPI status code,
// such as 2003 for an unknown location or 2004 for an unknown token.
func NewErrorWithCode(class Class, code int, msg string) *OcpiError {
	return &OcpiError{Class: class, StatusCode: code, Reason: msg}
}

// Cancelled reports a request abandoned by its caller before it was served.
func Cancelled(cause error) *OcpiError {
	return &OcpiError{Class: ClassCancelled, StatusCode: StatusClientError, Reason: "request cancelled", Cause: cause}
}

// Internal wraps an unexpected error as a generic server failure.
func Internal(cause error) *OcpiError {
	return &OcpiError{Class: ClassInternal, StatusCode: StatusServerError, Reason: "internal server error", Cause: cause}
}

func defaultCode(class Class) int {
	switch class {
	case ClassMalformed, ClassPatchFailure:
		return StatusInvalidParameters
	case ClassInternal:
		return StatusServerError
	default:
		return StatusClientError
	}
}

// AsOcpiError returns err as an [OcpiError], wrapping anything else as internal.
func AsOcpiError(err error) *OcpiError {
	var oe *OcpiError
	if errors.As(err, &oe) {
		return oe
	}
	return Internal(err)
}
