// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the error taxonomy shared by the domain services
// and the HTTP layer. Each error carries a Kind that maps to a status code;
// handlers translate errors at the boundary with Status and Message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindValidation       Kind = "validation"
	KindInvalidParameter Kind = "invalid_parameter"
	KindConflict         Kind = "conflict"
	KindRateLimited      Kind = "rate_limited"
	KindInternal         Kind = "internal"
)

// Error is an application error with a human-readable message. Details is
// an optional second line shown to API clients; Err is the wrapped cause
// and is never exposed except for internal errors.
type Error struct {
	Kind    Kind
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidParameter:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(msg string) *Error { return newError(KindUnauthorized, msg) }

// Forbidden reports an authenticated caller with an insufficient role.
func Forbidden(msg string) *Error { return newError(KindForbidden, msg) }

// NotFound reports an identifier that does not resolve.
func NotFound(msg string) *Error { return newError(KindNotFound, msg) }

// Validation reports malformed or missing input.
func Validation(msg, details string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// InvalidParameter reports a malformed query-string parameter.
func InvalidParameter(msg string) *Error { return newError(KindInvalidParameter, msg) }

// Conflict reports a unique-constraint violation.
func Conflict(msg string) *Error { return newError(KindConflict, msg) }

// RateLimited reports a client that exceeded its request budget.
func RateLimited(msg string) *Error { return newError(KindRateLimited, msg) }

// Internal wraps an unexpected store or runtime failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
