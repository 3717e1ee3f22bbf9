// Package cerrors defines the error taxonomy the HTTP facade dispatches on,
// mapping each kind to the status code it must answer with.
package cerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories the facade recognizes.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindUpstream     Kind = "upstream"
	KindInternal     Kind = "internal"
)

// Error is a typed, wrapped error carrying the kind the facade dispatches on.
type Error struct {
	Kind       Kind
	Operation  string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Operation)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *Error) Unwrap() error { return e.Underlying }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Operation: op, Underlying: err}
}

// NotFound wraps a "file or directory absent in package" failure.
func NotFound(op string, err error) *Error { return newErr(KindNotFound, op, err) }

// BadRequest wraps a range-query-on-binary-file or malformed-regex failure.
func BadRequest(op string, err error) *Error { return newErr(KindBadRequest, op, err) }

// Unauthorized wraps a failed Basic Auth check.
func Unauthorized(op string, err error) *Error { return newErr(KindUnauthorized, op, err) }

// Upstream wraps a non-2xx response from the archive host or external service.
func Upstream(op string, err error) *Error { return newErr(KindUpstream, op, err) }

// Internal wraps a tar-open, decompression, or blocking-worker failure.
func Internal(op string, err error) *Error { return newErr(KindInternal, op, err) }

// As reports the Kind of err if it is (or wraps) a *Error, defaulting to
// KindInternal for anything else so the facade always has a status to return.
func As(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}
