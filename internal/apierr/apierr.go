// Package apierr names the error kinds the HTTP layer maps to status
// codes (spec §7), so the service layer can return a plain wrapped error
// and let the transport decide the status.
package apierr

import "errors"

// NotFound wraps err as a not-found condition (maps to HTTP 404).
func NotFound(err error) error { return &kindError{kind: kindNotFound, err: err} }

// BadRequest wraps err as a client input error (maps to HTTP 400).
func BadRequest(err error) error { return &kindError{kind: kindBadRequest, err: err} }

// Upstream wraps err as an external-dependency failure (maps to HTTP 5xx).
func Upstream(err error) error { return &kindError{kind: kindUpstream, err: err} }

type kind int

const (
	kindNotFound kind = iota
	kindBadRequest
	kindUpstream
)

type kindError struct {
	kind kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// IsNotFound reports whether err (or something it wraps) is a NotFound.
func IsNotFound(err error) bool { return hasKind(err, kindNotFound) }

// IsBadRequest reports whether err (or something it wraps) is a BadRequest.
func IsBadRequest(err error) bool { return hasKind(err, kindBadRequest) }

// IsUpstream reports whether err (or something it wraps) is an Upstream failure.
func IsUpstream(err error) bool { return hasKind(err, kindUpstream) }

func hasKind(err error, k kind) bool {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind == k
	}
	return false
}
