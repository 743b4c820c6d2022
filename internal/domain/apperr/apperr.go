// Package apperr classifies failures into the small set of kinds the portal
// surfaces to users. Domain packages keep their own sentinel errors; callers
// wrap them with a kind on the way out so both errors.Is on the sentinel and
// KindOf on the result work.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the user-facing classification of a failure.
type Kind string

const (
	KindCredential      Kind = "credential"
	KindValidation      Kind = "validation"
	KindDuplicateSignup Kind = "duplicate_signup"
	KindStore           Kind = "store"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindBusy            Kind = "busy"
)

// Sentinel errors shared across packages.
var (
	ErrDuplicateSignup = errors.New("you are already signed up for this shift")
	ErrBusy            = errors.New("another request is still in progress")
	ErrNotFound        = errors.New("record not found")
)

// Error carries a Kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns the cause's message; store messages pass through verbatim.
func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) && existing.Kind == kind {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Credential marks err as a bad-login or bad-signup credential failure.
func Credential(err error) error { return wrap(KindCredential, err) }

// Validation marks err as a rejected input.
func Validation(err error) error { return wrap(KindValidation, err) }

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// Store marks err as a failed call to the backing store.
func Store(err error) error { return wrap(KindStore, err) }

// Forbidden marks err as an authorization failure.
func Forbidden(err error) error { return wrap(KindForbidden, err) }

// NotFound marks err as a missing record.
func NotFound(err error) error { return wrap(KindNotFound, err) }

// Duplicate marks err as a duplicate signup.
func Duplicate(err error) error { return wrap(KindDuplicateSignup, err) }

// Busy marks err as rejected because another request is in flight.
func Busy(err error) error { return wrap(KindBusy, err) }

// KindOf returns the outermost Kind attached to err. Errors without a kind
// are reported as KindStore, since anything unclassified came from a remote call.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
