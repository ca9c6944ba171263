// Package apperr defines the machine-readable error kinds surfaced by the analytics core.
// Handlers map a Kind to a transport status; services return *Error values or wrap them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a recoverable failure.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindForbidden       Kind = "forbidden"
	KindPaymentRequired Kind = "payment_required"
	KindInternal        Kind = "internal"
)

// Sentinel errors for errors.Is checks against a kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrPaymentRequired = &Error{Kind: KindPaymentRequired}
)

// Error is a kinded error with an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind. Sentinels carry only a kind,
// so errors.Is(err, apperr.ErrNotFound) matches any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound returns a not-found error with a formatted message.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Validation returns a validation error with a formatted message.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Forbidden returns a forbidden error with a formatted message.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// PaymentRequired returns a payment-required error with a formatted message.
func PaymentRequired(format string, args ...any) error {
	return &Error{Kind: KindPaymentRequired, Msg: fmt.Sprintf(format, args...)}
}

// Internal wraps err as an internal failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
