package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so callers can branch on it.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindBookingConflict   Kind = "booking_conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindAlreadyFinalized  Kind = "already_finalized"
	KindTooLateToCancel   Kind = "too_late_to_cancel"
	KindNotFound          Kind = "not_found"
	KindPersistence       Kind = "persistence_error"
)

// Sentinels for errors.Is comparisons against a kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrBookingConflict   = &Error{Kind: KindBookingConflict}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrAlreadyFinalized  = &Error{Kind: KindAlreadyFinalized}
	ErrTooLateToCancel   = &Error{Kind: KindTooLateToCancel}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

// Error is the single error type returned by the booking engine.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works for every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return newf(KindBookingConflict, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newf(KindInvalidTransition, format, args...)
}

func AlreadyFinalized(format string, args ...any) error {
	return newf(KindAlreadyFinalized, format, args...)
}

func TooLateToCancel(format string, args ...any) error {
	return newf(KindTooLateToCancel, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

// Persistence wraps a store failure. Domain errors pass through unchanged so
// that a typed error raised inside a transaction keeps its kind.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// KindOf extracts the kind of err, or "" for foreign errors.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}
