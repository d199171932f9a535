package apperr

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine readable class of an error.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindSlotUnavailable Kind = "slot_unavailable"
	KindNotFound        Kind = "not_found"
	KindTransient       Kind = "transient_store_error"
	KindInternal        Kind = "internal_error"
)

// Error carries a Kind plus a human readable message.
// Two *Error values match under errors.Is when their kinds are equal, so a
// package level sentinel can be compared against any error of the same kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource string, err error) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first *Error in err's chain, or err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the operation that produced err may be retried as is.
func Retryable(err error) bool {
	return IsKind(err, KindTransient)
}
