// Package novaerr defines the error kinds surfaced to the request/response
// facade, per Interface-Pack §7 (error handling design).
//
// Recoverable, expected outcomes (Duplicate, Cancelled) are returned
// silently to callers; defensive invariants (ValidationError,
// EventIdMismatch) are logged at warning and returned; store errors are
// logged at error and the transaction is rolled back before surfacing.
package novaerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error categories callers branch on.
type Kind string

const (
	KindValidation    Kind = "ValidationError"
	KindEventIDMismatch Kind = "EventIdMismatch"
	KindDuplicate     Kind = "Duplicate"
	KindStore         Kind = "StoreError"
	KindReplayBlocked Kind = "CommandsBlockedInReplay"
	KindUnknownType   Kind = "UnknownRequestType"
	KindUnknownTarget Kind = "UnknownTarget"
	KindCancelled     Kind = "Cancelled"
)

// Error is the typed error value returned across package boundaries and
// serialized onto the facade's {error, details} wire shape.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, novaerr.Duplicate) style sentinel matching by
// comparing Kind, not identity.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is comparisons where no extra message is needed.
var (
	Duplicate     = New(KindDuplicate, "duplicate event")
	Cancelled     = New(KindCancelled, "operation cancelled")
	ReplayBlocked = New(KindReplayBlocked, "commands are blocked while the facade is in replay mode")
)

// Validation builds a ValidationError with a formatted message.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// EventIDMismatch builds an EventIdMismatch error naming both hashes.
func EventIDMismatch(expected, got string) *Error {
	return New(KindEventIDMismatch, fmt.Sprintf("expected eventId %s, got %s", expected, got))
}

// Store wraps an underlying storage error.
func Store(message string, err error) *Error {
	return Wrap(KindStore, message, err)
}

// UnknownRequestType builds an UnknownRequestType error naming the type.
func UnknownRequestType(requestType string) *Error {
	return New(KindUnknownType, fmt.Sprintf("unknown request type %q", requestType))
}

// UnknownTarget builds an UnknownTarget error naming the target.
func UnknownTarget(target string) *Error {
	return New(KindUnknownTarget, fmt.Sprintf("unknown target %q", target))
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
