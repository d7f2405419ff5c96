// Package faults defines the error kinds shared by the auction and routing
// components. Callers branch on the kind, not on error text.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	// Unknown marks errors that carry no kind.
	Unknown Kind = iota
	// NotFound: a referenced request, auction, volunteer or point is missing.
	NotFound
	// Conflict: an active auction already exists for the pickup request.
	Conflict
	// InvalidState: operating on a non-active or expired auction.
	InvalidState
	// InvalidInput: malformed location text, accepted bid without coordinates.
	InvalidInput
	// Unavailable: an upstream collaborator failed. Absorbed by the travel
	// layer, surfaced only by storage.
	Unavailable
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case InvalidState:
		return "invalid_state"
	case InvalidInput:
		return "invalid_input"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// Error pairs a message with a Kind.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// New builds an error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Errorf builds an error of the given kind with a formatted message.
// A trailing %w verb wraps the cause as usual.
func Errorf(kind Kind, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{kind: kind, msg: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

// KindOf extracts the Kind of err, or Unknown for foreign errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
