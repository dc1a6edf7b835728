// Package errs defines the error kinds shared by the store, the ledger and the lending engine.
// Each kind maps to one HTTP status and one machine-readable code in response bodies.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindOutOfStock Kind = "out_of_stock"
	KindInvariant  Kind = "invariant_violation"
	KindInternal   Kind = "internal_error"
)

var (
	// ErrValidation matches any malformed or out-of-range input.
	ErrValidation = &Error{Kind: KindValidation}

	// ErrNotFound matches any unknown id reference.
	ErrNotFound = &Error{Kind: KindNotFound}

	// ErrConflict matches duplicate unique fields, double borrow, double return and guarded deletes.
	ErrConflict = &Error{Kind: KindConflict}

	// ErrOutOfStock matches a borrow against a book with no copies left.
	ErrOutOfStock = &Error{Kind: KindOutOfStock}

	// ErrInvariantViolation matches a detected break of the copy accounting.
	ErrInvariantViolation = &Error{Kind: KindInvariant}
)

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a validation error.
func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }

// NotFound returns a not-found error.
func NotFound(format string, args ...any) error { return newf(KindNotFound, format, args...) }

// Conflict returns a conflict error.
func Conflict(format string, args ...any) error { return newf(KindConflict, format, args...) }

// OutOfStock returns an out-of-stock error.
func OutOfStock(format string, args ...any) error { return newf(KindOutOfStock, format, args...) }

// InvariantViolation returns an invariant violation.
func InvariantViolation(format string, args ...any) error {
	return newf(KindInvariant, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}
