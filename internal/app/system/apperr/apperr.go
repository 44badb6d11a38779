// Package apperr defines the error taxonomy shared by every domain operation.
//
// Domain code returns *Error values for failures it can classify. Anything
// else is treated as Internal at the HTTP boundary, where the cause is logged
// but never shown to the caller.
package apperr

import (
	"errors"
	"fmt"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/mongo"
)

// Code is a stable error category.
type Code string

const (
	Validation     Code = "validation"
	Authentication Code = "authentication"
	Authorization  Code = "authorization"
	NotFound       Code = "not_found"
	Conflict       Code = "conflict"
	Internal       Code = "internal"
)

// Error carries a category, a caller-safe message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Convenience constructors.
func Invalid(message string) *Error { return New(Validation, message) }
func Unauthenticated(message string) *Error { return New(Authentication, message) }
func Forbidden(message string) *Error { return New(Authorization, message) }
func Missing(message string) *Error { return New(NotFound, message) }
func Conflicting(message string) *Error { return New(Conflict, message) }

// CodeOf returns the category of err. Errors that are not *Error are
// classified by Classify.
func CodeOf(err error) Code {
	return Classify(err).Code
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// Classify turns any error into an *Error. Already classified errors are
// returned as-is; mongo.ErrNoDocuments becomes NotFound; duplicate key
// errors become Conflict; everything else becomes Internal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Wrap(err, NotFound, "not found")
	}
	if wafflemongo.IsDup(err) {
		return Wrap(err, Conflict, "duplicate record")
	}
	return Wrap(err, Internal, "internal server error")
}
