package errors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a wrapper around system errno codes, with a customizable error
// message. Errors derived from another with WithMessage or Wrap still match it
// with [errors.Is].
type DriverError interface {
	error
	Errno() Errno
	Unwrap() error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
}

type driverError struct {
	errno         Errno
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e *driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.errno)
}

func (e *driverError) Errno() Errno {
	return e.errno
}

func (e *driverError) Unwrap() error {
	return e.originalError
}

// WithMessage returns a new error with the same errno code, with `message`
// appended to this error's message.
func (e *driverError) WithMessage(message string) DriverError {
	return &driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

// Wrap returns a new error that matches both this error and `err`.
func (e *driverError) Wrap(err error) DriverError {
	return &driverError{
		errno:         e.errno,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// New creates a new [DriverError] with a default message derived from the
// system's error code.
func New(errnoCode Errno) DriverError {
	return &driverError{
		errno:   errnoCode,
		message: StrError(errnoCode),
	}
}

func NewFromError(errnoCode Errno, originalError error) DriverError {
	return New(errnoCode).Wrap(originalError)
}

// NewWithMessage creates a new DriverError from a system error code with a
// custom message. The message replaces the default one for the code.
func NewWithMessage(errnoCode Errno, message string) DriverError {
	return &driverError{
		errno:   errnoCode,
		message: message,
	}
}
