package reservation

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the reservation service.
var (
	ErrBookNotFound         = errors.New("book not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrDuplicateReservation = errors.New("active reservation already exists")
	ErrPermissionDenied     = errors.New("reservation owned by another user")
	ErrReservationClosed    = errors.New("reservation closed")
	ErrInvariantViolation   = errors.New("invariant violation")
	ErrTransientStore       = errors.New("transient store failure")

	ErrInvalidUserID            = errors.New("invalid user id")
	ErrInvalidBookID            = errors.New("invalid book id")
	ErrInvalidReservationID     = errors.New("invalid reservation id")
	ErrInvalidQueuePosition     = errors.New("invalid queue position")
	ErrInvalidReservationStatus = errors.New("invalid reservation status")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrInvalidServiceConfig     = errors.New("invalid service config")
)

// IsTransient reports whether err is a retryable store failure
// (lock timeout, deadlock, serialization conflict).
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
