package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrUnknownOperation      = errors.New("unknown gateway operation")
	ErrSessionNotFound       = errors.New("session not found")
	ErrStepClosed            = errors.New("workflow is complete")
	ErrStepMismatch          = errors.New("input does not belong to current step")
	ErrStepInFlight          = errors.New("step computation already in progress")
	ErrSessionReset          = errors.New("session was reset")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FieldError names the offending input field of a malformed-input rejection.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidField builds an ErrInvalidInput error carrying a FieldError.
func InvalidField(operation, field, message string) error {
	return WrapError(ErrInvalidInput, operation, &FieldError{Field: field, Message: message})
}
