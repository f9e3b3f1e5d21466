package common

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with fmt.Errorf("...: %w", ErrX) and test with IsKind.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrValidation       = errors.New("validation failed")
)

// DecisionError is a terminal, user-visible denial. Kind is ErrPermissionDenied or ErrConflict.
type DecisionError struct {
	Kind   error
	Reason string
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *DecisionError) Unwrap() error {
	return e.Kind
}

func Denied(reason string) error {
	return &DecisionError{Kind: ErrPermissionDenied, Reason: reason}
}

func Conflict(reason string) error {
	return &DecisionError{Kind: ErrConflict, Reason: reason}
}

func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}

func AsDecision(err error, target **DecisionError) bool {
	return errors.As(err, target)
}
