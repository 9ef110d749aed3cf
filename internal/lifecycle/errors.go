package lifecycle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrCorrectiveActionRequired = errors.New("corrective action is required to close a deviation")
	ErrMissingMandatory         = errors.New("mandatory fields are missing")
	ErrFrozen                   = errors.New("record is frozen")
	ErrReasonRequired           = errors.New("rejection reason is required")
	ErrActorRequired            = errors.New("acting user is required")
	ErrInvalidValue             = errors.New("invalid value")
	ErrDuplicate                = errors.New("duplicate record")
)

// ValidationError is a caller-facing rejection of an operation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for field wrapping err.
func Invalid(field string, err error, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
