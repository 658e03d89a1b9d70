package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Decode errors. Every primitive failure maps to exactly one of these and is
// reachable through errors.Is regardless of how much field context wraps it.
var (
	ErrTruncated            = errors.New("wire: truncated input")
	ErrOverflow             = errors.New("wire: varint overflows 64 bits")
	ErrInvalidWireType      = errors.New("wire: invalid wire type")
	ErrInvalidFieldNumber   = errors.New("wire: invalid field number")
	ErrInvalidUTF8          = errors.New("wire: string field contains invalid UTF-8")
	ErrMissingRequiredField = errors.New("wire: required field not set")
	ErrRecursionLimit       = errors.New("wire: exceeded maximum nesting depth")
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["order", "items", "price"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at proto path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility.
func (e *FieldError) Is(target error) bool {
	_, ok := target.(*FieldError)
	return ok
}

// wrapWithField wraps an error with a field name
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	if fe, ok := err.(*FieldError); ok {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}

// missingRequired builds the error reported after a decode pass that never saw
// a required field.
func missingRequired(message, field string) error {
	return &FieldError{
		FieldPath: []string{field},
		Err:       fmt.Errorf("%w: %s.%s", ErrMissingRequiredField, message, field),
	}
}
