package floorplan

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed or rejected request. It is always
// raised before any mutation takes effect, so a batch that produces one
// leaves the store untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// validationf builds a ValidationError with a formatted message.
func validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// fieldError builds a ValidationError tied to a named request field.
func fieldError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
