package models

import "github.com/go-faster/errors"

var (
	// ErrNotFound is returned when a group (or other entity) reference does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is returned when a user reference does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidOrganization is returned when an organization reference does not resolve.
	ErrInvalidOrganization = errors.New("invalid organization")
)

// ValidationError represents malformed input, such as an empty name or a bad origin
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
