package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers absent, disabled and expired links alike.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a unique key (slug) is already taken.
	ErrConflict = errors.New("conflict")
	// ErrAllocationExhausted means every generated slug collided.
	ErrAllocationExhausted = errors.New("could not allocate a unique slug")
)

// ValidationError rejects caller input. Message is safe to show to clients.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
