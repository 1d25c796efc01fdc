package models

import "errors"

// Store level errors
var (
	ErrFileNotFound = errors.New("File not found")
	ErrUserNotFound = errors.New("User not found")
	ErrUserExists   = errors.New("User exists")
	ErrCacheMiss    = errors.New("cache miss")
)

// Errors that cross the service boundary
var (
	ErrUnauthorized = errors.New("Unauthorized")
	ErrNotFound     = errors.New("Not found")
)

// ValidationError is a client mistake reported back verbatim
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// IsValidation reports whether err carries a ValidationError and returns its message
func IsValidation(err error) (string, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Msg, true
	}
	return "", false
}
