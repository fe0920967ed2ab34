// Package apperror holds the error taxonomy shared by the domain, storage and HTTP layers.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is returned by callers that derive a failed login from a false verify.
	ErrAuthentication = errors.New("authentication failed")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrForbidden      = errors.New("forbidden")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConfigurationError is fatal at startup; it is never meant to be handled per request.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Key, e.Message)
}

func Configuration(key, message string) *ConfigurationError {
	return &ConfigurationError{Key: key, Message: message}
}

// InternalError wraps a failure of a hashing or signing primitive.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func Internal(op string, err error) *InternalError {
	return &InternalError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
