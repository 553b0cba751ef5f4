package shared

import (
	"github.com/samber/oops"
)

// Domain error codes
const (
	ErrCodeInvalidInput     = 1001
	ErrCodeNotFound         = 1002
	ErrCodeAlreadyExists    = 1003
	ErrCodeInvalidOperation = 1004

	// Account specific errors (2000-2999)
	ErrCodeUnknownAccountKey = 2001
	ErrCodeInvalidToken      = 2002

	// Preference specific errors (3000-3999)
	ErrCodeUnsupportedPreferenceKind = 3001
)

// NewDomainError creates a new domain error using oops
func NewDomainError(code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(message)
}

// NewDomainErrorf creates a new domain error with formatted message
func NewDomainErrorf(code int, format string, args ...interface{}) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Errorf(format, args...)
}

// WrapDomainError wraps an existing error with domain context
func WrapDomainError(err error, code int, message string) error {
	return oops.
		Code(codeToString(code)).
		In("domain").
		With("error_code", code).
		Wrapf(err, message)
}

// CodeOf returns the numeric domain code carried by err, or 0 if err is not a domain error.
func CodeOf(err error) int {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	code, ok := oopsErr.Context()["error_code"].(int)
	if !ok {
		return 0
	}
	return code
}

// IsCode reports whether err is a domain error with the given code
func IsCode(err error, code int) bool {
	return err != nil && CodeOf(err) == code
}

// codeToString converts int error code to string
func codeToString(code int) string {
	switch code {
	case ErrCodeInvalidInput:
		return "INVALID_INPUT"
	case ErrCodeNotFound:
		return "NOT_FOUND"
	case ErrCodeAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrCodeInvalidOperation:
		return "INVALID_OPERATION"
	case ErrCodeUnknownAccountKey:
		return "UNKNOWN_ACCOUNT_KEY"
	case ErrCodeInvalidToken:
		return "INVALID_TOKEN"
	case ErrCodeUnsupportedPreferenceKind:
		return "UNSUPPORTED_PREFERENCE_KIND"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Common domain error builders
func ErrInvalidInput(msg string) error {
	return NewDomainError(ErrCodeInvalidInput, msg)
}

func ErrNotFound(resource string) error {
	return NewDomainErrorf(ErrCodeNotFound, "%s not found", resource)
}

func ErrInvalidOperation(operation string) error {
	return NewDomainErrorf(ErrCodeInvalidOperation, "Invalid operation: %s", operation)
}

// ErrUnknownAccountKey reports a lookup of a key that was never registered.
func ErrUnknownAccountKey(key string) error {
	return oops.
		Code(codeToString(ErrCodeUnknownAccountKey)).
		In("domain").
		With("error_code", ErrCodeUnknownAccountKey).
		With("account_key", key).
		Errorf("The account key %q is not associated with a known account", key)
}

// ErrUnsupportedPreferenceKind reports a registered preference control that is not two-state.
func ErrUnsupportedPreferenceKind(prefKey, kind string) error {
	return oops.
		Code(codeToString(ErrCodeUnsupportedPreferenceKind)).
		In("domain").
		With("error_code", ErrCodeUnsupportedPreferenceKind).
		With("preference_key", prefKey).
		With("preference_kind", kind).
		Errorf("Adjustment for %s has not been implemented", kind)
}
