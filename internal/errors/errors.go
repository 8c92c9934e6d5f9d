package errors

import (
	"errors"
	"fmt"
)

// Common error types for the workspace
var (
	// Session errors
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrNoRefreshToken    = errors.New("no refresh token")
	ErrRefreshRejected   = errors.New("refresh rejected")
	ErrNotAuthenticated  = errors.New("session is not authenticated")
	ErrInvalidTokenReply = errors.New("invalid token payload")

	// API errors
	ErrRateLimited       = errors.New("rate limited")
	ErrTransient         = errors.New("transient failure")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrContractViolation = errors.New("response contract violation")
	ErrRequestFailed     = errors.New("request failed")

	// Configuration errors
	ErrNotConfigured = errors.New("not configured")

	// Redirect errors
	ErrInvalidRedirect = errors.New("invalid redirect target")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
