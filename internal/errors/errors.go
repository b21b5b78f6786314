package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth client
var (
	// Session errors
	ErrNoSession      = errors.New("no session")
	ErrNoIDToken      = errors.New("session has no id token")
	ErrNoRefreshToken = errors.New("session has no refresh token")
	ErrCorruptSession = errors.New("stored session is corrupted")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")

	// Provider errors
	ErrInvalidResponse   = errors.New("invalid provider response")
	ErrChallengeRequired = errors.New("authentication challenge required")
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
