package errors

import (
	"errors"
	"fmt"
)

// Common error types for the ZhanCare client
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidResetCode   = errors.New("invalid reset code")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrMissingRefreshToken = errors.New("missing refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Session errors
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionChanged  = errors.New("session changed")
	ErrStorage         = errors.New("session storage failure")

	// Request errors
	ErrInvalidInput = errors.New("invalid input")
	ErrNoResponse   = errors.New("no response from server")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
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

// Join combines errors, skipping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
