package errors

import (
	"errors"
	"fmt"
)

// Common error types for the GRC client
var (
	// Session errors
	ErrLoggingOut       = errors.New("logout in progress")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginFailed      = errors.New("login failed")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrRefreshFailed    = errors.New("token refresh failed")

	// Response errors
	ErrInvalidResponse = errors.New("invalid response")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
