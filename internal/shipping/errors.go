package shipping

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsMissing is returned when an account has no email or password.
	ErrCredentialsMissing = errors.New("shipping credentials missing")
	// ErrInvalidRequest is returned for arguments that can never form a valid provider call.
	ErrInvalidRequest = errors.New("invalid shipping request")
)

// AuthenticationError means the provider did not issue a token.
type AuthenticationError struct {
	StatusCode int    // 0 when no response was received
	Message    string // provider message, if any
	Err        error
}

func (e *AuthenticationError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("shipping authentication failed (status %d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("shipping authentication failed: %v", e.Err)
	default:
		return "shipping authentication failed: " + e.Message
	}
}

func (e *AuthenticationError) Unwrap() error { return e.Err }
