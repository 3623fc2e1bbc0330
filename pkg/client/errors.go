package client

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned when an operation requires a session and
// none could be established.
var ErrNotAuthenticated = errors.New("not authenticated")

// AuthenticationError indicates a login that could not establish a session:
// rejected credentials, a 401, or an unclassifiable login response.
type AuthenticationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// SessionError indicates an authenticated call that failed after the one
// permitted re-login retry. Response carries the triggering portal response
// when one was received, for diagnostics.
type SessionError struct {
	Message  string
	Response *Response
	Err      error
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	switch {
	case e.Response != nil && e.Err != nil:
		return fmt.Sprintf("session error: %s (status %d): %v", e.Message, e.Response.StatusCode, e.Err)
	case e.Response != nil:
		return fmt.Sprintf("session error: %s (status %d)", e.Message, e.Response.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("session error: %s: %v", e.Message, e.Err)
	default:
		return fmt.Sprintf("session error: %s", e.Message)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SessionError) Unwrap() error {
	return e.Err
}
