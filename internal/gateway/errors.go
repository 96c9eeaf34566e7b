package gateway

import (
	"errors"
	"fmt"
)

// ErrSessionExpired means the access token could not be renewed. The
// session has been ended and the user must sign in again.
var ErrSessionExpired = errors.New("session expired")

// AuthError is returned when a request fails authorization for good:
// either refresh was not attempted or the replayed request was rejected
// again.
type AuthError struct {
	Method string
	Path   string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%d) on %s %s: %v", e.Status, e.Method, e.Path, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError carries a non-2xx response that is not an authorization
// failure.
type StatusError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d) on %s %s: %s", e.Status, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	return 0
}
