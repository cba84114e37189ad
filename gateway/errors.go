package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned after a 401: the session has already been
	// evicted and the navigator pointed at the login entry by the time the
	// caller sees this.
	ErrUnauthorized = errors.New("unauthorized")
)

// NetworkError means no response was received at all.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx, non-401 server response, surfaced verbatim to the
// caller. ErrorType and Message are populated when the body carried a
// structured error payload.
type HTTPError struct {
	Status    int
	Method    string
	Path      string
	ErrorType string
	Message   string
}

func (e *HTTPError) Error() string {
	if e.ErrorType != "" || e.Message != "" {
		return fmt.Sprintf("server error (status %d) on %s %s: %s - %s", e.Status, e.Method, e.Path, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("server returned status %d for %s %s", e.Status, e.Method, e.Path)
}

// DecodeError is a malformed response body. Raw keeps the offending payload
// for diagnostics.
type DecodeError struct {
	Path string
	Raw  []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response body for %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
