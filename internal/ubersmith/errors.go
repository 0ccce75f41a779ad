package ubersmith

import (
	"errors"
	"fmt"
)

// ErrAuth matches connectivity errors caused by rejected credentials.
var ErrAuth = errors.New("ubersmith: authentication rejected")

// ConnectivityError reports that the remote API could not be reached or refused
// the configured credentials. Credentials are never part of the message.
type ConnectivityError struct {
	Op    string // remote method being called
	Host  string
	Auth  bool
	Cause error
}

func (e *ConnectivityError) Error() string {
	if e.Auth {
		return fmt.Sprintf("ubersmith %s: %s rejected the credentials: %v", e.Op, e.Host, e.Cause)
	}
	return fmt.Sprintf("ubersmith %s: cannot reach %s: %v", e.Op, e.Host, e.Cause)
}

func (e *ConnectivityError) Unwrap() error { return e.Cause }

// Is reports true for ErrAuth when the failure was an authentication one.
func (e *ConnectivityError) Is(target error) bool {
	return target == ErrAuth && e.Auth
}

// APIError is a well-formed response whose status is false.
type APIError struct {
	Method  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ubersmith %s: error %s: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("ubersmith %s: %s", e.Method, e.Message)
}

// HTTPError is an unexpected, non-authentication HTTP status.
type HTTPError struct {
	Method     string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ubersmith %s: unexpected HTTP status %s", e.Method, e.Status)
}
