package rates

import (
	"errors"
	"fmt"
)

// ErrConnectivity is the class of transient failures (an unreachable provider
// or cache) that make the converter try the next provider.
var ErrConnectivity = errors.New("connectivity error")

// ConnectivityError records which location failed and why.
type ConnectivityError struct {
	Source string
	Err    error
}

// NewConnectivityError wraps err as a connectivity failure of source.
func NewConnectivityError(source string, err error) *ConnectivityError {
	return &ConnectivityError{Source: source, Err: err}
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, ErrConnectivity)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, ErrConnectivity, e.Err)
}

// Unwrap exposes both the connectivity class and the underlying cause.
func (e *ConnectivityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConnectivity}
	}
	return []error{ErrConnectivity, e.Err}
}

// IsConnectivity reports whether err belongs to the connectivity class.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
