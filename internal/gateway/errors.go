package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the call could not be completed.
	ErrTransport = errors.New("transport failure")
	// ErrProtocolFormat means the response body has no recognized shape.
	ErrProtocolFormat = errors.New("unrecognized response format")
	// ErrHTTPStatus means the authority answered with status >= 400.
	ErrHTTPStatus = errors.New("http error status")
	// ErrUnsupportedOperation is returned by the local backend for anything
	// outside its four operations.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrTokenUnavailable means the token endpoint returned no token.
	ErrTokenUnavailable = errors.New("bearer token unavailable")
)

// CallError carries the context of a failed operation. Err is one of the
// sentinels above, possibly wrapping a lower-level cause.
type CallError struct {
	Op         Operation
	StatusCode int
	Response   Result
	Body       string
	Err        error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (http %d)", e.StatusCode)
	}
	if m := e.Response.String("message"); m != "" {
		msg += ": " + m
	} else if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *CallError) Unwrap() error { return e.Err }
