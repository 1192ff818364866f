package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is wrapped into Result.Err when every attempt failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the caller's context ends
	// during a request or between attempts.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoBody is returned by Result decoders when the result carries no
	// response body (failure results).
	ErrNoBody = errors.New("result has no body")
)

// DefaultErrorMessage is the failure message used when nothing better can
// be extracted from the last error.
const DefaultErrorMessage = "An error occurred while processing the request"

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassTimeout is an attempt that hit its timeout.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassTransport is a network, DNS or TLS failure.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassStatus is a non-2xx HTTP response.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassDecode is a body that is not valid JSON. It is downgraded
	// to a text message and only counted, never retried on its own.
	ErrorClassDecode ErrorClass = "decode"
)

// RequestError is a failed attempt with its classification.
type RequestError struct {
	// StatusCode is the HTTP status, 0 when no response arrived.
	StatusCode int
	ErrorClass ErrorClass
	Message    string

	// Payload is the decoded response body of a status error.
	Payload json.RawMessage

	Err error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// classOf returns the class of err, or "" when err is not a RequestError.
func classOf(err error) ErrorClass {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ErrorClass
	}
	return ""
}
