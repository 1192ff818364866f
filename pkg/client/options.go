package client

import (
	"context"
	"net/http"
)

// RequestOptions describes one logical request. It is treated as
// immutable: the executor works on copies, so the same value can be
// replayed on every retry attempt.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Header is passed through verbatim apart from Authorization.
	// Content-Type is the caller's responsibility.
	Header http.Header

	// Body is a raw JSON string or an already-encoded form payload.
	Body []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Authenticator produces request headers with credentials attached.
// session.Session implements it.
type Authenticator interface {
	AuthHeaders(ctx context.Context, base http.Header) (http.Header, error)
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return o.Method
}
