package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Executor issues a single HTTP request bounded by a timeout.
//
// The timeout covers the whole exchange, body included, and aborts the
// underlying connection when it fires. Responses are returned whatever
// their status; classification happens in Client.
type Executor struct {
	baseURL    *url.URL
	httpClient *http.Client
	auth       Authenticator
	logger     zerolog.Logger
}

// NewExecutor creates an executor for baseURL. auth may be nil for
// anonymous use; httpClient nil selects a fresh http.Client.
func NewExecutor(baseURL string, auth Authenticator, httpClient *http.Client, logger zerolog.Logger) (*Executor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Executor{
		baseURL:    u,
		httpClient: httpClient,
		auth:       auth,
		logger:     logger,
	}, nil
}

// URL returns the absolute target for endpoint.
func (e *Executor) URL(endpoint string) (string, error) {
	ref, err := url.Parse(strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("endpoint %q must be relative to the base url", endpoint)
	}
	return e.baseURL.ResolveReference(ref).String(), nil
}

// Execute performs one attempt. A fired timeout or transport failure is
// returned as *RequestError; a cancelled parent ctx is returned as the
// ctx error; malformed requests return a plain error.
func (e *Executor) Execute(ctx context.Context, endpoint string, opts RequestOptions, timeout time.Duration) (*Response, error) {
	target, err := e.URL(endpoint)
	if err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	headers, err := e.headers(attemptCtx, opts.Header)
	if err != nil {
		return nil, e.classify(ctx, attemptCtx, fmt.Errorf("auth headers: %w", err))
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, opts.method(), target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = headers

	e.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Dur("timeout", timeout).
		Msg("Executing request")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.classify(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.classify(ctx, attemptCtx, fmt.Errorf("read body: %w", err))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (e *Executor) headers(ctx context.Context, base http.Header) (http.Header, error) {
	if e.auth == nil {
		h := base.Clone()
		if h == nil {
			h = make(http.Header)
		}
		return h, nil
	}
	return e.auth.AuthHeaders(ctx, base)
}

// classify maps an attempt failure to a timeout or transport error. If
// the caller's own context is done, its error wins.
func (e *Executor) classify(parent, attemptCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &RequestError{
			ErrorClass: ErrorClassTimeout,
			Message:    "request timed out",
			Err:        err,
		}
	}
	return &RequestError{
		ErrorClass: ErrorClassTransport,
		Message:    "request failed",
		Err:        err,
	}
}
