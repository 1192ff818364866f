// Package client provides the resilient HTTP request layer for the
// cooperative backend: per-attempt timeouts, bearer token injection,
// fixed-delay retry and uniform result normalization.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_requests_total",
		Help: "Total request attempts by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kopkar_request_duration_seconds",
		Help:    "Duration of a normalized request (all attempts) in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_errors_total",
		Help: "Total failed attempts by error class",
	}, []string{"class"})
)

// Client is the retrying request client.
type Client struct {
	executor *Executor
	config   Config
	validate *validator.Validate
	logger   zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://host/kopkar/api/v1/".
	// Endpoints are resolved relative to it.
	BaseURL string `validate:"required,url"`

	// Retry is the default policy for Do.
	Retry RetryConfig

	// HTTPClient overrides the transport (for testing).
	HTTPClient *http.Client `validate:"-"`
}

// DefaultConfig returns the default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL: baseURL,
		Retry:   DefaultRetryConfig(),
	}
}

// New creates a client. auth attaches credentials to every attempt and
// may be nil for anonymous use.
func New(cfg Config, auth Authenticator) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := log.With().Str("component", "kopkar-client").Logger()

	executor, err := NewExecutor(cfg.BaseURL, auth, cfg.HTTPClient, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		executor: executor,
		config:   cfg,
		validate: validate,
		logger:   logger,
	}, nil
}

// Do performs a request with the client's default retry policy.
func (c *Client) Do(ctx context.Context, endpoint string, opts RequestOptions) (*Result, error) {
	return c.DoWithRetry(ctx, endpoint, opts, c.config.Retry)
}

// DoWithRetry performs a request with an explicit retry policy.
//
// Timeouts, transport failures and non-2xx responses never surface as
// errors: once attempts run out they are returned as a failure Result.
// An error is returned only when ctx ends or the request cannot be built.
func (c *Client) DoWithRetry(ctx context.Context, endpoint string, opts RequestOptions, retry RetryConfig) (*Result, error) {
	if err := c.validate.Struct(retry); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	label := endpointLabel(endpoint)
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().Str("endpoint", label).Logger()

	var result *Result
	attempts, err := retryFixed(ctx, retry, logger, func(attempt int) error {
		r, err := c.attempt(ctx, endpoint, opts, retry.Timeout, logger)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if err == nil {
		result.Attempts = attempts
		return result, nil
	}
	if classOf(err) == "" {
		return nil, err
	}

	failure := failureResult(err)
	failure.Attempts = attempts
	logger.Warn().
		Int("status_code", failure.StatusCode).
		Int("attempts", attempts).
		Msg("Request failed")
	return failure, nil
}

// PostJSON encodes v as the JSON body of a POST request.
func (c *Client) PostJSON(ctx context.Context, endpoint string, v any) (*Result, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	return c.Do(ctx, endpoint, RequestOptions{
		Method: http.MethodPost,
		Header: header,
		Body:   body,
	})
}

// attempt runs the executor once and classifies the outcome.
func (c *Client) attempt(ctx context.Context, endpoint string, opts RequestOptions, timeout time.Duration, logger zerolog.Logger) (*Result, error) {
	label := endpointLabel(endpoint)

	resp, err := c.executor.Execute(ctx, endpoint, opts, timeout)
	if err != nil {
		if class := classOf(err); class != "" {
			errorsTotal.WithLabelValues(string(class)).Inc()
			requestsTotal.WithLabelValues(label, string(class)).Inc()
		}
		return nil, err
	}

	status := strconv.Itoa(resp.StatusCode)
	requestsTotal.WithLabelValues(label, status).Inc()

	payload, ok := decodeBody(resp.Body)
	if !ok {
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		logger.Debug().
			Int("status_code", resp.StatusCode).
			Int("body_bytes", len(resp.Body)).
			Msg("Response body is not JSON, using text as message")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorsTotal.WithLabelValues(string(ErrorClassStatus)).Inc()

		message := readEnvelope(payload).Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassStatus,
			Message:    message,
			Payload:    payload,
		}
	}

	return successResult(resp.StatusCode, payload), nil
}

// Executor returns the underlying executor.
func (c *Client) Executor() *Executor {
	return c.executor
}

// endpointLabel strips the query so metric label sets stay bounded.
func endpointLabel(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	return strings.Trim(endpoint, "/")
}
