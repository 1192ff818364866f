package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkar_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// Attempts is the total number of attempts, including the first one.
	Attempts int `validate:"min=1"`

	// Delay is the fixed pause between a failed attempt and the next.
	Delay time.Duration `validate:"min=0"`

	// Timeout bounds each individual attempt.
	Timeout time.Duration `validate:"gt=0"`

	// Retryable optionally classifies failures. When it returns false the
	// loop stops and the failure is normalized immediately. Nil retries
	// every failure.
	Retryable func(error) bool `json:"-"`
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts: 3,
		Delay:    1 * time.Second,
		Timeout:  15 * time.Second,
	}
}

// RetryOnlyTransient is a Retryable hook that stops on 4xx responses and
// retries timeouts, transport failures and 5xx responses.
func RetryOnlyTransient(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return true
	}
	if reqErr.ErrorClass == ErrorClassStatus {
		return reqErr.StatusCode >= 500
	}
	return true
}

// retryFixed runs fn up to cfg.Attempts times with a fixed delay between
// failures. Attempts are strictly sequential.
//
// It returns the number of attempts made and:
//   - nil on success;
//   - the last error wrapped with ErrRetryExhausted when every attempt failed;
//   - the last error as-is when cfg.Retryable rejected it or it is not a
//     *RequestError (fatal);
//   - ErrContextCancelled when ctx ends.
func retryFixed(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func(attempt int) error) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		lastErr = err
		class := classOf(err)

		if ctx.Err() != nil {
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		if class == "" {
			return attempt, err
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			logger.Debug().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Error not retryable")
			return attempt, err
		}

		// If this was the last attempt, don't wait
		if attempt >= cfg.Attempts {
			break
		}

		retriesTotal.WithLabelValues(string(class)).Inc()

		logger.Warn().
			Err(err).
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("delay", cfg.Delay).
			Msg("Retrying request after delay")

		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during retry delay")
			return attempt, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	class := classOf(lastErr)
	retryExhaustedTotal.WithLabelValues(string(class)).Inc()
	logger.Error().
		Err(lastErr).
		Str("error_class", string(class)).
		Int("max_attempts", cfg.Attempts).
		Msg("Retry attempts exhausted")

	return cfg.Attempts, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, cfg.Attempts, lastErr)
}
