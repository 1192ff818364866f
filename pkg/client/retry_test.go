package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func transientErr() error {
	return &RequestError{ErrorClass: ErrorClassTransport, Message: "request failed"}
}

func testRetryConfig(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		Attempts: attempts,
		Delay:    delay,
		Timeout:  time.Second,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", config.Attempts)
	}
	if config.Delay != 1*time.Second {
		t.Errorf("Delay = %v, want 1s", config.Delay)
	}
	if config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", config.Timeout)
	}
	if config.Retryable != nil {
		t.Error("Retryable should be nil by default (retry everything)")
	}
}

func TestRetryFixed_Success(t *testing.T) {
	callCount := 0
	attempts, err := retryFixed(context.Background(), testRetryConfig(3, time.Millisecond), zerolog.Nop(), func(int) error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 || attempts != 1 {
		t.Errorf("Expected 1 call, got calls=%d attempts=%d", callCount, attempts)
	}
}

func TestRetryFixed_SuccessAfterRetry(t *testing.T) {
	delay := 30 * time.Millisecond
	callCount := 0
	fn := func(attempt int) error {
		callCount++
		if attempt != callCount {
			t.Errorf("attempt = %d, want %d", attempt, callCount)
		}
		if callCount < 3 {
			return transientErr()
		}
		return nil
	}

	start := time.Now()
	attempts, err := retryFixed(context.Background(), testRetryConfig(3, delay), zerolog.Nop(), fn)
	duration := time.Since(start)

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if duration < 2*delay {
		t.Errorf("Expected at least %v of delay for 2 failures, got %v", 2*delay, duration)
	}
}

func TestRetryFixed_Exhausted(t *testing.T) {
	callCount := 0
	lastErr := transientErr()
	attempts, err := retryFixed(context.Background(), testRetryConfig(3, time.Millisecond), zerolog.Nop(), func(int) error {
		callCount++
		return lastErr
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr != lastErr {
		t.Errorf("Expected last error to stay reachable, got %v", err)
	}
	if callCount != 3 || attempts != 3 {
		t.Errorf("Expected 3 calls, got calls=%d attempts=%d", callCount, attempts)
	}
}

func TestRetryFixed_FixedDelay(t *testing.T) {
	delay := 40 * time.Millisecond
	timestamps := []time.Time{}
	_, _ = retryFixed(context.Background(), testRetryConfig(3, delay), zerolog.Nop(), func(int) error {
		timestamps = append(timestamps, time.Now())
		return transientErr()
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < delay {
			t.Errorf("gap %d = %v, want >= %v", i, gap, delay)
		}
		// No exponential growth: the second gap stays in the same range.
		if gap > 10*delay {
			t.Errorf("gap %d = %v, far above the fixed delay %v", i, gap, delay)
		}
	}
}

func TestRetryFixed_NoDelayAfterLastAttempt(t *testing.T) {
	delay := 200 * time.Millisecond

	start := time.Now()
	_, _ = retryFixed(context.Background(), testRetryConfig(1, delay), zerolog.Nop(), func(int) error {
		return transientErr()
	})

	if elapsed := time.Since(start); elapsed >= delay {
		t.Errorf("single attempt waited %v, should not delay after the final attempt", elapsed)
	}
}

func TestRetryFixed_NonRetryableStopsEarly(t *testing.T) {
	cfg := testRetryConfig(3, time.Millisecond)
	cfg.Retryable = RetryOnlyTransient

	callCount := 0
	clientErr := &RequestError{ErrorClass: ErrorClassStatus, StatusCode: 400, Message: "bad request"}
	_, err := retryFixed(context.Background(), cfg, zerolog.Nop(), func(int) error {
		callCount++
		return clientErr
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call for a rejected error, got %d", callCount)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted when the hook stopped the loop")
	}
	if err != clientErr {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryFixed_CountBasedByDefault(t *testing.T) {
	callCount := 0
	_, err := retryFixed(context.Background(), testRetryConfig(3, time.Millisecond), zerolog.Nop(), func(int) error {
		callCount++
		return &RequestError{ErrorClass: ErrorClassStatus, StatusCode: 400}
	})

	if callCount != 3 {
		t.Errorf("a 4xx should consume every retry slot by default, got %d calls", callCount)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
}

func TestRetryFixed_FatalErrorStops(t *testing.T) {
	fatal := errors.New("create request: bad method")
	callCount := 0
	_, err := retryFixed(context.Background(), testRetryConfig(3, time.Millisecond), zerolog.Nop(), func(int) error {
		callCount++
		return fatal
	})

	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
	if err != fatal {
		t.Errorf("Expected fatal error as-is, got %v", err)
	}
}

func TestRetryFixed_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	_, err := retryFixed(ctx, testRetryConfig(3, time.Second), zerolog.Nop(), func(int) error {
		callCount++
		if callCount == 1 {
			cancel()
		}
		return transientErr()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryFixed_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := retryFixed(ctx, testRetryConfig(3, 10*time.Second), zerolog.Nop(), func(int) error {
		return transientErr()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("delay was not interrupted by the context (%v)", elapsed)
	}
}

func TestRetryOnlyTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"timeout", &RequestError{ErrorClass: ErrorClassTimeout}, true},
		{"transport", &RequestError{ErrorClass: ErrorClassTransport}, true},
		{"server error", &RequestError{ErrorClass: ErrorClassStatus, StatusCode: 503}, true},
		{"client error", &RequestError{ErrorClass: ErrorClassStatus, StatusCode: 422}, false},
		{"unclassified", errors.New("x"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryOnlyTransient(tt.err); got != tt.expected {
				t.Errorf("RetryOnlyTransient() = %v, want %v", got, tt.expected)
			}
		})
	}
}
