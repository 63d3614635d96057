package unitofwork

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/AntonStoeckl/uow-eventbus-go/observability"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func(ctx context.Context) error

type retryConfig struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector observability.MetricsCollector
	logger           observability.Logger
}

// RetryOption configures RetryWithExponentialBackoff.
type RetryOption func(*retryConfig) error

// RetryWithExponentialBackoff runs fn until it succeeds, fails with an error that is not an
// ErrSerializationFailure, or maxAttempts is reached. Every attempt should run a complete unit of work.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms, 80 ms, each with up to 30% jitter.
func RetryWithExponentialBackoff(ctx context.Context, fn RetryableFunc, options ...RetryOption) error {
	config := &retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}

	var lastErr error

	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := config.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * config.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			observability.RecordDuration(ctx, config.metricsCollector, metricRetryDelay, backoffDelay, map[string]string{
				labelAttempt: strconv.Itoa(attempt),
			})

			select {
			case <-time.After(backoffDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt < config.maxAttempts-1 {
			if config.logger != nil {
				config.logger.Debug(logMsgRetrying, logAttrAttempt, attempt+1, logAttrError, lastErr.Error())
			}

			observability.IncrementCounter(ctx, config.metricsCollector, metricRetryTotal, map[string]string{
				labelAttempt:   strconv.Itoa(attempt + 1),
				labelErrorType: errorType(lastErr),
			})
		}
	}

	observability.IncrementCounter(ctx, config.metricsCollector, metricMaxRetriesReached, map[string]string{
		labelErrorType: errorType(lastErr),
	})

	return lastErr
}

// IsRetryable reports whether err is worth retrying with a fresh unit of work.
// Timeouts are not retried; retrying them under overload only adds load.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationFailure)
}

func errorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrSerializationFailure):
		return "serialization_failure"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) RetryOption {
	return func(config *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		config.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, baseDelay*8, etc.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(config *retryConfig) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		config.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) RetryOption {
	return func(config *retryConfig) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		config.jitterFactor = factor

		return nil
	}
}

// WithRetryMetrics sets the metrics collector for retry instrumentation.
func WithRetryMetrics(collector observability.MetricsCollector) RetryOption {
	return func(config *retryConfig) error {
		config.metricsCollector = collector
		return nil
	}
}

// WithRetryLogger sets the logger that receives a debug message before every retry.
func WithRetryLogger(logger observability.Logger) RetryOption {
	return func(config *retryConfig) error {
		config.logger = logger
		return nil
	}
}
