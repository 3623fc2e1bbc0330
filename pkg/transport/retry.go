package transport

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	portalRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	portalRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	portalRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfigForClass derives an error class's retry schedule from the base
// config. Rate-limited requests (429) wait five times the base backoff before
// the first retry and cap twice as high; network errors wait twice the base.
// Server faults retry on the base schedule.
func RetryConfigForClass(base RetryConfig, class ErrorClass) RetryConfig {
	switch class {
	case ErrorClassRateLimit:
		base.InitialBackoff *= 5
		base.MaxBackoff *= 2
	case ErrorClassNetwork:
		base.InitialBackoff *= 2
	}
	return base
}

// retryWithBackoff executes fn with exponential backoff retry logic.
// It respects context cancellation and adds jitter to prevent thundering herd.
// classify is consulted after each failure so both the retry decision and the
// backoff schedule follow the most recent error's class.
func (t *Transport) retryWithBackoff(ctx context.Context, fn func() error, classify func() ErrorClass) error {
	var lastErr error
	var backoff time.Duration

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				t.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass := classify()

		if !shouldRetry(errorClass) {
			return lastErr
		}

		cfg := RetryConfigForClass(t.config.baseRetry(), errorClass)

		if attempt >= cfg.MaxAttempts {
			portalRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
			t.logger.Warn().
				Str("error_class", string(errorClass)).
				Int("max_attempts", cfg.MaxAttempts).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, cfg.MaxAttempts, lastErr)
		}

		if backoff == 0 {
			backoff = cfg.InitialBackoff
		}
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}

		portalRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		portalRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		t.logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			t.logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
	}
}
