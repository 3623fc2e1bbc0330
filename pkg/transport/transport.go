// Package transport provides the retrying HTTP core used for all portal
// traffic. It handles transient network and server failures with exponential
// backoff; session semantics live one layer up.
package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for portal transport operations.
var (
	portalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_requests_total",
		Help: "Total portal requests by endpoint and status",
	}, []string{"endpoint", "status"})

	portalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_request_duration_seconds",
		Help:    "Portal request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	portalErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_errors_total",
		Help: "Total portal errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents non-retriable 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// allowedMethods is the set of HTTP methods the portal accepts.
var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Config holds the transport configuration. The retry fields form the base
// schedule; the effective schedule per attempt is derived from it by error
// class (see RetryConfigForClass).
type Config struct {
	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// RetryConfig is one error class's retry schedule.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// baseRetry returns the configured base schedule.
func (c Config) baseRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:       c.MaxAttempts,
		InitialBackoff:    c.InitialBackoff,
		MaxBackoff:        c.MaxBackoff,
		BackoffMultiplier: c.BackoffMultiplier,
	}
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Transport issues HTTP requests with bounded retry for transient failures.
type Transport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new transport.
func New(cfg Config) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}

	return &Transport{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// The portal redirects to its login page on expired sessions;
			// the executor inspects the final URL, so redirects are followed.
		},
		config: cfg,
		logger: log.With().Str("component", "portal-transport").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (t *Transport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// Do performs an HTTP request with transient-failure retry.
//
// Transient statuses (429, 500, 502, 503, 504) and network errors are retried
// with exponential backoff up to the configured attempt bound. Any other
// response, including non-2xx client errors, is returned to the caller
// unchanged; session-level interpretation is not this layer's concern.
//
// Requests with a body must set GetBody so the body can be replayed on retry;
// http.NewRequest does this automatically for byte and string readers.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	if !allowedMethods[req.Method] {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotAllowed, req.Method)
	}

	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		portalRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var resp *http.Response
	var errClass ErrorClass

	retryErr := t.retryWithBackoff(ctx, func() error {
		attemptReq := req
		if req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("replay request body: %w", err)
			}
			attemptReq = req.Clone(ctx)
			attemptReq.Body = body
		}

		var reqErr error
		resp, reqErr = t.httpClient.Do(attemptReq)

		if reqErr != nil {
			errClass = ErrorClassNetwork
			portalErrorsTotal.WithLabelValues(string(errClass)).Inc()
			portalRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			t.logger.Warn().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			return reqErr
		}

		if isTransientStatus(resp.StatusCode) {
			errClass = classifyStatus(resp.StatusCode)
			portalErrorsTotal.WithLabelValues(string(errClass)).Inc()
			portalRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

			t.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("Transient portal error")

			err := &TransportError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    resp.Status,
			}
			resp.Body.Close() // Close the body before retrying
			return err
		}

		// Non-transient responses, success or not, belong to the caller.
		portalRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()
		return nil
	}, func() ErrorClass {
		return errClass
	})

	if retryErr != nil {
		return nil, retryErr
	}

	return resp, nil
}

// classifyStatus categorizes an HTTP status for observability and handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// isTransientStatus reports whether a status is worth retrying at this layer.
//
// 401/403 are deliberately absent: an expired session is not a transient
// fault and must reach the executor for re-authentication.
func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
