package client

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nasa_upstream_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nasa_upstream_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nasa_upstream_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the backoff configuration for one error class.
type RetryConfig struct {
	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default backoff configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the appropriate backoff for an error class.
func RetryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassServer:
		return RetryConfig{
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		// api.nasa.gov quotas are hourly; back off hard
		return RetryConfig{
			InitialBackoff:    5 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassTimeout, ErrorClassNetwork:
		return RetryConfig{
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

// RetryOption configures a Retrying fetcher.
type RetryOption func(*Retrying)

// WithBackoffPolicy replaces RetryConfigForErrorClass.
func WithBackoffPolicy(policy func(ErrorClass) RetryConfig) RetryOption {
	return func(r *Retrying) {
		if policy != nil {
			r.policy = policy
		}
	}
}

// Retrying wraps a Fetcher and retries transient failures with exponential
// backoff and jitter. Client errors (4xx other than 429) are never retried.
type Retrying struct {
	next        Fetcher
	maxAttempts int
	policy      func(ErrorClass) RetryConfig
}

// NewRetrying wraps next. maxAttempts counts the first call, so 1 or less
// disables retrying.
func NewRetrying(next Fetcher, maxAttempts int, opts ...RetryOption) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	r := &Retrying{
		next:        next,
		maxAttempts: maxAttempts,
		policy:      RetryConfigForErrorClass,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch implements Fetcher.
func (r *Retrying) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if r.maxAttempts == 1 {
		return r.next.Fetch(ctx, endpoint, params)
	}

	var (
		lastErr    error
		errorClass ErrorClass
		backoff    time.Duration
	)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		data, err := r.next.Fetch(ctx, endpoint, params)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("endpoint", endpoint).
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return data, nil
		}

		lastErr = err
		class := ClassifyError(err)
		if !shouldRetry(class) {
			return nil, err
		}

		config := r.policy(class)
		if class != errorClass || backoff == 0 {
			backoff = config.InitialBackoff
		}
		errorClass = class

		if attempt >= r.maxAttempts {
			break
		}

		retriesTotal.WithLabelValues(string(errorClass)).Inc()

		// ±20% jitter
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		retryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		log.Debug().
			Str("endpoint", endpoint).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(jitter)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	retryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	log.Warn().
		Str("endpoint", endpoint).
		Str("error_class", string(errorClass)).
		Int("max_attempts", r.maxAttempts).
		Msg("Retry attempts exhausted")

	// Both sentinels stay matchable: errors.Is(ErrRetryExhausted) and
	// errors.As(*UpstreamError).
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, r.maxAttempts, lastErr)
}
