package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	quotaRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nasa_quota_remaining",
		Help: "Requests remaining in the current api.nasa.gov quota window",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nasa_quota_blocks_total",
		Help: "Total number of requests blocked because the upstream quota is critical",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nasa_quota_throttles_total",
		Help: "Total number of requests delayed because the upstream quota is low",
	})
)

// DefaultThrottleDelay is how long a request waits when the quota is low.
const DefaultThrottleDelay = time.Second

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithThresholds overrides the critical and warning thresholds.
func WithThresholds(th Thresholds) TrackerOption {
	return func(t *Tracker) { t.thresholds = th }
}

// WithThrottleDelay overrides DefaultThrottleDelay.
func WithThrottleDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.throttleDelay = d }
}

// WithTrackerClock replaces time.Now.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// Tracker monitors the api.nasa.gov quota and gates requests.
type Tracker struct {
	store         StateStore
	thresholds    Thresholds
	throttleDelay time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// NewTracker creates a new quota tracker.
func NewTracker(store StateStore, logger zerolog.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:         store,
		thresholds:    DefaultThresholds(),
		throttleDelay: DefaultThrottleDelay,
		now:           time.Now,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetState returns the last observed quota, or nil when none has been seen.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	state, err := t.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load quota state: %w", err)
	}
	return state, nil
}

// UpdateFromHeaders records X-RateLimit-Remaining and X-RateLimit-Limit.
// Responses without the headers (images-api) are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse X-RateLimit-Remaining header: %w", err)
	}

	limit := 0
	if limitStr := headers.Get("X-RateLimit-Limit"); limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return fmt.Errorf("parse X-RateLimit-Limit header: %w", err)
		}
	}

	state := &QuotaState{
		Remaining:  remain,
		Limit:      limit,
		LastUpdate: t.now(),
	}
	if err := t.store.Save(ctx, state); err != nil {
		return err
	}

	quotaRemaining.Set(float64(remain))

	switch {
	case state.NeedsCriticalBlock(t.thresholds):
		t.logger.Error().Int("remaining", remain).Int("limit", limit).
			Msg("NASA quota CRITICAL - requests will be blocked")
	case state.NeedsThrottling(t.thresholds):
		t.logger.Warn().Int("remaining", remain).Int("limit", limit).
			Msg("NASA quota WARNING - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remain).Int("limit", limit).
			Msg("NASA quota state updated")
	}

	return nil
}

// ShouldAllowRequest reports whether a request may go upstream.
//
// It returns false when the remaining quota is below the critical
// threshold. Below the warning threshold it waits for the throttle delay
// first, returning the context error if ctx ends during the wait. Unknown
// or stale state allows the request.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, err
	}
	if state == nil || state.IsStale(t.now()) {
		return true, nil
	}

	if state.NeedsCriticalBlock(t.thresholds) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset(t.now())).
			Msg("NASA quota critical - blocking request")
		quotaBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling(t.thresholds) && t.throttleDelay > 0 {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("delay", t.throttleDelay).
			Msg("NASA quota warning - throttling request")
		quotaThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

// RetryAfter returns how long a blocked caller should wait.
func (t *Tracker) RetryAfter(ctx context.Context) time.Duration {
	state, err := t.GetState(ctx)
	if err != nil || state == nil {
		return 0
	}
	return state.TimeUntilReset(t.now())
}
