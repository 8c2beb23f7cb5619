// Package ratelimit gates requests before they reach the NASA APIs.
//
// Tracker follows the hourly quota api.nasa.gov reports in the
// X-RateLimit-Limit and X-RateLimit-Remaining headers and blocks or
// throttles when it runs low. Registry holds per-client token buckets
// that cap how fast any single caller can hit the proxy.
package ratelimit

import (
	"time"
)

// Redis keys for quota state storage.
const (
	RedisKeyRemaining  = "nasa:quota:remaining"
	RedisKeyLimit      = "nasa:quota:limit"
	RedisKeyLastUpdate = "nasa:quota:last_update"
)

// QuotaWindow is the length of api.nasa.gov's rolling quota window.
const QuotaWindow = time.Hour

// Thresholds for quota decisions.
const (
	// DefaultCriticalThreshold blocks requests when remaining falls below it.
	DefaultCriticalThreshold = 5

	// DefaultWarningThreshold throttles requests when remaining falls below it.
	DefaultWarningThreshold = 20
)

// Thresholds configures when the tracker blocks or throttles.
type Thresholds struct {
	Critical int
	Warning  int
}

// DefaultThresholds returns the critical and warning defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical: DefaultCriticalThreshold,
		Warning:  DefaultWarningThreshold,
	}
}

// QuotaState is the last known upstream quota.
type QuotaState struct {
	// Remaining is X-RateLimit-Remaining from the latest response.
	Remaining int `json:"remaining"`

	// Limit is X-RateLimit-Limit from the latest response, 0 if absent.
	Limit int `json:"limit"`

	// LastUpdate is when the headers were seen.
	LastUpdate time.Time `json:"last_update"`
}

// ResetAt is the latest time the window can roll over. NASA sends no reset
// header, so a full window after the last observation is assumed.
func (s *QuotaState) ResetAt() time.Time {
	return s.LastUpdate.Add(QuotaWindow)
}

// IsStale reports whether the observation is older than a full window, at
// which point the quota has certainly refilled.
func (s *QuotaState) IsStale(now time.Time) bool {
	return !now.Before(s.ResetAt())
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *QuotaState) NeedsCriticalBlock(th Thresholds) bool {
	return s.Remaining < th.Critical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling(th Thresholds) bool {
	return s.Remaining < th.Warning && !s.NeedsCriticalBlock(th)
}

// TimeUntilReset returns the duration until the window rolls over.
// Returns 0 if it already has.
func (s *QuotaState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
