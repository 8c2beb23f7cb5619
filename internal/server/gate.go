package server

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"
)

const tooManyRequestsMessage = "Too many requests, please try again later."

// gate rejects requests before any upstream work: first by the per-client
// token bucket, then by the tracked upstream quota.
func (s *server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Limiter != nil {
			res := s.deps.Limiter.Allow(clientIP(r))
			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			}
			if !res.Allowed {
				gateRejections.WithLabelValues("client").Inc()
				rejectTooMany(w, res.RetryAfterSeconds)
				return
			}
		}

		if s.deps.Quota != nil {
			allowed, err := s.deps.Quota.ShouldAllowRequest(r.Context())
			if err != nil {
				if r.Context().Err() != nil {
					return
				}
				// Unreadable quota state must not take the proxy down.
				hlog.FromRequest(r).Warn().Err(err).Msg("Quota check failed, allowing request")
			} else if !allowed {
				gateRejections.WithLabelValues("quota").Inc()
				rejectTooMany(w, s.deps.Quota.RetryAfter(r.Context()).Seconds())
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func rejectTooMany(w http.ResponseWriter, retryAfterSeconds float64) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter(retryAfterSeconds)))
	writeJSON(w, http.StatusTooManyRequests, messageBody(tooManyRequestsMessage))
}

// retryAfter rounds up to whole seconds, at least one.
func retryAfter(seconds float64) int {
	n := int(math.Ceil(seconds))
	if n < 1 {
		return 1
	}
	return n
}

// clientIP keys the per-client limiter. RealIP has already replaced
// RemoteAddr when a forwarding header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
