package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestTracker(opts ...TrackerOption) (*Tracker, *clock) {
	c := &clock{now: time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)}
	opts = append([]TrackerOption{WithTrackerClock(c.Now), WithThrottleDelay(time.Millisecond)}, opts...)
	return NewTracker(NewMemoryStateStore(), testLogger(), opts...), c
}

func quotaHeaders(remaining, limit string) http.Header {
	h := http.Header{}
	if remaining != "" {
		h.Set("X-RateLimit-Remaining", remaining)
	}
	if limit != "" {
		h.Set("X-RateLimit-Limit", limit)
	}
	return h
}

func TestUpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name          string
		headers       http.Header
		wantRemaining int
		wantLimit     int
		wantState     bool
		shouldError   bool
	}{
		{"healthy", quotaHeaders("999", "1000"), 999, 1000, true, false},
		{"demo key", quotaHeaders("27", "30"), 27, 30, true, false},
		{"limit header missing", quotaHeaders("10", ""), 10, 0, true, false},
		{"no headers (images-api)", http.Header{}, 0, 0, false, false},
		{"invalid remaining", quotaHeaders("lots", "1000"), 0, 0, false, true},
		{"invalid limit", quotaHeaders("5", "many"), 0, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, c := newTestTracker()
			ctx := context.Background()

			err := tracker.UpdateFromHeaders(ctx, tt.headers)
			if tt.shouldError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateFromHeaders() error = %v", err)
			}

			state, err := tracker.GetState(ctx)
			if err != nil {
				t.Fatalf("GetState() error = %v", err)
			}
			if !tt.wantState {
				if state != nil {
					t.Errorf("state = %+v, want nil", state)
				}
				return
			}
			if state.Remaining != tt.wantRemaining || state.Limit != tt.wantLimit {
				t.Errorf("state = %+v, want remaining %d limit %d", state, tt.wantRemaining, tt.wantLimit)
			}
			if !state.LastUpdate.Equal(c.now) {
				t.Errorf("LastUpdate = %v, want %v", state.LastUpdate, c.now)
			}
		})
	}
}

func TestShouldAllowRequest(t *testing.T) {
	tests := []struct {
		name      string
		remaining string
		want      bool
	}{
		{"no state yet", "", true},
		{"healthy", "500", true},
		{"warning throttles but allows", "10", true},
		{"critical blocks", "2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, _ := newTestTracker()
			ctx := context.Background()
			if tt.remaining != "" {
				if err := tracker.UpdateFromHeaders(ctx, quotaHeaders(tt.remaining, "1000")); err != nil {
					t.Fatalf("UpdateFromHeaders() error = %v", err)
				}
			}

			got, err := tracker.ShouldAllowRequest(ctx)
			if err != nil {
				t.Fatalf("ShouldAllowRequest() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ShouldAllowRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldAllowRequest_StaleStateAllows(t *testing.T) {
	tracker, c := newTestTracker()
	ctx := context.Background()

	_ = tracker.UpdateFromHeaders(ctx, quotaHeaders("0", "1000"))
	if ok, _ := tracker.ShouldAllowRequest(ctx); ok {
		t.Fatal("ShouldAllowRequest() = true with exhausted quota")
	}

	c.now = c.now.Add(QuotaWindow)
	if ok, _ := tracker.ShouldAllowRequest(ctx); !ok {
		t.Error("ShouldAllowRequest() = false after the window rolled over")
	}
}

func TestShouldAllowRequest_ThrottleHonoursContext(t *testing.T) {
	tracker, _ := newTestTracker(WithThrottleDelay(time.Minute))
	_ = tracker.UpdateFromHeaders(context.Background(), quotaHeaders("10", "1000"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok, err := tracker.ShouldAllowRequest(ctx)
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ShouldAllowRequest() = %v, %v; want false, DeadlineExceeded", ok, err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("throttle delay ignored context")
	}
}

func TestShouldAllowRequest_CustomThresholds(t *testing.T) {
	tracker, _ := newTestTracker(WithThresholds(Thresholds{Critical: 50, Warning: 100}))
	_ = tracker.UpdateFromHeaders(context.Background(), quotaHeaders("40", "1000"))

	if ok, _ := tracker.ShouldAllowRequest(context.Background()); ok {
		t.Error("ShouldAllowRequest() = true below custom critical threshold")
	}
}

func TestRetryAfter(t *testing.T) {
	tracker, c := newTestTracker()
	ctx := context.Background()

	if got := tracker.RetryAfter(ctx); got != 0 {
		t.Errorf("RetryAfter() without state = %v, want 0", got)
	}

	_ = tracker.UpdateFromHeaders(ctx, quotaHeaders("0", "1000"))
	c.now = c.now.Add(20 * time.Minute)
	if got := tracker.RetryAfter(ctx); got != 40*time.Minute {
		t.Errorf("RetryAfter() = %v, want 40m", got)
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (*QuotaState, error) { return nil, errors.New("down") }
func (failingStore) Save(context.Context, *QuotaState) error   { return errors.New("down") }

func TestTracker_StoreErrors(t *testing.T) {
	tracker := NewTracker(failingStore{}, testLogger())
	ctx := context.Background()

	if _, err := tracker.ShouldAllowRequest(ctx); err == nil {
		t.Error("ShouldAllowRequest() error = nil, want store error")
	}
	if err := tracker.UpdateFromHeaders(ctx, quotaHeaders("10", "")); err == nil {
		t.Error("UpdateFromHeaders() error = nil, want store error")
	}
}

func TestMemoryStateStore_CopiesState(t *testing.T) {
	store := NewMemoryStateStore()
	ctx := context.Background()

	s := &QuotaState{Remaining: 10}
	_ = store.Save(ctx, s)
	s.Remaining = 0

	got, _ := store.Load(ctx)
	if got.Remaining != 10 {
		t.Errorf("Remaining = %d, want 10", got.Remaining)
	}
}
