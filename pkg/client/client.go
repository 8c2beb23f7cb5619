// Package client performs single GET round trips against the NASA APIs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Prometheus metrics for upstream client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nasa_upstream_requests_total",
		Help: "Total upstream requests by upstream, endpoint and status",
	}, []string{"upstream", "endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nasa_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by upstream",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"upstream"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nasa_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// credentialParam is the query parameter NASA reads the API key from.
const credentialParam = "api_key"

// maxErrorBody bounds how much of a non-2xx body is read for a message.
const maxErrorBody = 4096

var tracer = otel.Tracer("github.com/Sternrassler/nasa-media-proxy/pkg/client")

// Fetcher performs one upstream GET and returns the raw payload.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// QuotaObserver receives response headers so upstream quota can be tracked.
type QuotaObserver interface {
	UpdateFromHeaders(ctx context.Context, headers http.Header) error
}

// Config holds the client configuration.
type Config struct {
	// Name identifies the upstream in logs and metrics (e.g. "api", "images")
	Name string

	// BaseURL is the scheme and host, e.g. https://api.nasa.gov
	BaseURL string

	// APIKey is injected as api_key into every request when non-empty
	APIKey string

	// Timeout bounds a whole round trip including the body read
	Timeout time.Duration

	// UserAgent header sent upstream
	UserAgent string

	// MaxBodyBytes caps successful payloads; 0 means 32 MiB
	MaxBodyBytes int64

	// HTTPClient overrides the default client (transport, proxies, tests)
	HTTPClient *http.Client

	// Quota is told about every response's headers; optional
	Quota QuotaObserver
}

// DefaultConfig returns a configuration with a 30s timeout.
func DefaultConfig(name, baseURL, apiKey string) Config {
	return Config{
		Name:         name,
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Timeout:      30 * time.Second,
		UserAgent:    "nasa-media-proxy/1.0",
		MaxBodyBytes: 32 << 20,
	}
}

// Client is an upstream NASA API client. It never caches and never retries.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	if cfg.Name == "" {
		cfg.Name = base.Host
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport(nil)}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		config:     cfg,
		logger:     log.With().Str("component", "upstream-client").Str("upstream", cfg.Name).Logger(),
	}, nil
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// Fetch performs a single GET of endpoint with params and returns the body.
//
// Non-2xx answers become *UpstreamError, running out of time becomes an
// *UpstreamError with status 504, and failing to get any answer becomes
// *NetworkError. Cancellation by the caller is returned as the context error.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "nasa.upstream.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("nasa.upstream", c.config.Name),
			attribute.String("nasa.endpoint", endpoint),
			attribute.String("nasa.page", params.Get("page")),
		),
	)
	defer span.End()

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(c.config.Name).Observe(time.Since(startTime).Seconds())
	}()

	data, status, err := c.do(ctx, endpoint, params)

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream fetch failed")
		if class := ClassifyError(err); class != "" {
			upstreamErrorsTotal.WithLabelValues(string(class)).Inc()
		}
	}

	label := strconv.Itoa(status)
	switch {
	case status == 0 && isCancellation(err):
		label = "cancelled"
	case status == 0:
		label = "network_error"
	}
	upstreamRequestsTotal.WithLabelValues(c.config.Name, endpoint, label).Inc()

	return data, err
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	// Empty values are dropped, matching the cache key.
	query := make(url.Values, len(params)+1)
	for k, v := range params {
		if strings.EqualFold(k, credentialParam) {
			continue
		}
		for _, value := range v {
			if value != "" {
				query[k] = append(query[k], value)
			}
		}
	}
	// Logged before the credential goes in.
	loggedQuery := query.Encode()
	if c.config.APIKey != "" {
		query.Set(credentialParam, c.config.APIKey)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(endpoint, "/")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", loggedQuery).
		Msg("Executing upstream request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, c.transportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	if c.config.Quota != nil {
		if err := c.config.Quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		upstreamErr := &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(body, resp.StatusCode),
		}
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(upstreamErr.Class())).
			Str("message", upstreamErr.Message).
			Msg("Upstream request error")
		return nil, resp.StatusCode, upstreamErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		return nil, resp.StatusCode, c.transportError(ctx, endpoint, err)
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, resp.StatusCode, &NetworkError{Err: fmt.Errorf("response body exceeds %d bytes", c.config.MaxBodyBytes)}
	}

	return body, resp.StatusCode, nil
}

// transportError turns a failed send or body read into the client's error
// types. url.Error is unwrapped because its text contains the full URL,
// api_key included.
func (c *Client) transportError(ctx context.Context, endpoint string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Dur("timeout", c.config.Timeout).
			Msg("Upstream request timed out")
		return &UpstreamError{StatusCode: http.StatusGatewayTimeout, Message: TimeoutMessage}
	}

	c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Upstream request failed")
	return &NetworkError{Err: err}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// extractMessage pulls a human-readable message out of an error body.
// NASA services disagree on the shape, so several paths are tried.
func extractMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message", "msg", "error"} {
			if r := gjson.GetBytes(body, path); r.Type == gjson.String && r.Str != "" {
				return r.Str
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "upstream error"
}
