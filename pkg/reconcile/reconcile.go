// Package reconcile serves a caller's page window out of NASA's fixed-size
// upstream pages, going through the cache for every upstream page.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/nasa-media-proxy/pkg/cache"
	"github.com/Sternrassler/nasa-media-proxy/pkg/client"
	"github.com/Sternrassler/nasa-media-proxy/pkg/pagination"
)

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nasa_reconcile_pages_total",
		Help: "Upstream pages used by reconciliation, by source",
	}, []string{"source"}) // "cache", "upstream"

	reconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nasa_reconcile_duration_seconds",
		Help:    "Duration of a full window reconciliation",
		Buckets: []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30},
	})

	reconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nasa_reconcile_failures_total",
		Help: "Reconciliations that failed because an upstream page failed",
	})
)

var tracer = otel.Tracer("github.com/Sternrassler/nasa-media-proxy/pkg/reconcile")

// PageParam is the upstream query parameter carrying the page number.
const PageParam = "page"

// Result is one caller window of items. It is built per request and never cached.
type Result struct {
	Items      []json.RawMessage `json:"items"`
	TotalCount int               `json:"totalCount"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
}

// Config tunes a Reconciler.
type Config struct {
	// Upstream namespaces cache keys, e.g. "images"
	Upstream string

	// TTL for cached upstream pages; <= 0 means cache.DefaultTTL
	TTL time.Duration

	// FetchConcurrency > 1 fetches the pages of a window in parallel
	FetchConcurrency int

	// UpstreamPageSize is the fixed upstream page size; <= 0 means 100
	UpstreamPageSize int
}

// Reconciler fetches, caches and stitches upstream pages.
type Reconciler struct {
	fetcher client.Fetcher
	store   cache.Store
	decoder Decoder
	config  Config
	group   singleflight.Group
	logger  zerolog.Logger
}

// New creates a Reconciler. decoder may be nil for reconcilers only used
// through Cached.
func New(fetcher client.Fetcher, store cache.Store, decoder Decoder, cfg Config) *Reconciler {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if store == nil {
		panic("store cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = cache.DefaultTTL
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 1
	}
	if cfg.UpstreamPageSize <= 0 {
		cfg.UpstreamPageSize = pagination.UpstreamPageSize
	}

	return &Reconciler{
		fetcher: fetcher,
		store:   store,
		decoder: decoder,
		config:  cfg,
		logger:  log.With().Str("component", "reconciler").Str("upstream", cfg.Upstream).Logger(),
	}
}

// Reconcile returns exactly the caller's window of items for endpoint.
//
// The upstream pages covering the window are taken from the cache or
// fetched and cached. TotalCount is read from the highest page of the
// range; disagreeing totals across pages are not reconciled. If any page
// fails the call fails with that page's error and no items.
func (r *Reconciler) Reconcile(ctx context.Context, endpoint string, base url.Values, window pagination.CallerWindow) (*Result, error) {
	if r.decoder == nil {
		return nil, errors.New("reconciler has no decoder")
	}

	start := time.Now()
	w := pagination.Translate(window.Page, window.PageSize, r.config.UpstreamPageSize)

	ctx, span := tracer.Start(ctx, "nasa.reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("nasa.endpoint", endpoint),
		attribute.Int("nasa.window.page", w.Page),
		attribute.Int("nasa.window.page_size", w.PageSize),
		attribute.Int("nasa.upstream.first_page", w.FirstPage),
		attribute.Int("nasa.upstream.last_page", w.LastPage),
	)

	r.logger.Debug().
		Str("endpoint", endpoint).
		Int("page", w.Page).
		Int("page_size", w.PageSize).
		Int("first_upstream_page", w.FirstPage).
		Int("last_upstream_page", w.LastPage).
		Int("local_offset", w.LocalOffset).
		Msg("Window translated")

	fetcher := pagination.PageFetcherFunc(func(ctx context.Context, page int) ([]byte, error) {
		return r.page(ctx, endpoint, base, page)
	})
	batch := pagination.NewBatchFetcher(fetcher, pagination.Config{MaxConcurrency: r.config.FetchConcurrency})

	pages, err := batch.FetchRange(ctx, w.Pages())
	if err != nil {
		reconcileFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream page failed")
		r.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Reconcile failed")
		return nil, err
	}

	var combined []json.RawMessage
	total := 0
	for i, p := range pages {
		items, pageTotal, err := r.decoder.Decode(p.Data)
		if err != nil {
			reconcileFailures.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "malformed upstream page")
			return nil, fmt.Errorf("upstream page %d: %w", p.PageNumber, err)
		}
		combined = append(combined, items...)
		if i == len(pages)-1 {
			total = pageTotal
		}
	}

	items := pagination.Slice(w, combined)
	reconcileDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("nasa.items", len(items)), attribute.Int("nasa.total_count", total))

	return &Result{
		Items:      items,
		TotalCount: total,
		Page:       w.Page,
		PageSize:   w.PageSize,
	}, nil
}

func (r *Reconciler) page(ctx context.Context, endpoint string, base url.Values, page int) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "nasa.reconcile.page")
	defer span.End()
	span.SetAttributes(attribute.Int("nasa.upstream.page", page))

	params := make(url.Values, len(base)+1)
	for k, v := range base {
		params[k] = append([]string(nil), v...)
	}
	params.Set(PageParam, strconv.Itoa(page))

	data, err := r.Cached(ctx, endpoint, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "page fetch failed")
	}
	return data, err
}

// Cached returns the payload for one upstream request, serving it from the
// store while fresh. On a miss the payload is fetched, stored with the
// configured TTL and returned. Concurrent misses for the same key share one
// upstream call. Store failures are logged and treated as misses.
func (r *Reconciler) Cached(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := cache.CacheKey{
		Upstream:    r.config.Upstream,
		Endpoint:    endpoint,
		QueryParams: params,
	}
	keyString := key.String()

	entry, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		pagesTotal.WithLabelValues("cache").Inc()
		r.logger.Debug().Str("key", keyString).Msg("Cache hit")
		return entry.Data, nil
	case errors.Is(err, cache.ErrCacheMiss):
		r.logger.Debug().Str("key", keyString).Msg("Cache miss")
	default:
		r.logger.Warn().Err(err).Str("key", keyString).Msg("Cache get error")
	}

	v, err, shared := r.group.Do(keyString, func() (any, error) {
		data, err := r.fetcher.Fetch(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		pagesTotal.WithLabelValues("upstream").Inc()

		if err := r.store.Set(ctx, key, data, r.config.TTL); err != nil {
			r.logger.Warn().Err(err).Str("key", keyString).Msg("Failed to cache response")
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	data := v.([]byte)
	if shared {
		data = bytes.Clone(data)
	}
	return data, nil
}
