package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/nasa-media-proxy/internal/config"
	"github.com/Sternrassler/nasa-media-proxy/internal/server"
	"github.com/Sternrassler/nasa-media-proxy/pkg/cache"
	"github.com/Sternrassler/nasa-media-proxy/pkg/client"
	"github.com/Sternrassler/nasa-media-proxy/pkg/logging"
	"github.com/Sternrassler/nasa-media-proxy/pkg/nasa"
	"github.com/Sternrassler/nasa-media-proxy/pkg/ratelimit"
	"github.com/Sternrassler/nasa-media-proxy/pkg/reconcile"
	"github.com/Sternrassler/nasa-media-proxy/pkg/telemetry"
)

const (
	dnsRefreshInterval = 5 * time.Minute
	limiterIdleTimeout = 10 * time.Minute
)

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stdout,
		Service: "nasa-media-proxy",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.Config{
		Enabled:    cfg.Tracing.Enabled,
		Endpoint:   cfg.Tracing.Endpoint,
		SampleRate: cfg.Tracing.SampleRate,
	})
	if err != nil {
		return err
	}

	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.close()

	go client.RefreshDNS(ctx, app.resolver, dnsRefreshInterval)
	go evictLoop(ctx, app.limiter, limiterIdleTimeout)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.NASA.Timeout + 10*time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("cache_backend", cfg.Cache.Backend).
		Dur("cache_ttl", cfg.Cache.TTL).
		Int("fetch_concurrency", cfg.NASA.FetchConcurrency).
		Int("retry_max_attempts", cfg.NASA.RetryMaxAttempts).
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("nasa-proxy ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush traces")
	}

	logger.Info().Msg("nasa-proxy stopped")
	return nil
}

// application holds the wired components of one proxy instance.
type application struct {
	handler  http.Handler
	resolver *dnscache.Resolver
	limiter  *ratelimit.Registry
	redis    *redis.Client
}

func (a *application) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

// build wires cache, quota tracker, upstream clients and reconcilers into
// the HTTP handler.
func build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*application, error) {
	app := &application{
		resolver: &dnscache.Resolver{},
		limiter:  ratelimit.NewRegistry(ratelimit.Limits{RPM: cfg.Limits.RPM, Burst: cfg.Limits.Burst}),
	}

	var (
		store      cache.Store
		quotaStore ratelimit.StateStore
	)
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		app.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
		store = cache.NewRedisStore(app.redis)
		quotaStore = ratelimit.NewRedisStateStore(app.redis)
	default:
		mem, err := cache.NewMemoryStore(cfg.Cache.MaxEntries, cache.WithMaxTTL(cfg.Cache.TTL))
		if err != nil {
			return nil, err
		}
		store = mem
		quotaStore = ratelimit.NewMemoryStateStore()
	}

	tracker := ratelimit.NewTracker(quotaStore, logging.NewLogger("quota"),
		ratelimit.WithThresholds(ratelimit.Thresholds{
			Critical: cfg.Limits.QuotaCritical,
			Warning:  cfg.Limits.QuotaWarning,
		}),
	)

	httpClient := &http.Client{Transport: client.NewTransport(app.resolver)}

	newFetcher := func(name, baseURL string, quota client.QuotaObserver) (client.Fetcher, error) {
		ccfg := client.DefaultConfig(name, baseURL, cfg.NASA.APIKey)
		ccfg.Timeout = cfg.NASA.Timeout
		ccfg.HTTPClient = httpClient
		ccfg.Quota = quota
		c, err := client.New(ccfg)
		if err != nil {
			return nil, fmt.Errorf("create %s client: %w", name, err)
		}
		if cfg.NASA.RetryMaxAttempts > 1 {
			return client.NewRetrying(c, cfg.NASA.RetryMaxAttempts), nil
		}
		return c, nil
	}

	// Only api.nasa.gov reports X-RateLimit headers.
	apiFetcher, err := newFetcher(nasa.UpstreamAPI, cfg.NASA.BaseURL, tracker)
	if err != nil {
		app.close()
		return nil, err
	}
	imagesFetcher, err := newFetcher(nasa.UpstreamImages, cfg.NASA.ImagesBaseURL, nil)
	if err != nil {
		app.close()
		return nil, err
	}

	app.handler = server.New(server.Deps{
		Images: reconcile.New(imagesFetcher, store, reconcile.ImagesDecoder{}, reconcile.Config{
			Upstream:         nasa.UpstreamImages,
			TTL:              cfg.Cache.TTL,
			FetchConcurrency: cfg.NASA.FetchConcurrency,
		}),
		API: reconcile.New(apiFetcher, store, nil, reconcile.Config{
			Upstream: nasa.UpstreamAPI,
			TTL:      cfg.Cache.TTL,
		}),
		Limiter: app.limiter,
		Quota:   tracker,
		Logger:  logger,
	})

	return app, nil
}

// evictLoop drops idle client buckets until ctx is done.
func evictLoop(ctx context.Context, reg *ratelimit.Registry, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := reg.EvictStale(now.Add(-idle)); n > 0 {
				l := logging.NewLogger("limiter")
				l.Debug().Int("evicted", n).Msg("Evicted idle client buckets")
			}
		}
	}
}
