//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tidwall/gjson"

	"github.com/Sternrassler/nasa-media-proxy/internal/server"
	"github.com/Sternrassler/nasa-media-proxy/internal/testutil"
	"github.com/Sternrassler/nasa-media-proxy/pkg/cache"
	"github.com/Sternrassler/nasa-media-proxy/pkg/client"
	"github.com/Sternrassler/nasa-media-proxy/pkg/nasa"
	"github.com/Sternrassler/nasa-media-proxy/pkg/pagination"
	"github.com/Sternrassler/nasa-media-proxy/pkg/ratelimit"
	"github.com/Sternrassler/nasa-media-proxy/pkg/reconcile"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start Redis container")

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

func newImagesReconciler(t *testing.T, mock *testutil.MockNASA, store cache.Store, ttl time.Duration) *reconcile.Reconciler {
	t.Helper()

	cfg := client.DefaultConfig(nasa.UpstreamImages, mock.URL(), "integration-key")
	cfg.Timeout = 5 * time.Second
	c, err := client.New(cfg)
	require.NoError(t, err)

	return reconcile.New(c, store, reconcile.ImagesDecoder{}, reconcile.Config{
		Upstream: nasa.UpstreamImages,
		TTL:      ttl,
	})
}

// TestReconcile_RedisCache runs the full flow: window translation, upstream
// fetch, Redis caching and slicing.
func TestReconcile_RedisCache(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockNASA()
	defer mock.Close()
	mock.SetImagesCollection(250, nil)

	store := cache.NewRedisStore(rdb)
	rec := newImagesReconciler(t, mock, store, time.Minute)
	params := nasa.MediaSearchParams{Q: "apollo", MediaType: "image"}

	// Window spans upstream pages 1 and 2.
	res, err := rec.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(2, 60))
	require.NoError(t, err)
	require.Len(t, res.Items, 60)
	require.Equal(t, 250, res.TotalCount)
	require.Equal(t, "item-60", gjson.GetBytes(res.Items[0], "data.0.nasa_id").String())
	require.Equal(t, "item-119", gjson.GetBytes(res.Items[59], "data.0.nasa_id").String())
	require.Equal(t, 2, mock.GetRequestCount())

	// Warm cache: identical result, no upstream call.
	again, err := rec.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(2, 60))
	require.NoError(t, err)
	require.Equal(t, res, again)
	require.Equal(t, 2, mock.GetRequestCount())

	// A second reconciler sharing Redis sees the same pages.
	other := newImagesReconciler(t, mock, cache.NewRedisStore(rdb), time.Minute)
	_, err = other.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(1, 100))
	require.NoError(t, err)
	require.Equal(t, 2, mock.GetRequestCount())

	// Cache keys never carry the credential.
	keys, err := rdb.Keys(ctx, "*").Result()
	require.NoError(t, err)
	require.NotEmpty(t, keys)
	for _, k := range keys {
		require.NotContains(t, k, "integration-key")
		require.NotContains(t, k, "api_key")
	}
}

func TestReconcile_RedisExpiry(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockNASA()
	defer mock.Close()
	mock.SetImagesCollection(50, nil)

	rec := newImagesReconciler(t, mock, cache.NewRedisStore(rdb), time.Second)
	params := nasa.MediaSearchParams{Q: "gemini", MediaType: "image"}

	_, err := rec.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(1, 25))
	require.NoError(t, err)
	require.Equal(t, 1, mock.GetRequestCount())

	time.Sleep(1500 * time.Millisecond)

	_, err = rec.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(1, 25))
	require.NoError(t, err)
	require.Equal(t, 2, mock.GetRequestCount())
}

func TestReconcile_FailingPageIsNotCached(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockNASA()
	defer mock.Close()
	mock.SetImagesCollection(250, map[int]int{2: http.StatusBadGateway})

	rec := newImagesReconciler(t, mock, cache.NewRedisStore(rdb), time.Minute)
	params := nasa.MediaSearchParams{Q: "voyager", MediaType: "image"}

	res, err := rec.Reconcile(ctx, params.Endpoint(), params.Values(), pagination.NewCallerWindow(2, 60))
	require.Error(t, err)
	require.Nil(t, res)

	var upErr *client.UpstreamError
	require.ErrorAs(t, err, &upErr)
	require.Equal(t, http.StatusBadGateway, upErr.StatusCode)

	// Page 1 was cached, page 2 was not.
	keys, err := rdb.Keys(ctx, "nasa:images:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

// TestServer_SharedQuota runs two proxy instances over one Redis: a quota
// observed by one blocks the other.
func TestServer_SharedQuota(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	mock := testutil.NewMockNASA()
	defer mock.Close()
	mock.SetResponse("/planetary/apod", testutil.MockNASAResponse{
		StatusCode: http.StatusOK,
		Body:       `{"title":"Crab Nebula"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-RateLimit-Limit":     "1000",
			"X-RateLimit-Remaining": "3",
		},
	})

	newHandler := func() http.Handler {
		tracker := ratelimit.NewTracker(ratelimit.NewRedisStateStore(rdb), zerolog.Nop())
		cfg := client.DefaultConfig(nasa.UpstreamAPI, mock.URL(), "integration-key")
		cfg.Quota = tracker
		c, err := client.New(cfg)
		require.NoError(t, err)

		return server.New(server.Deps{
			API:    reconcile.New(c, cache.NewRedisStore(rdb), nil, reconcile.Config{Upstream: nasa.UpstreamAPI}),
			Quota:  tracker,
			Logger: zerolog.Nop(),
		})
	}

	first := httptest.NewServer(newHandler())
	defer first.Close()
	second := httptest.NewServer(newHandler())
	defer second.Close()

	resp, err := http.Get(first.URL + "/api/apod")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state, err := ratelimit.NewRedisStateStore(rdb).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, 3, state.Remaining)

	resp, err = http.Get(second.URL + "/api/apod?date=2024-02-02")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, 1, mock.GetRequestCount())
}
