package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_cache_hits_total",
			Help: "Total number of upstream cache hits",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by layer, expired entries included
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_cache_misses_total",
			Help: "Total number of upstream cache misses",
		},
		[]string{"layer"},
	)

	// CacheSets tracks writes by layer
	CacheSets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_cache_sets_total",
			Help: "Total number of entries written to the upstream cache",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nasa_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set"
	)
)
