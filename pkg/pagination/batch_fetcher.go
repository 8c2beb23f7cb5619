package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel page fetches.
	// 1 fetches pages one after another in page order.
	MaxConcurrency int
	// Timeout per page fetch; 0 leaves the caller's context in charge
	Timeout time.Duration
}

// DefaultConfig returns sequential fetching with no extra per-page timeout.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 1,
	}
}

// PageFetcher fetches a single upstream page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]byte, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) ([]byte, error)

// FetchPage calls f(ctx, page).
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) ([]byte, error) {
	return f(ctx, page)
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Data       []byte
}

// BatchFetcher fetches a set of upstream pages, all or nothing.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchRange fetches pages and returns their payloads in the order given.
//
// If any page fails the whole call fails with that page's error, unwrapped,
// and no results are returned. With MaxConcurrency > 1 the remaining fetches
// are cancelled once one fails.
func (bf *BatchFetcher) FetchRange(ctx context.Context, pages []int) ([]PageResult, error) {
	start := time.Now()
	results := make([]PageResult, len(pages))

	if bf.config.MaxConcurrency == 1 || len(pages) <= 1 {
		for i, page := range pages {
			data, err := bf.fetch(ctx, page)
			if err != nil {
				return nil, err
			}
			results[i] = PageResult{PageNumber: page, Data: data}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(bf.config.MaxConcurrency)

		for i, page := range pages {
			g.Go(func() error {
				data, err := bf.fetch(gctx, page)
				if err != nil {
					return err
				}
				results[i] = PageResult{PageNumber: page, Data: data}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	log.Debug().
		Int("pages", len(pages)).
		Int("concurrency", bf.config.MaxConcurrency).
		Dur("duration", time.Since(start)).
		Msg("Page range fetched")

	return results, nil
}

func (bf *BatchFetcher) fetch(ctx context.Context, page int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	if bf.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bf.config.Timeout)
		defer cancel()
	}

	data, err := bf.fetcher.FetchPage(ctx, page)
	if err != nil {
		log.Debug().Err(err).Int("page", page).Msg("Page fetch failed")
		return nil, err
	}
	return data, nil
}
