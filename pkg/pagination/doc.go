// Package pagination maps a caller's page window onto NASA's fixed
// 100-item upstream pages and fetches the pages that cover it.
//
// Translate is pure arithmetic:
//
//	w := pagination.Translate(2, 60, pagination.UpstreamPageSize)
//	// w.FirstPage == 1, w.LastPage == 2, w.LocalOffset == 60
//
// BatchFetcher fetches w.Pages() through a PageFetcher, sequentially by
// default or through a bounded errgroup, and returns the payloads in page
// order. A single failed page fails the whole range.
//
//	bf := pagination.NewBatchFetcher(fetcher, pagination.Config{MaxConcurrency: 4})
//	results, err := bf.FetchRange(ctx, w.Pages())
//
// Slice then cuts the window out of the concatenated items.
package pagination
