// Package testutil provides testing utilities for the NASA media proxy.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockNASAResponse defines the behavior for a mock NASA endpoint response.
type MockNASAResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockNASA is a configurable mock of api.nasa.gov and images-api.nasa.gov.
type MockNASA struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount int
	PageRequests map[int]int
	LastQuery    url.Values
}

// NewMockNASA creates a new mock NASA server.
func NewMockNASA() *MockNASA {
	mock := &MockNASA{
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		PageRequests: make(map[int]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastQuery = r.URL.Query()
		if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
			mock.PageRequests[page]++
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"No such endpoint"}}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockNASA) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockNASA) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockNASA) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PageRequests = make(map[int]int)
	m.LastQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockNASA) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockNASA) SetResponse(path string, resp MockNASAResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetImagesCollection serves /search as an images-api collection of total
// items, 100 per page. Item i has nasa_id "item-<i>" (0-based).
// Pages listed in failPages answer with that status code instead.
func (m *MockNASA) SetImagesCollection(total int, failPages map[int]int) {
	m.SetHandler("/search", func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}

		w.Header().Set("Content-Type", "application/json")
		if status, fail := failPages[page]; fail {
			w.WriteHeader(status)
			fmt.Fprintf(w, `{"reason":"page %d failed","message":"mock failure on page %d"}`, page, page)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write(ImagesPage(page, total))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockNASA) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPageRequests returns how many requests asked for the given page.
func (m *MockNASA) GetPageRequests(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PageRequests[page]
}

// GetLastQuery returns the query string of the most recent request.
func (m *MockNASA) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// ImagesPage renders one 100-item page of an images-api search collection.
func ImagesPage(page, total int) []byte {
	type link struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	}
	type datum struct {
		NasaID    string `json:"nasa_id"`
		Title     string `json:"title"`
		MediaType string `json:"media_type"`
	}
	type item struct {
		Href  string  `json:"href"`
		Data  []datum `json:"data"`
		Links []link  `json:"links"`
	}

	items := []item{}
	for i := (page - 1) * 100; i < page*100 && i < total; i++ {
		id := fmt.Sprintf("item-%d", i)
		items = append(items, item{
			Href:  "https://images-assets.nasa.gov/image/" + id + "/collection.json",
			Data:  []datum{{NasaID: id, Title: fmt.Sprintf("Item %d", i), MediaType: "image"}},
			Links: []link{{Href: "https://images-assets.nasa.gov/image/" + id + "/thumb.jpg", Rel: "preview"}},
		})
	}

	body := map[string]any{
		"collection": map[string]any{
			"version":  "1.0",
			"href":     fmt.Sprintf("https://images-api.nasa.gov/search?page=%d", page),
			"items":    items,
			"metadata": map[string]any{"total_hits": total},
		},
	}
	data, _ := json.Marshal(body)
	return data
}

// NewHealthyResponse creates a standard 200 OK response with NASA quota headers.
func NewHealthyResponse(data string) MockNASAResponse {
	return MockNASAResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "1000",
			"X-RateLimit-Remaining": "999",
			"Content-Type":          "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 response as api.nasa.gov sends when the
// hourly quota is gone.
func NewRateLimitResponse() MockNASAResponse {
	return MockNASAResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":"OVER_RATE_LIMIT","message":"You have exceeded your rate limit. Try again later."}}`,
		Headers: map[string]string{
			"X-RateLimit-Limit":     "1000",
			"X-RateLimit-Remaining": "0",
			"Content-Type":          "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockNASAResponse {
	return MockNASAResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"code":500,"msg":"Internal Service Error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
