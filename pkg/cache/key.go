package cache

import (
	"net/url"
	"sort"
	"strings"
)

// credentialParams are query parameters that carry secrets. They are
// injected by the upstream client and never take part in a cache key.
var credentialParams = map[string]struct{}{
	"api_key": {},
}

// CacheKey represents a unique identifier for a cached upstream response.
type CacheKey struct {
	// Upstream names the API host the endpoint belongs to (e.g., "images", "api")
	Upstream string

	// Endpoint is the upstream endpoint path (e.g., "/search")
	Endpoint string

	// QueryParams are the query parameters, including the upstream page number
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: nasa:upstream:endpoint:param1=val1:param2=val2a,val2b
//
// The upstream and endpoint segments are always present, empty or not.
// Parameters are sorted by name, empty values are dropped and credential
// parameters are skipped; the upstream client drops the same values. Names and values are query-escaped so that the
// separators ":", "=" and "," cannot appear inside them.
//
// Example:
//
//	nasa:images:search:media_type=image:page=2:q=apollo
func (k CacheKey) String() string {
	parts := []string{"nasa", k.Upstream, strings.Trim(k.Endpoint, "/")}

	if len(k.QueryParams) > 0 {
		names := make([]string, 0, len(k.QueryParams))
		for name := range k.QueryParams {
			if _, secret := credentialParams[strings.ToLower(name)]; secret {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			values := make([]string, 0, len(k.QueryParams[name]))
			for _, v := range k.QueryParams[name] {
				if v == "" {
					continue
				}
				values = append(values, url.QueryEscape(v))
			}
			if len(values) == 0 {
				continue
			}
			parts = append(parts, url.QueryEscape(name)+"="+strings.Join(values, ","))
		}
	}

	return strings.Join(parts, ":")
}
