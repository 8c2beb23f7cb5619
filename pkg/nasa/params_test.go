package nasa

import (
	"errors"
	"net/url"
	"testing"
)

func TestMediaSearchParams(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"defaults media type", "q=apollo", "media_type=image&q=apollo"},
		{"years kept", "q=moon&year_start=1969&year_end=1972", "media_type=image&q=moon&year_end=1972&year_start=1969"},
		{"explicit media type", "q=moon&media_type=video", "media_type=video&q=moon"},
		{"page and pageSize are not upstream params", "q=x&page=3&pageSize=10", "media_type=image&q=x"},
		{"empty q dropped", "q=", "media_type=image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := MediaSearchParamsFromQuery(q)
			if got := p.Values().Encode(); got != tt.want {
				t.Errorf("Values() = %q, want %q", got, tt.want)
			}
			if p.Endpoint() != "/search" {
				t.Errorf("Endpoint() = %q", p.Endpoint())
			}
		})
	}
}

func TestAPODParams(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"", "thumbs=true"},
		{"date=2024-01-01", "date=2024-01-01&thumbs=true"},
		{"thumbs=false", "thumbs=false"},
		{"thumbs=garbage", "thumbs=true"},
		{"start_date=2024-01-01&end_date=2024-01-07", "end_date=2024-01-07&start_date=2024-01-01&thumbs=true"},
	}

	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		p := APODParamsFromQuery(q)
		if got := p.Values().Encode(); got != tt.want {
			t.Errorf("APODParamsFromQuery(%q).Values() = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestMarsPhotosParams(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantEndpoint string
		wantValues   string
		wantErr      bool
	}{
		{"defaults", "", "/mars-photos/api/v1/rovers/curiosity/photos", "page=1", false},
		{"explicit rover", "rover=Perseverance&sol=100&camera=NAVCAM&page=2", "/mars-photos/api/v1/rovers/perseverance/photos", "camera=NAVCAM&page=2&sol=100", false},
		{"bad page", "page=-4&earth_date=2015-06-03", "/mars-photos/api/v1/rovers/curiosity/photos", "earth_date=2015-06-03&page=1", false},
		{"path traversal rejected", "rover=../../secret", "", "", true},
		{"slash rejected", "rover=a/b", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			p := MarsPhotosParamsFromQuery(q)

			err := p.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParam) {
					t.Errorf("Validate() error = %v, want ErrInvalidParam", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if p.Endpoint() != tt.wantEndpoint {
				t.Errorf("Endpoint() = %q, want %q", p.Endpoint(), tt.wantEndpoint)
			}
			if got := p.Values().Encode(); got != tt.wantValues {
				t.Errorf("Values() = %q, want %q", got, tt.wantValues)
			}
		})
	}
}

func TestNeoFeedParams(t *testing.T) {
	q, _ := url.ParseQuery("start_date=2024-01-01&end_date=2024-01-03")
	p := NeoFeedParamsFromQuery(q)
	if got, want := p.Values().Encode(), "end_date=2024-01-03&start_date=2024-01-01"; got != want {
		t.Errorf("Values() = %q, want %q", got, want)
	}
	if p.Endpoint() != "/neo/rest/v1/feed" {
		t.Errorf("Endpoint() = %q", p.Endpoint())
	}
	if got := (NeoFeedParams{}).Values().Encode(); got != "" {
		t.Errorf("empty Values() = %q, want empty", got)
	}
}
