// Package nasa describes the NASA endpoints the proxy serves: their query
// parameters, defaults, and response reshaping.
package nasa

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Upstream names used to namespace cache keys.
const (
	UpstreamAPI    = "api"
	UpstreamImages = "images"
)

// ErrInvalidParam marks a caller parameter that cannot be sent upstream.
var ErrInvalidParam = errors.New("invalid parameter")

var roverPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// MediaSearchParams queries images-api.nasa.gov/search.
type MediaSearchParams struct {
	Q         string
	MediaType string
	YearStart string
	YearEnd   string
}

// MediaSearchParamsFromQuery reads q, media_type, year_start and year_end.
// media_type defaults to "image".
func MediaSearchParamsFromQuery(q url.Values) MediaSearchParams {
	p := MediaSearchParams{
		Q:         strings.TrimSpace(q.Get("q")),
		MediaType: q.Get("media_type"),
		YearStart: q.Get("year_start"),
		YearEnd:   q.Get("year_end"),
	}
	if p.MediaType == "" {
		p.MediaType = "image"
	}
	return p
}

// Endpoint returns the upstream path.
func (p MediaSearchParams) Endpoint() string { return "/search" }

// Values returns the upstream query without the page number.
func (p MediaSearchParams) Values() url.Values {
	v := url.Values{}
	setIf(v, "q", p.Q)
	setIf(v, "media_type", p.MediaType)
	setIf(v, "year_start", p.YearStart)
	setIf(v, "year_end", p.YearEnd)
	return v
}

// APODParams queries the Astronomy Picture of the Day.
type APODParams struct {
	Date      string
	StartDate string
	EndDate   string
	Thumbs    bool
}

// APODParamsFromQuery reads date, start_date, end_date and thumbs.
// thumbs defaults to true; only an explicit false value turns it off.
func APODParamsFromQuery(q url.Values) APODParams {
	p := APODParams{
		Date:      q.Get("date"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Thumbs:    true,
	}
	if raw := q.Get("thumbs"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			p.Thumbs = b
		}
	}
	return p
}

// Endpoint returns the upstream path.
func (p APODParams) Endpoint() string { return "/planetary/apod" }

// Values returns the upstream query.
func (p APODParams) Values() url.Values {
	v := url.Values{}
	setIf(v, "date", p.Date)
	setIf(v, "start_date", p.StartDate)
	setIf(v, "end_date", p.EndDate)
	v.Set("thumbs", strconv.FormatBool(p.Thumbs))
	return v
}

// MarsPhotosParams queries the Mars Rover Photos API.
type MarsPhotosParams struct {
	Rover     string
	EarthDate string
	Sol       string
	Camera    string
	Page      int
}

// MarsPhotosParamsFromQuery reads rover, earth_date, sol, camera and page.
// rover defaults to curiosity and page to 1.
func MarsPhotosParamsFromQuery(q url.Values) MarsPhotosParams {
	p := MarsPhotosParams{
		Rover:     strings.ToLower(strings.TrimSpace(q.Get("rover"))),
		EarthDate: q.Get("earth_date"),
		Sol:       q.Get("sol"),
		Camera:    q.Get("camera"),
		Page:      1,
	}
	if p.Rover == "" {
		p.Rover = "curiosity"
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	return p
}

// Validate rejects rover names that are not a plain path segment.
func (p MarsPhotosParams) Validate() error {
	if !roverPattern.MatchString(p.Rover) {
		return fmt.Errorf("%w: rover %q", ErrInvalidParam, p.Rover)
	}
	return nil
}

// Endpoint returns the upstream path for the rover.
func (p MarsPhotosParams) Endpoint() string {
	return "/mars-photos/api/v1/rovers/" + p.Rover + "/photos"
}

// Values returns the upstream query.
func (p MarsPhotosParams) Values() url.Values {
	v := url.Values{}
	setIf(v, "earth_date", p.EarthDate)
	setIf(v, "sol", p.Sol)
	setIf(v, "camera", p.Camera)
	v.Set("page", strconv.Itoa(p.Page))
	return v
}

// NeoFeedParams queries the Near Earth Object feed.
type NeoFeedParams struct {
	StartDate string
	EndDate   string
}

// NeoFeedParamsFromQuery reads start_date and end_date.
func NeoFeedParamsFromQuery(q url.Values) NeoFeedParams {
	return NeoFeedParams{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}
}

// Endpoint returns the upstream path.
func (p NeoFeedParams) Endpoint() string { return "/neo/rest/v1/feed" }

// Values returns the upstream query.
func (p NeoFeedParams) Values() url.Values {
	v := url.Values{}
	setIf(v, "start_date", p.StartDate)
	setIf(v, "end_date", p.EndDate)
	return v
}
