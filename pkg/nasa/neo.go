package nasa

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
)

// NeoObject is one near-earth object approach, flattened.
type NeoObject struct {
	Date       string   `json:"date"`
	Name       string   `json:"name"`
	Hazardous  bool     `json:"hazardous"`
	DiameterKm *float64 `json:"diameter_km"`
	MissKm     *float64 `json:"miss_km"`
}

// NeoFeed is the flattened NEO feed.
type NeoFeed struct {
	Count int         `json:"count"`
	List  []NeoObject `json:"list"`
}

// FlattenNeoFeed turns near_earth_objects (date -> objects) into one list.
// Dates are emitted in ascending order; objects keep upstream order within
// a date. Missing diameters or approach distances become null.
func FlattenNeoFeed(data []byte) (*NeoFeed, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("neo feed: invalid json")
	}

	groups := make(map[string]gjson.Result)
	gjson.GetBytes(data, "near_earth_objects").ForEach(func(key, value gjson.Result) bool {
		groups[key.String()] = value
		return true
	})

	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	feed := &NeoFeed{List: []NeoObject{}}
	for _, date := range dates {
		groups[date].ForEach(func(_, o gjson.Result) bool {
			feed.List = append(feed.List, NeoObject{
				Date:       date,
				Name:       o.Get("name").String(),
				Hazardous:  o.Get("is_potentially_hazardous_asteroid").Bool(),
				DiameterKm: number(o.Get("estimated_diameter.kilometers.estimated_diameter_max")),
				MissKm:     number(o.Get("close_approach_data.0.miss_distance.kilometers")),
			})
			return true
		})
	}
	feed.Count = len(feed.List)

	return feed, nil
}

// number reads a JSON number or numeric string; anything else is nil.
func number(r gjson.Result) *float64 {
	switch r.Type {
	case gjson.Number:
		f := r.Float()
		return &f
	case gjson.String:
		f, err := strconv.ParseFloat(r.Str, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
