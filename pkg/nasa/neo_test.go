package nasa

import (
	"encoding/json"
	"testing"
)

const neoFixture = `{
  "element_count": 3,
  "near_earth_objects": {
    "2024-01-02": [
      {
        "name": "(2020 AB)",
        "is_potentially_hazardous_asteroid": true,
        "estimated_diameter": {"kilometers": {"estimated_diameter_min": 0.1, "estimated_diameter_max": 0.25}},
        "close_approach_data": [{"miss_distance": {"kilometers": "4123456.789"}}]
      }
    ],
    "2024-01-01": [
      {
        "name": "(2019 XY)",
        "is_potentially_hazardous_asteroid": false,
        "estimated_diameter": {"kilometers": {"estimated_diameter_max": 1.5}},
        "close_approach_data": []
      },
      {
        "name": "(2018 ZZ)",
        "is_potentially_hazardous_asteroid": false
      }
    ]
  }
}`

func TestFlattenNeoFeed(t *testing.T) {
	feed, err := FlattenNeoFeed([]byte(neoFixture))
	if err != nil {
		t.Fatalf("FlattenNeoFeed() error = %v", err)
	}

	if feed.Count != 3 || len(feed.List) != 3 {
		t.Fatalf("Count = %d, len(List) = %d, want 3", feed.Count, len(feed.List))
	}

	wantOrder := []string{"(2019 XY)", "(2018 ZZ)", "(2020 AB)"}
	for i, name := range wantOrder {
		if feed.List[i].Name != name {
			t.Errorf("List[%d].Name = %q, want %q", i, feed.List[i].Name, name)
		}
	}

	first := feed.List[0]
	if first.Date != "2024-01-01" || first.Hazardous {
		t.Errorf("List[0] = %+v", first)
	}
	if first.DiameterKm == nil || *first.DiameterKm != 1.5 {
		t.Errorf("List[0].DiameterKm = %v, want 1.5", first.DiameterKm)
	}
	if first.MissKm != nil {
		t.Errorf("List[0].MissKm = %v, want nil", *first.MissKm)
	}

	last := feed.List[2]
	if !last.Hazardous {
		t.Error("List[2].Hazardous = false, want true")
	}
	if last.MissKm == nil || *last.MissKm != 4123456.789 {
		t.Errorf("List[2].MissKm = %v, want 4123456.789", last.MissKm)
	}
}

func TestFlattenNeoFeed_NullsInJSON(t *testing.T) {
	feed, err := FlattenNeoFeed([]byte(neoFixture))
	if err != nil {
		t.Fatalf("FlattenNeoFeed() error = %v", err)
	}

	body, _ := json.Marshal(feed.List[1])
	want := `{"date":"2024-01-01","name":"(2018 ZZ)","hazardous":false,"diameter_km":null,"miss_km":null}`
	if string(body) != want {
		t.Errorf("json = %s, want %s", body, want)
	}
}

func TestFlattenNeoFeed_Empty(t *testing.T) {
	feed, err := FlattenNeoFeed([]byte(`{"element_count":0}`))
	if err != nil {
		t.Fatalf("FlattenNeoFeed() error = %v", err)
	}

	body, _ := json.Marshal(feed)
	if string(body) != `{"count":0,"list":[]}` {
		t.Errorf("json = %s", body)
	}
}

func TestFlattenNeoFeed_Invalid(t *testing.T) {
	if _, err := FlattenNeoFeed([]byte(`not json`)); err == nil {
		t.Error("FlattenNeoFeed() error = nil, want error")
	}
}
