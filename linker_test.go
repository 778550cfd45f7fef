package photopipe

import "testing"

func venueCfg() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

func TestMatchVenuesTiergarten(t *testing.T) {
	t.Parallel()

	venues := []Venue{{Slug: "tiergarten", Name: "Tiergarten", Lat: 52.5144, Lon: 13.3501}}
	features := []POIFeature{
		{
			// ~50 m north of the venue.
			ID: 100, OSMType: "way", Lat: 52.51485, Lon: 13.3501,
			Tags: map[string]string{"name": "Tiergarten Park", "image": "https://example.com/tg.jpg", "wikidata": "Q158710"},
		},
		{
			// ~5 km east: excluded purely by distance.
			ID: 200, OSMType: "node", Lat: 52.5219, Lon: 13.4132,
			Tags: map[string]string{"name": "Alexanderplatz"},
		},
	}

	matches := venueCfg().MatchVenues(venues, features)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.POIID != 100 {
		t.Errorf("matched POI %d, want 100", m.POIID)
	}
	if m.Score <= 0.6 {
		t.Errorf("composite score = %v, want > 0.6", m.Score)
	}
	if m.ImageURL != "https://example.com/tg.jpg" || m.Wikidata != "Q158710" {
		t.Errorf("seed tags not carried: %+v", m)
	}
}

func TestMatchVenuesPicksHigherScore(t *testing.T) {
	t.Parallel()

	venues := []Venue{{Slug: "cafe", Name: "Cafe Central", Lat: 52.5, Lon: 13.4}}
	features := []POIFeature{
		{
			// Same name, ~150 m away.
			ID: 1, OSMType: "node", Lat: 52.50135, Lon: 13.4,
			Tags: map[string]string{"name": "Cafe Central"},
		},
		{
			// Same name, ~30 m away: closer wins on proximity.
			ID: 2, OSMType: "node", Lat: 52.50027, Lon: 13.4,
			Tags: map[string]string{"name": "Café Central"},
		},
	}

	matches := venueCfg().MatchVenues(venues, features)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].POIID != 2 {
		t.Errorf("matched POI %d, want 2 (closer at equal name score)", matches[0].POIID)
	}
}

func TestMatchVenuesGates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		feature POIFeature
	}{
		{
			name: "beyond max distance regardless of name",
			feature: POIFeature{
				ID: 1, Lat: 52.51, Lon: 13.4,
				Tags: map[string]string{"name": "Cafe Central"},
			},
		},
		{
			name: "no name tag",
			feature: POIFeature{
				ID: 2, Lat: 52.5001, Lon: 13.4,
				Tags: map[string]string{"amenity": "cafe"},
			},
		},
		{
			name: "name below similarity floor",
			feature: POIFeature{
				ID: 3, Lat: 52.5001, Lon: 13.4,
				Tags: map[string]string{"name": "Premium Motorcycle Oil Shack"},
			},
		},
	}

	venue := Venue{Slug: "cafe", Name: "Cafe Central", Lat: 52.5, Lon: 13.4}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			matches := venueCfg().MatchVenues([]Venue{venue}, []POIFeature{tc.feature})
			if len(matches) != 0 {
				t.Errorf("got match %+v, want none", matches[0])
			}
		})
	}
}
