package photopipe

import "log/slog"

// MatchResult links one venue to the POI feature that best matches it.
// At most one per venue, and only above the composite threshold implied by
// the distance and similarity gates.
type MatchResult struct {
	VenueSlug string
	POIID     int64
	OSMType   string
	POIName   string
	Score     float64
	ImageURL  string // seed candidate from the POI's image tag, if any
	Wikidata  string // seed for later candidate generation, if any
}

// MatchVenues links every venue to its best qualifying POI feature.
// A venue with no qualifying POI yields no entry; that is an expected
// outcome, not an error.
func (cfg *Config) MatchVenues(venues []Venue, features []POIFeature) []MatchResult {
	cfg.defaults()

	results := make([]MatchResult, 0, len(venues))
	for _, v := range venues {
		if m, ok := cfg.matchOne(v, features); ok {
			results = append(results, m)
		}
	}
	return results
}

// matchOne scores every feature against one venue and keeps the best
// survivor. Gates: distance within MaxMatchDistanceM, a usable name tag,
// and name similarity at or above the floor.
func (cfg *Config) matchOne(v Venue, features []POIFeature) (MatchResult, bool) {
	t := cfg.Tuning

	var best MatchResult
	found := false

	for _, f := range features {
		d := Distance(v.Lat, v.Lon, f.Lat, f.Lon)
		if d > t.MaxMatchDistanceM {
			continue
		}
		name := f.Name()
		if name == "" {
			continue
		}

		nameScore := NameSimilarity(v.Name, name)
		if nameScore < t.NameSimilarityFloor {
			continue
		}

		score := t.NameWeight*nameScore + t.ProximityWeight*(1-d/t.MaxMatchDistanceM)
		if !found || score > best.Score {
			best = MatchResult{
				VenueSlug: v.Slug,
				POIID:     f.ID,
				OSMType:   f.OSMType,
				POIName:   name,
				Score:     score,
				ImageURL:  f.Tags["image"],
				Wikidata:  f.Tags["wikidata"],
			}
			found = true
		}
	}

	if found {
		slog.Debug("photopipe: venue matched",
			"venue", v.Slug, "poi", best.POIID, "name", best.POIName, "score", best.Score)
	}
	return best, found
}
