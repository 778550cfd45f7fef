package photopipe

import (
	"sort"
	"strings"
)

// MediaRecord is one entry from the bulk creative-commons media index.
type MediaRecord struct {
	ID       string
	Title    string
	Creator  string
	License  string
	ImageURL string
	ThumbURL string
	PageURL  string
}

// categoryKeywords is the fixed set of venue-category words that earn a
// small score bonus when they appear in a record title.
var categoryKeywords = []string{
	"restaurant", "cafe", "bar", "park", "hotel", "shop",
}

// ScoredMedia pairs a media record with its relevance score for one venue.
type ScoredMedia struct {
	Record MediaRecord
	Score  int
}

// ScoreMediaIndex ranks bulk-index records against one venue and returns
// the top-N (Tuning.BulkTopN) by descending score. Records with disallowed
// licenses or a zero score are discarded. The sort is stable: ties keep the
// original dataset order.
//
// This is a linear scan per venue, O(venues x index) per run. Large
// indices want an inverted keyword index instead; see DESIGN.md.
func (cfg *Config) ScoreMediaIndex(v Venue, index []MediaRecord) []ScoredMedia {
	cfg.defaults()
	t := cfg.Tuning

	var scored []ScoredMedia
	for _, rec := range index {
		if !IsAllowed(rec.License) {
			continue
		}
		score := cfg.scoreRecord(v, rec)
		if score <= 0 {
			continue
		}
		scored = append(scored, ScoredMedia{Record: rec, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > t.BulkTopN {
		scored = scored[:t.BulkTopN]
	}
	return scored
}

// scoreRecord computes the heuristic relevance score of one record.
func (cfg *Config) scoreRecord(v Venue, rec MediaRecord) int {
	t := cfg.Tuning
	title := strings.ToLower(rec.Title)

	score := 0
	if v.Name != "" && strings.Contains(title, strings.ToLower(v.Name)) {
		score += t.PointsTitleName
	}
	if FuzzyMatch(rec.Title, v.Name, t.BulkFuzzyThreshold) {
		score += t.PointsFuzzyName
	}
	if v.City != "" && strings.Contains(title, strings.ToLower(v.City)) {
		score += t.PointsCity
	}
	if v.Country != "" && strings.Contains(title, strings.ToLower(v.Country)) {
		score += t.PointsCountry
	}
	for _, kw := range categoryKeywords {
		if strings.Contains(title, kw) {
			score += t.PointsCategory
		}
	}
	return score
}

// BulkCandidates converts scored media into import candidates, best score
// first.
func BulkCandidates(scored []ScoredMedia) []Candidate {
	cands := make([]Candidate, 0, len(scored))
	for i, s := range scored {
		cands = append(cands, Candidate{
			URL:       s.Record.ImageURL,
			Source:    SourceBulkIndex,
			Rank:      Rank{Priority: PriorityBulk, Seq: i},
			Title:     s.Record.Title,
			Author:    s.Record.Creator,
			License:   Normalize(s.Record.License),
			SourceURL: s.Record.PageURL,
		})
	}
	return cands
}
