package photopipe

import (
	"fmt"
	"sort"
)

// Source identifies where a candidate image was discovered. It is a closed
// set: add new sources here and the compiler flags every switch that needs
// updating.
type Source int

const (
	SourceWebsite Source = iota
	SourceFacebook
	SourceInstagram
	SourceBulkIndex
	SourceGeoExtract
)

func (s Source) String() string {
	switch s {
	case SourceWebsite:
		return "website"
	case SourceFacebook:
		return "facebook"
	case SourceInstagram:
		return "instagram"
	case SourceBulkIndex:
		return "bulk-index"
	case SourceGeoExtract:
		return "geo-extract"
	default:
		return "unknown"
	}
}

// ParseSource converts the wire form back to a Source.
func ParseSource(s string) (Source, error) {
	switch s {
	case "website":
		return SourceWebsite, nil
	case "facebook":
		return SourceFacebook, nil
	case "instagram":
		return SourceInstagram, nil
	case "bulk-index":
		return SourceBulkIndex, nil
	case "geo-extract":
		return SourceGeoExtract, nil
	}
	return 0, fmt.Errorf("unknown candidate source %q", s)
}

// Rank is the total order over candidates. Lower Priority is preferred;
// Seq breaks ties by discovery order so sorting is reproducible.
type Rank struct {
	Priority int
	Seq      int
}

// Before reports whether r orders strictly before o.
func (r Rank) Before(o Rank) bool {
	if r.Priority != o.Priority {
		return r.Priority < o.Priority
	}
	return r.Seq < o.Seq
}

// Candidate rank priorities. Structured page metadata beats inline images;
// the social fallback penalty keeps social candidates behind every website
// candidate; bulk-index results come last.
const (
	PriorityStructured = 0
	PriorityInline     = 1
	PriorityGeoTag     = 2
	SocialRankPenalty  = 3
	PriorityBulk       = 8
)

// Candidate is an unvalidated image reference proposed by any source.
type Candidate struct {
	URL       string
	Source    Source
	Rank      Rank
	Title     string
	Author    string
	License   string // optional; empty means unknown
	SourceURL string // landing page the image was found on
	Image     *ValidatedImage
}

// ValidatedImage holds measured properties, attached only after the image
// validator accepts the candidate.
type ValidatedImage struct {
	Width     int
	Height    int
	Format    string
	MIMEType  string
	SizeBytes int64
}

// MergeCandidates combines candidate lists from all sources, removes
// duplicate absolute URLs keeping the best-ranked occurrence, and returns
// them in rank order.
func MergeCandidates(lists ...[]Candidate) []Candidate {
	best := make(map[string]Candidate)
	for _, list := range lists {
		for _, c := range list {
			if c.URL == "" {
				continue
			}
			prev, seen := best[c.URL]
			if !seen || c.Rank.Before(prev.Rank) {
				best[c.URL] = c
			}
		}
	}
	merged := make([]Candidate, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Rank.Before(merged[j].Rank)
	})
	return merged
}
