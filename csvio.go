package photopipe

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Pipeline stages exchange data through delimited tabular files with fixed
// columns. Headers are written on output and verified on input, so a stage
// fed the wrong file fails fast with a ConfigurationError.

var (
	venueColumns = []string{
		"slug", "name", "lat", "lon", "city", "country",
		"website", "facebook", "instagram", "has_photo",
	}
	matchColumns = []string{
		"slug", "osm_id", "osm_type", "name", "image_url", "wikidata", "score",
	}
	candidateColumns = []string{
		"slug", "source", "source_id", "title", "url",
		"thumbnail_url", "author", "license", "source_url", "score",
	}
	mediaIndexColumns = []string{
		"id", "title", "creator", "license", "image_url", "thumbnail_url", "page_url",
	}
)

// CandidateRow associates a candidate with the venue it was gathered for,
// plus the exchange-only fields that Candidate itself does not carry.
type CandidateRow struct {
	Slug      string
	SourceID  string
	ThumbURL  string
	Score     int
	Candidate Candidate
}

func openCSV(path, what string) (*os.File, *csv.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ConfigurationError{Field: what, Msg: err.Error()}
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return f, r, nil
}

func checkHeader(got, want []string, what string) error {
	if len(got) < len(want) {
		return &ConfigurationError{Field: what, Msg: fmt.Sprintf("expected columns %v, got %v", want, got)}
	}
	for i, col := range want {
		if got[i] != col {
			return &ConfigurationError{Field: what, Msg: fmt.Sprintf("column %d: expected %q, got %q", i, col, got[i])}
		}
	}
	return nil
}

// ReadVenues loads the venue input file.
func ReadVenues(path string) ([]Venue, error) {
	f, r, err := openCSV(path, "venues")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ConfigurationError{Field: "venues", Msg: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &ConfigurationError{Field: "venues", Msg: "empty file"}
	}
	if err := checkHeader(rows[0], venueColumns, "venues"); err != nil {
		return nil, err
	}

	venues := make([]Venue, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < len(venueColumns) {
			return nil, &ConfigurationError{Field: "venues", Msg: fmt.Sprintf("row %d: %d columns", i+2, len(row))}
		}
		lat, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, &ConfigurationError{Field: "venues", Msg: fmt.Sprintf("row %d: bad lat %q", i+2, row[2])}
		}
		lon, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, &ConfigurationError{Field: "venues", Msg: fmt.Sprintf("row %d: bad lon %q", i+2, row[3])}
		}
		venues = append(venues, Venue{
			Slug:      row[0],
			Name:      row[1],
			Lat:       lat,
			Lon:       lon,
			City:      row[4],
			Country:   row[5],
			Website:   row[6],
			Facebook:  row[7],
			Instagram: row[8],
			HasPhoto:  row[9] == "true" || row[9] == "1",
		})
	}
	return venues, nil
}

// WriteMatches writes the match stage output.
func WriteMatches(path string, matches []MatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return &ConfigurationError{Field: "matches", Msg: err.Error()}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(matchColumns); err != nil {
		return err
	}
	for _, m := range matches {
		row := []string{
			m.VenueSlug,
			strconv.FormatInt(m.POIID, 10),
			m.OSMType,
			m.POIName,
			m.ImageURL,
			m.Wikidata,
			strconv.FormatFloat(m.Score, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadMatches loads a match stage output file.
func ReadMatches(path string) ([]MatchResult, error) {
	f, r, err := openCSV(path, "matches")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ConfigurationError{Field: "matches", Msg: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &ConfigurationError{Field: "matches", Msg: "empty file"}
	}
	if err := checkHeader(rows[0], matchColumns, "matches"); err != nil {
		return nil, err
	}

	matches := make([]MatchResult, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < len(matchColumns) {
			return nil, &ConfigurationError{Field: "matches", Msg: fmt.Sprintf("row %d: %d columns", i+2, len(row))}
		}
		id, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, &ConfigurationError{Field: "matches", Msg: fmt.Sprintf("row %d: bad osm_id %q", i+2, row[1])}
		}
		score, _ := strconv.ParseFloat(row[6], 64)
		matches = append(matches, MatchResult{
			VenueSlug: row[0],
			POIID:     id,
			OSMType:   row[2],
			POIName:   row[3],
			ImageURL:  row[4],
			Wikidata:  row[5],
			Score:     score,
		})
	}
	return matches, nil
}

// WriteCandidates writes the candidate exchange file consumed by the import
// stage.
func WriteCandidates(path string, rows []CandidateRow) error {
	f, err := os.Create(path)
	if err != nil {
		return &ConfigurationError{Field: "candidates", Msg: err.Error()}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(candidateColumns); err != nil {
		return err
	}
	for _, row := range rows {
		c := row.Candidate
		rec := []string{
			row.Slug,
			c.Source.String(),
			row.SourceID,
			c.Title,
			c.URL,
			row.ThumbURL,
			c.Author,
			c.License,
			c.SourceURL,
			strconv.Itoa(row.Score),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCandidates loads a candidate exchange file, grouped by venue slug and
// ranked in file order within each source's priority class.
func ReadCandidates(path string) (map[string][]Candidate, error) {
	f, r, err := openCSV(path, "candidates")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ConfigurationError{Field: "candidates", Msg: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &ConfigurationError{Field: "candidates", Msg: "empty file"}
	}
	if err := checkHeader(rows[0], candidateColumns, "candidates"); err != nil {
		return nil, err
	}

	out := make(map[string][]Candidate)
	for i, row := range rows[1:] {
		if len(row) < len(candidateColumns) {
			return nil, &ConfigurationError{Field: "candidates", Msg: fmt.Sprintf("row %d: %d columns", i+2, len(row))}
		}
		source, err := ParseSource(row[1])
		if err != nil {
			return nil, &ConfigurationError{Field: "candidates", Msg: fmt.Sprintf("row %d: %v", i+2, err)}
		}
		slug := row[0]
		out[slug] = append(out[slug], Candidate{
			URL:       row[4],
			Source:    source,
			Rank:      Rank{Priority: basePriority(source), Seq: len(out[slug])},
			Title:     row[3],
			Author:    row[6],
			License:   row[7],
			SourceURL: row[8],
		})
	}
	return out, nil
}

// basePriority maps a source to its rank class for candidates rehydrated
// from an exchange file, where original per-page priorities are gone.
func basePriority(s Source) int {
	switch s {
	case SourceWebsite:
		return PriorityStructured
	case SourceGeoExtract:
		return PriorityGeoTag
	case SourceFacebook, SourceInstagram:
		return PriorityStructured + SocialRankPenalty
	case SourceBulkIndex:
		return PriorityBulk
	default:
		return PriorityBulk
	}
}

// ReadMediaIndex loads the bulk media index used by the score stage.
func ReadMediaIndex(path string) ([]MediaRecord, error) {
	f, r, err := openCSV(path, "media-index")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := r.ReadAll()
	if err != nil {
		return nil, &ConfigurationError{Field: "media-index", Msg: err.Error()}
	}
	if len(rows) == 0 {
		return nil, &ConfigurationError{Field: "media-index", Msg: "empty file"}
	}
	if err := checkHeader(rows[0], mediaIndexColumns, "media-index"); err != nil {
		return nil, err
	}

	index := make([]MediaRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < len(mediaIndexColumns) {
			return nil, &ConfigurationError{Field: "media-index", Msg: fmt.Sprintf("row %d: %d columns", i+2, len(row))}
		}
		index = append(index, MediaRecord{
			ID:       row[0],
			Title:    row[1],
			Creator:  row[2],
			License:  row[3],
			ImageURL: row[4],
			ThumbURL: row[5],
			PageURL:  row[6],
		})
	}
	return index, nil
}
