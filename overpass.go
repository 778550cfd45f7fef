package photopipe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultOverpassURL is the public Overpass API interpreter endpoint.
const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

const overpassTimeout = 45 * time.Second

// poiTagFilters is the fixed tag allow-list sent with every extract query.
// Venue matching only ever considers these feature classes.
var poiTagFilters = []string{
	`"amenity"~"restaurant|cafe|bar|pub|veterinary"`,
	`"leisure"~"dog_park|park"`,
	`"tourism"~"attraction|hotel"`,
	`"shop"="pet"`,
}

// POIFeature is one tagged geographic feature from the extract, with a
// resolved centroid. Ephemeral: produced per run, never persisted.
type POIFeature struct {
	ID      int64
	OSMType string // "node" or "way"
	Lat     float64
	Lon     float64
	Tags    map[string]string
}

// Name returns the feature's name tag, or "" when it has none usable.
func (p POIFeature) Name() string {
	return strings.TrimSpace(p.Tags["name"])
}

// overpassResponse mirrors the Overpass JSON output shape.
type overpassResponse struct {
	Elements []struct {
		Type   string  `json:"type"`
		ID     int64   `json:"id"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
		Center *struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"center"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// buildOverpassQuery renders the extract query for one bounding box.
func buildOverpassQuery(b Bounds) string {
	bbox := fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:40];(")
	for _, f := range poiTagFilters {
		fmt.Fprintf(&sb, "node[%s](%s);way[%s](%s);", f, bbox, f, bbox)
	}
	sb.WriteString(");out center;")
	return sb.String()
}

// FetchPOIFeatures runs the geospatial extract for the bounding box of all
// venues (expanded by the tuning padding) against an Overpass-compatible
// endpoint. Any failure is an ExtractionError: the caller must abort the
// run, because matching without the extract is meaningless.
func (cfg *Config) FetchPOIFeatures(ctx context.Context, endpoint string, venues []Venue) ([]POIFeature, error) {
	cfg.defaults()
	if endpoint == "" {
		endpoint = DefaultOverpassURL
	}
	if len(venues) == 0 {
		return nil, nil
	}

	query := buildOverpassQuery(BoundingBox(venues, cfg.Tuning.BBoxPaddingDeg))

	ctx, cancel := context.WithTimeout(ctx, overpassTimeout)
	defer cancel()

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &ExtractionError{Source: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &ExtractionError{Source: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ExtractionError{
			Source: endpoint,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var parsed overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ExtractionError{Source: endpoint, Err: fmt.Errorf("decode: %w", err)}
	}

	features := make([]POIFeature, 0, len(parsed.Elements))
	for _, el := range parsed.Elements {
		f := POIFeature{ID: el.ID, OSMType: el.Type, Lat: el.Lat, Lon: el.Lon, Tags: el.Tags}
		if el.Center != nil {
			f.Lat = el.Center.Lat
			f.Lon = el.Center.Lon
		}
		if f.Lat == 0 && f.Lon == 0 {
			continue // geometry without a resolvable centroid
		}
		features = append(features, f)
	}
	return features, nil
}
