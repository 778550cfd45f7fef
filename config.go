package photopipe

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Tuning collects the empirically chosen thresholds and scoring weights of
// the pipeline. The defaults reproduce observed behavior; treat them as
// configuration to be tuned, not ground truth.
type Tuning struct {
	// Record linker.
	MaxMatchDistanceM   float64 `toml:"max_match_distance_m"`
	NameSimilarityFloor float64 `toml:"name_similarity_floor"`
	NameWeight          float64 `toml:"name_weight"`
	ProximityWeight     float64 `toml:"proximity_weight"`
	BBoxPaddingDeg      float64 `toml:"bbox_padding_deg"`

	// Bulk scorer.
	BulkFuzzyThreshold float64 `toml:"bulk_fuzzy_threshold"`
	BulkTopN           int     `toml:"bulk_top_n"`
	PointsTitleName    int     `toml:"points_title_name"`
	PointsFuzzyName    int     `toml:"points_fuzzy_name"`
	PointsCity         int     `toml:"points_city"`
	PointsCountry      int     `toml:"points_country"`
	PointsCategory     int     `toml:"points_category"`

	// Image policies.
	MaxImageBytes int64 `toml:"max_image_bytes"`
}

// DefaultTuning returns the stock tuning constants.
func DefaultTuning() Tuning {
	return Tuning{
		MaxMatchDistanceM:   200,
		NameSimilarityFloor: 0.6,
		NameWeight:          0.7,
		ProximityWeight:     0.3,
		BBoxPaddingDeg:      0.05,
		BulkFuzzyThreshold:  0.7,
		BulkTopN:            3,
		PointsTitleName:     50,
		PointsFuzzyName:     30,
		PointsCity:          20,
		PointsCountry:       10,
		PointsCategory:      5,
		MaxImageBytes:       10 * 1024 * 1024,
	}
}

// defaults fills zero-value tuning fields with the stock constants, so a
// partial TOML file only overrides what it names.
func (t *Tuning) defaults() {
	d := DefaultTuning()
	if t.MaxMatchDistanceM <= 0 {
		t.MaxMatchDistanceM = d.MaxMatchDistanceM
	}
	if t.NameSimilarityFloor <= 0 {
		t.NameSimilarityFloor = d.NameSimilarityFloor
	}
	if t.NameWeight <= 0 {
		t.NameWeight = d.NameWeight
	}
	if t.ProximityWeight <= 0 {
		t.ProximityWeight = d.ProximityWeight
	}
	if t.BBoxPaddingDeg <= 0 {
		t.BBoxPaddingDeg = d.BBoxPaddingDeg
	}
	if t.BulkFuzzyThreshold <= 0 {
		t.BulkFuzzyThreshold = d.BulkFuzzyThreshold
	}
	if t.BulkTopN <= 0 {
		t.BulkTopN = d.BulkTopN
	}
	if t.PointsTitleName <= 0 {
		t.PointsTitleName = d.PointsTitleName
	}
	if t.PointsFuzzyName <= 0 {
		t.PointsFuzzyName = d.PointsFuzzyName
	}
	if t.PointsCity <= 0 {
		t.PointsCity = d.PointsCity
	}
	if t.PointsCountry <= 0 {
		t.PointsCountry = d.PointsCountry
	}
	if t.PointsCategory <= 0 {
		t.PointsCategory = d.PointsCategory
	}
	if t.MaxImageBytes <= 0 {
		t.MaxImageBytes = d.MaxImageBytes
	}
}

// LoadTuning reads a TOML tuning file. Fields absent from the file keep
// their defaults. A missing or unparsable file is a ConfigurationError.
func LoadTuning(path string) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, &ConfigurationError{Field: "tuning", Msg: err.Error()}
	}
	var t Tuning
	if err := toml.Unmarshal(data, &t); err != nil {
		return Tuning{}, &ConfigurationError{Field: "tuning", Msg: fmt.Sprintf("parse %s: %v", path, err)}
	}
	t.defaults()
	return t, nil
}
