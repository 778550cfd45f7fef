// Package photopipe discovers, validates, and imports license-compliant
// photographs for a catalog of named, geolocated venues. It is an offline
// batch pipeline: candidates are gathered from a geospatial extract, the
// venue's own website or social pages, and a bulk creative-commons media
// index, then validated and persisted as moderation-ready photo records.
package photopipe

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Venue is an immutable input row from the venue catalog.
type Venue struct {
	Slug      string
	Name      string
	Lat       float64
	Lon       float64
	City      string
	Country   string
	Website   string // optional
	Facebook  string // optional
	Instagram string // optional
	HasPhoto  bool
}

// PhotoStatus is the moderation state of a persisted photo record.
type PhotoStatus string

const (
	StatusPending  PhotoStatus = "PENDING"
	StatusApproved PhotoStatus = "APPROVED"
	StatusRejected PhotoStatus = "REJECTED"
)

// PhotoRecord is the persistent outcome of a successful import. Once created
// it is never overwritten by this pipeline; moderation happens elsewhere.
type PhotoRecord struct {
	ID        string
	VenueSlug string
	CDNURL    string
	Width     int
	Height    int
	Format    string
	Author    string
	License   string
	SourceURL string
	Source    Source
	Status    PhotoStatus
	CreatedAt time.Time
}

// PhotoStore abstracts photo record persistence.
type PhotoStore interface {
	// CountPhotos returns the number of records for a venue, any status.
	CountPhotos(ctx context.Context, venueSlug string) (int, error)
	CreatePhoto(ctx context.Context, rec *PhotoRecord) error
	HasPrimary(ctx context.Context, venueSlug string) (bool, error)
	SetPrimary(ctx context.Context, venueSlug, photoID string) error
}

// Uploader abstracts the external object store / CDN.
type Uploader interface {
	Upload(ctx context.Context, data []byte, meta UploadMeta) (cdnURL string, err error)
}

// UploadMeta describes an object handed to the Uploader.
type UploadMeta struct {
	VenueSlug   string
	ContentType string
	SourceURL   string
}

// Config holds all dependencies injected by the consumer.
type Config struct {
	HTTPClient    *http.Client  // default: http.DefaultClient
	StealthClient *http.Client  // optional: fingerprinted client tried first for downloads
	Store         PhotoStore    // required for Import
	Uploader      Uploader      // required for Import (nil + DryRun is fine)
	Cache         *TTLCache     // optional: memoizes page fetches within a run
	Limiter       *rate.Limiter // optional: throttles candidate fetches against third-party hosts
	Tuning        Tuning        // zero value = DefaultTuning()
	UserAgent     string        // default: "Mozilla/5.0 (compatible; photopipe/1.0)"
	Concurrency   int           // venue worker pool size (default: 5)
	BatchDelay    time.Duration // pause between worker-pool batches (default: 5s)
	DryRun        bool          // validate and report without uploading or persisting

	// OnVenueDone is an optional callback fired once per processed venue.
	OnVenueDone func(Outcome)
}

// defaults fills zero-value fields with sensible defaults.
func (cfg *Config) defaults() {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (compatible; photopipe/1.0)"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	cfg.Tuning.defaults()
}

const (
	defaultConcurrency = 5
	defaultBatchDelay  = 5 * time.Second
)
