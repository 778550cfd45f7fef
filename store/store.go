// Package store persists photo records in a local SQLite database. The
// pipeline only ever inserts: records are never updated or deleted here,
// moderation owns them after creation.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pawmap/photopipe"
)

const schema = `
CREATE TABLE IF NOT EXISTS photos (
	id          TEXT PRIMARY KEY,
	venue_slug  TEXT NOT NULL,
	cdn_url     TEXT NOT NULL,
	width       INTEGER NOT NULL,
	height      INTEGER NOT NULL,
	format      TEXT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	license     TEXT NOT NULL,
	source_url  TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'PENDING',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photos_venue ON photos(venue_slug);

CREATE TABLE IF NOT EXISTS venue_primary_photo (
	venue_slug  TEXT PRIMARY KEY,
	photo_id    TEXT NOT NULL REFERENCES photos(id)
);
`

// SQLite implements photopipe.PhotoStore on a local database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the photo database at path.
// WAL mode and a busy timeout keep concurrent venue workers from tripping
// over each other.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite",
		path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// CountPhotos returns the number of photo records for a venue, any status.
func (s *SQLite) CountPhotos(ctx context.Context, venueSlug string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM photos WHERE venue_slug = ?`, venueSlug).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting photos for %s: %w", venueSlug, err)
	}
	return n, nil
}

// CreatePhoto inserts a new record. When rec.ID is empty a fresh UUID is
// assigned and written back. Existing records are never overwritten.
func (s *SQLite) CreatePhoto(ctx context.Context, rec *photopipe.PhotoRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = photopipe.StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (id, venue_slug, cdn_url, width, height, format,
			author, license, source_url, source, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VenueSlug, rec.CDNURL, rec.Width, rec.Height, rec.Format,
		rec.Author, rec.License, rec.SourceURL, rec.Source.String(),
		string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating photo for %s: %w", rec.VenueSlug, err)
	}
	return nil
}

// HasPrimary reports whether the venue already has a primary photo
// reference.
func (s *SQLite) HasPrimary(ctx context.Context, venueSlug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM venue_primary_photo WHERE venue_slug = ?`, venueSlug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking primary for %s: %w", venueSlug, err)
	}
	return n > 0, nil
}

// SetPrimary records the venue's primary photo. A venue keeps at most one
// primary reference: setting it again is a no-op, not an overwrite.
func (s *SQLite) SetPrimary(ctx context.Context, venueSlug, photoID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO venue_primary_photo (venue_slug, photo_id) VALUES (?, ?)
		ON CONFLICT(venue_slug) DO NOTHING`,
		venueSlug, photoID)
	if err != nil {
		return fmt.Errorf("setting primary for %s: %w", venueSlug, err)
	}
	return nil
}

// GetPhoto loads one record by id; used by tests and inspection tooling.
func (s *SQLite) GetPhoto(ctx context.Context, id string) (*photopipe.PhotoRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, venue_slug, cdn_url, width, height, format,
			author, license, source_url, source, status, created_at
		FROM photos WHERE id = ?`, id)

	var rec photopipe.PhotoRecord
	var source, status string
	err := row.Scan(&rec.ID, &rec.VenueSlug, &rec.CDNURL, &rec.Width, &rec.Height,
		&rec.Format, &rec.Author, &rec.License, &rec.SourceURL, &source, &status,
		&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading photo %s: %w", id, err)
	}
	src, err := photopipe.ParseSource(source)
	if err != nil {
		return nil, err
	}
	rec.Source = src
	rec.Status = photopipe.PhotoStatus(status)
	return &rec, nil
}
