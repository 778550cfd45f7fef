package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pawmap/photopipe"
	"github.com/pawmap/photopipe/store"
)

var (
	importVenues      string
	importCandidates  string
	importDB          string
	importUploadURL   string
	importConcurrency int
	importDryRun      bool
	importMinWidth    int
	importMinHeight   int
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate candidates and import one photo per venue",
	Long: `Runs the per-venue import state machine: skips venues that already have
a photo record, probes candidates in priority order, and uploads and
persists the first validated, license-compliant image as a PENDING
photo record. Per-venue failures never abort the run.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importVenues, "venues", "", "venue input file (required)")
	importCmd.Flags().StringVar(&importCandidates, "candidates", "", "candidate input file (required)")
	importCmd.Flags().StringVar(&importDB, "db", "photos.db", "photo record database")
	importCmd.Flags().StringVar(&importUploadURL, "upload-url", "", "object store upload endpoint")
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", 5, "venues processed in parallel")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate and report without uploading or persisting")
	importCmd.Flags().IntVar(&importMinWidth, "min-width", 500, "minimum image width in pixels")
	importCmd.Flags().IntVar(&importMinHeight, "min-height", 300, "minimum image height in pixels")
	_ = importCmd.MarkFlagRequired("venues")
	_ = importCmd.MarkFlagRequired("candidates")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	venues, err := photopipe.ReadVenues(importVenues)
	if err != nil {
		return err
	}
	candidates, err := photopipe.ReadCandidates(importCandidates)
	if err != nil {
		return err
	}

	if !importDryRun && importUploadURL == "" {
		return &photopipe.ConfigurationError{Field: "upload-url", Msg: "required unless --dry-run"}
	}

	db, err := store.Open(importDB)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := &photopipe.Config{
		Store:       db,
		Uploader:    &httpUploader{endpoint: importUploadURL},
		Limiter:     rate.NewLimiter(rate.Limit(4), 8),
		Tuning:      tuning,
		Concurrency: importConcurrency,
		DryRun:      importDryRun,
		OnVenueDone: func(o photopipe.Outcome) {
			switch o.Status {
			case photopipe.OutcomeDone:
				cmd.Printf("done    %s %s\n", o.VenueSlug, o.CDNURL)
			case photopipe.OutcomeSkipped:
				cmd.Printf("skipped %s (%s)\n", o.VenueSlug, o.Reason)
			case photopipe.OutcomeFailed:
				cmd.Printf("failed  %s (%s)\n", o.VenueSlug, o.Reason)
			}
		},
	}

	policy := photopipe.ImagePolicy{MinWidth: importMinWidth, MinHeight: importMinHeight}
	summary := cfg.Import(context.Background(), venues, candidates, policy)
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, s photopipe.Summary) {
	cmd.Printf("\nprocessed %d venues: %d imported, %d skipped, %d failed\n",
		s.Total, s.Done, s.Skipped, s.Failed)
	if len(s.Reasons) == 0 {
		return
	}
	reasons := make([]string, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		cmd.Printf("  %4d x %s\n", s.Reasons[r], r)
	}
}

// httpUploader POSTs image bytes to the external object store endpoint and
// expects a JSON body carrying the public CDN URL.
type httpUploader struct {
	endpoint string
}

func (u *httpUploader) Upload(ctx context.Context, data []byte, meta photopipe.UploadMeta) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", meta.ContentType)
	req.Header.Set("X-Venue-Slug", meta.VenueSlug)
	req.Header.Set("X-Source-URL", meta.SourceURL)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("upload response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return parsed.URL, nil
}
