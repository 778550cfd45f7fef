package photopipe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// OutcomeStatus is the terminal state of one venue's import.
type OutcomeStatus string

const (
	OutcomeDone    OutcomeStatus = "done"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome reasons. Every skipped or failed venue carries exactly one.
const (
	ReasonAlreadyHasPhoto = "already-has-photo"
	ReasonNoCandidates    = "no-candidates"
	ReasonNoneValidated   = "none-validated"
	ReasonRunCanceled     = "run canceled"
)

// Outcome is the terminal result for one venue. Every venue ends in exactly
// one outcome; there is no partial state.
type Outcome struct {
	VenueSlug string
	Status    OutcomeStatus
	Reason    string // set for skipped and failed
	PhotoID   string // set for done
	CDNURL    string // set for done
}

// Summary aggregates a whole run.
type Summary struct {
	Total    int
	Done     int
	Skipped  int
	Failed   int
	Reasons  map[string]int
	Outcomes []Outcome
}

// Import processes every venue through the per-venue state machine using a
// fixed-size worker pool. Venues are independent: an error in one never
// aborts the others. candidates maps venue slug to its gathered, possibly
// unsorted candidate list.
func (cfg *Config) Import(ctx context.Context, venues []Venue, candidates map[string][]Candidate, policy ImagePolicy) Summary {
	cfg.defaults()

	var done, skipped, failed atomic.Int64
	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(venues))
	reasons := make(map[string]int)

	record := func(o Outcome) {
		switch o.Status {
		case OutcomeDone:
			done.Add(1)
		case OutcomeSkipped:
			skipped.Add(1)
		case OutcomeFailed:
			failed.Add(1)
		}
		mu.Lock()
		outcomes = append(outcomes, o)
		if o.Reason != "" {
			reasons[o.Reason]++
		}
		mu.Unlock()
		if cfg.OnVenueDone != nil {
			cfg.OnVenueDone(o)
		}
	}

	// Fixed-size batches with a pause in between, so slow hosts cannot
	// serialize the run and bursts stay polite to third parties.
	for start := 0; start < len(venues); start += cfg.Concurrency {
		end := min(start+cfg.Concurrency, len(venues))

		var wg sync.WaitGroup
		for _, v := range venues[start:end] {
			wg.Add(1)
			go func(v Venue) {
				defer wg.Done()
				record(cfg.ImportVenue(ctx, v, candidates[v.Slug], policy))
			}(v)
		}
		wg.Wait()

		if end < len(venues) {
			select {
			case <-ctx.Done():
				// Remaining venues are folded into failed outcomes so the
				// summary still accounts for every venue.
				for _, v := range venues[end:] {
					record(Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: ReasonRunCanceled})
				}
				return cfg.summarize(len(venues), done.Load(), skipped.Load(), failed.Load(), outcomes, reasons)
			case <-time.After(cfg.BatchDelay):
			}
		}
	}

	return cfg.summarize(len(venues), done.Load(), skipped.Load(), failed.Load(), outcomes, reasons)
}

func (cfg *Config) summarize(total int, done, skipped, failed int64, outcomes []Outcome, reasons map[string]int) Summary {
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].VenueSlug < outcomes[j].VenueSlug
	})
	return Summary{
		Total:    total,
		Done:     int(done),
		Skipped:  int(skipped),
		Failed:   int(failed),
		Reasons:  reasons,
		Outcomes: outcomes,
	}
}

// ImportVenue runs the state machine for one venue:
//
//	START -> skipped(already-has-photo) when any PhotoRecord exists
//	      -> skipped(no-candidates) when the merged candidate list is empty
//	      -> skipped(none-validated) when every candidate fails validation
//	      -> done after upload + persist of the first validated candidate
//
// Any network, validation, or persistence error is converted into the
// venue's outcome; nothing escapes as a panic or error.
func (cfg *Config) ImportVenue(ctx context.Context, v Venue, cands []Candidate, policy ImagePolicy) Outcome {
	cfg.defaults()

	if cfg.Store == nil {
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: "no photo store configured"}
	}

	// Dedup rule deliberately ignores record status: a venue with only a
	// REJECTED photo is not retried by this pipeline.
	count, err := cfg.Store.CountPhotos(ctx, v.Slug)
	if err != nil {
		perr := &PersistenceError{VenueSlug: v.Slug, Op: "count", Err: err}
		slog.Warn("photopipe: store lookup failed", "venue", v.Slug, "error", err.Error())
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: perr.Error()}
	}
	if count > 0 || v.HasPhoto {
		return Outcome{VenueSlug: v.Slug, Status: OutcomeSkipped, Reason: ReasonAlreadyHasPhoto}
	}

	merged := MergeCandidates(cands)
	if len(merged) == 0 {
		return Outcome{VenueSlug: v.Slug, Status: OutcomeSkipped, Reason: ReasonNoCandidates}
	}

	for _, c := range merged {
		outcome, ok := cfg.tryCandidate(ctx, v, c, policy)
		if ok {
			return outcome
		}
	}
	return Outcome{VenueSlug: v.Slug, Status: OutcomeSkipped, Reason: ReasonNoneValidated}
}

// tryCandidate probes, downloads, and persists one candidate. ok is false
// when the candidate is unusable and the next one should be tried; a
// persistence failure returns the venue's terminal outcome with ok true.
func (cfg *Config) tryCandidate(ctx context.Context, v Venue, c Candidate, policy ImagePolicy) (Outcome, bool) {
	if err := cfg.waitLimiter(ctx); err != nil {
		// Wait only fails when the context is canceled or past its
		// deadline, so the venue terminates as a canceled run, not as
		// a quietly exhausted candidate list.
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: ReasonRunCanceled}, true
	}

	probe := cfg.ProbeImage(ctx, c.URL, policy)
	if !probe.Valid {
		slog.Debug("photopipe: candidate rejected",
			"venue", v.Slug, "error", probe.Err(c.URL).Error())
		return Outcome{}, false
	}

	dl, err := cfg.DownloadImage(ctx, c.URL)
	if err != nil {
		slog.Debug("photopipe: candidate download failed", "venue", v.Slug, "url", c.URL, "error", err.Error())
		return Outcome{}, false
	}

	// The probe may have decoded only the leading bytes; the full body is
	// authoritative for dimensions and size. Same cap resolution as the
	// probe: the policy cap when set, the tuning cap otherwise.
	maxBytes := policy.MaxBytes
	if maxBytes <= 0 {
		maxBytes = cfg.Tuning.MaxImageBytes
	}
	full := ValidateImageBytes(dl.Data, dl.MIMEType, policy, maxBytes)
	if !full.Valid {
		slog.Debug("photopipe: candidate rejected on full fetch",
			"venue", v.Slug, "error", full.Err(c.URL).Error())
		return Outcome{}, false
	}

	prov := ExtractProvenance(dl.Data)
	if prov.StockAgency() {
		verr := &ValidationError{URL: c.URL, Reason: "stock agency metadata"}
		slog.Debug("photopipe: candidate rejected", "venue", v.Slug, "error", verr.Error())
		return Outcome{}, false
	}

	license, ok := resolveLicense(c, prov)
	if !ok {
		verr := &ValidationError{URL: c.URL, Reason: fmt.Sprintf("no allowed license (declared %q)", c.License)}
		slog.Debug("photopipe: candidate rejected", "venue", v.Slug, "error", verr.Error())
		return Outcome{}, false
	}

	author := c.Author
	if author == "" {
		author = prov.Author()
	}

	if cfg.DryRun {
		slog.Info("photopipe: dry-run would import",
			"venue", v.Slug, "url", c.URL, "source", c.Source.String(),
			"license", license, "width", full.Image.Width, "height", full.Image.Height)
		return Outcome{VenueSlug: v.Slug, Status: OutcomeDone, Reason: "dry-run"}, true
	}

	if cfg.Uploader == nil {
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: "no uploader configured"}, true
	}

	cdnURL, err := cfg.Uploader.Upload(ctx, dl.Data, UploadMeta{
		VenueSlug:   v.Slug,
		ContentType: full.Image.MIMEType,
		SourceURL:   c.SourceURL,
	})
	if err != nil {
		perr := &PersistenceError{VenueSlug: v.Slug, Op: "upload", Err: err}
		slog.Warn("photopipe: upload failed", "venue", v.Slug, "url", c.URL, "error", err.Error())
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: perr.Error()}, true
	}

	rec := &PhotoRecord{
		VenueSlug: v.Slug,
		CDNURL:    cdnURL,
		Width:     full.Image.Width,
		Height:    full.Image.Height,
		Format:    full.Image.Format,
		Author:    synthesizeAttribution(c.Source, author),
		License:   license,
		SourceURL: c.SourceURL,
		Source:    c.Source,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := cfg.Store.CreatePhoto(ctx, rec); err != nil {
		perr := &PersistenceError{VenueSlug: v.Slug, Op: "create", Err: err}
		slog.Warn("photopipe: record creation failed", "venue", v.Slug, "error", err.Error())
		return Outcome{VenueSlug: v.Slug, Status: OutcomeFailed, Reason: perr.Error()}, true
	}

	hasPrimary, err := cfg.Store.HasPrimary(ctx, v.Slug)
	if err == nil && !hasPrimary {
		if err := cfg.Store.SetPrimary(ctx, v.Slug, rec.ID); err != nil {
			slog.Warn("photopipe: set primary failed", "venue", v.Slug, "error", err.Error())
		}
	}

	slog.Info("photopipe: imported",
		"venue", v.Slug, "photo", rec.ID, "source", c.Source.String(), "license", license)
	return Outcome{VenueSlug: v.Slug, Status: OutcomeDone, PhotoID: rec.ID, CDNURL: cdnURL}, true
}

// resolveLicense picks the effective license for a candidate: the declared
// license first, then any license embedded in image metadata. A candidate
// with no allowed license never becomes a PhotoRecord.
func resolveLicense(c Candidate, prov *Provenance) (string, bool) {
	if c.License != "" && IsAllowed(c.License) {
		return Normalize(c.License), true
	}
	if embedded := prov.EmbeddedLicense(); embedded != "" && IsAllowed(embedded) {
		return Normalize(embedded), true
	}
	return "", false
}

// synthesizeAttribution builds the moderation-facing attribution line from
// candidate source and author.
func synthesizeAttribution(source Source, author string) string {
	if author == "" {
		return "via " + source.String()
	}
	return fmt.Sprintf("%s (via %s)", author, source.String())
}

func (cfg *Config) waitLimiter(ctx context.Context) error {
	if cfg.Limiter == nil {
		return nil
	}
	return cfg.Limiter.Wait(ctx)
}
