package photopipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// fakeStore is an in-memory PhotoStore for orchestrator tests.
type fakeStore struct {
	mu       sync.Mutex
	records  map[string][]*PhotoRecord
	primary  map[string]string
	countErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string][]*PhotoRecord),
		primary: make(map[string]string),
	}
}

func (s *fakeStore) CountPhotos(_ context.Context, slug string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return len(s.records[slug]), nil
}

func (s *fakeStore) CreatePhoto(_ context.Context, rec *PhotoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("photo-%d", len(s.records[rec.VenueSlug])+1)
	}
	s.records[rec.VenueSlug] = append(s.records[rec.VenueSlug], rec)
	return nil
}

func (s *fakeStore) HasPrimary(_ context.Context, slug string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.primary[slug]
	return ok, nil
}

func (s *fakeStore) SetPrimary(_ context.Context, slug, photoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.primary[slug]; !ok {
		s.primary[slug] = photoID
	}
	return nil
}

func (s *fakeStore) count(slug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[slug])
}

// fakeUploader records uploads and returns deterministic CDN URLs.
type fakeUploader struct {
	mu      sync.Mutex
	uploads int
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, data []byte, meta UploadMeta) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	u.uploads++
	return "https://cdn.example.com/" + meta.VenueSlug + ".jpg", nil
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	data := encodeJPEG(t, 800, 600)
	tiny := encodeJPEG(t, 50, 50)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "broken.jpg") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if strings.HasSuffix(r.URL.Path, "tiny.jpg") {
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write(tiny)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func importCfg(srv *httptest.Server, st *fakeStore, up *fakeUploader) *Config {
	return &Config{
		HTTPClient: srv.Client(),
		Store:      st,
		Uploader:   up,
		BatchDelay: time.Millisecond,
	}
}

func TestImportVenueSuccess(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)

	v := Venue{Slug: "luigi", Name: "Luigi"}
	cands := []Candidate{{
		URL:       srv.URL + "/good.jpg",
		Source:    SourceBulkIndex,
		License:   "CC-BY-4.0",
		Author:    "Ann Example",
		SourceURL: srv.URL + "/page",
	}}

	o := cfg.ImportVenue(context.Background(), v, cands, WebPolicy)
	if o.Status != OutcomeDone {
		t.Fatalf("status = %s (%s), want done", o.Status, o.Reason)
	}
	if o.CDNURL != "https://cdn.example.com/luigi.jpg" {
		t.Errorf("cdn url = %s", o.CDNURL)
	}
	if st.count("luigi") != 1 {
		t.Fatalf("records = %d, want 1", st.count("luigi"))
	}

	rec := st.records["luigi"][0]
	if rec.Status != StatusPending {
		t.Errorf("status = %s, want PENDING", rec.Status)
	}
	if rec.License != "CC-BY-4.0" {
		t.Errorf("license = %s", rec.License)
	}
	if rec.Width != 800 || rec.Height != 600 || rec.Format != "jpeg" {
		t.Errorf("image fields = %dx%d %s", rec.Width, rec.Height, rec.Format)
	}
	if !strings.Contains(rec.Author, "Ann Example") || !strings.Contains(rec.Author, "bulk-index") {
		t.Errorf("attribution = %q, want author and source", rec.Author)
	}
	if st.primary["luigi"] != rec.ID {
		t.Errorf("primary = %q, want %q", st.primary["luigi"], rec.ID)
	}
}

func TestImportVenueAlreadyHasPhoto(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	// Existing record, status REJECTED: dedup still applies.
	st.records["luigi"] = []*PhotoRecord{{ID: "old", VenueSlug: "luigi", Status: StatusRejected}}
	cfg := importCfg(srv, st, &fakeUploader{})

	cands := []Candidate{{URL: srv.URL + "/good.jpg", License: "CC0"}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeSkipped || o.Reason != ReasonAlreadyHasPhoto {
		t.Fatalf("outcome = %+v, want skipped/already-has-photo", o)
	}
	if st.count("luigi") != 1 {
		t.Errorf("records = %d, a second record must never be created", st.count("luigi"))
	}
}

func TestImportVenueNoCandidates(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	cfg := importCfg(srv, newFakeStore(), &fakeUploader{})

	o := cfg.ImportVenue(context.Background(), Venue{Slug: "empty"}, nil, WebPolicy)
	if o.Status != OutcomeSkipped || o.Reason != ReasonNoCandidates {
		t.Fatalf("outcome = %+v, want skipped/no-candidates", o)
	}
}

func TestImportVenueNoneValidated(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)

	cands := []Candidate{
		{URL: srv.URL + "/broken.jpg", License: "CC0", Rank: Rank{Seq: 0}},
		{URL: srv.URL + "/tiny.jpg", License: "CC0", Rank: Rank{Seq: 1}},
	}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeSkipped || o.Reason != ReasonNoneValidated {
		t.Fatalf("outcome = %+v, want skipped/none-validated", o)
	}
	if up.uploads != 0 || st.count("luigi") != 0 {
		t.Error("failed candidates must not reach upload or store")
	}
}

func TestImportVenueDisallowedLicense(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	cfg := importCfg(srv, st, &fakeUploader{})

	// A valid image whose license family is NC must never become a record.
	cands := []Candidate{{URL: srv.URL + "/good.jpg", License: "CC-BY-NC-4.0"}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeSkipped || o.Reason != ReasonNoneValidated {
		t.Fatalf("outcome = %+v, want skipped/none-validated", o)
	}
	if st.count("luigi") != 0 {
		t.Error("NC-licensed candidate reached the store")
	}
}

func TestImportVenueUploadFailure(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	up := &fakeUploader{err: errors.New("bucket unavailable")}
	cfg := importCfg(srv, st, up)

	cands := []Candidate{{URL: srv.URL + "/good.jpg", License: "CC0"}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", o)
	}
	if !strings.Contains(o.Reason, "upload") {
		t.Errorf("reason = %q, want upload failure", o.Reason)
	}
	if st.count("luigi") != 0 {
		t.Error("record created despite failed upload")
	}
}

func TestImportVenueDryRun(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)
	cfg.DryRun = true

	cands := []Candidate{{URL: srv.URL + "/good.jpg", License: "CC0"}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeDone || o.Reason != "dry-run" {
		t.Fatalf("outcome = %+v, want done/dry-run", o)
	}
	if up.uploads != 0 || st.count("luigi") != 0 {
		t.Error("dry run must not upload or persist")
	}
}

func TestImportRun(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	st.records["taken"] = []*PhotoRecord{{ID: "x", VenueSlug: "taken"}}
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)
	cfg.Concurrency = 2

	venues := []Venue{
		{Slug: "a"}, {Slug: "b"}, {Slug: "taken"}, {Slug: "c"},
	}
	candidates := map[string][]Candidate{
		"a": {{URL: srv.URL + "/a.jpg", License: "CC0"}},
		"b": {{URL: srv.URL + "/broken.jpg", License: "CC0"}},
		// "c" has none.
		"taken": {{URL: srv.URL + "/t.jpg", License: "CC0"}},
	}

	s := cfg.Import(context.Background(), venues, candidates, WebPolicy)

	if s.Total != 4 {
		t.Errorf("total = %d", s.Total)
	}
	if s.Done != 1 || s.Skipped != 3 || s.Failed != 0 {
		t.Errorf("done/skipped/failed = %d/%d/%d, want 1/3/0; reasons %v", s.Done, s.Skipped, s.Failed, s.Reasons)
	}
	if s.Reasons[ReasonAlreadyHasPhoto] != 1 || s.Reasons[ReasonNoCandidates] != 1 || s.Reasons[ReasonNoneValidated] != 1 {
		t.Errorf("reasons = %v", s.Reasons)
	}
	if len(s.Outcomes) != 4 {
		t.Errorf("outcomes = %d", len(s.Outcomes))
	}
	// One outcome per venue, each venue exactly once.
	seen := make(map[string]bool)
	for _, o := range s.Outcomes {
		if seen[o.VenueSlug] {
			t.Errorf("venue %s has multiple outcomes", o.VenueSlug)
		}
		seen[o.VenueSlug] = true
	}
}

func TestImportVenueStockAgencyRejected(t *testing.T) {
	t.Parallel()

	// A valid, correctly licensed image whose embedded metadata names a
	// stock agency must never become a record.
	data := exifJPEG(t, "Shutterstock Contributor", "Copyright Shutterstock Inc.")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer srv.Close()

	st := newFakeStore()
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)

	cands := []Candidate{{URL: srv.URL + "/stock.jpg", License: "CC-BY-4.0"}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeSkipped || o.Reason != ReasonNoneValidated {
		t.Fatalf("outcome = %+v, want skipped/none-validated", o)
	}
	if up.uploads != 0 || st.count("luigi") != 0 {
		t.Error("stock agency image reached upload or store")
	}
}

func TestImportVenueEmbeddedLicense(t *testing.T) {
	t.Parallel()

	// No declared license on the candidate; the CC web statement embedded
	// in the image metadata carries the import.
	data := xmpJPEG(t, "https://creativecommons.org/licenses/by/4.0/")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(data)
	}))
	defer srv.Close()

	st := newFakeStore()
	cfg := importCfg(srv, st, &fakeUploader{})

	cands := []Candidate{{URL: srv.URL + "/embedded.jpg", Source: SourceWebsite}}
	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeDone {
		t.Fatalf("outcome = %+v, want done", o)
	}
	if st.count("luigi") != 1 {
		t.Fatalf("records = %d, want 1", st.count("luigi"))
	}
	if got := st.records["luigi"][0].License; got != "CC-BY-4.0" {
		t.Errorf("license = %q, want CC-BY-4.0 from embedded metadata", got)
	}
}

func TestImportVenuePolicyMaxBytes(t *testing.T) {
	t.Parallel()

	// Image whose leading bytes probe fine but whose full body exceeds the
	// policy cap. Served without Content-Length so only the downloaded
	// body can reveal the real size.
	data := append(encodeJPEG(t, 800, 600), bytes.Repeat([]byte{0xFF}, 220*1024)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.(http.Flusher).Flush()
		w.Write(data)
	}))
	defer srv.Close()

	st := newFakeStore()
	up := &fakeUploader{}
	cfg := importCfg(srv, st, up)

	cands := []Candidate{{URL: srv.URL + "/big.jpg", License: "CC0"}}
	policy := ImagePolicy{MinWidth: 100, MinHeight: 100, MaxBytes: 100 * 1024}

	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, cands, policy)
	if o.Status != OutcomeSkipped || o.Reason != ReasonNoneValidated {
		t.Fatalf("outcome = %+v, want skipped/none-validated", o)
	}
	if up.uploads != 0 || st.count("luigi") != 0 {
		t.Error("oversize body reached upload or store")
	}

	// The same image passes once the policy carries no cap of its own.
	o = cfg.ImportVenue(context.Background(), Venue{Slug: "parkcafe"}, cands, ImagePolicy{MinWidth: 100, MinHeight: 100})
	if o.Status != OutcomeDone {
		t.Fatalf("outcome without policy cap = %+v, want done", o)
	}
}

func TestImportVenueCanceledRun(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	cfg := importCfg(srv, st, &fakeUploader{})
	cfg.Limiter = rate.NewLimiter(1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cands := []Candidate{{URL: srv.URL + "/good.jpg", License: "CC0"}}
	o := cfg.ImportVenue(ctx, Venue{Slug: "luigi"}, cands, WebPolicy)

	if o.Status != OutcomeFailed || o.Reason != ReasonRunCanceled {
		t.Fatalf("outcome = %+v, want failed/%s", o, ReasonRunCanceled)
	}
	if st.count("luigi") != 0 {
		t.Error("canceled run created records")
	}
}

func TestImportStoreErrorIsPerVenue(t *testing.T) {
	t.Parallel()

	srv := imageServer(t)
	st := newFakeStore()
	st.countErr = errors.New("db locked")
	cfg := importCfg(srv, st, &fakeUploader{})

	o := cfg.ImportVenue(context.Background(), Venue{Slug: "luigi"}, nil, WebPolicy)
	if o.Status != OutcomeFailed {
		t.Fatalf("outcome = %+v, want failed", o)
	}
}
